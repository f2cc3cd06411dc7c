package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"scrapeforge/internal/artifact"
	"scrapeforge/internal/llmclient"
)

const understandingSystemPrompt = `You are a web scraping feasibility analyst. Given a structured description of
a web page's candidate content sections and pagination signals, decide
whether the page can be scraped, propose the fields worth extracting, and
choose a pagination strategy. Respond with a single JSON object only.`

// Understanding calls the Understanding agent: it loads the AnalysisSnapshot
// the reconnaissance stage produced, asks the LLM to assess feasibility and
// propose fields, logs the raw reply, and parses it into an
// artifact.Understanding. Malformed or unparseable replies degrade to a
// zero-confidence, scraping_possible=false result rather than an error,
// matching spec §7's "LLM reply parse" error-kind handling.
func Understanding(ctx context.Context, client llmclient.Client, store *artifact.Store, snapshot *artifact.AnalysisSnapshot) (*artifact.Understanding, error) {
	userPrompt, err := marshalSnapshotPrompt(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis snapshot for prompt: %w", err)
	}

	raw, err := client.Call(ctx, understandingSystemPrompt, userPrompt, true)
	if err != nil {
		return nil, fmt.Errorf("call understanding agent: %w", err)
	}
	if err := store.WriteLLMLog("call1_response.json", raw); err != nil {
		return nil, fmt.Errorf("log understanding response: %w", err)
	}

	parsed := ParseJSON(raw)
	return decodeUnderstanding(parsed), nil
}

func marshalSnapshotPrompt(snapshot *artifact.AnalysisSnapshot) (string, error) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeUnderstanding(parsed map[string]interface{}) *artifact.Understanding {
	u := &artifact.Understanding{
		RecommendedBrowserMode: artifact.BrowserHeadless,
		Pagination:             artifact.UnderstandingPagination{Strategy: artifact.PaginationNone},
	}

	if v, ok := parsed["scraping_possible"].(bool); ok {
		u.ScrapingPossible = v
	}
	if v, ok := parsed["confidence"].(float64); ok {
		u.Confidence = v
	}
	if v, ok := parsed["reason"].(string); ok {
		u.Reason = v
	}
	if v, ok := parsed["recommended_browser_mode"].(string); ok && v == string(artifact.BrowserHeaded) {
		u.RecommendedBrowserMode = artifact.BrowserHeaded
	}
	if rawFields, ok := parsed["available_fields"].([]interface{}); ok {
		for _, rf := range rawFields {
			fieldMap, ok := rf.(map[string]interface{})
			if !ok {
				continue
			}
			field := artifact.AvailableField{}
			if v, ok := fieldMap["name"].(string); ok {
				field.Name = v
			}
			if v, ok := fieldMap["description"].(string); ok {
				field.Description = v
			}
			if v, ok := fieldMap["selector_guess"].(string); ok {
				field.SelectorGuess = v
			}
			if v, ok := fieldMap["suggested"].(bool); ok {
				field.Suggested = v
			}
			if field.Name != "" {
				u.AvailableFields = append(u.AvailableFields, field)
			}
		}
	}
	if pag, ok := parsed["pagination"].(map[string]interface{}); ok {
		if v, ok := pag["strategy"].(string); ok {
			switch v {
			case string(artifact.PaginationNextButton):
				u.Pagination.Strategy = artifact.PaginationNextButton
			case string(artifact.PaginationURLParam):
				u.Pagination.Strategy = artifact.PaginationURLParam
			}
		}
		if v, ok := pag["next_button_selector"].(string); ok {
			u.Pagination.NextButtonSelector = v
		}
	}

	// Invariant (spec §8): if scraping_possible is false, confidence must be
	// below 0.5 regardless of what the model claimed.
	if !u.ScrapingPossible && u.Confidence >= 0.5 {
		u.Confidence = 0.49
	}

	return u
}
