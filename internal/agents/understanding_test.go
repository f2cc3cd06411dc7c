package agents_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"scrapeforge/internal/agents"
	"scrapeforge/internal/artifact"
	"scrapeforge/internal/llmclient"
)

func TestUnderstandingParsesWellFormedReply(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	client := &llmclient.FakeClient{Responses: []string{`{
		"scraping_possible": true,
		"confidence": 0.87,
		"reason": "static product grid",
		"recommended_browser_mode": "headless",
		"available_fields": [
			{"name": "title", "description": "product title", "selector_guess": "h2.title", "suggested": true}
		],
		"pagination": {"strategy": "next_button", "next_button_selector": "a.next"}
	}`}}

	snapshot := &artifact.AnalysisSnapshot{URL: "https://example.com/products", Title: "Products"}

	u, err := agents.Understanding(context.Background(), client, store, snapshot)
	require.NoError(t, err)
	require.True(t, u.ScrapingPossible)
	require.Equal(t, 0.87, u.Confidence)
	require.Equal(t, artifact.BrowserHeadless, u.RecommendedBrowserMode)
	require.Len(t, u.AvailableFields, 1)
	require.Equal(t, "title", u.AvailableFields[0].Name)
	require.Equal(t, artifact.PaginationNextButton, u.Pagination.Strategy)
	require.Equal(t, "a.next", u.Pagination.NextButtonSelector)

	require.FileExists(t, store.Path("llm_logs/call1_response.json"))
}

func TestUnderstandingDegradesConfidenceWhenNotPossible(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	client := &llmclient.FakeClient{Responses: []string{`{
		"scraping_possible": false,
		"confidence": 0.95,
		"reason": "requires login"
	}`}}

	u, err := agents.Understanding(context.Background(), client, store, &artifact.AnalysisSnapshot{})
	require.NoError(t, err)
	require.False(t, u.ScrapingPossible)
	require.Less(t, u.Confidence, 0.5)
}

func TestUnderstandingDegradesToZeroConfidenceOnGarbage(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	client := &llmclient.FakeClient{Responses: []string{"I refuse to answer in JSON."}}

	u, err := agents.Understanding(context.Background(), client, store, &artifact.AnalysisSnapshot{})
	require.NoError(t, err)
	require.False(t, u.ScrapingPossible)
	require.Equal(t, 0.0, u.Confidence)
}

func TestUnderstandingPropagatesClientError(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	client := &llmclient.FakeClient{Responses: nil}

	_, err = agents.Understanding(context.Background(), client, store, &artifact.AnalysisSnapshot{})
	require.Error(t, err)
}
