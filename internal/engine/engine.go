// Package engine implements the Workflow Engine (Orchestrator) of spec
// §4.1: a persistent finite state machine sequencing probing,
// reconnaissance, LLM analysis, code generation, test execution, and
// repair. Adapted from the teacher's internal/core/kernel.go OODA-loop
// shape (single-threaded, cooperative, a handler per phase, durable state
// persisted between phases) and internal/autopoiesis/ouroboros.go's
// transactional generate-validate-retry pattern for CODEGEN/REPAIR.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"scrapeforge/internal/agents"
	"scrapeforge/internal/artifact"
	"scrapeforge/internal/config"
	"scrapeforge/internal/llmclient"
	"scrapeforge/internal/logging"
	"scrapeforge/internal/repair"
)

// Engine drives one project directory through the state machine. It holds
// no per-project mutable state itself — store, session, and event log are
// all scoped to a single Run call, matching spec §5's "Artifact Store
// directory is owned exclusively by one Engine at a time" rule (one Engine
// value may be reused sequentially across different project directories).
type Engine struct {
	cfg      config.Config
	logger   *zap.Logger
	llm      llmclient.Client
	secrets  config.SecretStore
	prompt   OperatorPrompt
	progress ProgressReporter
	executor ScriptExecutor
	browsers BrowserFactory
}

// New constructs an Engine. prompt and progress may be CI-mode
// implementations; executor is the Script Executor capability; browsers
// constructs a fresh browser.Manager per handler.
func New(cfg config.Config, logger *zap.Logger, llm llmclient.Client, secrets config.SecretStore, prompt OperatorPrompt, progress ProgressReporter, executor ScriptExecutor, browsers BrowserFactory) *Engine {
	if progress == nil {
		progress = NullProgress{}
	}
	return &Engine{
		cfg: cfg, logger: logger, llm: llm, secrets: secrets,
		prompt: prompt, progress: progress, executor: executor, browsers: browsers,
	}
}

// run carries the per-invocation state a handler needs, threaded through
// every handler method instead of stored on Engine (spec §9: "no
// process-wide mutable singletons" generalizes here to no cross-run
// mutable engine state).
type run struct {
	store   *artifact.Store
	session *artifact.Session
	events  *logging.EventLog
	ci      bool
	expert  bool
	start   time.Time
}

// Run drives project projectDir from its current persisted state to a
// terminal state, persisting the Session after every handler and emitting
// exactly one Wide Event on termination (spec §4.1's public contract).
func (e *Engine) Run(ctx context.Context, projectDir string) error {
	store, err := artifact.New(projectDir)
	if err != nil {
		return Wrap(KindArtifactIO, err)
	}
	session, err := store.LoadSession()
	if err != nil {
		return Wrap(KindArtifactIO, fmt.Errorf("load session: %w", err))
	}

	// Testable property (spec §8): running on an already-terminal project
	// is a no-op — no Session mutation, no new Wide Event.
	if session.State.Terminal() {
		return nil
	}

	events, err := logging.NewEventLog(projectDir)
	if err != nil {
		return Wrap(KindArtifactIO, err)
	}
	defer events.Close()

	r := &run{
		store: store, session: session, events: events,
		ci: session.CIMode, expert: session.ExpertMode, start: time.Now(),
	}

	for !r.session.State.Terminal() {
		if err := ctx.Err(); err != nil {
			r.session.Advance(artifact.StateFailed, "cancelled before handler dispatch", time.Now())
			if saveErr := r.store.SaveSession(r.session); saveErr != nil {
				r.events.Error(logging.CategoryEngine, "save session after cancellation", map[string]string{"error": saveErr.Error()})
			}
			e.finish(r, false, "cancelled before handler dispatch")
			return nil
		}

		state := r.session.State
		e.progress.Stage(state)
		r.events.Info(logging.CategoryEngine, "entering state", map[string]string{"state": string(state)})

		handlerErr := e.dispatch(ctx, r, state)

		if handlerErr != nil {
			if IsCancelled(handlerErr) {
				r.session.Advance(artifact.StateFailed, "cancelled", time.Now())
				if saveErr := r.store.SaveSession(r.session); saveErr != nil {
					r.events.Error(logging.CategoryEngine, "save session after cancellation", map[string]string{"error": saveErr.Error()})
				}
				e.finish(r, false, "cancelled")
				return nil
			}
			r.session.Advance(artifact.StateFailed, handlerErr.Error(), time.Now())
			if saveErr := r.store.SaveSession(r.session); saveErr != nil {
				r.events.Error(logging.CategoryEngine, "save session after failure", map[string]string{"error": saveErr.Error()})
			}
			e.finish(r, false, handlerErr.Error())
			return handlerErr
		}

		if err := r.store.SaveSession(r.session); err != nil {
			return Wrap(KindArtifactIO, fmt.Errorf("save session: %w", err))
		}
	}

	e.finish(r, r.session.State == artifact.StateDone, "")
	return nil
}

// dispatch executes the handler for state and returns its error, if any.
// Each handler is responsible for calling r.session.Advance to the next
// state; dispatch itself never advances state on success.
func (e *Engine) dispatch(ctx context.Context, r *run, state artifact.State) error {
	switch state {
	case artifact.StateInit:
		return e.handleInit(ctx, r)
	case artifact.StateGuidedAccess:
		return e.handleGuidedAccess(ctx, r)
	case artifact.StateRecon:
		return e.handleRecon(ctx, r)
	case artifact.StateInteractiveSolve:
		return e.handleInteractiveSolve(ctx, r)
	case artifact.StateLLMAnalysis:
		return e.handleLLMAnalysis(ctx, r)
	case artifact.StateUserConfig:
		return e.handleUserConfig(ctx, r)
	case artifact.StateCodegen:
		return e.handleCodegen(ctx, r)
	case artifact.StateTest:
		return e.handleTest(ctx, r)
	case artifact.StateRepair:
		return e.handleRepair(ctx, r)
	case artifact.StateApproved:
		return e.handleApproved(ctx, r)
	default:
		return Wrap(KindSchema, fmt.Errorf("unknown state %q", state))
	}
}

// finish writes the single terminal Wide Event (spec §4.1, §8: "exactly
// one wide_event.json exists").
func (e *Engine) finish(r *run, success bool, errText string) {
	var errPtr *string
	if errText != "" {
		errPtr = &errText
	}
	we := &artifact.WideEvent{
		EventType:       "session_completion",
		ProjectID:       r.session.ProjectID,
		URL:             r.session.URL,
		Success:         success,
		DurationSeconds: time.Since(r.start).Seconds(),
		Error:           errPtr,
		WizardMode:      !r.session.ExpertMode,
		CIMode:          r.session.CIMode,
		GuidedTour:      r.session.Flags.ForceGuided,
		FinalState:      r.session.State,
		Timestamp:       time.Now(),
	}
	if err := r.store.SaveWideEvent(we); err != nil {
		r.events.Error(logging.CategoryEngine, "save wide event", map[string]string{"error": err.Error()})
	}
}

// withRetry wraps a flaky external call in exponential backoff within
// e.cfg.Retry's attempt budget (spec §4.1: "starting ~2s, capped
// ~10-30s... small attempt budget (2-3)"). Each retry is independent; it
// never mutates Session mid-attempt.
func (e *Engine) withRetry(ctx context.Context, r *run, label string, fn func(ctx context.Context) error) error {
	delay := e.cfg.Retry.BaseDelay
	var lastErr error
	attempts := e.cfg.Retry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			r.events.Warn(logging.CategoryEngine, "retrying", map[string]string{"label": label, "attempt": fmt.Sprint(attempt)})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
			if delay > e.cfg.Retry.MaxDelay {
				delay = e.cfg.Retry.MaxDelay
			}
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) {
			return lastErr
		}
	}
	return lastErr
}

// buildRepairLoop constructs a repair.Loop with the configured attempt
// budget and this run's event log; handleRepair supplies the test runner and
// the Repair agent when it runs the loop.
func (e *Engine) buildRepairLoop(r *run) *repair.Loop {
	return repair.New(e.cfg.Repair.AttemptBudget, r.events)
}

// callUnderstanding invokes the Understanding agent (agents.Understanding),
// kept as a thin method so handlers don't reach across packages directly.
func (e *Engine) callUnderstanding(ctx context.Context, r *run, snapshot *artifact.AnalysisSnapshot) (*artifact.Understanding, error) {
	return agents.Understanding(ctx, e.llm, r.store, snapshot)
}
