package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"scrapeforge/internal/agents"
	"scrapeforge/internal/artifact"
	"scrapeforge/internal/browser"
	"scrapeforge/internal/logging"
	"scrapeforge/internal/recon"
	"scrapeforge/internal/report"
	"scrapeforge/internal/scanner"
)

// handleInit runs the stealth probe (spec §4.1/§4.2): a short headed
// navigation whose only purpose is to provoke bot defenses headless would
// miss. A probe failure after retries conservatively falls back to guided
// access rather than FAILED (scenario S6).
func (e *Engine) handleInit(ctx context.Context, r *run) error {
	e.progress.Info("🔎 Probing target site...")

	profile, err := e.runProbe(ctx, r)
	if err != nil {
		r.events.Warn(logging.CategoryEngine, "probe failed after retries, defaulting to guided", map[string]string{"error": err.Error()})
		profile = scanner.SyntheticProbeFailure()
	}

	if err := r.store.SaveScanProfile(profile); err != nil {
		return Wrap(KindArtifactIO, err)
	}

	guided := profile.AccessRecommendation == artifact.AccessGuided || r.session.Flags.ForceGuided
	accessMode := artifact.AccessModeAutomatic
	if guided {
		accessMode = artifact.AccessModeGuided
	}
	if err := r.store.SaveInteractionLog(&artifact.InteractionLog{AccessMode: accessMode}); err != nil {
		return Wrap(KindArtifactIO, err)
	}

	if guided {
		r.session.Advance(artifact.StateGuidedAccess, "hostile or forced guided access", time.Now())
	} else {
		r.session.Advance(artifact.StateRecon, "automatic access", time.Now())
	}
	return nil
}

func (e *Engine) runProbe(ctx context.Context, r *run) (*artifact.ScanProfile, error) {
	var profile *artifact.ScanProfile
	err := e.withRetry(ctx, r, "probe", func(ctx context.Context) error {
		mgr := e.browsers(true) // stealth probe is always headed
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("start probe browser: %w", err)
		}
		defer mgr.Close()

		page, err := mgr.NewPage(ctx)
		if err != nil {
			return fmt.Errorf("open probe page: %w", err)
		}
		defer page.Close()

		timeouts := scanner.DefaultTimeouts()
		timeouts.Navigation = e.cfg.Browser.ProbeTimeout
		sc := scanner.New(timeouts, r.events)
		profile = sc.Scan(ctx, page, r.session.URL)
		if len(profile.Errors) > 0 && profile.PostRenderStats == nil && profile.PreRenderStats == nil {
			return fmt.Errorf("probe produced no usable signal: %s", profile.Errors[0].Message)
		}
		return nil
	})
	return profile, err
}

// handleGuidedAccess opens a headed browser, waits for the operator to
// confirm readiness, and captures the resulting session (cookies +
// storage) to disk (scenario S2: "storage_state.json and cookies.json
// must both be present after GUIDED_ACCESS").
func (e *Engine) handleGuidedAccess(ctx context.Context, r *run) error {
	e.progress.Info("🧑‍💻 Opening guided browser session...")

	mgr := e.browsers(true)
	if err := mgr.Start(ctx); err != nil {
		return Wrap(KindTransient, fmt.Errorf("start guided browser: %w", err))
	}
	defer mgr.Close()

	page, err := mgr.NewPage(ctx)
	if err != nil {
		return Wrap(KindTransient, fmt.Errorf("open guided page: %w", err))
	}
	defer page.Close()

	if _, err := page.Navigate(ctx, r.session.URL, e.cfg.Browser.NavigationTimeout); err != nil {
		return Wrap(KindTransient, fmt.Errorf("navigate guided page: %w", err))
	}

	if err := e.prompt.ConfirmGuidedReady(ctx); err != nil {
		return Wrap(KindCancelled, err)
	}

	if err := e.captureSession(page, r); err != nil {
		return Wrap(KindArtifactIO, err)
	}

	r.session.Flags.LoginPerformed = true
	log, _ := r.store.LoadInteractionLog()
	if log == nil {
		log = &artifact.InteractionLog{AccessMode: artifact.AccessModeGuided}
	}
	log.Steps = append(log.Steps, artifact.InteractionStep{Action: "guided_access_confirmed", Timestamp: time.Now()})
	if err := r.store.SaveInteractionLog(log); err != nil {
		return Wrap(KindArtifactIO, err)
	}

	r.session.Advance(artifact.StateRecon, "guided access confirmed", time.Now())
	return nil
}

func (e *Engine) captureSession(page *browser.Page, r *run) error {
	state, err := page.SnapshotStorageState()
	if err != nil {
		return fmt.Errorf("snapshot storage state: %w", err)
	}
	if err := r.store.SaveJSON("storage_state.json", state); err != nil {
		return err
	}
	return r.store.SaveJSON("cookies.json", state.Cookies)
}

// handleRecon navigates (headed if login_performed, else headless) and
// builds the AnalysisSnapshot. A captcha/bot-defense page encountered here
// (distinct from the probe) routes to INTERACTIVE_SOLVE instead of FAILED.
func (e *Engine) handleRecon(ctx context.Context, r *run) error {
	e.progress.Info("🧭 Analyzing page structure...")

	headed := r.session.Flags.LoginPerformed
	mgr := e.browsers(headed)

	var snapshot *artifact.AnalysisSnapshot
	var hostileBlock bool

	err := e.withRetry(ctx, r, "recon_navigation", func(ctx context.Context) error {
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("start recon browser: %w", err)
		}
		defer mgr.Close()

		page, err := mgr.NewPage(ctx)
		if err != nil {
			return fmt.Errorf("open recon page: %w", err)
		}
		defer page.Close()

		if r.session.Flags.LoginPerformed {
			if state, loadErr := loadStorageState(r.store); loadErr == nil {
				_ = page.RestoreStorageState(state)
			}
		}

		if _, err := page.Navigate(ctx, r.session.URL, e.cfg.Browser.NavigationTimeout); err != nil {
			return fmt.Errorf("navigate recon page: %w", err)
		}

		if blocked, checkErr := pageLooksBlocked(page); checkErr == nil && blocked {
			hostileBlock = true
			return nil
		}

		snapshot, err = recon.Build(page, r.session.URL, r.session.Flags.LoginPerformed)
		return err
	})
	if err != nil {
		r.session.Advance(artifact.StateFailed, "reconnaissance exhausted retries", time.Now())
		return nil
	}

	if hostileBlock {
		r.session.Advance(artifact.StateInteractiveSolve, "bot defense detected during reconnaissance", time.Now())
		return nil
	}

	if err := r.store.SaveAnalysisSnapshot(snapshot); err != nil {
		return Wrap(KindArtifactIO, err)
	}

	r.session.Advance(artifact.StateLLMAnalysis, "reconnaissance complete", time.Now())
	return nil
}

func loadStorageState(store *artifact.Store) (*browser.StorageState, error) {
	var state browser.StorageState
	if err := store.LoadJSON("storage_state.json", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// pageLooksBlocked is a cheap in-page heuristic distinguishing a hostile
// interstitial from normal content, independent of the full Behavioral
// Scanner pipeline (which already ran once at INIT).
func pageLooksBlocked(page *browser.Page) (bool, error) {
	var title string
	if err := page.Eval(`() => document.title`, &title); err != nil {
		return false, err
	}
	lower := strings.ToLower(title)
	for _, marker := range []string{"just a moment", "checking your browser", "attention required", "captcha", "access denied"} {
		if strings.Contains(lower, marker) {
			return true, nil
		}
	}
	return false, nil
}

// handleInteractiveSolve waits for the operator to clear a challenge
// surfaced during reconnaissance, then recaptures the session and retries
// reconnaissance before proceeding to LLM_ANALYSIS.
func (e *Engine) handleInteractiveSolve(ctx context.Context, r *run) error {
	e.progress.Info("🧩 Waiting for operator to clear challenge...")

	mgr := e.browsers(true)
	if err := mgr.Start(ctx); err != nil {
		return Wrap(KindTransient, err)
	}
	defer mgr.Close()

	page, err := mgr.NewPage(ctx)
	if err != nil {
		return Wrap(KindTransient, err)
	}
	defer page.Close()

	if _, err := page.Navigate(ctx, r.session.URL, e.cfg.Browser.NavigationTimeout); err != nil {
		return Wrap(KindTransient, err)
	}

	solved, err := e.prompt.ConfirmInteractiveSolve(ctx)
	if err != nil {
		return Wrap(KindCancelled, err)
	}
	if !solved {
		r.session.Advance(artifact.StateFailed, "operator cancelled interactive solve", time.Now())
		return nil
	}

	if err := e.captureSession(page, r); err != nil {
		return Wrap(KindArtifactIO, err)
	}

	log, _ := r.store.LoadInteractionLog()
	if log == nil {
		log = &artifact.InteractionLog{AccessMode: artifact.AccessModeGuided}
	}
	solvedTrue := true
	log.CaptchaSolvedManually = &solvedTrue
	log.Steps = append(log.Steps, artifact.InteractionStep{Action: "interactive_solve_confirmed", Timestamp: time.Now()})
	if err := r.store.SaveInteractionLog(log); err != nil {
		return Wrap(KindArtifactIO, err)
	}

	snapshot, err := recon.Build(page, r.session.URL, true)
	if err != nil {
		return Wrap(KindTransient, fmt.Errorf("reconnaissance after solve: %w", err))
	}
	if err := r.store.SaveAnalysisSnapshot(snapshot); err != nil {
		return Wrap(KindArtifactIO, err)
	}

	r.session.Advance(artifact.StateLLMAnalysis, "operator solved challenge", time.Now())
	return nil
}

// handleLLMAnalysis calls the Understanding agent and applies CI/expert
// feasibility policy (spec §4.1, scenario S3).
func (e *Engine) handleLLMAnalysis(ctx context.Context, r *run) error {
	e.progress.Info("🤖 Asking the model whether this page can be scraped...")

	snapshot, err := r.store.LoadAnalysisSnapshot()
	if err != nil {
		return Wrap(KindArtifactIO, err)
	}

	var understanding *artifact.Understanding
	err = e.withRetry(ctx, r, "understanding_call", func(ctx context.Context) error {
		u, callErr := e.callUnderstanding(ctx, r, snapshot)
		if callErr != nil {
			return callErr
		}
		understanding = u
		return nil
	})
	if err != nil {
		return Wrap(KindTransient, err)
	}

	if err := r.store.SaveUnderstanding(understanding); err != nil {
		return Wrap(KindArtifactIO, err)
	}

	feasible := understanding.ScrapingPossible && understanding.Confidence >= 0.5
	if !feasible {
		if r.ci {
			r.session.Advance(artifact.StateFailed,
				fmt.Sprintf("low confidence (%.2f) or not feasible: %s", understanding.Confidence, understanding.Reason),
				time.Now())
			return nil
		}
		proceed, promptErr := e.prompt.ConfirmLowConfidenceOverride(ctx, understanding)
		if promptErr != nil {
			return Wrap(KindCancelled, promptErr)
		}
		if !proceed {
			r.session.Advance(artifact.StateFailed, "operator declined low-confidence override", time.Now())
			return nil
		}
	}

	r.session.Advance(artifact.StateUserConfig, "understanding accepted", time.Now())
	return nil
}

// handleUserConfig finalizes a RunConfig, collapsing to CI defaults or
// consulting the operator, then enforces the headed-coercion invariant.
func (e *Engine) handleUserConfig(ctx context.Context, r *run) error {
	e.progress.Info("⚙️  Finalizing run configuration...")

	understanding, err := r.store.LoadUnderstanding()
	if err != nil {
		return Wrap(KindArtifactIO, err)
	}

	var cfg artifact.RunConfig
	if r.ci {
		fields := understanding.AvailableFields
		if len(fields) > 5 {
			fields = fields[:5]
		}
		cfg = artifact.RunConfig{
			Fields:      fields,
			Pagination:  artifact.PaginationFirstPage,
			BrowserMode: understanding.RecommendedBrowserMode,
			Format:      artifact.FormatJSON,
		}
	} else {
		fields, err := e.prompt.ChooseFields(ctx, understanding.AvailableFields)
		if err != nil {
			return Wrap(KindCancelled, err)
		}
		pagination, err := e.prompt.ChoosePagination(ctx, understanding.Pagination)
		if err != nil {
			return Wrap(KindCancelled, err)
		}
		format, err := e.prompt.ChooseFormat(ctx)
		if err != nil {
			return Wrap(KindCancelled, err)
		}
		browserMode, err := e.prompt.ChooseBrowserMode(ctx, understanding.RecommendedBrowserMode)
		if err != nil {
			return Wrap(KindCancelled, err)
		}
		cfg = artifact.RunConfig{Fields: fields, Pagination: pagination, Format: format, BrowserMode: browserMode}
	}

	cfg.PaginationConfig = paginationConfigFor(cfg.Pagination)
	cfg.NextButtonSelector = understanding.Pagination.NextButtonSelector
	if r.session.Flags.LoginPerformed {
		cfg.BrowserMode = artifact.BrowserHeaded
	}

	if err := r.store.SaveRunConfig(&cfg); err != nil {
		return Wrap(KindArtifactIO, err)
	}

	r.session.Advance(artifact.StateCodegen, "configuration finalized", time.Now())
	return nil
}

// paginationConfigFor derives the runtime-facing PaginationConfig from the
// operator/CI-chosen PaginationChoice.
func paginationConfigFor(choice artifact.PaginationChoice) artifact.PaginationConfig {
	switch choice {
	case artifact.PaginationLimit5:
		return artifact.PaginationConfig{Mode: artifact.PaginationModeAll, MaxPages: 5}
	case artifact.PaginationAllPages:
		return artifact.PaginationConfig{Mode: artifact.PaginationModeAll, MaxPages: 50}
	default:
		return artifact.PaginationConfig{Mode: artifact.PaginationModeFirstPage, MaxPages: 1}
	}
}

// handleCodegen calls the CodeGen agent and writes generated_scraper.py
// plus the runtime library it imports.
func (e *Engine) handleCodegen(ctx context.Context, r *run) error {
	e.progress.Info("🛠️  Generating scraper source...")

	snapshot, err := r.store.LoadAnalysisSnapshot()
	if err != nil {
		return Wrap(KindArtifactIO, err)
	}
	understanding, err := r.store.LoadUnderstanding()
	if err != nil {
		return Wrap(KindArtifactIO, err)
	}
	cfg, err := r.store.LoadRunConfig()
	if err != nil {
		return Wrap(KindArtifactIO, err)
	}

	var report *agents.SafetyReport
	err = e.withRetry(ctx, r, "codegen_call", func(ctx context.Context) error {
		rep, callErr := agents.CodeGen(ctx, e.llm, r.store, snapshot, understanding, cfg)
		report = rep
		return callErr
	})
	if err != nil {
		return Wrap(KindTransient, err)
	}
	if report != nil && !report.Safe {
		var names []string
		for _, v := range report.Violations {
			names = append(names, v.Type.String())
		}
		r.events.Warn(logging.CategoryAgent, "codegen safety violations", map[string]string{"violations": strings.Join(names, ",")})
	}

	r.session.Advance(artifact.StateTest, "scraper generated", time.Now())
	return nil
}

const previewSampleSize = 10

// handleTest runs the generated scraper once and routes based on outcome
// and (in interactive mode) the operator's review decision.
func (e *Engine) handleTest(ctx context.Context, r *run) error {
	e.progress.Info("🧪 Running generated scraper...")

	ok, output, err := e.executor.Run(ctx, r.store.Path("generated_scraper.py"), r.store.Dir(), e.cfg.Subprocess.TestTimeout)
	if err != nil {
		return Wrap(KindScraperRuntime, err)
	}

	if !ok {
		if r.ci {
			r.session.Advance(artifact.StateFailed, "test run produced no data: "+truncate(output, 500), time.Now())
			return nil
		}
		r.events.Warn(logging.CategoryEngine, "test run failed", map[string]string{"output": truncate(output, 2000)})
		r.session.Advance(artifact.StateRepair, "test execution failed", time.Now())
		return nil
	}

	if r.ci {
		r.session.Advance(artifact.StateApproved, "CI mode accepts first successful test", time.Now())
		return nil
	}

	sample, total, previewErr := r.store.ReadOutputPreview(previewSampleSize)
	if previewErr != nil {
		return Wrap(KindArtifactIO, previewErr)
	}

	decision, columns, err := e.prompt.ReviewTest(ctx, total, sample)
	if err != nil {
		return Wrap(KindCancelled, err)
	}

	return e.applyTestDecision(r, decision, columns)
}

func (e *Engine) applyTestDecision(r *run, decision TestDecision, columns []string) error {
	switch decision {
	case TestAccept:
		r.session.Advance(artifact.StateApproved, "operator accepted preview", time.Now())
	case TestFixColumns:
		r.session.Flags.FixColumns = columns
		r.session.Advance(artifact.StateRepair, "operator flagged columns", time.Now())
	case TestRegenerate:
		r.session.Advance(artifact.StateCodegen, "operator requested regeneration", time.Now())
	case TestReconfigure:
		r.session.Advance(artifact.StateUserConfig, "operator requested reconfiguration", time.Now())
	case TestManual:
		r.session.Advance(artifact.StateGuidedAccess, "operator chose manual access", time.Now())
	case TestAbort:
		r.session.Advance(artifact.StateDone, "operator aborted", time.Now())
	default:
		return Wrap(KindSchema, fmt.Errorf("unknown test decision %q", decision))
	}
	return nil
}

// repairEntryCount counts how many times this session has already entered
// REPAIR, used to resolve spec §9's documented re-entry behavior.
func repairEntryCount(session *artifact.Session) int {
	n := 0
	for _, h := range session.History {
		if h.To == artifact.StateRepair {
			n++
		}
	}
	return n
}

// handleRepair runs the bounded Repair Loop (spec §4.3). A column-hint
// re-entry following a prior completed repair pass transitions straight to
// FAILED without another repair attempt — spec §9 documents this as
// observed, if suspicious, source behavior that this implementation
// preserves rather than "fixes".
func (e *Engine) handleRepair(ctx context.Context, r *run) error {
	if len(r.session.Flags.FixColumns) > 0 && repairEntryCount(r.session) > 1 {
		r.session.Advance(artifact.StateFailed, "column re-flag after a prior repair pass is not retried", time.Now())
		return nil
	}

	e.progress.Info("🩹 Attempting self-repair...")

	loop := e.buildRepairLoop(r)
	scriptPath := r.store.Path("generated_scraper.py")

	runner := func(ctx context.Context) (bool, string, error) {
		ok, output, runErr := e.executor.Run(ctx, scriptPath, r.store.Dir(), e.cfg.Subprocess.TestTimeout)
		if runErr != nil {
			return false, "", runErr
		}
		return ok, output, nil
	}

	repairAgent := func(ctx context.Context, output string, attempt int, columnHints []string) error {
		current, loadErr := r.store.LoadScraperSource()
		if loadErr != nil {
			return loadErr
		}
		_, repairErr := agents.Repair(ctx, e.llm, r.store, current, output, columnHints, attempt)
		return repairErr
	}

	success, err := loop.Run(ctx, runner, repairAgent, r.session.Flags.FixColumns)
	if err != nil {
		return Wrap(KindScraperRuntime, err)
	}

	if success {
		r.session.Advance(artifact.StateApproved, "repair succeeded", time.Now())
		return nil
	}

	if r.ci {
		r.session.Advance(artifact.StateFailed, "repair budget exhausted", time.Now())
		return nil
	}

	decision, columns, err := e.prompt.ReviewTest(ctx, 0, nil)
	if err != nil {
		return Wrap(KindCancelled, err)
	}
	return e.applyTestDecision(r, decision, columns)
}

// handleApproved performs the final, full-budget run before sealing the
// project DONE (scenario S5).
func (e *Engine) handleApproved(ctx context.Context, r *run) error {
	e.progress.Info("🏁 Running final pass...")

	var ok bool
	var output string
	err := e.withRetry(ctx, r, "final_run", func(ctx context.Context) error {
		var runErr error
		ok, output, runErr = e.executor.Run(ctx, r.store.Path("generated_scraper.py"), r.store.Dir(), e.cfg.Subprocess.FinalTimeout)
		if runErr != nil {
			return runErr
		}
		if !ok {
			return fmt.Errorf("%s", output)
		}
		return nil
	})
	if err != nil {
		r.session.Advance(artifact.StateFailed, err.Error(), time.Now())
		return nil
	}

	if err := report.Generate(r.store, r.session); err != nil {
		e.logger.Warn("report generation failed", zap.Error(err))
	}

	r.session.Advance(artifact.StateDone, "final run succeeded", time.Now())
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
