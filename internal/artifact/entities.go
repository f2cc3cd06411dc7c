// Package artifact defines the typed JSON documents written to a project
// directory and the store that reads and replaces them.
package artifact

import "time"

// State is a Session's position in the workflow state machine.
type State string

const (
	StateInit             State = "INIT"
	StateGuidedAccess      State = "GUIDED_ACCESS"
	StateRecon             State = "RECON"
	StateInteractiveSolve  State = "INTERACTIVE_SOLVE"
	StateLLMAnalysis       State = "LLM_ANALYSIS"
	StateUserConfig        State = "USER_CONFIG"
	StateCodegen           State = "CODEGEN"
	StateTest              State = "TEST"
	StateRepair            State = "REPAIR"
	StateApproved          State = "APPROVED"
	StateDone              State = "DONE"
	StateFailed            State = "FAILED"
)

// Terminal reports whether s is one of the two terminal states.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// SessionFlags carries the small set of booleans that alter handler
// behavior across the run.
type SessionFlags struct {
	LoginPerformed bool     `json:"login_performed"`
	FixColumns     []string `json:"fix_columns,omitempty"`
	ForceGuided    bool     `json:"force_guided"`
}

// HistoryEntry records one state transition for audit purposes.
type HistoryEntry struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// Session is the Engine's authoritative, continuously-persisted record of
// a project's progress. The on-disk copy after a save is the single source
// of truth: a crash between two saves resumes at the earlier state.
type Session struct {
	ProjectID  string         `json:"project_id"`
	URL        string         `json:"url"`
	ProjectDir string         `json:"project_dir"`
	State      State          `json:"state"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	History    []HistoryEntry `json:"history"`
	Flags      SessionFlags   `json:"flags"`
	CIMode     bool           `json:"ci_mode"`
	ExpertMode bool           `json:"expert_mode"`
	Format     string         `json:"format,omitempty"`
}

// Advance appends a history entry and mutates State in place. Callers
// persist the session immediately after calling Advance.
func (s *Session) Advance(to State, note string, now time.Time) {
	s.History = append(s.History, HistoryEntry{From: s.State, To: to, Timestamp: now, Note: note})
	s.State = to
	s.UpdatedAt = now
}

// RequestInfo is one captured network request classified during a scan.
type RequestInfo struct {
	URL          string `json:"url"`
	Method       string `json:"method"`
	ResourceType string `json:"resource_type"`
}

// NetworkActivity summarizes the requests observed during a scan.
type NetworkActivity struct {
	TotalRequests    int           `json:"total_requests"`
	APIEndpoints     []RequestInfo `json:"api_endpoints"`
	RealtimeConns    int           `json:"realtime_connections"`
	JSONResponses    int           `json:"json_responses"`
	ChallengePathSeen bool         `json:"challenge_path_seen"`
}

// DOMStats captures a snapshot of document structure.
type DOMStats struct {
	NodeCount int     `json:"node_count"`
	AvgDepth  float64 `json:"avg_depth"`
	MaxDepth  int     `json:"max_depth"`
}

// ScrollDependency reports how much content depends on scroll-triggered loading.
type ScrollDependency struct {
	NodeCountBefore       int  `json:"node_count_before"`
	NodeCountAfter        int  `json:"node_count_after"`
	LazyImageCount        int  `json:"lazy_image_count"`
	IntersectionObserver  bool `json:"intersection_observer_available"`
	InfiniteScrollLikely  bool `json:"infinite_scroll_likely"`
}

// TechStack holds the fingerprinting results of stage 8.
type TechStack struct {
	Framework        string `json:"framework"`
	ShadowDOM        bool   `json:"shadow_dom"`
	AntiBot          bool   `json:"anti_bot"`
	BotDefense       bool   `json:"bot_defense"`
	SigninRequirement bool  `json:"signin_requirement"`
}

// StructuralSignals holds stage 9's remaining page-shape measurements.
type StructuralSignals struct {
	IframeCount          int     `json:"iframe_count"`
	NavContentRatio      float64 `json:"nav_content_ratio"`
	AccessibilityScore   float64 `json:"accessibility_score"`
	RepeatingUnitSelector string `json:"repeating_unit_selector,omitempty"`
}

// ScanError records one failed, independently-guarded pipeline stage.
type ScanError struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// AccessRecommendation is the Scan Profile Builder's categorical verdict.
type AccessRecommendation string

const (
	AccessAutomatic AccessRecommendation = "automatic"
	AccessGuided    AccessRecommendation = "guided"
)

// ScanProfile is the Behavioral Scanner's output: a structured description
// of a live page's dynamics and defenses plus two synthesized scores.
type ScanProfile struct {
	NetworkActivity      NetworkActivity      `json:"network_activity"`
	DOMReadyMs           int64                `json:"dom_ready_ms"`
	PreRenderStats       *DOMStats            `json:"pre_render_stats,omitempty"`
	PostRenderStats      *DOMStats            `json:"post_render_stats,omitempty"`
	MutationRatePerSec   float64              `json:"mutation_rate_per_sec"`
	ScrollDependency     *ScrollDependency    `json:"scroll_dependency,omitempty"`
	TechStack            TechStack            `json:"tech_stack"`
	StructuralSignals    StructuralSignals    `json:"structural_signals"`
	ComplexityScore      int                  `json:"complexity_score"`
	HostilityScore       int                  `json:"hostility_score"`
	AccessRecommendation AccessRecommendation `json:"access_recommendation"`
	ComplexityReasons    []string             `json:"complexity_reasons"`
	Errors               []ScanError          `json:"errors,omitempty"`
}

// Section is one candidate extractable block found during reconnaissance.
type Section struct {
	Selector string  `json:"selector"`
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
	SampleHTML string `json:"sample_html,omitempty"`
}

// PaginationSignal is reconnaissance's guess at the page's pagination shape.
type PaginationSignal struct {
	HasNextButton   bool   `json:"has_next_button"`
	NextButtonText  string `json:"next_button_text,omitempty"`
	URLParamPattern string `json:"url_param_pattern,omitempty"`
}

// AnalysisSnapshot is reconnaissance's structured description of the page,
// the direct input to the Understanding agent.
type AnalysisSnapshot struct {
	Sections        []Section        `json:"sections"`
	Pagination      PaginationSignal `json:"pagination"`
	URL             string           `json:"url"`
	Title           string           `json:"title"`
	DetectedTech    string           `json:"detected_tech"`
	InteractionUsed bool             `json:"interaction_used"`
}

// AvailableField is one field the Understanding agent proposes extracting.
type AvailableField struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	SelectorGuess string `json:"selector_guess"`
	Suggested     bool   `json:"suggested,omitempty"`
}

// PaginationStrategy is the Understanding agent's chosen pagination approach.
type PaginationStrategy string

const (
	PaginationNextButton PaginationStrategy = "next_button"
	PaginationURLParam   PaginationStrategy = "url_param"
	PaginationNone       PaginationStrategy = "none"
)

// UnderstandingPagination captures the strategy and its selector, if any.
type UnderstandingPagination struct {
	Strategy           PaginationStrategy `json:"strategy"`
	NextButtonSelector string             `json:"next_button_selector,omitempty"`
}

// BrowserMode selects headless or headed browser operation.
type BrowserMode string

const (
	BrowserHeadless BrowserMode = "headless"
	BrowserHeaded   BrowserMode = "headed"
)

// Understanding is the Understanding agent's structured verdict on whether
// and how a page can be scraped.
type Understanding struct {
	ScrapingPossible       bool                    `json:"scraping_possible"`
	Confidence             float64                 `json:"confidence"`
	RecommendedBrowserMode BrowserMode             `json:"recommended_browser_mode"`
	Reason                 string                  `json:"reason"`
	AvailableFields        []AvailableField        `json:"available_fields"`
	Pagination             UnderstandingPagination `json:"pagination"`
}

// PaginationChoice is the operator/CI-selected page-coverage policy.
type PaginationChoice string

const (
	PaginationFirstPage PaginationChoice = "first_page"
	PaginationLimit5    PaginationChoice = "limit_5"
	PaginationAllPages  PaginationChoice = "all_pages"
)

// PaginationMode is the runtime-facing mode derived from PaginationChoice.
type PaginationMode string

const (
	PaginationModeFirstPage PaginationMode = "first_page"
	PaginationModeAll       PaginationMode = "all"
)

// PaginationConfig is what the Generated Scraper Runtime actually consumes.
type PaginationConfig struct {
	Mode     PaginationMode `json:"mode"`
	MaxPages int            `json:"max_pages"`
}

// OutputFormat is the requested dataset serialization.
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatCSV  OutputFormat = "csv"
	FormatXLSX OutputFormat = "xlsx"
	FormatAll  OutputFormat = "all"
)

// RunConfig is the finalized, engine-owned configuration CodeGen targets.
type RunConfig struct {
	Fields             []AvailableField `json:"fields"`
	Pagination         PaginationChoice `json:"pagination"`
	PaginationConfig   PaginationConfig `json:"pagination_config"`
	NextButtonSelector string           `json:"next_button_selector,omitempty"`
	Format             OutputFormat     `json:"format"`
	BrowserMode        BrowserMode      `json:"browser_mode"`
}

// InteractionStep records one operator action during a guided or
// interactive-solve session.
type InteractionStep struct {
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AccessMode records how the project's initial access was obtained.
type AccessMode string

const (
	AccessModeAutomatic AccessMode = "automatic"
	AccessModeGuided    AccessMode = "guided"
)

// InteractionLog records operator-in-the-loop activity for a project.
type InteractionLog struct {
	AccessMode          AccessMode         `json:"access_mode"`
	Steps               []InteractionStep  `json:"steps"`
	CaptchaSolvedManually *bool            `json:"captcha_solved_manually,omitempty"`
	FinalURL            *string            `json:"final_url,omitempty"`
}

// WideEvent is the single terminal observability record every run produces
// exactly once, on normal or exceptional termination.
type WideEvent struct {
	EventType       string    `json:"event_type"`
	ProjectID       string    `json:"project_id"`
	URL             string    `json:"url"`
	Success         bool      `json:"success"`
	DurationSeconds float64   `json:"duration_seconds"`
	Error           *string   `json:"error"`
	WizardMode      bool      `json:"wizard_mode"`
	CIMode          bool      `json:"ci_mode"`
	GuidedTour      bool      `json:"guided_tour"`
	FinalState      State     `json:"final_state"`
	Timestamp       time.Time `json:"timestamp"`
}
