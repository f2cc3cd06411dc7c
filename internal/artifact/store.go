package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store owns one project directory and performs whole-file-replace reads
// and writes of its typed documents. Two Stores must never point at the
// same directory concurrently; no locking is provided (matches the
// single-Engine-per-project-dir assumption of the workflow engine).
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating dir and its logs/llm_logs/
// output/ subdirectories if absent.
func New(dir string) (*Store, error) {
	s := &Store{dir: dir}
	for _, sub := range []string{"", "logs", "llm_logs", "output"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create project dir %s: %w", filepath.Join(dir, sub), err)
		}
	}
	return s, nil
}

// Dir returns the project's root directory.
func (s *Store) Dir() string { return s.dir }

// Path joins a relative name onto the project directory.
func (s *Store) Path(name string) string { return filepath.Join(s.dir, name) }

func (s *Store) writeJSON(name string, v interface{}) error {
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure parent dir for %s: %w", name, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func (s *Store) readJSON(name string, v interface{}) error {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// Exists reports whether the named artifact file is present.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

func (s *Store) SaveSession(sess *Session) error { return s.writeJSON("session.json", sess) }
func (s *Store) LoadSession() (*Session, error) {
	var sess Session
	if err := s.readJSON("session.json", &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) SaveScanProfile(p *ScanProfile) error { return s.writeJSON("scan_profile.json", p) }
func (s *Store) LoadScanProfile() (*ScanProfile, error) {
	var p ScanProfile
	if err := s.readJSON("scan_profile.json", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SaveAnalysisSnapshot(a *AnalysisSnapshot) error {
	return s.writeJSON("analysis_snapshot.json", a)
}
func (s *Store) LoadAnalysisSnapshot() (*AnalysisSnapshot, error) {
	var a AnalysisSnapshot
	if err := s.readJSON("analysis_snapshot.json", &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) SaveUnderstanding(u *Understanding) error {
	return s.writeJSON("llm_understanding.json", u)
}
func (s *Store) LoadUnderstanding() (*Understanding, error) {
	var u Understanding
	if err := s.readJSON("llm_understanding.json", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) SaveRunConfig(c *RunConfig) error { return s.writeJSON("run_config.json", c) }
func (s *Store) LoadRunConfig() (*RunConfig, error) {
	var c RunConfig
	if err := s.readJSON("run_config.json", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) SaveInteractionLog(l *InteractionLog) error {
	return s.writeJSON("interaction.json", l)
}
func (s *Store) LoadInteractionLog() (*InteractionLog, error) {
	var l InteractionLog
	if err := s.readJSON("interaction.json", &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) SaveWideEvent(e *WideEvent) error { return s.writeJSON("wide_event.json", e) }
func (s *Store) LoadWideEvent() (*WideEvent, error) {
	var e WideEvent
	if err := s.readJSON("wide_event.json", &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// SaveScraperSource writes the emitted scraper, whole-file-replace.
func (s *Store) SaveScraperSource(code string) error {
	path := s.Path("generated_scraper.py")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(code), 0o644); err != nil {
		return fmt.Errorf("write generated_scraper.py: %w", err)
	}
	return os.Rename(tmp, path)
}

func (s *Store) LoadScraperSource() (string, error) {
	data, err := os.ReadFile(s.Path("generated_scraper.py"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteLLMLog persists a raw LLM response under llm_logs/, matching the
// naming convention of spec §6 (call1_response.json, codegen_response.py,
// repair_response_<epoch>.py).
func (s *Store) WriteLLMLog(name, content string) error {
	path := filepath.Join(s.dir, "llm_logs", name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// SaveJSON is a public whole-file-replace write for the small set of
// optional artifacts (cookies.json, storage_state.json) that have no
// dedicated typed accessor.
func (s *Store) SaveJSON(name string, v interface{}) error { return s.writeJSON(name, v) }

// LoadJSON is the read counterpart of SaveJSON.
func (s *Store) LoadJSON(name string, v interface{}) error { return s.readJSON(name, v) }

// OutputDataPath returns the canonical output/data.json path.
func (s *Store) OutputDataPath() string { return s.Path(filepath.Join("output", "data.json")) }

// ReadOutputPreview loads output/data.json and returns up to limit records
// plus the total record count, for the TEST state's operator review step.
func (s *Store) ReadOutputPreview(limit int) ([]map[string]interface{}, int, error) {
	data, err := os.ReadFile(s.OutputDataPath())
	if err != nil {
		return nil, 0, err
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, 0, fmt.Errorf("parse output/data.json: %w", err)
	}
	total := len(records)
	if limit > 0 && total > limit {
		records = records[:limit]
	}
	return records, total, nil
}

// OutputNonEmpty reports whether output/data.json exists and is non-empty,
// the additional success gate spec §6 requires of the script executor.
func (s *Store) OutputNonEmpty() bool {
	info, err := os.Stat(s.OutputDataPath())
	if err != nil {
		return false
	}
	return info.Size() > 2 // more than "[]" or "{}"
}
