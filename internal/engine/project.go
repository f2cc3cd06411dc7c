package engine

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"scrapeforge/internal/artifact"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// domainSlug extracts a filesystem-safe slug from a target URL's host, the
// <domain> component of spec §6's bit-exact project directory name.
func domainSlug(rawURL string) string {
	u, err := url.Parse(rawURL)
	host := ""
	if err == nil {
		host = u.Hostname()
	}
	if host == "" {
		host = rawURL
	}
	host = strings.TrimPrefix(host, "www.")
	slug := nonAlnum.ReplaceAllString(strings.ToLower(host), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "site"
	}
	return slug
}

// ProjectDirName renders spec §6's bit-exact layout:
// project_<domain>_<YYYY_MM_DD_HHMM>[_<suffix>].
func ProjectDirName(rawURL string, now time.Time, suffix string) string {
	name := fmt.Sprintf("project_%s_%s", domainSlug(rawURL), now.Format("2006_01_02_1504"))
	if suffix != "" {
		name += "_" + suffix
	}
	return name
}

// CreateProject scaffolds a new project directory under projectsRoot and
// writes its initial Session document in state INIT (spec §3: "a Session
// is born at create_project").
func CreateProject(projectsRoot, rawURL string, ciMode, expertMode bool, format artifact.OutputFormat, now time.Time) (dir string, store *artifact.Store, err error) {
	name := ProjectDirName(rawURL, now, "")
	dir = filepath.Join(projectsRoot, name)

	store, err = artifact.New(dir)
	if err != nil {
		return "", nil, err
	}

	session := &artifact.Session{
		ProjectID:  uuid.NewString(),
		URL:        rawURL,
		ProjectDir: dir,
		State:      artifact.StateInit,
		CreatedAt:  now,
		UpdatedAt:  now,
		CIMode:     ciMode,
		ExpertMode: expertMode,
		Format:     string(format),
	}
	if err := store.SaveSession(session); err != nil {
		return "", nil, err
	}
	return dir, store, nil
}
