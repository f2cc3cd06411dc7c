package engine

import "fmt"

// Kind is the sum type of error kinds spec §9 calls for in place of an
// ad-hoc exception hierarchy: "use a sum type of error kinds... callers
// match and decide rather than catching by class name."
type Kind int

const (
	KindTransient Kind = iota
	KindHostility
	KindSchema
	KindScraperRuntime
	KindCancelled
	KindArtifactIO
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient_transport"
	case KindHostility:
		return "hostility_detected"
	case KindSchema:
		return "schema_malformed"
	case KindScraperRuntime:
		return "scraper_runtime"
	case KindCancelled:
		return "cancelled"
	case KindArtifactIO:
		return "artifact_io"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with its taxonomy Kind (spec §7's error
// taxonomy table). The top-level run loop matches on Kind to decide
// whether a failure re-raises or terminates silently (cancellation).
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap constructs an *Error of the given kind.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// IsCancelled reports whether err is (or wraps) a cancellation.
func IsCancelled(err error) bool {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind == KindCancelled
	}
	return false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
