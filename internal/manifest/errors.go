package manifest

import "fmt"

// ValidationError reports a field that violates the manifest schema.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid manifest: " + e.Reason
	}
	return fmt.Sprintf("invalid manifest: %s: %s", e.Field, e.Reason)
}

// ParseError wraps a failure to decode manifest text as JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse manifest: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// StateError reports a lifecycle operation that is not legal in the
// manifest's current status.
type StateError struct {
	Op   string
	From Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: not allowed in status %q", e.Op, e.From)
}
