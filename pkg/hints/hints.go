// Package hints labels errors that signal a skipped step rather than a
// failure.
//
// Several stages of a sync run can legitimately have nothing to do: a game
// with notifications disabled, an archive step with no previous save to keep,
// a hook list that is empty. Returning a plain error for these would force
// callers to import sentinel errors from every producing package. Instead,
// producers wrap such errors as hints, and callers check the behavior via
// IsHint without coupling to the concrete error value.
package hints

import "errors"

type hintErr struct {
	err error
}

func (h *hintErr) Error() string {
	if h == nil || h.err == nil {
		return "unknown hint"
	}
	return h.err.Error()
}
func (h *hintErr) IsHint() bool  { return true }
func (h *hintErr) Unwrap() error { return h.err }

// New creates a hint from a string.
func New(msg string) error {
	return &hintErr{err: errors.New(msg)}
}

// Wrap takes an existing error and "promotes" it to a hint.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return &hintErr{err: err}
}

// IsHint checks if any error in the chain behaves like a hint.
func IsHint(err error) bool {
	var h interface{ IsHint() bool }
	return errors.As(err, &h) && h.IsHint()
}

// Is checks if the error is a hint AND matches the target error.
func Is(err, target error) bool {
	return IsHint(err) && errors.Is(err, target)
}
