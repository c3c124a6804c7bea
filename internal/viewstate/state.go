package viewstate

import "fmt"

// State is the record a view renders. Data is never nil. Version increases
// by one on every transition.
type State[T any] struct {
	IsLoading bool
	Data      []T
	Error     string
	Version   uint64
}

// Settled reports whether the state is neither loading nor failed.
func (s State[T]) Settled() bool {
	return !s.IsLoading && s.Error == ""
}

// IntentError is returned by a failed intent; its text is what State.Error shows.
type IntentError struct {
	Intent string
	Noun   string
	Err    error
}

func (e *IntentError) Error() string {
	return fmt.Sprintf("Failed to %s %s: %v", e.Intent, e.Noun, e.Err)
}

func (e *IntentError) Unwrap() error {
	return e.Err
}
