package prompt

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("prompt: aborted")
	// ErrIncomplete is returned when the model is still invalid after the
	// configured number of correction rounds.
	ErrIncomplete = errors.New("prompt: form still invalid")
)
