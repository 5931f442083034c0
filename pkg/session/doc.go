// Package session owns a form's live model and decides when to validate it.
//
// A Session merges the frontend schema with the optional backend fragment,
// filters the result against the current model, compiles it (memoised by
// structural hash) and keeps one error message per field. The default policy
// validates on demand: nothing is reported until the first Validate call,
// after which every mutation revalidates while the form is invalid so errors
// clear as the user fixes them.
//
// A Session is owned by a single goroutine.
package session
