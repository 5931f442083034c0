// Package condition describes predicates that decide which branch of a
// conditional schema node applies to the current model.
package condition

// Evaluator decides whether an expression holds for the field at path.
type Evaluator interface {
	Eval(path, expression string, ctx Context) (bool, error)
}

// Context carries the values an expression may reference.
//
// Values is the object enclosing the conditional (siblings are looked up by
// name), Self the value at the conditional's own position (`value`), Root the
// whole model (`root.` prefix) and Extras caller supplied data such as roles
// or feature flags (`extras.` prefix).
type Context struct {
	Values map[string]any
	Self   any
	Root   map[string]any
	Extras map[string]any
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(path, expression string, ctx Context) (bool, error)

// Eval calls fn.
func (fn EvaluatorFunc) Eval(path, expression string, ctx Context) (bool, error) {
	return fn(path, expression, ctx)
}
