//go:build !js_eval

package atom

// NewJSEvaluator returns nil unless the module is built with the js_eval
// tag. NewEvaluator("js") reports the missing tag as an error instead.
func NewJSEvaluator(...EvaluatorOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
