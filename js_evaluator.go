//go:build js_eval

package atom

import (
	"github.com/dop251/goja"
)

// jsEvaluator runs expressions in a fresh goja runtime per evaluation. Go
// maps are exposed as JS objects, so comparisons between them are not
// identity aware.
type jsEvaluator struct {
	cfg engineConfig
}

// NewJSEvaluator returns an Evaluator backed by goja.
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	return &jsEvaluator{cfg: newEngineConfig(opts)}
}

func (e *jsEvaluator) engine() string { return "js" }

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	ctx = ctx.withDefaults()
	program, err := e.program(expression)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, ctx.siteLabel(), err)
	}
	return e.run(ctx, expression, program)
}

func (e *jsEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	program, err := e.program(expression)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, "", err)
	}
	config := applyCompileOptions(opts)
	return ruleFunc(func(ctx RuleContext) (any, error) {
		return e.run(config.context(ctx).withDefaults(), expression, program)
	}), nil
}

func (e *jsEvaluator) program(expression string) (*goja.Program, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("js", errEmptyExpression)
	}
	return cachedProgram(e.cfg, "js", expression, func() (*goja.Program, error) {
		return goja.Compile("", "(function(){ return ("+expression+"); })()", false)
	})
}

func (e *jsEvaluator) run(ctx RuleContext, expression string, program *goja.Program) (any, error) {
	vm := goja.New()
	for name, value := range ctx.bindings() {
		if err := vm.Set(name, value); err != nil {
			return nil, wrapEvaluationError("js", expression, ctx.siteLabel(), err)
		}
	}
	if e.cfg.registry != nil {
		_ = vm.Set("call", e.cfg.call)
		for _, name := range e.cfg.functionNames() {
			_ = vm.Set(name, func(arguments ...any) (any, error) {
				return e.cfg.call(name, arguments...)
			})
		}
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, ctx.siteLabel(), err)
	}
	return value.Export(), nil
}

func jsEvaluatorAvailable() bool {
	return true
}
