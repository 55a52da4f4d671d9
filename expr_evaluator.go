package atom

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// exprEvaluator runs github.com/expr-lang/expr programs. Registry functions
// are callable by name, and through call("name", args...).
type exprEvaluator struct {
	cfg engineConfig
}

// NewExprEvaluator returns the default Evaluator.
func NewExprEvaluator(opts ...EvaluatorOption) Evaluator {
	return &exprEvaluator{cfg: newEngineConfig(opts)}
}

func (e *exprEvaluator) engine() string { return "expr" }

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	return e.run(ctx.withDefaults(), expression, program)
}

func (e *exprEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	config := applyCompileOptions(opts)
	return ruleFunc(func(ctx RuleContext) (any, error) {
		return e.run(config.context(ctx).withDefaults(), expression, program)
	}), nil
}

func (e *exprEvaluator) program(expression string) (*exprvm.Program, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("expr", errEmptyExpression)
	}
	return cachedProgram(e.cfg, "expr", expression, func() (*exprvm.Program, error) {
		options := []exprlang.Option{exprlang.AllowUndefinedVariables()}
		for _, name := range e.cfg.functionNames() {
			options = append(options, exprlang.Function(name, func(arguments ...any) (any, error) {
				return e.cfg.call(name, arguments...)
			}))
		}
		program, err := exprlang.Compile(expression, options...)
		if err != nil {
			return nil, wrapEvaluationError("expr", expression, "", err)
		}
		return program, nil
	})
}

func (e *exprEvaluator) run(ctx RuleContext, expression string, program *exprvm.Program) (any, error) {
	env := ctx.bindings()
	if e.cfg.registry != nil {
		if _, taken := env["call"]; !taken {
			env["call"] = e.cfg.call
		}
	}
	result, err := exprlang.Run(program, env)
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, ctx.siteLabel(), err)
	}
	return result, nil
}
