package atom

import (
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// celEvaluator declares every bound variable as dyn, with now as a
// timestamp. CEL checks identifiers at compile time, so programs are built
// per set of top-level document keys and Compile defers the work to the
// first evaluation. Registry functions are reached through
// call("name", [args...]).
type celEvaluator struct {
	cfg engineConfig
}

// NewCELEvaluator returns an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...EvaluatorOption) Evaluator {
	return &celEvaluator{cfg: newEngineConfig(opts)}
}

func (e *celEvaluator) engine() string { return "cel" }

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", errEmptyExpression)
	}
	ctx = ctx.withDefaults()
	vars := ctx.bindings()
	keys := snapshotKeys(vars)
	program, err := cachedProgram(e.cfg, "cel", strings.Join(keys, ",")+"\x00"+expression, func() (celgo.Program, error) {
		return e.compile(expression, keys)
	})
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.siteLabel(), err)
	}
	out, _, err := program.Eval(vars)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.siteLabel(), err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", errEmptyExpression)
	}
	config := applyCompileOptions(opts)
	return ruleFunc(func(ctx RuleContext) (any, error) {
		return e.Evaluate(config.context(ctx), expression)
	}), nil
}

func (e *celEvaluator) compile(expression string, keys []string) (celgo.Program, error) {
	options := []celgo.EnvOption{celgo.Variable("now", celgo.TimestampType)}
	for _, name := range reservedBindings[1:] {
		options = append(options, celgo.Variable(name, celgo.DynType))
	}
	for _, key := range keys {
		options = append(options, celgo.Variable(key, celgo.DynType))
	}
	if e.cfg.registry != nil {
		options = append(options, celgo.Function("call",
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(e.call),
			),
		))
	}
	env, err := celgo.NewEnv(options...)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return env.Program(ast)
}

func (e *celEvaluator) call(name, arguments ref.Val) ref.Val {
	fn, ok := name.Value().(string)
	if !ok {
		return types.NewErr("atom: call name must be a string")
	}
	list, ok := arguments.(traits.Lister)
	if !ok {
		return types.NewErr("atom: call arguments must be a list")
	}
	size, ok := list.Size().(types.Int)
	if !ok {
		return types.NewErr("atom: call arguments have no size")
	}
	args := make([]any, 0, int(size))
	for i := types.Int(0); i < size; i++ {
		args = append(args, list.Get(i).Value())
	}
	result, err := e.cfg.call(fn, args...)
	if err != nil {
		return types.NewErr("atom: %s: %s", fn, err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
