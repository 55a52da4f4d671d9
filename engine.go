package atom

import (
	"errors"
	"sort"
	"strings"
)

var errEmptyExpression = errors.New("expression must not be empty")

// EvaluatorOption configures one of the built-in expression engines.
type EvaluatorOption func(*engineConfig)

type engineConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// WithProgramCacheFor shares compiled programs through cache. Entries are
// keyed per engine, so one cache can back several engines.
func WithProgramCacheFor(cache ProgramCache) EvaluatorOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// WithFunctionsFor exposes a copy of registry to expressions. Later
// registrations on registry are not seen.
func WithFunctionsFor(registry *FunctionRegistry) EvaluatorOption {
	return func(cfg *engineConfig) {
		cfg.registry = registry.Clone()
	}
}

func newEngineConfig(opts []EvaluatorOption) engineConfig {
	var cfg engineConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg engineConfig) functionNames() []string {
	if cfg.registry == nil {
		return nil
	}
	return cfg.registry.Names()
}

func (cfg engineConfig) call(name string, arguments ...any) (any, error) {
	return cfg.registry.Call(name, arguments...)
}

// cachedProgram returns the program stored under engine and key, compiling
// and storing it on a miss. Entries of another type count as a miss.
func cachedProgram[P any](cfg engineConfig, engine, key string, compile func() (P, error)) (P, error) {
	cacheKey := engine + "\x00" + key
	if cfg.cache != nil {
		if cached, ok := cfg.cache.Get(cacheKey); ok {
			if program, ok := cached.(P); ok {
				return program, nil
			}
		}
	}
	program, err := compile()
	if err != nil {
		return program, err
	}
	if cfg.cache != nil {
		cfg.cache.Set(cacheKey, program)
	}
	return program, nil
}

var reservedBindings = []string{"now", "args", "metadata", "doc"}

// bindings returns the variables an expression sees. Top-level keys of a map
// snapshot come first; now, args, metadata and doc shadow document keys with
// the same name.
func (ctx RuleContext) bindings() map[string]any {
	vars := map[string]any{}
	if snapshot, ok := ctx.Snapshot.(map[string]any); ok {
		for key, value := range snapshot {
			vars[key] = value
		}
	}
	vars["now"] = ctx.timestamp()
	vars["args"] = ctx.Args
	vars["metadata"] = ctx.Metadata
	vars["doc"] = ctx.Snapshot
	return vars
}

// snapshotKeys lists the document keys bound next to the reserved names,
// sorted.
func snapshotKeys(vars map[string]any) []string {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		if isReservedBinding(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func isReservedBinding(key string) bool {
	for _, reserved := range reservedBindings {
		if key == reserved {
			return true
		}
	}
	return false
}

// Engines lists the expression engines compiled into this build.
func Engines() []string {
	engines := []string{"expr", "cel"}
	if jsEvaluatorAvailable() {
		engines = append(engines, "js")
	}
	return engines
}

// NewEvaluator builds an evaluator by engine name. An empty name selects
// expr.
func NewEvaluator(engine string, opts ...EvaluatorOption) (Evaluator, error) {
	switch name := strings.ToLower(strings.TrimSpace(engine)); name {
	case "", "expr":
		return NewExprEvaluator(opts...), nil
	case "cel":
		return NewCELEvaluator(opts...), nil
	case "js":
		if !jsEvaluatorAvailable() {
			return nil, wrapEvaluatorError(name, errors.New("requires the js_eval build tag"))
		}
		return NewJSEvaluator(opts...), nil
	default:
		return nil, wrapEvaluatorError(name, errors.New("unknown engine"))
	}
}

// EngineName reports the engine behind e: expr, cel, js, custom for other
// implementations, or unknown for nil.
func EngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	if named, ok := e.(interface{ engine() string }); ok {
		return named.engine()
	}
	return "custom"
}
