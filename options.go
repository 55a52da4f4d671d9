package atom

import (
	"strings"

	"github.com/goliatone/go-atom/pkg/activity"
)

// Option configures a Store.
type Option func(*storeConfig)

type storeConfig struct {
	name           string
	logger         Logger
	evaluator      Evaluator
	programCache   ProgramCache
	functions      *FunctionRegistry
	activityHooks  activity.Hooks
	activityConfig activity.Config
	defaults       Document
	onTrace        TraceFunc
}

func applyOptions(opts []Option) storeConfig {
	cfg := storeConfig{
		name:           "atom",
		logger:         noopLogger{},
		activityConfig: activity.Config{Enabled: true, Channel: activity.DefaultChannel},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithName labels the store in logs, errors and activity events.
func WithName(name string) Option {
	return func(cfg *storeConfig) {
		if name = strings.TrimSpace(name); name != "" {
			cfg.name = name
		}
	}
}

// WithLogger attaches a Logger. A nil logger disables logging.
func WithLogger(logger Logger) Option {
	return func(cfg *storeConfig) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithEvaluator sets the engine used for watcher expressions and Evaluate.
// Without it an expr-lang evaluator is created on first use.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *storeConfig) {
		cfg.evaluator = e
	}
}

// WithProgramCache registers a program cache for the default evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *storeConfig) {
		cfg.programCache = cache
	}
}

// WithFunctionRegistry exposes registry functions to the default evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *storeConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the default evaluator. A
// later option with the same name wins.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *storeConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Replace(name, fn)
	}
}

// WithActivityHooks attaches activity hooks notified after each publish and
// watcher registration. Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	hooks = append(activity.Hooks(nil), hooks...)
	return func(cfg *storeConfig) {
		cfg.activityHooks = hooks
	}
}

// WithActivityConfig overrides the activity emitter configuration.
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *storeConfig) {
		cfg.activityConfig = config
	}
}

// WithDefaults layers defaults beneath the initial document: keys missing or
// nil in the initial document are filled from defaults.
func WithDefaults(defaults Document) Option {
	return func(cfg *storeConfig) {
		cfg.defaults = defaults
	}
}

// WithTraceHook calls fn with the trace of every successful update, after
// subscribers have been notified.
func WithTraceHook(fn TraceFunc) Option {
	return func(cfg *storeConfig) {
		cfg.onTrace = fn
	}
}
