package atom

import (
	"fmt"
	"strings"
	"time"
)

// Evaluator returns the store's expression engine, building the default
// expr-lang evaluator on first use.
func (s *Store) Evaluator() Evaluator {
	s.evaluatorOnce.Do(func() {
		if s.cfg.evaluator != nil {
			s.evaluator = s.cfg.evaluator
			return
		}
		s.evaluator = NewExprEvaluator(
			WithProgramCacheFor(s.cfg.programCache),
			WithFunctionsFor(s.cfg.functions),
		)
	})
	return s.evaluator
}

// Evaluate runs expression against the current document. Top-level keys are
// bound as variables and the whole document as doc.
func (s *Store) Evaluate(expression string) (any, error) {
	return s.EvaluateWith(RuleContext{}, expression)
}

// EvaluateWith runs expression with ctx, using the current document when
// ctx.Snapshot is nil.
func (s *Store) EvaluateWith(ctx RuleContext, expression string) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("atom: expression must not be empty")
	}
	evaluator := s.Evaluator()
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	if ctx.Snapshot == nil {
		ctx.Snapshot = s.Get()
	}
	if ctx.Site == "" {
		ctx.Site = "evaluate"
	}
	ctx = ctx.withDefaults()
	engine := EngineName(evaluator)
	start := time.Now()
	value, err := evaluator.Evaluate(ctx, expression)
	err = wrapEvaluationError(engine, expression, ctx.siteLabel(), err)
	s.cfg.logger.LogEvent(LogEvent{
		Store:    s.cfg.name,
		Kind:     EventEvaluate,
		Version:  s.Version(),
		Engine:   engine,
		Expr:     expression,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// ExprProjection compiles expression once and returns a projection that
// evaluates it against each published document.
func ExprProjection(e Evaluator, expression string) (ProjectionE[any], error) {
	if e == nil {
		return nil, ErrNoEvaluator
	}
	rule, err := e.Compile(expression, WithCompileSite("projection"))
	if err != nil {
		return nil, err
	}
	return func(doc Document) (any, error) {
		return rule.Evaluate(RuleContext{Snapshot: doc})
	}, nil
}
