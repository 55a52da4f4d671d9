package atom

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMutatorRequired indicates Update received a nil mutator.
	ErrMutatorRequired = errors.New("atom: mutator must be provided")
	// ErrWatcherNameRequired indicates a watcher without a name.
	ErrWatcherNameRequired = errors.New("atom: watcher name must be provided")
	// ErrWatcherFnRequired indicates a watcher without a reaction.
	ErrWatcherFnRequired = errors.New("atom: watcher fn must be provided")
	// ErrNotContainer indicates a path walked through a scalar value.
	ErrNotContainer = errors.New("atom: value is not a map or slice")
	// ErrIndexOutOfRange indicates a slice index outside the slice bounds.
	ErrIndexOutOfRange = errors.New("atom: slice index out of range")
	// ErrInvalidPath indicates a malformed path segment.
	ErrInvalidPath = errors.New("atom: invalid path")
	// ErrPathNotFound indicates a path that does not exist in the document.
	ErrPathNotFound = errors.New("atom: path not found")
	// ErrNoEvaluator indicates an expression was used without an evaluator.
	ErrNoEvaluator = errors.New("atom: evaluator not configured")
	// ErrPredicateResult indicates a watcher expression that did not yield a bool.
	ErrPredicateResult = errors.New("atom: watcher expression must evaluate to bool")
)

// Stage names the step of an update that failed.
type Stage string

const (
	StageMutator   Stage = "mutator"
	StageWatcher   Stage = "watcher"
	StagePredicate Stage = "predicate"
)

// MutationError reports an aborted update. The store keeps its pre-update
// value when one is returned.
type MutationError struct {
	Store   string
	Stage   Stage
	Watcher string
	Err     error
}

func (e *MutationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Watcher != "" {
		return fmt.Sprintf("atom: %s update aborted in %s %q: %v", e.Store, e.Stage, e.Watcher, e.Err)
	}
	return fmt.Sprintf("atom: %s update aborted in %s: %v", e.Store, e.Stage, e.Err)
}

func (e *MutationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ProjectionError reports a cursor projection that failed while recomputing.
// Only the failing cursor is affected.
type ProjectionError struct {
	Store   string
	Version uint64
	Err     error
}

func (e *ProjectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("atom: %s projection failed at version %d: %v", e.Store, e.Version, e.Err)
}

func (e *ProjectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Site   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("atom: %s evaluator %s site=%s: %v", e.Engine, describeExpression(e.Expr), e.Site, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "atom:") {
		return err
	}
	return fmt.Errorf("atom: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, site string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Site == "" {
			evalErr.Site = site
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Site:   site,
		Err:    err,
	}
}

// panicError converts a recovered panic value into an error.
func panicError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", recovered)
}
