package atom

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-atom/pkg/activity"
)

// Predicate decides whether a watcher runs for a transition. before is the
// last published value and after is the mutator's result, before any watcher
// has touched it.
type Predicate func(before, after Document) bool

// WatchFunc applies a watcher's derived changes to the shared draft.
type WatchFunc func(d *Draft) error

// Watcher is a named reaction run after mutators and before publication.
type Watcher struct {
	Name string
	// Predicate gates the watcher. Nil means always.
	Predicate Predicate
	// When is an optional boolean expression with before and after bound.
	// It is combined with Predicate; both must hold.
	When string
	Fn   WatchFunc
	// RunOnRegister applies Fn once to the current value at registration.
	RunOnRegister bool
}

type registeredWatcher struct {
	Watcher
	rule CompiledRule
}

// watcherRegistry keeps watchers in registration order. Re-registering a
// name replaces the entry in place.
type watcherRegistry struct {
	order  []string
	byName map[string]*registeredWatcher
}

func (r *watcherRegistry) put(w *registeredWatcher) {
	if r.byName == nil {
		r.byName = map[string]*registeredWatcher{}
	}
	if _, ok := r.byName[w.Name]; !ok {
		r.order = append(r.order, w.Name)
	}
	r.byName[w.Name] = w
}

func (r *watcherRegistry) remove(name string) bool {
	if _, ok := r.byName[name]; !ok {
		return false
	}
	delete(r.byName, name)
	for i, candidate := range r.order {
		if candidate == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *watcherRegistry) list() []*registeredWatcher {
	out := make([]*registeredWatcher, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// AddWatcher registers w. Watchers run in registration order on every
// subsequent update whose transition satisfies their predicate. With
// RunOnRegister the watcher is applied once to the current value right away.
func (s *Store) AddWatcher(w Watcher) error {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return ErrWatcherNameRequired
	}
	if w.Fn == nil {
		return ErrWatcherFnRequired
	}
	entry := &registeredWatcher{Watcher: w}
	if when := strings.TrimSpace(w.When); when != "" {
		rule, err := s.Evaluator().Compile(when, WithCompileSite("watcher:"+w.Name))
		if err != nil {
			return fmt.Errorf("atom: watcher %q: %w", w.Name, err)
		}
		entry.rule = rule
	}

	s.mu.Lock()
	s.watchers.put(entry)
	s.mu.Unlock()

	s.emit(activity.BuildWatcherRegisteredEvent(activity.DocumentEventInput{
		Store:   s.cfg.name,
		Watcher: w.Name,
	}))

	if !w.RunOnRegister {
		return nil
	}
	return s.runOnRegister(entry)
}

// RemoveWatcher unregisters the named watcher and reports whether it existed.
func (s *Store) RemoveWatcher(name string) bool {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	removed := s.watchers.remove(name)
	s.mu.Unlock()
	if removed {
		s.emit(activity.BuildWatcherRemovedEvent(activity.DocumentEventInput{
			Store:   s.cfg.name,
			Watcher: name,
		}))
	}
	return removed
}

// Watchers lists registered watcher names in run order.
func (s *Store) Watchers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.watchers.order...)
}

func (s *Store) watcherList() []*registeredWatcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchers.list()
}

func (s *Store) runOnRegister(w *registeredWatcher) error {
	start := time.Now()
	published, version, err := s.write(func(current Document) (Document, error) {
		draft := NewDraft(current)
		if err := guard(func() error { return w.Fn(draft) }); err != nil {
			return nil, &MutationError{Store: s.cfg.name, Stage: StageWatcher, Watcher: w.Name, Err: err}
		}
		return draft.Result(), nil
	})

	s.cfg.logger.LogEvent(LogEvent{
		Store:     s.cfg.name,
		Kind:      EventWatcher,
		Version:   version,
		Published: published,
		Watcher:   w.Name,
		Duration:  time.Since(start),
		Err:       err,
	})
	if err != nil {
		return err
	}
	if published {
		s.emit(activity.BuildDocumentUpdatedEvent(activity.DocumentEventInput{
			Store:   s.cfg.name,
			Version: version,
			Applied: []string{w.Name},
		}))
	}
	s.drain()
	return nil
}

// shouldRun evaluates the watcher's gates against the transition.
func (s *Store) shouldRun(w *registeredWatcher, before, after Document) (bool, error) {
	if w.Predicate != nil && !w.Predicate(before, after) {
		return false, nil
	}
	if w.rule == nil {
		return true, nil
	}
	result, err := w.rule.Evaluate(RuleContext{
		Snapshot: map[string]any{"before": before, "after": after},
	})
	if err != nil {
		return false, err
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("%w: got %T", ErrPredicateResult, result)
	}
	return ok, nil
}

// guard runs fn and turns a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = panicError(recovered)
		}
	}()
	return fn()
}
