package atom

import (
	"time"

	"github.com/goliatone/go-atom/pkg/activity"
)

// Update applies mutate to a draft of the current value, runs the matching
// watchers on the result and publishes the outcome as one new version. When
// mutate or a watcher fails the store keeps its previous value and nothing is
// published.
func (s *Store) Update(mutate Mutator) error {
	_, err := s.UpdateWithTrace(mutate)
	return err
}

// UpdateWithTrace behaves like Update and reports what the update did.
func (s *Store) UpdateWithTrace(mutate Mutator) (UpdateTrace, error) {
	trace := UpdateTrace{Store: s.cfg.name}
	if mutate == nil {
		return trace, ErrMutatorRequired
	}

	start := time.Now()
	published, version, err := s.write(func(before Document) (Document, error) {
		return s.compute(before, mutate, &trace)
	})
	trace.Published = published
	trace.Version = version
	trace.Duration = time.Since(start)

	s.cfg.logger.LogEvent(LogEvent{
		Store:     s.cfg.name,
		Kind:      EventUpdate,
		Version:   version,
		Published: published,
		Applied:   trace.Applied,
		Duration:  trace.Duration,
		Err:       err,
	})
	if err != nil {
		return trace, err
	}
	if published {
		s.emit(activity.BuildDocumentUpdatedEvent(activity.DocumentEventInput{
			Store:   s.cfg.name,
			Version: version,
			Applied: trace.Applied,
		}))
	}
	s.drain()
	if s.cfg.onTrace != nil {
		s.cfg.onTrace(trace)
	}
	return trace, nil
}

// write runs next under the writer lock and publishes its result.
func (s *Store) write(next func(current Document) (Document, error)) (bool, uint64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current := s.Get()
	value, err := next(current)
	if err != nil {
		return false, s.Version(), err
	}
	published, version := s.publish(value)
	return published, version, nil
}

func (s *Store) compute(before Document, mutate Mutator, trace *UpdateTrace) (Document, error) {
	draft := NewDraft(before)
	if err := guard(func() error { return mutate(draft) }); err != nil {
		return nil, &MutationError{Store: s.cfg.name, Stage: StageMutator, Err: err}
	}
	after := draft.Result()

	watchers := s.watcherList()
	if len(watchers) == 0 {
		return after, nil
	}

	// Watchers share one draft so each sees the changes of those before it.
	chained := NewDraft(after)
	for _, w := range watchers {
		var run bool
		err := guard(func() error {
			var err error
			run, err = s.shouldRun(w, before, after)
			return err
		})
		if err != nil {
			return nil, &MutationError{Store: s.cfg.name, Stage: StagePredicate, Watcher: w.Name, Err: err}
		}
		if !run {
			trace.Skipped = append(trace.Skipped, w.Name)
			continue
		}
		if err := guard(func() error { return w.Fn(chained) }); err != nil {
			return nil, &MutationError{Store: s.cfg.name, Stage: StageWatcher, Watcher: w.Name, Err: err}
		}
		trace.Applied = append(trace.Applied, w.Name)
	}
	return chained.Result(), nil
}
