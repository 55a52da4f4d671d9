package atom

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-atom/internal/tree"
	"github.com/goliatone/go-atom/pkg/activity"
)

// Store holds one versioned document. Readers get the latest published value
// without waiting; writers are serialized and publish only fully computed,
// watcher-settled values.
type Store struct {
	cfg     storeConfig
	emitter *activity.Emitter

	evaluatorOnce sync.Once
	evaluator     Evaluator

	// writeMu serializes Update, Set and watcher registration runs. It is
	// never held while subscribers are notified.
	writeMu sync.Mutex

	mu       sync.Mutex
	value    Document
	version  uint64
	watchers watcherRegistry
	subs     map[uint64]subscriber
	nextSub  uint64
	queue    []publication
	draining bool
}

type publication struct {
	version uint64
	value   Document
}

type subscriber interface {
	deliver(p publication)
}

// New constructs a store whose current value is initial. Typed values inside
// initial are normalized into the document shape.
func New(initial Document, opts ...Option) *Store {
	cfg := applyOptions(opts)
	value, _ := tree.Normalize(initial).(map[string]any)
	if cfg.defaults != nil {
		defaults, _ := tree.Normalize(cfg.defaults).(map[string]any)
		value, _ = tree.Merge(value, defaults).(map[string]any)
	}
	if value == nil {
		value = Document{}
	}
	return &Store{
		cfg:     cfg,
		emitter: activity.NewEmitter(cfg.activityHooks, cfg.activityConfig),
		value:   value,
		subs:    map[uint64]subscriber{},
	}
}

// Name returns the store label configured with WithName.
func (s *Store) Name() string {
	return s.cfg.name
}

// Get returns the latest published document. The value must be treated as
// read-only; change it through Update.
func (s *Store) Get() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Version returns the number of values published since construction.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Snapshot returns a detached deep copy of the current document.
func (s *Store) Snapshot() Document {
	out, _ := tree.Clone(s.Get()).(map[string]any)
	return out
}

// Set publishes next as the current value without running watchers and
// notifies cursors. Publishing a value identical to the current one is a
// no-op.
func (s *Store) Set(next Document) {
	start := time.Now()
	value, _ := tree.Normalize(next).(map[string]any)
	if value == nil {
		value = Document{}
	}

	s.writeMu.Lock()
	published, version := s.publish(value)
	s.writeMu.Unlock()

	s.cfg.logger.LogEvent(LogEvent{
		Store:     s.cfg.name,
		Kind:      EventSet,
		Version:   version,
		Published: published,
		Duration:  time.Since(start),
	})
	if published {
		s.emit(activity.BuildDocumentSetEvent(activity.DocumentEventInput{
			Store:   s.cfg.name,
			Version: version,
		}))
	}
	s.drain()
}

// Read projects the current document without subscribing.
func Read[V any](s *Store, project Projection[V]) V {
	return project(s.Get())
}

// publish swaps in value and queues it for delivery. Callers hold writeMu.
func (s *Store) publish(value Document) (bool, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if Same(value, s.value) {
		return false, s.version
	}
	s.value = value
	s.version++
	s.queue = append(s.queue, publication{version: s.version, value: value})
	return true, s.version
}

// drain delivers queued publications in version order. Only one goroutine
// drains at a time; publications queued meanwhile, including those made from
// inside a callback, are picked up by the active drainer.
func (s *Store) drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	finished := false
	defer func() {
		if !finished {
			s.mu.Lock()
			s.draining = false
			s.mu.Unlock()
		}
	}()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			finished = true
			return
		}
		next := s.queue[0]
		s.queue[0] = publication{}
		s.queue = s.queue[1:]
		subs := s.subscribersLocked()
		s.mu.Unlock()

		for _, sub := range subs {
			sub.deliver(next)
		}
	}
}

func (s *Store) subscribersLocked() []subscriber {
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]subscriber, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

// subscribe registers sub and returns the document and version it starts from.
func (s *Store) subscribe(sub subscriber) (uint64, Document, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	s.subs[s.nextSub] = sub
	return s.nextSub, s.value, s.version
}

func (s *Store) unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

func (s *Store) emit(event activity.Event) {
	if !s.emitter.Enabled() {
		return
	}
	if err := s.emitter.Emit(context.Background(), event); err != nil {
		s.cfg.logger.LogEvent(LogEvent{
			Store: s.cfg.name,
			Kind:  EventActivity,
			Err:   err,
		})
	}
}

// Lazy constructs a store at most once.
type Lazy struct {
	once  sync.Once
	store *Store
}

// Get returns the store built by the first factory passed in. Later factories
// are ignored and never invoked.
func (l *Lazy) Get(factory func() *Store) *Store {
	l.once.Do(func() {
		if factory != nil {
			l.store = factory()
		}
	})
	return l.store
}

var processStore Lazy

// Once returns the process-wide store, building it with factory on the first
// call only.
func Once(factory func() *Store) *Store {
	return processStore.Get(factory)
}
