package atom

import (
	"sync"

	"github.com/google/go-cmp/cmp"
)

// Projection selects a slice of a document.
type Projection[V any] func(doc Document) V

// ProjectionE is a projection that may fail.
type ProjectionE[V any] func(doc Document) (V, error)

// CursorOption configures a Cursor.
type CursorOption[V any] func(*cursorConfig[V])

type cursorConfig[V any] struct {
	equal func(a, b V) bool
}

// WithEqual replaces the identity comparison used to decide whether a
// recomputed projection changed.
func WithEqual[V any](equal func(a, b V) bool) CursorOption[V] {
	return func(cfg *cursorConfig[V]) {
		if equal != nil {
			cfg.equal = equal
		}
	}
}

// WithDeepEqual compares projected values structurally with go-cmp. Use it
// for projections that build fresh values on every call.
func WithDeepEqual[V any](opts ...cmp.Option) CursorOption[V] {
	return WithEqual(func(a, b V) bool {
		return cmp.Equal(a, b, opts...)
	})
}

// Cursor tracks a projection of a store's document and calls its onChange
// callback whenever the projected value changes.
type Cursor[V any] struct {
	store    *Store
	project  ProjectionE[V]
	equal    func(a, b V) bool
	onChange func(V)

	mu      sync.Mutex
	id      uint64
	doc     Document
	value   V
	version uint64
	err     error
	closed  bool
}

// Subscribe projects the current document and keeps the result up to date.
// onChange, when set, runs after each publication that changes the projected
// value; it is never called for the initial value. Publications are delivered
// in version order.
func Subscribe[V any](s *Store, project Projection[V], onChange func(V), opts ...CursorOption[V]) *Cursor[V] {
	return SubscribeE(s, func(doc Document) (V, error) {
		return project(doc), nil
	}, onChange, opts...)
}

// SubscribeE is Subscribe for projections that may fail. A failed
// recomputation keeps the previous value and is reported through Err.
func SubscribeE[V any](s *Store, project ProjectionE[V], onChange func(V), opts ...CursorOption[V]) *Cursor[V] {
	cfg := cursorConfig[V]{
		equal: func(a, b V) bool { return Same(a, b) },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	c := &Cursor[V]{
		store:    s,
		project:  project,
		equal:    cfg.equal,
		onChange: onChange,
	}

	// Hold the cursor lock across registration so a concurrent drain waits
	// for the initial projection.
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id, c.doc, c.version = s.subscribe(c)
	value, err := c.compute(c.doc)
	if err != nil {
		c.err = &ProjectionError{Store: s.cfg.name, Version: c.version, Err: err}
		s.logProjection(c.version, c.err)
		return c
	}
	c.value = value
	return c
}

// Value returns the latest projected value.
func (c *Cursor[V]) Value() V {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Err returns the error of the last recomputation, if it failed.
func (c *Cursor[V]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Version returns the store version the cursor last observed.
func (c *Cursor[V]) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Close stops delivery. It is safe to call more than once.
func (c *Cursor[V]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	id := c.id
	c.mu.Unlock()
	c.store.unsubscribe(id)
}

func (c *Cursor[V]) deliver(p publication) {
	c.mu.Lock()
	if c.closed || p.version <= c.version {
		c.mu.Unlock()
		return
	}
	c.version = p.version
	if Same(c.doc, p.value) {
		c.mu.Unlock()
		return
	}
	c.doc = p.value

	next, err := c.compute(p.value)
	if err == nil {
		var changed bool
		err = guard(func() error {
			changed = !c.equal(c.value, next)
			return nil
		})
		if err == nil && !changed {
			c.err = nil
			c.mu.Unlock()
			return
		}
	}
	if err != nil {
		c.err = &ProjectionError{Store: c.store.cfg.name, Version: p.version, Err: err}
		failure := c.err
		c.mu.Unlock()
		c.store.logProjection(p.version, failure)
		return
	}
	c.err = nil
	c.value = next
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(next)
	}
}

func (c *Cursor[V]) compute(doc Document) (value V, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = panicError(recovered)
		}
	}()
	return c.project(doc)
}

func (s *Store) logProjection(version uint64, err error) {
	s.cfg.logger.LogEvent(LogEvent{
		Store:   s.cfg.name,
		Kind:    EventProjection,
		Version: version,
		Err:     err,
	})
}
