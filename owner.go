package atom

import "sync"

// Owner groups cursors for one consumer, typically a view, and funnels
// their changes into a single callback. Each cursor lives in a named slot
// and is rebuilt only when the slot's dependency values change.
type Owner struct {
	store    *Store
	onChange func()

	mu     sync.Mutex
	slots  map[string]*ownerSlot
	closed bool
}

type ownerSlot struct {
	deps   []any
	cursor interface{ Close() }
}

// NewOwner returns an owner whose cursors call onChange when their projected
// value changes.
func NewOwner(s *Store, onChange func()) *Owner {
	return &Owner{
		store:    s,
		onChange: onChange,
		slots:    map[string]*ownerSlot{},
	}
}

// Use returns the projected value for slot, subscribing on first use. While
// deps stay identical the existing cursor is reused; when they change the old
// cursor is closed and project is subscribed in its place. After Close, Use
// reads without subscribing.
func Use[V any](o *Owner, slot string, project Projection[V], deps ...any) V {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return Read(o.store, project)
	}
	existing := o.slots[slot]
	if existing != nil && sameDeps(existing.deps, deps) {
		if cursor, ok := existing.cursor.(*Cursor[V]); ok {
			o.mu.Unlock()
			return cursor.Value()
		}
	}
	delete(o.slots, slot)
	o.mu.Unlock()

	if existing != nil {
		existing.cursor.Close()
	}
	cursor := Subscribe(o.store, project, func(V) { o.notify() })

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		cursor.Close()
		return cursor.Value()
	}
	// A concurrent Use may have filled the slot while we subscribed.
	raced := o.slots[slot]
	if raced != nil && sameDeps(raced.deps, deps) {
		if other, ok := raced.cursor.(*Cursor[V]); ok {
			o.mu.Unlock()
			cursor.Close()
			return other.Value()
		}
	}
	o.slots[slot] = &ownerSlot{deps: append([]any(nil), deps...), cursor: cursor}
	o.mu.Unlock()
	if raced != nil {
		raced.cursor.Close()
	}
	return cursor.Value()
}

// Close releases every cursor held by the owner.
func (o *Owner) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	slots := o.slots
	o.slots = map[string]*ownerSlot{}
	o.mu.Unlock()

	for _, slot := range slots {
		slot.cursor.Close()
	}
}

// Slots reports how many cursors the owner currently holds.
func (o *Owner) Slots() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.slots)
}

func (o *Owner) notify() {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if !closed && o.onChange != nil {
		o.onChange()
	}
}

func sameDeps(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Same(a[i], b[i]) {
			return false
		}
	}
	return true
}
