package location

import (
	"sort"
	"sync"
)

// Source is the external location collaborator.
type Source interface {
	CurrentLocation() Raw
	Navigate(dest string)
}

// Notifier is implemented by sources that report out-of-band location
// changes. The returned function stops the notifications.
type Notifier interface {
	Listen(fn func()) func()
}

// MemorySource is an in-memory Source with browser-like history: Navigate
// pushes silently, Back, Forward and Visit notify listeners.
type MemorySource struct {
	mu          sync.Mutex
	history     []Raw
	index       int
	navigations int
	listeners   map[int]func()
	nextID      int
}

// NewMemorySource starts at initial.
func NewMemorySource(initial string) *MemorySource {
	return &MemorySource{
		history:   []Raw{ParseDestination(initial)},
		listeners: map[int]func(){},
	}
}

// CurrentLocation implements Source.
func (m *MemorySource) CurrentLocation() Raw {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history[m.index]
}

// Navigate pushes dest onto the history without notifying listeners.
func (m *MemorySource) Navigate(dest string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push(dest)
	m.navigations++
}

// Visit pushes dest as if the user entered it and notifies listeners.
func (m *MemorySource) Visit(dest string) {
	m.mu.Lock()
	m.push(dest)
	m.mu.Unlock()
	m.notify()
}

// Back moves one entry back and notifies listeners. It reports false at the
// start of the history.
func (m *MemorySource) Back() bool {
	m.mu.Lock()
	if m.index == 0 {
		m.mu.Unlock()
		return false
	}
	m.index--
	m.mu.Unlock()
	m.notify()
	return true
}

// Forward moves one entry forward and notifies listeners.
func (m *MemorySource) Forward() bool {
	m.mu.Lock()
	if m.index >= len(m.history)-1 {
		m.mu.Unlock()
		return false
	}
	m.index++
	m.mu.Unlock()
	m.notify()
	return true
}

// Navigations counts calls to Navigate.
func (m *MemorySource) Navigations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.navigations
}

// History returns the formatted entries up to and including the current one.
func (m *MemorySource) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, m.index+1)
	for _, raw := range m.history[:m.index+1] {
		out = append(out, raw.Path+raw.Search)
	}
	return out
}

// Listen implements Notifier.
func (m *MemorySource) Listen(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *MemorySource) push(dest string) {
	m.history = append(m.history[:m.index+1], ParseDestination(dest))
	m.index = len(m.history) - 1
}

func (m *MemorySource) notify() {
	m.mu.Lock()
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]func(), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, m.listeners[id])
	}
	m.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
