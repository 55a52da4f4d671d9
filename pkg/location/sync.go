package location

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	atom "github.com/goliatone/go-atom"
)

// DefaultPath is the document key holding the url slice.
const DefaultPath = "url"

// Sync keeps a document's url slice and an external Source in step. Each
// direction compares values first and writes only on a difference.
type Sync struct {
	store  *atom.Store
	source Source
	path   atom.Path
	log    *slog.Logger

	mu      sync.Mutex
	cursor  *atom.Cursor[URL]
	stop    func()
	started bool
}

// SyncOption configures a Sync.
type SyncOption func(*Sync)

// WithPath selects the top-level key of the url slice, "url" by default.
// Use "_url" when the slice is derived by watchers.
func WithPath(key string) SyncOption {
	return func(s *Sync) {
		if key = strings.TrimSpace(key); key != "" {
			s.path = atom.ParsePath(key)
		}
	}
}

// WithLogger sets the logger used for sync decisions.
func WithLogger(logger *slog.Logger) SyncOption {
	return func(s *Sync) {
		if logger != nil {
			s.log = logger
		}
	}
}

// NewSync binds store and source. Call Start to begin syncing.
func NewSync(store *atom.Store, source Source, opts ...SyncOption) (*Sync, error) {
	if store == nil {
		return nil, errors.New("location: store is required")
	}
	if source == nil {
		return nil, errors.New("location: source is required")
	}
	s := &Sync{
		store:  store,
		source: source,
		path:   atom.P(DefaultPath),
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.log = s.log.With("component", "location", "path", s.path.String())
	return s, nil
}

// Start copies the external location into the document, subscribes to the
// url slice and, when the source is a Notifier, listens for external changes.
func (s *Sync) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if err := s.ExternalChanged(); err != nil {
		return err
	}

	cursor := atom.Subscribe(s.store, s.current, s.push, atom.WithEqual(Equal))
	var stop func()
	if notifier, ok := s.source.(Notifier); ok {
		stop = notifier.Listen(func() {
			if err := s.ExternalChanged(); err != nil {
				s.log.Error("location sync failed", "direction", "external", "error", err)
			}
		})
	}

	s.mu.Lock()
	s.cursor = cursor
	s.stop = stop
	s.mu.Unlock()

	s.push(cursor.Value())
	return nil
}

// ExternalChanged reads the source and writes the parsed location into the
// document when it differs from the stored slice.
func (s *Sync) ExternalChanged() error {
	next := Parse(s.source.CurrentLocation())
	return s.store.Update(func(d *atom.Draft) error {
		current, ok := FromDocument(d.Get(s.path))
		if ok && Equal(current, next) {
			return nil
		}
		s.log.Debug("location sync", "direction", "external", "to", Format(next))
		return d.Set(s.path, next.Document())
	})
}

// Close stops both directions. It is safe to call more than once.
func (s *Sync) Close() {
	s.mu.Lock()
	cursor, stop := s.cursor, s.stop
	s.cursor, s.stop = nil, nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	if cursor != nil {
		cursor.Close()
	}
}

func (s *Sync) current(doc atom.Document) URL {
	u, _ := FromDocument(atom.Get(doc, s.path))
	return u
}

// push navigates the source to u unless it is already there.
func (s *Sync) push(u URL) {
	if Equal(Parse(s.source.CurrentLocation()), u) {
		return
	}
	dest := Format(u)
	s.log.Debug("location sync", "direction", "document", "to", dest)
	s.source.Navigate(dest)
}
