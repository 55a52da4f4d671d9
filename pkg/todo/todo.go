// Package todo is a tabbed todo-list application built on an atom store:
// lists of ordered items, a tab strip, derived statistics and ephemeral
// hover state, optionally routed through a url slice.
package todo

import (
	"errors"
	"fmt"
	"strings"

	atom "github.com/goliatone/go-atom"
	"github.com/goliatone/go-atom/pkg/ids"
	"github.com/goliatone/go-atom/pkg/location"
)

var (
	ErrStoreRequired = errors.New("todo: store is required")
	ErrNoActiveList  = errors.New("todo: no active list")
	ErrListNotFound  = errors.New("todo: list not found")
	ErrItemNotFound  = errors.New("todo: item not found")
	ErrTabOutOfRange = errors.New("todo: tab index out of range")
	ErrKindRequired  = errors.New("todo: ephemeral kind is required")
	ErrTitleRequired = errors.New("todo: title is required")
	ErrIDRequired    = errors.New("todo: id is required")
)

const defaultListTitle = "new list"

// App applies todo operations to a store.
type App struct {
	store        *atom.Store
	ids          ids.Generator
	locationTabs bool
}

// Option configures an App.
type Option func(*App)

// WithLocationTabs routes tab activation through the url slice and derives
// the active tab from it with the url tabs watcher.
func WithLocationTabs() Option {
	return func(a *App) {
		a.locationTabs = true
	}
}

// WithIDs sets the generator for new list and item ids. UUIDs by default.
func WithIDs(gen ids.Generator) Option {
	return func(a *App) {
		if gen != nil {
			a.ids = gen
		}
	}
}

// New registers the todo watchers on store.
func New(store *atom.Store, opts ...Option) (*App, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	app := &App{store: store, ids: ids.UUID()}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}

	if err := store.AddWatcher(StatisticsWatcher()); err != nil {
		return nil, fmt.Errorf("todo: register %s: %w", WatcherStatistics, err)
	}
	if app.locationTabs {
		if err := store.AddWatcher(URLTabsWatcher()); err != nil {
			return nil, fmt.Errorf("todo: register %s: %w", WatcherURLTabs, err)
		}
	}
	return app, nil
}

// Store returns the underlying store.
func (a *App) Store() *atom.Store {
	return a.store
}

// LocationTabs reports whether tabs are driven by the url slice.
func (a *App) LocationTabs() bool {
	return a.locationTabs
}

// NewList creates a list, appends a tab for it and makes that tab the only
// active one. An empty title falls back to "new list".
func (a *App) NewList(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultListTitle
	}
	id := a.ids.NewID()
	err := a.store.Update(func(d *atom.Draft) error {
		if err := d.Set(atom.P(KeyLists, id), map[string]any{
			"id":     id,
			"title":  title,
			KeyItems: map[string]any{},
		}); err != nil {
			return err
		}
		if err := activate(d, func(int, string) bool { return false }); err != nil {
			return err
		}
		if err := d.Append(atom.P(KeyTabs), map[string]any{"listId": id, "active": true}); err != nil {
			return err
		}
		if a.locationTabs {
			return setListURL(d, id)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// NewItem adds an empty item to the active list. Its order is one more than
// the highest order in the list, or 0 when the list is empty.
func (a *App) NewItem() (string, error) {
	id := a.ids.NewID()
	err := a.store.Update(func(d *atom.Draft) error {
		listID := ActiveListID(d.Result())
		if listID == "" {
			return ErrNoActiveList
		}
		if _, ok := d.Lookup(atom.P(KeyLists, listID)); !ok {
			return fmt.Errorf("%w: %s", ErrListNotFound, listID)
		}
		items, _ := d.Get(atom.P(KeyLists, listID, KeyItems)).(map[string]any)
		return d.Set(atom.P(KeyLists, listID, KeyItems, id), map[string]any{
			"id":    id,
			"order": nextOrder(items),
		})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteItem removes an item from a list. Missing items are ignored and
// remaining orders are not renumbered.
func (a *App) DeleteItem(listID, itemID string) error {
	if listID == "" || itemID == "" {
		return ErrIDRequired
	}
	return a.store.Update(func(d *atom.Draft) error {
		return d.Delete(atom.P(KeyLists, listID, KeyItems, itemID))
	})
}

// SetItemTitle edits an existing item's title.
func (a *App) SetItemTitle(listID, itemID, title string) error {
	return a.setItemField(listID, itemID, "title", title)
}

// SetItemDescription edits an existing item's description.
func (a *App) SetItemDescription(listID, itemID, description string) error {
	return a.setItemField(listID, itemID, "description", description)
}

func (a *App) setItemField(listID, itemID, field, value string) error {
	if listID == "" || itemID == "" {
		return ErrIDRequired
	}
	return a.store.Update(func(d *atom.Draft) error {
		path := atom.P(KeyLists, listID, KeyItems, itemID)
		if _, ok := d.Lookup(path); !ok {
			return fmt.Errorf("%w: %s", ErrItemNotFound, path)
		}
		return d.Set(path.Child(field), value)
	})
}

// RenameList changes a list's title.
func (a *App) RenameList(listID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrTitleRequired
	}
	return a.store.Update(func(d *atom.Draft) error {
		path := atom.P(KeyLists, listID)
		if _, ok := d.Lookup(path); !ok {
			return fmt.Errorf("%w: %s", ErrListNotFound, listID)
		}
		return d.Set(path.Child("title"), title)
	})
}

// ActivateTab makes tab i the only active tab. With location tabs the url
// slice is updated instead and the url tabs watcher activates the tab.
func (a *App) ActivateTab(i int) error {
	return a.store.Update(func(d *atom.Draft) error {
		tabs, _ := d.Get(atom.P(KeyTabs)).([]any)
		if i < 0 || i >= len(tabs) {
			return fmt.Errorf("%w: %d of %d", ErrTabOutOfRange, i, len(tabs))
		}
		listID, _ := atom.Get(tabs[i], atom.P("listId")).(string)
		if a.locationTabs {
			return setListURL(d, listID)
		}
		return activate(d, func(index int, _ string) bool { return index == i })
	})
}

// SetHovered records or clears the hover flag of an element of the given
// kind under __ephemeral.
func (a *App) SetHovered(kind, id string, hovered bool) error {
	if kind == "" {
		return ErrKindRequired
	}
	if id == "" {
		return ErrIDRequired
	}
	path := atom.P(KeyEphemeral, kind, id, "hovered")
	return a.store.Update(func(d *atom.Draft) error {
		if hovered {
			return d.Set(path, true)
		}
		return d.Delete(path)
	})
}

// setListURL points the url slice at /list/<id>, keeping the current
// parameters. An equal url is not rewritten.
func setListURL(d *atom.Draft, listID string) error {
	current, ok := location.FromDocument(d.Get(atom.P(KeyURL)))
	next := location.URL{Path: []string{"list", listID}, Params: map[string]string{}}
	if ok {
		next.Params = current.Params
		if location.Equal(current, next) {
			return nil
		}
	}
	return d.Set(atom.P(KeyURL), next.Document())
}
