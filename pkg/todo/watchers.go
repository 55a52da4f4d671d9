package todo

import (
	atom "github.com/goliatone/go-atom"
	"github.com/goliatone/go-atom/pkg/location"
)

// Watcher names registered by New.
const (
	WatcherStatistics = "list statistics"
	WatcherURLTabs    = "url tabs"
)

// StatisticsWatcher keeps _statistics.nrOfItems equal to the number of items
// across all lists. It runs whenever id2list changes and once on register.
func StatisticsWatcher() atom.Watcher {
	return atom.Watcher{
		Name:      WatcherStatistics,
		Predicate: atom.Changed(atom.P(KeyLists)),
		Fn: func(d *atom.Draft) error {
			return d.Set(atom.P(KeyStatistics, "nrOfItems"), CountItems(d.Result()))
		},
		RunOnRegister: true,
	}
}

// URLTabsWatcher derives the active tab from the url slice. A url of the
// form /list/<id> activates the tab showing that list; any other url
// deactivates every tab. Documents without a url slice are left alone.
func URLTabsWatcher() atom.Watcher {
	return atom.Watcher{
		Name:      WatcherURLTabs,
		Predicate: atom.Changed(atom.P(KeyURL)),
		Fn: func(d *atom.Draft) error {
			u, ok := location.FromDocument(d.Get(atom.P(KeyURL)))
			if !ok {
				return nil
			}
			target := ""
			if len(u.Path) == 2 && u.Path[0] == "list" {
				target = u.Path[1]
			}
			return activate(d, func(_ int, listID string) bool { return target != "" && listID == target })
		},
		RunOnRegister: true,
	}
}

// activate marks the first tab accepted by match as active and every other
// tab as inactive. Tabs already in the requested state are left untouched.
func activate(d *atom.Draft, match func(index int, listID string) bool) error {
	tabs, _ := d.Get(atom.P(KeyTabs)).([]any)
	found := false
	for i, raw := range tabs {
		tab, _ := raw.(map[string]any)
		listID, _ := tab["listId"].(string)
		want := !found && match(i, listID)
		found = found || want
		current, _ := tab["active"].(bool)
		if current == want {
			continue
		}
		if err := d.Set(atom.P(KeyTabs, i, "active"), want); err != nil {
			return err
		}
	}
	return nil
}
