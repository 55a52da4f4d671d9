package todo

import (
	"fmt"
	"math"
	"sort"

	atom "github.com/goliatone/go-atom"
	"github.com/goliatone/go-atom/internal/hydrate"
	"github.com/goliatone/go-atom/internal/tree"
)

// Tab is one entry of the tab strip.
type Tab struct {
	ListID string `json:"listId"`
	Active bool   `json:"active"`
}

// Item is a list entry. Order determines display order; gaps are allowed.
type Item struct {
	ID          string  `json:"id"`
	Order       float64 `json:"order"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
}

// List is a titled collection of items keyed by item id.
type List struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Items map[string]Item `json:"id2item"`
}

var (
	listDecoder = hydrate.NewDecoder[List](
		hydrate.WithPostHook[List](func(_ hydrate.Context, list *List) error {
			list.Items = keyItems(list.Items)
			return nil
		}),
	)
	itemsDecoder = hydrate.NewDecoder[map[string]Item](
		hydrate.WithPostHook[map[string]Item](func(_ hydrate.Context, items *map[string]Item) error {
			*items = keyItems(*items)
			return nil
		}),
	)
	tabsDecoder = hydrate.NewDecoder[[]Tab]()
)

// keyItems fills missing item ids from their map keys.
func keyItems(items map[string]Item) map[string]Item {
	if items == nil {
		return map[string]Item{}
	}
	for key, item := range items {
		if item.ID == "" {
			item.ID = key
			items[key] = item
		}
	}
	return items
}

// DecodeList converts a raw list subtree into a List.
func DecodeList(raw any) (List, error) {
	list, err := listDecoder.Decode(hydrate.Context{Store: "todo", Path: KeyLists}, raw)
	if err != nil {
		return List{}, fmt.Errorf("todo: %w", err)
	}
	return list, nil
}

// DecodeItems converts a raw id2item subtree into items keyed by id.
func DecodeItems(raw any) (map[string]Item, error) {
	items, err := itemsDecoder.Decode(hydrate.Context{Store: "todo", Path: KeyItems}, raw)
	if err != nil {
		return nil, fmt.Errorf("todo: %w", err)
	}
	return items, nil
}

// Tabs returns the decoded tab strip, empty when the document has none.
func Tabs(doc atom.Document) []Tab {
	raw, ok := doc[KeyTabs].([]any)
	if !ok || len(raw) == 0 {
		return []Tab{}
	}
	tabs, err := tabsDecoder.Decode(hydrate.Context{Store: "todo", Path: KeyTabs}, raw)
	if err != nil {
		return []Tab{}
	}
	return tabs
}

// ActiveListID returns the list id of the first active tab, or "".
func ActiveListID(doc atom.Document) string {
	tabs, _ := doc[KeyTabs].([]any)
	for _, raw := range tabs {
		tab, _ := raw.(map[string]any)
		if active, _ := tab["active"].(bool); active {
			id, _ := tab["listId"].(string)
			return id
		}
	}
	return ""
}

// ActiveList returns the raw subtree of the active list. The result keeps
// its identity across updates that do not touch the list, so it can back a
// cursor with the default equality.
func ActiveList(doc atom.Document) map[string]any {
	id := ActiveListID(doc)
	if id == "" {
		return nil
	}
	list, _ := atom.Get(doc, atom.P(KeyLists, id)).(map[string]any)
	return list
}

// Statistics returns the item count computed by the statistics watcher.
func Statistics(doc atom.Document) int {
	n, _ := tree.ToFloat(atom.Get(doc, atom.P(KeyStatistics, "nrOfItems")))
	return int(n)
}

// Hovered reports the hover flag of an element of the given kind.
func Hovered(doc atom.Document, kind, id string) bool {
	hovered, _ := atom.Get(doc, atom.P(KeyEphemeral, kind, id, "hovered")).(bool)
	return hovered
}

// SortedItems decodes the items of a raw list and orders them by Order,
// then by id.
func SortedItems(list map[string]any) ([]Item, error) {
	raw, ok := list[KeyItems]
	if !ok || raw == nil {
		return []Item{}, nil
	}
	items, err := DecodeItems(raw)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CountItems sums the items of every list.
func CountItems(doc atom.Document) int {
	lists, _ := doc[KeyLists].(map[string]any)
	total := 0
	for _, list := range lists {
		items, _ := atom.Get(list, atom.P(KeyItems)).(map[string]any)
		total += len(items)
	}
	return total
}

// nextOrder returns one more than the floor of the highest order in items,
// or 0 when items is empty.
func nextOrder(items map[string]any) int {
	highest := math.Inf(-1)
	for _, raw := range items {
		order, ok := tree.ToFloat(atom.Get(raw, atom.P("order")))
		if ok && order > highest {
			highest = order
		}
	}
	if math.IsInf(highest, -1) {
		return 0
	}
	return int(math.Floor(highest)) + 1
}
