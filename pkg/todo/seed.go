package todo

import (
	atom "github.com/goliatone/go-atom"
	"github.com/goliatone/go-atom/pkg/location"
)

// Document keys used by the todo app.
const (
	KeyTabs       = "tabs"
	KeyLists      = "id2list"
	KeyItems      = "id2item"
	KeyStatistics = "_statistics"
	KeyEphemeral  = "__ephemeral"
	KeyURL        = location.DefaultPath
)

// KindListItem tags ephemeral state that belongs to list items.
const KindListItem = "ListItem"

// Seed returns the initial two-list document.
func Seed() atom.Document {
	return atom.Document{
		KeyTabs: []any{
			map[string]any{"listId": "id1", "active": true},
			map[string]any{"listId": "id4"},
		},
		KeyLists: map[string]any{
			"id4": map[string]any{
				"id":    "id4",
				"title": "another example",
				KeyItems: map[string]any{
					"id5": map[string]any{
						"id":          "id5",
						"order":       0,
						"title":       "do something",
						"description": "...",
					},
				},
			},
			"id1": map[string]any{
				"id":    "id1",
				"title": "example list",
				KeyItems: map[string]any{
					"id2": map[string]any{
						"id":          "id2",
						"order":       1,
						"title":       "make a react app",
						"description": "use immer and jotai and something more",
					},
					"id3": map[string]any{
						"id":          "id3",
						"order":       0,
						"title":       "find pitfalls in these patterns",
						"description": "...",
					},
				},
			},
		},
		KeyStatistics: nil,
		KeyEphemeral:  map[string]any{},
	}
}

// SeedWithURL returns Seed with a url slice pointing at the active list.
func SeedWithURL() atom.Document {
	doc := Seed()
	doc[KeyURL] = location.URL{Path: []string{"list", "id1"}, Params: map[string]string{}}.Document()
	return doc
}
