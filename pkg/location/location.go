// Package location converts between raw external locations and the url
// slice kept in a document, and keeps the two in sync.
package location

import (
	"net/url"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Raw is a location as reported by the external source, before parsing.
type Raw struct {
	Path   string
	Search string
}

// URL is the parsed location stored in the document.
type URL struct {
	Path   []string          `json:"path"`
	Params map[string]string `json:"params"`
}

// Empty returns the location every malformed input degrades to.
func Empty() URL {
	return URL{Path: []string{}, Params: map[string]string{}}
}

// Parse splits raw into path segments and query parameters. Empty segments
// are dropped and repeated query keys keep their last value. Malformed input
// yields Empty.
func Parse(raw Raw) URL {
	out := Empty()
	for _, segment := range strings.Split(raw.Path, "/") {
		if segment == "" {
			continue
		}
		decoded, err := url.PathUnescape(segment)
		if err != nil {
			return Empty()
		}
		out.Path = append(out.Path, decoded)
	}
	query, err := url.ParseQuery(strings.TrimPrefix(raw.Search, "?"))
	if err != nil {
		return Empty()
	}
	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		out.Params[key] = values[len(values)-1]
	}
	return out
}

// ParseDestination splits a destination such as "/list/id1?q=milk" into its
// raw parts.
func ParseDestination(dest string) Raw {
	path, search, found := strings.Cut(dest, "?")
	if !found {
		return Raw{Path: path}
	}
	return Raw{Path: path, Search: "?" + search}
}

// Format renders u as a destination: "/" joined path segments, followed by
// "?" and the encoded query when there are parameters. Keys are sorted.
func Format(u URL) string {
	segments := make([]string, len(u.Path))
	for i, segment := range u.Path {
		segments[i] = url.PathEscape(segment)
	}
	dest := "/" + strings.Join(segments, "/")
	if len(u.Params) == 0 {
		return dest
	}
	keys := make([]string, 0, len(u.Params))
	for key := range u.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(u.Params[key]))
	}
	return dest + "?" + strings.Join(pairs, "&")
}

// Equal compares by value. Nil and empty collections are equal.
func Equal(a, b URL) bool {
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}

// Document returns u in document form.
func (u URL) Document() map[string]any {
	path := make([]any, len(u.Path))
	for i, segment := range u.Path {
		path[i] = segment
	}
	params := make(map[string]any, len(u.Params))
	for key, value := range u.Params {
		params[key] = value
	}
	return map[string]any{"path": path, "params": params}
}

// FromDocument reads a url slice stored in a document. It reports false when
// v is not a url slice.
func FromDocument(v any) (URL, bool) {
	node, ok := v.(map[string]any)
	if !ok || node == nil {
		return Empty(), false
	}
	out := Empty()
	switch path := node["path"].(type) {
	case []any:
		for _, segment := range path {
			s, ok := segment.(string)
			if !ok {
				return Empty(), false
			}
			out.Path = append(out.Path, s)
		}
	case []string:
		out.Path = append(out.Path, path...)
	case nil:
	default:
		return Empty(), false
	}
	switch params := node["params"].(type) {
	case map[string]any:
		for key, value := range params {
			s, ok := value.(string)
			if !ok {
				return Empty(), false
			}
			out.Params[key] = s
		}
	case map[string]string:
		for key, value := range params {
			out.Params[key] = value
		}
	case nil:
	default:
		return Empty(), false
	}
	return out, true
}
