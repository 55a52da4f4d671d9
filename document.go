package atom

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Document is the tree held by a Store. Nested values are map[string]any,
// []any and scalars.
type Document = map[string]any

// Path addresses a value inside a Document. Segments index maps by key and
// slices by decimal position.
type Path []string

// P builds a Path from strings and integers.
func P(segments ...any) Path {
	path := make(Path, 0, len(segments))
	for _, segment := range segments {
		switch typed := segment.(type) {
		case string:
			path = append(path, typed)
		case int:
			path = append(path, strconv.Itoa(typed))
		case Path:
			path = append(path, typed...)
		default:
			path = append(path, fmt.Sprint(typed))
		}
	}
	return path
}

// ParsePath splits a dot separated path such as "id2list.id1.title".
func ParsePath(value string) Path {
	value = strings.TrimSpace(value)
	if value == "" {
		return Path{}
	}
	return Path(strings.Split(value, "."))
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Child returns a new path with segments appended.
func (p Path) Child(segments ...any) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, P(segments...)...)
}

// Lookup reads the value at path inside node.
func Lookup(node any, path Path) (any, bool) {
	current := node
	for _, segment := range path {
		child, ok, err := childOf(current, segment)
		if err != nil || !ok {
			return nil, false
		}
		current = child
	}
	return current, true
}

// Get reads the value at path, returning nil when it is missing.
func Get(node any, path Path) any {
	value, _ := Lookup(node, path)
	return value
}

// Changed reports whether the value at path differs by identity between two
// documents. It is the usual building block for watcher predicates.
func Changed(path Path) Predicate {
	return func(before, after Document) bool {
		return !Same(Get(before, path), Get(after, path))
	}
}

func childOf(node any, segment string) (any, bool, error) {
	switch typed := node.(type) {
	case map[string]any:
		value, ok := typed[segment]
		return value, ok, nil
	case []any:
		index, err := strconv.Atoi(segment)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %q is not a slice index", ErrInvalidPath, segment)
		}
		if index < 0 || index >= len(typed) {
			return nil, false, nil
		}
		return typed[index], true, nil
	case nil:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("%w: %T", ErrNotContainer, node)
	}
}

// Same reports identity equality. Maps and slices compare by reference (and
// length for slices), comparable values compare with ==, anything else falls
// back to reflect.DeepEqual. Structural sharing makes this enough to detect
// "nothing changed" without walking subtrees.
func Same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	case reflect.Slice:
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len()
	case reflect.Func:
		return false
	}
	if ra.Type().Comparable() {
		return safeEqual(a, b)
	}
	return reflect.DeepEqual(a, b)
}

func safeEqual(a, b any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = reflect.DeepEqual(a, b)
		}
	}()
	return a == b
}
