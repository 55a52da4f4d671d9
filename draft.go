package atom

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/goliatone/go-atom/internal/tree"
)

// Mutator receives a draft of the current document and records writes on it.
type Mutator func(d *Draft) error

// Draft records writes against an immutable base document. Each container on
// the path to a write is copied at most once; everything else is shared with
// the base, so Result allocates proportionally to the depth of the change.
type Draft struct {
	base  Document
	root  Document
	owned map[uintptr]any
}

// NewDraft starts a draft over base.
func NewDraft(base Document) *Draft {
	return &Draft{base: base, root: base}
}

// Base returns the document the draft started from.
func (d *Draft) Base() Document {
	return d.base
}

// Result returns the current document. It is identical to Base when nothing
// was written.
func (d *Draft) Result() Document {
	return d.root
}

// Modified reports whether any write produced a new root.
func (d *Draft) Modified() bool {
	return !Same(d.base, d.root)
}

// Get returns the draft value at path, or nil.
func (d *Draft) Get(path Path) any {
	return Get(d.root, path)
}

// Lookup returns the draft value at path and whether it exists.
func (d *Draft) Lookup(path Path) (any, bool) {
	return Lookup(d.root, path)
}

// Len returns the number of entries of the map or slice at path.
func (d *Draft) Len(path Path) int {
	switch typed := d.Get(path).(type) {
	case map[string]any:
		return len(typed)
	case []any:
		return len(typed)
	default:
		return 0
	}
}

// Keys returns the sorted keys of the map at path.
func (d *Draft) Keys(path Path) []string {
	m, ok := d.Get(path).(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Set writes value at path, creating intermediate maps as needed. Writing a
// value identical to the current one leaves the draft untouched.
func (d *Draft) Set(path Path, value any) error {
	return d.set(path, tree.Normalize(value), true)
}

func (d *Draft) set(path Path, value any, shared bool) error {
	if len(path) == 0 {
		root, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: document root must be a map, got %T", ErrNotContainer, value)
		}
		d.root = root
		return nil
	}
	if current, ok := d.Lookup(path); ok && Same(current, value) {
		return nil
	}
	if shared {
		d.disown(value)
	}
	parent, err := d.writable(path[:len(path)-1], true)
	if err != nil {
		return err
	}
	return d.put(parent, path, value)
}

// Delete removes the value at path. Missing paths are ignored.
func (d *Draft) Delete(path Path) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: cannot delete the document root", ErrInvalidPath)
	}
	if _, ok := d.Lookup(path); !ok {
		return nil
	}
	parentPath := path[:len(path)-1]
	last := path[len(path)-1]
	if slice, ok := d.Get(parentPath).([]any); ok {
		index, err := strconv.Atoi(last)
		if err != nil {
			return fmt.Errorf("%w: %q is not a slice index", ErrInvalidPath, last)
		}
		next := d.newSlice(len(slice) - 1)
		copy(next, slice[:index])
		copy(next[index:], slice[index+1:])
		return d.set(parentPath, next, false)
	}
	parent, err := d.writable(parentPath, false)
	if err != nil {
		return err
	}
	m, ok := parent.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotContainer, parentPath)
	}
	delete(m, last)
	return nil
}

// Append adds values to the slice at path, creating it when missing.
func (d *Draft) Append(path Path, values ...any) error {
	current, ok := d.Lookup(path)
	var base []any
	if ok && current != nil {
		slice, isSlice := current.([]any)
		if !isSlice {
			return fmt.Errorf("%w: %s is %T", ErrNotContainer, path, current)
		}
		base = slice
	}
	next := d.newSlice(len(base) + len(values))
	copy(next, base)
	for i, value := range values {
		value = tree.Normalize(value)
		d.disown(value)
		next[len(base)+i] = value
	}
	return d.set(path, next, false)
}

// writable returns the container at path, copying every container on the way
// that the draft does not own yet and linking the copies into their parents.
func (d *Draft) writable(path Path, create bool) (any, error) {
	d.root = d.own(d.root).(map[string]any)

	var node any = d.root
	for i, segment := range path {
		child, ok, err := childOf(node, segment)
		if err != nil {
			return nil, fmt.Errorf("%w at %s", err, path[:i+1])
		}
		if !ok || child == nil {
			if !create {
				return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path[:i+1])
			}
			if _, isSlice := node.([]any); isSlice {
				return nil, fmt.Errorf("%w: %s", ErrIndexOutOfRange, path[:i+1])
			}
			child = d.newMap(0)
		} else {
			owned := d.own(child)
			if owned == nil {
				return nil, fmt.Errorf("%w: %s is %T", ErrNotContainer, path[:i+1], child)
			}
			if Same(owned, child) {
				node = child
				continue
			}
			child = owned
		}
		if err := d.put(node, path[:i+1], child); err != nil {
			return nil, err
		}
		node = child
	}
	return node, nil
}

func (d *Draft) put(parent any, path Path, value any) error {
	last := path[len(path)-1]
	switch typed := parent.(type) {
	case map[string]any:
		typed[last] = value
		return nil
	case []any:
		index, err := strconv.Atoi(last)
		if err != nil {
			return fmt.Errorf("%w: %q is not a slice index", ErrInvalidPath, last)
		}
		if index < 0 || index >= len(typed) {
			return fmt.Errorf("%w: %s", ErrIndexOutOfRange, path)
		}
		typed[index] = value
		return nil
	default:
		return fmt.Errorf("%w: %s is %T", ErrNotContainer, path[:len(path)-1], parent)
	}
}

// own returns a container the draft may mutate in place: v itself when the
// draft allocated it, otherwise a shallow copy. Non-containers yield nil.
func (d *Draft) own(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		if typed == nil {
			return d.newMap(0)
		}
		if d.isOwned(typed) {
			return typed
		}
		out := d.newMap(len(typed))
		for key, value := range typed {
			out[key] = value
		}
		return out
	case []any:
		if typed != nil && d.isOwned(typed) {
			return typed
		}
		out := d.newSlice(len(typed))
		copy(out, typed)
		return out
	default:
		return nil
	}
}

// disown forgets ownership of every container reachable from v, so a
// container that now lives in a second place is copied before its next
// write. Unowned containers are walked too: a fresh value may wrap owned
// ones.
func (d *Draft) disown(v any) {
	if len(d.owned) == 0 {
		return
	}
	switch typed := v.(type) {
	case map[string]any:
		if typed == nil {
			return
		}
		delete(d.owned, reflect.ValueOf(typed).Pointer())
		for _, child := range typed {
			d.disown(child)
		}
	case []any:
		if typed == nil {
			return
		}
		delete(d.owned, reflect.ValueOf(typed).Pointer())
		for _, child := range typed {
			d.disown(child)
		}
	}
}

func (d *Draft) newMap(size int) map[string]any {
	out := make(map[string]any, size)
	d.markOwned(out)
	return out
}

// newSlice always reserves capacity so the backing array gets its own address.
func (d *Draft) newSlice(size int) []any {
	out := make([]any, size, size+1)
	d.markOwned(out)
	return out
}

func (d *Draft) markOwned(v any) {
	if d.owned == nil {
		d.owned = map[uintptr]any{}
	}
	d.owned[reflect.ValueOf(v).Pointer()] = v
}

func (d *Draft) isOwned(v any) bool {
	if d.owned == nil {
		return false
	}
	_, ok := d.owned[reflect.ValueOf(v).Pointer()]
	return ok
}
