package atom

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownFunction is returned by FunctionRegistry.Call for names that
// were never registered.
var ErrUnknownFunction = errors.New("atom: unknown function")

// Function is a helper callable from expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry maps names to functions shared with the expression
// engines. Lookups ignore case; Names reports the registered spelling.
type FunctionRegistry struct {
	mu    sync.RWMutex
	byKey map[string]registeredFunction
}

type registeredFunction struct {
	name string
	fn   Function
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{byKey: map[string]registeredFunction{}}
}

// Register adds fn under name. Names that differ only in case collide.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	return r.put(name, fn, false)
}

// Replace adds fn under name, dropping any function registered before.
func (r *FunctionRegistry) Replace(name string, fn Function) error {
	return r.put(name, fn, true)
}

func (r *FunctionRegistry) put(name string, fn Function, replace bool) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return fmt.Errorf("atom: function name must not be empty")
	case fn == nil:
		return fmt.Errorf("atom: function %q is nil", name)
	}
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byKey == nil {
		r.byKey = map[string]registeredFunction{}
	}
	if existing, ok := r.byKey[key]; ok && !replace {
		return fmt.Errorf("atom: function %q already registered as %q", name, existing.name)
	}
	r.byKey[key] = registeredFunction{name: name, fn: fn}
	return nil
}

// Clone returns an independent copy. A nil registry clones to nil.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{byKey: make(map[string]registeredFunction, len(r.byKey))}
	for key, entry := range r.byKey {
		clone.byKey[key] = entry
	}
	return clone
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	var entry registeredFunction
	if r != nil {
		r.mu.RLock()
		entry = r.byKey[strings.ToLower(strings.TrimSpace(name))]
		r.mu.RUnlock()
	}
	if entry.fn == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownFunction, name)
	}
	return entry.fn(args...)
}

// Names returns the registered names, sorted.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byKey))
	for _, entry := range r.byKey {
		names = append(names, entry.name)
	}
	sort.Strings(names)
	return names
}
