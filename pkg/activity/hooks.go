// Package activity fans store lifecycle events out to audit hooks.
package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Event describes one store occurrence. IDs are strings so hooks decide how
// to parse them.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Routable reports whether the event names a verb and an object. Hooks only
// receive routable events.
func (e Event) Routable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// ActivityHook receives normalized events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify calls fn.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks is an ordered set of hooks notified together.
type Hooks []ActivityHook

// Enabled reports whether any hook is present.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes event and hands it to every hook in order. Events that
// are not routable are dropped. Every hook runs even when an earlier one
// fails; failures are joined.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	event = NormalizeEvent(event)
	if !event.Routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for i, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("activity: hook %d on %s: %w", i, event.Verb, err))
		}
	}
	return errors.Join(errs...)
}

// OnlyVerbs forwards to hook the events whose verb equals one of verbs or,
// for entries ending in ".", starts with it. "atom.document." matches every
// document event.
func OnlyVerbs(hook ActivityHook, verbs ...string) ActivityHook {
	accept := make([]string, 0, len(verbs))
	for _, verb := range verbs {
		if verb = strings.TrimSpace(verb); verb != "" {
			accept = append(accept, verb)
		}
	}
	return HookFunc(func(ctx context.Context, event Event) error {
		if hook == nil {
			return nil
		}
		if len(accept) == 0 {
			return hook.Notify(ctx, event)
		}
		for _, verb := range accept {
			if event.Verb == verb || (strings.HasSuffix(verb, ".") && strings.HasPrefix(event.Verb, verb)) {
				return hook.Notify(ctx, event)
			}
		}
		return nil
	})
}

// NormalizeEvent returns a copy of event with trimmed identifiers, private
// metadata and recipients, and a timestamp.
func NormalizeEvent(event Event) Event {
	for _, field := range []*string{
		&event.Verb, &event.ActorID, &event.UserID, &event.TenantID,
		&event.ObjectType, &event.ObjectID, &event.Channel, &event.DefinitionCode,
	} {
		*field = strings.TrimSpace(*field)
	}
	event.Metadata = cloneMap(event.Metadata)
	if len(event.Recipients) > 0 {
		event.Recipients = append([]string(nil), event.Recipients...)
	} else {
		event.Recipients = nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return event
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
