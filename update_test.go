package atom

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-atom/pkg/activity"
)

func countItems(doc Document) int {
	total := 0
	lists, _ := doc["id2list"].(map[string]any)
	for _, list := range lists {
		items, _ := Get(list, P("id2item")).(map[string]any)
		total += len(items)
	}
	return total
}

func statisticsWatcher() Watcher {
	return Watcher{
		Name:      "list statistics",
		Predicate: Changed(P("id2list")),
		Fn: func(d *Draft) error {
			return d.Set(P("_statistics", "nrOfItems"), countItems(d.Result()))
		},
		RunOnRegister: true,
	}
}

func TestUpdatePublishesOnceWithWatcherEffects(t *testing.T) {
	store := New(sampleDocument())
	if err := store.AddWatcher(statisticsWatcher()); err != nil {
		t.Fatalf("add watcher: %v", err)
	}
	if got := Get(store.Get(), P("_statistics", "nrOfItems")); got != 2 {
		t.Fatalf("expected run on register to count 2 items, got %v", got)
	}
	registered := store.Version()

	var seen []any
	cursor := Subscribe(store, func(doc Document) any {
		return Get(doc, P("_statistics", "nrOfItems"))
	}, func(v any) { seen = append(seen, v) })
	defer cursor.Close()

	trace, err := store.UpdateWithTrace(func(d *Draft) error {
		return d.Delete(P("id2list", "id1", "id2item", "a"))
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if store.Version() != registered+1 {
		t.Fatalf("expected exactly one publication, got version %d from %d", store.Version(), registered)
	}
	if got := Get(store.Get(), P("_statistics", "nrOfItems")); got != 1 {
		t.Fatalf("expected 1 item after delete, got %v", got)
	}
	if diff := cmp.Diff([]any{1}, seen); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"list statistics"}, trace.Applied); diff != "" {
		t.Fatalf("applied mismatch (-want +got):\n%s", diff)
	}
	if !trace.Published || trace.Version != store.Version() {
		t.Fatalf("unexpected trace: %+v", trace)
	}
}

func TestWatcherSkippedWhenPredicateFails(t *testing.T) {
	store := New(sampleDocument())
	if err := store.AddWatcher(statisticsWatcher()); err != nil {
		t.Fatalf("add watcher: %v", err)
	}

	trace, err := store.UpdateWithTrace(func(d *Draft) error {
		return d.Set(P("__ephemeral", "item", "a"), true)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if diff := cmp.Diff([]string{"list statistics"}, trace.Skipped); diff != "" {
		t.Fatalf("skipped mismatch (-want +got):\n%s", diff)
	}
	if len(trace.Applied) != 0 {
		t.Fatalf("expected no applied watchers, got %v", trace.Applied)
	}
}

func TestWatchersRunInRegistrationOrderAndSeeEarlierPatches(t *testing.T) {
	store := New(Document{"n": 1})
	var order []string
	add := func(name string, fn WatchFunc) {
		t.Helper()
		if err := store.AddWatcher(Watcher{Name: name, Fn: fn}); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	add("double", func(d *Draft) error {
		order = append(order, "double")
		return d.Set(P("double"), d.Get(P("n")).(int)*2)
	})
	add("describe", func(d *Draft) error {
		order = append(order, "describe")
		return d.Set(P("label"), fmt.Sprintf("n=%v double=%v", d.Get(P("n")), d.Get(P("double"))))
	})
	// Replacing keeps the original position.
	add("double", func(d *Draft) error {
		order = append(order, "double")
		return d.Set(P("double"), d.Get(P("n")).(int)+d.Get(P("n")).(int))
	})

	if diff := cmp.Diff([]string{"double", "describe"}, store.Watchers()); diff != "" {
		t.Fatalf("watcher order mismatch (-want +got):\n%s", diff)
	}
	if err := store.Update(func(d *Draft) error { return d.Set(P("n"), 3) }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if diff := cmp.Diff([]string{"double", "describe"}, order); diff != "" {
		t.Fatalf("run order mismatch (-want +got):\n%s", diff)
	}
	if got := store.Get()["label"]; got != "n=3 double=6" {
		t.Fatalf("expected later watcher to see earlier patch, got %v", got)
	}
}

func TestWatcherPredicateSeesRawMutation(t *testing.T) {
	store := New(Document{"n": 1})
	if err := store.AddWatcher(Watcher{
		Name: "derive",
		Fn:   func(d *Draft) error { return d.Set(P("derived"), true) },
	}); err != nil {
		t.Fatalf("add derive: %v", err)
	}
	var sawDerived bool
	if err := store.AddWatcher(Watcher{
		Name: "observer",
		Predicate: func(before, after Document) bool {
			_, sawDerived = after["derived"]
			return true
		},
		Fn: func(*Draft) error { return nil },
	}); err != nil {
		t.Fatalf("add observer: %v", err)
	}

	if err := store.Update(func(d *Draft) error { return d.Set(P("n"), 2) }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if sawDerived {
		t.Fatalf("expected predicate to see the mutator result only")
	}
}

func TestUpdateIsDeterministic(t *testing.T) {
	run := func() Document {
		store := New(sampleDocument())
		if err := store.AddWatcher(statisticsWatcher()); err != nil {
			t.Fatalf("add watcher: %v", err)
		}
		if err := store.AddWatcher(Watcher{
			Name:      "titles",
			Predicate: Changed(P("id2list")),
			Fn: func(d *Draft) error {
				return d.Set(P("_statistics", "lists"), d.Len(P("id2list")))
			},
		}); err != nil {
			t.Fatalf("add watcher: %v", err)
		}
		if err := store.Update(func(d *Draft) error {
			return d.Set(P("id2list", "id3"), map[string]any{"id": "id3", "title": "New", "id2item": map[string]any{}})
		}); err != nil {
			t.Fatalf("update: %v", err)
		}
		return store.Get()
	}

	first, second := run(), run()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("expected identical results (-first +second):\n%s", diff)
	}
}

func TestUpdateFailureLeavesStoreUnchanged(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		name    string
		watcher *Watcher
		mutate  Mutator
		stage   Stage
	}{
		{
			name:   "mutator error",
			mutate: func(d *Draft) error { _ = d.Set(P("n"), 2); return boom },
			stage:  StageMutator,
		},
		{
			name:   "mutator panic",
			mutate: func(d *Draft) error { panic(boom) },
			stage:  StageMutator,
		},
		{
			name:    "watcher error",
			watcher: &Watcher{Name: "fails", Fn: func(d *Draft) error { _ = d.Set(P("w"), 1); return boom }},
			mutate:  func(d *Draft) error { return d.Set(P("n"), 2) },
			stage:   StageWatcher,
		},
		{
			name:    "predicate panic",
			watcher: &Watcher{Name: "bad predicate", Predicate: func(Document, Document) bool { panic("nope") }, Fn: func(*Draft) error { return nil }},
			mutate:  func(d *Draft) error { return d.Set(P("n"), 2) },
			stage:   StagePredicate,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			initial := Document{"n": 1}
			store := New(initial)
			if tc.watcher != nil {
				if err := store.AddWatcher(*tc.watcher); err != nil {
					t.Fatalf("add watcher: %v", err)
				}
			}
			notified := 0
			cursor := Subscribe(store, func(doc Document) Document { return doc }, func(Document) { notified++ })
			defer cursor.Close()

			err := store.Update(tc.mutate)

			var mutationErr *MutationError
			if !errors.As(err, &mutationErr) {
				t.Fatalf("expected MutationError, got %v", err)
			}
			if mutationErr.Stage != tc.stage {
				t.Fatalf("expected stage %s, got %s", tc.stage, mutationErr.Stage)
			}
			if tc.stage != StagePredicate && !errors.Is(err, boom) {
				t.Fatalf("expected wrapped cause, got %v", err)
			}
			if !Same(store.Get(), initial) || store.Version() != 0 {
				t.Fatalf("expected store untouched, got %v at version %d", store.Get(), store.Version())
			}
			if initial["n"] != 1 {
				t.Fatalf("expected initial document untouched")
			}
			if notified != 0 {
				t.Fatalf("expected no notifications, got %d", notified)
			}
		})
	}
}

func TestUpdateWithoutChangesDoesNotPublish(t *testing.T) {
	store := New(Document{"n": 1})
	trace, err := store.UpdateWithTrace(func(d *Draft) error { return d.Set(P("n"), 1) })
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if trace.Published || store.Version() != 0 {
		t.Fatalf("expected no publication, got %+v", trace)
	}
}

func TestAddWatcherValidation(t *testing.T) {
	store := New(nil)
	if err := store.AddWatcher(Watcher{Fn: func(*Draft) error { return nil }}); !errors.Is(err, ErrWatcherNameRequired) {
		t.Fatalf("expected ErrWatcherNameRequired, got %v", err)
	}
	if err := store.AddWatcher(Watcher{Name: "x"}); !errors.Is(err, ErrWatcherFnRequired) {
		t.Fatalf("expected ErrWatcherFnRequired, got %v", err)
	}
	if err := store.Update(nil); !errors.Is(err, ErrMutatorRequired) {
		t.Fatalf("expected ErrMutatorRequired, got %v", err)
	}
	if err := store.AddWatcher(Watcher{Name: "bad", When: "after.(", Fn: func(*Draft) error { return nil }}); err == nil {
		t.Fatalf("expected compile error for invalid expression")
	}
}

func TestRunOnRegisterOnlyRunsNewWatcher(t *testing.T) {
	store := New(Document{"n": 1})
	calls := 0
	if err := store.AddWatcher(Watcher{Name: "first", Fn: func(*Draft) error { calls++; return nil }}); err != nil {
		t.Fatalf("add first: %v", err)
	}
	if err := store.AddWatcher(Watcher{
		Name:          "second",
		Fn:            func(d *Draft) error { return d.Set(P("seeded"), true) },
		RunOnRegister: true,
	}); err != nil {
		t.Fatalf("add second: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected unrelated watcher not to run, got %d calls", calls)
	}
	if store.Get()["seeded"] != true || store.Version() != 1 {
		t.Fatalf("expected seeded value published, got %v at %d", store.Get(), store.Version())
	}
}

func TestRemoveWatcher(t *testing.T) {
	store := New(Document{"n": 1})
	if err := store.AddWatcher(Watcher{Name: "w", Fn: func(d *Draft) error { return d.Set(P("w"), true) }}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !store.RemoveWatcher("w") {
		t.Fatalf("expected watcher removed")
	}
	if store.RemoveWatcher("w") {
		t.Fatalf("expected second removal to report false")
	}
	if err := store.Update(func(d *Draft) error { return d.Set(P("n"), 2) }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, ok := store.Get()["w"]; ok {
		t.Fatalf("expected removed watcher not to run")
	}
}

func TestWatcherExpressionsAcrossEvaluators(t *testing.T) {
	type testCase struct {
		Name   string         `json:"name"`
		When   string         `json:"when"`
		Before map[string]any `json:"before"`
		After  map[string]any `json:"after"`
		Expect bool           `json:"expect"`
		Err    string         `json:"err"`
	}
	type fixture struct {
		Cases []testCase `json:"cases"`
	}
	fx := loadFixture[fixture](t, "watcher_expressions.json")

	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skipf("%s evaluator not compiled in", factory.name)
			}
			for _, tc := range fx.Cases {
				tc := tc
				t.Run(tc.Name, func(t *testing.T) {
					store := New(tc.Before, WithEvaluator(evaluator))
					ran := false
					if err := store.AddWatcher(Watcher{
						Name: "expression",
						When: tc.When,
						Fn:   func(*Draft) error { ran = true; return nil },
					}); err != nil {
						t.Fatalf("add watcher: %v", err)
					}

					err := store.Update(func(d *Draft) error { return d.Set(Path{}, tc.After) })

					if tc.Err != "" {
						if err == nil || !strings.Contains(err.Error(), tc.Err) {
							t.Fatalf("expected error containing %q, got %v", tc.Err, err)
						}
						return
					}
					if err != nil {
						t.Fatalf("update: %v", err)
					}
					if ran != tc.Expect {
						t.Fatalf("expected ran=%v, got %v", tc.Expect, ran)
					}
				})
			}
		})
	}
}

func TestUpdateEmitsActivityAndLogs(t *testing.T) {
	capture := &activity.CaptureHook{}
	var events []LogEvent
	store := New(Document{"n": 1},
		WithName("todo"),
		WithActivityHooks(activity.Hooks{capture}),
		WithLogger(LoggerFunc(func(event LogEvent) { events = append(events, event) })),
	)
	if err := store.AddWatcher(Watcher{Name: "noop", Fn: func(*Draft) error { return nil }}); err != nil {
		t.Fatalf("add watcher: %v", err)
	}
	if err := store.Update(func(d *Draft) error { return d.Set(P("n"), 2) }); err != nil {
		t.Fatalf("update: %v", err)
	}

	if diff := cmp.Diff([]string{"atom.watcher.registered", "atom.document.updated"}, capture.Verbs()); diff != "" {
		t.Fatalf("activity mismatch (-want +got):\n%s", diff)
	}
	updated := capture.Events()[1]
	if updated.ObjectID != "todo" || updated.Channel != "atom" || updated.Metadata["version"] != uint64(1) {
		t.Fatalf("unexpected update event: %+v", updated)
	}
	if len(events) != 1 || events[0].Kind != EventUpdate || !events[0].Published || events[0].Store != "todo" {
		t.Fatalf("unexpected log events: %+v", events)
	}
}

func TestActivityHookFailureDoesNotFailUpdate(t *testing.T) {
	var events []LogEvent
	store := New(Document{"n": 1},
		WithActivityHooks(activity.Hooks{activity.HookFunc(func(context.Context, activity.Event) error {
			return errors.New("sink down")
		})}),
		WithLogger(LoggerFunc(func(event LogEvent) { events = append(events, event) })),
	)
	if err := store.Update(func(d *Draft) error { return d.Set(P("n"), 2) }); err != nil {
		t.Fatalf("update: %v", err)
	}
	if store.Get()["n"] != 2 {
		t.Fatalf("expected update published")
	}
	var activityErr error
	for _, event := range events {
		if event.Kind == EventActivity {
			activityErr = event.Err
		}
	}
	if activityErr == nil {
		t.Fatalf("expected activity failure to be logged, got %+v", events)
	}
}
