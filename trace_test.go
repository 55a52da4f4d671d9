package atom

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTraceHookSeesEverySuccessfulUpdate(t *testing.T) {
	var order []string
	var traces []UpdateTrace
	store := New(sampleDocument(), WithName("todo"), WithTraceHook(func(trace UpdateTrace) {
		order = append(order, "trace")
		traces = append(traces, trace)
	}))
	if err := store.AddWatcher(statisticsWatcher()); err != nil {
		t.Fatalf("add watcher: %v", err)
	}
	cursor := Subscribe(store, func(doc Document) any { return doc["tabs"] }, func(any) {
		order = append(order, "cursor")
	})
	defer cursor.Close()

	if err := store.Update(func(d *Draft) error {
		return d.Set(P("tabs", 1, "active"), true)
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Update(func(*Draft) error { return errors.New("rejected") }); err == nil {
		t.Fatalf("expected mutator error")
	}

	if diff := cmp.Diff([]string{"cursor", "trace"}, order); diff != "" {
		t.Fatalf("delivery order mismatch (-want +got):\n%s", diff)
	}
	got := traces[0]
	if got.Store != "todo" || !got.Published || got.Version != store.Version() {
		t.Fatalf("unexpected trace: %+v", got)
	}
	if diff := cmp.Diff([]string{"list statistics"}, got.Skipped); diff != "" {
		t.Fatalf("skipped mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateTraceString(t *testing.T) {
	trace := UpdateTrace{
		Store:     "todo",
		Version:   4,
		Published: true,
		Applied:   []string{"list statistics"},
		Skipped:   []string{"url tabs"},
	}
	got := trace.String()
	for _, want := range []string{"todo v4 published", "applied=[list statistics]", "skipped=[url tabs]"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
	if got := (UpdateTrace{Store: "todo", Version: 4}).String(); !strings.HasPrefix(got, "todo v4 unchanged") {
		t.Fatalf("unexpected unchanged trace: %q", got)
	}
}
