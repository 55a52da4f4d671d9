package atom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPatchAtAppliesJSONPatchToSubtree(t *testing.T) {
	store := New(sampleDocument())
	before := store.Get()

	patch := []byte(`[
		{"op": "replace", "path": "/title", "value": "Food"},
		{"op": "add", "path": "/id2item/c", "value": {"id": "c", "title": "Eggs", "order": 2}}
	]`)
	if err := store.Update(PatchAt(P("id2list", "id1"), patch)); err != nil {
		t.Fatalf("patch: %v", err)
	}

	after := store.Get()
	if got := Get(after, P("id2list", "id1", "title")); got != "Food" {
		t.Fatalf("expected Food, got %v", got)
	}
	if got := Get(after, P("id2list", "id1", "id2item", "c", "title")); got != "Eggs" {
		t.Fatalf("expected Eggs, got %v", got)
	}
	// Items the patch did not touch keep their identity and their int order.
	if !Same(Get(after, P("id2list", "id1", "id2item", "a")), Get(before, P("id2list", "id1", "id2item", "a"))) {
		t.Fatalf("expected untouched item to be shared")
	}
	if got := Get(after, P("id2list", "id1", "id2item", "b", "order")); got != 1 {
		t.Fatalf("expected order to stay int 1, got %#v", got)
	}
	if !Same(Get(after, P("id2list", "id2")), Get(before, P("id2list", "id2"))) {
		t.Fatalf("expected sibling list to be shared")
	}
}

func TestPatchAtFailureAbortsUpdate(t *testing.T) {
	store := New(sampleDocument())
	before := store.Get()

	patch := []byte(`[{"op": "remove", "path": "/missing"}]`)
	if err := store.Update(PatchAt(P("id2list", "id1"), patch)); err == nil {
		t.Fatalf("expected patch error")
	}
	if err := store.Update(PatchAt(P("id2list"), []byte(`not json`))); err == nil {
		t.Fatalf("expected decode error")
	}
	if !Same(store.Get(), before) {
		t.Fatalf("expected store untouched")
	}
}

func TestMergeAtAppliesMergePatch(t *testing.T) {
	store := New(Document{"url": map[string]any{"path": []any{"list", "id1"}, "params": map[string]any{"q": "milk"}}})

	if err := store.Update(MergeAt(P("url"), []byte(`{"params": {"q": null, "sort": "title"}}`))); err != nil {
		t.Fatalf("merge: %v", err)
	}
	want := map[string]any{
		"path":   []any{"list", "id1"},
		"params": map[string]any{"sort": "title"},
	}
	if diff := cmp.Diff(want, store.Get()["url"]); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeAtCreatesMissingSubtree(t *testing.T) {
	store := New(Document{})
	if err := store.Update(MergeAt(P("_statistics"), []byte(`{"nrOfItems": 0}`))); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got := Get(store.Get(), P("_statistics", "nrOfItems")); got != float64(0) {
		t.Fatalf("expected nrOfItems 0, got %#v", got)
	}
}
