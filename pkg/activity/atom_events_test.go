package activity

import (
	"context"
	"testing"
)

func TestBuildDocumentUpdatedEventIncludesMetadata(t *testing.T) {
	meta := map[string]any{"custom": "value"}
	input := DocumentEventInput{
		ActorID:        " actor ",
		UserID:         " user ",
		TenantID:       " tenant ",
		Store:          " todo ",
		Metadata:       meta,
		Version:        7,
		Applied:        []string{"list statistics"},
		DefinitionCode: "atom:update",
		Recipients:     []string{"user@example.com"},
		Channel:        "atom",
	}

	event := BuildDocumentUpdatedEvent(input)

	if event.Verb != "atom.document.updated" {
		t.Fatalf("expected verb atom.document.updated got %s", event.Verb)
	}
	if event.ObjectType != "atom.document" || event.ObjectID != "todo" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.ActorID != "actor" || event.UserID != "user" || event.TenantID != "tenant" {
		t.Fatalf("unexpected identity fields: %+v", event)
	}
	if event.Metadata["store"] != "todo" || event.Metadata["version"] != uint64(7) {
		t.Fatalf("expected store metadata, got %+v", event.Metadata)
	}
	applied, ok := event.Metadata["applied"].([]string)
	if !ok || len(applied) != 1 || applied[0] != "list statistics" {
		t.Fatalf("expected applied watchers, got %v", event.Metadata["applied"])
	}
	applied[0] = "changed"
	if input.Applied[0] != "list statistics" {
		t.Fatalf("expected input applied untouched, got %v", input.Applied)
	}
	event.Recipients[0] = "changed"
	if input.Recipients[0] != "user@example.com" {
		t.Fatalf("expected input recipients untouched, got %v", input.Recipients)
	}
	if _, ok := meta["store"]; ok {
		t.Fatalf("expected input metadata untouched")
	}
}

func TestBuildDocumentSetEventUsesFallbackObjectID(t *testing.T) {
	event := BuildDocumentSetEvent(DocumentEventInput{})
	if event.ObjectID != "atom.document" {
		t.Fatalf("expected fallback object ID 'atom.document', got %q", event.ObjectID)
	}
	if event.Metadata != nil {
		t.Fatalf("expected no metadata, got %+v", event.Metadata)
	}
}

func TestBuildWatcherRegisteredEventPrefersWatcherName(t *testing.T) {
	event := BuildWatcherRegisteredEvent(DocumentEventInput{Store: "todo", Watcher: "url tabs"})
	if event.Verb != "atom.watcher.registered" {
		t.Fatalf("expected verb atom.watcher.registered got %s", event.Verb)
	}
	if event.ObjectType != "atom.watcher" || event.ObjectID != "url tabs" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.Metadata["store"] != "todo" || event.Metadata["watcher"] != "url tabs" {
		t.Fatalf("expected watcher metadata, got %+v", event.Metadata)
	}
}

func TestBuildDocumentEventsWorkWithHooks(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}

	event := BuildWatcherRemovedEvent(DocumentEventInput{Store: "todo", Watcher: "list statistics"})
	if err := hooks.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	verbs := capture.Verbs()
	if len(verbs) != 1 || verbs[0] != "atom.watcher.removed" {
		t.Fatalf("expected one atom.watcher.removed event, got %v", verbs)
	}
}
