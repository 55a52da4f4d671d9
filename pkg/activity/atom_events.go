package activity

import (
	"strings"
	"time"
)

// DocumentEventInput describes the common fields for store lifecycle events.
type DocumentEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	Store          string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	Version        uint64
	Watcher        string
	Applied        []string
	OccurredAt     time.Time
}

// BuildDocumentUpdatedEvent constructs an event for a value published by an update.
func BuildDocumentUpdatedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent("atom.document.updated", "atom.document", input)
}

// BuildDocumentSetEvent constructs an event for a value published by a direct set.
func BuildDocumentSetEvent(input DocumentEventInput) Event {
	return buildDocumentEvent("atom.document.set", "atom.document", input)
}

// BuildWatcherRegisteredEvent constructs an event for a watcher registration.
func BuildWatcherRegisteredEvent(input DocumentEventInput) Event {
	return buildDocumentEvent("atom.watcher.registered", "atom.watcher", input)
}

// BuildWatcherRemovedEvent constructs an event for a watcher removal.
func BuildWatcherRemovedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent("atom.watcher.removed", "atom.watcher", input)
}

func buildDocumentEvent(verb, objectType string, input DocumentEventInput) Event {
	metadata := cloneMap(input.Metadata)
	store := strings.TrimSpace(input.Store)
	if store != "" {
		metadata = ensureMetadata(metadata)
		metadata["store"] = store
	}
	if input.Version > 0 {
		metadata = ensureMetadata(metadata)
		metadata["version"] = input.Version
	}
	if len(input.Applied) > 0 {
		metadata = ensureMetadata(metadata)
		metadata["applied"] = append([]string{}, input.Applied...)
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := store
	if watcher := strings.TrimSpace(input.Watcher); watcher != "" {
		metadata = ensureMetadata(metadata)
		metadata["watcher"] = watcher
		if objectType == "atom.watcher" {
			objectID = watcher
		}
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
