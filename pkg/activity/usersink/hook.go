// Package usersink forwards store activity to a go-users ActivitySink.
package usersink

import (
	"context"

	"github.com/goliatone/go-atom/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// New returns a hook that logs events to sink. Verbs filter like
// activity.OnlyVerbs; none forwards everything.
func New(sink usertypes.ActivitySink, verbs ...string) activity.ActivityHook {
	return activity.OnlyVerbs(Hook{Sink: sink}, verbs...)
}

// Hook logs every routable event to Sink.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify logs the record built from event.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.NormalizeEvent(event)
	if !event.Routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, Record(event))
}

// Record maps event to an ActivityRecord. Actor, user and tenant ids that
// are not UUIDs are kept in Data under actor_id, user_id and tenant_id.
// DefinitionCode and Recipients travel in Data as well.
func Record(event activity.Event) usertypes.ActivityRecord {
	event = activity.NormalizeEvent(event)
	data := make(map[string]any, len(event.Metadata)+2)
	for key, value := range event.Metadata {
		data[key] = value
	}
	if event.DefinitionCode != "" {
		data["definition_code"] = event.DefinitionCode
	}
	if len(event.Recipients) > 0 {
		data["recipients"] = event.Recipients
	}

	record := usertypes.ActivityRecord{
		ActorID:    identity(data, "actor_id", event.ActorID),
		UserID:     identity(data, "user_id", event.UserID),
		TenantID:   identity(data, "tenant_id", event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		OccurredAt: event.OccurredAt,
	}
	if len(data) > 0 {
		record.Data = data
	}
	return record
}

func identity(data map[string]any, key, raw string) uuid.UUID {
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		data[key] = raw
		return uuid.Nil
	}
	return id
}
