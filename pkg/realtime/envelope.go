package realtime

import (
	"encoding/json"

	"github.com/peroxia-tech/peroxia-engine/pkg/models"
)

// EventKind names the kind of task mutation an Envelope describes.
type EventKind string

const (
	EventTaskCreated   EventKind = "task_created"
	EventTaskUpdated   EventKind = "task_updated"
	EventStatusChanged EventKind = "status_changed"
)

// Envelope is the wire shape of one event: {"event": ..., "data": {...}}.
// Envelopes are built from already committed state and never mutated afterwards.
type Envelope struct {
	Event EventKind      `json:"event"`
	Data  map[string]any `json:"data"`
}

// Marshal serializes the envelope once for all recipients.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// TaskCreated builds the task_created event: id, title, status, project_id.
func TaskCreated(t *models.Task) Envelope {
	return Envelope{
		Event: EventTaskCreated,
		Data: map[string]any{
			"id":         t.ID,
			"title":      t.Title,
			"status":     t.Status,
			"project_id": t.ProjectID,
		},
	}
}

// TaskUpdated builds the task_updated event: id, title, status, assignee_id.
// assignee_id is null when the task is unassigned.
func TaskUpdated(t *models.Task) Envelope {
	var assignee any
	if t.AssigneeID != nil {
		assignee = *t.AssigneeID
	}
	return Envelope{
		Event: EventTaskUpdated,
		Data: map[string]any{
			"id":          t.ID,
			"title":       t.Title,
			"status":      t.Status,
			"assignee_id": assignee,
		},
	}
}

// StatusChanged builds the status_changed event: id, status.
func StatusChanged(t *models.Task) Envelope {
	return Envelope{
		Event: EventStatusChanged,
		Data: map[string]any{
			"id":     t.ID,
			"status": t.Status,
		},
	}
}
