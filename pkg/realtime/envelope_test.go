package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peroxia-tech/peroxia-engine/pkg/models"
)

func decode(t *testing.T, env Envelope) (string, map[string]any) {
	t.Helper()
	raw, err := env.Marshal()
	require.NoError(t, err)

	var wire struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &wire))
	return wire.Event, wire.Data
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestEnvelopes_FieldSets(t *testing.T) {
	assignee := uuid.New()
	desc := "not on the wire"
	task := &models.Task{
		ID:          uuid.New(),
		ProjectID:   uuid.New(),
		Title:       "Write tests",
		Description: &desc,
		Status:      models.TaskStatusInProgress,
		AssigneeID:  &assignee,
	}

	event, data := decode(t, TaskCreated(task))
	assert.Equal(t, "task_created", event)
	assert.ElementsMatch(t, []string{"id", "title", "status", "project_id"}, keys(data))
	assert.Equal(t, task.ID.String(), data["id"])
	assert.Equal(t, task.ProjectID.String(), data["project_id"])
	assert.Equal(t, "in_progress", data["status"])

	event, data = decode(t, TaskUpdated(task))
	assert.Equal(t, "task_updated", event)
	assert.ElementsMatch(t, []string{"id", "title", "status", "assignee_id"}, keys(data))
	assert.Equal(t, assignee.String(), data["assignee_id"])

	event, data = decode(t, StatusChanged(task))
	assert.Equal(t, "status_changed", event)
	assert.ElementsMatch(t, []string{"id", "status"}, keys(data))
	assert.Equal(t, "in_progress", data["status"])
}

func TestTaskUpdated_UnassignedIsNull(t *testing.T) {
	task := &models.Task{ID: uuid.New(), Title: "t", Status: models.TaskStatusTodo}

	raw, err := TaskUpdated(task).Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"assignee_id":null`)
}
