package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/services/workqueue"
)

// AssignmentNotifier tells a user they were assigned a task.
// Implementations must not block the caller on delivery.
type AssignmentNotifier interface {
	NotifyAssignment(taskID uuid.UUID, email, taskTitle string)
}

// AssignmentNotificationTask delivers one assignment notification through the work queue.
type AssignmentNotificationTask struct {
	workqueue.BaseTask
	mailer    Mailer
	taskID    uuid.UUID
	email     string
	taskTitle string
}

// NewAssignmentNotificationTask creates the queue task for one assignment.
func NewAssignmentNotificationTask(mailer Mailer, taskID uuid.UUID, email, taskTitle string) *AssignmentNotificationTask {
	return &AssignmentNotificationTask{
		BaseTask:  workqueue.NewBaseTask("assignment-notification"),
		mailer:    mailer,
		taskID:    taskID,
		email:     email,
		taskTitle: taskTitle,
	}
}

var _ workqueue.Task = (*AssignmentNotificationTask)(nil)

func (t *AssignmentNotificationTask) Execute(ctx context.Context, _ workqueue.TaskEnqueuer) error {
	if err := t.mailer.SendAssignmentNotification(ctx, t.email, t.taskTitle); err != nil {
		return fmt.Errorf("failed to notify assignee of task %s: %w", t.taskID, err)
	}
	return nil
}

// queuedAssignmentNotifier enqueues one AssignmentNotificationTask per assignment.
type queuedAssignmentNotifier struct {
	queue  workqueue.TaskEnqueuer
	mailer Mailer
	logger *zap.Logger
}

// NewAssignmentNotifier runs notifications on queue using mailer.
func NewAssignmentNotifier(queue workqueue.TaskEnqueuer, mailer Mailer, logger *zap.Logger) AssignmentNotifier {
	return &queuedAssignmentNotifier{
		queue:  queue,
		mailer: mailer,
		logger: logger.Named("assignment-notifier"),
	}
}

func (n *queuedAssignmentNotifier) NotifyAssignment(taskID uuid.UUID, email, taskTitle string) {
	n.logger.Debug("Queueing assignment notification", zap.String("task_id", taskID.String()))
	n.queue.Enqueue(NewAssignmentNotificationTask(n.mailer, taskID, email, taskTitle))
}

// noopAssignmentNotifier is used when notifications are disabled.
type noopAssignmentNotifier struct{}

// NewNoopAssignmentNotifier returns a notifier that drops every notification.
func NewNoopAssignmentNotifier() AssignmentNotifier {
	return noopAssignmentNotifier{}
}

func (noopAssignmentNotifier) NotifyAssignment(uuid.UUID, string, string) {}
