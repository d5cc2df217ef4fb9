package steps

import (
	"context"
	"time"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/template"
)

const defaultTaskPriority = "medium"

func executeCreateTask(ctx context.Context, env *Env, automation *models.Automation, enrollment *models.Enrollment, contact *models.Contact, step *models.Step) Outcome {
	config, err := DecodeConfig[CreateTaskConfig](step.Config)
	if err != nil {
		return failf("invalid create_task config: %v", err)
	}

	data := template.Data(contact, enrollment, nil)

	title, err := template.Render(config.Title, data)
	if err != nil || title == "" {
		title = "Follow up with " + contact.FullName()
	}

	description, err := template.Render(config.Description, data)
	if err != nil {
		description = config.Description
	}

	priority := config.Priority
	if priority == "" {
		priority = defaultTaskPriority
	}

	var dueAt *time.Time

	if config.DueDays > 0 {
		due := env.now().AddDate(0, 0, config.DueDays)
		dueAt = &due
	}

	task := &models.Task{
		OrganizationID: automation.OrganizationID,
		ContactID:      contact.ID,
		EnrollmentID:   enrollment.ID,
		Title:          title,
		Description:    description,
		Priority:       priority,
		AssigneeID:     config.AssigneeID,
		DueAt:          dueAt,
	}

	// Task creation is best-effort: a store error is logged but does not
	// fail the run.
	err = env.Persistence.Tasks().Create(ctx, task)
	if err != nil {
		env.Logger.Warn("Failed to create task", "enrollment_id", enrollment.ID, "error", err)

		return succeed(map[string]any{"created": false})
	}

	return succeed(map[string]any{"created": true, "task_id": task.ID})
}
