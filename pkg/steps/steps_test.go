package steps

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/relay/pkg/messaging"
	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence/memory"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) (*Env, *memory.Persistence) {
	t.Helper()

	store := memory.NewPersistence()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &Env{
		Persistence: store,
		Email:       messaging.NewSimulatedEmailSender(logger),
		SMS:         messaging.NewSimulatedSMSSender(logger),
		Logger:      logger,
		Now:         func() time.Time { return testNow },
	}, store
}

func seedContact(t *testing.T, store *memory.Persistence, contact *models.Contact) *models.Contact {
	t.Helper()

	err := store.Contacts().Save(context.Background(), contact)
	require.NoError(t, err)

	return contact
}

func testAutomation() *models.Automation {
	return &models.Automation{ID: "auto-1", OrganizationID: "org-1"}
}

func testEnrollment() *models.Enrollment {
	return &models.Enrollment{ID: "enr-1", AutomationID: "auto-1", ContactID: "contact-1"}
}

func TestExecute_UnknownKind(t *testing.T) {
	env, _ := newTestEnv(t)

	outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), &models.Contact{}, &models.Step{Kind: "teleport"})
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "unknown step kind")
}

func TestExecute_Wait(t *testing.T) {
	env, _ := newTestEnv(t)

	t.Run("combines delay fields", func(t *testing.T) {
		outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), &models.Contact{}, &models.Step{
			Kind:   models.StepWait,
			Config: map[string]any{"delay_minutes": 30, "delay_hours": 1, "delay_days": 1},
		})
		require.True(t, outcome.Success)
		require.NotNil(t, outcome.WaitUntil)
		assert.Equal(t, testNow.Add(30*time.Minute+time.Hour+24*time.Hour), *outcome.WaitUntil)
	})

	t.Run("zero delay succeeds without parking", func(t *testing.T) {
		outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), &models.Contact{}, &models.Step{
			Kind:   models.StepWait,
			Config: map[string]any{},
		})
		require.True(t, outcome.Success)
		assert.Nil(t, outcome.WaitUntil)
	})

	t.Run("malformed config treated as zero delay", func(t *testing.T) {
		outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), &models.Contact{}, &models.Step{
			Kind:   models.StepWait,
			Config: map[string]any{"delay_minutes": "soon"},
		})
		require.True(t, outcome.Success)
		assert.Nil(t, outcome.WaitUntil)
	})
}

func TestExecute_AddTag(t *testing.T) {
	env, store := newTestEnv(t)
	contact := seedContact(t, store, &models.Contact{ID: "contact-1", Tags: []string{"lead"}})

	step := &models.Step{Kind: models.StepAddTag, Config: map[string]any{"tag_name": "customer"}}

	outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, step)
	require.True(t, outcome.Success)
	assert.Equal(t, true, outcome.Output["added"])

	// Idempotent: adding again reports success without duplicating.
	outcome = Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, step)
	require.True(t, outcome.Success)
	assert.Equal(t, false, outcome.Output["added"])

	stored, err := store.Contacts().GetByID(context.Background(), "contact-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"lead", "customer"}, stored.Tags)
}

func TestExecute_AddTag_MissingName(t *testing.T) {
	env, store := newTestEnv(t)
	contact := seedContact(t, store, &models.Contact{ID: "contact-1"})

	outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
		Kind:   models.StepAddTag,
		Config: map[string]any{},
	})
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "tag_name is required")
}

func TestExecute_RemoveTag(t *testing.T) {
	env, store := newTestEnv(t)
	contact := seedContact(t, store, &models.Contact{ID: "contact-1", Tags: []string{"lead", "vip"}})

	outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
		Kind:   models.StepRemoveTag,
		Config: map[string]any{"tag_name": "lead"},
	})
	require.True(t, outcome.Success)

	stored, err := store.Contacts().GetByID(context.Background(), "contact-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, stored.Tags)

	// Removing an absent tag is a no-op success.
	outcome = Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
		Kind:   models.StepRemoveTag,
		Config: map[string]any{"tag_name": "lead"},
	})
	require.True(t, outcome.Success)
	assert.Equal(t, false, outcome.Output["removed"])
}

func TestExecute_SendEmail(t *testing.T) {
	env, store := newTestEnv(t)
	contact := seedContact(t, store, &models.Contact{ID: "contact-1", Email: "jane@example.com", FirstName: "Jane"})

	err := store.Templates().Save(context.Background(), &models.MessageTemplate{
		ID:             "tpl-welcome",
		OrganizationID: "org-1",
		Channel:        models.ChannelEmail,
		Subject:        "Welcome {{ .contact.first_name }}",
		Body:           "Hi {{ .contact.first_name }}, thanks for signing up.",
	})
	require.NoError(t, err)

	outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
		Kind:   models.StepSendEmail,
		Config: map[string]any{"template_id": "tpl-welcome"},
	})
	require.True(t, outcome.Success, outcome.Error)
	assert.Equal(t, true, outcome.Output["simulated"])

	logs, err := store.MessageLogs().ListByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ChannelEmail, logs[0].Channel)
	assert.Equal(t, "Welcome Jane", logs[0].Subject)
	assert.Equal(t, models.MessageLogSimulated, logs[0].Status)
}

func TestExecute_SendEmail_Failures(t *testing.T) {
	env, store := newTestEnv(t)

	t.Run("missing email", func(t *testing.T) {
		contact := seedContact(t, store, &models.Contact{ID: "contact-1"})

		outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
			Kind:   models.StepSendEmail,
			Config: map[string]any{"template_id": "tpl-welcome"},
		})
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.Error, "no email address")
	})

	t.Run("template not found", func(t *testing.T) {
		contact := seedContact(t, store, &models.Contact{ID: "contact-2", Email: "a@b.com"})

		outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
			Kind:   models.StepSendEmail,
			Config: map[string]any{"template_id": "missing"},
		})
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.Error, "not found")
	})

	t.Run("template_id absent", func(t *testing.T) {
		contact := seedContact(t, store, &models.Contact{ID: "contact-3", Email: "a@b.com"})

		outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
			Kind:   models.StepSendEmail,
			Config: map[string]any{},
		})
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.Error, "template_id is required")
	})
}

func TestExecute_SendSMS_InlineMessage(t *testing.T) {
	env, store := newTestEnv(t)
	contact := seedContact(t, store, &models.Contact{ID: "contact-1", Phone: "(555) 123-4567", FirstName: "Jane"})

	outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
		Kind:   models.StepSendSMS,
		Config: map[string]any{"message": "Hi {{ .contact.first_name }}, your order shipped."},
	})
	require.True(t, outcome.Success, outcome.Error)
	assert.Equal(t, 1, outcome.Output["segments"])

	logs, err := store.MessageLogs().ListByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "+15551234567", logs[0].Recipient)
	assert.Equal(t, "Hi Jane, your order shipped.", logs[0].Body)
	assert.Equal(t, messaging.EncodingGSM7, logs[0].Encoding)
}

func TestExecute_SendSMS_Failures(t *testing.T) {
	env, store := newTestEnv(t)

	t.Run("missing phone", func(t *testing.T) {
		contact := seedContact(t, store, &models.Contact{ID: "contact-1"})

		outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
			Kind:   models.StepSendSMS,
			Config: map[string]any{"message": "hello"},
		})
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.Error, "no phone number")
	})

	t.Run("neither template nor message", func(t *testing.T) {
		contact := seedContact(t, store, &models.Contact{ID: "contact-2", Phone: "5551234567"})

		outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
			Kind:   models.StepSendSMS,
			Config: map[string]any{},
		})
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.Error, "template_id or message")
	})

	t.Run("invalid phone", func(t *testing.T) {
		contact := seedContact(t, store, &models.Contact{ID: "contact-3", Phone: "123"})

		outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
			Kind:   models.StepSendSMS,
			Config: map[string]any{"message": "hello"},
		})
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.Error, "invalid phone number")
	})
}

func TestExecute_CreateTask(t *testing.T) {
	env, store := newTestEnv(t)
	contact := seedContact(t, store, &models.Contact{ID: "contact-1", FirstName: "Jane", LastName: "Doe"})

	outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
		Kind: models.StepCreateTask,
		Config: map[string]any{
			"title":    "Call {{ .contact.full_name }}",
			"due_days": 3,
			"priority": "high",
		},
	})
	require.True(t, outcome.Success)

	tasks, err := store.Tasks().ListByContact(context.Background(), "contact-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Call Jane Doe", tasks[0].Title)
	assert.Equal(t, "high", tasks[0].Priority)
	require.NotNil(t, tasks[0].DueAt)
	assert.Equal(t, testNow.AddDate(0, 0, 3), *tasks[0].DueAt)
}

func TestExecute_CreateTask_DefaultsTitle(t *testing.T) {
	env, store := newTestEnv(t)
	contact := seedContact(t, store, &models.Contact{ID: "contact-1", FirstName: "Jane"})

	outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
		Kind:   models.StepCreateTask,
		Config: map[string]any{},
	})
	require.True(t, outcome.Success)

	tasks, err := store.Tasks().ListByContact(context.Background(), "contact-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Follow up with Jane", tasks[0].Title)
	assert.Equal(t, defaultTaskPriority, tasks[0].Priority)
	assert.Nil(t, tasks[0].DueAt)
}

func TestExecute_UpdateContact(t *testing.T) {
	env, store := newTestEnv(t)
	contact := seedContact(t, store, &models.Contact{
		ID:           "contact-1",
		Status:       "lead",
		CustomFields: map[string]any{"plan": "free", "seats": 1},
	})

	outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
		Kind: models.StepUpdateContact,
		Config: map[string]any{
			"custom_fields": map[string]any{"plan": "pro"},
			"status":        "customer",
		},
	})
	require.True(t, outcome.Success)

	stored, err := store.Contacts().GetByID(context.Background(), "contact-1")
	require.NoError(t, err)
	assert.Equal(t, "customer", stored.Status)
	assert.Equal(t, "pro", stored.CustomFields["plan"])
	assert.Equal(t, 1, stored.CustomFields["seats"])
}

func TestExecute_UpdateContact_NoOp(t *testing.T) {
	env, store := newTestEnv(t)
	contact := seedContact(t, store, &models.Contact{ID: "contact-1", Status: "lead"})

	outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
		Kind:   models.StepUpdateContact,
		Config: map[string]any{},
	})
	require.True(t, outcome.Success)
	assert.Equal(t, false, outcome.Output["updated"])
}

func TestExecute_Webhook(t *testing.T) {
	env, _ := newTestEnv(t)

	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	contact := &models.Contact{ID: "contact-1", Email: "jane@example.com"}
	step := &models.Step{
		Position: 2,
		Kind:     models.StepWebhook,
		Config: map[string]any{
			"url":     server.URL,
			"headers": map[string]any{"X-Api-Key": "secret"},
			"payload": map[string]any{"campaign": "spring"},
		},
	}

	outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, step)
	require.True(t, outcome.Success, outcome.Error)
	assert.Equal(t, 200, outcome.Context["webhook_2_status"])
	assert.Equal(t, "automation.webhook", received["event"])
	assert.Equal(t, "spring", received["campaign"])

	contactSummary, ok := received["contact"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", contactSummary["email"])
}

func TestExecute_Webhook_Failures(t *testing.T) {
	env, _ := newTestEnv(t)

	t.Run("missing url", func(t *testing.T) {
		outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), &models.Contact{}, &models.Step{
			Kind:   models.StepWebhook,
			Config: map[string]any{},
		})
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.Error, "url is required")
	})

	t.Run("non-2xx response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), &models.Contact{}, &models.Step{
			Kind:   models.StepWebhook,
			Config: map[string]any{"url": server.URL},
		})
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.Error, "status 502")
	})
}

func TestExecute_MoveDeal(t *testing.T) {
	env, store := newTestEnv(t)
	contact := seedContact(t, store, &models.Contact{ID: "contact-1"})

	err := store.Deals().Save(context.Background(), &models.Deal{
		ID:        "deal-1",
		ContactID: "contact-1",
		StageID:   "stage-new",
		Status:    models.DealStatusOpen,
	})
	require.NoError(t, err)

	outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
		Kind:   models.StepMoveDeal,
		Config: map[string]any{"stage_id": "stage-won"},
	})
	require.True(t, outcome.Success, outcome.Error)
	assert.Equal(t, "deal-1", outcome.Output["deal_id"])

	deal, err := store.Deals().GetByID(context.Background(), "deal-1")
	require.NoError(t, err)
	assert.Equal(t, "stage-won", deal.StageID)
}

func TestExecute_MoveDeal_NoOpenDeal(t *testing.T) {
	env, store := newTestEnv(t)
	contact := seedContact(t, store, &models.Contact{ID: "contact-1"})

	outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), contact, &models.Step{
		Kind:   models.StepMoveDeal,
		Config: map[string]any{"stage_id": "stage-won"},
	})
	require.True(t, outcome.Success)
	assert.Equal(t, false, outcome.Output["moved"])
}

func TestExecute_MoveDeal_MissingStage(t *testing.T) {
	env, _ := newTestEnv(t)

	outcome := Execute(context.Background(), env, testAutomation(), testEnrollment(), &models.Contact{}, &models.Step{
		Kind:   models.StepMoveDeal,
		Config: map[string]any{},
	})
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "stage_id is required")
}
