package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{
		"message_logs", "message_templates", "tasks", "deals", "step_logs",
		"enrollments", "contacts", "automation_steps", "automations", "schema_migrations",
	} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("relay_test"),
			postgres.WithUsername("relay"),
			postgres.WithPassword("relay"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = store.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return store, ctx, databaseURL
}

// seedPair stores an automation and a contact so enrollments have valid
// foreign keys to point at.
func seedPair(ctx context.Context, t *testing.T, store *postgresql.Persistence) (automationID, contactID string) {
	t.Helper()

	organizationID := uuid.New().String()

	automation := &models.Automation{
		OrganizationID: organizationID,
		Name:           "Welcome drip",
		TriggerType:    models.TriggerContactCreated,
		Steps: []*models.Step{
			{Position: 1, Kind: models.StepAddTag, Config: map[string]any{"tag": "welcomed"}},
		},
	}
	require.NoError(t, store.Automations().Save(ctx, automation))

	contact := &models.Contact{
		OrganizationID: organizationID,
		Email:          "ada@example.com",
	}
	require.NoError(t, store.Contacts().Save(ctx, contact))

	return automation.ID, contact.ID
}

func newEnrollment(t *testing.T, automationID, contactID string, nextActionAt time.Time) *models.Enrollment {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)

	return &models.Enrollment{
		ID:             id.String(),
		AutomationID:   automationID,
		ContactID:      contactID,
		Status:         models.EnrollmentStatusActive,
		CurrentStep:    1,
		TriggerPayload: map[string]any{"tag": "vip"},
		NextActionAt:   nextActionAt,
		EnrolledAt:     nextActionAt,
	}
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'enrollments')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "enrollments table should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	store, ctx, _ := setupTestDB(t)

	assert.NoError(t, store.HealthCheck(ctx))
}

func TestEnrollmentRepository_CreateAndFindByPair(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	automationID, contactID := seedPair(ctx, t, store)

	now := time.Now().UTC().Truncate(time.Millisecond)
	enrollment := newEnrollment(t, automationID, contactID, now)
	require.NoError(t, store.Enrollments().Create(ctx, enrollment))

	found, err := store.Enrollments().FindByPair(ctx, automationID, contactID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enrollment.ID, found.ID)
	assert.Equal(t, models.EnrollmentStatusActive, found.Status)
	assert.Equal(t, 1, found.CurrentStep)
	assert.Equal(t, "vip", found.TriggerPayload["tag"])
	assert.Nil(t, found.ClaimedBy)

	missing, err := store.Enrollments().FindByPair(ctx, automationID, uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEnrollmentRepository_DuplicatePairIsRejected(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	automationID, contactID := seedPair(ctx, t, store)

	now := time.Now().UTC()
	require.NoError(t, store.Enrollments().Create(ctx, newEnrollment(t, automationID, contactID, now)))

	err := store.Enrollments().Create(ctx, newEnrollment(t, automationID, contactID, now))
	assert.ErrorIs(t, err, persistence.ErrDuplicateActiveEnrollment)
}

func TestEnrollmentRepository_ResetGuardsActiveRuns(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	automationID, contactID := seedPair(ctx, t, store)

	now := time.Now().UTC().Truncate(time.Millisecond)
	enrollment := newEnrollment(t, automationID, contactID, now)
	require.NoError(t, store.Enrollments().Create(ctx, enrollment))

	err := store.Enrollments().Reset(ctx, enrollment.ID, map[string]any{"tag": "again"}, now)
	assert.ErrorIs(t, err, persistence.ErrDuplicateActiveEnrollment)

	require.NoError(t, store.Enrollments().MarkCompleted(ctx, enrollment.ID, now))

	later := now.Add(time.Hour)
	require.NoError(t, store.Enrollments().Reset(ctx, enrollment.ID, map[string]any{"tag": "again"}, later))

	reloaded, err := store.Enrollments().GetByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.ID, reloaded.ID)
	assert.Equal(t, models.EnrollmentStatusActive, reloaded.Status)
	assert.Equal(t, 1, reloaded.CurrentStep)
	assert.Equal(t, "again", reloaded.TriggerPayload["tag"])
	assert.Nil(t, reloaded.ClaimedBy)
	assert.Nil(t, reloaded.CompletedAt)
	assert.Empty(t, reloaded.ErrorMessage)
}

func TestEnrollmentRepository_ClaimLifecycle(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	automationID, contactID := seedPair(ctx, t, store)

	now := time.Now().UTC().Truncate(time.Millisecond)
	enrollment := newEnrollment(t, automationID, contactID, now)
	require.NoError(t, store.Enrollments().Create(ctx, enrollment))

	workerA := uuid.New().String()
	workerB := uuid.New().String()

	claimed, err := store.Enrollments().Claim(ctx, enrollment.ID, workerA, now)
	require.NoError(t, err)
	assert.True(t, claimed)

	reloaded, err := store.Enrollments().GetByID(ctx, enrollment.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.ClaimedBy)
	assert.Equal(t, workerA, *reloaded.ClaimedBy)

	// A fresh claim blocks rivals.
	claimed, err = store.Enrollments().Claim(ctx, enrollment.ID, workerB, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, claimed)

	// Past the staleness window the claim is up for grabs.
	claimed, err = store.Enrollments().Claim(ctx, enrollment.ID, workerB, now.Add(6*time.Minute))
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, store.Enrollments().Release(ctx, enrollment.ID, workerB))

	reloaded, err = store.Enrollments().GetByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.ClaimedBy)
	assert.Nil(t, reloaded.ClaimedAt)
}

func TestEnrollmentRepository_ReleaseRequiresHoldingToken(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	automationID, contactID := seedPair(ctx, t, store)

	now := time.Now().UTC().Truncate(time.Millisecond)
	enrollment := newEnrollment(t, automationID, contactID, now)
	require.NoError(t, store.Enrollments().Create(ctx, enrollment))

	holder := uuid.New().String()

	claimed, err := store.Enrollments().Claim(ctx, enrollment.ID, holder, now)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.Enrollments().Release(ctx, enrollment.ID, uuid.New().String()))

	reloaded, err := store.Enrollments().GetByID(ctx, enrollment.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.ClaimedBy)
	assert.Equal(t, holder, *reloaded.ClaimedBy)
}

func TestEnrollmentRepository_DuePending(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	automationID, contactID := seedPair(ctx, t, store)

	organizationID := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Millisecond)

	// Each enrollment needs its own contact because of the pair constraint.
	makeDue := func(wake time.Time) *models.Enrollment {
		contact := &models.Contact{OrganizationID: organizationID, Email: "due@example.com"}
		require.NoError(t, store.Contacts().Save(ctx, contact))

		enrollment := newEnrollment(t, automationID, contact.ID, wake)
		require.NoError(t, store.Enrollments().Create(ctx, enrollment))

		return enrollment
	}

	oldest := makeDue(now.Add(-2 * time.Hour))
	newer := makeDue(now.Add(-time.Hour))
	claimedEnrollment := makeDue(now.Add(-30 * time.Minute))
	future := newEnrollment(t, automationID, contactID, now.Add(time.Hour))
	require.NoError(t, store.Enrollments().Create(ctx, future))

	claimed, err := store.Enrollments().Claim(ctx, claimedEnrollment.ID, uuid.New().String(), now)
	require.NoError(t, err)
	require.True(t, claimed)

	due, err := store.Enrollments().DuePending(ctx, now, 100)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, oldest.ID, due[0].ID)
	assert.Equal(t, newer.ID, due[1].ID)

	// Stale claims come back into sweep range, oldest wake first.
	due, err = store.Enrollments().DuePending(ctx, now.Add(6*time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, oldest.ID, due[0].ID)
}

func TestEnrollmentRepository_TerminalTransitions(t *testing.T) {
	store, ctx, _ := setupTestDB(t)
	automationID, contactID := seedPair(ctx, t, store)

	now := time.Now().UTC().Truncate(time.Millisecond)
	enrollment := newEnrollment(t, automationID, contactID, now)
	require.NoError(t, store.Enrollments().Create(ctx, enrollment))

	require.NoError(t, store.Enrollments().UpdateProgress(ctx, enrollment.ID, 3, map[string]any{"webhook_1_status": float64(200)}, now.Add(time.Minute)))

	reloaded, err := store.Enrollments().GetByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.CurrentStep)
	assert.Equal(t, float64(200), reloaded.Context["webhook_1_status"])

	require.NoError(t, store.Enrollments().MarkFailed(ctx, enrollment.ID, "webhook returned 500", now))

	reloaded, err = store.Enrollments().GetByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusFailed, reloaded.Status)
	assert.Equal(t, "webhook returned 500", reloaded.ErrorMessage)
	assert.Nil(t, reloaded.ClaimedBy)

	// Terminal rows do not transition again.
	require.NoError(t, store.Enrollments().MarkCompleted(ctx, enrollment.ID, now))

	reloaded, err = store.Enrollments().GetByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusFailed, reloaded.Status)
}
