package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lifesign/internal/models"
)

func setupAlertRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlertEventsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewAlertEventsRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestCreateAlertEvent_Success(t *testing.T) {
	db, mock, repo := setupAlertRepo(t)
	defer db.Close()

	triggeredAt := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)
	event := &models.AlertEvent{
		EventID:     "evt-1",
		DeviceID:    "dev-1",
		AlertKind:   "survival",
		TriggeredAt: triggeredAt,
		TriggerData: `{"threshold_hours":12}`,
	}

	mock.ExpectExec(`INSERT INTO alert_events`).
		WithArgs("evt-1", "dev-1", "survival", models.AlertStatusActive, triggeredAt, `{"threshold_hours":12}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.CreateAlertEvent(context.Background(), event))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAlertEvent_MissingIDs(t *testing.T) {
	db, _, repo := setupAlertRepo(t)
	defer db.Close()

	err := repo.CreateAlertEvent(context.Background(), &models.AlertEvent{DeviceID: "dev-1"})
	assert.Error(t, err)

	err = repo.CreateAlertEvent(context.Background(), &models.AlertEvent{EventID: "evt-1"})
	assert.Error(t, err)
}

func TestClearActive_Success(t *testing.T) {
	db, mock, repo := setupAlertRepo(t)
	defer db.Close()

	clearedAt := time.Date(2024, 1, 2, 20, 1, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE alert_events`).
		WithArgs(models.AlertStatusCleared, clearedAt, "activity", "dev-1", "survival", models.AlertStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.ClearActive(context.Background(), "dev-1", "survival", "activity", clearedAt)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearActive_NothingActive(t *testing.T) {
	db, mock, repo := setupAlertRepo(t)
	defer db.Close()

	clearedAt := time.Date(2024, 1, 2, 20, 1, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE alert_events`).
		WithArgs(models.AlertStatusCleared, clearedAt, "family", "dev-1", "food", models.AlertStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.ClearActive(context.Background(), "dev-1", "food", "family", clearedAt)

	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveEvent_Success(t *testing.T) {
	db, mock, repo := setupAlertRepo(t)
	defer db.Close()

	triggeredAt := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)
	createdAt := triggeredAt
	rows := sqlmock.NewRows([]string{
		"event_id", "device_id", "alert_kind", "alert_status",
		"triggered_at", "cleared_at", "cleared_by", "trigger_data",
		"created_at", "updated_at",
	}).AddRow(
		"evt-1", "dev-1", "survival", models.AlertStatusActive,
		triggeredAt, nil, nil, []byte(`{"threshold_hours":12}`),
		createdAt, createdAt,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs("dev-1", "survival", models.AlertStatusActive).
		WillReturnRows(rows)

	event, err := repo.GetActiveEvent(context.Background(), "dev-1", "survival")

	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "evt-1", event.EventID)
	assert.Equal(t, "survival", event.AlertKind)
	assert.Nil(t, event.ClearedAt)
	assert.Equal(t, `{"threshold_hours":12}`, event.TriggerData)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveEvent_None(t *testing.T) {
	db, mock, repo := setupAlertRepo(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("dev-1", "food", models.AlertStatusActive).
		WillReturnError(sql.ErrNoRows)

	event, err := repo.GetActiveEvent(context.Background(), "dev-1", "food")

	require.NoError(t, err)
	assert.Nil(t, event)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEvents_Success(t *testing.T) {
	db, mock, repo := setupAlertRepo(t)
	defer db.Close()

	t1 := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)
	t0 := t1.Add(-24 * time.Hour)
	clearedAt := t0.Add(time.Hour)
	rows := sqlmock.NewRows([]string{
		"event_id", "device_id", "alert_kind", "alert_status",
		"triggered_at", "cleared_at", "cleared_by", "trigger_data",
		"created_at", "updated_at",
	}).AddRow(
		"evt-2", "dev-1", "survival", models.AlertStatusActive,
		t1, nil, nil, []byte(`{}`), t1, t1,
	).AddRow(
		"evt-1", "dev-1", "food", models.AlertStatusCleared,
		t0, clearedAt, "activity", []byte(`{}`), t0, clearedAt,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs("dev-1", 50).
		WillReturnRows(rows)

	events, err := repo.ListEvents(context.Background(), "dev-1", 0)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "evt-2", events[0].EventID)
	require.NotNil(t, events[1].ClearedAt)
	assert.Equal(t, "activity", *events[1].ClearedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}
