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
)

func setupProfileRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *ProfileRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewProfileRepository(db, zap.NewNop())
	return db, mock, repo
}

func TestGetByPairingCode_Success(t *testing.T) {
	db, mock, repo := setupProfileRepo(t)
	defer db.Close()

	createdAt := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"profile_id", "pairing_code", "name", "phone_enc", "created_at"}).
		AddRow("p1", "1234", "김철수", []byte{0x01, 0x02}, createdAt).
		AddRow("p2", "1234", "김영희", []byte{0x03, 0x04}, createdAt.Add(time.Hour))

	mock.ExpectQuery(`SELECT profile_id, pairing_code, name, phone_enc, created_at`).
		WithArgs("1234").
		WillReturnRows(rows)

	profiles, err := repo.GetByPairingCode(context.Background(), "1234")

	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "p1", profiles[0].ProfileID)
	assert.Equal(t, "김철수", profiles[0].Name)
	assert.Equal(t, []byte{0x01, 0x02}, profiles[0].PhoneEnc)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByPairingCode_Empty(t *testing.T) {
	db, mock, repo := setupProfileRepo(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"profile_id", "pairing_code", "name", "phone_enc", "created_at"})
	mock.ExpectQuery(`SELECT profile_id, pairing_code, name, phone_enc, created_at`).
		WithArgs("0000").
		WillReturnRows(rows)

	profiles, err := repo.GetByPairingCode(context.Background(), "0000")

	require.NoError(t, err)
	assert.Empty(t, profiles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByPairingCode_MissingCode(t *testing.T) {
	db, _, repo := setupProfileRepo(t)
	defer db.Close()

	_, err := repo.GetByPairingCode(context.Background(), "")
	assert.Error(t, err)
}
