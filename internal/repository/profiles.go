package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"lifesign/internal/models"
)

// ProfileRepository fetches monitored-person profiles for the account
// recovery flow.
type ProfileRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProfileRepository creates the repository.
func NewProfileRepository(db *sql.DB, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// GetByPairingCode returns all profiles registered under a pairing code.
// Several families can share a short code, so the caller disambiguates by
// name.
func (r *ProfileRepository) GetByPairingCode(ctx context.Context, pairingCode string) ([]models.Profile, error) {
	if pairingCode == "" {
		return nil, fmt.Errorf("pairing_code is required")
	}

	query := `
		SELECT profile_id, pairing_code, name, phone_enc, created_at
		FROM profiles
		WHERE pairing_code = $1
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, pairingCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		var p models.Profile
		var phoneEnc []byte
		if err := rows.Scan(&p.ProfileID, &p.PairingCode, &p.Name, &phoneEnc, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p.PhoneEnc = phoneEnc
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}

	return profiles, nil
}
