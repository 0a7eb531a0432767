package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lifesign/internal/matcher"
	"lifesign/internal/repository"
	"lifesign/internal/secure"
)

// RecoveredProfile is the unique match returned to the family member.
type RecoveredProfile struct {
	ProfileID string  `json:"profile_id"`
	Name      string  `json:"name"`
	Phone     string  `json:"phone,omitempty"`
	Score     float64 `json:"score"`
}

// RecoveryOutcome is the result of one recovery attempt.
type RecoveryOutcome struct {
	Kind matcher.ResultKind `json:"kind"`
	// Profile is set for a unique match.
	Profile *RecoveredProfile `json:"profile,omitempty"`
	// Candidates holds the ranked list for an ambiguous match.
	Candidates []matcher.Scored `json:"candidates,omitempty"`
}

// RecoveryService locates a profile from a pairing code and a typed name.
// The matcher is pure; this service only does the candidate fetch and the
// phone decryption around it.
type RecoveryService struct {
	profileRepo *repository.ProfileRepository
	cipher      *secure.Cipher
	logger      *zap.Logger
}

// NewRecoveryService creates the service. cipher may be nil when no
// profile secret is configured; phones then stay undisclosed.
func NewRecoveryService(profileRepo *repository.ProfileRepository, cipher *secure.Cipher, logger *zap.Logger) *RecoveryService {
	return &RecoveryService{
		profileRepo: profileRepo,
		cipher:      cipher,
		logger:      logger,
	}
}

// Recover fetches the pairing code's profiles and matches the typed name
// against them.
func (s *RecoveryService) Recover(ctx context.Context, pairingCode, inputName string) (*RecoveryOutcome, error) {
	profiles, err := s.profileRepo.GetByPairingCode(ctx, pairingCode)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recovery candidates: %w", err)
	}

	candidates := make([]matcher.Candidate, 0, len(profiles))
	phoneEnc := make(map[string][]byte, len(profiles))
	for _, p := range profiles {
		candidates = append(candidates, matcher.Candidate{ProfileID: p.ProfileID, Name: p.Name})
		phoneEnc[p.ProfileID] = p.PhoneEnc
	}

	result := matcher.Match(inputName, candidates)

	outcome := &RecoveryOutcome{Kind: result.Kind}
	switch result.Kind {
	case matcher.ResultUnique:
		outcome.Profile = &RecoveredProfile{
			ProfileID: result.Match.ProfileID,
			Name:      result.Match.Name,
			Score:     result.Match.Score,
			Phone:     s.decryptPhone(result.Match.ProfileID, phoneEnc[result.Match.ProfileID]),
		}
	case matcher.ResultAmbiguous:
		outcome.Candidates = result.Ranked
	}

	s.logger.Info("Recovery attempt matched",
		zap.String("pairing_code", pairingCode),
		zap.Int("candidates", len(candidates)),
		zap.Int("kind", int(result.Kind)),
	)
	return outcome, nil
}

// decryptPhone opens the stored phone field; failures degrade to an empty
// phone, never to a failed recovery.
func (s *RecoveryService) decryptPhone(profileID string, enc []byte) string {
	if s.cipher == nil || len(enc) == 0 {
		return ""
	}
	plain, err := s.cipher.Open(enc)
	if err != nil {
		s.logger.Error("Failed to decrypt profile phone",
			zap.String("profile_id", profileID),
			zap.Error(err),
		)
		return ""
	}
	return string(plain)
}
