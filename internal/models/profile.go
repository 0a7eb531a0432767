package models

import "time"

// Profile is a monitored-person profile (profiles table). Family members
// locate one through a pairing code plus the person's name; the contact
// phone is stored AES-GCM encrypted.
type Profile struct {
	ProfileID   string    `json:"profile_id" db:"profile_id"`
	PairingCode string    `json:"pairing_code" db:"pairing_code"`
	Name        string    `json:"name" db:"name"`
	PhoneEnc    []byte    `json:"-" db:"phone_enc"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
