package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile holds per-user billing state consulted by the admission gate.
// ID matches the Supabase auth user id.
type Profile struct {
	ID        uuid.UUID
	Credits   int
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
