package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lookup is one user-initiated inquiry for a normalized phone number.
type Lookup struct {
	ID          uuid.UUID
	PhoneNumber string
	RawInput    string
	Status      string
	ProfileID   *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CallAttempt is one execution record of an outbound AI call tied to a lookup.
type CallAttempt struct {
	ID             uuid.UUID
	LookupID       uuid.UUID
	ConversationID *string
	Status         string
	VendorStatus   string
	ErrorMessage   string
	RawPayload     []byte
	Transcript     string
	Summary        string
	Confidence     *float64
	RequestedAt    time.Time
	UpdatedAt      time.Time
	EndedAt        *time.Time
}

// AttemptPatch describes a partial, column-level update of a call attempt.
// Nil fields are left untouched; webhook deliveries for the same conversation
// may race, so every field write must be independently idempotent.
type AttemptPatch struct {
	Status       *string
	VendorStatus *string
	ErrorMessage *string
	RawPayload   []byte
	Transcript   *string
	Summary      *string
	Confidence   *float64
	EndedAt      *time.Time
}

// Repository is the data access contract for lookups and call attempts.
type Repository interface {
	CreateLookup(ctx context.Context, phoneNumber, rawInput string) (Lookup, error)
	GetLookup(ctx context.Context, id uuid.UUID) (Lookup, error)
	UpdateLookupStatus(ctx context.Context, id uuid.UUID, status string) error
	SetLookupProfile(ctx context.Context, id uuid.UUID, profileID uuid.UUID) error

	CreateCallAttempt(ctx context.Context, lookupID uuid.UUID, conversationID string) (CallAttempt, error)
	GetLatestCallAttempt(ctx context.Context, lookupID uuid.UUID) (*CallAttempt, error)
	GetCallAttemptByConversationID(ctx context.Context, conversationID string) (*CallAttempt, error)
	UpdateCallAttemptByConversationID(ctx context.Context, conversationID string, patch AttemptPatch) error
	UpdateLatestCallAttempt(ctx context.Context, lookupID uuid.UUID, patch AttemptPatch) error
	SetAttemptConversationID(ctx context.Context, attemptID uuid.UUID, conversationID string) error

	ResetAll(ctx context.Context) error
}
