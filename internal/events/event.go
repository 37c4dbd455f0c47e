// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"nummerwacht_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lookup Domain Events
// =============================================================================

// LookupCreated is published when a user submits a phone number.
type LookupCreated struct {
	BaseEvent
	LookupID    uuid.UUID `json:"lookupId"`
	PhoneNumber string    `json:"phoneNumber"`
}

func (e LookupCreated) EventName() string { return "lookups.lookup.created" }

// LookupStatusChanged is published when a lookup moves to a new status.
// The status endpoint invalidates its snapshot cache on this event.
type LookupStatusChanged struct {
	BaseEvent
	LookupID  uuid.UUID `json:"lookupId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
}

func (e LookupStatusChanged) EventName() string { return "lookups.status.changed" }

// =============================================================================
// Call Domain Events
// =============================================================================

// CallAttemptUpdated is published when a webhook delivery mutates a call attempt.
type CallAttemptUpdated struct {
	BaseEvent
	LookupID       uuid.UUID `json:"lookupId"`
	ConversationID string    `json:"conversationId"`
	CanonicalEvent string    `json:"canonicalEvent"`
}

func (e CallAttemptUpdated) EventName() string { return "calls.attempt.updated" }

// CallDispatchFailed is published when the outbound call could not be placed.
type CallDispatchFailed struct {
	BaseEvent
	LookupID uuid.UUID `json:"lookupId"`
	Reason   string    `json:"reason"`
}

func (e CallDispatchFailed) EventName() string { return "calls.dispatch.failed" }

// =============================================================================
// Profile Domain Events
// =============================================================================

// ProfileUpserted is published when a completed call produces or refreshes
// a phone profile.
type ProfileUpserted struct {
	BaseEvent
	ProfileID   uuid.UUID `json:"profileId"`
	PhoneNumber string    `json:"phoneNumber"`
	CallerName  string    `json:"callerName"`
	EntityTag   string    `json:"entityTag"`
}

func (e ProfileUpserted) EventName() string { return "profiles.profile.upserted" }
