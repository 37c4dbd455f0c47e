// Package transport defines the request/response DTOs for the lookups API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateLookupRequest is the body for submitting a phone number.
type CreateLookupRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,min=4,max=32"`
}

// LookupResponse is returned on lookup creation.
type LookupResponse struct {
	ID          uuid.UUID `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	RawInput    string    `json:"rawInput"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}
