// Package status serves the client-facing lookup status snapshot: an
// eventually-consistent merge of lookup, call attempt and phone profile
// state with ETag-based conditional polling.
package status

import (
	"hash/fnv"
	"strconv"
	"time"

	"nummerwacht_backend/internal/lookups/repository"
	"nummerwacht_backend/internal/profiles"

	"github.com/google/uuid"
)

// LookupView is the lookup section of the snapshot.
type LookupView struct {
	ID          uuid.UUID `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AttemptView is the call attempt section. Summary, transcript and
// confidence fall back to profile values when the attempt's own columns
// have not been written yet.
type AttemptView struct {
	ConversationID string     `json:"conversationId,omitempty"`
	Status         string     `json:"status"`
	VendorStatus   string     `json:"vendorStatus,omitempty"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	Summary        string     `json:"summary,omitempty"`
	Transcript     string     `json:"transcript,omitempty"`
	Confidence     *float64   `json:"confidence,omitempty"`
	RequestedAt    time.Time  `json:"requestedAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
}

// ProfileView is the stored profile section.
type ProfileView struct {
	CallerName        string    `json:"callerName"`
	EntityTag         string    `json:"entityTag,omitempty"`
	Aliases           []string  `json:"aliases,omitempty"`
	Summary           string    `json:"summary,omitempty"`
	TranscriptPreview string    `json:"transcriptPreview,omitempty"`
	Confidence        *float64  `json:"confidence,omitempty"`
	LastCheckedAt     time.Time `json:"lastCheckedAt"`
}

// Snapshot is the full status response body.
type Snapshot struct {
	Lookup      LookupView   `json:"lookup"`
	CallAttempt *AttemptView `json:"callAttempt,omitempty"`
	Profile     *ProfileView `json:"profile,omitempty"`
}

// BuildSnapshot merges the three records into the response shape and
// returns the freshest updated_at seen, which drives the ETag and
// Last-Modified headers.
func BuildSnapshot(lookup repository.Lookup, attempt *repository.CallAttempt, profile *profiles.PhoneProfile) (Snapshot, time.Time) {
	snap := Snapshot{
		Lookup: LookupView{
			ID:          lookup.ID,
			PhoneNumber: lookup.PhoneNumber,
			Status:      lookup.Status,
			CreatedAt:   lookup.CreatedAt,
			UpdatedAt:   lookup.UpdatedAt,
		},
	}
	freshest := lookup.UpdatedAt

	if profile != nil {
		snap.Profile = &ProfileView{
			CallerName:        profile.CallerName,
			EntityTag:         profile.EntityTag,
			Aliases:           profile.Aliases,
			Summary:           profile.Summary,
			TranscriptPreview: profile.TranscriptPreview,
			Confidence:        profile.Confidence,
			LastCheckedAt:     profile.LastCheckedAt,
		}
		if profile.UpdatedAt.After(freshest) {
			freshest = profile.UpdatedAt
		}
	}

	if attempt != nil {
		view := AttemptView{
			Status:       attempt.Status,
			VendorStatus: attempt.VendorStatus,
			ErrorMessage: attempt.ErrorMessage,
			Summary:      attempt.Summary,
			Transcript:   attempt.Transcript,
			Confidence:   attempt.Confidence,
			RequestedAt:  attempt.RequestedAt,
			UpdatedAt:    attempt.UpdatedAt,
			EndedAt:      attempt.EndedAt,
		}
		if attempt.ConversationID != nil {
			view.ConversationID = *attempt.ConversationID
		}
		// Profile fallbacks for columns the webhook has not written yet.
		if profile != nil {
			if view.Summary == "" {
				view.Summary = profile.Summary
			}
			if view.Transcript == "" {
				view.Transcript = profile.TranscriptPreview
			}
			if view.Confidence == nil {
				view.Confidence = profile.Confidence
			}
		}
		snap.CallAttempt = &view
		if attempt.UpdatedAt.After(freshest) {
			freshest = attempt.UpdatedAt
		}
	}

	return snap, freshest
}

// ComputeETag derives the quoted entity tag from the freshest updated_at
// timestamp. Identical state always yields an identical tag.
func ComputeETag(freshest time.Time) string {
	h := fnv.New64a()
	var buf [8]byte
	nanos := uint64(freshest.UnixNano())
	for i := 0; i < 8; i++ {
		buf[i] = byte(nanos >> (8 * i))
	}
	h.Write(buf[:])
	return `"` + strconv.FormatUint(h.Sum64(), 16) + `"`
}
