// Package repository provides data access for the lookups bounded context.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nummerwacht_backend/platform/apperr"
)

const lookupNotFoundMessage = "lookup not found"

const lookupColumns = "id, phone_number, raw_input, status, profile_id, created_at, updated_at"

const attemptColumns = `id, lookup_id, conversation_id, status, vendor_status, error_message,
	raw_payload, transcript, summary, confidence, requested_at, updated_at, ended_at`

// Repo implements the lookups repository against Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new lookups repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// CreateLookup inserts a new lookup in the pending state.
func (r *Repo) CreateLookup(ctx context.Context, phoneNumber, rawInput string) (Lookup, error) {
	query := `
		INSERT INTO lookups (phone_number, raw_input)
		VALUES ($1, $2)
		RETURNING ` + lookupColumns

	var lookup Lookup
	if err := r.pool.QueryRow(ctx, query, phoneNumber, rawInput).Scan(
		&lookup.ID, &lookup.PhoneNumber, &lookup.RawInput, &lookup.Status,
		&lookup.ProfileID, &lookup.CreatedAt, &lookup.UpdatedAt,
	); err != nil {
		return Lookup{}, fmt.Errorf("create lookup: %w", err)
	}
	return lookup, nil
}

// GetLookup fetches a lookup by ID.
func (r *Repo) GetLookup(ctx context.Context, id uuid.UUID) (Lookup, error) {
	query := `SELECT ` + lookupColumns + ` FROM lookups WHERE id = $1`

	var lookup Lookup
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&lookup.ID, &lookup.PhoneNumber, &lookup.RawInput, &lookup.Status,
		&lookup.ProfileID, &lookup.CreatedAt, &lookup.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lookup{}, apperr.NotFound(lookupNotFoundMessage)
		}
		return Lookup{}, fmt.Errorf("get lookup: %w", err)
	}
	return lookup, nil
}

// UpdateLookupStatus sets a lookup's status. The caller is responsible for
// running the transition through the domain status machine first.
func (r *Repo) UpdateLookupStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lookups SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("update lookup status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(lookupNotFoundMessage)
	}
	return nil
}

// SetLookupProfile links a lookup to the phone profile produced by its call.
func (r *Repo) SetLookupProfile(ctx context.Context, id uuid.UUID, profileID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE lookups SET profile_id = $2, updated_at = now()
		WHERE id = $1
	`, id, profileID)
	if err != nil {
		return fmt.Errorf("set lookup profile: %w", err)
	}
	return nil
}

// CreateCallAttempt inserts a new call attempt for a lookup.
// An empty conversationID stores NULL; the provider assigns the ID later
// and the first webhook for the conversation backfills it.
func (r *Repo) CreateCallAttempt(ctx context.Context, lookupID uuid.UUID, conversationID string) (CallAttempt, error) {
	var convID *string
	if conversationID != "" {
		convID = &conversationID
	}

	query := `
		INSERT INTO call_attempts (lookup_id, conversation_id)
		VALUES ($1, $2)
		RETURNING ` + attemptColumns

	var attempt CallAttempt
	if err := r.pool.QueryRow(ctx, query, lookupID, convID).Scan(
		&attempt.ID, &attempt.LookupID, &attempt.ConversationID, &attempt.Status,
		&attempt.VendorStatus, &attempt.ErrorMessage, &attempt.RawPayload,
		&attempt.Transcript, &attempt.Summary, &attempt.Confidence,
		&attempt.RequestedAt, &attempt.UpdatedAt, &attempt.EndedAt,
	); err != nil {
		return CallAttempt{}, fmt.Errorf("create call attempt: %w", err)
	}
	return attempt, nil
}

// GetLatestCallAttempt returns the most-recently-updated attempt for a lookup,
// or nil when the lookup has no attempts yet.
func (r *Repo) GetLatestCallAttempt(ctx context.Context, lookupID uuid.UUID) (*CallAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM call_attempts
		WHERE lookup_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`

	attempt, err := r.scanAttempt(r.pool.QueryRow(ctx, query, lookupID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest call attempt: %w", err)
	}
	return attempt, nil
}

// GetCallAttemptByConversationID returns the attempt matching a provider
// conversation ID, or nil when no attempt matches.
func (r *Repo) GetCallAttemptByConversationID(ctx context.Context, conversationID string) (*CallAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM call_attempts WHERE conversation_id = $1`

	attempt, err := r.scanAttempt(r.pool.QueryRow(ctx, query, conversationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get call attempt by conversation: %w", err)
	}
	return attempt, nil
}

// UpdateCallAttemptByConversationID applies a partial update to the attempt
// matching the conversation ID. Transcript and summary are enrichment-only:
// an empty incoming value never clears data written by an earlier event.
func (r *Repo) UpdateCallAttemptByConversationID(ctx context.Context, conversationID string, patch AttemptPatch) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_attempts SET
			status = COALESCE($2, status),
			vendor_status = COALESCE($3, vendor_status),
			error_message = COALESCE($4, error_message),
			raw_payload = COALESCE($5, raw_payload),
			transcript = COALESCE(NULLIF($6, ''), transcript),
			summary = COALESCE(NULLIF($7, ''), summary),
			confidence = COALESCE($8, confidence),
			ended_at = COALESCE($9, ended_at),
			updated_at = now()
		WHERE conversation_id = $1
	`, conversationID, patch.Status, patch.VendorStatus, patch.ErrorMessage,
		patch.RawPayload, derefOrEmpty(patch.Transcript), derefOrEmpty(patch.Summary),
		patch.Confidence, patch.EndedAt)
	if err != nil {
		return fmt.Errorf("update call attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("call attempt not found")
	}
	return nil
}

// UpdateLatestCallAttempt applies a partial update to the most recent attempt
// of a lookup. Used when a webhook arrives before the conversation ID was
// recorded on the attempt: the update also backfills the conversation ID when
// the patch carries one via the conversation-keyed path instead.
func (r *Repo) UpdateLatestCallAttempt(ctx context.Context, lookupID uuid.UUID, patch AttemptPatch) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_attempts SET
			status = COALESCE($2, status),
			vendor_status = COALESCE($3, vendor_status),
			error_message = COALESCE($4, error_message),
			raw_payload = COALESCE($5, raw_payload),
			transcript = COALESCE(NULLIF($6, ''), transcript),
			summary = COALESCE(NULLIF($7, ''), summary),
			confidence = COALESCE($8, confidence),
			ended_at = COALESCE($9, ended_at),
			updated_at = now()
		WHERE id = (
			SELECT id FROM call_attempts
			WHERE lookup_id = $1
			ORDER BY updated_at DESC
			LIMIT 1
		)
	`, lookupID, patch.Status, patch.VendorStatus, patch.ErrorMessage,
		patch.RawPayload, derefOrEmpty(patch.Transcript), derefOrEmpty(patch.Summary),
		patch.Confidence, patch.EndedAt)
	if err != nil {
		return fmt.Errorf("update latest call attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("call attempt not found")
	}
	return nil
}

// SetAttemptConversationID backfills the provider conversation ID on an attempt.
func (r *Repo) SetAttemptConversationID(ctx context.Context, attemptID uuid.UUID, conversationID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE call_attempts SET conversation_id = $2, updated_at = now()
		WHERE id = $1 AND conversation_id IS NULL
	`, attemptID, conversationID)
	if err != nil {
		return fmt.Errorf("set attempt conversation id: %w", err)
	}
	return nil
}

// ResetAll wipes lookups and call attempts. Test environments only.
func (r *Repo) ResetAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM call_attempts`); err != nil {
		return fmt.Errorf("reset call attempts: %w", err)
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM lookups`); err != nil {
		return fmt.Errorf("reset lookups: %w", err)
	}
	return nil
}

func (r *Repo) scanAttempt(row pgx.Row) (*CallAttempt, error) {
	var attempt CallAttempt
	if err := row.Scan(
		&attempt.ID, &attempt.LookupID, &attempt.ConversationID, &attempt.Status,
		&attempt.VendorStatus, &attempt.ErrorMessage, &attempt.RawPayload,
		&attempt.Transcript, &attempt.Summary, &attempt.Confidence,
		&attempt.RequestedAt, &attempt.UpdatedAt, &attempt.EndedAt,
	); err != nil {
		return nil, err
	}
	return &attempt, nil
}

func derefOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
