// Package profiles provides the durable, cross-lookup identity records
// keyed by normalized phone number.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PhoneProfile is the durable identity record for one normalized number.
type PhoneProfile struct {
	ID                uuid.UUID
	PhoneNumber       string
	CallerName        string
	Aliases           []string
	Summary           string
	TranscriptPreview string
	Confidence        *float64
	EntityTag         string
	NameFromAgent     bool
	EntityFromAgent   bool
	LastCheckedAt     time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const profileColumns = `id, phone_number, caller_name, aliases, summary, transcript_preview,
	confidence, entity_tag, name_from_agent, entity_from_agent, last_checked_at, created_at, updated_at`

// Repository provides data access for phone profiles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new profiles repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByNumber returns the profile for a normalized number, or nil when absent.
func (r *Repository) GetByNumber(ctx context.Context, phoneNumber string) (*PhoneProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM phone_profiles WHERE phone_number = $1`

	var p PhoneProfile
	if err := r.pool.QueryRow(ctx, query, phoneNumber).Scan(
		&p.ID, &p.PhoneNumber, &p.CallerName, &p.Aliases, &p.Summary, &p.TranscriptPreview,
		&p.Confidence, &p.EntityTag, &p.NameFromAgent, &p.EntityFromAgent,
		&p.LastCheckedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile by number: %w", err)
	}
	return &p, nil
}

// Upsert inserts or replaces the profile row for its phone number.
// The phone_number unique constraint guarantees one row per number; a
// concurrent upsert for the same number resolves to the last writer.
func (r *Repository) Upsert(ctx context.Context, profile PhoneProfile) (PhoneProfile, error) {
	query := `
		INSERT INTO phone_profiles
			(phone_number, caller_name, aliases, summary, transcript_preview,
			 confidence, entity_tag, name_from_agent, entity_from_agent, last_checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (phone_number) DO UPDATE SET
			caller_name = EXCLUDED.caller_name,
			aliases = EXCLUDED.aliases,
			summary = EXCLUDED.summary,
			transcript_preview = EXCLUDED.transcript_preview,
			confidence = EXCLUDED.confidence,
			entity_tag = EXCLUDED.entity_tag,
			name_from_agent = EXCLUDED.name_from_agent,
			entity_from_agent = EXCLUDED.entity_from_agent,
			last_checked_at = now(),
			updated_at = now()
		RETURNING ` + profileColumns

	var p PhoneProfile
	if err := r.pool.QueryRow(ctx, query,
		profile.PhoneNumber, profile.CallerName, profile.Aliases, profile.Summary,
		profile.TranscriptPreview, profile.Confidence, profile.EntityTag,
		profile.NameFromAgent, profile.EntityFromAgent,
	).Scan(
		&p.ID, &p.PhoneNumber, &p.CallerName, &p.Aliases, &p.Summary, &p.TranscriptPreview,
		&p.Confidence, &p.EntityTag, &p.NameFromAgent, &p.EntityFromAgent,
		&p.LastCheckedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return PhoneProfile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return p, nil
}

// GetByID returns a profile by primary key, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*PhoneProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM phone_profiles WHERE id = $1`

	var p PhoneProfile
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.PhoneNumber, &p.CallerName, &p.Aliases, &p.Summary, &p.TranscriptPreview,
		&p.Confidence, &p.EntityTag, &p.NameFromAgent, &p.EntityFromAgent,
		&p.LastCheckedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile by id: %w", err)
	}
	return &p, nil
}

// DeleteAll wipes phone profiles. Test environments only.
func (r *Repository) DeleteAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM phone_profiles`); err != nil {
		return fmt.Errorf("reset phone profiles: %w", err)
	}
	return nil
}
