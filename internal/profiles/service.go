package profiles

import (
	"context"
	"strings"

	"nummerwacht_backend/internal/events"
	"nummerwacht_backend/platform/logger"

	"github.com/google/uuid"
)

const transcriptPreviewMax = 500

// Store is the narrow repository surface the service needs.
type Store interface {
	GetByNumber(ctx context.Context, phoneNumber string) (*PhoneProfile, error)
	Upsert(ctx context.Context, profile PhoneProfile) (PhoneProfile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*PhoneProfile, error)
	DeleteAll(ctx context.Context) error
}

// CallResult carries the identity outcome of one completed call.
type CallResult struct {
	PhoneNumber     string
	CallerName      string
	EntityTag       string
	Summary         string
	Transcript      string
	Confidence      *float64
	NameFromAgent   bool
	EntityFromAgent bool
}

// Service applies completed call results to phone profiles.
type Service struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
}

// NewService creates a profiles service.
func NewService(store Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, log: log}
}

// GetByNumber returns the stored profile for a normalized number, or nil.
func (s *Service) GetByNumber(ctx context.Context, phoneNumber string) (*PhoneProfile, error) {
	return s.store.GetByNumber(ctx, phoneNumber)
}

// GetByID returns the stored profile by primary key, or nil.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*PhoneProfile, error) {
	return s.store.GetByID(ctx, id)
}

// ApplyCallResult upserts the profile for a number after a completed call.
// On update, a previous caller name that differs from the new one is kept
// as an alias instead of being discarded. A structured-output name is never
// replaced by a heuristic one.
func (s *Service) ApplyCallResult(ctx context.Context, result CallResult) (PhoneProfile, error) {
	existing, err := s.store.GetByNumber(ctx, result.PhoneNumber)
	if err != nil {
		return PhoneProfile{}, err
	}

	next := PhoneProfile{
		PhoneNumber:       result.PhoneNumber,
		CallerName:        result.CallerName,
		Summary:           result.Summary,
		TranscriptPreview: truncate(result.Transcript, transcriptPreviewMax),
		Confidence:        result.Confidence,
		EntityTag:         result.EntityTag,
		NameFromAgent:     result.NameFromAgent,
		EntityFromAgent:   result.EntityFromAgent,
	}

	if existing != nil {
		next.Aliases = existing.Aliases

		keepExistingName := existing.NameFromAgent && !result.NameFromAgent && existing.CallerName != ""
		if keepExistingName {
			next.CallerName = existing.CallerName
			next.NameFromAgent = existing.NameFromAgent
			if result.CallerName != "" && !equalName(result.CallerName, existing.CallerName) {
				next.Aliases = mergeAlias(next.Aliases, result.CallerName)
			}
		} else if existing.CallerName != "" && !equalName(existing.CallerName, next.CallerName) {
			next.Aliases = mergeAlias(next.Aliases, existing.CallerName)
		}

		if next.Summary == "" {
			next.Summary = existing.Summary
		}
		if next.TranscriptPreview == "" {
			next.TranscriptPreview = existing.TranscriptPreview
		}
		if next.Confidence == nil {
			next.Confidence = existing.Confidence
		}
		if next.EntityTag == "" {
			next.EntityTag = existing.EntityTag
			next.EntityFromAgent = existing.EntityFromAgent
		}
	}
	if next.Aliases == nil {
		next.Aliases = []string{}
	}

	saved, err := s.store.Upsert(ctx, next)
	if err != nil {
		return PhoneProfile{}, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.ProfileUpserted{
			BaseEvent:   events.NewBaseEvent(),
			ProfileID:   saved.ID,
			PhoneNumber: saved.PhoneNumber,
			CallerName:  saved.CallerName,
			EntityTag:   saved.EntityTag,
		})
	}

	return saved, nil
}

// Reset wipes all profiles. Test environments only.
func (s *Service) Reset(ctx context.Context) error {
	return s.store.DeleteAll(ctx)
}

func mergeAlias(aliases []string, name string) []string {
	for _, alias := range aliases {
		if equalName(alias, name) {
			return aliases
		}
	}
	return append(append([]string(nil), aliases...), name)
}

func equalName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func truncate(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	// Avoid splitting a multi-byte rune at the boundary.
	for len(cut) > 0 && cut[len(cut)-1] >= 0x80 && cut[len(cut)-1] < 0xC0 {
		cut = cut[:len(cut)-1]
	}
	if len(cut) > 0 && cut[len(cut)-1] >= 0xC0 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
