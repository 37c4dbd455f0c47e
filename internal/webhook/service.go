package webhook

import (
	"context"
	"strings"

	"nummerwacht_backend/internal/callerid"
	"nummerwacht_backend/internal/events"
	"nummerwacht_backend/internal/lookups/domain"
	"nummerwacht_backend/internal/lookups/repository"
	"nummerwacht_backend/internal/profiles"
	"nummerwacht_backend/platform/logger"
	"nummerwacht_backend/platform/phone"

	"github.com/google/uuid"
)

// ProfileApplier is the profile surface the pipeline needs. Satisfied by
// profiles.Service.
type ProfileApplier interface {
	GetByNumber(ctx context.Context, phoneNumber string) (*profiles.PhoneProfile, error)
	ApplyCallResult(ctx context.Context, result profiles.CallResult) (profiles.PhoneProfile, error)
}

// ProcessResult describes what a webhook delivery ended up doing, for
// logging and the handler response.
type ProcessResult struct {
	ConversationID string
	CanonicalEvent domain.CanonicalEvent
	LookupID       uuid.UUID
	Actionable     bool
}

// Service runs the webhook ingestion pipeline: classify, attach to a
// call attempt, patch durable state, resolve identity on completion and
// publish domain events. Persistence failures degrade to logs; the
// vendor gets a 200 either way so it does not retry forever.
type Service struct {
	repo     repository.Repository
	profiles ProfileApplier
	bus      events.Bus
	log      *logger.Logger
}

// NewService creates the webhook pipeline service.
func NewService(repo repository.Repository, profileSvc ProfileApplier, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, profiles: profileSvc, bus: bus, log: log}
}

// Process applies one verified, normalized webhook delivery. It is
// idempotent: re-delivering the same payload leaves the same state.
func (s *Service) Process(ctx context.Context, p NormalizedPayload) (ProcessResult, error) {
	result := ProcessResult{ConversationID: p.ConversationID}

	hasData := p.HasResultData()
	canonical := domain.Classify(
		domain.NormalizeVendorToken(p.Event),
		domain.NormalizeVendorToken(p.VendorStatus),
		hasData,
	)
	result.CanonicalEvent = canonical

	attempt, err := s.matchAttempt(ctx, p)
	if err != nil {
		s.log.DatabaseError("webhook.match_attempt", err)
		return result, nil
	}
	if attempt == nil {
		// No lookup ever requested this conversation. Acknowledge and move
		// on: the vendor must not retry a delivery we can never attach.
		s.log.WebhookEvent(p.ConversationID, p.Event, string(canonical), false)
		return result, nil
	}
	result.LookupID = attempt.LookupID
	result.Actionable = true

	if err := s.patchAttempt(ctx, p, canonical); err != nil {
		s.log.DatabaseError("webhook.patch_attempt", err)
		return result, nil
	}

	lookup, err := s.advanceLookup(ctx, attempt.LookupID, canonical, hasData)
	if err != nil {
		s.log.DatabaseError("webhook.advance_lookup", err)
		return result, nil
	}

	if canonical == domain.EventCompleted && hasData {
		s.applyIdentity(ctx, lookup, p)
	}

	s.bus.Publish(ctx, events.CallAttemptUpdated{
		BaseEvent:      events.NewBaseEvent(),
		LookupID:       attempt.LookupID,
		ConversationID: p.ConversationID,
		CanonicalEvent: string(canonical),
	})
	s.log.WebhookEvent(p.ConversationID, p.Event, string(canonical), true)
	return result, nil
}

// matchAttempt finds the call attempt this delivery belongs to: first by
// conversation id, then by a lookup id smuggled through the dynamic
// variables set at dispatch time. The first delivery for a conversation
// claims the lookup's open attempt.
func (s *Service) matchAttempt(ctx context.Context, p NormalizedPayload) (*repository.CallAttempt, error) {
	attempt, err := s.repo.GetCallAttemptByConversationID(ctx, p.ConversationID)
	if err != nil {
		return nil, err
	}
	if attempt != nil {
		return attempt, nil
	}

	lookupID, ok := lookupIDFromPayload(p)
	if !ok {
		return nil, nil
	}

	attempt, err = s.repo.GetLatestCallAttempt(ctx, lookupID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		created, err := s.repo.CreateCallAttempt(ctx, lookupID, p.ConversationID)
		if err != nil {
			return nil, err
		}
		return &created, nil
	}
	if attempt.ConversationID == nil {
		if err := s.repo.SetAttemptConversationID(ctx, attempt.ID, p.ConversationID); err != nil {
			return nil, err
		}
		conversationID := p.ConversationID
		attempt.ConversationID = &conversationID
	}
	return attempt, nil
}

// lookupIDFromPayload recovers the lookup id planted in the dispatch
// request's dynamic variables or call metadata.
func lookupIDFromPayload(p NormalizedPayload) (uuid.UUID, bool) {
	for _, source := range []map[string]any{p.DynamicVariables, p.Metadata} {
		for _, key := range []string{"lookup_id", "lookupId"} {
			raw, ok := source[key].(string)
			if !ok {
				continue
			}
			if id, err := uuid.Parse(raw); err == nil {
				return id, true
			}
		}
	}
	return uuid.Nil, false
}

func (s *Service) patchAttempt(ctx context.Context, p NormalizedPayload, canonical domain.CanonicalEvent) error {
	patch := repository.AttemptPatch{
		RawPayload: p.Raw,
		Confidence: p.Confidence,
		EndedAt:    p.EndedAt,
	}
	if status := domain.AttemptStatusForEvent(canonical); status != "" {
		patch.Status = &status
	}
	if vendorStatus := domain.NormalizeVendorToken(p.VendorStatus); vendorStatus != "" {
		patch.VendorStatus = &vendorStatus
	}
	if canonical == domain.EventFailed {
		message := strings.TrimSpace(p.VendorStatus)
		if message == "" {
			message = "call failed"
		}
		patch.ErrorMessage = &message
	}
	if transcript := flattenTranscript(p.Transcript); transcript != "" {
		patch.Transcript = &transcript
	}
	if summary := strings.TrimSpace(p.Summary); summary != "" {
		patch.Summary = &summary
	}
	return s.repo.UpdateCallAttemptByConversationID(ctx, p.ConversationID, patch)
}

// advanceLookup moves the lookup along the monotonic status machine and
// publishes the transition. It returns the lookup in its final state.
func (s *Service) advanceLookup(ctx context.Context, lookupID uuid.UUID, canonical domain.CanonicalEvent, hasData bool) (repository.Lookup, error) {
	lookup, err := s.repo.GetLookup(ctx, lookupID)
	if err != nil {
		return repository.Lookup{}, err
	}

	proposed := domain.StatusForEvent(canonical, hasData)
	if proposed == "" {
		return lookup, nil
	}
	next := domain.NextStatus(lookup.Status, proposed)
	if next == lookup.Status {
		return lookup, nil
	}

	if err := s.repo.UpdateLookupStatus(ctx, lookupID, next); err != nil {
		return lookup, err
	}
	s.bus.Publish(ctx, events.LookupStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LookupID:  lookupID,
		OldStatus: lookup.Status,
		NewStatus: next,
	})
	lookup.Status = next
	return lookup, nil
}

// applyIdentity runs the identity cascade for a completed call and folds
// the result into the phone profile. Ambiguity is never an error here:
// everything degrades to the unknown-caller sentinel.
func (s *Service) applyIdentity(ctx context.Context, lookup repository.Lookup, p NormalizedPayload) {
	phoneNumber := lookup.PhoneNumber
	if phoneNumber == "" {
		phoneNumber = phone.NormalizeE164(p.PhoneNumber)
	}
	if phoneNumber == "" {
		return
	}

	input := callerid.Input{
		Structured: p.Structured,
		Transcript: p.Transcript,
		Metadata:   p.Metadata,
		Summary:    p.Summary,
	}
	prior, err := s.profiles.GetByNumber(ctx, phoneNumber)
	if err != nil {
		s.log.DatabaseError("webhook.load_profile", err)
	} else if prior != nil {
		input.PriorName = prior.CallerName
		input.PriorEntity = prior.EntityTag
	}

	resolution := callerid.Resolve(input)

	profile, err := s.profiles.ApplyCallResult(ctx, profiles.CallResult{
		PhoneNumber:     phoneNumber,
		CallerName:      resolution.CallerName,
		EntityTag:       resolution.EntityTag,
		Summary:         strings.TrimSpace(p.Summary),
		Transcript:      flattenTranscript(p.Transcript),
		Confidence:      p.Confidence,
		NameFromAgent:   resolution.NameFromAgent(),
		EntityFromAgent: resolution.EntityFromAgent(),
	})
	if err != nil {
		s.log.DatabaseError("webhook.apply_profile", err)
		return
	}

	if lookup.ProfileID == nil || *lookup.ProfileID != profile.ID {
		if err := s.repo.SetLookupProfile(ctx, lookup.ID, profile.ID); err != nil {
			s.log.DatabaseError("webhook.link_profile", err)
		}
	}
}

// flattenTranscript renders the transcript as "role: text" lines for the
// durable transcript column.
func flattenTranscript(messages []callerid.TranscriptMessage) string {
	if len(messages) == 0 {
		return ""
	}
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		if msg.Role != "" {
			b.WriteString(msg.Role)
			b.WriteString(": ")
		}
		b.WriteString(msg.Message)
	}
	return b.String()
}
