// Package service implements the lookup lifecycle: submission,
// normalization, outbound call dispatch and the test-only reset.
package service

import (
	"context"

	"nummerwacht_backend/internal/events"
	"nummerwacht_backend/internal/lookups/domain"
	"nummerwacht_backend/internal/lookups/repository"
	"nummerwacht_backend/internal/lookups/transport"
	"nummerwacht_backend/platform/apperr"
	"nummerwacht_backend/platform/logger"
	"nummerwacht_backend/platform/phone"

	"github.com/google/uuid"
)

// CallDispatcher schedules the outbound AI call for a lookup. Satisfied
// by the scheduler client; nil disables dispatch (tests, local runs
// without Redis).
type CallDispatcher interface {
	EnqueueDispatch(ctx context.Context, lookupID uuid.UUID, phoneNumber string) error
}

// ProfileResetter is the slice of the profiles module the reset needs.
type ProfileResetter interface {
	Reset(ctx context.Context) error
}

// Service orchestrates lookup creation and dispatch.
type Service struct {
	repo       repository.Repository
	dispatcher CallDispatcher
	profiles   ProfileResetter
	bus        events.Bus
	log        *logger.Logger
}

// New creates a lookups service.
func New(repo repository.Repository, dispatcher CallDispatcher, profileResetter ProfileResetter, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, dispatcher: dispatcher, profiles: profileResetter, bus: bus, log: log}
}

// Create normalizes the submitted number, persists the lookup and
// enqueues the outbound call. Dispatch failure is user-visible as a
// failed lookup, never as a 5xx: the lookup record is the audit trail.
func (s *Service) Create(ctx context.Context, req transport.CreateLookupRequest) (transport.LookupResponse, error) {
	normalized := phone.NormalizeE164(req.PhoneNumber)
	if normalized == "" {
		return transport.LookupResponse{}, apperr.Validation("invalid phone number")
	}

	lookup, err := s.repo.CreateLookup(ctx, normalized, req.PhoneNumber)
	if err != nil {
		return transport.LookupResponse{}, err
	}

	s.bus.Publish(ctx, events.LookupCreated{
		BaseEvent:   events.NewBaseEvent(),
		LookupID:    lookup.ID,
		PhoneNumber: normalized,
	})

	if s.dispatcher == nil {
		s.log.CallDispatch(lookup.ID.String(), normalized, false, "dispatcher not configured")
		return s.markDispatchFailed(ctx, lookup, "dispatcher not configured")
	}
	if err := s.dispatcher.EnqueueDispatch(ctx, lookup.ID, normalized); err != nil {
		s.log.CallDispatch(lookup.ID.String(), normalized, false, err.Error())
		return s.markDispatchFailed(ctx, lookup, err.Error())
	}
	s.log.CallDispatch(lookup.ID.String(), normalized, true, "")

	return toResponse(lookup), nil
}

func (s *Service) markDispatchFailed(ctx context.Context, lookup repository.Lookup, reason string) (transport.LookupResponse, error) {
	if err := s.repo.UpdateLookupStatus(ctx, lookup.ID, domain.StatusFailed); err != nil {
		s.log.DatabaseError("lookups.mark_failed", err)
	} else {
		s.bus.Publish(ctx, events.LookupStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			LookupID:  lookup.ID,
			OldStatus: lookup.Status,
			NewStatus: domain.StatusFailed,
		})
		lookup.Status = domain.StatusFailed
	}
	s.bus.Publish(ctx, events.CallDispatchFailed{
		BaseEvent: events.NewBaseEvent(),
		LookupID:  lookup.ID,
		Reason:    reason,
	})
	return toResponse(lookup), nil
}

// Get returns one lookup by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.LookupResponse, error) {
	lookup, err := s.repo.GetLookup(ctx, id)
	if err != nil {
		return transport.LookupResponse{}, err
	}
	return toResponse(lookup), nil
}

// Reset wipes all lookups, call attempts and profiles. Operator/test
// tooling only; the route sits behind admin auth.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.repo.ResetAll(ctx); err != nil {
		return err
	}
	return s.profiles.Reset(ctx)
}

func toResponse(lookup repository.Lookup) transport.LookupResponse {
	return transport.LookupResponse{
		ID:          lookup.ID,
		PhoneNumber: lookup.PhoneNumber,
		RawInput:    lookup.RawInput,
		Status:      lookup.Status,
		CreatedAt:   lookup.CreatedAt,
	}
}
