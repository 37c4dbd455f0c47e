package service

import (
	"context"
	"errors"
	"testing"

	"nummerwacht_backend/internal/events"
	"nummerwacht_backend/internal/lookups/domain"
	"nummerwacht_backend/internal/lookups/repository"
	"nummerwacht_backend/internal/lookups/transport"
	"nummerwacht_backend/platform/apperr"
	"nummerwacht_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	lookups map[uuid.UUID]*repository.Lookup
	resets  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{lookups: map[uuid.UUID]*repository.Lookup{}}
}

func (f *fakeRepo) CreateLookup(_ context.Context, phoneNumber, rawInput string) (repository.Lookup, error) {
	l := repository.Lookup{ID: uuid.New(), PhoneNumber: phoneNumber, RawInput: rawInput, Status: domain.StatusPending}
	f.lookups[l.ID] = &l
	return l, nil
}

func (f *fakeRepo) GetLookup(_ context.Context, id uuid.UUID) (repository.Lookup, error) {
	l, ok := f.lookups[id]
	if !ok {
		return repository.Lookup{}, apperr.NotFound("lookup not found")
	}
	return *l, nil
}

func (f *fakeRepo) UpdateLookupStatus(_ context.Context, id uuid.UUID, status string) error {
	f.lookups[id].Status = status
	return nil
}

func (f *fakeRepo) SetLookupProfile(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}
func (f *fakeRepo) CreateCallAttempt(context.Context, uuid.UUID, string) (repository.CallAttempt, error) {
	return repository.CallAttempt{}, nil
}
func (f *fakeRepo) GetLatestCallAttempt(context.Context, uuid.UUID) (*repository.CallAttempt, error) {
	return nil, nil
}
func (f *fakeRepo) GetCallAttemptByConversationID(context.Context, string) (*repository.CallAttempt, error) {
	return nil, nil
}
func (f *fakeRepo) UpdateCallAttemptByConversationID(context.Context, string, repository.AttemptPatch) error {
	return nil
}
func (f *fakeRepo) UpdateLatestCallAttempt(context.Context, uuid.UUID, repository.AttemptPatch) error {
	return nil
}
func (f *fakeRepo) SetAttemptConversationID(context.Context, uuid.UUID, string) error {
	return nil
}
func (f *fakeRepo) ResetAll(context.Context) error {
	f.resets++
	return nil
}

type fakeDispatcher struct {
	err      error
	enqueued []string
}

func (f *fakeDispatcher) EnqueueDispatch(_ context.Context, _ uuid.UUID, phoneNumber string) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, phoneNumber)
	return nil
}

type fakeResetter struct{ resets int }

func (f *fakeResetter) Reset(context.Context) error {
	f.resets++
	return nil
}

type recordingBus struct{ published []events.Event }

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.published = append(b.published, e)
}
func (b *recordingBus) PublishSync(_ context.Context, e events.Event) error {
	b.published = append(b.published, e)
	return nil
}
func (b *recordingBus) Subscribe(string, events.Handler) {}

func TestCreateNormalizesAndDispatches(t *testing.T) {
	repo := newFakeRepo()
	dispatcher := &fakeDispatcher{}
	bus := &recordingBus{}
	svc := New(repo, dispatcher, &fakeResetter{}, bus, logger.New("test"))

	resp, err := svc.Create(context.Background(), transport.CreateLookupRequest{PhoneNumber: "0612345678"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if resp.PhoneNumber != "+31612345678" {
		t.Fatalf("PhoneNumber = %q, want +31612345678", resp.PhoneNumber)
	}
	if resp.RawInput != "0612345678" {
		t.Fatalf("RawInput = %q, want original input preserved", resp.RawInput)
	}
	if resp.Status != domain.StatusPending {
		t.Fatalf("Status = %q, want pending", resp.Status)
	}
	if len(dispatcher.enqueued) != 1 || dispatcher.enqueued[0] != "+31612345678" {
		t.Fatalf("enqueued = %v", dispatcher.enqueued)
	}
	if len(bus.published) == 0 || bus.published[0].EventName() != "lookups.lookup.created" {
		t.Fatalf("events = %v, want LookupCreated first", bus.published)
	}
}

func TestCreateRejectsInvalidNumber(t *testing.T) {
	svc := New(newFakeRepo(), &fakeDispatcher{}, &fakeResetter{}, &recordingBus{}, logger.New("test"))

	_, err := svc.Create(context.Background(), transport.CreateLookupRequest{PhoneNumber: "not-a-number"})
	if err == nil {
		t.Fatal("Create() = nil error, want validation failure")
	}
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("kind = %v, want KindValidation", apperr.GetKind(err))
	}
}

func TestCreateDispatchFailureMarksLookupFailed(t *testing.T) {
	repo := newFakeRepo()
	bus := &recordingBus{}
	svc := New(repo, &fakeDispatcher{err: errors.New("redis down")}, &fakeResetter{}, bus, logger.New("test"))

	resp, err := svc.Create(context.Background(), transport.CreateLookupRequest{PhoneNumber: "0612345678"})
	if err != nil {
		t.Fatalf("Create() error = %v, dispatch failure must not be a request error", err)
	}
	if resp.Status != domain.StatusFailed {
		t.Fatalf("Status = %q, want failed", resp.Status)
	}
	if repo.lookups[resp.ID].Status != domain.StatusFailed {
		t.Fatalf("stored status = %q, want failed", repo.lookups[resp.ID].Status)
	}

	var sawDispatchFailed bool
	for _, e := range bus.published {
		if e.EventName() == "calls.dispatch.failed" {
			sawDispatchFailed = true
		}
	}
	if !sawDispatchFailed {
		t.Fatal("CallDispatchFailed event not published")
	}
}

func TestResetWipesLookupsAndProfiles(t *testing.T) {
	repo := newFakeRepo()
	resetter := &fakeResetter{}
	svc := New(repo, &fakeDispatcher{}, resetter, &recordingBus{}, logger.New("test"))

	if err := svc.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if repo.resets != 1 || resetter.resets != 1 {
		t.Fatalf("resets = %d, profile resets = %d, want 1 and 1", repo.resets, resetter.resets)
	}
}
