package profiles

import (
	"context"
	"strings"
	"testing"

	"nummerwacht_backend/internal/events"
	"nummerwacht_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	byNumber map[string]*PhoneProfile
}

func newFakeStore() *fakeStore {
	return &fakeStore{byNumber: map[string]*PhoneProfile{}}
}

func (f *fakeStore) GetByNumber(_ context.Context, phoneNumber string) (*PhoneProfile, error) {
	p, ok := f.byNumber[phoneNumber]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*PhoneProfile, error) {
	for _, p := range f.byNumber {
		if p.ID == id {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Upsert(_ context.Context, profile PhoneProfile) (PhoneProfile, error) {
	if existing, ok := f.byNumber[profile.PhoneNumber]; ok {
		profile.ID = existing.ID
	} else if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	stored := profile
	f.byNumber[profile.PhoneNumber] = &stored
	return profile, nil
}

func (f *fakeStore) DeleteAll(context.Context) error {
	f.byNumber = map[string]*PhoneProfile{}
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

func floatPtr(f float64) *float64 { return &f }

func TestApplyCallResultCreatesProfile(t *testing.T) {
	store := newFakeStore()
	bus := &recordingBus{}
	svc := NewService(store, bus, logger.New("test"))

	saved, err := svc.ApplyCallResult(context.Background(), CallResult{
		PhoneNumber:   "+31612345678",
		CallerName:    "Jan de Vries",
		EntityTag:     "Particulier",
		Summary:       "Caller identified as Jan de Vries.",
		Confidence:    floatPtr(0.9),
		NameFromAgent: true,
	})
	if err != nil {
		t.Fatalf("ApplyCallResult() error = %v", err)
	}
	if saved.CallerName != "Jan de Vries" || saved.EntityTag != "Particulier" {
		t.Fatalf("saved = %+v", saved)
	}
	if len(saved.Aliases) != 0 {
		t.Fatalf("new profile aliases = %v, want empty", saved.Aliases)
	}
	if len(bus.published) != 1 || bus.published[0].EventName() != "profiles.profile.upserted" {
		t.Fatalf("events = %v, want ProfileUpserted", bus.published)
	}
}

func TestApplyCallResultKeepsOldNameAsAlias(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &recordingBus{}, logger.New("test"))

	_, err := svc.ApplyCallResult(context.Background(), CallResult{
		PhoneNumber: "+31612345678",
		CallerName:  "Acme Incasso",
	})
	if err != nil {
		t.Fatalf("first ApplyCallResult() error = %v", err)
	}

	saved, err := svc.ApplyCallResult(context.Background(), CallResult{
		PhoneNumber: "+31612345678",
		CallerName:  "Acme Incasso B.V.",
	})
	if err != nil {
		t.Fatalf("second ApplyCallResult() error = %v", err)
	}

	if saved.CallerName != "Acme Incasso B.V." {
		t.Fatalf("CallerName = %q", saved.CallerName)
	}
	if len(saved.Aliases) != 1 || saved.Aliases[0] != "Acme Incasso" {
		t.Fatalf("Aliases = %v, want previous name retained", saved.Aliases)
	}
}

func TestApplyCallResultAgentNameOutranksHeuristic(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &recordingBus{}, logger.New("test"))

	_, err := svc.ApplyCallResult(context.Background(), CallResult{
		PhoneNumber:   "+31612345678",
		CallerName:    "Jan de Vries",
		NameFromAgent: true,
	})
	if err != nil {
		t.Fatalf("ApplyCallResult() error = %v", err)
	}

	saved, err := svc.ApplyCallResult(context.Background(), CallResult{
		PhoneNumber: "+31612345678",
		CallerName:  "Jan",
		Summary:     "Short follow-up call.",
	})
	if err != nil {
		t.Fatalf("ApplyCallResult() error = %v", err)
	}

	if saved.CallerName != "Jan de Vries" || !saved.NameFromAgent {
		t.Fatalf("saved = %+v, want agent name kept", saved)
	}
	if len(saved.Aliases) != 1 || saved.Aliases[0] != "Jan" {
		t.Fatalf("Aliases = %v, want heuristic name demoted to alias", saved.Aliases)
	}
	if saved.Summary != "Short follow-up call." {
		t.Fatalf("Summary = %q, fresh fields must still update", saved.Summary)
	}
}

func TestApplyCallResultEmptyFieldsFallBack(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &recordingBus{}, logger.New("test"))

	_, err := svc.ApplyCallResult(context.Background(), CallResult{
		PhoneNumber: "+31612345678",
		CallerName:  "Jan de Vries",
		EntityTag:   "Particulier",
		Summary:     "First call summary.",
		Transcript:  "agent: hallo\ncaller: met Jan de Vries",
		Confidence:  floatPtr(0.8),
	})
	if err != nil {
		t.Fatalf("ApplyCallResult() error = %v", err)
	}

	saved, err := svc.ApplyCallResult(context.Background(), CallResult{
		PhoneNumber: "+31612345678",
		CallerName:  "Jan de Vries",
	})
	if err != nil {
		t.Fatalf("ApplyCallResult() error = %v", err)
	}

	if saved.Summary != "First call summary." || saved.EntityTag != "Particulier" {
		t.Fatalf("saved = %+v, want earlier fields preserved", saved)
	}
	if saved.Confidence == nil || *saved.Confidence != 0.8 {
		t.Fatalf("Confidence = %v", saved.Confidence)
	}
	if saved.TranscriptPreview == "" {
		t.Fatal("TranscriptPreview lost on sparse update")
	}
}

func TestTruncatePreservesUTF8(t *testing.T) {
	long := strings.Repeat("é", 400)
	got := truncate(long, transcriptPreviewMax)
	if len(got) > transcriptPreviewMax {
		t.Fatalf("len = %d, want <= %d", len(got), transcriptPreviewMax)
	}
	for _, r := range got {
		if r == '�' {
			t.Fatal("truncate split a multi-byte rune")
		}
	}
}
