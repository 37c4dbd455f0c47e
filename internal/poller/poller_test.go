package poller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nummerwacht_backend/internal/status"
	"nummerwacht_backend/platform/logger"

	"github.com/google/uuid"
)

type scriptedResponse struct {
	status int
	etag   string
	body   string
}

func TestRunEmitsOnlyMaterialChanges(t *testing.T) {
	lookupID := uuid.New()

	pendingBody := fmt.Sprintf(`{"lookup":{"id":"%s","phoneNumber":"+31612345678","status":"pending"}}`, lookupID)
	// Same content as pendingBody with keys in a different order.
	pendingReordered := fmt.Sprintf(`{"lookup":{"status":"pending","phoneNumber":"+31612345678","id":"%s"}}`, lookupID)
	cachedBody := fmt.Sprintf(`{"lookup":{"id":"%s","phoneNumber":"+31612345678","status":"cached"},"callAttempt":{"status":"completed","summary":"Jan de Vries"},"profile":{"callerName":"Jan de Vries"}}`, lookupID)

	script := []scriptedResponse{
		{status: http.StatusOK, etag: `"a"`, body: pendingBody},
		{status: http.StatusNotModified, etag: `"a"`},
		{status: http.StatusOK, etag: `"b"`, body: pendingReordered},
		{status: http.StatusOK, etag: `"c"`, body: cachedBody},
	}

	var mu sync.Mutex
	var served int
	var conditionalSeen bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := fmt.Sprintf("/api/v1/lookups/%s/status", lookupID)
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}

		mu.Lock()
		if served >= len(script) {
			mu.Unlock()
			t.Errorf("unexpected extra poll")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := script[served]
		served++
		mu.Unlock()

		if resp.status == http.StatusNotModified {
			if r.Header.Get("If-None-Match") == `"a"` {
				mu.Lock()
				conditionalSeen = true
				mu.Unlock()
			}
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", resp.etag)
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	}))
	defer srv.Close()

	var updates []Update
	p := New(srv.URL, lookupID, func(u Update) { updates = append(updates, u) }, Options{
		MinInterval: time.Millisecond,
		MaxInterval: 2 * time.Millisecond,
	}, logger.New("test"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	finalServed, sawConditional := served, conditionalSeen
	mu.Unlock()
	if finalServed != len(script) {
		t.Fatalf("polls served = %d, want %d", finalServed, len(script))
	}
	if !sawConditional {
		t.Fatal("If-None-Match header never sent")
	}

	// The 304 and the reordered-but-identical payload must both be
	// suppressed: exactly two updates reach the subscriber.
	if len(updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(updates))
	}
	if updates[0].Stage != StageScheduled || updates[0].Terminal {
		t.Fatalf("first update = %+v, want non-terminal scheduled", updates[0])
	}
	if updates[1].Stage != StageCompleted || !updates[1].Terminal {
		t.Fatalf("second update = %+v, want terminal completed", updates[1])
	}
	if updates[1].Snapshot.Profile == nil || updates[1].Snapshot.Profile.CallerName != "Jan de Vries" {
		t.Fatalf("terminal snapshot profile = %+v", updates[1].Snapshot.Profile)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	lookupID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("ETag", `"a"`)
		fmt.Fprintf(w, `{"lookup":{"id":"%s","status":"calling"}}`, lookupID)
	}))
	defer srv.Close()

	p := New(srv.URL, lookupID, nil, Options{
		MinInterval: time.Millisecond,
		MaxInterval: 2 * time.Millisecond,
	}, logger.New("test"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestTriggerNowForcesImmediatePoll(t *testing.T) {
	lookupID := uuid.New()
	polled := make(chan struct{}, 8)
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := count.Add(1)
		polled <- struct{}{}
		status := "calling"
		if n >= 2 {
			status = "cached"
		}
		fmt.Fprintf(w, `{"lookup":{"id":"%s","status":"%s"}}`, lookupID, status)
	}))
	defer srv.Close()

	p := New(srv.URL, lookupID, nil, Options{
		MinInterval: time.Hour,
		MaxInterval: time.Hour,
	}, logger.New("test"))

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	<-polled
	p.TriggerNow()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("trigger did not force a poll past the hour-long interval")
	}
	if got := count.Load(); got != 2 {
		t.Fatalf("polls = %d, want 2", got)
	}
}

func TestStageFor(t *testing.T) {
	attempt := func(s string) *status.AttemptView { return &status.AttemptView{Status: s} }

	tests := []struct {
		name     string
		snapshot status.Snapshot
		want     Stage
	}{
		{"pending no attempt", status.Snapshot{Lookup: status.LookupView{Status: "pending"}}, StageScheduled},
		{"calling initiated", status.Snapshot{Lookup: status.LookupView{Status: "calling"}, CallAttempt: attempt("initiated")}, StageScheduled},
		{"calling in progress", status.Snapshot{Lookup: status.LookupView{Status: "calling"}, CallAttempt: attempt("in_progress")}, StageAnalyzing},
		{"calling analyzing", status.Snapshot{Lookup: status.LookupView{Status: "calling"}, CallAttempt: attempt("analyzing")}, StageAnalyzing},
		{"cached", status.Snapshot{Lookup: status.LookupView{Status: "cached"}}, StageCompleted},
		{"failed", status.Snapshot{Lookup: status.LookupView{Status: "failed"}}, StageCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stageFor(tt.snapshot); got != tt.want {
				t.Fatalf("stageFor() = %q, want %q", got, tt.want)
			}
		})
	}
}
