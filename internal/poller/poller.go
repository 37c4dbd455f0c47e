// Package poller implements the client-side reconciliation loop for a
// lookup. It polls the status endpoint on an interval, uses the server's
// ETag to avoid re-downloading unchanged snapshots, and hashes snapshot
// content so identical payloads behind a changed ETag never reach the
// subscriber twice.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand"
	"net/http"
	"time"

	"nummerwacht_backend/internal/lookups/domain"
	"nummerwacht_backend/internal/status"
	"nummerwacht_backend/platform/logger"

	"github.com/google/uuid"
)

// Stage is the coarse progress indicator a UI renders while a lookup runs.
type Stage string

const (
	StageScheduled Stage = "scheduled"
	StageAnalyzing Stage = "analyzing"
	StageCompleted Stage = "completed"
)

// Update carries one observed change of a lookup's snapshot.
type Update struct {
	Stage    Stage
	Snapshot status.Snapshot
	Terminal bool
}

// Options configures a Poller. Zero values fall back to defaults.
type Options struct {
	// MinInterval and MaxInterval bound the randomized poll interval.
	MinInterval time.Duration
	MaxInterval time.Duration
	HTTPClient  *http.Client
}

const (
	defaultMinInterval = 2 * time.Second
	defaultMaxInterval = 5 * time.Second
)

// Poller watches one lookup until it settles.
type Poller struct {
	baseURL  string
	lookupID uuid.UUID
	onUpdate func(Update)
	http     *http.Client
	log      *logger.Logger

	minInterval time.Duration
	maxInterval time.Duration

	trigger chan struct{}

	etag     string
	lastHash uint64
	hasHash  bool
}

// New creates a poller for one lookup. onUpdate is invoked from the
// polling goroutine for every materially changed snapshot.
func New(baseURL string, lookupID uuid.UUID, onUpdate func(Update), opts Options, log *logger.Logger) *Poller {
	if opts.MinInterval <= 0 {
		opts.MinInterval = defaultMinInterval
	}
	if opts.MaxInterval < opts.MinInterval {
		opts.MaxInterval = opts.MinInterval
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &Poller{
		baseURL:     baseURL,
		lookupID:    lookupID,
		onUpdate:    onUpdate,
		http:        client,
		log:         log,
		minInterval: opts.MinInterval,
		maxInterval: opts.MaxInterval,
		trigger:     make(chan struct{}, 1),
	}
}

// TriggerNow requests an immediate poll, collapsing concurrent requests
// into one. Safe to call from any goroutine.
func (p *Poller) TriggerNow() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run polls until the lookup reaches a terminal status or ctx is
// cancelled. The first poll happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	for {
		done, err := p.pollOnce(ctx)
		if err != nil {
			p.log.Warn("lookup poll failed", "lookup_id", p.lookupID.String(), "error", err)
		}
		if done {
			return nil
		}

		timer := time.NewTimer(p.nextInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-p.trigger:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// nextInterval spreads clients out so a burst of lookups does not tick
// against the server in lockstep.
func (p *Poller) nextInterval() time.Duration {
	spread := p.maxInterval - p.minInterval
	if spread <= 0 {
		return p.minInterval
	}
	return p.minInterval + time.Duration(rand.Int63n(int64(spread)))
}

func (p *Poller) pollOnce(ctx context.Context) (bool, error) {
	url := fmt.Sprintf("%s/api/v1/lookups/%s/status", p.baseURL, p.lookupID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	if p.etag != "" {
		req.Header.Set("If-None-Match", p.etag)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return false, nil
	case resp.StatusCode == http.StatusNotFound:
		return true, fmt.Errorf("lookup %s not found", p.lookupID)
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		p.etag = etag
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, err
	}

	hash, err := contentHash(body)
	if err != nil {
		return false, fmt.Errorf("hash snapshot: %w", err)
	}

	var snapshot status.Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return false, fmt.Errorf("decode snapshot: %w", err)
	}
	terminal := domain.IsTerminalStatus(snapshot.Lookup.Status)

	if p.hasHash && hash == p.lastHash {
		return terminal, nil
	}
	p.lastHash = hash
	p.hasHash = true

	if p.onUpdate != nil {
		p.onUpdate(Update{Stage: stageFor(snapshot), Snapshot: snapshot, Terminal: terminal})
	}

	return terminal, nil
}

// contentHash hashes the snapshot's content, not its bytes: the payload
// is decoded and re-encoded so key order and whitespace differences
// between deliveries cannot masquerade as changes.
func contentHash(body []byte) (uint64, error) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, err
	}
	canonical, err := json.Marshal(decoded)
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	_, _ = h.Write(canonical)
	return h.Sum64(), nil
}

// stageFor collapses lookup and attempt state into the three stages the
// UI shows.
func stageFor(snapshot status.Snapshot) Stage {
	if domain.IsTerminalStatus(snapshot.Lookup.Status) {
		return StageCompleted
	}
	if attempt := snapshot.CallAttempt; attempt != nil && domain.IsAttemptUnderway(attempt.Status) {
		return StageAnalyzing
	}
	return StageScheduled
}
