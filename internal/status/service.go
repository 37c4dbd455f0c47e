package status

import (
	"context"
	"encoding/json"
	"time"

	"nummerwacht_backend/internal/events"
	"nummerwacht_backend/internal/lookups/domain"
	"nummerwacht_backend/internal/lookups/repository"
	"nummerwacht_backend/internal/profiles"
	"nummerwacht_backend/platform/cache"
	"nummerwacht_backend/platform/config"
	"nummerwacht_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ProfileReader is the profile surface the aggregator needs.
type ProfileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*profiles.PhoneProfile, error)
	GetByNumber(ctx context.Context, phoneNumber string) (*profiles.PhoneProfile, error)
}

// Result is the outcome of one status request.
type Result struct {
	Snapshot     Snapshot
	ETag         string
	LastModified time.Time
	NotModified  bool
}

// cachedSnapshot is the cache entry format. Entries are replaced
// atomically as one value, never field-by-field.
type cachedSnapshot struct {
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"lastModified"`
	Snapshot     Snapshot  `json:"snapshot"`
}

// Service aggregates the status snapshot. The two tables it reads are
// written independently by the webhook pipeline, so a naive single read
// can surface contradictory state; the bounded retry loop waits out
// those windows instead of serving them.
type Service struct {
	repo     repository.Repository
	profiles ProfileReader
	cache    cache.Cache
	cfg      config.StatusConfig
	ttls     config.CacheConfig
	log      *logger.Logger

	// sleep is injectable so the retry budget is testable without wall time.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates the status aggregator service.
func NewService(repo repository.Repository, profileReader ProfileReader, snapshotCache cache.Cache, cfg config.StatusConfig, ttls config.CacheConfig, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		profiles: profileReader,
		cache:    snapshotCache,
		cfg:      cfg,
		ttls:     ttls,
		log:      log,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snapshotCacheKey(lookupID uuid.UUID) string {
	return "status:snapshot:" + lookupID.String()
}

// RegisterHandlers subscribes cache invalidation to the domain events
// that mutate snapshot state.
func (s *Service) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LookupStatusChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		if e, ok := event.(events.LookupStatusChanged); ok {
			s.cache.Delete(ctx, snapshotCacheKey(e.LookupID))
		}
		return nil
	}))
	bus.Subscribe(events.CallAttemptUpdated{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		if e, ok := event.(events.CallAttemptUpdated); ok {
			s.cache.Delete(ctx, snapshotCacheKey(e.LookupID))
		}
		return nil
	}))
}

// GetStatus serves one status request: cache fast path, then the
// bounded consistency retry loop, then snapshot assembly. Retry budget
// exhaustion is not an error; the best-effort snapshot is returned.
func (s *Service) GetStatus(ctx context.Context, lookupID uuid.UUID, ifNoneMatch string) (Result, error) {
	key := snapshotCacheKey(lookupID)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var entry cachedSnapshot
		if err := json.Unmarshal([]byte(raw), &entry); err == nil {
			if ifNoneMatch != "" && ifNoneMatch == entry.ETag {
				return Result{ETag: entry.ETag, LastModified: entry.LastModified, NotModified: true}, nil
			}
			return Result{Snapshot: entry.Snapshot, ETag: entry.ETag, LastModified: entry.LastModified}, nil
		}
		s.cache.Delete(ctx, key)
	}

	lookup, attempt, err := s.consistentRead(ctx, lookupID)
	if err != nil {
		return Result{}, err
	}

	profile, err := s.loadProfile(ctx, lookup)
	if err != nil {
		s.log.DatabaseError("status.load_profile", err)
		profile = nil
	}

	snapshot, freshest := BuildSnapshot(lookup, attempt, profile)
	etag := ComputeETag(freshest)
	s.store(ctx, key, cachedSnapshot{ETag: etag, LastModified: freshest, Snapshot: snapshot}, lookup.Status)

	if ifNoneMatch != "" && ifNoneMatch == etag {
		return Result{ETag: etag, LastModified: freshest, NotModified: true}, nil
	}
	return Result{Snapshot: snapshot, ETag: etag, LastModified: freshest}, nil
}

// consistentRead fetches the lookup and its latest attempt, retrying
// while any staleness predicate holds. The first lookup fetch is the
// only fatal error path: the 404 must propagate. Later read errors
// degrade to the last good state.
func (s *Service) consistentRead(ctx context.Context, lookupID uuid.UUID) (repository.Lookup, *repository.CallAttempt, error) {
	deadline := time.Now().Add(s.cfg.GetStatusMaxWait())

	lookup, attempt, err := s.readBoth(ctx, lookupID)
	if err != nil {
		return repository.Lookup{}, nil, err
	}

	previousStatus := lookup.Status
	for retry := 0; retry < s.cfg.GetStatusMaxRetries(); retry++ {
		statusChanged := lookup.Status != previousStatus
		previousStatus = lookup.Status
		if !statusChanged && !staleCompletion(lookup, attempt) && !missingResults(attempt) {
			return lookup, attempt, nil
		}

		delay := s.cfg.GetStatusRetryInterval()
		if retry == 0 {
			delay = s.cfg.GetStatusInitialDelay()
		}
		if time.Now().Add(delay).After(deadline) {
			break
		}
		if err := s.sleep(ctx, delay); err != nil {
			break
		}

		nextLookup, nextAttempt, err := s.readBoth(ctx, lookupID)
		if err != nil {
			s.log.DatabaseError("status.reread", err)
			break
		}
		lookup, attempt = nextLookup, nextAttempt
	}
	return lookup, attempt, nil
}

func (s *Service) readBoth(ctx context.Context, lookupID uuid.UUID) (repository.Lookup, *repository.CallAttempt, error) {
	var (
		lookup  repository.Lookup
		attempt *repository.CallAttempt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lookup, err = s.repo.GetLookup(gctx, lookupID)
		return err
	})
	g.Go(func() error {
		var err error
		attempt, err = s.repo.GetLatestCallAttempt(gctx, lookupID)
		return err
	})
	if err := g.Wait(); err != nil {
		return repository.Lookup{}, nil, err
	}
	return lookup, attempt, nil
}

// earlyAttemptStatuses are attempt states that predate any webhook
// result delivery.
var earlyAttemptStatuses = map[string]struct{}{
	domain.AttemptScheduled:  {},
	domain.AttemptInitiated:  {},
	domain.AttemptInProgress: {},
}

// staleCompletion detects a terminal lookup whose attempt row still
// shows an early-stage status: the status write landed, the attempt
// patch has not.
func staleCompletion(lookup repository.Lookup, attempt *repository.CallAttempt) bool {
	if attempt == nil {
		return false
	}
	if !domain.IsTerminalStatus(lookup.Status) || lookup.Status == domain.StatusFailed {
		return false
	}
	_, early := earlyAttemptStatuses[attempt.Status]
	return early
}

// missingResults detects an attempt that reached the post-call stage
// with its result columns still empty.
func missingResults(attempt *repository.CallAttempt) bool {
	if attempt == nil {
		return false
	}
	if attempt.Status != domain.AttemptAnalyzing && attempt.Status != domain.AttemptCompleted {
		return false
	}
	return attempt.Summary == "" && attempt.Transcript == ""
}

func (s *Service) loadProfile(ctx context.Context, lookup repository.Lookup) (*profiles.PhoneProfile, error) {
	if lookup.ProfileID != nil {
		return s.profiles.GetByID(ctx, *lookup.ProfileID)
	}
	if lookup.PhoneNumber != "" {
		return s.profiles.GetByNumber(ctx, lookup.PhoneNumber)
	}
	return nil, nil
}

func (s *Service) store(ctx context.Context, key string, entry cachedSnapshot, lookupStatus string) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	ttl := s.ttls.GetCacheActiveTTL()
	if domain.IsTerminalStatus(lookupStatus) {
		ttl = s.ttls.GetCacheTerminalTTL()
	}
	s.cache.Set(ctx, key, string(raw), ttl)
}
