package scheduler

import (
	"context"
	"fmt"

	"nummerwacht_backend/internal/events"
	"nummerwacht_backend/internal/lookups/domain"
	"nummerwacht_backend/internal/lookups/repository"
	"nummerwacht_backend/internal/provider"
	"nummerwacht_backend/platform/apperr"
	"nummerwacht_backend/platform/config"
	"nummerwacht_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CallStarter is the slice of the voice provider the worker needs.
type CallStarter interface {
	StartCall(ctx context.Context, req provider.CallRequest) (provider.CallResult, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	repo   repository.Repository
	calls  CallStarter
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, calls CallStarter, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		repo:   repository.New(pool),
		calls:  calls,
		bus:    bus,
		log:    log,
	}

	mux.HandleFunc(TaskCallDispatch, w.handleCallDispatch)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleCallDispatch places the outbound call for a lookup. Redeliveries
// are absorbed: a lookup that already reached a terminal status, or that
// already has a live attempt, is left alone.
func (w *Worker) handleCallDispatch(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCallDispatchPayload(task)
	if err != nil {
		return err
	}

	lookupID, err := uuid.Parse(payload.LookupID)
	if err != nil {
		return err
	}

	lookup, err := w.repo.GetLookup(ctx, lookupID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			return nil
		}
		return err
	}

	if domain.IsTerminalStatus(lookup.Status) {
		return nil
	}

	attempt, err := w.repo.GetLatestCallAttempt(ctx, lookupID)
	if err != nil {
		return err
	}
	if attempt != nil && attempt.ConversationID != nil {
		return nil
	}
	if attempt == nil {
		created, err := w.repo.CreateCallAttempt(ctx, lookupID, "")
		if err != nil {
			return err
		}
		attempt = &created
	}

	result, err := w.calls.StartCall(ctx, provider.CallRequest{
		LookupID:    lookupID,
		PhoneNumber: payload.PhoneNumber,
	})
	if err != nil {
		return w.markCallFailed(ctx, lookup, err)
	}

	if result.ConversationID != "" {
		if err := w.repo.SetAttemptConversationID(ctx, attempt.ID, result.ConversationID); err != nil {
			w.log.DatabaseError("scheduler.set_conversation_id", err)
		}
	}

	initiated := domain.AttemptInitiated
	if err := w.repo.UpdateLatestCallAttempt(ctx, lookupID, repository.AttemptPatch{Status: &initiated}); err != nil {
		w.log.DatabaseError("scheduler.mark_initiated", err)
	}

	next := domain.NextStatus(lookup.Status, domain.StatusCalling)
	if next != lookup.Status {
		if err := w.repo.UpdateLookupStatus(ctx, lookupID, next); err != nil {
			w.log.DatabaseError("scheduler.mark_calling", err)
		} else if w.bus != nil {
			w.bus.Publish(ctx, events.LookupStatusChanged{
				BaseEvent: events.NewBaseEvent(),
				LookupID:  lookupID,
				OldStatus: lookup.Status,
				NewStatus: next,
			})
		}
	}

	w.log.CallDispatch(lookupID.String(), payload.PhoneNumber, true, "")
	return nil
}

// markCallFailed records a provider failure as a terminal lookup state.
// It returns nil: asynq retries would redial numbers the provider already
// rejected, and the failed lookup is what the client polls for.
//
// The status-changed event lands on this process's bus only, so the API
// process keeps serving its cached snapshot until the active-status cache
// TTL expires. Keep that TTL short enough that a failed dispatch surfaces
// within one or two poll intervals.
func (w *Worker) markCallFailed(ctx context.Context, lookup repository.Lookup, cause error) error {
	w.log.CallDispatch(lookup.ID.String(), lookup.PhoneNumber, false, cause.Error())

	failed := domain.AttemptFailed
	msg := cause.Error()
	if err := w.repo.UpdateLatestCallAttempt(ctx, lookup.ID, repository.AttemptPatch{
		Status:       &failed,
		ErrorMessage: &msg,
	}); err != nil {
		w.log.DatabaseError("scheduler.mark_attempt_failed", err)
	}

	if err := w.repo.UpdateLookupStatus(ctx, lookup.ID, domain.StatusFailed); err != nil {
		w.log.DatabaseError("scheduler.mark_lookup_failed", err)
	}

	if w.bus != nil {
		w.bus.Publish(ctx, events.CallDispatchFailed{
			BaseEvent: events.NewBaseEvent(),
			LookupID:  lookup.ID,
			Reason:    cause.Error(),
		})
		w.bus.Publish(ctx, events.LookupStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			LookupID:  lookup.ID,
			OldStatus: lookup.Status,
			NewStatus: domain.StatusFailed,
		})
	}

	return nil
}
