package scheduler

import (
	"context"
	"fmt"
	"time"

	"marketplace_backend/internal/fanout"
	"marketplace_backend/internal/notification/outbox"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxEffectAttempts bounds retries per parked effect before the record is
// marked failed for good.
const maxEffectAttempts = 5

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	outbox *outbox.Repository
	fan    *fanout.Coordinator
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, fan *fanout.Coordinator, log *logger.Logger) (*Worker, error) {
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
		outbox: outbox.New(pool),
		fan:    fan,
		log:    log,
	}

	mux.HandleFunc(TaskEffectRetry, w.handleEffectRetry)

	return w, nil
}

// handleEffectRetry re-runs one parked downstream effect from its outbox
// snapshot. A retry that fails goes back to pending with a linear backoff
// until maxEffectAttempts is reached.
func (w *Worker) handleEffectRetry(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseEffectRetryPayload(task)
	if err != nil {
		return err
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return err
	}

	rec, err := w.outbox.GetByID(ctx, outboxID)
	if err != nil {
		return err
	}
	if rec.Status == outbox.StatusSucceeded || rec.Status == outbox.StatusFailed {
		return nil
	}

	if err := w.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return err
	}
	attempts := rec.Attempts + 1

	if retryErr := w.fan.Retry(ctx, rec); retryErr != nil {
		w.log.Warn("effect retry failed",
			"outbox_id", rec.ID.String(),
			"engagement_id", rec.EngagementID.String(),
			"effect", rec.Effect,
			"attempts", attempts,
			"error", retryErr.Error(),
		)

		if attempts >= maxEffectAttempts {
			return w.outbox.MarkFailed(ctx, rec.ID, retryErr.Error())
		}

		msg := retryErr.Error()
		runAt := time.Now().UTC().Add(time.Duration(attempts) * 30 * time.Second)
		return w.outbox.MarkPending(ctx, rec.ID, runAt, &msg)
	}

	return w.outbox.MarkSucceeded(ctx, rec.ID)
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
