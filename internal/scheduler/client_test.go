package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type testSchedulerConfig struct {
	redisURL string
	queue    string
}

func (c testSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return c.queue }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 1 }

func TestNewClient_RequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Fatal("expected error when redis url is missing")
	}
}

func TestScheduleEffectRetry_EnqueuesScheduledTask(t *testing.T) {
	srv := miniredis.RunT(t)

	cfg := testSchedulerConfig{redisURL: "redis://" + srv.Addr(), queue: "effects"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	payload := EffectRetryPayload{
		OutboxID:     "0d4cbbd0-8f2b-4b52-9c51-0a4b6f2fca11",
		EngagementID: "c3a1f3f9-70f1-4f57-8b0e-4c8c9a4df1f2",
	}
	runAt := time.Now().Add(30 * time.Second)
	if err := client.ScheduleEffectRetry(context.Background(), payload, runAt); err != nil {
		t.Fatalf("ScheduleEffectRetry: %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: srv.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListScheduledTasks("effects")
	if err != nil {
		t.Fatalf("ListScheduledTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 scheduled task, got %d", len(tasks))
	}
	if tasks[0].Type != TaskEffectRetry {
		t.Fatalf("expected task type %q, got %q", TaskEffectRetry, tasks[0].Type)
	}

	parsed, err := ParseEffectRetryPayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatalf("ParseEffectRetryPayload: %v", err)
	}
	if parsed.OutboxID != payload.OutboxID {
		t.Fatalf("expected outbox id %q, got %q", payload.OutboxID, parsed.OutboxID)
	}
}

func TestScheduleEffectRetry_NilClientIsNoop(t *testing.T) {
	var client *Client
	if err := client.ScheduleEffectRetry(context.Background(), EffectRetryPayload{}, time.Now()); err != nil {
		t.Fatalf("nil client should be a no-op, got %v", err)
	}
}
