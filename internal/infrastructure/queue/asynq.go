package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/dggpoliticalaction/greeter/internal/application/ports"
	"github.com/dggpoliticalaction/greeter/internal/domain"
)

const (
	TypeCreateWelcomeThread = "onboarding:create_welcome_thread"
	TypeLifecycleWebhook    = "webhook:lifecycle"

	QueueOnboarding = "onboarding"
	QueueWebhooks   = "webhooks"

	webhookMaxRetry = 3
)

// TaskEnqueuer schedules onboarding tasks as delayed Asynq tasks and enqueues
// lifecycle webhooks. Delayed tasks survive a restart in Redis, but the
// scheduler's pending table does not, so such tasks fire as no-ops.
type TaskEnqueuer struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	log       zerolog.Logger
}

// NewAsynqEnqueuer connects an Asynq client and inspector to Redis.
func NewAsynqEnqueuer(redisOpt asynq.RedisClientOpt, log zerolog.Logger) (*TaskEnqueuer, error) {
	client := asynq.NewClient(redisOpt)
	inspector := asynq.NewInspector(redisOpt)
	return &TaskEnqueuer{client: client, inspector: inspector, log: log}, nil
}

func (q *TaskEnqueuer) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close())
}

// Schedule implements ports.Deferrer. The returned handle is the Asynq task ID.
func (q *TaskEnqueuer) Schedule(ctx context.Context, delay time.Duration, task domain.DeferredTask) (string, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return "", err
	}
	t := asynq.NewTask(TypeCreateWelcomeThread, payload)
	info, err := q.client.EnqueueContext(ctx, t,
		asynq.Queue(QueueOnboarding),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(0),
		asynq.TaskID(task.Key.String()+":"+task.Token),
	)
	if err != nil {
		q.log.Warn().Err(err).Str("key", task.Key.String()).Msg("enqueue welcome thread creation failed")
		return "", err
	}
	return info.ID, nil
}

// Cancel implements ports.Deferrer. Tasks that already ran or were deleted are a no-op.
func (q *TaskEnqueuer) Cancel(ctx context.Context, handle string) error {
	err := q.inspector.DeleteTask(QueueOnboarding, handle)
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return fmt.Errorf("delete task %s: %w", handle, err)
}

// Emit implements ports.LifecycleEmitter by enqueueing the event for webhook delivery.
func (q *TaskEnqueuer) Emit(ctx context.Context, event domain.LifecycleEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeLifecycleWebhook, body)
	_, err = q.client.EnqueueContext(ctx, task, asynq.Queue(QueueWebhooks), asynq.MaxRetry(webhookMaxRetry))
	if err != nil {
		q.log.Warn().Err(err).Str("event", string(event.Type)).Msg("enqueue webhook failed")
		return err
	}
	return nil
}

var (
	_ ports.Deferrer         = (*TaskEnqueuer)(nil)
	_ ports.LifecycleEmitter = (*TaskEnqueuer)(nil)
)
