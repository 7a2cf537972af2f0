package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/dggpoliticalaction/greeter/internal/application/ports"
	"github.com/dggpoliticalaction/greeter/internal/domain"
)

// Worker runs Asynq task handlers (welcome thread creation, webhook delivery).
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log zerolog.Logger
}

// NewWorker creates an Asynq server. Register handlers, then call Start().
func NewWorker(redisOpt asynq.RedisClientOpt, log zerolog.Logger) *Worker {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		LogLevel:    asynq.InfoLevel,
		Queues: map[string]int{
			QueueOnboarding: 3,
			QueueWebhooks:   1,
		},
	})
	return &Worker{srv: srv, mux: asynq.NewServeMux(), log: log}
}

// HandleOnboarding delivers fired welcome thread creations to h.
func (w *Worker) HandleOnboarding(h ports.DeferredHandler) {
	w.mux.HandleFunc(TypeCreateWelcomeThread, func(ctx context.Context, t *asynq.Task) error {
		var task domain.DeferredTask
		if err := json.Unmarshal(t.Payload(), &task); err != nil {
			w.log.Error().Err(err).Msg("welcome thread task payload invalid")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		h(ctx, task)
		return nil
	})
}

// HandleWebhooks delivers enqueued lifecycle events through emitter.
func (w *Worker) HandleWebhooks(emitter ports.LifecycleEmitter) {
	w.mux.HandleFunc(TypeLifecycleWebhook, func(ctx context.Context, t *asynq.Task) error {
		var event domain.LifecycleEvent
		if err := json.Unmarshal(t.Payload(), &event); err != nil {
			w.log.Error().Err(err).Msg("webhook task payload invalid")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		if err := emitter.Emit(ctx, event); err != nil {
			w.log.Warn().Err(err).Str("event", string(event.Type)).Msg("webhook delivery failed")
			return err
		}
		return nil
	})
}

// Start begins processing in background goroutines. Use Shutdown for graceful stop.
func (w *Worker) Start() error {
	return w.srv.Start(w.mux)
}

// Shutdown stops the worker.
func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}
