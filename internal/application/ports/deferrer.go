package ports

import (
	"context"
	"time"

	"github.com/dggpoliticalaction/greeter/internal/domain"
)

// DeferredHandler receives a deferred task once its delay has elapsed.
type DeferredHandler func(ctx context.Context, task domain.DeferredTask)

// Deferrer runs a task after a delay unless it is cancelled first.
type Deferrer interface {
	// Schedule arranges for task to be delivered after delay and returns a handle for Cancel.
	Schedule(ctx context.Context, delay time.Duration, task domain.DeferredTask) (handle string, err error)
	// Cancel stops a scheduled task. Unknown or already fired handles are a no-op.
	Cancel(ctx context.Context, handle string) error
}
