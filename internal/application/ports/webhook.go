package ports

import (
	"context"

	"github.com/dggpoliticalaction/greeter/internal/domain"
)

// LifecycleEmitter publishes onboarding and thread lifecycle events (metrics, webhooks).
type LifecycleEmitter interface {
	Emit(ctx context.Context, event domain.LifecycleEvent) error
}
