package webhook

import (
	"context"

	"github.com/dggpoliticalaction/greeter/internal/application/ports"
	"github.com/dggpoliticalaction/greeter/internal/domain"
)

// NoopEmitter discards lifecycle events when webhook.url is not set.
type NoopEmitter struct{}

// NewNoopEmitter returns an emitter that discards all events.
func NewNoopEmitter() *NoopEmitter {
	return &NoopEmitter{}
}

// Emit implements ports.LifecycleEmitter.
func (e *NoopEmitter) Emit(ctx context.Context, event domain.LifecycleEvent) error {
	return nil
}

var _ ports.LifecycleEmitter = (*NoopEmitter)(nil)
