package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/dggpoliticalaction/greeter/internal/domain"
	"github.com/dggpoliticalaction/greeter/internal/infrastructure/http/handlers"
)

type emptyStore struct{}

func (emptyStore) Pending() []domain.PendingOnboarding { return nil }

func (emptyStore) Cancel(context.Context, string, string, string) bool { return false }

func TestRouterRoutes(t *testing.T) {
	r := NewRouter(RouterConfig{
		OnboardingHandler: handlers.NewOnboardingHandler(emptyStore{}),
		Log:               zerolog.Nop(),
		Metrics:           true,
	})

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/onboarding/pending", http.StatusOK},
		{http.MethodDelete, "/onboarding/pending/g/m/r", http.StatusNotFound},
		{http.MethodGet, "/nope", http.StatusNotFound},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
}
