package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck is one named dependency check (Redis, the Discord gateway).
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler serves /health by running every check.
type HealthHandler struct {
	checks []HealthCheck
}

// NewHealthHandler creates a health handler. With no checks it always reports ok.
func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

type healthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks,omitempty"`
	Message string            `json:"message,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allOK := true
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = "down: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	if !allOK {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:  "unhealthy",
			Checks:  checks,
			Message: "one or more checks failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Checks: checks})
}
