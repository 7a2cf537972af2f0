package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dggpoliticalaction/greeter/internal/domain"
)

// PendingStore is the read and cancel surface of the onboarding scheduler.
type PendingStore interface {
	Pending() []domain.PendingOnboarding
	Cancel(ctx context.Context, guildID, memberID, roleID string) bool
}

// OnboardingHandler exposes pending welcome thread creations.
type OnboardingHandler struct {
	store PendingStore
}

func NewOnboardingHandler(store PendingStore) *OnboardingHandler {
	return &OnboardingHandler{store: store}
}

type pendingItem struct {
	GuildID     string    `json:"guild_id"`
	MemberID    string    `json:"member_id"`
	RoleID      string    `json:"role_id"`
	Team        string    `json:"team"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type pendingResponse struct {
	Count   int           `json:"count"`
	Pending []pendingItem `json:"pending"`
}

// List handles GET /onboarding/pending. Optional ?guild_id= and ?member_id= filter the result.
func (h *OnboardingHandler) List(w http.ResponseWriter, r *http.Request) {
	guildID := r.URL.Query().Get("guild_id")
	memberID := r.URL.Query().Get("member_id")

	items := make([]pendingItem, 0)
	for _, p := range h.store.Pending() {
		if guildID != "" && p.Key.GuildID != guildID {
			continue
		}
		if memberID != "" && p.Key.MemberID != memberID {
			continue
		}
		items = append(items, pendingItem{
			GuildID:     p.Key.GuildID,
			MemberID:    p.Key.MemberID,
			RoleID:      p.Key.RoleID,
			Team:        p.TeamName,
			ScheduledAt: p.ScheduledAt,
		})
	}
	writeJSON(w, http.StatusOK, pendingResponse{Count: len(items), Pending: items})
}

// Cancel handles DELETE /onboarding/pending/{guildID}/{memberID}/{roleID}.
func (h *OnboardingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	memberID := chi.URLParam(r, "memberID")
	roleID := chi.URLParam(r, "roleID")
	if guildID == "" || memberID == "" || roleID == "" {
		writeErr(w, http.StatusBadRequest, "", "guild, member and role are required")
		return
	}
	if !h.store.Cancel(r.Context(), guildID, memberID, roleID) {
		writeErr(w, http.StatusNotFound, "", "no pending onboarding for that key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
