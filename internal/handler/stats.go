package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pxldrop/pxldrop/internal/repository"
	"github.com/pxldrop/pxldrop/internal/service"
)

type StatsHandler struct {
	reconcileService *service.ReconcileService
}

func NewStatsHandler(reconcileService *service.ReconcileService) *StatsHandler {
	return &StatsHandler{reconcileService: reconcileService}
}

// UserStats handles GET /api/users/{user}/stats, returning the aggregates
// persisted by the daily stats task.
func (h *StatsHandler) UserStats(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")

	stats, err := h.reconcileService.UserStats(userID)
	if errors.Is(err, repository.ErrStatsNotFound) {
		writeError(w, http.StatusNotFound, "no stats for user")
		return
	}
	if err != nil {
		slog.Error("failed to load user stats", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "stats lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
