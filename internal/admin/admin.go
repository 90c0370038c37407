// Package admin exposes the scanning control plane's minimal review
// surface: the one externally-facing HTTP endpoint a human reviewer (or
// an upstream product's admin UI) calls to confirm or dismiss a match.
// Grounded on the teacher's internal/api handler shape (a struct wrapping
// its collaborators, one method per route, http.Error/json.NewEncoder for
// responses) but routed on the standard library's http.ServeMux rather
// than the teacher's own router type, since this service has exactly one
// route group and no auth middleware stack to share it with.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/divavault/scanner-core/internal/models"
	"github.com/divavault/scanner-core/internal/observer"
)

// MatchStore is the subset of storage.MatchStore the review handler needs.
type MatchStore interface {
	Get(id string) (*models.Match, error)
	UpdateReviewStatus(id string, status models.ReviewStatus) error
}

// Handler serves the admin review endpoints.
type Handler struct {
	Matches  MatchStore
	Observer *observer.Observer
}

// NewHandler builds an admin Handler.
func NewHandler(matches MatchStore, obs *observer.Observer) *Handler {
	return &Handler{Matches: matches, Observer: obs}
}

// Mount registers the handler's routes on mux.
func (h *Handler) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /matches/{id}/review", h.HandleReview)
}

type reviewRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

// signalForStatus maps a review status to the feedback signal it emits,
// per spec §6: confirmed -> match_confirmed, rejected/dismissed ->
// match_dismissed. Unknown statuses return "", handled by the caller.
func signalForStatus(status models.ReviewStatus) string {
	switch status {
	case models.ReviewConfirmed:
		return models.SignalMatchConfirmed
	case models.ReviewRejected, models.ReviewDismissed:
		return models.SignalMatchDismissed
	default:
		return ""
	}
}

// HandleReview handles POST /matches/{id}/review. It transitions the
// match's review status and emits the corresponding feedback signal,
// flushing immediately so the signal is durable before the response
// returns (spec §4.H's immediate-flush surface).
func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	status := models.ReviewStatus(req.Status)
	switch status {
	case models.ReviewConfirmed, models.ReviewRejected, models.ReviewDismissed:
	default:
		log.Warn().Str("component", "admin").Str("status", req.Status).Msg("unknown review status")
		http.Error(w, "unknown review status", http.StatusBadRequest)
		return
	}

	match, err := h.Matches.Get(matchID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if match == nil {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}

	if err := h.Matches.UpdateReviewStatus(matchID, status); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if signal := signalForStatus(status); signal != "" && h.Observer != nil {
		actor := req.Actor
		if actor == "" {
			actor = "admin"
		}
		h.Observer.Emit(signal, "match", matchID, map[string]any{
			"review_status": string(status),
		}, actor)
		h.Observer.Flush()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"id": matchID, "review_status": string(status)})
}
