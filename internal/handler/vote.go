package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippethub/internal/apperror"
	"github.com/sakif/snippethub/internal/model"
	"github.com/sakif/snippethub/internal/service"
)

type VoteHandler struct {
	votes  *service.VoteService
	logger *slog.Logger
}

func NewVoteHandler(votes *service.VoteService, logger *slog.Logger) *VoteHandler {
	return &VoteHandler{votes: votes, logger: logger}
}

// HandleSummary returns the vote aggregate for one snippet.
//
// HTTP: GET /api/snippets/{slug}/votes
func (h *VoteHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.votes.Summary(r.Context(), chi.URLParam(r, "slug"), viewerProfile(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type voteRequest struct {
	Direction string `json:"direction"`
}

// HandleToggle applies one click of the up or down button.
//
// HTTP: POST /api/snippets/{slug}/vote
// BODY: {"direction": "up" | "down"}
//
// Anonymous callers get 401 with the sign-in prompt as the message. The
// route is not behind RequireAuth so that message reaches the client.
// A null "summary" in the response means the vote was stored but the
// counts could not be refreshed.
func (h *VoteHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	dir, err := model.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, apperror.ValidationFailed("direction", `direction must be "up" or "down"`))
		return
	}

	result, err := h.votes.Toggle(r.Context(), chi.URLParam(r, "slug"), viewerProfile(r), dir)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
