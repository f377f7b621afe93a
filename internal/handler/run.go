package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippethub/internal/service"
)

// RunHandler handles sandboxed code execution requests.
type RunHandler struct {
	runs   *service.RunService
	logger *slog.Logger
}

func NewRunHandler(runs *service.RunService, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		runs:   runs,
		logger: logger,
	}
}

// HandleRun executes a stored snippet.
//
// HTTP: POST /api/snippets/{slug}/run
func (h *RunHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.runs.Run(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type executeRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// HandleExecute runs unsaved code from the editor.
//
// HTTP: POST /api/execute  (RequireAuth)
// BODY: {"language": "python", "code": "print('hi')"}
func (h *RunHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	result, err := h.runs.Execute(r.Context(), req.Language, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleLanguages lists the languages the sandbox can run. Empty when
// execution is disabled.
//
// HTTP: GET /api/languages
func (h *RunHandler) HandleLanguages(w http.ResponseWriter, r *http.Request) {
	langs := h.runs.Languages()
	if langs == nil {
		langs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":   h.runs.Enabled(),
		"languages": langs,
	})
}
