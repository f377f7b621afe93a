// Package handler contains the HTTP request handlers of the snippet API.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (path and query params, body, identity)
// 2. Call the service layer
// 3. Write the HTTP response (status code, headers, JSON body)
//
// Handlers hold no business rules; they are the glue between HTTP and the
// services.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippethub/internal/search"
	"github.com/sakif/snippethub/internal/service"
)

// SnippetHandler serves snippet authoring, reading, search and the dashboard.
type SnippetHandler struct {
	snippets *service.SnippetService
	search   *service.SearchService
	logger   *slog.Logger
}

func NewSnippetHandler(snippets *service.SnippetService, searchService *service.SearchService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{
		snippets: snippets,
		search:   searchService,
		logger:   logger,
	}
}

// HandleSearch returns one ranked page of snippets.
//
// HTTP: GET /api/snippets?q=&lang=&sort=newest|votes&tags=a,b&page=N
//
// The query string is the whole search state; malformed values fall back
// to their defaults instead of failing the request.
func (h *SnippetHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	state := search.Parse(r.URL.Query())

	result, err := h.search.Search(r.Context(), state, viewerProfile(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleLatest returns the newest snippets across all authors.
//
// HTTP: GET /api/snippets/latest?limit=N
func (h *SnippetHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	views, err := h.snippets.Latest(r.Context(), limit, viewerProfile(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, views)
}

// HandleCreate stores a new snippet owned by the caller.
//
// HTTP: POST /api/snippets  (RequireAuth)
// BODY: {"title","description","language","tags":[...],"code"}
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.SnippetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.Create(r.Context(), viewerProfile(r), in)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", "/api/snippets/"+snippet.Slug)
	writeJSON(w, http.StatusCreated, snippet)
}

// HandleGet returns one snippet with its votes as seen by the caller.
//
// HTTP: GET /api/snippets/{slug}
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.snippets.Get(r.Context(), chi.URLParam(r, "slug"), viewerProfile(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// HandleUpdate rewrites a snippet the caller owns.
//
// HTTP: PUT /api/snippets/{slug}  (RequireAuth)
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.SnippetInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.Update(r.Context(), viewerProfile(r), chi.URLParam(r, "slug"), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snippet)
}

// HandleDashboard summarises the caller's own snippets.
//
// HTTP: GET /api/dashboard  (RequireAuth)
func (h *SnippetHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.snippets.Dashboard(r.Context(), viewerProfile(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dashboard)
}
