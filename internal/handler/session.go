package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/sakif/snippethub/internal/apperror"
	"github.com/sakif/snippethub/internal/auth"
)

const (
	// SessionName is the cookie holding per-browser UI preferences.
	SessionName = "snippethub_session"

	themeKey     = "theme"
	ThemeLight   = "light"
	ThemeDark    = "dark"
	defaultTheme = ThemeLight
)

// SessionHandler exposes the UI state that lives for the whole browser
// session: the theme and who is signed in. The store is injected so that
// nothing here is process-global.
type SessionHandler struct {
	store  sessions.Store
	logger *slog.Logger
}

func NewSessionHandler(store sessions.Store, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// NewCookieStore builds the signed cookie store for session state.
func NewCookieStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 365,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

type sessionResponse struct {
	Theme     string `json:"theme"`
	SignedIn  bool   `json:"signedIn"`
	UserID    string `json:"userId,omitempty"`
	ProfileID string `json:"profileId,omitempty"`
}

// HandleGet reports the session state.
//
// HTTP: GET /api/session
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	// A tampered or stale cookie yields a fresh session plus an error; the
	// fresh session is still usable, so the error is only logged.
	session, err := h.store.Get(r, SessionName)
	if err != nil {
		h.logger.Debug("discarding unreadable session cookie", slog.String("error", err.Error()))
	}

	resp := sessionResponse{Theme: themeOf(session)}
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		resp.SignedIn = true
		resp.UserID = id.UserID
		resp.ProfileID = id.ProfileID
	}
	writeJSON(w, http.StatusOK, resp)
}

type themeRequest struct {
	Theme string `json:"theme"`
}

// HandleSetTheme stores the theme preference.
//
// HTTP: PUT /api/session/theme
// BODY: {"theme": "light" | "dark"}
func (h *SessionHandler) HandleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Theme != ThemeLight && req.Theme != ThemeDark {
		writeError(w, apperror.ValidationFailed("theme", `theme must be "light" or "dark"`))
		return
	}

	session, _ := h.store.Get(r, SessionName)
	session.Values[themeKey] = req.Theme
	if err := session.Save(r, w); err != nil {
		h.logger.Error("failed to save session", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"theme": req.Theme})
}

func themeOf(session *sessions.Session) string {
	if session == nil {
		return defaultTheme
	}
	if theme, ok := session.Values[themeKey].(string); ok && (theme == ThemeLight || theme == ThemeDark) {
		return theme
	}
	return defaultTheme
}
