package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippethub/internal/auth"
	"github.com/sakif/snippethub/internal/executor"
	"github.com/sakif/snippethub/internal/handler"
	"github.com/sakif/snippethub/internal/repository/sqlstore"
	"github.com/sakif/snippethub/internal/service"
)

// =========================================================================
// TEST ENVIRONMENT
// =========================================================================
//
// Handlers are exercised through a chi router over the real services and an
// in-memory SQLite store, so each test sees the same JSON a client would.

type fakeGitHub struct {
	user *auth.GitHubUser
	err  error
}

func (f *fakeGitHub) AuthURL(state string) string {
	return "https://github.example/authorize?state=" + state
}

func (f *fakeGitHub) Exchange(_ context.Context, code string) (*auth.GitHubUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type testEnv struct {
	router http.Handler
	auth   *service.AuthService
	github *fakeGitHub
}

func newTestEnv(t *testing.T, exec executor.Executor) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	authSvc := service.NewAuthService(db, db, tokens, logger)
	voteSvc := service.NewVoteService(db, db, logger)
	snippetSvc := service.NewSnippetService(db, voteSvc, logger)
	searchSvc := service.NewSearchService(db, voteSvc, 4, logger)
	commentSvc := service.NewCommentService(db, db, logger)
	runSvc := service.NewRunService(db, exec, logger)

	gh := &fakeGitHub{}
	authH := handler.NewAuthHandler(gh, authSvc, false, logger)
	snippetH := handler.NewSnippetHandler(snippetSvc, searchSvc, logger)
	voteH := handler.NewVoteHandler(voteSvc, logger)
	commentH := handler.NewCommentHandler(commentSvc, logger)
	runH := handler.NewRunHandler(runSvc, logger)
	sessionH := handler.NewSessionHandler(handler.NewCookieStore("session-secret-0123456789abcdef", false), logger)
	healthH := handler.NewHealthHandler(db, logger)

	r := chi.NewRouter()
	r.Get("/healthz", healthH.HandleHealth)
	r.Get("/auth/github/login", authH.HandleGitHubLogin)
	r.Get("/auth/github/callback", authH.HandleGitHubCallback)
	r.Post("/auth/logout", authH.HandleLogout)
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens), authH.WithProfile)
		r.Get("/getUser", authH.HandleGetUser)
		r.Get("/session", sessionH.HandleGet)
		r.Put("/session/theme", sessionH.HandleSetTheme)
		r.Get("/languages", runH.HandleLanguages)
		r.Get("/snippets", snippetH.HandleSearch)
		r.Get("/snippets/latest", snippetH.HandleLatest)
		r.Get("/snippets/{slug}", snippetH.HandleGet)
		r.Get("/snippets/{slug}/votes", voteH.HandleSummary)
		r.Post("/snippets/{slug}/vote", voteH.HandleToggle)
		r.Get("/snippets/{slug}/comments", commentH.HandleList)
		r.Post("/snippets/{slug}/run", runH.HandleRun)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authH.HandleMe)
			r.Get("/dashboard", snippetH.HandleDashboard)
			r.Post("/snippets", snippetH.HandleCreate)
			r.Put("/snippets/{slug}", snippetH.HandleUpdate)
			r.Post("/snippets/{slug}/comments", commentH.HandleCreate)
			r.Post("/execute", runH.HandleExecute)
		})
	})

	return &testEnv{router: r, auth: authSvc, github: gh}
}

// signIn registers a GitHub user and returns their session cookie.
func (e *testEnv) signIn(t *testing.T, githubID int64, login, email string) *http.Cookie {
	t.Helper()
	res, err := e.auth.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID: githubID, Login: login, Name: strings.ToUpper(login[:1]) + login[1:] + " Tester", Email: email,
	})
	require.NoError(t, err)
	return &http.Cookie{Name: auth.CookieName, Value: res.Token}
}

func (e *testEnv) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

type snippetJSON struct {
	ID       string   `json:"id"`
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Language string   `json:"language"`
	Tags     []string `json:"tags"`
	Author   struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatarUrl"`
	} `json:"author"`
	Votes        voteSummaryJSON `json:"votes"`
	CommentCount int             `json:"commentCount"`
}

type voteSummaryJSON struct {
	Upvotes   int  `json:"upvotes"`
	Downvotes int  `json:"downvotes"`
	Score     int  `json:"score"`
	Upvoted   bool `json:"upvoted"`
	Downvoted bool `json:"downvoted"`
}

type errorJSON struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

func (e *testEnv) createSnippet(t *testing.T, cookie *http.Cookie, title, lang string, tags ...string) snippetJSON {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"title":    title,
		"language": lang,
		"tags":     tags,
		"code":     "print('" + title + "')",
	})
	rec := e.do(t, http.MethodPost, "/api/snippets", string(body), cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[snippetJSON](t, rec)
}
