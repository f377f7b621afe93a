package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/snippethub/internal/apperror"
	"github.com/sakif/snippethub/internal/executor"
	"github.com/sakif/snippethub/internal/model"
	"github.com/sakif/snippethub/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================
//
// Hand-written in-memory implementations of the repository interfaces. Each
// one has error fields a test can set to simulate a failing database.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- snippets ---

type fakeSnippetRepo struct {
	mu       sync.Mutex
	snippets []*model.SnippetWithAuthor // insertion order
	emails   map[string]string          // profileID → email
	nextID   int
	clock    time.Time

	findErr error
}

func newFakeSnippetRepo() *fakeSnippetRepo {
	return &fakeSnippetRepo{
		emails: make(map[string]string),
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// add stores a snippet directly, one minute after the previous one.
func (f *fakeSnippetRepo) add(title, profileID, language string, tags ...string) *model.SnippetWithAuthor {
	s := &model.Snippet{
		Slug:      NewSlug(title),
		Title:     title,
		Language:  language,
		Tags:      tags,
		Code:      "print(1)",
		ProfileID: profileID,
	}
	if err := f.CreateSnippet(context.Background(), s); err != nil {
		panic(err)
	}
	return f.snippets[len(f.snippets)-1]
}

func (f *fakeSnippetRepo) CreateSnippet(_ context.Context, s *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.snippets {
		if existing.Slug == s.Slug {
			return apperror.Conflict("snippet", s.Slug)
		}
	}
	f.nextID++
	f.clock = f.clock.Add(time.Minute)
	s.ID = fmt.Sprintf("snip-%d", f.nextID)
	s.CreatedAt = f.clock
	s.UpdatedAt = f.clock
	f.snippets = append(f.snippets, &model.SnippetWithAuthor{
		Snippet:     *s,
		AuthorEmail: f.emails[s.ProfileID],
	})
	return nil
}

func (f *fakeSnippetRepo) UpdateSnippet(_ context.Context, s *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.snippets {
		if existing.ID == s.ID {
			existing.Snippet = *s
			return nil
		}
	}
	return apperror.NotFound("snippet", s.ID)
}

func (f *fakeSnippetRepo) GetSnippetBySlug(_ context.Context, slug string) (*model.SnippetWithAuthor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.snippets {
		if s.Slug == slug {
			copied := *s
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("snippet", slug)
}

func (f *fakeSnippetRepo) FindSnippets(_ context.Context, filter repository.SnippetFilter) ([]model.SnippetWithAuthor, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	q := strings.ToLower(filter.Query)
	lang := strings.ToLower(filter.Language)
	out := []model.SnippetWithAuthor{}
	for _, s := range f.snippets {
		if q != "" && !strings.Contains(strings.ToLower(s.Title), q) &&
			!strings.Contains(strings.ToLower(s.Description), q) {
			continue
		}
		if lang != "" && !strings.Contains(strings.ToLower(s.Language), lang) {
			continue
		}
		if !hasAllTags(s.Tags, filter.Tags) {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (f *fakeSnippetRepo) newestFirst(match func(*model.SnippetWithAuthor) bool, limit int) []model.SnippetWithAuthor {
	out := []model.SnippetWithAuthor{}
	for i := len(f.snippets) - 1; i >= 0 && len(out) < limit; i-- {
		if match(f.snippets[i]) {
			out = append(out, *f.snippets[i])
		}
	}
	return out
}

func (f *fakeSnippetRepo) LatestSnippets(_ context.Context, opts repository.ListOptions) ([]model.SnippetWithAuthor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newestFirst(func(*model.SnippetWithAuthor) bool { return true }, opts.Limit), nil
}

func (f *fakeSnippetRepo) SnippetsByProfile(_ context.Context, profileID string, opts repository.ListOptions) ([]model.SnippetWithAuthor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newestFirst(func(s *model.SnippetWithAuthor) bool { return s.ProfileID == profileID }, opts.Limit), nil
}

func (f *fakeSnippetRepo) LanguageCounts(_ context.Context, profileID string) ([]model.LanguageCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	order := []string{}
	for _, s := range f.snippets {
		if s.ProfileID != profileID {
			continue
		}
		if counts[s.Language] == 0 {
			order = append(order, s.Language)
		}
		counts[s.Language]++
	}
	out := make([]model.LanguageCount, 0, len(order))
	for _, l := range order {
		out = append(out, model.LanguageCount{Language: l, Count: counts[l]})
	}
	return out, nil
}

// --- votes ---

type voteKey struct{ snippetID, profileID string }

type fakeVoteRepo struct {
	mu    sync.Mutex
	votes map[voteKey]model.VoteValue
	owner func(snippetID string) string

	getErr    error
	insertErr error
	countErr  error
	viewerErr error
	// countFailAfter makes CountVotes fail once it has been called this many
	// times. Zero disables it.
	countFailAfter int
	countCalls     int

	// beforeInsert runs before InsertVote stores anything, to stage races.
	beforeInsert func()

	inserts, updates, deletes int
}

func newFakeVoteRepo() *fakeVoteRepo {
	return &fakeVoteRepo{votes: make(map[voteKey]model.VoteValue)}
}

func (f *fakeVoteRepo) GetVote(_ context.Context, snippetID, profileID string) (*model.Vote, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.votes[voteKey{snippetID, profileID}]
	if !ok {
		return nil, apperror.NotFound("vote", snippetID)
	}
	return &model.Vote{SnippetID: snippetID, ProfileID: profileID, Value: v}, nil
}

func (f *fakeVoteRepo) InsertVote(_ context.Context, v *model.Vote) error {
	if f.beforeInsert != nil {
		hook := f.beforeInsert
		f.beforeInsert = nil
		hook()
	}
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := voteKey{v.SnippetID, v.ProfileID}
	if _, exists := f.votes[k]; exists {
		return apperror.Conflict("vote", v.SnippetID)
	}
	f.inserts++
	f.votes[k] = v.Value
	return nil
}

func (f *fakeVoteRepo) UpdateVote(_ context.Context, v *model.Vote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := voteKey{v.SnippetID, v.ProfileID}
	if _, exists := f.votes[k]; !exists {
		return apperror.NotFound("vote", v.SnippetID)
	}
	f.updates++
	f.votes[k] = v.Value
	return nil
}

func (f *fakeVoteRepo) DeleteVote(_ context.Context, snippetID, profileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := voteKey{snippetID, profileID}
	if _, exists := f.votes[k]; !exists {
		return apperror.NotFound("vote", snippetID)
	}
	f.deletes++
	delete(f.votes, k)
	return nil
}

func (f *fakeVoteRepo) CountVotes(_ context.Context, ids []string) (map[string]model.VoteCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	if f.countErr != nil {
		return nil, f.countErr
	}
	if f.countFailAfter > 0 && f.countCalls > f.countFailAfter {
		return nil, fmt.Errorf("aggregate unavailable")
	}
	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	out := map[string]model.VoteCount{}
	for k, v := range f.votes {
		if !wanted[k.snippetID] {
			continue
		}
		c := out[k.snippetID]
		if v == model.VoteUp {
			c.Upvotes++
		} else {
			c.Downvotes++
		}
		out[k.snippetID] = c
	}
	return out, nil
}

func (f *fakeVoteRepo) ViewerVotes(_ context.Context, profileID string, ids []string) (map[string]model.VoteValue, error) {
	if f.viewerErr != nil {
		return nil, f.viewerErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]model.VoteValue{}
	if profileID == "" {
		return out, nil
	}
	for _, id := range ids {
		if v, ok := f.votes[voteKey{id, profileID}]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (f *fakeVoteRepo) UpvotesReceived(_ context.Context, profileID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k, v := range f.votes {
		if v == model.VoteUp && f.owner != nil && f.owner(k.snippetID) == profileID {
			n++
		}
	}
	return n, nil
}

// setVotes seeds `up` upvotes and `down` downvotes from synthetic voters.
func (f *fakeVoteRepo) setVotes(snippetID string, up, down int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < up; i++ {
		f.votes[voteKey{snippetID, fmt.Sprintf("up-voter-%d", i)}] = model.VoteUp
	}
	for i := 0; i < down; i++ {
		f.votes[voteKey{snippetID, fmt.Sprintf("down-voter-%d", i)}] = model.VoteDown
	}
}

// --- comments ---

type fakeCommentRepo struct {
	comments []model.Comment
	emails   map[string]string
	nextID   int
	clock    time.Time
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{
		emails: map[string]string{},
		clock:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeCommentRepo) CreateComment(_ context.Context, c *model.Comment) error {
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	c.ID = fmt.Sprintf("comment-%d", f.nextID)
	c.CreatedAt = f.clock
	f.comments = append(f.comments, *c)
	return nil
}

func (f *fakeCommentRepo) GetComment(_ context.Context, id string) (*model.Comment, error) {
	for _, c := range f.comments {
		if c.ID == id {
			copied := c
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("comment", id)
}

func (f *fakeCommentRepo) ListComments(_ context.Context, snippetID string) ([]model.CommentWithAuthor, error) {
	out := []model.CommentWithAuthor{}
	for _, c := range f.comments {
		if c.SnippetID == snippetID {
			out = append(out, model.CommentWithAuthor{Comment: c, AuthorEmail: f.emails[c.ProfileID]})
		}
	}
	return out, nil
}

// --- users and profiles ---

type fakeUserRepo struct {
	users  map[string]*model.User
	byGHID map[int64]*model.User
	nextID int

	upsertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*model.User),
		byGHID: make(map[int64]*model.User),
	}
}

func (f *fakeUserRepo) Upsert(_ context.Context, user *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.byGHID[user.GitHubID]; ok {
		existing.Login = user.Login
		existing.Name = user.Name
		existing.Email = user.Email
		existing.AvatarURL = user.AvatarURL
		*user = *existing
		return nil
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.PublicMetadata = "{}"
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	f.byGHID[user.GitHubID] = &copied
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

type fakeProfileRepo struct {
	byUser map[string]*model.Profile
	nextID int
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{byUser: make(map[string]*model.Profile)}
}

func (f *fakeProfileRepo) EnsureProfile(_ context.Context, userID, email string) (*model.Profile, error) {
	if p, ok := f.byUser[userID]; ok {
		copied := *p
		return &copied, nil
	}
	f.nextID++
	p := &model.Profile{ID: fmt.Sprintf("profile-%d", f.nextID), UserID: userID, Email: email, CreatedAt: time.Now()}
	f.byUser[userID] = p
	copied := *p
	return &copied, nil
}

func (f *fakeProfileRepo) GetProfileByUserID(_ context.Context, userID string) (*model.Profile, error) {
	p, ok := f.byUser[userID]
	if !ok {
		return nil, apperror.NotFound("profile", userID)
	}
	copied := *p
	return &copied, nil
}

// --- executor ---

type fakeExecutor struct {
	langs []string
	got   executor.ExecutionRequest
	err   error
}

func (f *fakeExecutor) Execute(_ context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &executor.ExecutionResult{Stdout: "ran " + req.Language, Duration: time.Millisecond}, nil
}

func (f *fakeExecutor) Languages() []string {
	return f.langs
}
