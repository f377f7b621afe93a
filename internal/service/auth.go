// Authentication business logic.
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                                                  ↘ ProfileRepository (DB)
//	                                                  ↘ TokenService (JWT)
//
// KEY RESPONSIBILITIES:
//   - Orchestrate the GitHub OAuth callback: upsert the user, make sure the
//     profile exists, issue the session token
//   - Resolve the profile of a signed-in user on demand
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/snippethub/internal/apperror"
	"github.com/sakif/snippethub/internal/auth"
	"github.com/sakif/snippethub/internal/model"
	"github.com/sakif/snippethub/internal/repository"
)

// AuthService handles the authentication business logic.
type AuthService struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	tokens   *auth.TokenService
	logger   *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		profiles: profiles,
		tokens:   tokens,
		logger:   logger,
	}
}

// AuthResult bundles the user, their profile and the issued JWT so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User    *model.User
	Profile *model.Profile
	Token   string
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback.
//
//  1. Upsert the user on github_id (first login inserts, later logins
//     refresh login/name/email/avatar)
//  2. Ensure the profile row exists; it is created lazily on first sign-in
//  3. Sign a JWT carrying both IDs
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Name:      ghUser.Name,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}

	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	profile, err := s.profiles.EnsureProfile(ctx, user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: ensuring profile for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("profileID", profile.ID),
		slog.String("login", user.Login),
	)

	token, err := s.tokens.Generate(auth.Identity{UserID: user.ID, ProfileID: profile.ID})
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{
		User:    user,
		Profile: profile,
		Token:   token,
	}, nil
}

// GetUserByID returns the user for the given internal ID. A blank ID is a
// validation error; an unknown one is apperror.ErrNotFound.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("userId", "User ID is required")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// EnsureProfile returns the profile of a signed-in user, creating it when a
// session predates the profile (tokens minted before it existed carry no
// profile ID).
func (s *AuthService) EnsureProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated("Please sign in")
	}

	profile, err := s.profiles.GetProfileByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: loading profile for %s: %w", userID, err)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading user %s: %w", userID, err)
	}

	profile, err = s.profiles.EnsureProfile(ctx, user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: creating profile for %s: %w", userID, err)
	}
	s.logger.Info("profile created on demand", slog.String("userID", userID), slog.String("profileID", profile.ID))
	return profile, nil
}

// ValidateToken returns the identity a session token speaks for.
func (s *AuthService) ValidateToken(tokenStr string) (auth.Identity, error) {
	id, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("service/auth: %w", err)
	}
	return id, nil
}

// TokenTTL is the lifetime of issued session tokens; handlers use it for the
// cookie Max-Age.
func (s *AuthService) TokenTTL() int {
	return int(s.tokens.TTL().Seconds())
}
