package model

import (
	"strings"
	"time"
)

// User mirrors the identity provider's account as last seen on login.
//
// We use GitHub OAuth as the identity provider, so the primary external
// identifier is the GitHub user ID (an integer). We still generate our own
// internal string ID (xid) so our primary keys are not tied to a third-party's
// numbering scheme.
//
// PublicMetadata is a JSON object stored verbatim ("{}" when absent).
type User struct {
	ID             string    `json:"id"             db:"id"`
	GitHubID       int64     `json:"githubId"       db:"github_id"`
	Login          string    `json:"login"          db:"login"`
	Name           string    `json:"name"           db:"name"`
	Email          string    `json:"email"          db:"email"`
	AvatarURL      string    `json:"avatarUrl"      db:"avatar_url"`
	PublicMetadata string    `json:"-"              db:"public_metadata"`
	CreatedAt      time.Time `json:"createdAt"      db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt"      db:"updated_at"`
}

// FirstName is the first word of the display name.
func (u *User) FirstName() string {
	first, _ := splitName(u.Name)
	return first
}

// LastName is everything after the first word of the display name.
func (u *User) LastName() string {
	_, last := splitName(u.Name)
	return last
}

func splitName(name string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

// Profile is the application's 1:1 record for an identity. It is created
// lazily the first time an authenticated user touches the app.
type Profile struct {
	ID        string    `json:"id"        db:"id"`
	UserID    string    `json:"userId"    db:"user_id"`
	Email     string    `json:"email"     db:"email"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Author returns the public name and avatar derived from the profile email.
func (p *Profile) Author() Author {
	return AuthorFromEmail(p.Email)
}
