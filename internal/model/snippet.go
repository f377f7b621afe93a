// Package model defines the data structures shared by every layer: users and
// their profiles, snippets, votes and comments. Types here carry no storage
// or transport logic beyond JSON tags and small pure helpers.
package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Snippet is a shared unit of code with its metadata.
//
// The `db:"..."` tags are read by sqlx when scanning rows into the struct;
// the `json:"..."` tags shape the API payloads. Tags live in their own join
// table, so the Tags field is loaded separately and skipped by sqlx.
type Snippet struct {
	ID          string    `json:"id"          db:"id"`
	Slug        string    `json:"slug"        db:"slug"`
	Title       string    `json:"title"       db:"title"`
	Description string    `json:"description" db:"description"`
	Language    string    `json:"language"    db:"language"`
	Tags        []string  `json:"tags"        db:"-"`
	Code        string    `json:"code"        db:"code"`
	ProfileID   string    `json:"profileId"   db:"profile_id"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"   db:"updated_at"`
}

// SnippetWithAuthor is a snippet joined with the owning profile's email.
// This is the shape returned by the store's "snippets + author" join.
type SnippetWithAuthor struct {
	Snippet
	AuthorEmail  string `json:"-" db:"author_email"`
	CommentCount int    `json:"commentCount" db:"comment_count"`
}

// Author is the public face of a profile, derived from its email.
type Author struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

// avatarBase renders an initials avatar seeded by an arbitrary string.
const avatarBase = "https://api.dicebear.com/7.x/initials/svg"

// AuthorFromEmail derives the display name (the email's local part) and an
// initials avatar URL seeded by the full email.
func AuthorFromEmail(email string) Author {
	name := email
	if i := strings.IndexByte(email, '@'); i >= 0 {
		name = email[:i]
	}
	return Author{
		Name:      name,
		AvatarURL: fmt.Sprintf("%s?seed=%s", avatarBase, url.QueryEscape(email)),
	}
}

// NormalizeTags trims every tag, drops empties and duplicates, and keeps the
// first-seen order. Tag matching is exact after trimming.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// LanguageCount is one row of the dashboard's per-language breakdown.
type LanguageCount struct {
	Language string `json:"language" db:"language"`
	Count    int    `json:"count"    db:"count"`
}
