package model

import (
	"fmt"
	"time"
)

// VoteValue is the stored value of a vote row. The zero value means
// "no row exists" and is never persisted.
type VoteValue int

const (
	VoteNone VoteValue = 0
	VoteUp   VoteValue = 1
	VoteDown VoteValue = -1
)

// Direction is the button a user clicked.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseDirection validates a direction coming off the wire.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionUp, DirectionDown:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("model: unknown vote direction %q", s)
	}
}

// Value is the vote value a click in this direction asks for.
func (d Direction) Value() VoteValue {
	if d == DirectionDown {
		return VoteDown
	}
	return VoteUp
}

// NextVote is the toggle rule. Clicking the direction you already hold
// clears the vote; anything else moves to that direction.
//
//	current   click  next
//	none      up     up
//	none      down   down
//	up        up     none
//	up        down   down
//	down      down   none
//	down      up     up
func NextVote(current VoteValue, dir Direction) VoteValue {
	want := dir.Value()
	if current == want {
		return VoteNone
	}
	return want
}

// Vote is a single (snippet, profile) row.
type Vote struct {
	SnippetID string    `json:"snippetId" db:"snippet_id"`
	ProfileID string    `json:"profileId" db:"profile_id"`
	Value     VoteValue `json:"value"     db:"value"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// VoteCount is the per-snippet aggregate.
type VoteCount struct {
	Upvotes   int `json:"upvotes"   db:"upvotes"`
	Downvotes int `json:"downvotes" db:"downvotes"`
}

// Score is the net score used by the most-votes ranking.
func (c VoteCount) Score() int {
	return c.Upvotes - c.Downvotes
}

// VoteSummary is a VoteCount plus the viewer's own state.
// Upvoted and Downvoted are never both true.
type VoteSummary struct {
	VoteCount
	Score     int  `json:"score"`
	Upvoted   bool `json:"upvoted"`
	Downvoted bool `json:"downvoted"`
}

// SummaryFor combines an aggregate with the viewer's own vote value.
func SummaryFor(count VoteCount, viewer VoteValue) VoteSummary {
	return VoteSummary{
		VoteCount: count,
		Score:     count.Score(),
		Upvoted:   viewer == VoteUp,
		Downvoted: viewer == VoteDown,
	}
}
