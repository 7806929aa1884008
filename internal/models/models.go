package models

import (
	"time"
)

// Length limits enforced before any intent leaves the client.
const (
	MaxConfessionLength = 500
	MaxCommentLength    = 200
	MaxReplyLength      = 150
)

// Confession is the client's cached copy of a single anonymous post.
// The backend owns every field; counters are displayed, never computed.
type Confession struct {
	ID        string    `json:"_id"`
	Text      string    `json:"text"`
	Category  string    `json:"category,omitempty"`
	Upvotes   int       `json:"upvotes"`
	Downvotes int       `json:"downvotes"`
	Reports   int       `json:"reports"`
	CreatedAt time.Time `json:"createdAt"`
	Comments  []Comment `json:"comments"`
}

// Comment on a confession. Appended only by reconciled events.
type Comment struct {
	ID        string    `json:"_id,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Replies   []Reply   `json:"replies,omitempty"`
}

// Reply belongs to exactly one Comment, addressed by its position.
type Reply struct {
	ID        string    `json:"_id,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// VoteState is the local user's own vote on one confession.
// At most one of the two flags is set.
type VoteState struct {
	Upvote   bool `json:"upvote"`
	Downvote bool `json:"downvote"`
}

// None reports whether the user has no vote on the item.
func (v VoteState) None() bool { return !v.Upvote && !v.Downvote }

// Valid reports whether the state respects mutual exclusion.
func (v VoteState) Valid() bool { return !(v.Upvote && v.Downvote) }

// Setting is one row of the durable local key/value store.
type Setting struct {
	Key       string    `gorm:"primarykey;size:128" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share comment slices with
// the session's collections.
func (c Confession) Clone() Confession {
	out := c
	if c.Comments != nil {
		out.Comments = make([]Comment, len(c.Comments))
		for i, cm := range c.Comments {
			out.Comments[i] = cm
			if cm.Replies != nil {
				out.Comments[i].Replies = append([]Reply(nil), cm.Replies...)
			}
		}
	}
	return out
}

// Normalize clamps server counters that arrive negative.
func (c *Confession) Normalize() {
	if c.Upvotes < 0 {
		c.Upvotes = 0
	}
	if c.Downvotes < 0 {
		c.Downvotes = 0
	}
	if c.Reports < 0 {
		c.Reports = 0
	}
}
