package board

import (
	"context"
	"fmt"

	"github.com/sujalbistaa/blurtbox/internal/events"
	"github.com/sujalbistaa/blurtbox/internal/models"
)

// Direction is the vote control the user clicked.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection accepts "up"/"upvote" and "down"/"downvote".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up", "upvote":
		return Up, nil
	case "down", "downvote":
		return Down, nil
	}
	return "", fmt.Errorf("unknown vote direction %q", s)
}

// Transition returns the next vote state for a click and the intents to
// emit, in order. Switching axis retracts the old vote before asserting
// the new one.
func Transition(cur models.VoteState, dir Direction) (models.VoteState, []string) {
	switch dir {
	case Up:
		if cur.Upvote {
			return models.VoteState{}, []string{events.IntentUndoUpvote}
		}
		var intents []string
		if cur.Downvote {
			intents = append(intents, events.IntentUndoDownvote)
		}
		return models.VoteState{Upvote: true}, append(intents, events.IntentUpvote)
	case Down:
		if cur.Downvote {
			return models.VoteState{}, []string{events.IntentUndoDownvote}
		}
		var intents []string
		if cur.Upvote {
			intents = append(intents, events.IntentUndoUpvote)
		}
		return models.VoteState{Downvote: true}, append(intents, events.IntentDownvote)
	}
	return cur, nil
}

// VoteResult describes what a click did.
type VoteResult struct {
	State   models.VoteState `json:"state"`
	Applied bool             `json:"applied"`
	Intents []string         `json:"intents,omitempty"`
}

// Vote applies a click on itemID. While the item's cooldown is armed the
// click is ignored: nothing is emitted and the state is unchanged.
// Displayed counters are left alone; they change only when the backend
// pushes the corrected confession. The armed cooldown keeps a second click
// on the same item out while the intents are on the wire.
func (s *Session) Vote(ctx context.Context, itemID string, dir Direction) (VoteResult, error) {
	s.mu.Lock()
	cur := s.ledger.Get(ctx, itemID)
	if !s.gate.TryAct(itemID) {
		s.mu.Unlock()
		votesThrottled.Inc()
		return VoteResult{State: cur}, nil
	}
	s.mu.Unlock()

	next, intents := Transition(cur, dir)
	for _, intent := range intents {
		if err := s.emitter.Emit(intent, events.IDPayload{ID: itemID}); err != nil {
			s.mu.Lock()
			s.toastLocked("Error", "Could not reach the server. Please try again.", SeverityError)
			s.mu.Unlock()
			return VoteResult{State: cur}, fmt.Errorf("emitting %s: %w", intent, err)
		}
		intentsEmitted.WithLabelValues(intent).Inc()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ledger.Set(ctx, itemID, next); err != nil {
		s.log.WarnContext(ctx, "persisting vote failed", "item_id", itemID, "error", err)
	}
	return VoteResult{State: next, Applied: true, Intents: intents}, nil
}

// VoteState is the local user's stored vote on itemID.
func (s *Session) VoteState(ctx context.Context, itemID string) models.VoteState {
	return s.ledger.Get(ctx, itemID)
}

// Votes returns every stored vote state.
func (s *Session) Votes(ctx context.Context) map[string]models.VoteState {
	return s.ledger.All(ctx)
}

// VoteDisabled reports whether itemID's vote controls are cooling down.
func (s *Session) VoteDisabled(itemID string) bool {
	return s.gate.Armed(itemID)
}
