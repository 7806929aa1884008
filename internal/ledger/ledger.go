// Package ledger persists the local user's own vote on each confession.
// It is the only source used to render vote controls as active.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sujalbistaa/blurtbox/internal/models"
)

// VotesKey is the single store key holding every vote state.
const VotesKey = "confessionVotes"

// Ledger reads and writes vote states through a Store. Every call does a
// full read-modify-write of the one key.
type Ledger struct {
	store Store
	mu    sync.Mutex
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Get returns the stored state for itemID. Missing, unreadable or
// invalid entries read as no vote.
func (l *Ledger) Get(ctx context.Context, itemID string) models.VoteState {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.load(ctx)[itemID]
	if !state.Valid() {
		return models.VoteState{}
	}
	return state
}

// All returns every stored state.
func (l *Ledger) All(ctx context.Context) map[string]models.VoteState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// Set overwrites the state for itemID.
func (l *Ledger) Set(ctx context.Context, itemID string, state models.VoteState) error {
	if !state.Valid() {
		return fmt.Errorf("vote state for %s has both directions set", itemID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	votes := l.load(ctx)
	if state.None() {
		delete(votes, itemID)
	} else {
		votes[itemID] = state
	}

	raw, err := json.Marshal(votes)
	if err != nil {
		return fmt.Errorf("encoding votes: %w", err)
	}
	if err := l.store.Put(ctx, VotesKey, string(raw)); err != nil {
		return fmt.Errorf("writing votes: %w", err)
	}
	return nil
}

// load never fails: a broken store reads as empty.
func (l *Ledger) load(ctx context.Context) map[string]models.VoteState {
	votes := make(map[string]models.VoteState)

	raw, ok, err := l.store.Get(ctx, VotesKey)
	if err != nil {
		slog.WarnContext(ctx, "reading vote ledger failed, treating as empty", "error", err)
		return votes
	}
	if !ok || raw == "" {
		return votes
	}
	if err := json.Unmarshal([]byte(raw), &votes); err != nil {
		slog.WarnContext(ctx, "vote ledger is corrupt, treating as empty", "error", err)
		return make(map[string]models.VoteState)
	}
	if votes == nil {
		// stored literal null
		votes = make(map[string]models.VoteState)
	}
	return votes
}
