package board

import (
	"sort"
	"time"

	"github.com/sujalbistaa/blurtbox/internal/clock"
)

// Kind of submission awaiting confirmation.
type Kind string

const (
	KindComment Kind = "comment"
	KindReply   Kind = "reply"
)

// Slot identifies one submit control. CommentIndex is only meaningful for
// replies.
type Slot struct {
	ItemID       string `json:"itemId"`
	Kind         Kind   `json:"kind"`
	CommentIndex int    `json:"commentIndex"`
}

func CommentSlot(itemID string) Slot {
	return Slot{ItemID: itemID, Kind: KindComment}
}

func ReplySlot(itemID string, commentIndex int) Slot {
	return Slot{ItemID: itemID, Kind: KindReply, CommentIndex: commentIndex}
}

// PendingAction is a submission sent but not yet confirmed or rejected.
type PendingAction struct {
	Slot
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submittedAt"`

	seq   uint64
	timer clock.Timer
}

// tracker holds at most one pending action per slot. It is guarded by the
// session lock.
type tracker struct {
	actions map[Slot]*PendingAction
	seq     uint64
}

func newTracker() *tracker {
	return &tracker{actions: make(map[Slot]*PendingAction)}
}

func (t *tracker) get(slot Slot) (*PendingAction, bool) {
	act, ok := t.actions[slot]
	return act, ok
}

func (t *tracker) register(slot Slot, text string, now time.Time) (*PendingAction, bool) {
	if _, busy := t.actions[slot]; busy {
		return nil, false
	}
	t.seq++
	act := &PendingAction{Slot: slot, Text: text, SubmittedAt: now, seq: t.seq}
	t.actions[slot] = act
	pendingActions.Set(float64(len(t.actions)))
	return act, true
}

func (t *tracker) resolve(slot Slot) (*PendingAction, bool) {
	act, ok := t.actions[slot]
	if !ok {
		return nil, false
	}
	delete(t.actions, slot)
	if act.timer != nil {
		act.timer.Stop()
	}
	pendingActions.Set(float64(len(t.actions)))
	return act, true
}

// oldest is the earliest outstanding submission.
func (t *tracker) oldest() (*PendingAction, bool) {
	var first *PendingAction
	for _, act := range t.actions {
		if first == nil || act.seq < first.seq {
			first = act
		}
	}
	return first, first != nil
}

func (t *tracker) list() []PendingAction {
	out := make([]PendingAction, 0, len(t.actions))
	for _, act := range t.actions {
		out = append(out, *act)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}
