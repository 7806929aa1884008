package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sujalbistaa/blurtbox/internal/events"
	"github.com/sujalbistaa/blurtbox/internal/models"
)

var (
	ErrEmptyText   = errors.New("text is empty")
	ErrTextTooLong = errors.New("text is too long")
	ErrPending     = errors.New("a submission is already pending")
)

const (
	msgTimeout        = "No response from server. Please try again."
	msgCommentFailed  = "Failed to submit comment. Please try again."
	msgReplyFailed    = "Failed to submit reply. Please try again."
	msgPostFailed     = "Failed to post confession. Please try again."
	prohibitedContent = "hate speech"
	mirrorTimeout     = 10 * time.Second
)

// Draft is the state of one comment or reply input.
type Draft struct {
	Text       string `json:"text"`
	Error      string `json:"error,omitempty"`
	Submitting bool   `json:"submitting"`
}

// Draft returns the input state for slot.
func (s *Session) Draft(slot Slot) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.drafts[slot]; ok {
		return *d
	}
	return Draft{}
}

// SetDraft records typed text and clears any shown error. The input is
// locked while a submission from it is pending.
func (s *Session) SetDraft(slot Slot, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending.get(slot); busy {
		return ErrPending
	}
	d := s.draftLocked(slot)
	d.Text = text
	d.Error = ""
	return nil
}

func (s *Session) draftLocked(slot Slot) *Draft {
	d, ok := s.drafts[slot]
	if !ok {
		d = &Draft{}
		s.drafts[slot] = d
	}
	return d
}

func validate(text string, limit int, what string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return what + " can't be empty", ErrEmptyText
	}
	if utf8.RuneCountInString(text) > limit {
		return fmt.Sprintf("%s is too long (max %d characters)", what, limit), ErrTextTooLong
	}
	return "", nil
}

// SubmitComment sends a comment on itemID. The input stays locked until
// the comment comes back as a newComment event, an error event claims it,
// or the pending timeout passes.
func (s *Session) SubmitComment(ctx context.Context, itemID, text string) error {
	slot := CommentSlot(itemID)

	s.mu.Lock()
	if msg, err := validate(text, models.MaxCommentLength, "Comment"); err != nil {
		if _, busy := s.pending.get(slot); !busy {
			s.draftLocked(slot).Error = msg
		}
		s.mu.Unlock()
		return err
	}
	act, ok := s.beginLocked(slot, text)
	s.mu.Unlock()
	if !ok {
		return ErrPending
	}

	err := s.emitter.Emit(events.IntentAddComment, events.CommentPayload{ID: itemID, Text: text})
	if err != nil {
		s.mu.Lock()
		s.failLocked(act, msgCommentFailed)
		s.mu.Unlock()
		s.log.WarnContext(ctx, "emitting comment failed", "item_id", itemID, "error", err)
		return fmt.Errorf("emitting %s: %w", events.IntentAddComment, err)
	}
	intentsEmitted.WithLabelValues(events.IntentAddComment).Inc()

	if s.opts.MirrorComments {
		s.mirrorComment(ctx, itemID, text)
	}
	return nil
}

// mirrorComment repeats the comment over REST in the background.
// Failures only reach the log; the real-time path decides the outcome.
func (s *Session) mirrorComment(ctx context.Context, itemID, text string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := s.fetcher.PostComment(ctx, itemID, text); err != nil {
			mirrorFailures.Inc()
			s.log.WarnContext(ctx, "mirroring comment over REST failed", "item_id", itemID, "error", err)
		}
	}()
}

// SubmitReply sends a reply to the comment at commentIndex on itemID and
// waits for the backend's acknowledgement or a newReply event.
func (s *Session) SubmitReply(ctx context.Context, itemID string, commentIndex int, text string) error {
	if commentIndex < 0 {
		return fmt.Errorf("comment index %d out of range", commentIndex)
	}
	slot := ReplySlot(itemID, commentIndex)

	s.mu.Lock()
	if msg, err := validate(text, models.MaxReplyLength, "Reply"); err != nil {
		if _, busy := s.pending.get(slot); !busy {
			s.draftLocked(slot).Error = msg
		}
		s.mu.Unlock()
		return err
	}
	act, ok := s.beginLocked(slot, text)
	s.mu.Unlock()
	if !ok {
		return ErrPending
	}

	payload := events.ReplyPayload{ConfessionID: itemID, CommentIndex: commentIndex, Text: text}
	err := s.emitter.EmitWithAck(events.IntentAddReply, payload, func(ack events.Ack) {
		if ack.OK() {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failLocked(act, ack.Error) {
			s.toastLocked("Reply Error", ack.Error, SeverityError)
		}
	})
	if err != nil {
		s.mu.Lock()
		s.failLocked(act, msgReplyFailed)
		s.mu.Unlock()
		s.log.WarnContext(ctx, "emitting reply failed", "item_id", itemID, "error", err)
		return fmt.Errorf("emitting %s: %w", events.IntentAddReply, err)
	}
	intentsEmitted.WithLabelValues(events.IntentAddReply).Inc()
	return nil
}

// beginLocked registers a pending action for slot and locks its draft.
func (s *Session) beginLocked(slot Slot, text string) (*PendingAction, bool) {
	act, ok := s.pending.register(slot, text, s.clock.Now())
	if !ok {
		return nil, false
	}
	if s.opts.PendingTimeout > 0 {
		act.timer = s.clock.AfterFunc(s.opts.PendingTimeout, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.failLocked(act, msgTimeout) {
				pendingTimeouts.Inc()
			}
		})
	}
	d := s.draftLocked(slot)
	d.Text = text
	d.Error = ""
	d.Submitting = true
	return act, true
}

// failLocked rejects act if it is still the slot's pending action. The
// typed text is kept unless the backend refused it as prohibited content.
func (s *Session) failLocked(act *PendingAction, message string) bool {
	if cur, ok := s.pending.get(act.Slot); !ok || cur != act {
		return false
	}
	s.pending.resolve(act.Slot)
	d := s.draftLocked(act.Slot)
	d.Submitting = false
	d.Error = message
	if strings.Contains(strings.ToLower(message), prohibitedContent) {
		d.Text = ""
	}
	return true
}

// confirmLocked settles slot's pending action after its echo arrived.
func (s *Session) confirmLocked(slot Slot) {
	if _, ok := s.pending.resolve(slot); !ok {
		return
	}
	d := s.draftLocked(slot)
	d.Text = ""
	d.Error = ""
	d.Submitting = false
}

// PostConfession submits a new confession. The form closes once the
// backend acknowledges it; a rejection keeps the form and shows why.
func (s *Session) PostConfession(ctx context.Context, text, category string) error {
	s.mu.Lock()
	if strings.TrimSpace(text) == "" {
		s.composeError = "Your confession can't be empty"
		s.mu.Unlock()
		return ErrEmptyText
	}
	if utf8.RuneCountInString(text) > models.MaxConfessionLength {
		s.composeError = fmt.Sprintf("Your confession is too long (max %d characters)", models.MaxConfessionLength)
		s.mu.Unlock()
		return ErrTextTooLong
	}
	s.composeError = ""
	s.mu.Unlock()

	payload := events.ConfessionPayload{Text: text, Category: category}
	err := s.emitter.EmitWithAck(events.IntentNewConfession, payload, func(ack events.Ack) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !ack.OK() {
			s.composeError = ack.Error
			s.toastLocked("Error", ack.Error, SeverityError)
			return
		}
		s.composeOpen = false
		s.composeError = ""
		s.toastLocked("Success!", "Your confession has been posted anonymously.", SeveritySuccess)
	})
	if err != nil {
		s.mu.Lock()
		s.composeError = msgPostFailed
		s.toastLocked("Error", msgPostFailed, SeverityError)
		s.mu.Unlock()
		s.log.WarnContext(ctx, "emitting confession failed", "error", err)
		return fmt.Errorf("emitting %s: %w", events.IntentNewConfession, err)
	}
	intentsEmitted.WithLabelValues(events.IntentNewConfession).Inc()
	return nil
}

// Report flags itemID for moderation.
func (s *Session) Report(ctx context.Context, itemID string) error {
	err := s.emitter.Emit(events.IntentReport, events.IDPayload{ID: itemID})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.toastLocked("Error", "Could not report confession. Please try again.", SeverityError)
		s.log.WarnContext(ctx, "emitting report failed", "item_id", itemID, "error", err)
		return fmt.Errorf("emitting %s: %w", events.IntentReport, err)
	}
	intentsEmitted.WithLabelValues(events.IntentReport).Inc()
	s.toastLocked("Confession Reported", "Thank you for keeping our community safe.", SeverityInfo)
	return nil
}
