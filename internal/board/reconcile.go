package board

import (
	"slices"

	"github.com/sujalbistaa/blurtbox/internal/events"
	"github.com/sujalbistaa/blurtbox/internal/models"
)

// Apply folds one push event into the session. Every handler is
// idempotent with respect to duplicate delivery.
func (s *Session) Apply(ev events.Event) {
	eventsApplied.WithLabelValues(ev.Name()).Inc()
	if _, ok := ev.(events.Connected); ok {
		s.requestSnapshot()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case events.ConfessionList:
		s.items = cloneAll(e.Items)
		s.categories = mergeCategories(s.categories, e.Items)
	case events.NewConfession:
		s.addConfessionLocked(e.Item)
	case events.UpdateConfession:
		s.updateConfessionLocked(e.Item)
	case events.DeleteConfession:
		s.deleteConfessionLocked(e.ID)
	case events.NewComment:
		s.addCommentLocked(e)
	case events.NewReply:
		s.addReplyLocked(e)
	case events.ErrorMessage:
		s.errorMessageLocked(e.Message)
	case events.Disconnected:
		s.toastLocked("Connection Lost", "Live updates stopped. Reload the board to reconnect.", SeverityError)
	}
}

// requestSnapshot asks for the main list after every (re)connect.
func (s *Session) requestSnapshot() {
	if err := s.emitter.Emit(events.IntentGetConfessions, nil); err != nil {
		s.log.Warn("requesting confession list failed", "error", err)
		return
	}
	intentsEmitted.WithLabelValues(events.IntentGetConfessions).Inc()
}

func (s *Session) addConfessionLocked(item models.Confession) {
	if slices.ContainsFunc(s.items, func(c models.Confession) bool { return c.ID == item.ID }) {
		return
	}
	s.items = slices.Insert(s.items, 0, item.Clone())
	s.categories = mergeCategories(s.categories, []models.Confession{item})
	s.toastLocked("New Confession", "Someone just shared a new confession!", SeverityInfo)
}

// updateConfessionLocked replaces every held copy of item. An update that
// carries no comments keeps the comments already held.
func (s *Session) updateConfessionLocked(item models.Confession) {
	replace := func(c *models.Confession) {
		comments := c.Comments
		*c = item.Clone()
		if item.Comments == nil {
			c.Comments = comments
		}
	}
	touchedTop := false
	for i := range s.items {
		if s.items[i].ID == item.ID {
			replace(&s.items[i])
		}
	}
	for i := range s.top {
		if s.top[i].ID == item.ID {
			replace(&s.top[i])
			touchedTop = true
		}
	}
	if touchedTop {
		sortByUpvotes(s.top)
	}
	if s.detail != nil && s.detail.Item != nil && s.detail.Item.ID == item.ID {
		replace(s.detail.Item)
	}
	s.categories = mergeCategories(s.categories, []models.Confession{item})
	s.fetcher.Invalidate(item.ID)
}

func (s *Session) deleteConfessionLocked(id string) {
	match := func(c models.Confession) bool { return c.ID == id }
	before := len(s.items) + len(s.top)
	s.items = slices.DeleteFunc(s.items, match)
	s.top = slices.DeleteFunc(s.top, match)
	removed := before != len(s.items)+len(s.top)

	if s.detail != nil && s.detail.ID == id && !s.detail.NotFound {
		s.detail.Item = nil
		s.detail.NotFound = true
		removed = true
	}
	s.fetcher.Invalidate(id)
	if removed {
		s.toastLocked("Confession Removed", "A confession has been removed from the board.", SeverityError)
	}
}

// eachCopyLocked calls fn on every held copy of the confession id and
// reports whether there was one.
func (s *Session) eachCopyLocked(id string, fn func(*models.Confession)) bool {
	found := false
	for i := range s.items {
		if s.items[i].ID == id {
			fn(&s.items[i])
			found = true
		}
	}
	for i := range s.top {
		if s.top[i].ID == id {
			fn(&s.top[i])
			found = true
		}
	}
	if s.detail != nil && s.detail.Item != nil && s.detail.Item.ID == id {
		fn(s.detail.Item)
		found = true
	}
	return found
}

func (s *Session) addCommentLocked(e events.NewComment) {
	found := s.eachCopyLocked(e.ConfessionID, func(c *models.Confession) {
		if !slices.ContainsFunc(c.Comments, func(have models.Comment) bool { return sameComment(have, e.Comment) }) {
			cm := e.Comment
			cm.Replies = slices.Clone(e.Comment.Replies)
			c.Comments = append(c.Comments, cm)
		}
	})
	if !found {
		s.log.Debug("comment for unknown confession", "item_id", e.ConfessionID)
	}
	s.confirmLocked(CommentSlot(e.ConfessionID))
	s.fetcher.Invalidate(e.ConfessionID)
}

func (s *Session) addReplyLocked(e events.NewReply) {
	s.eachCopyLocked(e.ConfessionID, func(c *models.Confession) {
		if e.CommentIndex < 0 || e.CommentIndex >= len(c.Comments) {
			s.log.Debug("reply for unknown comment", "item_id", e.ConfessionID, "comment_index", e.CommentIndex)
			return
		}
		cm := &c.Comments[e.CommentIndex]
		if !slices.ContainsFunc(cm.Replies, func(have models.Reply) bool { return sameReply(have, e.Reply) }) {
			cm.Replies = append(cm.Replies, e.Reply)
		}
	})
	s.confirmLocked(ReplySlot(e.ConfessionID, e.CommentIndex))
	s.fetcher.Invalidate(e.ConfessionID)
}

// errorMessageLocked hands a backend error to the oldest pending
// submission, or shows it as a toast when nothing is pending.
func (s *Session) errorMessageLocked(message string) {
	if act, ok := s.pending.oldest(); ok {
		s.failLocked(act, message)
		title := "Comment Error"
		if act.Kind == KindReply {
			title = "Reply Error"
		}
		s.toastLocked(title, message, SeverityError)
		return
	}
	s.toastLocked("Error", message, SeverityError)
}

// Identifiers decide when both sides carry one; otherwise text and
// timestamp must match.
func sameComment(a, b models.Comment) bool {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	return a.Text == b.Text && a.CreatedAt.Equal(b.CreatedAt)
}

func sameReply(a, b models.Reply) bool {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	return a.Text == b.Text && a.CreatedAt.Equal(b.CreatedAt)
}
