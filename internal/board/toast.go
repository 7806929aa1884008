package board

import (
	"time"

	"github.com/sujalbistaa/blurtbox/internal/ids"
)

const DefaultToastDuration = 3 * time.Second

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Toast is a transient notification.
type Toast struct {
	ID        int64     `json:"id,string"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// toastLocked queues a toast and schedules its removal. Caller holds s.mu.
func (s *Session) toastLocked(title, message string, severity Severity) Toast {
	t := Toast{
		ID:        ids.New(),
		Title:     title,
		Message:   message,
		Severity:  severity,
		ExpiresAt: s.clock.Now().Add(s.opts.ToastDuration),
	}
	s.toasts = append(s.toasts, t)
	s.toastTimers[t.ID] = s.clock.AfterFunc(s.opts.ToastDuration, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.removeToastLocked(t.ID)
	})
	toastsShown.WithLabelValues(string(severity)).Inc()
	return t
}

func (s *Session) removeToastLocked(id int64) bool {
	if timer, ok := s.toastTimers[id]; ok {
		timer.Stop()
		delete(s.toastTimers, id)
	}
	for i, t := range s.toasts {
		if t.ID == id {
			s.toasts = append(s.toasts[:i], s.toasts[i+1:]...)
			return true
		}
	}
	return false
}

// Toasts returns the notifications currently on screen, oldest first.
func (s *Session) Toasts() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	out := make([]Toast, 0, len(s.toasts))
	for _, t := range s.toasts {
		if now.Before(t.ExpiresAt) {
			out = append(out, t)
		}
	}
	return out
}

// Dismiss removes a toast before it expires.
func (s *Session) Dismiss(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeToastLocked(id)
}
