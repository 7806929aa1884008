package board

import (
	"context"
	"errors"

	"github.com/sujalbistaa/blurtbox/internal/api"
	"github.com/sujalbistaa/blurtbox/internal/models"
)

// Detail is the single-confession page.
type Detail struct {
	ID       string             `json:"id"`
	Item     *models.Confession `json:"item,omitempty"`
	Loading  bool               `json:"loading"`
	NotFound bool               `json:"notFound"`
	Error    string             `json:"error,omitempty"`
}

func (d *Detail) clone() Detail {
	out := *d
	if d.Item != nil {
		item := d.Item.Clone()
		out.Item = &item
	}
	return out
}

// OpenPost loads one confession for the detail page. Events that arrive
// while it is open update it like any other held copy.
func (s *Session) OpenPost(ctx context.Context, id string) (Detail, error) {
	s.mu.Lock()
	s.detail = &Detail{ID: id, Loading: true}
	s.mu.Unlock()

	item, err := s.fetcher.Get(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	d := &Detail{ID: id}
	switch {
	case errors.Is(err, api.ErrNotFound):
		d.NotFound = true
	case err != nil:
		s.log.ErrorContext(ctx, "loading confession failed", "item_id", id, "error", err)
		d.Error = "Failed to load confession."
	default:
		c := item.Clone()
		d.Item = &c
	}
	// a newer OpenPost or ClosePost wins
	if s.detail == nil || s.detail.ID != id || !s.detail.Loading {
		return d.clone(), err
	}
	s.detail = d
	return d.clone(), err
}

// Detail returns the open detail page, if any.
func (s *Session) Detail() (Detail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detail == nil {
		return Detail{}, false
	}
	return s.detail.clone(), true
}

func (s *Session) ClosePost() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detail = nil
}
