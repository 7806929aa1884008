// Package board reconciles a user's optimistic actions with the events the
// backend pushes. A Session owns the confession collections, the vote
// cooldowns, pending submissions, drafts and toasts, and serialises every
// mutation behind one lock.
package board

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sujalbistaa/blurtbox/internal/clock"
	"github.com/sujalbistaa/blurtbox/internal/cooldown"
	"github.com/sujalbistaa/blurtbox/internal/events"
	"github.com/sujalbistaa/blurtbox/internal/ledger"
	"github.com/sujalbistaa/blurtbox/internal/models"
)

const DefaultPendingTimeout = 15 * time.Second

// Emitter sends intents on the real-time channel.
type Emitter interface {
	Emit(event string, payload any) error
	// EmitWithAck may invoke fn before returning.
	EmitWithAck(event string, payload any, fn func(events.Ack)) error
}

// Source delivers push events.
type Source interface {
	Subscribe(fn events.Handler) events.Subscription
}

// Starter is a Source that holds back delivery until its subscribers are
// in place.
type Starter interface {
	Start()
}

// Fetcher is the REST side of the backend.
type Fetcher interface {
	List(ctx context.Context) ([]models.Confession, error)
	TopUpvoted(ctx context.Context) ([]models.Confession, error)
	Get(ctx context.Context, id string) (*models.Confession, error)
	PostComment(ctx context.Context, id, text string) error
	Invalidate(id string)
}

type Options struct {
	PageSize       int
	Cooldown       time.Duration
	ToastDuration  time.Duration
	PendingTimeout time.Duration // negative disables the timeout
	MirrorComments bool
	Categories     []string
	Clock          clock.Clock
}

func (o *Options) withDefaults() {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Cooldown <= 0 {
		o.Cooldown = cooldown.DefaultWindow
	}
	if o.ToastDuration <= 0 {
		o.ToastDuration = DefaultToastDuration
	}
	if o.PendingTimeout == 0 {
		o.PendingTimeout = DefaultPendingTimeout
	}
	if len(o.Categories) == 0 {
		o.Categories = DefaultCategories
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
}

type Session struct {
	emitter Emitter
	fetcher Fetcher
	ledger  *ledger.Ledger
	gate    *cooldown.Gate
	clock   clock.Clock
	opts    Options
	log     *slog.Logger

	mu           sync.Mutex
	items        []models.Confession
	top          []models.Confession
	detail       *Detail
	categories   []string
	filter       FilterState
	page         int
	tab          Tab
	composeOpen  bool
	composeError string
	pending      *tracker
	drafts       map[Slot]*Draft
	toasts       []Toast
	toastTimers  map[int64]clock.Timer

	// background REST mirrors of comment submissions
	wg sync.WaitGroup
}

func New(emitter Emitter, fetcher Fetcher, votes *ledger.Ledger, opts Options) *Session {
	opts.withDefaults()
	return &Session{
		emitter:     emitter,
		fetcher:     fetcher,
		ledger:      votes,
		gate:        cooldown.NewGate(opts.Cooldown, opts.Clock),
		clock:       opts.Clock,
		opts:        opts,
		log:         slog.Default().With("component", "board.session"),
		categories:  slices.Clone(opts.Categories),
		page:        1,
		tab:         TabAll,
		pending:     newTracker(),
		drafts:      make(map[Slot]*Draft),
		toastTimers: make(map[int64]clock.Timer),
	}
}

// Run subscribes to src, loads the initial collections and blocks until
// ctx is cancelled. The subscription is released on every exit path.
func (s *Session) Run(ctx context.Context, src Source) error {
	sub := src.Subscribe(s.Apply)
	defer sub.Close()
	defer s.wg.Wait()
	if st, ok := src.(Starter); ok {
		st.Start()
	}

	s.Load(ctx)
	<-ctx.Done()
	return nil
}

// Load fetches the main and top lists over REST. Failures leave the
// current collections in place.
func (s *Session) Load(ctx context.Context) {
	items, err := s.fetcher.List(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "loading confessions failed", "error", err)
		s.mu.Lock()
		s.toastLocked("Error", "Failed to load confessions. Please try again later.", SeverityError)
		s.mu.Unlock()
	} else {
		s.mu.Lock()
		s.items = cloneAll(items)
		s.categories = mergeCategories(s.categories, items)
		s.mu.Unlock()
	}

	top, err := s.fetcher.TopUpvoted(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "loading top confessions failed", "error", err)
		return
	}
	s.mu.Lock()
	s.top = cloneAll(top)
	sortByUpvotes(s.top)
	s.mu.Unlock()
}

// ViewState is a snapshot of everything the board screen renders.
type ViewState struct {
	Tab          Tab      `json:"tab"`
	Page         Page     `json:"page"`
	PageNumber   int      `json:"pageNumber"`
	Filter       []string `json:"filter"`
	Categories   []string `json:"categories"`
	ComposeOpen  bool     `json:"composeOpen"`
	ComposeError string   `json:"composeError,omitempty"`
	Toasts       []Toast  `json:"toasts"`
}

func (s *Session) View() ViewState {
	toasts := s.Toasts()

	s.mu.Lock()
	defer s.mu.Unlock()
	return ViewState{
		Tab:          s.tab,
		Page:         Visible(s.items, s.filter, s.page, s.opts.PageSize),
		PageNumber:   s.page,
		Filter:       s.filter.Slice(),
		Categories:   slices.Clone(s.categories),
		ComposeOpen:  s.composeOpen,
		ComposeError: s.composeError,
		Toasts:       toasts,
	}
}

// Items returns the whole reconciled main collection.
func (s *Session) Items() []models.Confession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.items)
}

// Top returns the most upvoted list, highest first.
func (s *Session) Top() []models.Confession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.top)
}

func (s *Session) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.categories)
}

// ToggleCategory flips a category in the filter and returns to page one.
func (s *Session) ToggleCategory(category string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = 1
	return s.filter.Toggle(category)
}

// SetFilter replaces the selected categories.
func (s *Session) SetFilter(categories ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Set(categories...)
	s.page = 1
}

func (s *Session) ClearFilter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Clear()
	s.page = 1
}

// LoadMore reveals the next page. It returns false once everything
// matching the filter is shown.
func (s *Session) LoadMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !Visible(s.items, s.filter, s.page, s.opts.PageSize).HasMore {
		return false
	}
	s.page++
	return true
}

func (s *Session) SetTab(tab Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tab != TabTop {
		tab = TabAll
	}
	s.tab = tab
}

// SetComposeOpen shows or hides the new confession form.
func (s *Session) SetComposeOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composeOpen = open
	if !open {
		s.composeError = ""
	}
}

// ToggleCompose flips the new confession form and returns its new state.
func (s *Session) ToggleCompose() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composeOpen = !s.composeOpen
	if !s.composeOpen {
		s.composeError = ""
	}
	return s.composeOpen
}

// Pending lists submissions awaiting confirmation, oldest first.
func (s *Session) Pending() []PendingAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.list()
}

func cloneAll(items []models.Confession) []models.Confession {
	out := make([]models.Confession, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
