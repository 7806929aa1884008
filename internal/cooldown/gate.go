// Package cooldown throttles repeated vote clicks on the same confession.
// It is a UX guard only; the backend enforces any real rate limit.
package cooldown

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sujalbistaa/blurtbox/internal/clock"
)

// DefaultWindow matches the vote button cooldown.
const DefaultWindow = 2 * time.Second

// sweepThreshold bounds the limiter map before idle entries are dropped.
const sweepThreshold = 1024

// Gate keeps one single-token limiter per item. A limiter with no token
// left is an armed window.
type Gate struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	window   time.Duration
	clock    clock.Clock
}

func NewGate(window time.Duration, c clock.Clock) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	if c == nil {
		c = clock.Real()
	}
	return &Gate{
		limiters: make(map[string]*rate.Limiter),
		window:   window,
		clock:    c,
	}
}

// TryAct arms the window for itemID and returns true, unless a window is
// already armed, in which case nothing changes and it returns false.
func (g *Gate) TryAct(itemID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if len(g.limiters) >= sweepThreshold {
		g.sweepLocked(now)
	}
	limiter, exists := g.limiters[itemID]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(g.window), 1)
		g.limiters[itemID] = limiter
	}
	return limiter.AllowN(now, 1)
}

// Armed reports whether itemID is inside its cooldown window.
func (g *Gate) Armed(itemID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	limiter, exists := g.limiters[itemID]
	if !exists {
		return false
	}
	return limiter.TokensAt(g.clock.Now()) < 1
}

// Remaining is how long itemID stays armed.
func (g *Gate) Remaining(itemID string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	limiter, exists := g.limiters[itemID]
	if !exists {
		return 0
	}
	missing := 1 - limiter.TokensAt(g.clock.Now())
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing * float64(g.window))
}

// Sweep drops limiters whose window has expired.
func (g *Gate) Sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked(g.clock.Now())
}

func (g *Gate) sweepLocked(now time.Time) {
	for id, limiter := range g.limiters {
		if limiter.TokensAt(now) >= 1 {
			delete(g.limiters, id)
		}
	}
}

// Len is the number of tracked items.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.limiters)
}
