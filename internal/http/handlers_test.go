package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sujalbistaa/blurtbox/internal/api"
	"github.com/sujalbistaa/blurtbox/internal/board"
	"github.com/sujalbistaa/blurtbox/internal/clock"
	"github.com/sujalbistaa/blurtbox/internal/db"
	"github.com/sujalbistaa/blurtbox/internal/events"
	routes "github.com/sujalbistaa/blurtbox/internal/http"
	"github.com/sujalbistaa/blurtbox/internal/ledger"
	"github.com/sujalbistaa/blurtbox/internal/models"
)

type recordingEmitter struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingEmitter) Emit(event string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, event)
	return nil
}

func (r *recordingEmitter) EmitWithAck(event string, payload any, _ func(events.Ack)) error {
	return r.Emit(event, payload)
}

func (r *recordingEmitter) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

type staticFetcher struct {
	items []models.Confession
}

func (f *staticFetcher) List(context.Context) ([]models.Confession, error)       { return f.items, nil }
func (f *staticFetcher) TopUpvoted(context.Context) ([]models.Confession, error) { return f.items, nil }
func (f *staticFetcher) PostComment(context.Context, string, string) error       { return nil }
func (f *staticFetcher) Invalidate(string)                                       {}

func (f *staticFetcher) Get(_ context.Context, id string) (*models.Confession, error) {
	for _, item := range f.items {
		if item.ID == id {
			return &item, nil
		}
	}
	return nil, api.ErrNotFound
}

var created = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var _ = Describe("View server", func() {
	var (
		emitter *recordingEmitter
		session *board.Session
		router  *gin.Engine
		opts    routes.RouteOptions
	)

	do := func(method, path string, body any, header ...string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		for i := 0; i+1 < len(header); i += 2 {
			req.Header.Set(header[i], header[i+1])
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder) map[string]any {
		var out map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &out)).To(Succeed())
		return out
	}

	build := func() {
		ctx, cancel := context.WithCancel(context.Background())
		DeferCleanup(cancel)
		router = gin.New()
		routes.SetupRoutes(ctx, router, &routes.Env{Board: session}, opts)
	}

	BeforeEach(func() {
		store, err := db.Init("sqlite://" + filepath.Join(GinkgoT().TempDir(), "board.db"))
		Expect(err).NotTo(HaveOccurred())

		fetcher := &staticFetcher{items: []models.Confession{
			{ID: "a", Text: "I ate the **last** cookie", Category: "Funny", Upvotes: 2, CreatedAt: created},
			{ID: "b", Text: "<script>x()</script>spooky", Category: "Crime", Reports: 3, CreatedAt: created,
				Comments: []models.Comment{{ID: "c1", Text: "same", CreatedAt: created}}},
		}}
		emitter = &recordingEmitter{}
		session = board.New(emitter, fetcher, ledger.New(ledger.NewGormStore(store)), board.Options{Clock: clock.Fake(created)})
		session.Load(context.Background())
		opts = routes.RouteOptions{}
		build()
	})

	It("answers health checks with security headers", func() {
		rec := do(http.MethodGet, "/health", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("X-Frame-Options")).To(Equal("DENY"))
		Expect(rec.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"))
	})

	It("renders the board as sanitized cards", func() {
		rec := do(http.MethodGet, "/api/view", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))

		body := decode(rec)
		Expect(body["total"]).To(BeNumerically("==", 2))
		cards := body["cards"].([]any)
		first := cards[0].(map[string]any)
		Expect(first["html"]).To(ContainSubstring("<strong>last</strong>"))
		Expect(first["flagged"]).To(BeFalse())

		second := cards[1].(map[string]any)
		Expect(second["html"]).NotTo(ContainSubstring("<script"))
		Expect(second["flagged"]).To(BeTrue())
		Expect(second["commentCount"]).To(BeNumerically("==", 1))
	})

	It("records votes and holds the cooldown", func() {
		rec := do(http.MethodPost, "/api/confessions/a/vote", gin.H{"direction": "up"})
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decode(rec)["applied"]).To(BeTrue())

		rec = do(http.MethodPost, "/api/confessions/a/vote", gin.H{"direction": "down"})
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decode(rec)["applied"]).To(BeFalse())
		Expect(emitter.names()).To(Equal([]string{events.IntentUpvote}))

		card := decode(do(http.MethodGet, "/api/view", nil))["cards"].([]any)[0].(map[string]any)
		Expect(card["vote"]).To(Equal(map[string]any{"upvote": true, "downvote": false}))
		Expect(card["voteDisabled"]).To(BeTrue())
	})

	It("rejects unknown vote directions", func() {
		rec := do(http.MethodPost, "/api/confessions/a/vote", gin.H{"direction": "sideways"})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("validates and rate limits new confessions", func() {
		rec := do(http.MethodPost, "/api/confessions", gin.H{"text": "  ", "category": "Funny"})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(decode(rec)["error"]).To(Equal("Your confession can't be empty"))

		rec = do(http.MethodPost, "/api/confessions", gin.H{"text": "hello", "category": "Funny"})
		Expect(rec.Code).To(Equal(http.StatusTooManyRequests))
	})

	It("accepts a confession", func() {
		rec := do(http.MethodPost, "/api/confessions", gin.H{"text": "hello", "category": "Funny"})
		Expect(rec.Code).To(Equal(http.StatusAccepted))
		Expect(emitter.names()).To(ContainElement(events.IntentNewConfession))
	})

	It("locks the comment input while a comment is pending", func() {
		rec := do(http.MethodPost, "/api/confessions/a/comments", gin.H{"text": "first"})
		Expect(rec.Code).To(Equal(http.StatusAccepted))
		Expect(decode(rec)["draft"]).To(HaveKeyWithValue("submitting", true))

		rec = do(http.MethodPost, "/api/confessions/a/comments", gin.H{"text": "second"})
		Expect(rec.Code).To(Equal(http.StatusConflict))

		rec = do(http.MethodPut, "/api/confessions/a/drafts", gin.H{"kind": "comment", "text": "typing"})
		Expect(rec.Code).To(Equal(http.StatusConflict))
	})

	It("rejects replies with a bad index", func() {
		rec := do(http.MethodPost, "/api/confessions/b/comments/nope/replies", gin.H{"text": "hi"})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		rec = do(http.MethodPost, "/api/confessions/b/comments/0/replies", gin.H{"text": "hi"})
		Expect(rec.Code).To(Equal(http.StatusAccepted))
	})

	It("serves the detail page", func() {
		rec := do(http.MethodGet, "/api/posts/b", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		body := decode(rec)
		Expect(body["comments"]).To(HaveLen(1))
		Expect(body["card"]).To(HaveKeyWithValue("id", "b"))

		Expect(do(http.MethodGet, "/api/posts/zzz", nil).Code).To(Equal(http.StatusNotFound))
	})

	It("filters and pages the view", func() {
		rec := do(http.MethodPut, "/api/filter", gin.H{"categories": []string{"Crime"}})
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(decode(do(http.MethodGet, "/api/view", nil))["total"]).To(BeNumerically("==", 1))

		Expect(do(http.MethodDelete, "/api/filter", nil).Code).To(Equal(http.StatusNoContent))
		Expect(decode(do(http.MethodPost, "/api/view/more", nil))["more"]).To(BeFalse())
	})

	It("dismisses toasts", func() {
		Expect(do(http.MethodPost, "/api/confessions/a/report", nil).Code).To(Equal(http.StatusAccepted))
		toasts := session.Toasts()
		Expect(toasts).To(HaveLen(1))

		rec := do(http.MethodDelete, "/api/toasts/"+strconv.FormatInt(toasts[0].ID, 10), nil)
		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(do(http.MethodDelete, "/api/toasts/"+strconv.FormatInt(toasts[0].ID, 10), nil).Code).To(Equal(http.StatusNotFound))
	})

	Context("with a board token", func() {
		BeforeEach(func() {
			opts.BoardToken = "secret"
			build()
		})

		It("guards write routes only", func() {
			Expect(do(http.MethodGet, "/api/view", nil).Code).To(Equal(http.StatusOK))
			Expect(do(http.MethodPost, "/api/view/more", nil).Code).To(Equal(http.StatusUnauthorized))
			Expect(do(http.MethodPost, "/api/view/more", nil, "X-Board-Token", "wrong").Code).To(Equal(http.StatusForbidden))
			Expect(do(http.MethodPost, "/api/view/more", nil, "X-Board-Token", "secret").Code).To(Equal(http.StatusOK))
		})
	})

	Context("with metrics", func() {
		BeforeEach(func() {
			opts.Metrics = true
			build()
		})

		It("exposes board counters", func() {
			do(http.MethodPost, "/api/confessions/a/report", nil)
			rec := do(http.MethodGet, "/metrics", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring("blurtbox_intents_emitted_total"))
		})
	})
})

var _ = Describe("IPRateLimiter", func() {
	It("forgets visitors whose bucket refilled", func() {
		limiter := routes.NewIPRateLimiter(1000, 1)
		Expect(limiter.GetLimiter("1.2.3.4").Allow()).To(BeTrue())
		Expect(limiter.Len()).To(Equal(1))
		Eventually(func() int {
			limiter.Prune()
			return limiter.Len()
		}).Should(BeZero())
	})
})
