package board_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sujalbistaa/blurtbox/internal/board"
	"github.com/sujalbistaa/blurtbox/internal/clock"
	"github.com/sujalbistaa/blurtbox/internal/events"
	"github.com/sujalbistaa/blurtbox/internal/ledger"
	"github.com/sujalbistaa/blurtbox/internal/models"
)

func ids(items []models.Confession) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

var _ = Describe("Apply", func() {
	var (
		ctx     context.Context
		clk     *clock.FakeClock
		emitter *fakeEmitter
		fetcher *fakeFetcher
		session *board.Session
	)

	BeforeEach(func() {
		ctx = context.Background()
		clk = clock.Fake(epoch)
		emitter = &fakeEmitter{}
		fetcher = &fakeFetcher{
			list: []models.Confession{confession("a", "Love", 3), confession("b", "Sad", 5)},
			top: []models.Confession{confession("b", "Sad", 5), confession("a", "Love", 3)},
			items: map[string]models.Confession{
				"a": confession("a", "Love", 3),
			},
		}
		session = board.New(emitter, fetcher, ledger.New(newMemStore()), board.Options{Clock: clk})
		session.Load(ctx)
	})

	It("replaces the collection with a snapshot", func() {
		session.Apply(events.ConfessionList{Items: []models.Confession{confession("z", "Cursed", 0)}})
		Expect(ids(session.Items())).To(Equal([]string{"z"}))
		Expect(session.Categories()).To(ContainElement("Cursed"))
	})

	It("prepends a new confession once", func() {
		ev := events.NewConfession{Item: confession("c", "Funny", 0)}
		session.Apply(ev)
		session.Apply(ev)

		Expect(ids(session.Items())).To(Equal([]string{"c", "a", "b"}))
		Expect(session.Toasts()).To(HaveLen(1))
		Expect(session.Toasts()[0].Title).To(Equal("New Confession"))
	})

	It("replaces every held copy on update and keeps the top list sorted", func() {
		_, err := session.OpenPost(ctx, "a")
		Expect(err).NotTo(HaveOccurred())

		updated := confession("a", "Love", 9)
		session.Apply(events.UpdateConfession{Item: updated})

		Expect(session.Items()[0].Upvotes).To(Equal(9))
		Expect(ids(session.Top())).To(Equal([]string{"a", "b"}))
		d, ok := session.Detail()
		Expect(ok).To(BeTrue())
		Expect(d.Item.Upvotes).To(Equal(9))
		Expect(fetcher.invalidated).To(ContainElement("a"))
	})

	It("keeps held comments when an update omits them", func() {
		session.Apply(events.NewComment{ConfessionID: "a", Comment: models.Comment{ID: "c1", Text: "hi", CreatedAt: epoch}})
		session.Apply(events.UpdateConfession{Item: confession("a", "Love", 4)})
		Expect(session.Items()[0].Comments).To(HaveLen(1))
	})

	It("removes a deleted confession everywhere", func() {
		_, _ = session.OpenPost(ctx, "a")
		session.Apply(events.DeleteConfession{ID: "a"})

		Expect(ids(session.Items())).To(Equal([]string{"b"}))
		Expect(ids(session.Top())).To(Equal([]string{"b"}))
		d, _ := session.Detail()
		Expect(d.NotFound).To(BeTrue())
		Expect(d.Item).To(BeNil())
		Expect(session.Toasts()).To(ConsistOf(And(
			HaveField("Title", "Confession Removed"),
			HaveField("Severity", board.SeverityError),
		)))
	})

	It("stays quiet when deleting something unknown", func() {
		session.Apply(events.DeleteConfession{ID: "nope"})
		Expect(ids(session.Items())).To(Equal([]string{"a", "b"}))
		Expect(session.Toasts()).To(BeEmpty())
	})

	It("deduplicates comments by identifier", func() {
		c := models.Comment{ID: "c1", Text: "hi", CreatedAt: epoch}
		session.Apply(events.NewComment{ConfessionID: "a", Comment: c})
		c.Text = "edited echo"
		session.Apply(events.NewComment{ConfessionID: "a", Comment: c})
		Expect(session.Items()[0].Comments).To(HaveLen(1))
	})

	It("deduplicates identifier-less comments by text and time", func() {
		c := models.Comment{Text: "hi", CreatedAt: epoch}
		session.Apply(events.NewComment{ConfessionID: "a", Comment: c})
		session.Apply(events.NewComment{ConfessionID: "a", Comment: c})
		c.CreatedAt = epoch.Add(time.Second)
		session.Apply(events.NewComment{ConfessionID: "a", Comment: c})
		Expect(session.Items()[0].Comments).To(HaveLen(2))
	})

	It("appends comments to the copy on the top list too", func() {
		session.Apply(events.NewComment{ConfessionID: "b", Comment: models.Comment{ID: "c1", Text: "hi", CreatedAt: epoch}})
		Expect(session.Top()[0].Comments).To(HaveLen(1))
		Expect(session.Items()[1].Comments).To(HaveLen(1))
	})

	It("shows a backend error as a toast when nothing is pending", func() {
		session.Apply(events.ErrorMessage{Message: "Boom"})
		Expect(session.Toasts()).To(ConsistOf(And(
			HaveField("Title", "Error"),
			HaveField("Message", "Boom"),
			HaveField("Severity", board.SeverityError),
		)))
	})

	It("hands a backend error to the oldest pending submission", func() {
		Expect(session.SubmitComment(ctx, "a", "first")).To(Succeed())
		clk.Advance(time.Second)
		Expect(session.SubmitComment(ctx, "b", "second")).To(Succeed())

		session.Apply(events.ErrorMessage{Message: "Nope"})
		Expect(session.Draft(board.CommentSlot("a")).Error).To(Equal("Nope"))
		Expect(session.Draft(board.CommentSlot("b")).Submitting).To(BeTrue())
	})

	It("asks for a fresh list when the channel connects", func() {
		session.Apply(events.Connected{Reconnect: true})
		Expect(emitter.names()).To(Equal([]string{events.IntentGetConfessions}))
	})

	It("warns when the channel is gone for good", func() {
		session.Apply(events.Disconnected{})
		Expect(session.Toasts()).To(ConsistOf(HaveField("Title", "Connection Lost")))
	})
})
