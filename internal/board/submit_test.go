package board_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sujalbistaa/blurtbox/internal/board"
	"github.com/sujalbistaa/blurtbox/internal/clock"
	"github.com/sujalbistaa/blurtbox/internal/events"
	"github.com/sujalbistaa/blurtbox/internal/ledger"
	"github.com/sujalbistaa/blurtbox/internal/models"
)

var _ = Describe("Submissions", func() {
	var (
		ctx     context.Context
		clk     *clock.FakeClock
		emitter *fakeEmitter
		fetcher *fakeFetcher
		session *board.Session
		slot    board.Slot
	)

	newSession := func(opts board.Options) *board.Session {
		opts.Clock = clk
		s := board.New(emitter, fetcher, ledger.New(newMemStore()), opts)
		s.Apply(events.ConfessionList{Items: []models.Confession{confession("a", "Love", 0)}})
		return s
	}

	BeforeEach(func() {
		ctx = context.Background()
		clk = clock.Fake(epoch)
		emitter = &fakeEmitter{}
		fetcher = &fakeFetcher{}
		session = newSession(board.Options{})
		slot = board.CommentSlot("a")
	})

	Describe("comments", func() {
		It("rejects blank text without emitting", func() {
			Expect(session.SubmitComment(ctx, "a", "   ")).To(MatchError(board.ErrEmptyText))
			Expect(emitter.names()).To(BeEmpty())
			Expect(session.Pending()).To(BeEmpty())
			Expect(session.Draft(slot).Error).To(Equal("Comment can't be empty"))
		})

		It("rejects text over the limit", func() {
			long := strings.Repeat("é", models.MaxCommentLength+1)
			Expect(session.SubmitComment(ctx, "a", long)).To(MatchError(board.ErrTextTooLong))
			Expect(emitter.names()).To(BeEmpty())
		})

		It("accepts text exactly at the limit", func() {
			exact := strings.Repeat("é", models.MaxCommentLength)
			Expect(session.SubmitComment(ctx, "a", exact)).To(Succeed())
		})

		It("allows one pending submission per input", func() {
			Expect(session.SubmitComment(ctx, "a", "first")).To(Succeed())
			Expect(session.SubmitComment(ctx, "a", "second")).To(MatchError(board.ErrPending))
			Expect(session.SetDraft(slot, "typing")).To(MatchError(board.ErrPending))

			Expect(emitter.names()).To(Equal([]string{events.IntentAddComment}))
			Expect(emitter.last().Payload).To(Equal(events.CommentPayload{ID: "a", Text: "first"}))
			Expect(session.Draft(slot)).To(Equal(board.Draft{Text: "first", Submitting: true}))
			Expect(session.Pending()).To(HaveLen(1))
		})

		It("clears the input once the comment comes back", func() {
			Expect(session.SubmitComment(ctx, "a", "hello")).To(Succeed())

			ev := events.NewComment{ConfessionID: "a", Comment: models.Comment{ID: "c1", Text: "hello", CreatedAt: epoch}}
			session.Apply(ev)
			session.Apply(ev)

			Expect(session.Items()[0].Comments).To(HaveLen(1))
			Expect(session.Pending()).To(BeEmpty())
			Expect(session.Draft(slot)).To(Equal(board.Draft{}))
		})

		It("keeps the text when the backend rejects it", func() {
			Expect(session.SubmitComment(ctx, "a", "meh")).To(Succeed())
			session.Apply(events.ErrorMessage{Message: "Slow down"})

			Expect(session.Draft(slot)).To(Equal(board.Draft{Text: "meh", Error: "Slow down"}))
			Expect(session.Pending()).To(BeEmpty())
			Expect(session.Toasts()).To(ContainElement(HaveField("Title", "Comment Error")))
		})

		It("clears prohibited text", func() {
			Expect(session.SubmitComment(ctx, "a", "nasty")).To(Succeed())
			session.Apply(events.ErrorMessage{Message: "Comment blocked: Hate Speech detected"})

			d := session.Draft(slot)
			Expect(d.Text).To(BeEmpty())
			Expect(d.Error).To(ContainSubstring("Hate Speech"))
		})

		It("gives up after the pending timeout", func() {
			Expect(session.SubmitComment(ctx, "a", "hello")).To(Succeed())
			clk.Advance(board.DefaultPendingTimeout)

			Expect(session.Pending()).To(BeEmpty())
			Expect(session.Draft(slot)).To(Equal(board.Draft{
				Text:  "hello",
				Error: "No response from server. Please try again.",
			}))
		})

		It("does not let a late timeout touch a newer submission", func() {
			Expect(session.SubmitComment(ctx, "a", "one")).To(Succeed())
			session.Apply(events.NewComment{ConfessionID: "a", Comment: models.Comment{Text: "one", CreatedAt: epoch}})
			clk.Advance(10 * time.Second)
			Expect(session.SubmitComment(ctx, "a", "two")).To(Succeed())
			clk.Advance(6 * time.Second)

			Expect(session.Pending()).To(HaveLen(1))
			Expect(session.Draft(slot).Error).To(BeEmpty())
		})

		It("unlocks the input when emitting fails", func() {
			emitter.err = errors.New("offline")
			Expect(session.SubmitComment(ctx, "a", "hello")).To(MatchError(ContainSubstring("offline")))
			Expect(session.Pending()).To(BeEmpty())
			Expect(session.Draft(slot).Submitting).To(BeFalse())
			Expect(session.Draft(slot).Error).To(Equal("Failed to submit comment. Please try again."))
		})

		It("mirrors the comment over REST when enabled", func() {
			session = newSession(board.Options{MirrorComments: true})
			Expect(session.SubmitComment(ctx, "a", "hello")).To(Succeed())
			Eventually(fetcher.postedComments).Should(ConsistOf("a:hello"))
		})

		It("keeps the real-time outcome when the mirror fails", func() {
			fetcher.postErr = errors.New("502")
			session = newSession(board.Options{MirrorComments: true})
			Expect(session.SubmitComment(ctx, "a", "hello")).To(Succeed())
			Eventually(fetcher.postedComments).Should(HaveLen(1))
			Expect(session.Pending()).To(HaveLen(1))
		})

		It("does not mirror by default", func() {
			Expect(session.SubmitComment(ctx, "a", "hello")).To(Succeed())
			Consistently(fetcher.postedComments, 50*time.Millisecond).Should(BeEmpty())
		})
	})

	Describe("replies", func() {
		BeforeEach(func() {
			slot = board.ReplySlot("a", 0)
			session.Apply(events.NewComment{ConfessionID: "a", Comment: models.Comment{ID: "c1", Text: "root", CreatedAt: epoch}})
		})

		It("sends the reply and waits for its echo", func() {
			Expect(session.SubmitReply(ctx, "a", 0, "yo")).To(Succeed())
			Expect(emitter.last().Payload).To(Equal(events.ReplyPayload{ConfessionID: "a", CommentIndex: 0, Text: "yo"}))

			emitter.answer(0, events.Ack{})
			Expect(session.Pending()).To(HaveLen(1))

			session.Apply(events.NewReply{ConfessionID: "a", CommentIndex: 0, Reply: models.Reply{Text: "yo", CreatedAt: epoch}})
			Expect(session.Pending()).To(BeEmpty())
			Expect(session.Items()[0].Comments[0].Replies).To(HaveLen(1))
			Expect(session.Draft(slot)).To(Equal(board.Draft{}))
		})

		It("tracks replies to different comments separately", func() {
			Expect(session.SubmitReply(ctx, "a", 0, "one")).To(Succeed())
			Expect(session.SubmitReply(ctx, "a", 1, "two")).To(Succeed())
			Expect(session.SubmitReply(ctx, "a", 0, "three")).To(MatchError(board.ErrPending))
			Expect(session.Pending()).To(HaveLen(2))
		})

		It("surfaces a rejected acknowledgement", func() {
			emitter.autoAck = &events.Ack{Error: "Reply blocked"}
			Expect(session.SubmitReply(ctx, "a", 0, "yo")).To(Succeed())

			Expect(session.Pending()).To(BeEmpty())
			Expect(session.Draft(slot)).To(Equal(board.Draft{Text: "yo", Error: "Reply blocked"}))
			Expect(session.Toasts()).To(ContainElement(HaveField("Title", "Reply Error")))
		})

		It("rejects replies over the limit", func() {
			long := strings.Repeat("x", models.MaxReplyLength+1)
			Expect(session.SubmitReply(ctx, "a", 0, long)).To(MatchError(board.ErrTextTooLong))
			Expect(session.Draft(slot).Error).To(Equal("Reply is too long (max 150 characters)"))
		})

		It("ignores replies addressed past the last comment", func() {
			session.Apply(events.NewReply{ConfessionID: "a", CommentIndex: 3, Reply: models.Reply{Text: "lost", CreatedAt: epoch}})
			Expect(session.Items()[0].Comments[0].Replies).To(BeEmpty())
		})
	})

	Describe("new confessions", func() {
		It("sends text and category", func() {
			Expect(session.PostConfession(ctx, "hello", "Funny")).To(Succeed())
			Expect(emitter.last()).To(Equal(emitted{events.IntentNewConfession, events.ConfessionPayload{Text: "hello", Category: "Funny"}}))
		})

		It("closes the form on success", func() {
			session.SetComposeOpen(true)
			emitter.autoAck = &events.Ack{}
			Expect(session.PostConfession(ctx, "hello", "Funny")).To(Succeed())

			v := session.View()
			Expect(v.ComposeOpen).To(BeFalse())
			Expect(v.Toasts).To(ContainElement(HaveField("Title", "Success!")))
		})

		It("keeps the form open when rejected", func() {
			session.SetComposeOpen(true)
			emitter.autoAck = &events.Ack{Error: "Too spicy"}
			Expect(session.PostConfession(ctx, "hello", "Funny")).To(Succeed())

			v := session.View()
			Expect(v.ComposeOpen).To(BeTrue())
			Expect(v.ComposeError).To(Equal("Too spicy"))
		})

		It("validates before emitting", func() {
			Expect(session.PostConfession(ctx, "", "Funny")).To(MatchError(board.ErrEmptyText))
			Expect(session.View().ComposeError).To(Equal("Your confession can't be empty"))
			Expect(session.PostConfession(ctx, strings.Repeat("a", 501), "Funny")).To(MatchError(board.ErrTextTooLong))
			Expect(session.View().ComposeError).To(Equal("Your confession is too long (max 500 characters)"))
			Expect(emitter.names()).To(BeEmpty())
		})
	})

	It("reports a confession and thanks the user", func() {
		Expect(session.Report(ctx, "a")).To(Succeed())
		Expect(emitter.last()).To(Equal(emitted{events.IntentReport, events.IDPayload{ID: "a"}}))
		Expect(session.Toasts()).To(ContainElement(HaveField("Title", "Confession Reported")))
	})
})
