package http

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/blurtbox/internal/board"
	"github.com/sujalbistaa/blurtbox/internal/logger"
	"github.com/sujalbistaa/blurtbox/internal/models"
	"github.com/sujalbistaa/blurtbox/internal/render"
)

// Reports at or above this count flag a card.
const flagThreshold = 3

type CreateConfessionInput struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

type VoteInput struct {
	Direction string `json:"direction" binding:"required"`
}

type TextInput struct {
	Text string `json:"text"`
}

type DraftInput struct {
	Kind         board.Kind `json:"kind"`
	CommentIndex int        `json:"commentIndex"`
	Text         string     `json:"text"`
}

type FilterInput struct {
	Categories []string `json:"categories"`
}

type TabInput struct {
	Tab board.Tab `json:"tab" binding:"required"`
}

// Card is one confession as the board displays it.
type Card struct {
	ID           string           `json:"id"`
	Text         string           `json:"text"`
	HTML         template.HTML    `json:"html"`
	Category     string           `json:"category,omitempty"`
	Upvotes      int              `json:"upvotes"`
	Downvotes    int              `json:"downvotes"`
	Reports      int              `json:"reports"`
	Flagged      bool             `json:"flagged"`
	Date         string           `json:"date"`
	CreatedAt    time.Time        `json:"createdAt"`
	CommentCount int              `json:"commentCount"`
	Vote         models.VoteState `json:"vote"`
	VoteDisabled bool             `json:"voteDisabled"`
}

type ReplyView struct {
	Text string        `json:"text"`
	HTML template.HTML `json:"html"`
	Date string        `json:"date"`
}

type CommentView struct {
	Index      int           `json:"index"`
	Text       string        `json:"text"`
	HTML       template.HTML `json:"html"`
	Date       string        `json:"date"`
	Replies    []ReplyView   `json:"replies"`
	ReplyDraft board.Draft   `json:"replyDraft"`
}

type Env struct {
	Board *board.Session
}

func (e *Env) card(c models.Confession, votes map[string]models.VoteState) Card {
	vote := votes[c.ID]
	if !vote.Valid() {
		vote = models.VoteState{}
	}
	return Card{
		ID:           c.ID,
		Text:         c.Text,
		HTML:         render.Text(c.Text),
		Category:     c.Category,
		Upvotes:      c.Upvotes,
		Downvotes:    c.Downvotes,
		Reports:      c.Reports,
		Flagged:      c.Reports >= flagThreshold,
		Date:         render.Date(c.CreatedAt),
		CreatedAt:    c.CreatedAt,
		CommentCount: len(c.Comments),
		Vote:         vote,
		VoteDisabled: e.Board.VoteDisabled(c.ID),
	}
}

func (e *Env) cards(ctx context.Context, items []models.Confession) []Card {
	votes := e.Board.Votes(ctx)
	out := make([]Card, len(items))
	for i, item := range items {
		out[i] = e.card(item, votes)
	}
	return out
}

func (e *Env) comments(c models.Confession) []CommentView {
	out := make([]CommentView, len(c.Comments))
	for i, cm := range c.Comments {
		replies := make([]ReplyView, len(cm.Replies))
		for j, r := range cm.Replies {
			replies[j] = ReplyView{Text: r.Text, HTML: render.Text(r.Text), Date: render.DateTime(r.CreatedAt)}
		}
		out[i] = CommentView{
			Index:      i,
			Text:       cm.Text,
			HTML:       render.Text(cm.Text),
			Date:       render.DateTime(cm.CreatedAt),
			Replies:    replies,
			ReplyDraft: e.Board.Draft(board.ReplySlot(c.ID, i)),
		}
	}
	return out
}

// requestContext tags the request context for logging.
func requestContext(c *gin.Context, itemID string) context.Context {
	return logger.WithLogFields(c.Request.Context(), logger.LogFields{Component: "http", ItemID: itemID})
}

// submitStatus maps a session error to a response code.
func submitStatus(err error) int {
	switch {
	case errors.Is(err, board.ErrEmptyText), errors.Is(err, board.ErrTextTooLong):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrPending):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func (e *Env) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (e *Env) About(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":  "BlurtBox",
		"about": "Share your thoughts anonymously. No accounts, no names, just confessions.",
	})
}

func (e *Env) GetView(c *gin.Context) {
	ctx := requestContext(c, "")
	view := e.Board.View()

	resp := gin.H{
		"tab":          view.Tab,
		"pageNumber":   view.PageNumber,
		"total":        view.Page.Total,
		"hasMore":      view.Page.HasMore,
		"filter":       view.Filter,
		"categories":   view.Categories,
		"composeOpen":  view.ComposeOpen,
		"composeError": view.ComposeError,
		"toasts":       view.Toasts,
	}
	if view.Tab == board.TabTop {
		resp["cards"] = e.cards(ctx, e.Board.Top())
	} else {
		resp["cards"] = e.cards(ctx, view.Page.Items)
	}
	c.JSON(http.StatusOK, resp)
}

func (e *Env) GetTop(c *gin.Context) {
	c.JSON(http.StatusOK, e.cards(requestContext(c, ""), e.Board.Top()))
}

func (e *Env) GetPost(c *gin.Context) {
	id := c.Param("id")
	ctx := requestContext(c, id)

	detail, err := e.Board.OpenPost(ctx, id)
	switch {
	case detail.NotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "Confession not found"})
		return
	case err != nil:
		slog.ErrorContext(ctx, "fetching confession failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": detail.Error})
		return
	}

	item := *detail.Item
	c.JSON(http.StatusOK, gin.H{
		"card":         e.card(item, e.Board.Votes(ctx)),
		"dateTime":     render.DateTime(item.CreatedAt),
		"share":        render.Excerpt(item.Text, 100),
		"comments":     e.comments(item),
		"commentDraft": e.Board.Draft(board.CommentSlot(id)),
	})
}

func (e *Env) ClosePost(c *gin.Context) {
	e.Board.ClosePost()
	c.Status(http.StatusNoContent)
}

func (e *Env) GetToasts(c *gin.Context) {
	c.JSON(http.StatusOK, e.Board.Toasts())
}

func (e *Env) DismissToast(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid toast ID"})
		return
	}
	if !e.Board.Dismiss(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Toast not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (e *Env) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, e.Board.Categories())
}

func (e *Env) CreateConfession(c *gin.Context) {
	var input CreateConfessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	ctx := requestContext(c, "")
	if err := e.Board.PostConfession(ctx, input.Text, input.Category); err != nil {
		c.JSON(submitStatus(err), gin.H{"error": e.Board.View().ComposeError})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

func (e *Env) Vote(c *gin.Context) {
	id := c.Param("id")
	var input VoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	dir, err := board.ParseDirection(input.Direction)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := requestContext(c, id)
	res, err := e.Board.Vote(ctx, id, dir)
	if err != nil {
		slog.ErrorContext(ctx, "vote failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to process vote"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (e *Env) Report(c *gin.Context) {
	id := c.Param("id")
	if err := e.Board.Report(requestContext(c, id), id); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to report confession"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "reported"})
}

func (e *Env) SubmitComment(c *gin.Context) {
	id := c.Param("id")
	var input TextInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	slot := board.CommentSlot(id)
	if err := e.Board.SubmitComment(requestContext(c, id), id, input.Text); err != nil {
		c.JSON(submitStatus(err), gin.H{"error": err.Error(), "draft": e.Board.Draft(slot)})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"draft": e.Board.Draft(slot)})
}

func (e *Env) SubmitReply(c *gin.Context) {
	id := c.Param("id")
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment index"})
		return
	}
	var input TextInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	slot := board.ReplySlot(id, index)
	if err := e.Board.SubmitReply(requestContext(c, id), id, index, input.Text); err != nil {
		c.JSON(submitStatus(err), gin.H{"error": err.Error(), "draft": e.Board.Draft(slot)})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"draft": e.Board.Draft(slot)})
}

func (e *Env) PutDraft(c *gin.Context) {
	id := c.Param("id")
	var input DraftInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	slot := board.CommentSlot(id)
	if input.Kind == board.KindReply {
		slot = board.ReplySlot(id, input.CommentIndex)
	}
	if err := e.Board.SetDraft(slot, input.Text); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, e.Board.Draft(slot))
}

func (e *Env) PutFilter(c *gin.Context) {
	var input FilterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	e.Board.SetFilter(input.Categories...)
	c.JSON(http.StatusOK, gin.H{"filter": e.Board.View().Filter})
}

func (e *Env) ToggleCategory(c *gin.Context) {
	selected := e.Board.ToggleCategory(c.Param("category"))
	c.JSON(http.StatusOK, gin.H{"selected": selected})
}

func (e *Env) ClearFilter(c *gin.Context) {
	e.Board.ClearFilter()
	c.Status(http.StatusNoContent)
}

func (e *Env) LoadMore(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"more": e.Board.LoadMore()})
}

func (e *Env) PutTab(c *gin.Context) {
	var input TabInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	e.Board.SetTab(input.Tab)
	c.JSON(http.StatusOK, gin.H{"tab": e.Board.View().Tab})
}

func (e *Env) ToggleCompose(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"composeOpen": e.Board.ToggleCompose()})
}
