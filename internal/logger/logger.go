package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Setup installs the process-wide slog logger. Development gets a text
// handler at debug level; everything else gets JSON at info.
func Setup(env string) {
	slog.SetDefault(slog.New(NewContextHandler(newHandler(os.Stdout, env))))
}

func newHandler(w io.Writer, env string) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if env == "development" {
		opts.Level = slog.LevelDebug
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// ContextHandler adds the fields carried by WithLogFields to every record.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := GetLogFields(ctx)
	if fields.Component != "" {
		r.AddAttrs(slog.String("component", fields.Component))
	}
	if fields.ItemID != "" {
		r.AddAttrs(slog.String("item_id", fields.ItemID))
	}
	if fields.Event != "" {
		r.AddAttrs(slog.String("event", fields.Event))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
