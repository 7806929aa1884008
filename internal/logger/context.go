package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every log line written with the context.
type LogFields struct {
	Component string // e.g. "board.reconciler"
	ItemID    string // confession id
	Event     string // intent or push event name
}

// WithLogFields merges fields into ctx; non-empty values win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := GetLogFields(ctx)
	if fields.Component != "" {
		merged.Component = fields.Component
	}
	if fields.ItemID != "" {
		merged.ItemID = fields.ItemID
	}
	if fields.Event != "" {
		merged.Event = fields.Event
	}
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields returns the fields on ctx, or the zero value.
func GetLogFields(ctx context.Context) LogFields {
	if ctx == nil {
		return LogFields{}
	}
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// Truncate shortens s for log output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
