package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrInvalidEvent = errors.New("invalid event payload")
)

const defaultErrorMessage = "Something went wrong. Please try again."

// Decode validates a push event payload and returns its typed form.
func Decode(name string, data json.RawMessage) (Event, error) {
	switch name {
	case NameConfessionList:
		var ev ConfessionList
		if err := unmarshal(name, data, &ev.Items); err != nil {
			return nil, err
		}
		kept := ev.Items[:0]
		for _, item := range ev.Items {
			if item.ID == "" {
				continue
			}
			item.Normalize()
			kept = append(kept, item)
		}
		ev.Items = kept
		return ev, nil

	case NameNewConfession:
		var ev NewConfession
		if err := unmarshal(name, data, &ev.Item); err != nil {
			return nil, err
		}
		if ev.Item.ID == "" {
			return nil, invalid(name, "missing _id")
		}
		ev.Item.Normalize()
		return ev, nil

	case NameUpdateConfession:
		var ev UpdateConfession
		if err := unmarshal(name, data, &ev.Item); err != nil {
			return nil, err
		}
		if ev.Item.ID == "" {
			return nil, invalid(name, "missing _id")
		}
		ev.Item.Normalize()
		return ev, nil

	case NameDeleteConfession:
		var ev DeleteConfession
		if err := unmarshal(name, data, &ev); err != nil {
			return nil, err
		}
		if ev.ID == "" {
			return nil, invalid(name, "missing id")
		}
		return ev, nil

	case NameNewComment:
		var ev NewComment
		if err := unmarshal(name, data, &ev); err != nil {
			return nil, err
		}
		if ev.ConfessionID == "" {
			return nil, invalid(name, "missing id")
		}
		return ev, nil

	case NameNewReply:
		var ev NewReply
		if err := unmarshal(name, data, &ev); err != nil {
			return nil, err
		}
		if ev.ConfessionID == "" {
			return nil, invalid(name, "missing confessionId")
		}
		if ev.CommentIndex < 0 {
			return nil, invalid(name, "negative commentIndex")
		}
		return ev, nil

	case NameErrorMessage:
		var ev ErrorMessage
		if len(data) > 0 {
			if err := unmarshal(name, data, &ev); err != nil {
				return nil, err
			}
		}
		if ev.Message == "" {
			ev.Message = defaultErrorMessage
		}
		return ev, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

func unmarshal(name string, data json.RawMessage, v any) error {
	if len(data) == 0 {
		return invalid(name, "empty payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidEvent, name, err)
	}
	return nil
}

func invalid(name, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidEvent, name, reason)
}
