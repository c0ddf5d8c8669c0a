package chat

import (
	"fmt"
	"time"
)

// ValidationError signals missing or malformed required input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// NotFoundError signals a referenced case, message, notification or user is absent
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Restriction kinds carried by RestrictionError
const (
	RestrictionBanned   = "banned"
	RestrictionMuted    = "muted"
	RestrictionSlowmode = "slowmode"
	RestrictionClosed   = "chat_closed"
)

// RestrictionError signals the sender is not admitted to post. It carries the
// restriction reason and, for temporary restrictions, the expiry time so the
// client can display it.
type RestrictionError struct {
	Kind      string
	Reason    string
	Until     *time.Time
	Permanent bool
}

func (e *RestrictionError) Error() string {
	switch {
	case e.Permanent:
		return fmt.Sprintf("%s permanently: %s", e.Kind, e.Reason)
	case e.Until != nil:
		return fmt.Sprintf("%s until %s: %s", e.Kind, e.Until.UTC().Format(time.RFC3339), e.Reason)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
}
