package dispatcher

import (
	"context"

	"github.com/garyjia/approval-engine/internal/domain/event"
)

// Handler reacts to one transition event.
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registration; ListHandlers returns it without the
// function so callers can inspect what is subscribed.
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}
