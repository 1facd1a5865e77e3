package dispatcher

import (
	"context"

	"github.com/garyjia/approval-engine/internal/domain/event"
)

// Publisher adapts the dispatcher to the services' post-commit publishing
// hook. Events fan out asynchronously so a slow subscriber can never hold up
// a decision response.
type Publisher struct {
	d Dispatcher
}

// NewPublisher creates a Publisher over a dispatcher.
func NewPublisher(d Dispatcher) *Publisher {
	return &Publisher{d: d}
}

// Publish fans the event out to subscribers without waiting for them.
func (p *Publisher) Publish(ev *event.Event) {
	p.d.DispatchAsync(context.Background(), ev)
}
