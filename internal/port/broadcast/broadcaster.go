// Package broadcast defines the outbound fan-out port that the
// orchestrator's event stream is pushed through, implemented by the
// websocket hub and NATS replay adapters.
package broadcast

import (
	"context"

	"github.com/kestrel-run/orchestra/internal/domain/event"
)

// Broadcaster accepts orchestrator events for fan-out to observers.
// Delivery happens within the call: the websocket hub writes to each
// connection in turn and the Postgres store inserts a row, so a slow
// consumer delays the caller.
type Broadcaster interface {
	Broadcast(ctx context.Context, evt event.Event) error
}
