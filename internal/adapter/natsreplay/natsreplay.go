// Package natsreplay fans orchestrator events out to an external NATS
// subject for replay and audit tooling outside this process. It uses
// core NATS publish, not JetStream, since replay consumers are expected
// to be live observers rather than durable subscribers reading back
// through a restart.
package natsreplay

import (
	"context"
	"encoding/json"

	"github.com/kestrel-run/orchestra/internal/domain/event"
	"github.com/nats-io/nats.go"
)

// Broadcaster publishes events to a fixed NATS subject.
type Broadcaster struct {
	conn    *nats.Conn
	subject string
}

func Dial(url, subject string) (*Broadcaster, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Broadcaster{conn: conn, subject: subject}, nil
}

func (b *Broadcaster) Broadcast(ctx context.Context, evt event.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.conn.Publish(b.subject, data)
}

func (b *Broadcaster) Close() {
	b.conn.Close()
}
