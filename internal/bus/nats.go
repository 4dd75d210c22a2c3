// internal/bus/nats.go

// Package bus carries pipeline events over NATS so back-office consumers can
// follow uploads without polling the orchestrator.
package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// Client wraps a NATS connection with the JSON publish/subscribe shape the
// rest of the pipeline expects.
type Client struct{ nc *nats.Conn }

// Connect dials the bus with endless reconnects so a broker restart does not
// drop the pipeline.
func Connect(url string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("media-ingest"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Client{nc: nc}, nil
}

// Close drains the connection, letting buffered events flush first.
func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

func (c *Client) Conn() *nats.Conn { return c.nc }

// PublishJSON marshals v and publishes it on subject.
func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, b)
}

// SubscribeJSON delivers raw event payloads to handler with a per-message
// deadline. Subjects may use wildcards, e.g. "media.ingest.>".
func (c *Client) SubscribeJSON(subject string, handler func(ctx context.Context, subject string, data []byte)) (*nats.Subscription, error) {
	return c.nc.Subscribe(subject, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		handler(ctx, msg.Subject, msg.Data)
	})
}
