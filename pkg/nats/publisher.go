package nats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Client wraps one NATS connection shared by publishers and subscribers.
// Core subjects are used: fan-out events are ephemeral and never replayed.
type Client struct {
	nc *nats.Conn

	mu          sync.RWMutex
	nextID      int
	reconnects  map[int]func()
	disconnects map[int]func(error)
}

// NewClient connects to NATS. Reconnection is unbounded; listeners registered
// with OnReconnect/OnDisconnect observe transport state changes.
func NewClient(url string) (*Client, error) {
	c := &Client{
		reconnects:  make(map[int]func()),
		disconnects: make(map[int]func(error)),
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectHandler(func(*nats.Conn) { c.fireReconnect() }),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) { c.fireDisconnect(err) }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	c.nc = nc

	return c, nil
}

// Publish sends data to subject. NATS core publish is fire-and-forget; the
// context only guards against publishing after the caller gave up.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}
	return nil
}

// Close closes the NATS connection.
func (c *Client) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}
