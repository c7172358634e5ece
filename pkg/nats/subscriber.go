package nats

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// MessageHandler receives the raw payload of one message.
type MessageHandler func(data []byte)

// Subscribe registers handler for subject. NATS delivers the messages of one
// subscription sequentially, in publish order.
func (c *Client) Subscribe(subject string, handler MessageHandler) (*nats.Subscription, error) {
	sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

// OnReconnect registers fn and returns a function that removes it.
func (c *Client) OnReconnect(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.reconnects[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.reconnects, id)
		c.mu.Unlock()
	}
}

// OnDisconnect registers fn and returns a function that removes it.
func (c *Client) OnDisconnect(fn func(error)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.disconnects[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.disconnects, id)
		c.mu.Unlock()
	}
}

func (c *Client) fireReconnect() {
	c.mu.RLock()
	listeners := make([]func(), 0, len(c.reconnects))
	for _, fn := range c.reconnects {
		listeners = append(listeners, fn)
	}
	c.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

func (c *Client) fireDisconnect(err error) {
	if err == nil {
		// Clean close, not a transport failure.
		return
	}
	c.mu.RLock()
	listeners := make([]func(error), 0, len(c.disconnects))
	for _, fn := range c.disconnects {
		listeners = append(listeners, fn)
	}
	c.mu.RUnlock()

	for _, fn := range listeners {
		fn(err)
	}
}
