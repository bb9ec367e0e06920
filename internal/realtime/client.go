package realtime

import (
	"sync"
	"time"
)

// sendQueueSize bounds the per-connection outbound queue. A client that
// stops draining fills its queue and gets dropped instead of stalling the
// dispatcher.
const sendQueueSize = 16

// Transport is one accepted duplex byte stream. The protocol-upgrade layer
// (websocket handler) adapts its connection to this interface before handing
// it to the hub.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// client is one live connection: its transport, identity binding, joined
// rooms, and liveness timestamp. Identity, rooms and lastSeen are only
// touched by the Registry under its lock; the writer goroutine owns the
// transport writes.
type client struct {
	id        string
	transport Transport
	sendCh    chan []byte
	done      chan struct{}
	stopOnce  sync.Once

	identity *Identity
	rooms    map[string]struct{}
	lastSeen time.Time
}

func newClient(id string, transport Transport, now time.Time) *client {
	c := &client{
		id:        id,
		transport: transport,
		sendCh:    make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
		rooms:     make(map[string]struct{}),
		lastSeen:  now,
	}
	go c.writeLoop()
	return c
}

// writeLoop drains the send queue onto the transport. A write failure ends
// the loop; the reader side observes the broken transport and unregisters.
func (c *client) writeLoop() {
	for {
		select {
		case msg := <-c.sendCh:
			if err := c.transport.WriteMessage(msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// send enqueues pre-encoded bytes without blocking. It returns false when
// the queue is full or the client is already stopped.
func (c *client) send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.sendCh <- data:
		return true
	default:
		return false
	}
}

// close stops the writer and closes the transport. Safe to call repeatedly.
func (c *client) close() {
	c.stopOnce.Do(func() {
		close(c.done)
		_ = c.transport.Close()
	})
}
