package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
)

var errTransportClosed = errors.New("transport closed")

// fakeTransport is an in-memory duplex stream. Tests push inbound frames
// with push / pushRaw and inspect outbound frames with envelopes.
type fakeTransport struct {
	mu        sync.Mutex
	writes    [][]byte
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (t *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case msg, ok := <-t.in:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-t.closed:
		return nil, errTransportClosed
	}
}

func (t *fakeTransport) WriteMessage(data []byte) error {
	select {
	case <-t.closed:
		return errTransportClosed
	default:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

// push sends a control frame as the remote peer.
func (t *fakeTransport) push(frame string) {
	t.in <- []byte(frame)
}

// disconnect simulates the peer closing the connection gracefully.
func (t *fakeTransport) disconnect() {
	close(t.in)
}

// envelopes decodes everything written to the peer so far.
func (t *fakeTransport) envelopes() []Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Envelope, 0, len(t.writes))
	for _, data := range t.writes {
		var env Envelope
		if err := json.Unmarshal(data, &env); err == nil {
			out = append(out, env)
		}
	}
	return out
}

// received reports whether an envelope of the given type has been written.
func (t *fakeTransport) received(msgType string) bool {
	for _, env := range t.envelopes() {
		if env.Type == msgType {
			return true
		}
	}
	return false
}

// countReceived counts envelopes of the given type written so far.
func (t *fakeTransport) countReceived(msgType string) int {
	n := 0
	for _, env := range t.envelopes() {
		if env.Type == msgType {
			n++
		}
	}
	return n
}

// stallingTransport never completes a write until released, to exercise the
// full-queue drop policy.
type stallingTransport struct {
	gate      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func newStallingTransport() *stallingTransport {
	return &stallingTransport{
		gate:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

func (t *stallingTransport) ReadMessage() ([]byte, error) {
	<-t.closed
	return nil, errTransportClosed
}

func (t *stallingTransport) WriteMessage(data []byte) error {
	select {
	case <-t.gate:
		return nil
	case <-t.closed:
		return errTransportClosed
	}
}

func (t *stallingTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}
