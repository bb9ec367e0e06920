package handlers

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"hotel-operations-api/internal/realtime"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// memTransport is an in-memory duplex stream for exercising the hub from
// handler tests without a real websocket.
type memTransport struct {
	mu        sync.Mutex
	writes    [][]byte
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newMemTransport() *memTransport {
	return &memTransport{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (t *memTransport) ReadMessage() ([]byte, error) {
	select {
	case msg := <-t.in:
		return msg, nil
	case <-t.closed:
		return nil, io.EOF
	}
}

func (t *memTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, append([]byte(nil), data...))
	return nil
}

func (t *memTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *memTransport) received(msgType string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, data := range t.writes {
		var env realtime.Envelope
		if err := json.Unmarshal(data, &env); err == nil && env.Type == msgType {
			return true
		}
	}
	return false
}

func newTestHub(t *testing.T) *realtime.Hub {
	t.Helper()
	hub := realtime.NewHub(realtime.Options{Clock: clockwork.NewFakeClock()})
	t.Cleanup(hub.Shutdown)
	return hub
}

// connectAs attaches an authenticated connection to the hub.
func connectAs(t *testing.T, hub *realtime.Hub, userID, role, room string) *memTransport {
	t.Helper()
	mt := newMemTransport()
	go func() { _ = hub.Accept(mt) }()

	payload := map[string]string{"userId": userID, "role": role}
	if room != "" {
		payload["roomNumber"] = room
	}
	frame, err := json.Marshal(map[string]any{"type": "authenticate", "payload": payload})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		select {
		case mt.in <- frame:
		default:
		}
		return len(hub.Registry().LookupByUser(userID)) > 0
	}, time.Second, 5*time.Millisecond)
	return mt
}
