package realtime

import (
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Options tunes the hub; zero values fall back to the defaults.
type Options struct {
	ProbeInterval time.Duration
	TimeoutWindow time.Duration
	Clock         clockwork.Clock
}

// Hub ties the registry, dispatcher and liveness monitor together and runs
// the per-connection protocol: accept, authenticate, join/leave rooms,
// answer pings, tear down on error. Handlers and services hold a *Hub and
// call its broadcast methods after persisting a state change.
type Hub struct {
	registry   *Registry
	dispatcher *Dispatcher
	monitor    *Monitor
	closed     atomic.Bool
}

// NewHub builds a hub and starts its liveness monitor. The hub is an owned
// instance injected into handlers, not a process-wide singleton.
func NewHub(opts Options) *Hub {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = DefaultProbeInterval
	}
	if opts.TimeoutWindow <= 0 {
		opts.TimeoutWindow = DefaultTimeoutWindow
	}

	h := &Hub{}
	h.registry = NewRegistry(opts.Clock)
	h.dispatcher = NewDispatcher(h.registry, h.drop)
	h.monitor = NewMonitor(h.registry, opts.Clock, opts.ProbeInterval, opts.TimeoutWindow, h.drop)
	h.monitor.Start()
	return h
}

// Registry exposes the connection registry for lookups and stats.
func (h *Hub) Registry() *Registry { return h.registry }

// Stats reports the current connection population for health endpoints.
func (h *Hub) Stats() Stats { return h.registry.Stats() }

// SendTo delivers an envelope to a single connection.
func (h *Hub) SendTo(id string, env Envelope) { h.dispatcher.SendTo(id, env) }

// BroadcastToUser fans out to every connection of a user.
func (h *Hub) BroadcastToUser(userID string, env Envelope) {
	h.dispatcher.BroadcastToUser(userID, env)
}

// BroadcastToRoom fans out to a room, optionally excluding one connection.
func (h *Hub) BroadcastToRoom(room string, env Envelope, excludeID string) {
	h.dispatcher.BroadcastToRoom(room, env, excludeID)
}

// BroadcastToRole fans out to every connection bound to a role.
func (h *Hub) BroadcastToRole(role string, env Envelope) {
	h.dispatcher.BroadcastToRole(role, env)
}

// BroadcastToAll fans out to every live connection.
func (h *Hub) BroadcastToAll(env Envelope) { h.dispatcher.BroadcastToAll(env) }

// Accept registers the transport and runs its read loop until the peer
// disconnects, the transport fails, or the hub shuts down. It blocks for
// the life of the connection; the upgrade handler calls it from the
// per-connection goroutine the HTTP server already provides.
func (h *Hub) Accept(transport Transport) error {
	if h.closed.Load() {
		_ = transport.Close()
		return ErrRegistryClosed
	}
	id, err := h.registry.Register(transport)
	if err != nil {
		_ = transport.Close()
		return err
	}
	h.readLoop(id, transport)
	return nil
}

// Shutdown stops the monitor, rejects further registrations and
// broadcasts, and closes every connection.
func (h *Hub) Shutdown() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	h.monitor.Stop()
	h.dispatcher.Close()
	for _, c := range h.registry.Close() {
		c.close()
	}
}

func (h *Hub) readLoop(id string, transport Transport) {
	defer h.dropByID(id)
	for {
		data, err := transport.ReadMessage()
		if err != nil {
			// Graceful close or transport error; either way this tears
			// down this connection only.
			return
		}
		env, err := DecodeEnvelope(data)
		if err != nil {
			h.replyError(id, "malformed message")
			continue
		}
		h.handleControl(id, env)
	}
}

func (h *Hub) handleControl(id string, env Envelope) {
	switch env.Type {
	case TypeAuthenticate:
		h.handleAuthenticate(id, env)
	case TypeJoinRoom:
		h.handleJoinRoom(id, env.Room)
	case TypeLeaveRoom:
		h.handleLeaveRoom(id, env.Room)
	case TypePing:
		h.registry.Touch(id)
		if pong, err := NewEnvelope(TypePong, nil); err == nil {
			h.dispatcher.SendTo(id, pong)
		}
	case TypePong:
		h.registry.Touch(id)
	default:
		h.replyError(id, "unknown message type: "+env.Type)
	}
}

// handleAuthenticate binds (or rebinds) the connection's identity. The
// binding is indexed before the acknowledgment is sent, so any lookup that
// observes the ack also observes the identity.
func (h *Hub) handleAuthenticate(id string, env Envelope) {
	var payload AuthPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			h.replyError(id, "malformed authenticate payload")
			return
		}
	}
	if payload.UserID == "" {
		payload.UserID = env.UserID
	}
	if payload.UserID == "" {
		h.replyError(id, "authenticate requires userId")
		return
	}

	identity := Identity{UserID: payload.UserID, Role: payload.Role, RoomNumber: payload.RoomNumber}
	if err := h.registry.Bind(id, identity); err != nil {
		return
	}
	h.replyInfo(id, "authenticated")

	// Guests announcing a room number are placed in that room right away.
	if payload.RoomNumber != "" {
		h.joinRoom(id, payload.RoomNumber, identity)
	}
}

func (h *Hub) handleJoinRoom(id, room string) {
	identity, ok := h.registry.Identity(id)
	if !ok {
		h.replyError(id, "authenticate before joining a room")
		return
	}
	if room == "" {
		h.replyError(id, "join_room requires a room")
		return
	}
	h.joinRoom(id, room, identity)
}

func (h *Hub) joinRoom(id, room string, identity Identity) {
	joined, err := h.registry.JoinRoom(id, room)
	if err != nil || !joined {
		// Already a member (or gone); joining twice produces no duplicate
		// presence event.
		return
	}
	h.broadcastPresence(TypeUserJoined, room, identity, id)
}

func (h *Hub) handleLeaveRoom(id, room string) {
	identity, ok := h.registry.Identity(id)
	if !ok {
		h.replyError(id, "authenticate before leaving a room")
		return
	}
	left, err := h.registry.LeaveRoom(id, room)
	if err != nil || !left {
		return
	}
	h.broadcastPresence(TypeUserLeft, room, identity, id)
}

// drop evicts a client: unregister, close the transport, and announce the
// departure to each room it was in. Safe to call for a client that is
// already gone.
func (h *Hub) drop(c *client) {
	identity, rooms, removed := h.registry.Unregister(c.id)
	c.close()
	if !removed {
		return
	}
	for _, room := range rooms {
		h.broadcastPresence(TypeUserLeft, room, identity, c.id)
	}
}

func (h *Hub) dropByID(id string) {
	if c, ok := h.registry.getClient(id); ok {
		h.drop(c)
	}
}

func (h *Hub) broadcastPresence(eventType, room string, identity Identity, excludeID string) {
	env, err := NewEnvelope(eventType, presencePayload{
		UserID: identity.UserID,
		Role:   identity.Role,
		Room:   room,
	})
	if err != nil {
		log.Printf("realtime: build %s event: %v", eventType, err)
		return
	}
	env.Room = room
	h.dispatcher.BroadcastToRoom(room, env, excludeID)
}

func (h *Hub) replyInfo(id, message string) {
	if env, err := NewEnvelope(TypeSystemMessage, systemMessage{Message: message}); err == nil {
		h.dispatcher.SendTo(id, env)
	}
}

func (h *Hub) replyError(id, message string) {
	if env, err := NewEnvelope(TypeSystemMessage, systemMessage{Message: message, Error: true}); err == nil {
		h.dispatcher.SendTo(id, env)
	}
}
