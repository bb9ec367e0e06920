package realtime

import (
	"log"
	"sync/atomic"
)

// Dispatcher is a stateless façade over the registry that performs targeted
// and broadcast sends. Every broadcast encodes the envelope once, snapshots
// the matching clients under the registry lock, then writes outside it so a
// slow client never stalls delivery to the others. Delivery is best-effort,
// at-most-once per target per call.
type Dispatcher struct {
	registry *Registry
	closed   atomic.Bool

	// onDeadClient is invoked for a client whose send queue is full (not
	// draining). The hub wires this to its drop path.
	onDeadClient func(c *client)
}

func NewDispatcher(registry *Registry, onDeadClient func(c *client)) *Dispatcher {
	return &Dispatcher{registry: registry, onDeadClient: onDeadClient}
}

// SendTo delivers an envelope to one connection. Unknown or unwritable
// connections are silently skipped; they are presumed mid-cleanup.
func (d *Dispatcher) SendTo(id string, env Envelope) {
	c, ok := d.registry.getClient(id)
	if !ok {
		return
	}
	data, err := env.Encode()
	if err != nil {
		log.Printf("realtime: encode %s envelope: %v", env.Type, err)
		return
	}
	d.deliver([]*client{c}, data)
}

// BroadcastToUser fans an envelope out to every connection bound to userID.
func (d *Dispatcher) BroadcastToUser(userID string, env Envelope) {
	d.fanOut(d.registry.clientsByUser(userID), env)
}

// BroadcastToRoom fans an envelope out to every connection in the room,
// optionally excluding one connection (the acting client). Pass "" to
// exclude nobody.
func (d *Dispatcher) BroadcastToRoom(room string, env Envelope, excludeID string) {
	d.fanOut(d.registry.clientsByRoom(room, excludeID), env)
}

// BroadcastToRole fans an envelope out to every connection bound to role.
func (d *Dispatcher) BroadcastToRole(role string, env Envelope) {
	d.fanOut(d.registry.clientsByRole(role), env)
}

// BroadcastToAll fans an envelope out to every live connection,
// authenticated or not.
func (d *Dispatcher) BroadcastToAll(env Envelope) {
	d.fanOut(d.registry.allClients(), env)
}

// Close makes all subsequent sends no-ops. In-flight broadcasts run to
// completion over their snapshot.
func (d *Dispatcher) Close() {
	d.closed.Store(true)
}

func (d *Dispatcher) fanOut(targets []*client, env Envelope) {
	if len(targets) == 0 {
		return
	}
	data, err := env.Encode()
	if err != nil {
		log.Printf("realtime: encode %s envelope: %v", env.Type, err)
		return
	}
	d.deliver(targets, data)
}

func (d *Dispatcher) deliver(targets []*client, data []byte) {
	if d.closed.Load() {
		return
	}
	var dead []*client
	for _, c := range targets {
		if !c.send(data) {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		if d.onDeadClient != nil {
			d.onDeadClient(c)
		}
	}
}
