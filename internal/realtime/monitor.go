package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultProbeInterval is how often the monitor probes live connections.
	DefaultProbeInterval = 10 * time.Second
	// DefaultTimeoutWindow is how long a connection may stay silent before
	// it is evicted.
	DefaultTimeoutWindow = 30 * time.Second
)

// Monitor is the single background task that probes every live connection
// on a fixed tick and evicts the ones whose silence exceeded the timeout
// window. Ticks run one at a time on the monitor goroutine, so a slow tick
// delays the next rather than overlapping it.
type Monitor struct {
	registry *Registry
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration

	// onEvict is invoked for each stale connection; the hub wires this to
	// its drop path, which closes the transport and emits user_left.
	onEvict func(c *client)

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMonitor(registry *Registry, clock clockwork.Clock, interval, timeout time.Duration, onEvict func(c *client)) *Monitor {
	return &Monitor{
		registry: registry,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
		onEvict:  onEvict,
		stop:     make(chan struct{}),
	}
}

// Start launches the tick loop. Call Stop to end it.
func (m *Monitor) Start() {
	go m.run()
}

// Stop terminates the tick loop. Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) run() {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.Chan():
			m.tick()
		}
	}
}

// tick scans once: stale connections are evicted, the rest get a ping
// probe through their send queue. The scan is a snapshot; a connection
// unregistered between scan and eviction is handled by Unregister being
// idempotent.
func (m *Monitor) tick() {
	probe, stale := m.registry.scanLiveness(m.timeout)

	for _, c := range stale {
		log.Printf("realtime: evicting silent connection %s", c.id)
		m.onEvict(c)
	}

	if len(probe) == 0 {
		return
	}
	env, err := NewEnvelope(TypePing, nil)
	if err != nil {
		return
	}
	data, err := env.Encode()
	if err != nil {
		return
	}
	for _, c := range probe {
		// Probe failures are not eviction on their own; the connection
		// still has until the timeout window to answer.
		c.send(data)
	}
}
