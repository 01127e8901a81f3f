package mqtt

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AaronLay10/SignalGrid/internal/events"
	"github.com/AaronLay10/SignalGrid/internal/grid"
)

// StatePublisher publishes retained node state on every grid change and
// watches the broker connection.
type StatePublisher struct {
	client   Conn
	topics   Topics
	bindings *BindingRegistry
	queue    chan grid.Change
	dropped  atomic.Uint64
	onState  func(connected bool)

	mu        sync.Mutex
	connected bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewStatePublisher creates a publisher with a bounded queue. onState is
// called on every connection transition and may be nil.
func NewStatePublisher(client Conn, topics Topics, bindings *BindingRegistry, queueSize int, onState func(bool)) *StatePublisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &StatePublisher{
		client:   client,
		topics:   topics,
		bindings: bindings,
		queue:    make(chan grid.Change, queueSize),
		onState:  onState,
		stopCh:   make(chan struct{}),
	}
}

// Handle queues a change without blocking. It is meant as a grid change
// listener; changes are dropped when the queue is full.
func (p *StatePublisher) Handle(c grid.Change) {
	select {
	case p.queue <- c:
	default:
		p.dropped.Add(1)
	}
}

// Dropped returns the number of changes lost to a full queue.
func (p *StatePublisher) Dropped() uint64 { return p.dropped.Load() }

// Start begins the publish loop and the connection check loop.
func (p *StatePublisher) Start(checkInterval time.Duration) {
	p.wg.Add(2)
	go p.publishLoop()
	go p.healthCheckLoop(checkInterval)
}

// Stop stops both loops. Queued changes are published first.
func (p *StatePublisher) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *StatePublisher) publishLoop() {
	defer p.wg.Done()
	for {
		select {
		case c := <-p.queue:
			p.publish(c)
		case <-p.stopCh:
			for {
				select {
				case c := <-p.queue:
					p.publish(c)
				default:
					return
				}
			}
		}
	}
}

func (p *StatePublisher) publish(c grid.Change) {
	if !p.client.IsConnected() {
		return
	}
	topic := p.topics.State(c.Pos)
	var payload []byte
	if !c.Removed {
		st := StatePayload{Powered: c.Powered, Power: c.Power, Tick: c.Tick, Type: c.Type}
		if p.bindings != nil {
			st.Alias, _ = p.bindings.AliasFor(c.Pos)
		}
		payload, _ = json.Marshal(st)
	}
	// An empty retained payload clears the state of a removed node.
	if err := p.client.Publish(topic, true, payload); err != nil {
		events.Emit("error", "bridge.error", "publish failed", map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		})
	}
}

func (p *StatePublisher) healthCheckLoop(interval time.Duration) {
	defer p.wg.Done()

	p.CheckConnection()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.CheckConnection()
		}
	}
}

// CheckConnection compares the broker state with the last seen one and
// reports transitions.
func (p *StatePublisher) CheckConnection() {
	now := p.client.IsConnected()

	p.mu.Lock()
	changed := now != p.connected
	p.connected = now
	p.mu.Unlock()

	if !changed {
		return
	}
	if now {
		events.Emit("info", "bridge.connected", "", map[string]interface{}{"root": p.topics.Root})
	} else {
		events.Emit("warn", "bridge.disconnected", "broker connection lost", map[string]interface{}{"root": p.topics.Root})
	}
	if p.onState != nil {
		p.onState(now)
	}
}

// Connected returns the last observed broker state.
func (p *StatePublisher) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}
