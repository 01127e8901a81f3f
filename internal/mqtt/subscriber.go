package mqtt

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/SignalGrid/internal/events"
	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/node"
)

// Target is the grid surface commands are applied to.
type Target interface {
	Activate(p geom.Pos) (bool, error)
	Cycle(p geom.Pos, double bool) (node.CycleResult, error)
	Reset(p geom.Pos) error
	SetPulseTime(p geom.Pos, items int) (bool, error)
	SetTint(p geom.Pos, color int) error
	SecondaryClick(p geom.Pos) (bool, error)
	SetInput(p geom.Pos, level int) error
}

// Topics builds the topic names under signalgrid/<grid-id>/.
type Topics struct {
	Root string
}

// NewTopics returns the topic set for a grid.
func NewTopics(gridID string) Topics {
	return Topics{Root: "signalgrid/" + gridID + "/"}
}

func (t Topics) NodeCommands() string { return t.Root + "node/+/cmd" }
func (t Topics) Inputs() string       { return t.Root + "input/+" }

// State is the retained state topic of the node at p.
func (t Topics) State(p geom.Pos) string { return t.Root + "node/" + p.String() + "/state" }

// segment extracts the wildcard segment of topic for a pattern with one
// "+" in it.
func (t Topics) segment(topic, pattern string) (string, bool) {
	i := strings.Index(pattern, "+")
	prefix, suffix := pattern[:i], pattern[i+1:]
	if !strings.HasPrefix(topic, prefix) || !strings.HasSuffix(topic, suffix) || len(topic) < len(prefix)+len(suffix) {
		return "", false
	}
	seg := topic[len(prefix) : len(topic)-len(suffix)]
	if seg == "" || strings.Contains(seg, "/") {
		return "", false
	}
	return seg, true
}

// CommandSubscriber applies MQTT node commands and inputs to the grid.
// It ensures idempotent subscription handling across reconnects.
type CommandSubscriber struct {
	mu         sync.RWMutex
	client     Conn
	target     Target
	bindings   *BindingRegistry
	topics     Topics
	subscribed map[string]bool // topic -> subscribed
}

// NewCommandSubscriber creates a new command subscriber.
func NewCommandSubscriber(client Conn, target Target, bindings *BindingRegistry, topics Topics) *CommandSubscriber {
	if bindings == nil {
		bindings = NewBindingRegistry()
	}
	return &CommandSubscriber{
		client:     client,
		target:     target,
		bindings:   bindings,
		topics:     topics,
		subscribed: make(map[string]bool),
	}
}

// SubscribeAll subscribes to the command and input topics. Topics already
// subscribed are skipped.
func (s *CommandSubscriber) SubscribeAll() error {
	for _, sub := range []struct {
		topic   string
		handler paho.MessageHandler
	}{
		{s.topics.NodeCommands(), s.handleCommand},
		{s.topics.Inputs(), s.handleInput},
	} {
		if err := s.subscribe(sub.topic, sub.handler); err != nil {
			events.Emit("error", "bridge.error", "failed to subscribe", map[string]interface{}{
				"topic": sub.topic,
				"error": err.Error(),
			})
			return err
		}
	}
	return nil
}

func (s *CommandSubscriber) subscribe(topic string, handler paho.MessageHandler) error {
	s.mu.Lock()
	if s.subscribed[topic] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.client.Subscribe(topic, handler); err != nil {
		return err
	}

	s.mu.Lock()
	s.subscribed[topic] = true
	s.mu.Unlock()
	return nil
}

func (s *CommandSubscriber) handleCommand(_ paho.Client, msg paho.Message) {
	seg, ok := s.topics.segment(msg.Topic(), s.topics.NodeCommands())
	if !ok {
		return
	}
	if err := s.HandleCommand(seg, msg.Payload()); err != nil {
		s.reject(msg.Topic(), err)
	}
}

func (s *CommandSubscriber) handleInput(_ paho.Client, msg paho.Message) {
	seg, ok := s.topics.segment(msg.Topic(), s.topics.Inputs())
	if !ok {
		return
	}
	if err := s.HandleInput(seg, msg.Payload()); err != nil {
		s.reject(msg.Topic(), err)
	}
}

func (s *CommandSubscriber) reject(topic string, err error) {
	events.Emit("warn", "bridge.error", "command rejected", map[string]interface{}{
		"topic": topic,
		"error": err.Error(),
	})
}

// HandleCommand applies one command payload to the node named by segment.
func (s *CommandSubscriber) HandleCommand(segment string, payload []byte) error {
	p, err := s.bindings.Resolve(segment)
	if err != nil {
		return err
	}
	cmd, err := ParseCommand(payload)
	if err != nil {
		return err
	}

	var result string
	switch cmd.Action {
	case ActionActivate:
		var ok bool
		ok, err = s.target.Activate(p)
		result = accepted(ok)
	case ActionCycle, ActionDoubleCycle:
		var r node.CycleResult
		r, err = s.target.Cycle(p, cmd.Action == ActionDoubleCycle)
		result = r.String()
	case ActionReset:
		err = s.target.Reset(p)
		result = "ok"
	case ActionPulseTime:
		var ok bool
		ok, err = s.target.SetPulseTime(p, cmd.Value)
		result = accepted(ok)
	case ActionTint:
		err = s.target.SetTint(p, cmd.Value)
		result = "ok"
	case ActionSecondary:
		var ok bool
		ok, err = s.target.SecondaryClick(p)
		result = accepted(ok)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", cmd.Action, p, err)
	}
	events.Emit("info", "bridge.command", "", map[string]interface{}{
		"pos":    p.String(),
		"action": cmd.Action,
		"value":  cmd.Value,
		"result": result,
	})
	return nil
}

// HandleInput sets the external signal level at the cell named by segment.
func (s *CommandSubscriber) HandleInput(segment string, payload []byte) error {
	p, err := s.bindings.Resolve(segment)
	if err != nil {
		return err
	}
	level, err := ParseInput(payload)
	if err != nil {
		return err
	}
	if err := s.target.SetInput(p, level); err != nil {
		return fmt.Errorf("input %s: %w", p, err)
	}
	events.Emit("info", "bridge.command", "", map[string]interface{}{
		"pos":    p.String(),
		"action": "input",
		"value":  level,
	})
	return nil
}

func accepted(ok bool) string {
	if ok {
		return "ok"
	}
	return "ignored"
}

// IsSubscribed returns true if the topic is already subscribed.
func (s *CommandSubscriber) IsSubscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscribed[topic]
}

// SubscribedTopics returns the subscribed topics in order.
func (s *CommandSubscriber) SubscribedTopics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]string, 0, len(s.subscribed))
	for topic := range s.subscribed {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// ClearSubscriptions clears the subscription tracking.
// Call this on disconnect to allow re-subscription on reconnect.
func (s *CommandSubscriber) ClearSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = make(map[string]bool)
}
