package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/grid"
	"github.com/AaronLay10/SignalGrid/internal/node"
)

// mockConn is a mock broker connection recording subscriptions and
// publishes.
type mockConn struct {
	mu            sync.Mutex
	subscriptions map[string]paho.MessageHandler
	published     []published
	connected     bool
	failSubscribe error
}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

func newMockConn() *mockConn {
	return &mockConn{
		subscriptions: make(map[string]paho.MessageHandler),
		connected:     true,
	}
}

func (m *mockConn) Subscribe(topic string, handler paho.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSubscribe != nil {
		return m.failSubscribe
	}
	m.subscriptions[topic] = handler
	return nil
}

func (m *mockConn) Publish(topic string, retained bool, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, published{topic, retained, append([]byte(nil), payload...)})
	return nil
}

func (m *mockConn) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockConn) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *mockConn) messages() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.published...)
}

// deliver routes a message to the handler whose filter matches topic.
func (m *mockConn) deliver(t *testing.T, filter, topic string, payload []byte) {
	t.Helper()
	m.mu.Lock()
	handler, ok := m.subscriptions[filter]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for %s", filter)
	}
	handler(nil, &mockMessage{topic: topic, payload: payload})
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

func newTestGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g := grid.New("lab")
	if _, err := g.Place("lever", geom.Pos{X: 1}, geom.South, node.Params{}); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Place("button", geom.Pos{X: 3}, geom.South, node.Params{}); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestSubscribeAllIsIdempotent(t *testing.T) {
	conn := newMockConn()
	s := NewCommandSubscriber(conn, newTestGrid(t), nil, NewTopics("lab"))

	if err := s.SubscribeAll(); err != nil {
		t.Fatal(err)
	}
	if err := s.SubscribeAll(); err != nil {
		t.Fatal(err)
	}
	topics := s.SubscribedTopics()
	want := []string{"signalgrid/lab/input/+", "signalgrid/lab/node/+/cmd"}
	if len(topics) != 2 || topics[0] != want[0] || topics[1] != want[1] {
		t.Errorf("expected %v, got %v", want, topics)
	}

	s.ClearSubscriptions()
	if s.IsSubscribed(want[0]) {
		t.Error("subscriptions should be cleared")
	}
}

func TestSubscribeFailure(t *testing.T) {
	conn := newMockConn()
	conn.failSubscribe = &SubscribeTimeoutError{Topic: "x"}
	s := NewCommandSubscriber(conn, newTestGrid(t), nil, NewTopics("lab"))
	err := s.SubscribeAll()
	var te *SubscribeTimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected SubscribeTimeoutError, got %v", err)
	}
	if len(s.SubscribedTopics()) != 0 {
		t.Error("failed topics must not be tracked")
	}
}

func TestCommandByPositionAndAlias(t *testing.T) {
	conn := newMockConn()
	g := newTestGrid(t)
	bindings := NewBindingRegistry()
	if err := bindings.Bind("door_lever", geom.Pos{X: 1}); err != nil {
		t.Fatal(err)
	}
	topics := NewTopics("lab")
	s := NewCommandSubscriber(conn, g, bindings, topics)
	if err := s.SubscribeAll(); err != nil {
		t.Fatal(err)
	}

	conn.deliver(t, topics.NodeCommands(), "signalgrid/lab/node/door_lever/cmd", []byte(`{"action":"activate"}`))
	v, _ := g.Node(geom.Pos{X: 1})
	if !v.Powered {
		t.Fatal("alias command should toggle the lever on")
	}

	conn.deliver(t, topics.NodeCommands(), "signalgrid/lab/node/1,0,0/cmd", []byte(`"activate"`))
	v, _ = g.Node(geom.Pos{X: 1})
	if v.Powered {
		t.Fatal("position command should toggle the lever off")
	}

	if err := s.HandleCommand("3,0,0", []byte(`{"action":"pulse_time","value":30}`)); err != nil {
		t.Fatal(err)
	}
	v, _ = g.Node(geom.Pos{X: 3})
	if v.OnTime != 60 {
		t.Errorf("expected on time 60, got %d", v.OnTime)
	}

	if err := s.HandleCommand("1,0,0", []byte(`{"action":"tint","value":7}`)); err != nil {
		t.Fatal(err)
	}
	v, _ = g.Node(geom.Pos{X: 1})
	if v.Tint != 7 {
		t.Errorf("expected tint 7, got %d", v.Tint)
	}
}

func TestCommandErrors(t *testing.T) {
	s := NewCommandSubscriber(newMockConn(), newTestGrid(t), nil, NewTopics("lab"))
	tests := []struct {
		name    string
		segment string
		payload string
	}{
		{"unknown alias", "nowhere", `{"action":"activate"}`},
		{"no node", "9,9,9", `{"action":"activate"}`},
		{"unknown action", "1,0,0", `{"action":"explode"}`},
		{"tint out of range", "1,0,0", `{"action":"tint","value":16}`},
		{"negative value", "3,0,0", `{"action":"pulse_time","value":-1}`},
		{"broken json", "1,0,0", `{"action":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.HandleCommand(tt.segment, []byte(tt.payload)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestInputDrivesRelay(t *testing.T) {
	conn := newMockConn()
	g := grid.New("lab")
	if _, err := g.Place("link_relay", geom.Pos{}, geom.South, node.Params{}); err != nil {
		t.Fatal(err)
	}
	topics := NewTopics("lab")
	s := NewCommandSubscriber(conn, g, nil, topics)
	if err := s.SubscribeAll(); err != nil {
		t.Fatal(err)
	}

	conn.deliver(t, topics.Inputs(), "signalgrid/lab/input/0,0,-1", []byte(`{"level":9}`))
	v, _ := g.Node(geom.Pos{})
	if !v.Powered || v.Input != 9 {
		t.Fatalf("relay should sample the input, got %+v", v)
	}
	if err := s.HandleInput("0,0,-1", []byte(`{"level":20}`)); err == nil {
		t.Error("level 20 should be rejected")
	}
	if err := s.HandleInput("0,0,-1", []byte(`{}`)); err == nil {
		t.Error("missing level should be rejected")
	}
	if err := s.HandleInput("0,0,0", []byte(`{"level":3}`)); !errors.Is(err, grid.ErrOccupied) {
		t.Errorf("inputs cannot sit on a node, got %v", err)
	}
}

func TestTopicSegment(t *testing.T) {
	topics := NewTopics("lab")
	tests := []struct {
		topic string
		want  string
		ok    bool
	}{
		{"signalgrid/lab/node/1,2,3/cmd", "1,2,3", true},
		{"signalgrid/lab/node/a/b/cmd", "", false},
		{"signalgrid/other/node/x/cmd", "", false},
		{"signalgrid/lab/node//cmd", "", false},
	}
	for _, tt := range tests {
		got, ok := topics.segment(tt.topic, topics.NodeCommands())
		if got != tt.want || ok != tt.ok {
			t.Errorf("segment(%q) = %q, %v; want %q, %v", tt.topic, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStatePublisher(t *testing.T) {
	conn := newMockConn()
	g := newTestGrid(t)
	bindings := NewBindingRegistry()
	bindings.Bind("door_lever", geom.Pos{X: 1})
	var states []bool
	var mu sync.Mutex
	pub := NewStatePublisher(conn, NewTopics("lab"), bindings, 16, func(up bool) {
		mu.Lock()
		states = append(states, up)
		mu.Unlock()
	})
	g.OnChange(pub.Handle)
	pub.Start(time.Hour)

	g.Activate(geom.Pos{X: 1})
	g.Remove(geom.Pos{X: 3})
	pub.Stop()

	msgs := conn.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(msgs))
	}
	if msgs[0].topic != "signalgrid/lab/node/1,0,0/state" || !msgs[0].retained {
		t.Errorf("unexpected first publish %+v", msgs[0])
	}
	want := `{"powered":true,"power":15,"tick":0,"type":"lever","alias":"door_lever"}`
	if string(msgs[0].payload) != want {
		t.Errorf("payload = %s, want %s", msgs[0].payload, want)
	}
	if msgs[1].topic != "signalgrid/lab/node/3,0,0/state" || len(msgs[1].payload) != 0 {
		t.Errorf("removal should clear the retained state, got %+v", msgs[1])
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 1 || !states[0] {
		t.Errorf("expected one connected transition, got %v", states)
	}
}

func TestStatePublisherConnectionTransitions(t *testing.T) {
	conn := newMockConn()
	var states []bool
	pub := NewStatePublisher(conn, NewTopics("lab"), nil, 1, func(up bool) { states = append(states, up) })

	pub.CheckConnection()
	pub.CheckConnection()
	conn.setConnected(false)
	pub.CheckConnection()
	if len(states) != 2 || !states[0] || states[1] {
		t.Errorf("expected [true false], got %v", states)
	}
	if pub.Connected() {
		t.Error("publisher should report disconnected")
	}

	pub.Handle(grid.Change{})
	pub.Handle(grid.Change{})
	if pub.Dropped() != 1 {
		t.Errorf("expected one dropped change, got %d", pub.Dropped())
	}
}
