package grid

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/node"
	"github.com/AaronLay10/SignalGrid/internal/sensor"
)

type memStore struct {
	mu      sync.Mutex
	recs    map[geom.Pos]node.Record
	deletes int
	fail    error
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[geom.Pos]node.Record)}
}

func (m *memStore) SaveNodes(ctx context.Context, recs []node.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	for _, r := range recs {
		m.recs[r.Pos] = r
	}
	return nil
}

func (m *memStore) LoadNodes(ctx context.Context) ([]node.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []node.Record
	for _, r := range m.recs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) DeleteNode(ctx context.Context, p geom.Pos) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, p)
	m.deletes++
	return nil
}

func mustPlace(t *testing.T, g *Grid, typ string, p geom.Pos, facing geom.Direction, params node.Params) {
	t.Helper()
	if _, err := g.Place(typ, p, facing, params); err != nil {
		t.Fatalf("place %s at %s: %v", typ, p, err)
	}
}

func powered(t *testing.T, g *Grid, p geom.Pos) bool {
	t.Helper()
	v, err := g.Node(p)
	if err != nil {
		t.Fatalf("node %s: %v", p, err)
	}
	return v.Powered
}

func TestPlaceErrors(t *testing.T) {
	g := New("test")
	mustPlace(t, g, "lever", geom.Pos{}, geom.South, node.Params{})

	if _, err := g.Place("lever", geom.Pos{}, geom.South, node.Params{}); !errors.Is(err, ErrOccupied) {
		t.Errorf("expected ErrOccupied, got %v", err)
	}
	if _, err := g.Place("teleporter", geom.Pos{X: 1}, geom.South, node.Params{}); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
	if _, err := g.Activate(geom.Pos{X: 9}); !errors.Is(err, ErrNoNode) {
		t.Errorf("expected ErrNoNode, got %v", err)
	}
	cell, _ := NewCell("stone", "solid", "stone")
	if err := g.SetCell(geom.Pos{}, cell); !errors.Is(err, ErrOccupied) {
		t.Errorf("cells cannot replace nodes, got %v", err)
	}
}

func TestButtonPulseThroughGrid(t *testing.T) {
	g := New("test")
	p := geom.Pos{X: 1}
	mustPlace(t, g, "button", p, geom.North, node.Params{})

	var changes []Change
	g.OnChange(func(c Change) { changes = append(changes, c) })

	if ok, err := g.Activate(p); err != nil || !ok {
		t.Fatalf("activate: %v %v", ok, err)
	}
	g.StepN(19)
	if !powered(t, g, p) {
		t.Fatal("button released early")
	}
	g.StepN(2)
	if powered(t, g, p) {
		t.Fatal("button should have released after 20 ticks")
	}
	if len(changes) < 2 || !changes[0].Powered || changes[len(changes)-1].Powered {
		t.Errorf("expected on then off changes, got %+v", changes)
	}
}

func TestRemovedNodeTicksAreDropped(t *testing.T) {
	g := New("test")
	p := geom.Pos{}
	mustPlace(t, g, "button", p, geom.North, node.Params{})
	g.Activate(p)
	if _, err := g.Remove(p); err != nil {
		t.Fatal(err)
	}
	mustPlace(t, g, "button", p, geom.North, node.Params{})
	if g.host.IsTickScheduled(p) {
		t.Fatal("the replacement must not inherit the old node's tick")
	}
	g.StepN(25)
	if powered(t, g, p) {
		t.Error("replacement should be idle")
	}
}

func TestRelayForwardsExternalInput(t *testing.T) {
	g := New("test")
	relay := geom.Pos{}
	lever := geom.Pos{X: 4}
	mustPlace(t, g, "link_relay", relay, geom.South, node.Params{})
	mustPlace(t, g, "lever", lever, geom.South, node.Params{})

	if r, err := g.LinkTo(relay, lever, node.ModeAsState); err != nil || r != node.Assigned {
		t.Fatalf("link: %v %v", r, err)
	}
	behind := geom.Pos{Z: -1}
	if err := g.SetInput(behind, 12); err != nil {
		t.Fatal(err)
	}
	v, _ := g.Node(relay)
	if !v.Powered || v.Input != 12 {
		t.Fatalf("relay should sample 12, got %+v", v)
	}
	if !powered(t, g, lever) {
		t.Fatal("lever should follow the relay")
	}

	g.Step()
	g.SetInput(behind, 0)
	if powered(t, g, relay) || powered(t, g, lever) {
		t.Error("both should switch off when the input drops")
	}
}

func TestLinkToRejectsUnsupportedMode(t *testing.T) {
	g := New("test")
	mustPlace(t, g, "lever", geom.Pos{}, geom.South, node.Params{})
	mustPlace(t, g, "button", geom.Pos{X: 2}, geom.South, node.Params{})
	if _, err := g.LinkTo(geom.Pos{}, geom.Pos{X: 2}, node.ModeAsState); err == nil {
		t.Error("pulse targets do not support as_state")
	}
	r, err := g.LinkTo(geom.Pos{}, geom.Pos{X: 2}, node.ModeToggle)
	if err != nil || r != node.Assigned {
		t.Fatalf("expected assignment, got %v %v", r, err)
	}
	r, _ = g.LinkTo(geom.Pos{}, geom.Pos{X: 2}, node.ModeToggle)
	if r != node.ErrAlreadyLinked {
		t.Errorf("expected already linked, got %s", r)
	}
}

func TestLightSensorFollowsDaylight(t *testing.T) {
	g := New("test", WithEnvironment(Environment{DayTime: 1000, SkyLight: 15, Frozen: true}))
	p := geom.Pos{Y: 3}
	mustPlace(t, g, "light_sensor", p, geom.North, node.Params{})
	g.StepN(40)
	if !powered(t, g, p) {
		t.Fatal("light sensor should be on in daylight")
	}

	night := int64(15000)
	g.UpdateWorld(WorldUpdate{DayTime: &night})
	g.StepN(20)
	if powered(t, g, p) {
		t.Fatal("light sensor should be off at night")
	}

	day := int64(2000)
	g.UpdateWorld(WorldUpdate{DayTime: &day})
	roof, _ := NewCell("roof", "solid")
	g.SetCell(geom.Pos{Y: 10}, roof)
	g.StepN(20)
	if powered(t, g, p) {
		t.Fatal("a roof should shade the sensor")
	}
}

func TestContactMatFromEntity(t *testing.T) {
	g := New("test")
	p := geom.Pos{X: 2, Z: 2}
	mustPlace(t, g, "contact_mat", p, geom.North, node.Params{})

	g.PutEntity(sensor.Entity{ID: "alice", Class: sensor.ClassPlayer, Pos: geom.Vec3{X: 2.5, Y: 0.2, Z: 2.5}})
	if !powered(t, g, p) {
		t.Fatal("mat should switch on when stepped on")
	}
	g.StepN(30)
	if !powered(t, g, p) {
		t.Fatal("mat should stay on while occupied")
	}
	g.RemoveEntity("alice")
	g.StepN(45)
	if powered(t, g, p) {
		t.Fatal("mat should release after the entity leaves")
	}
}

func TestSamplerReadsOverride(t *testing.T) {
	g := New("test")
	p := geom.Pos{}
	mustPlace(t, g, "level_sampler", p, geom.East, node.Params{})
	g.Step()
	g.SetOverride(geom.Pos{X: -1}, 5)
	g.Step()
	if !powered(t, g, p) {
		t.Fatal("sampler should switch on after the override appears")
	}
}

func TestObserverSeesCell(t *testing.T) {
	g := New("test")
	p := geom.Pos{}
	mustPlace(t, g, "pattern_observer", p, geom.East, node.Params{Range: 3, Threshold: 1, Matcher: "crop"})
	g.Step()
	wheat, _ := NewCell("wheat", "plant", "crop")
	g.SetCell(geom.Pos{X: 1}, wheat)
	g.StepN(2)
	if !powered(t, g, p) {
		t.Fatal("observer should see the crop")
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	g := New("test")
	p := geom.Pos{}
	on := 4
	mustPlace(t, g, "lever", p, geom.South, node.Params{OnPower: &on})
	g.Activate(p)
	g.SetTint(p, 9)
	if err := g.Reset(p); err != nil {
		t.Fatal(err)
	}
	v, _ := g.Node(p)
	if v.Powered || v.OnPower != 4 || v.Tint != 0 {
		t.Errorf("reset should restore placement config, got %+v", v)
	}
	if err := g.SetTint(p, 16); err == nil {
		t.Error("tint 16 should be rejected")
	}
}

func TestFlushAndLoad(t *testing.T) {
	store := newMemStore()
	g := New("test", WithStore(store))
	mustPlace(t, g, "lever", geom.Pos{}, geom.South, node.Params{})
	mustPlace(t, g, "button", geom.Pos{X: 3}, geom.South, node.Params{})
	g.LinkTo(geom.Pos{}, geom.Pos{X: 3}, node.ModeActivate)
	g.Activate(geom.Pos{})
	if err := g.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.recs) != 2 {
		t.Fatalf("expected 2 stored records, got %d", len(store.recs))
	}

	g.Remove(geom.Pos{X: 3})
	g.Flush(context.Background())
	if len(store.recs) != 1 || store.deletes != 1 {
		t.Fatalf("expected the removal to be flushed, got %d records", len(store.recs))
	}

	h := New("test", WithStore(store))
	restored, skipped, err := h.Load(context.Background())
	if err != nil || restored != 1 || skipped != 0 {
		t.Fatalf("load: %d %d %v", restored, skipped, err)
	}
	v, _ := h.Node(geom.Pos{})
	if !v.Powered || len(v.Links) != 1 {
		t.Errorf("restored lever mismatch: %+v", v)
	}
}

func TestFlushFailureKeepsDirty(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("disk full")
	g := New("test", WithStore(store))
	mustPlace(t, g, "lever", geom.Pos{}, geom.South, node.Params{})
	if err := g.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}
	store.fail = nil
	if err := g.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.recs) != 1 {
		t.Error("the failed node should be retried")
	}
}

func TestRestoreSkipsUnknownTypes(t *testing.T) {
	g := New("test")
	restored, skipped := g.Restore([]node.Record{
		{Pos: geom.Pos{}, Type: "lever", Facing: geom.South, SCD: 0xf},
		{Pos: geom.Pos{X: 1}, Type: "warp_gate", SCD: 0xf},
	})
	if restored != 1 || skipped != 1 {
		t.Errorf("expected 1 restored, 1 skipped, got %d/%d", restored, skipped)
	}
}

func TestApplyLayoutCollectsErrors(t *testing.T) {
	g := New("test")
	err := g.ApplyLayout([]Placement{
		{Type: "lever", Pos: geom.Pos{}, Facing: geom.South,
			Links: []LinkSpec{{Target: geom.Pos{X: 2}, Mode: node.ModeToggle}, {Target: geom.Pos{X: 9}, Mode: node.ModeToggle}}},
		{Type: "button", Pos: geom.Pos{X: 2}, Facing: geom.South},
		{Type: "bogus", Pos: geom.Pos{X: 5}},
	})
	if err == nil {
		t.Fatal("expected errors for the bogus type and the missing link target")
	}
	if g.Len() != 2 {
		t.Errorf("valid placements should still apply, got %d nodes", g.Len())
	}
	v, _ := g.Node(geom.Pos{})
	if len(v.Links) != 1 {
		t.Errorf("expected the valid link, got %v", v.Links)
	}
}

func TestPolicyAppliesLive(t *testing.T) {
	g := New("test")
	mustPlace(t, g, "lever", geom.Pos{}, geom.South, node.Params{})
	mustPlace(t, g, "lever", geom.Pos{X: 2}, geom.South, node.Params{})
	g.LinkTo(geom.Pos{}, geom.Pos{X: 2}, node.ModeToggle)

	p := g.Policy()
	p.WithoutLinking = true
	g.ApplyPolicy(p)
	g.Activate(geom.Pos{})
	if powered(t, g, geom.Pos{X: 2}) {
		t.Error("linking disabled by policy should not reach the target")
	}
}

func TestRunStepsAndPauses(t *testing.T) {
	g := New("test")
	g.Pause()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := g.Run(ctx, 2*time.Millisecond, 0); err != nil {
		t.Fatal(err)
	}
	if g.Tick() != 0 {
		t.Fatalf("paused grid advanced to %d", g.Tick())
	}

	g.Resume()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	g.Run(ctx2, 2*time.Millisecond, 0)
	if g.Tick() == 0 {
		t.Fatal("running grid should advance")
	}
}

func TestUnobstructed(t *testing.T) {
	g := New("test")
	wall, _ := NewCell("wall", "solid")
	g.SetCell(geom.Pos{X: 2}, wall)
	from := geom.Vec3{X: 0.5, Y: 0.5, Z: 0.5}
	if g.host.Unobstructed(from, geom.Vec3{X: 4.5, Y: 0.5, Z: 0.5}) {
		t.Error("the wall should block the line")
	}
	if !g.host.Unobstructed(from, geom.Vec3{X: 0.5, Y: 0.5, Z: 4.5}) {
		t.Error("the side line should be clear")
	}
}
