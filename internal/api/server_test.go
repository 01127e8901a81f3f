package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AaronLay10/SignalGrid/internal/events"
	"github.com/AaronLay10/SignalGrid/internal/geom"
	"github.com/AaronLay10/SignalGrid/internal/grid"
	"github.com/AaronLay10/SignalGrid/internal/metrics"
	"github.com/AaronLay10/SignalGrid/internal/node"
)

func setReadiness(gridReady, mqtt, mqttOpt, store, storeOpt bool) {
	readiness.mu.Lock()
	defer readiness.mu.Unlock()
	readiness.gridReady = gridReady
	readiness.mqttConnected = mqtt
	readiness.mqttOptional = mqttOpt
	readiness.storeConnected = store
	readiness.storeOptional = storeOpt
}

func getReady(t *testing.T) (int, ReadinessResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	readyHandler(w, httptest.NewRequest("GET", "/ready", nil))
	var resp ReadinessResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return w.Code, resp
}

func TestHealthEndpoint(t *testing.T) {
	w := httptest.NewRecorder()
	healthHandler(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Version == "" {
		t.Errorf("unexpected health %+v", resp)
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name                   string
		gridReady              bool
		mqtt, mqttOpt          bool
		store, storeOpt        bool
		wantCode               int
		check, wantCheckStatus string
	}{
		{"all ready", true, true, false, true, false, http.StatusOK, "grid", "ok"},
		{"grid not ready", false, true, false, true, false, http.StatusServiceUnavailable, "grid", "not_ready"},
		{"optional mqtt down", true, false, true, true, false, http.StatusOK, "mqtt", "unavailable"},
		{"required mqtt down", true, false, false, true, false, http.StatusServiceUnavailable, "mqtt", "not_ready"},
		{"optional store down", true, true, false, false, true, http.StatusOK, "store", "unavailable"},
		{"required store down", true, true, false, false, false, http.StatusServiceUnavailable, "store", "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setReadiness(tt.gridReady, tt.mqtt, tt.mqttOpt, tt.store, tt.storeOpt)
			code, resp := getReady(t)
			if code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, code)
			}
			if resp.Ready != (tt.wantCode == http.StatusOK) {
				t.Errorf("ready = %v", resp.Ready)
			}
			if got := resp.Checks[tt.check].Status; got != tt.wantCheckStatus {
				t.Errorf("%s status = %q, want %q", tt.check, got, tt.wantCheckStatus)
			}
			if !resp.Ready && resp.NotReadyMsg == "" {
				t.Error("expected a message when not ready")
			}
		})
	}
}

func TestReadyMessageListsEveryReason(t *testing.T) {
	setReadiness(false, false, false, true, false)
	_, resp := getReady(t)
	if !strings.Contains(resp.NotReadyMsg, "grid") || !strings.Contains(resp.NotReadyMsg, "mqtt") {
		t.Errorf("message should name both failures: %q", resp.NotReadyMsg)
	}
}

func TestSetReadinessState(t *testing.T) {
	SetGridReady(true)
	SetMQTTState(true, false)
	SetStoreState(false, true)
	readiness.mu.RLock()
	defer readiness.mu.RUnlock()
	if !readiness.gridReady || !readiness.mqttConnected || readiness.mqttOptional {
		t.Error("grid/mqtt state not applied")
	}
	if readiness.storeConnected || !readiness.storeOptional {
		t.Error("store state not applied")
	}
}

func newTestServer(t *testing.T) (*grid.Grid, http.Handler) {
	t.Helper()
	auth = nil
	m, err := metrics.NewGridCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	g := grid.New("lab", grid.WithMetrics(m))
	if _, err := g.Place("lever", geom.Pos{X: 1}, geom.South, node.Params{}); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Place("pulse_button", geom.Pos{X: 3}, geom.South, node.Params{}); err != nil {
		t.Fatal(err)
	}
	return g, NewServer(g, m, nil).Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNodeRoutes(t *testing.T) {
	g, h := newTestServer(t)

	w := do(t, h, "GET", "/nodes", "")
	var nodes []grid.NodeView
	if err := json.NewDecoder(w.Body).Decode(&nodes); err != nil || len(nodes) != 2 {
		t.Fatalf("list nodes: %v %d", err, len(nodes))
	}

	if w := do(t, h, "GET", "/nodes/1,0,0", ""); w.Code != http.StatusOK {
		t.Errorf("get node: %d", w.Code)
	}
	if w := do(t, h, "GET", "/nodes/9,9,9", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing node: %d", w.Code)
	}
	if w := do(t, h, "GET", "/nodes/nope", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad position: %d", w.Code)
	}

	w = do(t, h, "POST", "/nodes/1,0,0/activate", "")
	var resp Response
	json.NewDecoder(w.Body).Decode(&resp)
	if w.Code != http.StatusOK || !resp.OK || resp.Result != "ok" {
		t.Fatalf("activate: %d %+v", w.Code, resp)
	}
	if v, _ := g.Node(geom.Pos{X: 1}); !v.Powered {
		t.Error("lever should be on")
	}

	if w := do(t, h, "POST", "/nodes/3,0,0/pulse-time", `{"items":10}`); w.Code != http.StatusOK {
		t.Errorf("pulse-time: %d", w.Code)
	}
	if v, _ := g.Node(geom.Pos{X: 3}); v.OnTime != 20 {
		t.Errorf("expected on time 20, got %d", v.OnTime)
	}
	if w := do(t, h, "POST", "/nodes/3,0,0/pulse-time", `{"items":500}`); w.Code != http.StatusBadRequest {
		t.Errorf("oversized pulse-time: %d", w.Code)
	}
	if w := do(t, h, "POST", "/nodes/1,0,0/tint", `{"color":20}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad tint: %d", w.Code)
	}
	if w := do(t, h, "POST", "/nodes/1,0,0/cycle", `{"double":false}`); w.Code != http.StatusOK {
		t.Errorf("cycle: %d", w.Code)
	}
	if w := do(t, h, "POST", "/nodes/1,0,0/reset", ""); w.Code != http.StatusOK {
		t.Errorf("reset: %d", w.Code)
	}
}

func TestLinkRoutes(t *testing.T) {
	g, h := newTestServer(t)

	w := do(t, h, "POST", "/nodes/1,0,0/links", `{"target":"3,0,0","mode":"activate"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("link: %d %s", w.Code, w.Body.String())
	}
	w = do(t, h, "POST", "/nodes/1,0,0/links", `{"target":"3,0,0","mode":"activate"}`)
	var resp Response
	json.NewDecoder(w.Body).Decode(&resp)
	if w.Code != http.StatusConflict || resp.Result != "already_linked" {
		t.Errorf("duplicate link: %d %+v", w.Code, resp)
	}
	if w := do(t, h, "POST", "/nodes/1,0,0/links", `{"target":"3,0,0","mode":"as_state"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unsupported mode: %d", w.Code)
	}

	do(t, h, "POST", "/nodes/1,0,0/activate", "")
	if v, _ := g.Node(geom.Pos{X: 3}); !v.Powered {
		t.Error("linked pulse button should fire")
	}

	w = do(t, h, "DELETE", "/nodes/1,0,0/links", "")
	if w.Code != http.StatusOK {
		t.Errorf("unlink: %d", w.Code)
	}
	if v, _ := g.Node(geom.Pos{X: 1}); len(v.Links) != 0 {
		t.Error("links should be gone")
	}
}

func TestAdminRoutes(t *testing.T) {
	g, h := newTestServer(t)

	w := do(t, h, "POST", "/nodes", `{"type":"contact_mat","pos":"5,0,0","facing":"up"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("place: %d %s", w.Code, w.Body.String())
	}
	if w := do(t, h, "POST", "/nodes", `{"type":"contact_mat","pos":"5,0,0"}`); w.Code != http.StatusConflict {
		t.Errorf("occupied: %d", w.Code)
	}
	if w := do(t, h, "POST", "/nodes", `{"type":"warp","pos":"6,0,0"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown type: %d", w.Code)
	}
	if w := do(t, h, "DELETE", "/nodes/5,0,0", ""); w.Code != http.StatusOK {
		t.Errorf("remove: %d", w.Code)
	}
	if g.HasNode(geom.Pos{X: 5}) {
		t.Error("node should be removed")
	}

	w = do(t, h, "POST", "/world", `{"raining":true,"day_time":14000}`)
	var env grid.Environment
	json.NewDecoder(w.Body).Decode(&env)
	if !env.Raining || env.DayTime != 14000 {
		t.Errorf("world update: %+v", env)
	}
	if w := do(t, h, "POST", "/grid/save", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("save without store: %d", w.Code)
	}
	do(t, h, "POST", "/grid/pause", "")
	if !g.Paused() {
		t.Error("grid should be paused")
	}
}

func TestRoutesRequireRoles(t *testing.T) {
	_, h := newTestServer(t)
	auth = &authConfig{adminUser: "admin", adminPass: "secret", operatorUser: "op", operatorPass: "pw", enabled: true}
	defer func() { auth = nil }()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health must stay public, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/nodes/1,0,0/activate", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous activate: %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/nodes/1,0,0/activate", nil)
	req.SetBasicAuth("op", "pw")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("operator activate: %d", w.Code)
	}

	req = httptest.NewRequest("DELETE", "/nodes/1,0,0", nil)
	req.SetBasicAuth("op", "pw")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("operator remove: %d", w.Code)
	}
}

type fakeHistory struct {
	evs []events.Event
	err error
}

func (f fakeHistory) History(_ context.Context, limit int) ([]events.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.evs[max(len(f.evs)-limit, 0):], nil
}

func TestEventHistoryRoute(t *testing.T) {
	g, _ := newTestServer(t)
	srv := NewServer(g, nil, nil)
	if w := do(t, srv.Router(), "GET", "/events/history", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("without a store: %d", w.Code)
	}

	srv.SetHistory(fakeHistory{evs: []events.Event{{Name: "node.placed"}, {Name: "node.powered"}, {Name: "link.assigned"}}})
	h := srv.Router()
	w := do(t, h, "GET", "/events/history?limit=2", "")
	var evs []events.Event
	if err := json.NewDecoder(w.Body).Decode(&evs); err != nil || len(evs) != 2 || evs[1].Name != "link.assigned" {
		t.Errorf("history: %v %+v", err, evs)
	}
	if w := do(t, h, "GET", "/events/history?limit=0", ""); w.Code != http.StatusBadRequest {
		t.Errorf("zero limit: %d", w.Code)
	}

	srv.SetHistory(fakeHistory{err: errors.New("connection refused")})
	if w := do(t, srv.Router(), "GET", "/events/history", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("store failure: %d", w.Code)
	}
}

func TestEventsAndMetricsRoutes(t *testing.T) {
	_, h := newTestServer(t)
	events.Clear()
	for i := 0; i < 4; i++ {
		events.Emit("info", "node.powered", "", nil)
	}

	w := do(t, h, "GET", "/events?limit=2", "")
	var evs []events.Event
	if err := json.NewDecoder(w.Body).Decode(&evs); err != nil || len(evs) != 2 {
		t.Errorf("events limit: %v %d", err, len(evs))
	}
	if w := do(t, h, "GET", "/events?limit=x", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: %d", w.Code)
	}

	do(t, h, "GET", "/nodes", "")
	w = do(t, h, "GET", "/metrics", "")
	if !strings.Contains(w.Body.String(), `signalgrid_http_requests_total{code="200",method="GET",route="/nodes"}`) {
		t.Errorf("metrics should count the /nodes request:\n%s", w.Body.String())
	}
}
