package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
)

type readinessState struct {
	mu             sync.RWMutex
	gridReady      bool
	mqttConnected  bool
	mqttOptional   bool
	storeConnected bool
	storeOptional  bool
}

var readiness = &readinessState{}

// CheckResult is the state of one dependency.
type CheckResult struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
}

// ReadinessResponse is the body of /ready.
type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckResult `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

// SetGridReady marks the grid as loaded and ticking.
func SetGridReady(ready bool) {
	readiness.mu.Lock()
	defer readiness.mu.Unlock()
	readiness.gridReady = ready
}

// SetMQTTState records the broker connection. An optional broker does not
// block readiness.
func SetMQTTState(connected, optional bool) {
	readiness.mu.Lock()
	defer readiness.mu.Unlock()
	readiness.mqttConnected = connected
	readiness.mqttOptional = optional
}

// SetStoreState records the durable store connection.
func SetStoreState(connected, optional bool) {
	readiness.mu.Lock()
	defer readiness.mu.Unlock()
	readiness.storeConnected = connected
	readiness.storeOptional = optional
}

func dependencyCheck(connected, optional bool) (CheckResult, bool) {
	switch {
	case connected:
		return CheckResult{Status: "ok", Optional: optional}, true
	case optional:
		return CheckResult{Status: "unavailable", Optional: true}, true
	default:
		return CheckResult{Status: "not_ready"}, false
	}
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	s := readinessState{
		gridReady:      readiness.gridReady,
		mqttConnected:  readiness.mqttConnected,
		mqttOptional:   readiness.mqttOptional,
		storeConnected: readiness.storeConnected,
		storeOptional:  readiness.storeOptional,
	}
	readiness.mu.RUnlock()

	resp := ReadinessResponse{Ready: true, Checks: make(map[string]CheckResult, 3)}
	var reasons []string

	if s.gridReady {
		resp.Checks["grid"] = CheckResult{Status: "ok"}
	} else {
		resp.Checks["grid"] = CheckResult{Status: "not_ready"}
		reasons = append(reasons, "grid not loaded")
	}
	c, ok := dependencyCheck(s.mqttConnected, s.mqttOptional)
	resp.Checks["mqtt"] = c
	if !ok {
		reasons = append(reasons, "mqtt not connected")
	}
	c, ok = dependencyCheck(s.storeConnected, s.storeOptional)
	resp.Checks["store"] = c
	if !ok {
		reasons = append(reasons, "store not connected")
	}

	w.Header().Set("Content-Type", "application/json")
	if len(reasons) > 0 {
		resp.Ready = false
		resp.NotReadyMsg = strings.Join(reasons, "; ")
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
