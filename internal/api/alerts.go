package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// Alert severity levels
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert event types
const (
	AlertBridgeDisconnected = "bridge_disconnected"
	AlertStoreUnavailable   = "store_unavailable"
)

// AlertPayload is the JSON structure sent to the webhook.
type AlertPayload struct {
	Grid      string                 `json:"grid"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// outage tracks one dependency and fires an alert once it has been down
// longer than delay, and a recovery notice when it comes back.
type outage struct {
	event    string
	severity string
	what     string
	delay    time.Duration
	up       bool
	since    time.Time
	alerted  bool
}

// check returns the payload to send, if any.
func (o *outage) check(connected bool, now time.Time) *AlertPayload {
	if connected {
		var p *AlertPayload
		if !o.up && o.alerted {
			p = &AlertPayload{Event: o.event, Severity: SeverityInfo, Message: o.what + " restored",
				Details: map[string]interface{}{"recovered_at": now.UTC().Format(time.RFC3339)}}
		}
		o.up, o.alerted, o.since = true, false, time.Time{}
		return p
	}
	if o.up {
		o.since = now
	}
	o.up = false
	if o.alerted || o.since.IsZero() || now.Sub(o.since) < o.delay {
		return nil
	}
	o.alerted = true
	return &AlertPayload{Event: o.event, Severity: o.severity, Message: o.what + " unavailable",
		Details: map[string]interface{}{
			"disconnected_since":   o.since.UTC().Format(time.RFC3339),
			"disconnected_seconds": int(now.Sub(o.since).Seconds()),
		}}
}

// Alerter posts dependency outages to a webhook. Without a webhook the
// alerts are only logged. Posts go out one at a time in the order they
// became due.
type Alerter struct {
	mu     sync.Mutex
	url    string
	grid   string
	client *http.Client
	logger *slog.Logger
	bridge outage
	store  outage

	queue   chan AlertPayload
	start   sync.Once
	pending sync.WaitGroup

	watchBridge bool
	watchStore  bool
}

// NewAlerter reads SIGNALGRID_ALERT_WEBHOOK_URL and the optional
// SIGNALGRID_BRIDGE_ALERT_DELAY / SIGNALGRID_STORE_ALERT_DELAY durations.
func NewAlerter(gridID string, logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Alerter{
		url:    os.Getenv("SIGNALGRID_ALERT_WEBHOOK_URL"),
		grid:   gridID,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		bridge: outage{event: AlertBridgeDisconnected, severity: SeverityWarning, what: "MQTT bridge",
			delay: envDuration("SIGNALGRID_BRIDGE_ALERT_DELAY", 30*time.Second), up: true},
		store: outage{event: AlertStoreUnavailable, severity: SeverityCritical, what: "node store",
			delay: envDuration("SIGNALGRID_STORE_ALERT_DELAY", 5*time.Second), up: true},
		queue:       make(chan AlertPayload, 32),
		watchBridge: true,
		watchStore:  true,
	}
	if a.url != "" {
		logger.Info("alerts enabled", "bridge_delay", a.bridge.delay, "store_delay", a.store.delay)
	}
	return a
}

func envDuration(name string, def time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Check feeds the current dependency states and sends due alerts.
func (a *Alerter) Check(bridgeUp, storeUp bool, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range []*AlertPayload{a.bridge.check(bridgeUp, now), a.store.check(storeUp, now)} {
		if p != nil {
			p.Grid = a.grid
			p.Timestamp = now.UTC().Format(time.RFC3339)
			a.enqueue(*p)
		}
	}
}

// enqueue hands p to the delivery worker. Callers hold a.mu so payloads
// keep the order in which they became due.
func (a *Alerter) enqueue(p AlertPayload) {
	if a.url == "" {
		a.logger.Warn("alert", "event", p.Event, "severity", p.Severity, "message", p.Message, "details", p.Details)
		return
	}
	a.start.Do(func() { go a.deliver() })
	a.pending.Add(1)
	select {
	case a.queue <- p:
	default:
		a.pending.Done()
		a.logger.Error("alert queue full, dropping alert", "event", p.Event, "severity", p.Severity)
	}
}

func (a *Alerter) deliver() {
	for p := range a.queue {
		a.post(p)
		a.pending.Done()
	}
}

func (a *Alerter) post(p AlertPayload) {
	body, err := json.Marshal(p)
	if err != nil {
		return
	}
	resp, err := a.client.Post(a.url, "application/json", bytes.NewReader(body))
	if err != nil {
		a.logger.Error("alert webhook failed", "event", p.Event, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		a.logger.Error("alert webhook rejected", "event", p.Event, "status", resp.StatusCode)
	}
}

// Watch selects the dependencies Run reports on. A grid without a store
// or broker configured has nothing to watch there.
func (a *Alerter) Watch(bridge, store bool) {
	a.mu.Lock()
	a.watchBridge, a.watchStore = bridge, store
	a.mu.Unlock()
}

// Wait blocks until every queued webhook post has been attempted.
func (a *Alerter) Wait() { a.pending.Wait() }

// Run checks the readiness state every interval until ctx is done.
func (a *Alerter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.Wait()
			return
		case now := <-ticker.C:
			a.mu.Lock()
			watchBridge, watchStore := a.watchBridge, a.watchStore
			a.mu.Unlock()
			readiness.mu.RLock()
			bridgeUp := readiness.mqttConnected || !watchBridge
			storeUp := readiness.storeConnected || !watchStore
			readiness.mu.RUnlock()
			a.Check(bridgeUp, storeUp, now)
		}
	}
}
