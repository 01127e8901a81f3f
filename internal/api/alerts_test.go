package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type webhookSink struct {
	mu       sync.Mutex
	payloads []AlertPayload
	// slow delays the handling of outage alerts.
	slow time.Duration
}

func (s *webhookSink) handler(w http.ResponseWriter, r *http.Request) {
	var p AlertPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err == nil {
		if p.Severity != SeverityInfo {
			time.Sleep(s.slow)
		}
		s.mu.Lock()
		s.payloads = append(s.payloads, p)
		s.mu.Unlock()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *webhookSink) received() []AlertPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AlertPayload(nil), s.payloads...)
}

func newTestAlerter(t *testing.T) (*Alerter, *webhookSink) {
	t.Helper()
	sink := &webhookSink{}
	srv := httptest.NewServer(http.HandlerFunc(sink.handler))
	t.Cleanup(srv.Close)
	t.Setenv("SIGNALGRID_ALERT_WEBHOOK_URL", srv.URL)
	t.Setenv("SIGNALGRID_BRIDGE_ALERT_DELAY", "30s")
	t.Setenv("SIGNALGRID_STORE_ALERT_DELAY", "5s")
	return NewAlerter("lab", nil), sink
}

func TestAlerterWaitsForDelay(t *testing.T) {
	a, sink := newTestAlerter(t)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	a.Check(false, true, t0)
	a.Check(false, true, t0.Add(29*time.Second))
	a.Wait()
	if got := sink.received(); len(got) != 0 {
		t.Fatalf("no alert expected before the delay, got %+v", got)
	}

	a.Check(false, true, t0.Add(31*time.Second))
	a.Check(false, true, t0.Add(60*time.Second))
	a.Wait()
	got := sink.received()
	if len(got) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(got))
	}
	if got[0].Event != AlertBridgeDisconnected || got[0].Severity != SeverityWarning || got[0].Grid != "lab" {
		t.Errorf("unexpected payload %+v", got[0])
	}
}

func TestAlerterRecovery(t *testing.T) {
	a, sink := newTestAlerter(t)
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	a.Check(true, false, t0)
	a.Check(true, false, t0.Add(6*time.Second))
	a.Check(true, true, t0.Add(7*time.Second))
	a.Wait()
	got := sink.received()
	if len(got) != 2 {
		t.Fatalf("expected outage and recovery, got %+v", got)
	}
	if got[0].Event != AlertStoreUnavailable || got[0].Severity != SeverityCritical {
		t.Errorf("unexpected outage payload %+v", got[0])
	}
	if got[1].Severity != SeverityInfo || got[1].Message != "node store restored" {
		t.Errorf("unexpected recovery payload %+v", got[1])
	}
}

func TestAlerterKeepsOrderUnderSlowWebhook(t *testing.T) {
	a, sink := newTestAlerter(t)
	sink.slow = 20 * time.Millisecond
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		base := t0.Add(time.Duration(i) * time.Minute)
		a.Check(true, false, base)
		a.Check(true, false, base.Add(6*time.Second))
		a.Check(true, true, base.Add(7*time.Second))
	}
	a.Wait()
	got := sink.received()
	if len(got) != 6 {
		t.Fatalf("expected three outage/recovery pairs, got %d", len(got))
	}
	for i, p := range got {
		want := SeverityCritical
		if i%2 == 1 {
			want = SeverityInfo
		}
		if p.Severity != want {
			t.Errorf("payload %d: expected severity %s, got %s (%s)", i, want, p.Severity, p.Message)
		}
	}
}

func TestAlerterShortBlipIsQuiet(t *testing.T) {
	a, sink := newTestAlerter(t)
	t0 := time.Now()
	a.Check(true, false, t0)
	a.Check(true, true, t0.Add(time.Second))
	a.Wait()
	if got := sink.received(); len(got) != 0 {
		t.Errorf("a recovered blip should not alert, got %+v", got)
	}
}

func TestAlerterRunSkipsUnwatched(t *testing.T) {
	a, sink := newTestAlerter(t)
	a.bridge.delay, a.store.delay = 0, 0
	a.Watch(false, false)
	SetMQTTState(false, true)
	SetStoreState(false, true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	a.Run(ctx, 5*time.Millisecond)
	if got := sink.received(); len(got) != 0 {
		t.Errorf("unwatched dependencies should not alert, got %+v", got)
	}
}
