// Package metrics exports grid and HTTP metrics to Prometheus.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GridCollector bundles the Prometheus metrics of one running grid.
// A nil collector is valid and records nothing.
type GridCollector struct {
	gatherer prometheus.Gatherer

	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	Activations  *prometheus.CounterVec
	LinkRequests *prometheus.CounterVec
	SensorPolls  *prometheus.CounterVec
	Effects      *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec

	Nodes          prometheus.Gauge
	PoweredNodes   prometheus.Gauge
	ScheduledTicks prometheus.Gauge
	BridgeUp       prometheus.Gauge
	StoreUp        prometheus.Gauge
	BuildInfo      *prometheus.GaugeVec
}

// NewGridCollector registers the grid metrics against reg, defaulting to the
// global registry when nil. Registering twice returns the existing collectors.
func NewGridCollector(reg prometheus.Registerer) (*GridCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &GridCollector{gatherer: gatherer}

	var err error
	if c.Ticks, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "signalgrid_ticks_total",
		Help: "Number of simulation ticks executed.",
	}), "signalgrid_ticks_total"); err != nil {
		return nil, err
	}
	if c.TickDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "signalgrid_tick_duration_seconds",
		Help:    "Wall time spent executing one tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}), "signalgrid_tick_duration_seconds"); err != nil {
		return nil, err
	}
	if c.Activations, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signalgrid_activations_total",
		Help: "Node activations, labeled by node type and cause.",
	}, []string{"type", "cause"}), "signalgrid_activations_total"); err != nil {
		return nil, err
	}
	if c.LinkRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signalgrid_link_requests_total",
		Help: "Link requests sent, labeled by result.",
	}, []string{"result"}), "signalgrid_link_requests_total"); err != nil {
		return nil, err
	}
	if c.SensorPolls, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signalgrid_sensor_polls_total",
		Help: "Sensor polls, labeled by sensor kind.",
	}, []string{"kind"}), "signalgrid_sensor_polls_total"); err != nil {
		return nil, err
	}
	if c.Effects, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signalgrid_effects_total",
		Help: "Feedback effects played, labeled by effect.",
	}, []string{"effect"}), "signalgrid_effects_total"); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signalgrid_http_requests_total",
		Help: "Handled HTTP requests, labeled by method, route and status code.",
	}, []string{"method", "route", "code"}), "signalgrid_http_requests_total"); err != nil {
		return nil, err
	}
	if c.Nodes, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signalgrid_nodes",
		Help: "Current number of placed nodes.",
	}), "signalgrid_nodes"); err != nil {
		return nil, err
	}
	if c.PoweredNodes, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signalgrid_powered_nodes",
		Help: "Current number of powered nodes.",
	}), "signalgrid_powered_nodes"); err != nil {
		return nil, err
	}
	if c.ScheduledTicks, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signalgrid_scheduled_ticks",
		Help: "Pending entries in the tick queue.",
	}), "signalgrid_scheduled_ticks"); err != nil {
		return nil, err
	}
	if c.BridgeUp, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signalgrid_mqtt_connected",
		Help: "Whether the MQTT broker is connected (1) or not (0).",
	}), "signalgrid_mqtt_connected"); err != nil {
		return nil, err
	}
	if c.StoreUp, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "signalgrid_store_connected",
		Help: "Whether the durable store is connected (1) or not (0).",
	}), "signalgrid_store_connected"); err != nil {
		return nil, err
	}
	if c.BuildInfo, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "signalgrid_build_info",
		Help: "Constant 1, labeled by version and grid id.",
	}, []string{"version", "grid"}), "signalgrid_build_info"); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *GridCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *GridCollector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
}

func (c *GridCollector) Activation(nodeType, cause string) {
	if c == nil {
		return
	}
	c.Activations.WithLabelValues(nodeType, cause).Inc()
}

func (c *GridCollector) LinkRequest(result string) {
	if c == nil {
		return
	}
	c.LinkRequests.WithLabelValues(result).Inc()
}

func (c *GridCollector) SensorPoll(kind string) {
	if c == nil {
		return
	}
	c.SensorPolls.WithLabelValues(kind).Inc()
}

func (c *GridCollector) Effect(name string) {
	if c == nil {
		return
	}
	c.Effects.WithLabelValues(name).Inc()
}

// SetNodeCounts drives the node gauges from the grid after each tick.
func (c *GridCollector) SetNodeCounts(total, powered, scheduled int) {
	if c == nil {
		return
	}
	c.Nodes.Set(float64(total))
	c.PoweredNodes.Set(float64(powered))
	c.ScheduledTicks.Set(float64(scheduled))
}

func (c *GridCollector) SetBridgeConnected(up bool) {
	if c == nil {
		return
	}
	c.BridgeUp.Set(boolGauge(up))
}

func (c *GridCollector) SetStoreConnected(up bool) {
	if c == nil {
		return
	}
	c.StoreUp.Set(boolGauge(up))
}

func (c *GridCollector) SetBuildInfo(version, grid string) {
	if c == nil {
		return
	}
	c.BuildInfo.WithLabelValues(version, grid).Set(1)
}

// Middleware counts requests by chi route pattern, so path parameters do
// not blow up label cardinality.
func (c *GridCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if c == nil {
			return
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return c, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
