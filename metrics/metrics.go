// Package metrics exports coordinator counters and events to Prometheus
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lixenwraith/outbreak/coordinator"
	"github.com/lixenwraith/outbreak/core"
)

// Collector bundles the outbreak metrics; it is a coordinator.CounterSink and EventSink
type Collector struct {
	gatherer prometheus.Gatherer

	Tick     prometheus.Gauge
	Agents   prometheus.Gauge
	Carriers prometheus.Gauge
	Infected prometheus.Gauge
	Fraction prometheus.Gauge
	Events   *prometheus.CounterVec
}

// NewCollector registers the metrics against reg, defaulting to the global registry when nil
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&c.Tick, "outbreak_tick", "Last coordinator tick."},
		{&c.Agents, "outbreak_agents", "Live agents."},
		{&c.Carriers, "outbreak_carriers", "Live agents with CARRIER health."},
		{&c.Infected, "outbreak_infected", "Live agents with INFECTED health."},
		{&c.Fraction, "outbreak_infected_fraction", "Infected agents over live agents, 0 when empty."},
	}
	for _, g := range gauges {
		gauge, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: g.name, Help: g.help}), g.name)
		if err != nil {
			return nil, err
		}
		*g.dst = gauge
	}

	events, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbreak_events_total",
		Help: "Coordinator events, labeled by kind.",
	}, []string{"kind"}), "outbreak_events_total")
	if err != nil {
		return nil, err
	}
	c.Events = events
	return c, nil
}

// PublishCounters implements coordinator.CounterSink
func (c *Collector) PublishCounters(cn core.Counters) {
	if c == nil {
		return
	}
	c.Tick.Set(float64(cn.Tick))
	c.Agents.Set(float64(cn.Agents))
	c.Carriers.Set(float64(cn.Carriers))
	c.Infected.Set(float64(cn.Infected))
	c.Fraction.Set(cn.Fraction)
}

// HandleEvent implements coordinator.EventSink
func (c *Collector) HandleEvent(ev coordinator.Event) {
	if c == nil {
		return
	}
	c.Events.WithLabelValues(string(ev.Kind)).Inc()
}

// Handler exposes a ready-to-use /metrics handler
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Display forwards HUD writes to next and mirrors the slider value into the fraction gauge
type Display struct {
	next     coordinator.Display
	fraction prometheus.Gauge
}

func NewDisplay(c *Collector, next coordinator.Display) *Display {
	return &Display{next: next, fraction: c.Fraction}
}

// SetText implements coordinator.Display
func (d *Display) SetText(field core.Field, text string) {
	if d.next != nil {
		d.next.SetText(field, text)
	}
}

// SetValue implements coordinator.Display
func (d *Display) SetValue(field core.Field, v float64) {
	if field == core.FieldInfectedRatio {
		d.fraction.Set(v)
	}
	if d.next != nil {
		d.next.SetValue(field, v)
	}
}

// Serve exposes /metrics on addr until ctx is done
func (c *Collector) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("metrics listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
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
