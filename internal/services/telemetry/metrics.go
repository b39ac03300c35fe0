package telemetry

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
	"github.com/LeonardoBeccarini/farmsim/internal/simulation"
)

// Metrics exposes the clock and the latest snapshot to Prometheus. It is a Sink for
// the refresh path and a tick observer for the clock.
type Metrics struct {
	registry *prometheus.Registry

	ticks       prometheus.Counter
	tickSeconds prometheus.Histogram
	nextDelay   prometheus.Gauge
	overruns    prometheus.Counter
	refreshes   prometheus.Counter

	running     prometheus.Gauge
	temperature prometheus.Gauge
	tankVolume  *prometheus.GaugeVec
	moisture    *prometheus.GaugeVec
	surface     *prometheus.GaugeVec
	flowRate    *prometheus.GaugeVec
	delivered   *prometheus.GaugeVec
}

var _ simulation.Sink = (*Metrics)(nil)

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "farmsim_ticks_total", Help: "Executed simulation ticks.",
		}),
		tickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "farmsim_tick_duration_seconds",
			Help:    "Wall time spent updating entities in one tick.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		nextDelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "farmsim_next_delay_seconds", Help: "Delay scheduled before the next tick.",
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "farmsim_tick_overruns_total", Help: "Ticks that used the whole interval.",
		}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "farmsim_refreshes_total", Help: "Stats refreshes delivered.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "farmsim_running", Help: "1 while the clock is running.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "farmsim_temperature_celsius", Help: "World temperature.",
		}),
		tankVolume: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "farmsim_tank_volume_liters", Help: "Water held by each tank.",
		}, []string{"tank"}),
		moisture: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "farmsim_farm_moisture", Help: "Soil moisture of each farm.",
		}, []string{"farm"}),
		surface: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "farmsim_farm_surface_water_liters", Help: "Surface water of each farm.",
		}, []string{"farm"}),
		flowRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "farmsim_pipe_flow_rate_lpm", Help: "Current flow rate of each pipe.",
		}, []string{"pipe"}),
		delivered: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "farmsim_pipe_last_flow_liters", Help: "Water delivered by each pipe in its last tick.",
		}, []string{"pipe"}),
	}
	m.registry.MustRegister(
		m.ticks, m.tickSeconds, m.nextDelay, m.overruns, m.refreshes,
		m.running, m.temperature, m.tankVolume, m.moisture, m.surface, m.flowRate, m.delivered,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTick is meant for simulation.WithTickObserver.
func (m *Metrics) ObserveTick(r simulation.TickReport) {
	m.ticks.Inc()
	m.tickSeconds.Observe(r.Elapsed.Seconds())
	m.nextDelay.Set(r.NextDelay.Seconds())
	if r.NextDelay == 0 {
		m.overruns.Inc()
	}
}

func (m *Metrics) Consume(_ context.Context, snap messages.Snapshot) error {
	m.refreshes.Inc()
	if snap.Running {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
	m.temperature.Set(snap.Temperature)
	for i, t := range snap.Tanks {
		m.tankVolume.WithLabelValues(strconv.Itoa(i)).Set(t.Volume)
	}
	for i, f := range snap.Farms {
		idx := strconv.Itoa(i)
		m.moisture.WithLabelValues(idx).Set(f.Moisture)
		m.surface.WithLabelValues(idx).Set(f.SurfaceWater)
	}
	for i, p := range snap.Pipes {
		idx := strconv.Itoa(i)
		m.flowRate.WithLabelValues(idx).Set(p.CurrentFlowRate)
		m.delivered.WithLabelValues(idx).Set(p.LastFlow)
	}
	return nil
}
