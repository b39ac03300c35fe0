package telemetry

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
	"github.com/LeonardoBeccarini/farmsim/internal/simulation"
)

// PointWriter is the part of api.WriteAPIBlocking the sink needs.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

type InfluxSinkConfig struct {
	Measurement     string
	Timeout         time.Duration
	BreakerFailures int
	BreakerOpen     time.Duration
	BreakerInterval time.Duration
}

// InfluxSink writes every snapshot as one point per entity. Writes go through a circuit
// breaker so that a down database costs one fast failure per refresh instead of a
// timeout.
type InfluxSink struct {
	writer      PointWriter
	breaker     *gobreaker.CircuitBreaker
	measurement string
	timeout     time.Duration

	mu      sync.RWMutex
	lastErr time.Time
	written int64
}

var _ simulation.Sink = (*InfluxSink)(nil)

func NewInfluxSink(w PointWriter, cfg InfluxSinkConfig) *InfluxSink {
	if cfg.Measurement == "" {
		cfg.Measurement = "farm_sim"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	fails := cfg.BreakerFailures
	if fails <= 0 {
		fails = 3
	}
	return &InfluxSink{
		writer:      w,
		measurement: sanitizeMeasurement(cfg.Measurement),
		timeout:     cfg.Timeout,
		lastErr:     time.Now().Add(-24 * time.Hour),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "influx",
			Interval: cfg.BreakerInterval,
			Timeout:  cfg.BreakerOpen,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= uint32(fails)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("telemetry: breaker %s %s -> %s", name, from, to)
			},
		}),
	}
}

func (s *InfluxSink) Consume(ctx context.Context, snap messages.Snapshot) error {
	points := SnapshotPoints(s.measurement, snap)
	_, err := s.breaker.Execute(func() (interface{}, error) {
		wctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return nil, s.writer.WritePoint(wctx, points...)
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = time.Now()
		return fmt.Errorf("influx write: %w", err)
	}
	s.written += int64(len(points))
	return nil
}

func (s *InfluxSink) State() gobreaker.State { return s.breaker.State() }

// LastErrorAge is the time since the last failed write.
func (s *InfluxSink) LastErrorAge() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastErr)
}

func (s *InfluxSink) Written() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.written
}

// SnapshotPoints converts a snapshot to points tagged by entity kind and index.
func SnapshotPoints(measurement string, snap messages.Snapshot) []*write.Point {
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	tags := func(kind string, i int) map[string]string {
		return map[string]string{"run_id": snap.RunID, "kind": kind, "index": strconv.Itoa(i)}
	}

	points := make([]*write.Point, 0, 1+len(snap.Tanks)+len(snap.Farms)+len(snap.Pipes))
	points = append(points, influxdb2.NewPoint(measurement,
		map[string]string{"run_id": snap.RunID, "kind": "world"},
		map[string]interface{}{
			"temperature": snap.Temperature,
			"tick":        int64(snap.Tick),
			"running":     snap.Running,
		}, ts))

	for i, t := range snap.Tanks {
		points = append(points, influxdb2.NewPoint(measurement, tags("tank", i),
			map[string]interface{}{"volume": t.Volume, "capacity": t.Capacity}, ts))
	}
	for i, f := range snap.Farms {
		points = append(points, influxdb2.NewPoint(measurement, tags("farm", i),
			map[string]interface{}{
				"moisture":      f.Moisture,
				"surface_water": f.SurfaceWater,
				"max_moisture":  f.MaxMoisture,
			}, ts))
	}
	for i, p := range snap.Pipes {
		points = append(points, influxdb2.NewPoint(measurement, tags("pipe", i),
			map[string]interface{}{
				"base_flow_rate":    p.BaseFlowRate,
				"current_flow_rate": p.CurrentFlowRate,
				"temperature":       p.LastKnownTemperature,
				"flowing":           p.IsFlowing,
				"last_flow":         p.LastFlow,
			}, ts))
	}
	return points
}

func sanitizeMeasurement(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == ':', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
