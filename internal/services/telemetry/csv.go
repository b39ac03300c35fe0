package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
	"github.com/LeonardoBeccarini/farmsim/internal/simulation"
)

// Row is one CSV line: one refresh, flattened over every entity.
type Row struct {
	Seq          uint64  `csv:"seq"`
	Tick         uint64  `csv:"tick"`
	Time         string  `csv:"time"`
	Running      bool    `csv:"running"`
	Temperature  float64 `csv:"temperature"`
	TankVolume   float64 `csv:"tank_volume"`
	TankCapacity float64 `csv:"tank_capacity"`
	Moisture     float64 `csv:"moisture"`
	SurfaceWater float64 `csv:"surface_water"`
	FlowRate     float64 `csv:"flow_rate"`
	Delivered    float64 `csv:"delivered"`
	Flowing      int     `csv:"flowing"`
}

// RowFromSnapshot sums volumes and flows across entities and averages moisture.
func RowFromSnapshot(snap messages.Snapshot) Row {
	r := Row{
		Seq:         snap.Seq,
		Tick:        snap.Tick,
		Time:        snap.Timestamp.UTC().Format(time.RFC3339Nano),
		Running:     snap.Running,
		Temperature: snap.Temperature,
	}
	for _, t := range snap.Tanks {
		r.TankVolume += t.Volume
		r.TankCapacity += t.Capacity
	}
	for _, f := range snap.Farms {
		r.Moisture += f.Moisture
		r.SurfaceWater += f.SurfaceWater
	}
	if n := len(snap.Farms); n > 0 {
		r.Moisture /= float64(n)
	}
	for _, p := range snap.Pipes {
		r.FlowRate += p.CurrentFlowRate
		r.Delivered += p.LastFlow
		if p.IsFlowing {
			r.Flowing++
		}
	}
	return r
}

// Recorder appends one row per refresh to a CSV file.
type Recorder struct {
	mu            sync.Mutex
	file          *os.File
	headerWritten bool
}

var _ simulation.Sink = (*Recorder)(nil)

// NewRecorder creates (or truncates) the file at path. An empty path disables recording
// and returns a nil Recorder, which is a valid no-op sink.
func NewRecorder(path string) (*Recorder, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return &Recorder{file: f}, nil
}

func (r *Recorder) Consume(_ context.Context, snap messages.Snapshot) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	records := []Row{RowFromSnapshot(snap)}
	if !r.headerWritten {
		if err := gocsv.Marshal(records, r.file); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, r.file); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
