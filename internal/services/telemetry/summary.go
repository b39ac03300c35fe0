package telemetry

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
)

// Stats describes one series over the history window.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Last   float64 `json:"last"`
}

// Summary aggregates the history window the way the stats page shows it.
type Summary struct {
	Samples      int    `json:"samples"`
	FromTick     uint64 `json:"from_tick"`
	ToTick       uint64 `json:"to_tick"`
	Temperature  Stats  `json:"temperature"`
	TankVolume   Stats  `json:"tank_volume"`
	Moisture     Stats  `json:"moisture"`
	SurfaceWater Stats  `json:"surface_water"`
	Delivered    Stats  `json:"delivered"`
}

func describe(xs []float64) Stats {
	if len(xs) == 0 {
		return Stats{}
	}
	s := Stats{
		Mean: stat.Mean(xs, nil),
		Min:  floats.Min(xs),
		Max:  floats.Max(xs),
		Last: xs[len(xs)-1],
	}
	if len(xs) > 1 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	return s
}

// Summarize reduces samples (oldest first) to per-series statistics. Tank volume and
// delivered water are summed over entities, moisture and surface water averaged.
func Summarize(samples []messages.Snapshot) Summary {
	out := Summary{Samples: len(samples)}
	if len(samples) == 0 {
		return out
	}
	out.FromTick = samples[0].Tick
	out.ToTick = samples[len(samples)-1].Tick

	temp := make([]float64, len(samples))
	tank := make([]float64, len(samples))
	moist := make([]float64, len(samples))
	surf := make([]float64, len(samples))
	flow := make([]float64, len(samples))
	for i, snap := range samples {
		row := RowFromSnapshot(snap)
		temp[i] = row.Temperature
		tank[i] = row.TankVolume
		moist[i] = row.Moisture
		flow[i] = row.Delivered
		if n := len(snap.Farms); n > 0 {
			surf[i] = row.SurfaceWater / float64(n)
		}
	}
	out.Temperature = describe(temp)
	out.TankVolume = describe(tank)
	out.Moisture = describe(moist)
	out.SurfaceWater = describe(surf)
	out.Delivered = describe(flow)
	return out
}
