package messages

import "time"

// TankStats is the read-only view of a water tank.
type TankStats struct {
	Capacity float64 `json:"capacity"` // litri
	Volume   float64 `json:"volume"`   // litri
}

// FarmStats is the read-only view of a farm plot.
type FarmStats struct {
	Moisture     float64 `json:"moisture"`      // fraction [0..max_moisture]
	SurfaceWater float64 `json:"surface_water"` // liters ponding on top
	MaxMoisture  float64 `json:"max_moisture"`
}

// PipeStats is the read-only view of a pipe.
// CurrentFlowRate is the theoretical rate from the base rate and the last temperature,
// LastFlow is what was actually delivered in the last tick. They diverge when the
// source cannot supply the full request.
type PipeStats struct {
	BaseFlowRate         float64 `json:"base_flow_rate"`    // L/min at 20 °C
	CurrentFlowRate      float64 `json:"current_flow_rate"` // L/min, 0 when not flowing
	LastKnownTemperature float64 `json:"temperature"`
	IsFlowing            bool    `json:"is_flowing"`
	LastFlow             float64 `json:"last_flow"` // liters delivered in the last tick
}

// Snapshot is a consistent projection of the whole simulation at one instant.
type Snapshot struct {
	RunID       string      `json:"run_id"`
	Seq         uint64      `json:"seq"`  // refresh counter
	Tick        uint64      `json:"tick"` // ticks executed so far
	Running     bool        `json:"running"`
	Temperature float64     `json:"temperature"`
	Tanks       []TankStats `json:"tanks"`
	Farms       []FarmStats `json:"farms"`
	Pipes       []PipeStats `json:"pipes"`
	Timestamp   time.Time   `json:"timestamp"`
}
