package entities

import (
	"math"
	"time"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
)

const (
	// FarmEvaporationAt20C is the evaporation rate of ponding water at 20 °C [L/min].
	FarmEvaporationAt20C = 2.0

	// DefaultMaxMoisture is the saturation fraction of a new plot.
	DefaultMaxMoisture = 1.0

	// litersPerMoisture converts between liters on the plot and moisture fraction.
	litersPerMoisture = 1000.0
)

// FarmPlot is a patch of soil: moisture stays in [0, maxMoisture], surfaceWater >= 0.
type FarmPlot struct {
	moisture     float64
	surfaceWater float64
	maxMoisture  float64
	evapRate     float64
}

func NewFarmPlot(maxMoisture float64) *FarmPlot {
	return &FarmPlot{maxMoisture: amount(maxMoisture), evapRate: FarmEvaporationAt20C}
}

// AddWater adds ponding water on top of the soil. It is not bounded.
func (f *FarmPlot) AddWater(water float64) {
	f.surfaceWater += amount(water)
}

// Absorb moves up to candidate moisture into the soil, never above maxMoisture,
// taking the equivalent liters out of the surface water (floored at 0).
func (f *FarmPlot) Absorb(candidate float64) {
	if f.moisture >= f.maxMoisture {
		return
	}
	room := f.maxMoisture - f.moisture
	actual := math.Min(room, amount(candidate))
	if actual >= room {
		f.moisture = f.maxMoisture
	} else {
		f.moisture += actual
	}
	f.surfaceWater = math.Max(0, f.surfaceWater-actual*litersPerMoisture)
}

// Update runs absorption, then surface evaporation, then soil evaporation.
// A zero-length tick leaves the plot untouched.
func (f *FarmPlot) Update(world *World, delta time.Duration) {
	if delta <= 0 {
		return
	}
	temp := world.Temperature()

	f.Absorb(f.surfaceWater / litersPerMoisture)

	f.surfaceWater -= Evaporation(f.surfaceWater, temp, delta, f.evapRate)
	f.moisture -= MoistureEvaporation(temp, delta) / litersPerMoisture

	if f.moisture < 0 {
		f.moisture = 0
	}
	if f.surfaceWater < 0 {
		f.surfaceWater = 0
	}
}

func (f *FarmPlot) Stats() messages.FarmStats {
	return messages.FarmStats{
		Moisture:     f.moisture,
		SurfaceWater: f.surfaceWater,
		MaxMoisture:  f.maxMoisture,
	}
}
