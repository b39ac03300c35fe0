package entities

import (
	"math"
	"time"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
)

// TankEvaporationAt20C is the tank evaporation rate at 20 °C [L/min].
const TankEvaporationAt20C = 0.5

// WaterTank is a bounded reservoir: 0 <= volume <= capacity at all times.
type WaterTank struct {
	capacity float64
	volume   float64
	evapRate float64
}

// NewWaterTank creates a tank; the initial volume is clamped into [0, capacity].
func NewWaterTank(capacity, volume float64) *WaterTank {
	t := &WaterTank{capacity: amount(capacity), evapRate: TankEvaporationAt20C}
	t.volume = math.Min(t.capacity, amount(volume))
	return t
}

// AddWater adds water; whatever exceeds the capacity is discarded.
func (t *WaterTank) AddWater(water float64) {
	t.volume = math.Min(t.capacity, t.volume+amount(water))
}

// RemoveWater takes up to requested liters and returns what was actually delivered.
// A request larger than the stored volume empties the tank.
func (t *WaterTank) RemoveWater(requested float64) float64 {
	delivered := math.Min(amount(requested), t.volume)
	t.volume -= delivered
	if t.volume < 0 {
		t.volume = 0
	}
	return delivered
}

func (t *WaterTank) Update(world *World, delta time.Duration) {
	evaporated := Evaporation(t.volume, world.Temperature(), delta, t.evapRate)
	t.volume = math.Max(0, t.volume-evaporated)
}

func (t *WaterTank) Stats() messages.TankStats {
	return messages.TankStats{Capacity: t.capacity, Volume: t.volume}
}
