package entities

import "time"

// DefaultTemperature is the temperature a new world starts with.
const DefaultTemperature = referenceTemperature

// World holds the ambient state every entity reads during a tick.
type World struct {
	temperature float64 // °C
}

func NewWorld(temperature float64) *World {
	return &World{temperature: finite(temperature)}
}

func (w *World) Temperature() float64 { return w.temperature }

// SetTemperature takes effect on the next tick.
func (w *World) SetTemperature(t float64) {
	w.temperature = finite(t)
}

// Updatable is implemented by every entity advanced by the simulation clock.
// An entity mutates only its own state; neighbours are reached through explicit calls.
type Updatable interface {
	Update(world *World, delta time.Duration)
}

// Source hands out water on request, never more than it holds.
type Source interface {
	RemoveWater(requested float64) float64
}

// Sink accepts water.
type Sink interface {
	AddWater(amount float64)
}

// Verifica a compile-time
var (
	_ Updatable = (*WaterTank)(nil)
	_ Updatable = (*FarmPlot)(nil)
	_ Updatable = (*Pipe)(nil)
	_ Source    = (*WaterTank)(nil)
	_ Sink      = (*WaterTank)(nil)
	_ Sink      = (*FarmPlot)(nil)
)
