package entities

import (
	"math"
	"time"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
)

const (
	// DefaultBaseFlowRate is the nominal flow at 20 °C [L/min].
	DefaultBaseFlowRate = 3.0
	// DefaultFlowTempCoefficient is the relative flow change per °C away from 20 °C.
	DefaultFlowTempCoefficient = 0.01
)

// Pipe moves water from one source to one sink every tick. It does not own either end.
type Pipe struct {
	source Source
	sink   Sink

	baseFlowRate    float64 // portata a 20 °C [litri/min]
	tempCoefficient float64

	lastKnownTemperature float64
	lastFlow             float64 // litri erogati nell'ultimo tick
	isFlowing            bool
}

func NewPipe(source Source, sink Sink, baseFlowRate, tempCoefficient float64) *Pipe {
	return &Pipe{
		source:               source,
		sink:                 sink,
		baseFlowRate:         amount(baseFlowRate),
		tempCoefficient:      finite(tempCoefficient),
		lastKnownTemperature: referenceTemperature,
	}
}

// SetBaseFlow reconfigures the nominal flow; it applies from the next tick.
func (p *Pipe) SetBaseFlow(rate float64) {
	p.baseFlowRate = amount(rate)
}

// Update requests the temperature-adjusted flow for delta from the source and
// hands whatever was delivered to the sink.
func (p *Pipe) Update(world *World, delta time.Duration) {
	if delta <= 0 {
		return
	}
	p.lastKnownTemperature = world.Temperature()

	perMillisecond := p.adjustedFlowRate() / 60_000
	requested := math.Max(0, finite(perMillisecond*millis(delta)))

	delivered := p.source.RemoveWater(requested)
	p.lastFlow = delivered
	p.isFlowing = delivered > 0

	p.sink.AddWater(delivered)
}

// adjustedFlowRate is the theoretical L/min at the last known temperature, never negative.
func (p *Pipe) adjustedFlowRate() float64 {
	diff := p.lastKnownTemperature - referenceTemperature
	return math.Max(0, finite(p.baseFlowRate*(1+p.tempCoefficient*diff)))
}

func (p *Pipe) Stats() messages.PipeStats {
	current := 0.0
	if p.isFlowing {
		current = p.adjustedFlowRate()
	}
	return messages.PipeStats{
		BaseFlowRate:         p.baseFlowRate,
		CurrentFlowRate:      current,
		LastKnownTemperature: p.lastKnownTemperature,
		IsFlowing:            p.isFlowing,
		LastFlow:             p.lastFlow,
	}
}
