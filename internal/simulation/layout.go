package simulation

import (
	"fmt"

	"github.com/LeonardoBeccarini/farmsim/internal/model/entities"
)

// TankSpec describes a tank created at startup.
type TankSpec struct {
	Capacity float64 `json:"capacity" yaml:"capacity"`
	Volume   float64 `json:"volume" yaml:"volume"`
}

// FarmSpec describes a farm plot created at startup.
type FarmSpec struct {
	MaxMoisture  float64 `json:"max_moisture" yaml:"max_moisture"`
	SurfaceWater float64 `json:"surface_water" yaml:"surface_water"`
}

// PipeSpec wires tank Tank to farm Farm (indices into the layout lists).
type PipeSpec struct {
	Tank            int     `json:"tank" yaml:"tank"`
	Farm            int     `json:"farm" yaml:"farm"`
	BaseFlowRate    float64 `json:"base_flow_rate" yaml:"base_flow_rate"`
	TempCoefficient float64 `json:"temp_coefficient" yaml:"temp_coefficient"`
}

// Layout is the fixed topology of a run. It never changes after the simulation is built.
type Layout struct {
	Temperature float64    `json:"temperature" yaml:"temperature"`
	Tanks       []TankSpec `json:"tanks" yaml:"tanks"`
	Farms       []FarmSpec `json:"farms" yaml:"farms"`
	Pipes       []PipeSpec `json:"pipes" yaml:"pipes"`
}

// DefaultLayout is one empty 100 L tank feeding one dry plot through a 3 L/min pipe.
func DefaultLayout() Layout {
	return Layout{
		Temperature: entities.DefaultTemperature,
		Tanks:       []TankSpec{{Capacity: 100}},
		Farms:       []FarmSpec{{MaxMoisture: entities.DefaultMaxMoisture}},
		Pipes: []PipeSpec{{
			Tank:            0,
			Farm:            0,
			BaseFlowRate:    entities.DefaultBaseFlowRate,
			TempCoefficient: entities.DefaultFlowTempCoefficient,
		}},
	}
}

// Validate checks that every pipe points at an existing tank and farm.
func (l Layout) Validate() error {
	for i, p := range l.Pipes {
		if p.Tank < 0 || p.Tank >= len(l.Tanks) {
			return fmt.Errorf("pipe %d: tank %d: %w", i, p.Tank, ErrUnknownEntity)
		}
		if p.Farm < 0 || p.Farm >= len(l.Farms) {
			return fmt.Errorf("pipe %d: farm %d: %w", i, p.Farm, ErrUnknownEntity)
		}
	}
	return nil
}
