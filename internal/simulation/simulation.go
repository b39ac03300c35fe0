// Package simulation owns the entities of a run and advances them in time.
package simulation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/farmsim/internal/model/entities"
	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
)

var ErrUnknownEntity = errors.New("unknown entity")

// Link records which tank and farm a pipe connects.
type Link struct {
	Pipe int `json:"pipe"`
	Tank int `json:"tank"`
	Farm int `json:"farm"`
}

// Simulation is the single owner of the world and every entity.
// Pipes reach tanks and farms only through the links fixed at construction.
//
// One RWMutex serializes ticks with external mutations; snapshots take the read lock.
type Simulation struct {
	mu sync.RWMutex

	world *entities.World
	tanks []*entities.WaterTank
	farms []*entities.FarmPlot
	pipes []*entities.Pipe
	links []Link

	// farms, then tanks, then pipes
	order []entities.Updatable
	ticks uint64
}

func New(layout Layout) (*Simulation, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}

	s := &Simulation{world: entities.NewWorld(layout.Temperature)}
	for _, t := range layout.Tanks {
		s.tanks = append(s.tanks, entities.NewWaterTank(t.Capacity, t.Volume))
	}
	for _, f := range layout.Farms {
		farm := entities.NewFarmPlot(f.MaxMoisture)
		farm.AddWater(f.SurfaceWater)
		s.farms = append(s.farms, farm)
	}
	for i, p := range layout.Pipes {
		s.pipes = append(s.pipes, entities.NewPipe(s.tanks[p.Tank], s.farms[p.Farm], p.BaseFlowRate, p.TempCoefficient))
		s.links = append(s.links, Link{Pipe: i, Tank: p.Tank, Farm: p.Farm})
	}

	for _, f := range s.farms {
		s.order = append(s.order, f)
	}
	for _, t := range s.tanks {
		s.order = append(s.order, t)
	}
	for _, p := range s.pipes {
		s.order = append(s.order, p)
	}
	return s, nil
}

// Step runs one tick of length delta over every entity in the fixed order
// farm -> tank -> pipe: evaporation is applied before the pipe draws from the tank.
func (s *Simulation) Step(delta time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.order {
		e.Update(s.world, delta)
	}
	s.ticks++
}

func (s *Simulation) AddTankWater(tank int, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tank < 0 || tank >= len(s.tanks) {
		return fmt.Errorf("tank %d: %w", tank, ErrUnknownEntity)
	}
	s.tanks[tank].AddWater(amount)
	return nil
}

func (s *Simulation) AddFarmWater(farm int, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if farm < 0 || farm >= len(s.farms) {
		return fmt.Errorf("farm %d: %w", farm, ErrUnknownEntity)
	}
	s.farms[farm].AddWater(amount)
	return nil
}

func (s *Simulation) SetTemperature(t float64) {
	s.mu.Lock()
	s.world.SetTemperature(t)
	s.mu.Unlock()
}

func (s *Simulation) SetBaseFlow(pipe int, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pipe < 0 || pipe >= len(s.pipes) {
		return fmt.Errorf("pipe %d: %w", pipe, ErrUnknownEntity)
	}
	s.pipes[pipe].SetBaseFlow(rate)
	return nil
}

// Topology returns a copy of the pipe wiring.
func (s *Simulation) Topology() []Link {
	out := make([]Link, len(s.links))
	copy(out, s.links)
	return out
}

// Snapshot reads every entity under the read lock, so all values belong to the same tick.
func (s *Simulation) Snapshot() messages.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := messages.Snapshot{
		Tick:        s.ticks,
		Temperature: s.world.Temperature(),
		Tanks:       make([]messages.TankStats, 0, len(s.tanks)),
		Farms:       make([]messages.FarmStats, 0, len(s.farms)),
		Pipes:       make([]messages.PipeStats, 0, len(s.pipes)),
	}
	for _, t := range s.tanks {
		snap.Tanks = append(snap.Tanks, t.Stats())
	}
	for _, f := range s.farms {
		snap.Farms = append(snap.Farms, f.Stats())
	}
	for _, p := range s.pipes {
		snap.Pipes = append(snap.Pipes, p.Stats())
	}
	return snap
}
