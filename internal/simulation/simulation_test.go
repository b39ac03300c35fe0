package simulation

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

func scenarioLayout() Layout {
	return Layout{
		Temperature: 20,
		Tanks:       []TankSpec{{Capacity: 100, Volume: 30}},
		Farms:       []FarmSpec{{MaxMoisture: 0.8, SurfaceWater: 12}},
		Pipes:       []PipeSpec{{Tank: 0, Farm: 0, BaseFlowRate: 10, TempCoefficient: 0.01}},
	}
}

func mustNew(t *testing.T, l Layout) *Simulation {
	t.Helper()
	s, err := New(l)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestOneMinuteScenario(t *testing.T) {
	s := mustNew(t, scenarioLayout())

	s.Step(time.Minute)

	snap := s.Snapshot()
	pipe := snap.Pipes[0]
	if math.Abs(pipe.LastFlow-10) > 1e-9 {
		t.Errorf("delivered = %v, want 10", pipe.LastFlow)
	}
	// tank: 0.5 L evaporated, then 10 L drawn by the pipe
	if got := snap.Tanks[0].Volume; math.Abs(got-19.5) > 1e-9 {
		t.Errorf("tank volume = %v, want 19.5", got)
	}
	// farm ran first: the 12 L were absorbed, then the pipe added 10 L on top
	farm := snap.Farms[0]
	if math.Abs(farm.SurfaceWater-10) > 1e-9 {
		t.Errorf("surface water = %v, want 10", farm.SurfaceWater)
	}
	soilLoss := 0.25 * 60_000 / 86_400_000 / 1000
	if math.Abs(farm.Moisture-(0.012-soilLoss)) > 1e-9 {
		t.Errorf("moisture = %v, want %v", farm.Moisture, 0.012-soilLoss)
	}
	if snap.Tick != 1 {
		t.Errorf("tick = %d, want 1", snap.Tick)
	}
}

func totalWater(s *Simulation) float64 {
	snap := s.Snapshot()
	total := 0.0
	for _, t := range snap.Tanks {
		total += t.Volume
	}
	for _, f := range snap.Farms {
		total += f.SurfaceWater + f.Moisture*1000
	}
	return total
}

func TestTicksOnlyRemoveWaterAndKeepBounds(t *testing.T) {
	layout := Layout{
		Temperature: 20,
		Tanks:       []TankSpec{{Capacity: 100, Volume: 95}, {Capacity: 40, Volume: 10}},
		Farms:       []FarmSpec{{MaxMoisture: 0.3, SurfaceWater: 50}, {MaxMoisture: 1}},
		Pipes: []PipeSpec{
			{Tank: 0, Farm: 0, BaseFlowRate: 12, TempCoefficient: 0.01},
			{Tank: 0, Farm: 1, BaseFlowRate: 4, TempCoefficient: 0.02},
			{Tank: 1, Farm: 1, BaseFlowRate: 30, TempCoefficient: 0.01},
		},
	}
	s := mustNew(t, layout)
	temps := []float64{20, 35, -5, 0, 42, 12, -30, 25}
	deltas := []time.Duration{0, time.Millisecond, 100 * time.Millisecond, time.Second, time.Minute, 10 * time.Minute}

	prevTotal := totalWater(s)
	prevTanks := s.Snapshot().Tanks
	for i := 0; i < 400; i++ {
		s.SetTemperature(temps[i%len(temps)])
		s.Step(deltas[i%len(deltas)])

		snap := s.Snapshot()
		for j, tank := range snap.Tanks {
			if tank.Volume < 0 || tank.Volume > tank.Capacity {
				t.Fatalf("step %d: tank %d volume %v out of [0, %v]", i, j, tank.Volume, tank.Capacity)
			}
			if tank.Volume > prevTanks[j].Volume+1e-9 {
				t.Fatalf("step %d: tank %d grew from %v to %v", i, j, prevTanks[j].Volume, tank.Volume)
			}
		}
		for j, farm := range snap.Farms {
			if farm.Moisture < 0 || farm.Moisture > farm.MaxMoisture {
				t.Fatalf("step %d: farm %d moisture %v out of [0, %v]", i, j, farm.Moisture, farm.MaxMoisture)
			}
			if farm.SurfaceWater < 0 {
				t.Fatalf("step %d: farm %d surface water %v", i, j, farm.SurfaceWater)
			}
		}
		total := totalWater(s)
		if total > prevTotal+1e-9 {
			t.Fatalf("step %d: total water grew from %v to %v", i, prevTotal, total)
		}
		prevTotal = total
		prevTanks = snap.Tanks
	}
}

func TestFarmWithoutInflowNeverGains(t *testing.T) {
	s := mustNew(t, Layout{
		Temperature: 28,
		Tanks:       []TankSpec{{Capacity: 100, Volume: 100}},
		Farms:       []FarmSpec{{MaxMoisture: 0.05, SurfaceWater: 80}},
		Pipes:       []PipeSpec{{Tank: 0, Farm: 0, BaseFlowRate: 0}},
	})

	farmWater := func() float64 {
		f := s.Snapshot().Farms[0]
		return f.SurfaceWater + f.Moisture*1000
	}
	prev := farmWater()
	for i := 0; i < 200; i++ {
		s.Step(2 * time.Second)
		cur := farmWater()
		if cur > prev+1e-9 {
			t.Fatalf("step %d: farm water grew from %v to %v", i, prev, cur)
		}
		prev = cur
	}
}

func TestExternalEntryPoints(t *testing.T) {
	s := mustNew(t, DefaultLayout())

	if err := s.AddTankWater(0, 40); err != nil {
		t.Fatalf("AddTankWater: %v", err)
	}
	if err := s.AddFarmWater(0, 3); err != nil {
		t.Fatalf("AddFarmWater: %v", err)
	}
	if err := s.SetBaseFlow(0, 6); err != nil {
		t.Fatalf("SetBaseFlow: %v", err)
	}
	s.SetTemperature(31)

	snap := s.Snapshot()
	if snap.Tanks[0].Volume != 40 || snap.Farms[0].SurfaceWater != 3 ||
		snap.Pipes[0].BaseFlowRate != 6 || snap.Temperature != 31 {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	tests := []struct {
		name string
		err  error
	}{
		{"tank", s.AddTankWater(1, 1)},
		{"negative tank", s.AddTankWater(-1, 1)},
		{"farm", s.AddFarmWater(3, 1)},
		{"pipe", s.SetBaseFlow(2, 1)},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, ErrUnknownEntity) {
			t.Errorf("%s: err = %v, want ErrUnknownEntity", tt.name, tt.err)
		}
	}
}

func TestLayoutValidation(t *testing.T) {
	bad := DefaultLayout()
	bad.Pipes[0].Farm = 4
	if _, err := New(bad); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("New with dangling pipe: err = %v, want ErrUnknownEntity", err)
	}

	bad = DefaultLayout()
	bad.Pipes[0].Tank = -1
	if err := bad.Validate(); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("Validate: err = %v, want ErrUnknownEntity", err)
	}
}

func TestTopologyIsACopy(t *testing.T) {
	s := mustNew(t, scenarioLayout())
	links := s.Topology()
	if len(links) != 1 || links[0] != (Link{Pipe: 0, Tank: 0, Farm: 0}) {
		t.Fatalf("Topology() = %+v", links)
	}
	links[0].Tank = 9
	if s.Topology()[0].Tank != 0 {
		t.Error("Topology exposes internal state")
	}
}

func TestSnapshotsWhileStepping(t *testing.T) {
	s := mustNew(t, scenarioLayout())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.Step(10 * time.Millisecond)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			snap := s.Snapshot()
			if len(snap.Tanks) != 1 || snap.Tanks[0].Volume < 0 {
				t.Errorf("bad snapshot %+v", snap)
				return
			}
		}
	}()
	wg.Wait()

	if got := s.Snapshot().Tick; got != 500 {
		t.Errorf("tick = %d, want 500", got)
	}
}
