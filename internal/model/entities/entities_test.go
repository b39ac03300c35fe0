package entities

import (
	"testing"
	"time"
)

func TestWaterTankRemoveMoreThanAvailable(t *testing.T) {
	tank := NewWaterTank(100, 30)

	got := tank.RemoveWater(50)
	if got != 30 {
		t.Errorf("RemoveWater(50) = %v, want 30", got)
	}
	if v := tank.Stats().Volume; v != 0 {
		t.Errorf("volume = %v, want 0", v)
	}
	if got := tank.RemoveWater(5); got != 0 {
		t.Errorf("RemoveWater on empty tank = %v, want 0", got)
	}
}

func TestWaterTankAddWaterClamps(t *testing.T) {
	tests := []struct {
		name    string
		initial float64
		add     float64
		want    float64
	}{
		{"within capacity", 10, 20, 30},
		{"overflow is discarded", 90, 50, 100},
		{"negative is ignored", 40, -15, 40},
		{"zero", 40, 0, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tank := NewWaterTank(100, tt.initial)
			tank.AddWater(tt.add)
			if got := tank.Stats().Volume; got != tt.want {
				t.Errorf("volume = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewWaterTankClampsInitialVolume(t *testing.T) {
	if v := NewWaterTank(50, 80).Stats().Volume; v != 50 {
		t.Errorf("volume = %v, want 50", v)
	}
	if s := NewWaterTank(-5, 10).Stats(); s.Capacity != 0 || s.Volume != 0 {
		t.Errorf("stats = %+v, want zero capacity and volume", s)
	}
}

func TestWaterTankUpdateEvaporates(t *testing.T) {
	tank := NewWaterTank(100, 30)
	tank.Update(NewWorld(20), time.Minute)
	if v := tank.Stats().Volume; !almostEqual(v, 29.5, eps) {
		t.Errorf("volume = %v, want 29.5", v)
	}

	empty := NewWaterTank(100, 0)
	empty.Update(NewWorld(45), time.Hour)
	if v := empty.Stats().Volume; v != 0 {
		t.Errorf("empty tank volume = %v, want 0", v)
	}
}

func TestFarmAbsorbClampsAtMaxMoisture(t *testing.T) {
	farm := NewFarmPlot(0.8)
	farm.AddWater(1000)
	farm.Absorb(0.75)

	farm.Absorb(1.0)

	s := farm.Stats()
	if s.Moisture != 0.8 {
		t.Errorf("moisture = %v, want exactly 0.8", s.Moisture)
	}
	// 0.75 then 0.05 of moisture equals 800 liters taken from the surface
	if !almostEqual(s.SurfaceWater, 200, 1e-6) {
		t.Errorf("surface water = %v, want 200", s.SurfaceWater)
	}

	farm.Absorb(0.3)
	if got := farm.Stats(); got != s {
		t.Errorf("saturated plot changed: %+v -> %+v", s, got)
	}
}

func TestFarmAbsorbFloorsSurfaceWater(t *testing.T) {
	farm := NewFarmPlot(1)
	farm.AddWater(5)
	farm.Absorb(0.5)

	s := farm.Stats()
	if s.SurfaceWater != 0 {
		t.Errorf("surface water = %v, want 0", s.SurfaceWater)
	}
	if s.Moisture != 0.5 {
		t.Errorf("moisture = %v, want 0.5", s.Moisture)
	}
}

func TestFarmUpdate(t *testing.T) {
	world := NewWorld(20)
	soilLoss := 0.25 * 60_000 / 86_400_000 / 1000

	t.Run("absorbs all surface water below saturation", func(t *testing.T) {
		farm := NewFarmPlot(0.8)
		farm.AddWater(12)
		farm.Update(world, time.Minute)

		s := farm.Stats()
		if s.SurfaceWater != 0 {
			t.Errorf("surface water = %v, want 0", s.SurfaceWater)
		}
		if !almostEqual(s.Moisture, 0.012-soilLoss, eps) {
			t.Errorf("moisture = %v, want %v", s.Moisture, 0.012-soilLoss)
		}
	})

	t.Run("saturated plot keeps ponding water that evaporates", func(t *testing.T) {
		farm := NewFarmPlot(0.01)
		farm.AddWater(100)
		farm.Update(world, time.Minute)

		s := farm.Stats()
		if !almostEqual(s.SurfaceWater, 88, 1e-6) {
			t.Errorf("surface water = %v, want 88", s.SurfaceWater)
		}
		if !almostEqual(s.Moisture, 0.01-soilLoss, eps) {
			t.Errorf("moisture = %v, want %v", s.Moisture, 0.01-soilLoss)
		}
	})

	t.Run("dry plot stays at zero", func(t *testing.T) {
		farm := NewFarmPlot(1)
		farm.Update(NewWorld(40), 24*time.Hour)
		if s := farm.Stats(); s.Moisture != 0 || s.SurfaceWater != 0 {
			t.Errorf("stats = %+v, want zero moisture and surface water", s)
		}
	})
}

func TestPipeUpdate(t *testing.T) {
	tests := []struct {
		name         string
		tankVolume   float64
		baseFlow     float64
		temp         float64
		wantFlow     float64
		wantRate     float64
		wantFlowing  bool
		wantTankLeft float64
	}{
		{"full minute at reference", 30, 10, 20, 10, 10, true, 20},
		{"warmer pipe flows faster", 30, 10, 30, 11, 11, true, 19},
		{"partial delivery keeps theoretical rate", 4, 10, 20, 4, 10, true, 0},
		{"empty source", 0, 10, 20, 0, 0, false, 0},
		{"zero base flow", 30, 0, 20, 0, 0, false, 30},
		{"extreme cold never reverses", 30, 10, -200, 0, 0, false, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tank := NewWaterTank(100, tt.tankVolume)
			farm := NewFarmPlot(1)
			pipe := NewPipe(tank, farm, tt.baseFlow, DefaultFlowTempCoefficient)

			pipe.Update(NewWorld(tt.temp), time.Minute)

			s := pipe.Stats()
			if !almostEqual(s.LastFlow, tt.wantFlow, 1e-9) {
				t.Errorf("LastFlow = %v, want %v", s.LastFlow, tt.wantFlow)
			}
			if !almostEqual(s.CurrentFlowRate, tt.wantRate, 1e-9) {
				t.Errorf("CurrentFlowRate = %v, want %v", s.CurrentFlowRate, tt.wantRate)
			}
			if s.IsFlowing != tt.wantFlowing {
				t.Errorf("IsFlowing = %v, want %v", s.IsFlowing, tt.wantFlowing)
			}
			if s.LastKnownTemperature != tt.temp {
				t.Errorf("LastKnownTemperature = %v, want %v", s.LastKnownTemperature, tt.temp)
			}
			if v := tank.Stats().Volume; !almostEqual(v, tt.wantTankLeft, 1e-9) {
				t.Errorf("tank volume = %v, want %v", v, tt.wantTankLeft)
			}
			if w := farm.Stats().SurfaceWater; !almostEqual(w, tt.wantFlow, 1e-9) {
				t.Errorf("farm surface water = %v, want %v", w, tt.wantFlow)
			}
		})
	}
}

func TestPipeNeverDeliversMoreThanSourceHeld(t *testing.T) {
	for _, volume := range []float64{0, 0.001, 1, 2.5, 9.99, 50} {
		tank := NewWaterTank(100, volume)
		farm := NewFarmPlot(1)
		pipe := NewPipe(tank, farm, 10, DefaultFlowTempCoefficient)

		pipe.Update(NewWorld(25), 90*time.Second)

		if got := pipe.Stats().LastFlow; got > volume {
			t.Errorf("volume %v: delivered %v", volume, got)
		}
	}
}

func TestPipeSetBaseFlow(t *testing.T) {
	pipe := NewPipe(NewWaterTank(10, 10), NewFarmPlot(1), 3, DefaultFlowTempCoefficient)
	pipe.SetBaseFlow(7.5)
	if got := pipe.Stats().BaseFlowRate; got != 7.5 {
		t.Errorf("BaseFlowRate = %v, want 7.5", got)
	}
	pipe.SetBaseFlow(-2)
	if got := pipe.Stats().BaseFlowRate; got != 0 {
		t.Errorf("BaseFlowRate after negative = %v, want 0", got)
	}
}

func TestZeroDeltaLeavesStateUnchanged(t *testing.T) {
	world := NewWorld(35)
	tank := NewWaterTank(100, 42)
	farm := NewFarmPlot(0.9)
	farm.AddWater(17)
	pipe := NewPipe(tank, farm, 10, DefaultFlowTempCoefficient)

	beforeTank, beforeFarm, beforePipe := tank.Stats(), farm.Stats(), pipe.Stats()

	for _, e := range []Updatable{farm, tank, pipe} {
		e.Update(world, 0)
	}

	if got := tank.Stats(); got != beforeTank {
		t.Errorf("tank changed: %+v -> %+v", beforeTank, got)
	}
	if got := farm.Stats(); got != beforeFarm {
		t.Errorf("farm changed: %+v -> %+v", beforeFarm, got)
	}
	if got := pipe.Stats(); got != beforePipe {
		t.Errorf("pipe changed: %+v -> %+v", beforePipe, got)
	}
}
