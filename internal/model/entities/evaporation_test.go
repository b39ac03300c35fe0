package entities

import (
	"math"
	"testing"
	"time"
)

const eps = 1e-9

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestEvaporation(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		temp    float64
		delta   time.Duration
		rate    float64
		want    float64
	}{
		{"reference temperature", 30, 20, time.Minute, 0.5, 0.5},
		{"hot", 30, 30, time.Minute, 0.5, 0.75},
		{"cool", 30, 10, time.Minute, 0.5, 0.25},
		{"freezing caps at zero", 30, -10, time.Minute, 0.5, 0},
		{"exactly zero degrees", 30, 0, time.Minute, 0.5, 0},
		{"bounded by reservoir", 0.2, 20, time.Minute, 0.5, 0.2},
		{"empty reservoir", 0, 35, time.Minute, 2, 0},
		{"zero delta", 30, 20, 0, 0.5, 0},
		{"zero rate", 30, 20, time.Minute, 0, 0},
		{"one second", 100, 20, time.Second, 2, 2.0 / 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaporation(tt.current, tt.temp, tt.delta, tt.rate)
			if !almostEqual(got, tt.want, eps) {
				t.Errorf("Evaporation(%v, %v, %v, %v) = %v, want %v",
					tt.current, tt.temp, tt.delta, tt.rate, got, tt.want)
			}
		})
	}
}

func TestEvaporationMonotonicAboveReference(t *testing.T) {
	prev := Evaporation(1000, 20, time.Minute, 0.5)
	for temp := 21.0; temp <= 45; temp++ {
		got := Evaporation(1000, temp, time.Minute, 0.5)
		if got <= prev {
			t.Fatalf("evaporation at %v°C = %v, not above %v", temp, got, prev)
		}
		prev = got
	}
}

func TestEvaporationNeverNegative(t *testing.T) {
	for temp := -60.0; temp <= 60; temp += 2.5 {
		if got := Evaporation(10, temp, 5*time.Second, 2); got < 0 || got > 10 {
			t.Fatalf("Evaporation at %v°C = %v, want within [0, 10]", temp, got)
		}
	}
}

func TestMoistureEvaporation(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		name  string
		temp  float64
		delta time.Duration
		want  float64
	}{
		{"one day at 20", 20, day, 0.25},
		{"one day at 0", 0, day, 0.05},
		{"negative uses base rate", -15, day, 0.05},
		{"half day at 30", 30, day / 2, 0.175},
		{"zero delta", 25, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MoistureEvaporation(tt.temp, tt.delta)
			if !almostEqual(got, tt.want, eps) {
				t.Errorf("MoistureEvaporation(%v, %v) = %v, want %v", tt.temp, tt.delta, got, tt.want)
			}
		})
	}
}
