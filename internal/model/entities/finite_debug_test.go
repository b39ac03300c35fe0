//go:build simdebug

package entities

import (
	"math"
	"testing"
	"time"
)

func TestNonFiniteInputsPanicInDebugBuilds(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"moisture -Inf temperature", func() { MoistureEvaporation(math.Inf(-1), time.Hour) }},
		{"evaporation NaN temperature", func() { Evaporation(10, math.NaN(), time.Minute, 0.5) }},
		{"world NaN temperature", func() { NewWorld(math.NaN()) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected a panic")
				}
			}()
			tt.fn()
		})
	}
}
