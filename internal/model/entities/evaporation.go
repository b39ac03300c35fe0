package entities

import (
	"math"
	"time"
)

const (
	referenceTemperature = 20.0 // °C
	evapCoeffPerDegree   = 0.05 // +5% per grado sopra i 20 °C

	moistureBaseRatePerDay = 0.05
	moistureRatePerDegree  = 0.01
	msPerDay               = 86_400_000.0
)

// Evaporation returns the volume lost by a reservoir holding current liters during delta,
// given its evaporation rate at 20 °C in L/min. The rate deviates linearly by 5% per degree;
// below 0 °C the reduction is capped at 100%. The result is always in [0, current].
func Evaporation(current, temperature float64, delta time.Duration, baseRateAt20C float64) float64 {
	if !finiteInputs(current, temperature, baseRateAt20C) {
		return 0
	}
	perSecondAt20C := baseRateAt20C / 60
	coeff := evapCoeffPerDegree * (temperature - referenceTemperature)
	if temperature < 0 {
		coeff = math.Max(coeff, -1)
	}
	adjustedPerSecond := perSecondAt20C * (1 + coeff)
	evaporated := finite(adjustedPerSecond * millis(delta) / 1000)

	return math.Max(0, math.Min(current, evaporated))
}

// MoistureEvaporation returns the soil moisture lost during delta. Soil loss follows a
// daily rate independent of how much water is stored.
func MoistureEvaporation(temperature float64, delta time.Duration) float64 {
	if !finiteInputs(temperature) {
		return 0
	}
	ratePerDay := moistureBaseRatePerDay + temperature*moistureRatePerDegree
	if temperature < 0 {
		ratePerDay = moistureBaseRatePerDay
	}
	return math.Max(0, finite(ratePerDay*millis(delta)/msPerDay))
}

func millis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

// finite rejects NaN and ±Inf. Those only come out of a broken formula or input, so
// debug builds (tag simdebug) panic and release builds clamp to 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		if strictMath {
			panic("entities: non-finite value in simulation formula")
		}
		return 0
	}
	return v
}

// amount normalizes an externally supplied quantity: negative and non-finite become 0.
func amount(v float64) float64 {
	return math.Max(0, finite(v))
}

// finiteInputs reports whether every formula input is finite. A non-finite input gets
// the same treatment as a non-finite result.
func finiteInputs(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			finite(v)
			return false
		}
	}
	return true
}
