// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package units holds the derived-physics formulas applied to raw sensor
// values. Everything here is pure and allocation free.
package units

import "math"

// Magnus coefficients (over water, -45..60 °C).
const (
	magnusA = 17.27
	magnusB = 237.7
)

// HeatIndexThresholdC is the temperature below which the heat index is the
// air temperature itself.
const HeatIndexThresholdC = 27.0

// DewPoint returns the dew point in °C using the Magnus approximation.
//
//	alpha = (a*T)/(b+T) + ln(H/100)
//	dp    = (b*alpha)/(a-alpha)
//
// The logarithm is undefined for humidity <= 0; in that case, and whenever
// the result is not finite, DewPoint returns 0.
func DewPoint(tempC, humidityPct float64) float64 {
	if humidityPct <= 0 {
		return 0
	}
	alpha := (magnusA*tempC)/(magnusB+tempC) + math.Log(humidityPct/100.0)
	dp := (magnusB * alpha) / (magnusA - alpha)
	if math.IsNaN(dp) || math.IsInf(dp, 0) {
		return 0
	}
	return dp
}

// HeatIndex returns the perceived temperature in °C from the Rothfusz
// regression (NOAA coefficients, Celsius form). Below 27 °C the air
// temperature is returned unchanged.
func HeatIndex(tempC, humidityPct float64) float64 {
	if tempC < HeatIndexThresholdC {
		return tempC
	}

	T, RH := tempC, humidityPct
	return -8.78469475556 +
		1.61139411*T +
		2.33854883889*RH +
		-0.14611605*T*RH +
		-0.012308094*T*T +
		-0.0164248277778*RH*RH +
		0.002211732*T*T*RH +
		0.00072546*T*RH*RH +
		-0.000003582*T*T*RH*RH
}

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
