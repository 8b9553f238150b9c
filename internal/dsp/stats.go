// SPDX-License-Identifier: MIT
package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RMS is the root mean square of x, 0 for an empty slice.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// Skewness is the biased sample skewness m3/m2^1.5. A constant input
// yields 0.
func Skewness(x []float64) float64 {
	mean, std := stat.PopMeanStdDev(x, nil)
	if std == 0 {
		return 0
	}
	m3 := stat.MomentAbout(3, x, mean, nil)
	return m3 / (std * std * std)
}

// Kurtosis is the biased Fisher kurtosis m4/m2^2 - 3. A constant input
// yields 0 rather than NaN.
func Kurtosis(x []float64) float64 {
	mean, variance := stat.PopMeanVariance(x, nil)
	if variance == 0 {
		return 0
	}
	m4 := stat.MomentAbout(4, x, mean, nil)
	return m4/(variance*variance) - 3
}

// SubtractMean centres x in place.
func SubtractMean(x []float64) {
	if len(x) == 0 {
		return
	}
	floats.AddConst(-stat.Mean(x, nil), x)
}
