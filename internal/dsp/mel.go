// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"kws/internal/errs"
)

// HzToMel uses the natural log form 1127*ln(1+f/700).
func HzToMel(f float64) float64 {
	return 1127.0 * math.Log(1+f/700.0)
}

// MelToHz is the inverse of HzToMel.
func MelToHz(m float64) float64 {
	return 700.0 * (math.Exp(m/1127.0) - 1)
}

// Filterbank builds numFilters triangular mel filters over coefficients
// spectrum bins (fft_length/2+1). highFreq 0 selects the Nyquist frequency.
// The result is numFilters x coefficients.
func Filterbank(numFilters, coefficients, fs int, lowFreq, highFreq float64) (*mat.Dense, error) {
	if highFreq <= 0 {
		highFreq = float64(fs) / 2
	}
	if numFilters <= 0 || coefficients <= 0 || fs <= 0 {
		return nil, fmt.Errorf("filterbank %d filters over %d bins at %d Hz: %w", numFilters, coefficients, fs, errs.ErrParameterInvalid)
	}
	if lowFreq < 0 || lowFreq >= highFreq || highFreq > float64(fs)/2 {
		return nil, fmt.Errorf("filterbank band %.1f..%.1f Hz at %d Hz: %w", lowFreq, highFreq, fs, errs.ErrParameterInvalid)
	}

	mels := make([]float64, numFilters+2)
	floats.Span(mels, HzToMel(lowFreq), HzToMel(highFreq))

	index := make([]float64, len(mels))
	for i, m := range mels {
		hz := min(max(MelToHz(m), lowFreq), highFreq)
		index[i] = math.Floor(float64(coefficients+1)*hz/float64(fs) - 0.00001)
	}

	fb := mat.NewDense(numFilters, coefficients, nil)
	for i := range numFilters {
		left, middle, right := index[i], index[i+1], index[i+2]
		row := fb.RawRowView(i)
		for z := range row {
			row[z] = triangle(float64(z), left, middle, right)
		}
	}
	return fb, nil
}

// triangle evaluates one filter at bin x. The falling edge wins at x == middle.
func triangle(x, left, middle, right float64) float64 {
	switch {
	case middle <= x && x < right:
		return (right - x) / (right - middle)
	case left < x && x <= middle:
		return (x - left) / (middle - left)
	}
	return 0
}
