// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"

	"kws/internal/errs"
)

// WindowFunc selects the taper applied to each frame before the FFT.
type WindowFunc int

const (
	Rectangular WindowFunc = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

var windowNames = map[string]WindowFunc{
	"":                Rectangular,
	"none":            Rectangular,
	"rectangular":     Rectangular,
	"bartletthann":    BartlettHann,
	"blackman":        Blackman,
	"blackmannuttall": BlackmanNuttall,
	"hann":            Hann,
	"hanning":         Hann,
	"hamming":         Hamming,
	"lanczos":         Lanczos,
	"nuttall":         Nuttall,
}

// ParseWindowFunc maps a case-insensitive name to a WindowFunc. The empty
// string selects Rectangular, which leaves frames untouched.
func ParseWindowFunc(name string) (WindowFunc, error) {
	w, ok := windowNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Rectangular, fmt.Errorf("unknown window function %q: %w", name, errs.ErrParameterInvalid)
	}
	return w, nil
}

// Coefficients returns n window coefficients, or nil for Rectangular.
func (w WindowFunc) Coefficients(n int) []float64 {
	if w == Rectangular || n <= 0 {
		return nil
	}
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch w {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	}
	return coeffs
}
