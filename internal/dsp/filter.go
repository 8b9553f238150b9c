// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"math"

	"kws/internal/errs"
)

// FilterType selects the Butterworth response.
type FilterType int

const (
	NoFilter FilterType = iota
	LowPass
	HighPass
)

// ParseFilterType accepts "low", "high" and "none" (or empty).
func ParseFilterType(name string) (FilterType, error) {
	switch name {
	case "", "none":
		return NoFilter, nil
	case "low":
		return LowPass, nil
	case "high":
		return HighPass, nil
	}
	return NoFilter, fmt.Errorf("unknown filter type %q: %w", name, errs.ErrParameterInvalid)
}

func (t FilterType) String() string {
	switch t {
	case LowPass:
		return "low"
	case HighPass:
		return "high"
	}
	return "none"
}

// Butterworth filters x in place with a cascade of order/2 biquad sections.
// order must be a positive even number and cutoff must lie below Nyquist.
func Butterworth(t FilterType, x []float64, fs, cutoff float64, order int) error {
	if t == NoFilter {
		return nil
	}
	if order <= 0 || order%2 != 0 {
		return fmt.Errorf("butterworth order %d: %w", order, errs.ErrParameterInvalid)
	}
	if cutoff <= 0 || cutoff >= fs/2 {
		return fmt.Errorf("butterworth cutoff %.2f Hz at %.2f Hz: %w", cutoff, fs, errs.ErrParameterInvalid)
	}

	sections := order / 2
	a := math.Tan(math.Pi * cutoff / fs)
	a2 := a * a

	gain := make([]float64, sections)
	d1 := make([]float64, sections)
	d2 := make([]float64, sections)
	w0 := make([]float64, sections)
	w1 := make([]float64, sections)
	w2 := make([]float64, sections)

	for i := range sections {
		r := math.Sin(math.Pi * (2*float64(i) + 1) / (4 * float64(sections)))
		s := a2 + 2*a*r + 1
		if t == LowPass {
			gain[i] = a2 / s
		} else {
			gain[i] = 1 / s
		}
		d1[i] = 2 * (1 - a2) / s
		d2[i] = -(a2 - 2*a*r + 1) / s
	}

	for n, v := range x {
		for i := range sections {
			w0[i] = d1[i]*w1[i] + d2[i]*w2[i] + v
			if t == LowPass {
				v = gain[i] * (w0[i] + 2*w1[i] + w2[i])
			} else {
				v = gain[i] * (w0[i] - 2*w1[i] + w2[i])
			}
			w2[i] = w1[i]
			w1[i] = w0[i]
		}
		x[n] = v
	}
	return nil
}
