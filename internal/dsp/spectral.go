// SPDX-License-Identifier: MIT
package dsp

import (
	"cmp"
	"fmt"
	"math/cmplx"
	"slices"
	"strconv"
	"strings"

	"kws/internal/errs"
	"kws/pkg/bitint"
)

const (
	// MaxEdgesLength bounds the comma separated edges string.
	MaxEdgesLength = 127
	// MaxEdges bounds the number of parsed edges.
	MaxEdges = 64
)

// ParseEdges parses a comma separated list of band edges in Hz. Empty
// tokens are skipped.
func ParseEdges(s string) ([]float64, error) {
	if len(s) > MaxEdgesLength {
		return nil, fmt.Errorf("spectral power edges longer than %d characters: %w", MaxEdgesLength, errs.ErrParameterInvalid)
	}
	var edges []float64
	for tok := range strings.SplitSeq(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if len(edges) == MaxEdges {
			return nil, fmt.Errorf("more than %d spectral power edges: %w", MaxEdges, errs.ErrParameterInvalid)
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("spectral power edge %q: %w", tok, errs.ErrParameterInvalid)
		}
		edges = append(edges, v)
	}
	return edges, nil
}

// SpectralParams configures per-axis spectral analysis.
type SpectralParams struct {
	Frequency      float64
	Filter         FilterType
	Cutoff         float64
	Order          int
	FFTLength      int
	PeaksCount     int
	PeaksThreshold float64
	Edges          []float64
	Window         WindowFunc
}

// FeaturesPerAxis is 1 (RMS) + 2 per peak + one band power per edge pair.
func (p SpectralParams) FeaturesPerAxis() int {
	return 1 + 2*p.PeaksCount + max(len(p.Edges)-1, 0)
}

type peak struct {
	freq, height float64
}

// SpectralAnalyzer reuses FFT buffers across axes. Not safe for concurrent
// use.
type SpectralAnalyzer struct {
	params SpectralParams
	spec   *Spectrum
	mag    []float64
	psd    []float64
	peaks  []peak
}

// NewSpectralAnalyzer validates p. A zero FFTLength is chosen per axis as
// the next power of two of the axis length.
func NewSpectralAnalyzer(p SpectralParams) (*SpectralAnalyzer, error) {
	if p.Frequency <= 0 {
		return nil, fmt.Errorf("spectral sample rate %.2f: %w", p.Frequency, errs.ErrParameterInvalid)
	}
	if p.PeaksCount < 0 {
		return nil, fmt.Errorf("spectral peaks count %d: %w", p.PeaksCount, errs.ErrParameterInvalid)
	}
	if p.FFTLength < 0 {
		return nil, fmt.Errorf("spectral fft length %d: %w", p.FFTLength, errs.ErrParameterInvalid)
	}
	a := &SpectralAnalyzer{params: p}
	if p.FFTLength > 0 {
		if err := a.resize(p.FFTLength); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// resize replaces the spectrum and its buffers unless they already have
// length n.
func (a *SpectralAnalyzer) resize(n int) error {
	if a.spec != nil && a.spec.Length() == n {
		return nil
	}
	spec, err := NewSpectrum(n, a.params.Window)
	if err != nil {
		return err
	}
	a.spec = spec
	a.mag = make([]float64, spec.Bins())
	a.psd = make([]float64, spec.Bins())
	a.peaks = make([]peak, 0, spec.Bins())
	return nil
}

// FFTLength is the transform size in use, 0 before the first axis when it
// is chosen from the input.
func (a *SpectralAnalyzer) FFTLength() int {
	if a.spec == nil {
		return 0
	}
	return a.spec.Length()
}

// Axis computes the features of one axis into out, which must hold
// FeaturesPerAxis values. x is centred and filtered in place.
func (a *SpectralAnalyzer) Axis(x, out []float64) error {
	p := a.params
	if len(out) != p.FeaturesPerAxis() {
		return fmt.Errorf("spectral axis into %d values, want %d: %w", len(out), p.FeaturesPerAxis(), errs.ErrMatrixSizeMismatch)
	}

	if p.FFTLength == 0 {
		if err := a.resize(bitint.NextPowerOfTwo(len(x))); err != nil {
			return err
		}
	}

	SubtractMean(x)
	if err := Butterworth(p.Filter, x, p.Frequency, p.Cutoff, p.Order); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrDSP, err)
	}
	out[0] = RMS(x)

	n := float64(a.spec.Length())
	coeffs := a.spec.Transform(x)
	for i, c := range coeffs {
		a.mag[i] = 2 * cmplx.Abs(c) / n
	}
	a.writePeaks(out[1 : 1+2*p.PeaksCount])

	a.periodogram(coeffs, min(len(x), a.spec.Length()))
	a.writeBandPower(out[1+2*p.PeaksCount:])
	return nil
}

// writePeaks stores the highest local maxima above the threshold as
// (frequency, height) pairs, zero-filling unused slots.
func (a *SpectralAnalyzer) writePeaks(out []float64) {
	clear(out)
	a.peaks = a.peaks[:0]
	for i := 1; i < len(a.mag)-1; i++ {
		m := a.mag[i]
		if m > a.mag[i-1] && m >= a.mag[i+1] && m > a.params.PeaksThreshold {
			a.peaks = append(a.peaks, peak{freq: a.spec.Freq(i, a.params.Frequency), height: m})
		}
	}
	slices.SortStableFunc(a.peaks, func(x, y peak) int {
		return cmp.Compare(y.height, x.height)
	})
	for i := 0; i < len(a.peaks) && 2*i+1 < len(out); i++ {
		out[2*i] = a.peaks[i].freq
		out[2*i+1] = a.peaks[i].height
	}
}

// periodogram fills psd with the one-sided power spectral density of a
// boxcar windowed segment of segLen samples.
func (a *SpectralAnalyzer) periodogram(coeffs []complex128, segLen int) {
	scale := 1 / (a.params.Frequency * float64(segLen))
	last := len(coeffs) - 1
	for i, c := range coeffs {
		re, im := real(c), imag(c)
		v := (re*re + im*im) * scale
		if i != 0 && i != last {
			v *= 2
		}
		a.psd[i] = v
	}
}

// writeBandPower integrates the density between consecutive edges.
func (a *SpectralAnalyzer) writeBandPower(out []float64) {
	df := a.params.Frequency / float64(a.spec.Length())
	edges := a.params.Edges
	for k := range out {
		lo, hi := edges[k], edges[k+1]
		var sum float64
		for i, v := range a.psd {
			if f := float64(i) * df; f >= lo && f < hi {
				sum += v
			}
		}
		out[k] = sum * df
	}
}
