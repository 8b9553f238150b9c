// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"kws/internal/errs"
	"kws/pkg/bitint"
)

// FLTEpsilon replaces exact zeros before taking logarithms and guards
// divisions by a standard deviation. It is the single precision machine
// epsilon so features match models trained on float32 pipelines.
const FLTEpsilon = 1.1920929e-07

// Spectrum holds the reusable buffers for power spectra of a fixed FFT size.
// A Spectrum is not safe for concurrent use.
type Spectrum struct {
	fft    *fourier.FFT
	n      int
	input  []float64
	coeffs []complex128
	window []float64
}

// NewSpectrum prepares an n point real FFT. n must be a power of two.
func NewSpectrum(n int, w WindowFunc) (*Spectrum, error) {
	if !bitint.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("fft length must be a power of 2, got %d: %w", n, errs.ErrParameterInvalid)
	}
	return &Spectrum{
		fft:    fourier.NewFFT(n),
		n:      n,
		input:  make([]float64, n),
		coeffs: make([]complex128, n/2+1),
		window: w.Coefficients(n),
	}, nil
}

// Bins is the number of output bins, n/2+1.
func (s *Spectrum) Bins() int {
	return len(s.coeffs)
}

// Length is the FFT size.
func (s *Spectrum) Length() int {
	return s.n
}

// Power writes (1/n)|rfft(frame)|^2 into out, which must have Bins()
// elements. The frame is zero-padded or truncated to the FFT size.
func (s *Spectrum) Power(frame, out []float64) error {
	if len(out) != len(s.coeffs) {
		return fmt.Errorf("power spectrum of %d bins into %d: %w", len(s.coeffs), len(out), errs.ErrMatrixSizeMismatch)
	}
	s.Transform(frame)

	scale := 1.0 / float64(s.n)
	for i, c := range s.coeffs {
		re, im := real(c), imag(c)
		out[i] = scale * (re*re + im*im)
	}
	return nil
}

// Magnitude writes |rfft(frame)| into out.
func (s *Spectrum) Magnitude(frame, out []float64) error {
	if err := s.Power(frame, out); err != nil {
		return err
	}
	n := float64(s.n)
	for i, p := range out {
		out[i] = math.Sqrt(p * n)
	}
	return nil
}

// Freq returns the centre frequency of bin i at sample rate fs.
func (s *Spectrum) Freq(i int, fs float64) float64 {
	return s.fft.Freq(i) * fs
}

// Transform returns the rfft of frame. The slice is owned by the Spectrum and
// is overwritten by the next call.
func (s *Spectrum) Transform(frame []float64) []complex128 {
	s.load(frame)
	return s.fft.Coefficients(s.coeffs, s.input)
}

func (s *Spectrum) load(frame []float64) {
	n := copy(s.input, frame)
	clear(s.input[n:])
	if s.window != nil {
		for i := range s.input {
			s.input[i] *= s.window[i]
		}
	}
}
