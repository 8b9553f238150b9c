// SPDX-License-Identifier: MIT
package dsp

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"kws/internal/errs"
	"kws/internal/signal"
	"kws/pkg/bitint"
)

// MFCCParams configures cepstral extraction.
type MFCCParams struct {
	Frequency     int     // sample rate of the signal, Hz
	FrameLength   float64 // seconds
	FrameStride   float64 // seconds
	NumFilters    int
	NumCepstral   int
	FFTLength     int // 0 picks the next power of two above the frame
	LowFrequency  float64
	HighFrequency float64 // 0 selects Nyquist
	Window        WindowFunc
}

// FrameSamples is the frame length in samples.
func (p MFCCParams) FrameSamples() int {
	return FrameSamples(p.Frequency, p.FrameLength)
}

// StrideSamples is the hop between frames in samples.
func (p MFCCParams) StrideSamples() int {
	return FrameSamples(p.Frequency, p.FrameStride)
}

// NumFrames is the number of frames extracted from length samples.
func (p MFCCParams) NumFrames(length int) (int, error) {
	return NumStackFrames(length, p.Frequency, p.FrameLength, p.FrameStride, false)
}

// OutputSize is NumFrames(length) * NumCepstral.
func (p MFCCParams) OutputSize(length int) (int, error) {
	n, err := p.NumFrames(length)
	if err != nil {
		return 0, err
	}
	return n * p.NumCepstral, nil
}

// MFCC computes mel frequency cepstral coefficients frame by frame. The
// filterbank and DCT basis are built once. An MFCC is not safe for
// concurrent use.
type MFCC struct {
	params MFCCParams
	spec   *Spectrum
	fbank  *mat.Dense
	dct    *mat.Dense

	frame    []float64
	power    *mat.VecDense
	energies *mat.VecDense
	cepstra  *mat.VecDense
}

func NewMFCC(p MFCCParams) (*MFCC, error) {
	if p.NumCepstral <= 0 || p.NumCepstral > p.NumFilters {
		return nil, fmt.Errorf("%d cepstral coefficients from %d filters: %w", p.NumCepstral, p.NumFilters, errs.ErrParameterInvalid)
	}
	frameLen := p.FrameSamples()
	if frameLen <= 0 || p.StrideSamples() <= 0 {
		return nil, fmt.Errorf("frame %d samples, stride %d: %w", frameLen, p.StrideSamples(), errs.ErrParameterInvalid)
	}

	if p.FFTLength == 0 {
		p.FFTLength = bitint.NextPowerOfTwo(frameLen)
	}
	spec, err := NewSpectrum(p.FFTLength, p.Window)
	if err != nil {
		return nil, err
	}
	fbank, err := Filterbank(p.NumFilters, spec.Bins(), p.Frequency, p.LowFrequency, p.HighFrequency)
	if err != nil {
		return nil, err
	}

	return &MFCC{
		params:   p,
		spec:     spec,
		fbank:    fbank,
		dct:      DCTMatrix(p.NumFilters, p.NumCepstral),
		frame:    make([]float64, frameLen),
		power:    mat.NewVecDense(spec.Bins(), nil),
		energies: mat.NewVecDense(p.NumFilters, nil),
		cepstra:  mat.NewVecDense(p.NumCepstral, nil),
	}, nil
}

func (m *MFCC) Params() MFCCParams {
	return m.params
}

// Compute extracts every frame of sig into dst, NumCepstral values per
// frame. dst must hold exactly OutputSize(sig.TotalLength()) values.
// Cancellation is polled once per frame.
func (m *MFCC) Compute(ctx context.Context, sig signal.Signal, dst []float64) error {
	frames, err := StackFrames(sig.TotalLength(), m.params.Frequency, m.params.FrameLength, m.params.FrameStride, false)
	if err != nil {
		return err
	}
	nc := m.params.NumCepstral
	if len(dst) != len(frames.Offsets)*nc {
		return fmt.Errorf("mfcc of %d frames into %d values: %w", len(frames.Offsets), len(dst), errs.ErrMatrixSizeMismatch)
	}

	power := m.power.RawVector().Data
	energies := m.energies.RawVector().Data
	for i, offset := range frames.Offsets {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("mfcc frame %d: %w", i, errs.ErrCanceled)
		}
		if err := sig.GetData(offset, m.frame); err != nil {
			return fmt.Errorf("mfcc frame %d at %d: %w", i, offset, err)
		}
		if err := m.spec.Power(m.frame, power); err != nil {
			return fmt.Errorf("mfcc power spectrum: %w: %w", errs.ErrDSP, err)
		}

		energy := floats.Sum(power)
		if energy == 0 {
			energy = FLTEpsilon
		}

		m.energies.MulVec(m.fbank, m.power)
		for j, e := range energies {
			if e == 0 {
				e = FLTEpsilon
			}
			energies[j] = math.Log(e)
		}
		m.cepstra.MulVec(m.dct, m.energies)

		row := dst[i*nc : (i+1)*nc]
		copy(row, m.cepstra.RawVector().Data)
		row[0] = math.Log(energy)
	}
	return nil
}
