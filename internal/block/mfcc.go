// SPDX-License-Identifier: MIT
package block

import (
	"context"
	"fmt"

	"kws/internal/config"
	"kws/internal/dsp"
	"kws/internal/errs"
	"kws/internal/signal"
)

// MFCC extracts normalised cepstral coefficients from a whole window.
type MFCC struct {
	mfcc     *dsp.MFCC
	preCof   float64
	preShift int
	winSize  int
}

func NewMFCC(cfg config.BlockConfig, freq int) (*MFCC, error) {
	window, err := dsp.ParseWindowFunc(cfg.FFTWindow)
	if err != nil {
		return nil, err
	}
	m, err := dsp.NewMFCC(dsp.MFCCParams{
		Frequency:     freq,
		FrameLength:   cfg.FrameLength,
		FrameStride:   cfg.FrameStride,
		NumFilters:    cfg.NumFilters,
		NumCepstral:   cfg.NumCepstral,
		FFTLength:     cfg.FFTLength,
		LowFrequency:  cfg.LowFrequency,
		HighFrequency: cfg.HighFrequency,
		Window:        window,
	})
	if err != nil {
		return nil, err
	}
	if cfg.WinSize <= 0 {
		return nil, fmt.Errorf("mfcc win_size %d: %w", cfg.WinSize, errs.ErrParameterInvalid)
	}
	shift := cfg.PreShift
	if shift == 0 {
		shift = 1
	}
	return &MFCC{mfcc: m, preCof: cfg.PreCof, preShift: shift, winSize: cfg.WinSize}, nil
}

func (e *MFCC) OutputSize(signalLength int) (int, error) {
	return e.mfcc.Params().OutputSize(signalLength)
}

func (e *MFCC) Extract(ctx context.Context, sig signal.Signal, out *dsp.Matrix) error {
	size, err := e.OutputSize(sig.TotalLength())
	if err != nil {
		return err
	}
	if err := checkOutput(out, size); err != nil {
		return err
	}

	pre, err := dsp.NewPreemphasis(sig, e.preShift, e.preCof)
	if err != nil {
		return err
	}

	nc := e.mfcc.Params().NumCepstral
	if err := out.Reshape(size/nc, nc); err != nil {
		return err
	}
	if err := e.mfcc.Compute(ctx, pre, out.Data); err != nil {
		return fmt.Errorf("mfcc: %w", err)
	}
	if err := dsp.CMVNW(out, e.winSize, true); err != nil {
		return fmt.Errorf("mfcc normalisation: %w: %w", errs.ErrDSP, err)
	}
	out.Flatten()
	return nil
}

// MFCCSlice is the continuous mode variant. It skips normalisation, which
// runs over the assembled window instead, and prepends the last frame length
// of the previous slice so frames straddling the slice boundary are not
// lost. The first slice after a reset has no history: its frames are placed
// at the end of the output and the leading rows are zero.
type MFCCSlice struct {
	MFCC
	history    []float64
	hasHistory bool
}

func NewMFCCSlice(cfg config.BlockConfig, freq int) (*MFCCSlice, error) {
	base, err := NewMFCC(cfg, freq)
	if err != nil {
		return nil, err
	}
	return &MFCCSlice{
		MFCC:    *base,
		history: make([]float64, base.mfcc.Params().FrameSamples()),
	}, nil
}

// OutputSize is floor(slice/stride) frames of NumCepstral values, the same
// for the first and every later slice.
func (e *MFCCSlice) OutputSize(signalLength int) (int, error) {
	p := e.mfcc.Params()
	if signalLength < len(e.history) {
		return 0, fmt.Errorf("slice of %d samples shorter than one %d sample frame: %w", signalLength, len(e.history), errs.ErrParameterInvalid)
	}
	return signalLength / p.StrideSamples() * p.NumCepstral, nil
}

func (e *MFCCSlice) Extract(ctx context.Context, sig signal.Signal, out *dsp.Matrix) error {
	n := sig.TotalLength()
	size, err := e.OutputSize(n)
	if err != nil {
		return err
	}
	if err := checkOutput(out, size); err != nil {
		return err
	}

	src := sig
	if e.hasHistory {
		src = signal.Concat(signal.FromFloats(e.history), sig)
	}
	pre, err := dsp.NewPreemphasis(src, e.preShift, e.preCof)
	if err != nil {
		return err
	}

	p := e.mfcc.Params()
	frames, err := p.NumFrames(src.TotalLength())
	if err != nil {
		return err
	}
	lead := size - frames*p.NumCepstral
	if lead < 0 {
		return fmt.Errorf("%d frames exceed slice output of %d values: %w", frames, size, errs.ErrMatrixSizeMismatch)
	}
	clear(out.Data[:lead])
	if err := e.mfcc.Compute(ctx, pre, out.Data[lead:]); err != nil {
		return fmt.Errorf("mfcc slice: %w", err)
	}

	if err := sig.GetData(n-len(e.history), e.history); err != nil {
		return err
	}
	e.hasHistory = true
	out.Flatten()
	return nil
}

// Reset forgets the previous slice.
func (e *MFCCSlice) Reset() {
	clear(e.history)
	e.hasHistory = false
}
