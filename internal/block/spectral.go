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

// Spectral computes per-axis RMS, FFT peaks and band powers.
type Spectral struct {
	axes     int
	scale    float64
	perAxis  int
	analyzer *dsp.SpectralAnalyzer
}

func NewSpectral(cfg config.BlockConfig, freq int) (*Spectral, error) {
	if cfg.Axes <= 0 {
		return nil, fmt.Errorf("spectral block over %d axes: %w", cfg.Axes, errs.ErrParameterInvalid)
	}
	filter, err := dsp.ParseFilterType(cfg.FilterType)
	if err != nil {
		return nil, err
	}
	edges, err := dsp.ParseEdges(cfg.SpectralPowerEdges)
	if err != nil {
		return nil, err
	}
	window, err := dsp.ParseWindowFunc(cfg.FFTWindow)
	if err != nil {
		return nil, err
	}
	p := dsp.SpectralParams{
		Frequency:      float64(freq),
		Filter:         filter,
		Cutoff:         cfg.FilterCutoff,
		Order:          cfg.FilterOrder,
		FFTLength:      cfg.FFTLength,
		PeaksCount:     cfg.SpectralPeaksCount,
		PeaksThreshold: cfg.SpectralPeaksThreshold,
		Edges:          edges,
		Window:         window,
	}
	a, err := dsp.NewSpectralAnalyzer(p)
	if err != nil {
		return nil, err
	}
	return &Spectral{axes: cfg.Axes, scale: cfg.ScaleAxes, perAxis: p.FeaturesPerAxis(), analyzer: a}, nil
}

func (e *Spectral) OutputSize(signalLength int) (int, error) {
	if signalLength%e.axes != 0 {
		return 0, fmt.Errorf("signal of %d samples over %d axes: %w", signalLength, e.axes, errs.ErrMatrixSizeMismatch)
	}
	return e.axes * e.perAxis, nil
}

func (e *Spectral) Extract(ctx context.Context, sig signal.Signal, out *dsp.Matrix) error {
	size, err := e.OutputSize(sig.TotalLength())
	if err != nil {
		return err
	}
	if err := checkOutput(out, size); err != nil {
		return err
	}
	in, err := readAxes(sig, e.axes, e.scale)
	if err != nil {
		return err
	}
	for axis := range e.axes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("spectral axis %d: %w", axis, errs.ErrCanceled)
		}
		dst := out.Data[axis*e.perAxis : (axis+1)*e.perAxis]
		if err := e.analyzer.Axis(in.Row(axis), dst); err != nil {
			return fmt.Errorf("spectral axis %d: %w", axis, err)
		}
	}
	out.Flatten()
	return nil
}
