// SPDX-License-Identifier: MIT
package block

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"kws/internal/config"
	"kws/internal/dsp"
	"kws/internal/errs"
	"kws/internal/signal"
)

type statFunc func([]float64) float64

// Flatten reduces every axis to a handful of summary statistics.
type Flatten struct {
	axes  int
	scale float64
	stats []statFunc
}

func NewFlatten(cfg config.BlockConfig) (*Flatten, error) {
	if cfg.Axes <= 0 {
		return nil, fmt.Errorf("flatten block over %d axes: %w", cfg.Axes, errs.ErrParameterInvalid)
	}
	var stats []statFunc
	add := func(enabled bool, f statFunc) {
		if enabled {
			stats = append(stats, f)
		}
	}
	add(cfg.Average, func(x []float64) float64 { return stat.Mean(x, nil) })
	add(cfg.Minimum, floats.Min)
	add(cfg.Maximum, floats.Max)
	add(cfg.RMS, dsp.RMS)
	add(cfg.Stdev, func(x []float64) float64 {
		_, std := stat.PopMeanStdDev(x, nil)
		return std
	})
	add(cfg.Skewness, dsp.Skewness)
	add(cfg.Kurtosis, dsp.Kurtosis)

	if len(stats) == 0 {
		return nil, fmt.Errorf("flatten block has no statistics enabled: %w", errs.ErrParameterInvalid)
	}
	return &Flatten{axes: cfg.Axes, scale: cfg.ScaleAxes, stats: stats}, nil
}

func (e *Flatten) OutputSize(signalLength int) (int, error) {
	if signalLength == 0 || signalLength%e.axes != 0 {
		return 0, fmt.Errorf("signal of %d samples over %d axes: %w", signalLength, e.axes, errs.ErrMatrixSizeMismatch)
	}
	return e.axes * len(e.stats), nil
}

func (e *Flatten) Extract(_ context.Context, sig signal.Signal, out *dsp.Matrix) error {
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
	i := 0
	for axis := range e.axes {
		row := in.Row(axis)
		for _, f := range e.stats {
			out.Data[i] = f(row)
			i++
		}
	}
	out.Flatten()
	return nil
}
