// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"kws/internal/errs"
)

// CMVNW applies sliding window cepstral mean (and optionally variance)
// normalisation in place. Rows are time steps and columns are coefficients.
// Each row is normalised by the statistics of the win rows centred on it,
// with the edges padded by symmetric reflection. An even win behaves like
// win-1.
func CMVNW(m *Matrix, win int, varianceNormalization bool) error {
	if win <= 0 {
		return fmt.Errorf("cmvnw window %d: %w", win, errs.ErrParameterInvalid)
	}
	if m.Rows == 0 || m.Cols == 0 {
		return nil
	}
	if m.Rows*m.Cols != len(m.Data) {
		return fmt.Errorf("cmvnw over %dx%d with %d values: %w", m.Rows, m.Cols, len(m.Data), errs.ErrMatrixSizeMismatch)
	}

	pad := (win - 1) / 2
	span := 2*pad + 1
	src := make([]float64, len(m.Data))
	copy(src, m.Data)
	column := make([]float64, span)

	for ix := range m.Rows {
		out := m.Row(ix)
		for col := range m.Cols {
			for k := range span {
				r := reflect(ix-pad+k, m.Rows)
				column[k] = src[r*m.Cols+col]
			}
			mean, std := stat.PopMeanStdDev(column, nil)
			v := src[ix*m.Cols+col] - mean
			if varianceNormalization {
				v /= std + FLTEpsilon
			}
			out[col] = v
		}
	}
	return nil
}

// reflect maps an index outside [0, n) back into range using symmetric
// padding, which repeats the edge sample and bounces for long pads.
func reflect(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}
