// SPDX-License-Identifier: MIT
/*
Package dsp contains the numeric kernels behind the feature extractors:
pre-emphasis, framing, power spectra, mel filterbanks, cepstral
normalisation, Butterworth filtering and per-axis statistics.

Kernels operate on Matrix, a shape over a fixed backing slice. Reshaping never
reallocates; it only reinterprets rows and columns and refuses any shape whose
element count differs from the backing store.
*/
package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"kws/internal/errs"
)

// Matrix is a row-major view with independent shape metadata.
type Matrix struct {
	Rows, Cols int
	Data       []float64
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("matrix %dx%d: %w", rows, cols, errs.ErrOutOfMemory)
	}
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}, nil
}

// ViewMatrix wraps data as a rows x cols matrix without copying.
func ViewMatrix(rows, cols int, data []float64) (*Matrix, error) {
	if rows < 0 || cols < 0 || rows*cols != len(data) {
		return nil, fmt.Errorf("view %dx%d over %d values: %w", rows, cols, len(data), errs.ErrMatrixSizeMismatch)
	}
	return &Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

// Size is the capacity of the backing store.
func (m *Matrix) Size() int {
	return len(m.Data)
}

// Reshape reinterprets the backing store as rows x cols.
func (m *Matrix) Reshape(rows, cols int) error {
	if rows < 0 || cols < 0 || rows*cols != len(m.Data) {
		return fmt.Errorf("reshape %dx%d to %dx%d: %w", m.Rows, m.Cols, rows, cols, errs.ErrMatrixSizeMismatch)
	}
	m.Rows, m.Cols = rows, cols
	return nil
}

// Flatten reshapes to a single row.
func (m *Matrix) Flatten() {
	m.Rows, m.Cols = 1, len(m.Data)
}

// Row returns row i as a slice of the backing store.
func (m *Matrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Copy returns a deep copy.
func (m *Matrix) Copy() *Matrix {
	data := make([]float64, len(m.Data))
	copy(data, m.Data)
	return &Matrix{Rows: m.Rows, Cols: m.Cols, Data: data}
}

// CopyFrom copies src into m. Both must have the same capacity; m takes the
// shape of src.
func (m *Matrix) CopyFrom(src *Matrix) error {
	if len(src.Data) != len(m.Data) {
		return fmt.Errorf("copy %d values into %d: %w", len(src.Data), len(m.Data), errs.ErrMatrixSizeMismatch)
	}
	copy(m.Data, src.Data)
	m.Rows, m.Cols = src.Rows, src.Cols
	return nil
}

// Dense returns a gonum view sharing the backing store. It panics on an
// empty matrix, as gonum does.
func (m *Matrix) Dense() *mat.Dense {
	return mat.NewDense(m.Rows, m.Cols, m.Data)
}

// Transpose rearranges the data in place so that row i becomes column i.
func (m *Matrix) Transpose() {
	if m.Rows <= 1 || m.Cols <= 1 {
		m.Rows, m.Cols = m.Cols, m.Rows
		return
	}
	t := mat.DenseCopyOf(m.Dense().T())
	copy(m.Data, t.RawMatrix().Data)
	m.Rows, m.Cols = m.Cols, m.Rows
}

// Scale multiplies every element by f.
func (m *Matrix) Scale(f float64) {
	if f == 1 {
		return
	}
	for i := range m.Data {
		m.Data[i] *= f
	}
}
