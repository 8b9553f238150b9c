// SPDX-License-Identifier: MIT
package pipeline

import (
	"fmt"

	"kws/internal/dsp"
	"kws/internal/errs"
)

// Window accumulates per-slice features until a full classifier input is
// available, then behaves as a sliding window: every new slice is written at
// the trailing slot and the oldest slice is dropped by Shift.
//
// A Window starts FILLING. It becomes FULL on the commit that fills its last
// slot, which is exactly capacity/sliceSize commits after a reset, and stays
// FULL until Reset.
type Window struct {
	buf       *dsp.Matrix
	sliceSize int
	offset    int
	full      bool
}

func NewWindow(capacity, sliceSize int) (*Window, error) {
	if sliceSize <= 0 || capacity <= 0 || capacity%sliceSize != 0 {
		return nil, fmt.Errorf("window of %d values in slices of %d: %w", capacity, sliceSize, errs.ErrParameterInvalid)
	}
	buf, err := dsp.NewMatrix(1, capacity)
	if err != nil {
		return nil, err
	}
	return &Window{buf: buf, sliceSize: sliceSize}, nil
}

// Slot is where the next slice's features go.
func (w *Window) Slot() []float64 {
	return w.buf.Data[w.offset : w.offset+w.sliceSize]
}

// Commit accepts the slice written into Slot.
func (w *Window) Commit() {
	if w.full {
		return
	}
	w.offset += w.sliceSize
	if w.offset > w.buf.Size()-w.sliceSize {
		w.full = true
		w.offset -= w.sliceSize
	}
}

func (w *Window) Full() bool {
	return w.full
}

// Len is the capacity, which is also the classifier input width.
func (w *Window) Len() int {
	return w.buf.Size()
}

func (w *Window) SliceSize() int {
	return w.sliceSize
}

// Snapshot copies the window into dst.
func (w *Window) Snapshot(dst *dsp.Matrix) error {
	return dst.CopyFrom(w.buf)
}

// Shift drops the oldest slice and zeroes the trailing slot.
func (w *Window) Shift() {
	n := copy(w.buf.Data, w.buf.Data[w.sliceSize:])
	clear(w.buf.Data[n:])
}

// Reset empties the window and returns it to FILLING.
func (w *Window) Reset() {
	clear(w.buf.Data)
	w.offset = 0
	w.full = false
}
