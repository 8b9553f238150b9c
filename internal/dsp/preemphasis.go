// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"

	"kws/internal/errs"
	"kws/internal/signal"
)

// Preemphasis lazily applies y[n] = x[n] - cof*x[n-shift] on top of another
// Signal. History before the first sample wraps to the end of the signal.
//
// Reads must move forward: the history ring is only refetched from the
// source when offset >= shift, otherwise it carries over from the previous
// call.
type Preemphasis struct {
	src   signal.Signal
	shift int
	cof   float64
	prev  []float64
	end   []float64
}

var _ signal.Signal = (*Preemphasis)(nil)

// NewPreemphasis wraps src. A negative shift is relative to the signal end.
func NewPreemphasis(src signal.Signal, shift int, cof float64) (*Preemphasis, error) {
	total := src.TotalLength()
	if shift < 0 {
		shift += total
	}
	if shift <= 0 || shift > total {
		return nil, fmt.Errorf("pre-emphasis history of %d samples over %d: %w", shift, total, errs.ErrOutOfMemory)
	}

	p := &Preemphasis{
		src:   src,
		shift: shift,
		cof:   cof,
		prev:  make([]float64, shift),
		end:   make([]float64, shift),
	}
	if err := src.GetData(total-shift, p.end); err != nil {
		return nil, fmt.Errorf("pre-emphasis end of signal: %w", err)
	}
	return p, nil
}

func (p *Preemphasis) TotalLength() int {
	return p.src.TotalLength()
}

func (p *Preemphasis) GetData(offset int, out []float64) error {
	if err := signal.CheckBounds(offset, len(out), p.src.TotalLength()); err != nil {
		return err
	}

	if offset-p.shift >= 0 {
		if err := p.src.GetData(offset-p.shift, p.prev); err != nil {
			return err
		}
	}
	if err := p.src.GetData(offset, out); err != nil {
		return err
	}

	last := p.shift - 1
	for ix, now := range out {
		if offset+ix < p.shift {
			out[ix] = now - p.cof*p.end[offset+ix]
		} else {
			out[ix] = now - p.cof*p.prev[0]
		}
		copy(p.prev, p.prev[1:])
		p.prev[last] = now
	}
	return nil
}
