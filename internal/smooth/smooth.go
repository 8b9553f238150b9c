// SPDX-License-Identifier: MIT
/*
Package smooth averages classifier scores over the last few inferences so a
single noisy window does not trigger a detection.

The filter keeps a ring of the last N values and a running sum, so Update is
O(1) and allocation free.
*/
package smooth

import (
	"fmt"

	"kws/internal/errs"
)

// MovingAverage is a fixed window running mean. The zero value is not usable.
type MovingAverage struct {
	buf []float64
	pos int
	sum float64
}

// NewMovingAverage creates a filter over n values. n must be positive.
func NewMovingAverage(n int) (*MovingAverage, error) {
	if n <= 0 {
		return nil, fmt.Errorf("moving average over %d values: %w", n, errs.ErrParameterInvalid)
	}
	return &MovingAverage{buf: make([]float64, n)}, nil
}

// Update replaces the oldest value with v and returns the mean of the window.
// Until n values have been seen the missing ones count as zero.
func (m *MovingAverage) Update(v float64) float64 {
	m.sum -= m.buf[m.pos]
	m.buf[m.pos] = v
	m.sum += v
	m.pos++
	if m.pos == len(m.buf) {
		m.pos = 0
	}
	return m.sum / float64(len(m.buf))
}

// Sum is the running total of the window.
func (m *MovingAverage) Sum() float64 {
	return m.sum
}

// Len is the window size.
func (m *MovingAverage) Len() int {
	return len(m.buf)
}

// Reset zeroes the window.
func (m *MovingAverage) Reset() {
	clear(m.buf)
	m.pos = 0
	m.sum = 0
}

// Bank holds one filter per label.
type Bank struct {
	filters []*MovingAverage
}

// NewBank creates labels filters of window n.
func NewBank(labels, n int) (*Bank, error) {
	b := &Bank{filters: make([]*MovingAverage, labels)}
	for i := range b.filters {
		f, err := NewMovingAverage(n)
		if err != nil {
			return nil, err
		}
		b.filters[i] = f
	}
	return b, nil
}

// Apply smooths values in place, one filter per index.
func (b *Bank) Apply(values []float64) error {
	if len(values) != len(b.filters) {
		return fmt.Errorf("smoothing %d scores with %d filters: %w", len(values), len(b.filters), errs.ErrMatrixSizeMismatch)
	}
	for i, v := range values {
		values[i] = b.filters[i].Update(v)
	}
	return nil
}

// Reset zeroes every filter.
func (b *Bank) Reset() {
	for _, f := range b.filters {
		f.Reset()
	}
}
