// SPDX-License-Identifier: MIT
//
// Package signal exposes audio and sensor data to the DSP stages through a
// pull interface, so extractors never hold raw buffer pointers.
package signal

import (
	"fmt"

	"kws/internal/errs"
)

// Signal is a logical sample stream of fixed length.
//
// GetData fills out with len(out) samples starting at offset. Requests with
// offset+len(out) > TotalLength() fail with errs.ErrOutOfBounds and leave out
// untouched.
type Signal interface {
	TotalLength() int
	GetData(offset int, out []float64) error
}

// CheckBounds validates a read window against a signal length.
func CheckBounds(offset, length, total int) error {
	if offset < 0 || length < 0 || offset+length > total {
		return fmt.Errorf("read [%d, %d) of %d samples: %w", offset, offset+length, total, errs.ErrOutOfBounds)
	}
	return nil
}

// Floats is a Signal over a float64 slice.
type Floats []float64

// FromFloats wraps data without copying.
func FromFloats(data []float64) Floats {
	return Floats(data)
}

func (s Floats) TotalLength() int { return len(s) }

func (s Floats) GetData(offset int, out []float64) error {
	if err := CheckBounds(offset, len(out), len(s)); err != nil {
		return err
	}
	copy(out, s[offset:offset+len(out)])
	return nil
}

// Int16 is a Signal over PCM samples. Values are converted with a plain
// numeric cast; no scaling to [-1, 1] is applied.
type Int16 []int16

// FromInt16 wraps data without copying.
func FromInt16(data []int16) Int16 {
	return Int16(data)
}

func (s Int16) TotalLength() int { return len(s) }

func (s Int16) GetData(offset int, out []float64) error {
	if err := CheckBounds(offset, len(out), len(s)); err != nil {
		return err
	}
	src := s[offset : offset+len(out)]
	for i, v := range src {
		out[i] = float64(v)
	}
	return nil
}

// Func adapts a read callback into a Signal.
type Func struct {
	Length int
	Read   func(offset int, out []float64) error
}

func (f Func) TotalLength() int { return f.Length }

func (f Func) GetData(offset int, out []float64) error {
	if err := CheckBounds(offset, len(out), f.Length); err != nil {
		return err
	}
	return f.Read(offset, out)
}

// concat presents head followed by tail as one stream.
type concat struct {
	head, tail Signal
}

// Concat returns a Signal reading head then tail. Reads spanning the seam are
// split between the two sources.
func Concat(head, tail Signal) Signal {
	if head == nil || head.TotalLength() == 0 {
		return tail
	}
	return concat{head: head, tail: tail}
}

func (c concat) TotalLength() int {
	return c.head.TotalLength() + c.tail.TotalLength()
}

func (c concat) GetData(offset int, out []float64) error {
	if err := CheckBounds(offset, len(out), c.TotalLength()); err != nil {
		return err
	}
	seam := c.head.TotalLength()
	if offset >= seam {
		return c.tail.GetData(offset-seam, out)
	}
	n := min(len(out), seam-offset)
	if err := c.head.GetData(offset, out[:n]); err != nil {
		return err
	}
	if n == len(out) {
		return nil
	}
	return c.tail.GetData(0, out[n:])
}

// Slice returns the window [offset, offset+length) of sig as its own Signal.
func Slice(sig Signal, offset, length int) (Signal, error) {
	if err := CheckBounds(offset, length, sig.TotalLength()); err != nil {
		return nil, err
	}
	return Func{
		Length: length,
		Read: func(o int, out []float64) error {
			return sig.GetData(offset+o, out)
		},
	}, nil
}
