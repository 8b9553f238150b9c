// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"math"

	"kws/internal/errs"
)

// FrameSamples converts a duration in seconds to a sample count at freq.
func FrameSamples(freq int, seconds float64) int {
	return int(math.Round(float64(freq) * seconds))
}

// NumStackFrames returns how many frames StackFrames produces for a signal
// of length samples. Without zero padding this is
// floor((length - frameLen) / stride); a signal shorter than one frame yields
// zero frames.
func NumStackFrames(length, freq int, frameLength, frameStride float64, zeroPadding bool) (int, error) {
	frameLen := FrameSamples(freq, frameLength)
	stride := FrameSamples(freq, frameStride)
	if frameLen <= 0 || stride <= 0 {
		return 0, fmt.Errorf("frame length %d, stride %d: %w", frameLen, stride, errs.ErrParameterInvalid)
	}
	if length < frameLen {
		return 0, nil
	}

	n := float64(length-frameLen) / float64(stride)
	if zeroPadding {
		return int(math.Ceil(n)), nil
	}
	return int(math.Floor(n)), nil
}

// Frames describes a framing of a signal.
type Frames struct {
	Offsets []int // start sample of every frame
	Length  int   // samples per frame
	Stride  int
}

// StackFrames splits a signal of length samples into overlapping frames.
func StackFrames(length, freq int, frameLength, frameStride float64, zeroPadding bool) (Frames, error) {
	n, err := NumStackFrames(length, freq, frameLength, frameStride, zeroPadding)
	if err != nil {
		return Frames{}, err
	}
	f := Frames{
		Offsets: make([]int, n),
		Length:  FrameSamples(freq, frameLength),
		Stride:  FrameSamples(freq, frameStride),
	}
	for i := range f.Offsets {
		f.Offsets[i] = i * f.Stride
	}
	return f, nil
}
