// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// Gate vetoes detections on slices whose peak amplitude stays below a
// threshold. A zero threshold leaves the gate always open.
type Gate struct {
	threshold atomic.Int32 // absolute amplitude, 0..32767
}

func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	return g
}

// SetThreshold adjusts the threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	threshold = max(min(threshold, 1.0), 0.0)
	g.threshold.Store(int32(threshold * math.MaxInt16))
}

// Threshold returns the current threshold in the range 0.0-1.0.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold.Load()) / math.MaxInt16
}

// Open reports whether a slice is loud enough to allow detections.
func (g *Gate) Open(samples []int16) bool {
	th := g.threshold.Load()
	if th == 0 {
		return true
	}
	return Peak(samples) > th
}

// Peak returns the largest absolute sample value.
// Performance Critical: branchless, no allocations.
func Peak(samples []int16) int32 {
	var peak int32
	for _, s := range samples {
		sample := int32(s)
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask
		diff := amplitude - peak
		peak += (diff & (diff >> 31)) ^ diff
	}
	return peak
}
