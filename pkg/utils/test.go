// SPDX-License-Identifier: MIT
//
// Package utils holds test fixtures shared across packages: synthetic
// 16-bit audio and a transport that records what it is sent.
package utils

import (
	"math"
	"sync"
)

// MockTransport records every sent value for later inspection. It is safe
// for concurrent use.
type MockTransport struct {
	mu     sync.Mutex
	sent   []any
	closed bool
}

func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	m.sent = append(m.sent, data)
	m.mu.Unlock()
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.sent...)
}

func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateSineWave returns size samples of a sine at frequency with the
// given peak amplitude as a fraction of full scale.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = toInt16(math.Sin(2*math.Pi*frequency*t) * amplitude)
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental with its second and third
// harmonics at 90% of full scale.
func GenerateComplexWave(size int, sampleRate float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = toInt16(signal * 0.9)
	}
	return buffer
}

func toInt16(v float64) int16 {
	return int16(max(min(math.Round(v*math.MaxInt16), math.MaxInt16), math.MinInt16))
}

// FindPeakBin returns the index of the largest magnitude in
// magnitudes[startBin:endBin+1], clamping the range to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	startBin = max(startBin, 0)
	endBin = min(endBin, len(magnitudes)-1)

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}
