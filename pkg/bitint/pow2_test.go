// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{-10, 1},     // Negative number
		{0, 1},       // Zero
		{1, 1},       // One
		{8, 8},       // Already power of two
		{10, 16},     // Not power of two
		{400, 512},   // 25 ms frame at 16 kHz
		{512, 512},   // 32 ms frame at 16 kHz
		{1000, 1024}, // Large number
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			result := NextPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("NextPowerOfTwo(%d) = %d, expected %d", tt.n, result, tt.expected)
			}
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected bool
	}{
		{-8, false},
		{0, false},
		{1, true},
		{2, true},
		{7, false},
		{8, true},
		{400, false},
		{512, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			if got := IsPowerOfTwo(tt.n); got != tt.expected {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.n, got, tt.expected)
			}
		})
	}
}

func TestPowerOfTwoNoAllocs(t *testing.T) {
	allocs := testing.AllocsPerRun(100, func() {
		_ = IsPowerOfTwo(NextPowerOfTwo(400))
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations, got %.1f", allocs)
	}
}

func BenchmarkNextPowerOfTwo(b *testing.B) {
	for b.Loop() {
		_ = NextPowerOfTwo(400)
	}
}
