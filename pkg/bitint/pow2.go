/*
Package bitint provides the power-of-two helpers used to size FFTs.

Both functions are O(1), allocation free and safe to call from the
inference hot path.

Usage:

	// Pick an FFT length for a 400 sample frame
	n := bitint.NextPowerOfTwo(400) // Returns 512

	// Verify a configured FFT length
	ok := bitint.IsPowerOfTwo(n)

NextPowerOfTwo relies on bits.Len of size-1. Without the subtraction an
exact power of two would be doubled: bits.Len(8) is 4 and 1<<4 is 16,
while bits.Len(7) is 3 and 1<<3 is 8.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output  Explanation
//	4      4       Already power of 2 (preserved)
//	5      8       Next power after 5
//	0      1       Handle zero case
//	-1     1       Handle negative case
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2. Powers of 2 have exactly one
// bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
