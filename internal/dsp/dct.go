// SPDX-License-Identifier: MIT
package dsp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DCTMatrix returns the keep x n orthonormal DCT-II basis. Multiplying a
// row vector by its transpose yields the first keep coefficients.
func DCTMatrix(n, keep int) *mat.Dense {
	keep = min(keep, n)
	d := mat.NewDense(keep, n, nil)
	s0 := math.Sqrt(1 / float64(n))
	sk := math.Sqrt(2 / float64(n))
	for k := range keep {
		scale := sk
		if k == 0 {
			scale = s0
		}
		row := d.RawRowView(k)
		for i := range row {
			row[i] = scale * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
	}
	return d
}
