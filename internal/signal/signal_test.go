// SPDX-License-Identifier: MIT
package signal

import (
	"errors"
	"testing"

	"kws/internal/errs"
)

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestGetDataBounds(t *testing.T) {
	const total = 64
	sources := map[string]Signal{
		"floats": FromFloats(ramp(total)),
		"int16":  FromInt16(make([]int16, total)),
		"concat": Concat(FromFloats(ramp(10)), FromFloats(ramp(total-10))),
	}

	for name, sig := range sources {
		t.Run(name, func(t *testing.T) {
			if sig.TotalLength() != total {
				t.Fatalf("TotalLength() = %d, want %d", sig.TotalLength(), total)
			}
			for offset := 0; offset <= total; offset += 7 {
				for length := 0; offset+length <= total; length += 5 {
					out := make([]float64, length)
					if err := sig.GetData(offset, out); err != nil {
						t.Fatalf("GetData(%d, %d) unexpected error: %v", offset, length, err)
					}
				}
			}

			out := make([]float64, 2)
			if err := sig.GetData(total-1, out); !errors.Is(err, errs.ErrOutOfBounds) {
				t.Errorf("read past end: got %v, want ErrOutOfBounds", err)
			}
			if err := sig.GetData(-1, out); !errors.Is(err, errs.ErrOutOfBounds) {
				t.Errorf("negative offset: got %v, want ErrOutOfBounds", err)
			}
		})
	}
}

func TestInt16NoScaling(t *testing.T) {
	sig := FromInt16([]int16{-32768, -1, 0, 1, 32767})
	out := make([]float64, 5)
	if err := sig.GetData(0, out); err != nil {
		t.Fatal(err)
	}
	want := []float64{-32768, -1, 0, 1, 32767}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestConcatAcrossSeam(t *testing.T) {
	sig := Concat(FromFloats([]float64{1, 2, 3}), FromFloats([]float64{4, 5, 6}))
	out := make([]float64, 4)
	if err := sig.GetData(1, out); err != nil {
		t.Fatal(err)
	}
	want := []float64{2, 3, 4, 5}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestConcatEmptyHead(t *testing.T) {
	tail := FromFloats([]float64{7, 8})
	if got := Concat(nil, tail); got.TotalLength() != 2 {
		t.Errorf("TotalLength() = %d, want 2", got.TotalLength())
	}
}

func TestSlice(t *testing.T) {
	sig, err := Slice(FromFloats(ramp(10)), 4, 3)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]float64, 3)
	if err := sig.GetData(0, out); err != nil {
		t.Fatal(err)
	}
	if out[0] != 4 || out[2] != 6 {
		t.Errorf("slice data = %v, want [4 5 6]", out)
	}
	if _, err := Slice(FromFloats(ramp(10)), 8, 3); !errors.Is(err, errs.ErrOutOfBounds) {
		t.Errorf("Slice out of range: got %v, want ErrOutOfBounds", err)
	}
}
