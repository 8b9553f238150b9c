// SPDX-License-Identifier: MIT
package smooth

import (
	"errors"
	"math"
	"testing"

	"kws/internal/errs"
)

func TestNewMovingAverageRejectsEmptyWindow(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := NewMovingAverage(n); !errors.Is(err, errs.ErrParameterInvalid) {
			t.Errorf("n=%d: got %v, want ErrParameterInvalid", n, err)
		}
	}
}

func TestMovingAverageSumIsLastN(t *testing.T) {
	const n = 3
	m, err := NewMovingAverage(n)
	if err != nil {
		t.Fatal(err)
	}
	values := []float64{1, 2, 3, 4, 5, 6, 7}
	for i, v := range values {
		got := m.Update(v)

		var want float64
		for j := max(0, i-n+1); j <= i; j++ {
			want += values[j]
		}
		if math.Abs(m.Sum()-want) > 1e-12 {
			t.Fatalf("after %d updates sum = %v, want %v", i+1, m.Sum(), want)
		}
		if math.Abs(got-want/n) > 1e-12 {
			t.Fatalf("after %d updates mean = %v, want %v", i+1, got, want/n)
		}
	}
}

func TestMovingAverageConverges(t *testing.T) {
	m, _ := NewMovingAverage(2)
	if got := m.Update(0.9); got != 0.45 {
		t.Errorf("first update = %v, want 0.45", got)
	}
	if got := m.Update(0.9); math.Abs(got-0.9) > 1e-12 {
		t.Errorf("second update = %v, want 0.9", got)
	}
	m.Reset()
	if m.Sum() != 0 {
		t.Errorf("sum after reset = %v", m.Sum())
	}
}

func TestBank(t *testing.T) {
	b, err := NewBank(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	scores := []float64{0.8, 0.2}
	if err := b.Apply(scores); err != nil {
		t.Fatal(err)
	}
	if scores[0] != 0.4 || scores[1] != 0.1 {
		t.Errorf("smoothed = %v", scores)
	}
	if err := b.Apply([]float64{1}); !errors.Is(err, errs.ErrMatrixSizeMismatch) {
		t.Errorf("wrong label count: got %v", err)
	}
}

func TestUpdateNoAllocs(t *testing.T) {
	m, _ := NewMovingAverage(8)
	allocs := testing.AllocsPerRun(100, func() {
		m.Update(0.5)
	})
	if allocs != 0 {
		t.Errorf("Update allocated %v times per run, want 0", allocs)
	}
}
