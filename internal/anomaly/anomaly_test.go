// SPDX-License-Identifier: MIT
package anomaly

import (
	"errors"
	"math"
	"testing"

	"kws/internal/config"
	"kws/internal/dsp"
	"kws/internal/errs"
)

func model() config.AnomalyConfig {
	return config.AnomalyConfig{
		Axes:  []int{0, 2},
		Mean:  []float64{1, 1},
		Scale: []float64{2, 2},
		Clusters: []config.ClusterConfig{
			{Center: []float64{0, 0}, MaxError: 0.5},
			{Center: []float64{10, 10}, MaxError: 1},
		},
	}
}

func TestScoreNearestCluster(t *testing.T) {
	s, err := New(model())
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name     string
		features []float64
		want     float64
	}{
		{"at centre", []float64{1, 99, 1}, -0.5},
		// (7-1)/2 = 3 and (9-1)/2 = 4: distance 5 from the origin cluster.
		{"outlier", []float64{7, 0, 9}, 4.5},
		{"second cluster", []float64{21, 0, 21}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := dsp.ViewMatrix(1, 3, tt.features)
			got, err := s.Score(m)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreAxisOutOfRange(t *testing.T) {
	s, _ := New(model())
	m, _ := dsp.ViewMatrix(1, 2, []float64{0, 0})
	if _, err := s.Score(m); !errors.Is(err, errs.ErrOutOfBounds) {
		t.Errorf("got %v, want ErrOutOfBounds", err)
	}
}

func TestNewValidation(t *testing.T) {
	bad := model()
	bad.Scale = []float64{1}
	if _, err := New(bad); !errors.Is(err, errs.ErrParameterInvalid) {
		t.Errorf("scale count: got %v", err)
	}
	bad = model()
	bad.Clusters[1].Center = []float64{1}
	if _, err := New(bad); !errors.Is(err, errs.ErrParameterInvalid) {
		t.Errorf("cluster dims: got %v", err)
	}
	bad = model()
	bad.Scale[0] = 0
	if _, err := New(bad); !errors.Is(err, errs.ErrParameterInvalid) {
		t.Errorf("zero scale: got %v", err)
	}
}
