// SPDX-License-Identifier: MIT
/*
Package anomaly scores how far a feature vector lies from the clusters seen
during training. Selected features are standard scaled and the score is the
smallest distance to a cluster centre minus that cluster's maximum training
error: negative values are inside a known cluster, positive values are
outliers.
*/
package anomaly

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"kws/internal/config"
	"kws/internal/dsp"
	"kws/internal/errs"
)

type Cluster struct {
	Center   []float64
	MaxError float64
}

// Scorer is not safe for concurrent use.
type Scorer struct {
	axes     []int
	mean     []float64
	scale    []float64
	clusters []Cluster
	x        []float64
}

func New(cfg config.AnomalyConfig) (*Scorer, error) {
	n := len(cfg.Axes)
	if n == 0 || len(cfg.Mean) != n || len(cfg.Scale) != n {
		return nil, fmt.Errorf("anomaly model with %d axes, %d means, %d scales: %w", n, len(cfg.Mean), len(cfg.Scale), errs.ErrParameterInvalid)
	}
	if len(cfg.Clusters) == 0 {
		return nil, fmt.Errorf("anomaly model without clusters: %w", errs.ErrParameterInvalid)
	}
	for i, s := range cfg.Scale {
		if s == 0 {
			return nil, fmt.Errorf("anomaly scale %d is zero: %w", i, errs.ErrParameterInvalid)
		}
	}
	s := &Scorer{
		axes:  cfg.Axes,
		mean:  cfg.Mean,
		scale: cfg.Scale,
		x:     make([]float64, n),
	}
	for i, c := range cfg.Clusters {
		if len(c.Center) != n {
			return nil, fmt.Errorf("cluster %d has %d dimensions, want %d: %w", i, len(c.Center), n, errs.ErrParameterInvalid)
		}
		s.clusters = append(s.clusters, Cluster{Center: c.Center, MaxError: c.MaxError})
	}
	return s, nil
}

// Score evaluates the features of one window.
func (s *Scorer) Score(features *dsp.Matrix) (float64, error) {
	for i, axis := range s.axes {
		if axis < 0 || axis >= features.Size() {
			return 0, fmt.Errorf("anomaly axis %d outside %d features: %w", axis, features.Size(), errs.ErrOutOfBounds)
		}
		s.x[i] = (features.Data[axis] - s.mean[i]) / s.scale[i]
	}

	best := math.Inf(1)
	for _, c := range s.clusters {
		best = min(best, floats.Distance(s.x, c.Center, 2)-c.MaxError)
	}
	return best, nil
}
