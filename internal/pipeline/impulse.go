// SPDX-License-Identifier: MIT
/*
Package pipeline runs impulses: an ordered list of DSP blocks whose features
are concatenated into one vector, a classifier over that vector and an
optional anomaly scorer.

Run classifies one complete window. A Session classifies a continuous stream
slice by slice, keeping a sliding window of features, normalising it,
classifying and smoothing the scores once the window is full.
*/
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"kws/internal/anomaly"
	"kws/internal/block"
	"kws/internal/classifier"
	"kws/internal/config"
	"kws/internal/dsp"
	"kws/internal/errs"
	applog "kws/internal/log"
)

// Impulse is a configured model.
type Impulse struct {
	Name            string
	Frequency       int
	WindowSamples   int
	SlicesPerWindow int
	Blocks          []*block.Block
	Classifier      classifier.Classifier
	Anomaly         *anomaly.Scorer
}

// NewImpulse builds blocks, classifier and anomaly scorer from cfg and
// checks that the blocks fill the classifier input exactly.
func NewImpulse(cfg config.ModelConfig) (*Impulse, error) {
	imp := &Impulse{
		Name:            cfg.Name,
		Frequency:       cfg.Frequency,
		WindowSamples:   cfg.WindowSamples,
		SlicesPerWindow: cfg.SlicesPerWindow,
	}
	for _, bc := range cfg.Blocks {
		b, err := block.New(bc, cfg.Frequency)
		if err != nil {
			return nil, err
		}
		imp.Blocks = append(imp.Blocks, b)
	}

	size, err := imp.FeatureSize(cfg.WindowSamples)
	if err != nil {
		return nil, err
	}
	imp.Classifier, err = classifier.New(cfg.Classifier, cfg.Labels, size)
	if err != nil {
		return nil, err
	}
	if cfg.Anomaly != nil {
		imp.Anomaly, err = anomaly.New(*cfg.Anomaly)
		if err != nil {
			return nil, err
		}
	}
	return imp, imp.Validate()
}

// SliceSize is the number of samples per continuous inference.
func (imp *Impulse) SliceSize() int {
	return imp.WindowSamples / imp.SlicesPerWindow
}

// FeatureSize sums the block outputs for a signal of length samples.
func (imp *Impulse) FeatureSize(length int) (int, error) {
	total := 0
	for _, b := range imp.Blocks {
		n, err := b.Extractor.OutputSize(length)
		if err != nil {
			return 0, fmt.Errorf("block %q: %w", b.Name, err)
		}
		total += n
	}
	return total, nil
}

// Validate checks the block outputs against the classifier input width.
func (imp *Impulse) Validate() error {
	if len(imp.Blocks) == 0 {
		return fmt.Errorf("impulse without blocks: %w", errs.ErrParameterInvalid)
	}
	if imp.Classifier == nil {
		return fmt.Errorf("impulse without classifier: %w", errs.ErrParameterInvalid)
	}
	size, err := imp.FeatureSize(imp.WindowSamples)
	if err != nil {
		return err
	}
	if size != imp.Classifier.InputSize() {
		return fmt.Errorf("blocks produce %d features, classifier takes %d: %w", size, imp.Classifier.InputSize(), errs.ErrMatrixSizeMismatch)
	}
	return nil
}

// Timing records where the time of one inference went.
type Timing struct {
	DSP            time.Duration `json:"dsp"`
	Classification time.Duration `json:"classification"`
	Anomaly        time.Duration `json:"anomaly"`
}

// Result is the outcome of one inference. Ready is false while a continuous
// session is still filling its window; no scores are produced then.
type Result struct {
	Slice      uint64             `json:"slice"`
	Ready      bool               `json:"ready"`
	Scores     []classifier.Score `json:"scores,omitempty"`
	Anomaly    float64            `json:"anomaly,omitempty"`
	HasAnomaly bool               `json:"has_anomaly,omitempty"`
	Timing     Timing             `json:"timing"`
	Features   []float64          `json:"-"`
}

// Top returns the highest scoring label.
func (r *Result) Top() (classifier.Score, bool) {
	return classifier.Prediction{Scores: r.Scores}.Top()
}

// Score returns the value for label.
func (r *Result) Score(label string) (float64, bool) {
	for _, s := range r.Scores {
		if s.Label == label {
			return s.Value, true
		}
	}
	return 0, false
}

// printFeatures dumps a feature vector on the diagnostic console.
func printFeatures(m *dsp.Matrix, elapsed time.Duration) {
	var sb strings.Builder
	for i, v := range m.Data {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(applog.FormatFloat(v))
	}
	applog.Printf("Features (%d ms.): %s\n", elapsed.Milliseconds(), sb.String())
}
