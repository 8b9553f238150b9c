// SPDX-License-Identifier: MIT
/*
Package classifier adapts inference engines to the pipeline.

An engine receives the flattened feature matrix of one window and returns one
score per label. Engines are chosen by name from configuration:

	fixed  constant scores, for dry runs and tests
	dense  single dense layer with softmax, weights from YAML or msgpack
	none   no classification; the pipeline only runs DSP
*/
package classifier

import (
	"context"
	"fmt"
	"time"

	"kws/internal/config"
	"kws/internal/dsp"
	"kws/internal/errs"
	applog "kws/internal/log"
)

// Score is the confidence for one label.
type Score struct {
	Label string  `json:"label" msgpack:"label"`
	Value float64 `json:"value" msgpack:"value"`
}

// Prediction is the output of one inference.
type Prediction struct {
	Scores  []Score
	Elapsed time.Duration
}

// Top returns the highest scoring label.
func (p Prediction) Top() (Score, bool) {
	if len(p.Scores) == 0 {
		return Score{}, false
	}
	best := p.Scores[0]
	for _, s := range p.Scores[1:] {
		if s.Value > best.Value {
			best = s
		}
	}
	return best, true
}

// Classifier runs inference over a 1 x InputSize feature matrix.
type Classifier interface {
	Labels() []string
	InputSize() int
	Classify(ctx context.Context, features *dsp.Matrix, debug bool) (Prediction, error)
}

// New builds the engine named by cfg.Engine. inputSize is the width the
// impulse's blocks produce; engines with their own shape are checked
// against it.
func New(cfg config.ClassifierConfig, labels []string, inputSize int) (Classifier, error) {
	var (
		c   Classifier
		err error
	)
	switch cfg.Engine {
	case "fixed":
		c, err = NewFixed(labels, cfg.Scores, inputSize)
	case "dense":
		var model *DenseModel
		model, err = LoadDense(cfg.Path)
		if err == nil {
			c, err = NewDense(model, labels, quantizationFrom(cfg))
		}
	case "none", "":
		c = NewNone(labels, inputSize)
	default:
		err = fmt.Errorf("unknown classifier engine %q: %w", cfg.Engine, errs.ErrParameterInvalid)
	}
	if err != nil {
		return nil, err
	}
	if c.InputSize() != inputSize {
		return nil, fmt.Errorf("classifier expects %d features, blocks produce %d: %w", c.InputSize(), inputSize, errs.ErrMatrixSizeMismatch)
	}
	return c, nil
}

func checkInput(ctx context.Context, features *dsp.Matrix, want int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("classify: %w", errs.ErrCanceled)
	}
	if features.Size() != want {
		return fmt.Errorf("%w: %d features for an input of %d: %w", errs.ErrInferenceEngine, features.Size(), want, errs.ErrMatrixSizeMismatch)
	}
	return nil
}

func scores(labels []string, values []float64) []Score {
	out := make([]Score, len(labels))
	for i, l := range labels {
		out[i] = Score{Label: l, Value: values[i]}
	}
	return out
}

// printPrediction mirrors the per-inference debug table.
func printPrediction(p Prediction) {
	applog.Printf("Predictions (time: %d ms.):\n", p.Elapsed.Milliseconds())
	for _, s := range p.Scores {
		applog.Printf("%s:\t%s\n", s.Label, applog.FormatFloat(s.Value))
	}
}

// Fixed returns the same scores for every window.
type Fixed struct {
	labels    []string
	values    []float64
	inputSize int
}

func NewFixed(labels []string, values []float64, inputSize int) (*Fixed, error) {
	if len(values) != len(labels) {
		return nil, fmt.Errorf("%d fixed scores for %d labels: %w", len(values), len(labels), errs.ErrParameterInvalid)
	}
	return &Fixed{labels: labels, values: values, inputSize: inputSize}, nil
}

func (f *Fixed) Labels() []string { return f.labels }
func (f *Fixed) InputSize() int   { return f.inputSize }

func (f *Fixed) Classify(ctx context.Context, features *dsp.Matrix, debug bool) (Prediction, error) {
	start := time.Now()
	if err := checkInput(ctx, features, f.inputSize); err != nil {
		return Prediction{}, err
	}
	p := Prediction{Scores: scores(f.labels, f.values), Elapsed: time.Since(start)}
	if debug {
		printPrediction(p)
	}
	return p, nil
}

// None accepts features and produces no scores.
type None struct {
	labels    []string
	inputSize int
}

func NewNone(labels []string, inputSize int) *None {
	return &None{labels: labels, inputSize: inputSize}
}

func (n *None) Labels() []string { return n.labels }
func (n *None) InputSize() int   { return n.inputSize }

func (n *None) Classify(ctx context.Context, features *dsp.Matrix, _ bool) (Prediction, error) {
	if err := checkInput(ctx, features, n.inputSize); err != nil {
		return Prediction{}, err
	}
	return Prediction{}, nil
}
