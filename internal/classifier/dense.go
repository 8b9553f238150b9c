// SPDX-License-Identifier: MIT
package classifier

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"kws/internal/config"
	"kws/internal/dsp"
	"kws/internal/errs"
)

// DenseModel is a single fully connected layer: one weight row per label.
type DenseModel struct {
	Labels  []string    `yaml:"labels" msgpack:"labels"`
	Weights [][]float64 `yaml:"weights" msgpack:"weights"`
	Bias    []float64   `yaml:"bias" msgpack:"bias"`
}

// LoadDense reads a model from YAML (.yaml, .yml) or msgpack (any other
// extension, typically .msgpack).
func LoadDense(path string) (*DenseModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dense model: %w", err)
	}
	var m DenseModel
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		err = msgpack.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("decode dense model %s: %w: %w", path, errs.ErrParameterInvalid, err)
	}
	return &m, nil
}

// Save writes the model in the format implied by the extension.
func (m *DenseModel) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(m)
	default:
		data, err = msgpack.Marshal(m)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Quantizer maps floats onto an int8 tensor with an affine scale and zero
// point and back.
type Quantizer struct {
	Scale     float64
	ZeroPoint int
}

func (q Quantizer) Quantize(x float64) int8 {
	v := math.Round(x/q.Scale) + float64(q.ZeroPoint)
	return int8(min(max(v, math.MinInt8), math.MaxInt8))
}

func (q Quantizer) Dequantize(v int8) float64 {
	return float64(int(v)-q.ZeroPoint) * q.Scale
}

// roundTrip passes every value through the int8 representation in place.
func (q Quantizer) roundTrip(values []float64) {
	for i, v := range values {
		values[i] = q.Dequantize(q.Quantize(v))
	}
}

// Quantization describes an int8 model's input and output tensors.
type Quantization struct {
	Enabled bool
	Input   Quantizer
	Output  Quantizer
}

func quantizationFrom(cfg config.ClassifierConfig) Quantization {
	return Quantization{
		Enabled: cfg.Quantized,
		Input:   Quantizer{Scale: cfg.InputScale, ZeroPoint: cfg.InputZeroPoint},
		Output:  Quantizer{Scale: cfg.OutputScale, ZeroPoint: cfg.OutputZeroPoint},
	}
}

// Dense evaluates softmax(Wx + b). Not safe for concurrent use.
type Dense struct {
	labels []string
	w      *mat.Dense
	b      []float64
	q      Quantization
	input  []float64
	logits *mat.VecDense
}

func NewDense(m *DenseModel, labels []string, q Quantization) (*Dense, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("dense model without labels: %w", errs.ErrParameterInvalid)
	}
	if len(m.Weights) != len(labels) || len(m.Bias) != len(labels) {
		return nil, fmt.Errorf("dense model has %d rows and %d biases for %d labels: %w", len(m.Weights), len(m.Bias), len(labels), errs.ErrParameterInvalid)
	}
	if len(m.Labels) > 0 && !slices.Equal(m.Labels, labels) {
		return nil, fmt.Errorf("dense model labels %v differ from %v: %w", m.Labels, labels, errs.ErrParameterInvalid)
	}
	if q.Enabled && (q.Input.Scale <= 0 || q.Output.Scale <= 0) {
		return nil, fmt.Errorf("quantised model needs positive scales: %w", errs.ErrParameterInvalid)
	}
	width := len(m.Weights[0])
	if width == 0 {
		return nil, fmt.Errorf("dense model has empty weight rows: %w", errs.ErrParameterInvalid)
	}
	w := mat.NewDense(len(labels), width, nil)
	for i, row := range m.Weights {
		if len(row) != width {
			return nil, fmt.Errorf("weight row %d has %d values, want %d: %w", i, len(row), width, errs.ErrParameterInvalid)
		}
		w.SetRow(i, row)
	}
	return &Dense{
		labels: labels,
		w:      w,
		b:      slices.Clone(m.Bias),
		q:      q,
		input:  make([]float64, width),
		logits: mat.NewVecDense(len(labels), nil),
	}, nil
}

func (d *Dense) Labels() []string { return d.labels }
func (d *Dense) InputSize() int   { return len(d.input) }

func (d *Dense) Classify(ctx context.Context, features *dsp.Matrix, debug bool) (Prediction, error) {
	start := time.Now()
	if err := checkInput(ctx, features, len(d.input)); err != nil {
		return Prediction{}, err
	}

	copy(d.input, features.Data)
	if d.q.Enabled {
		d.q.Input.roundTrip(d.input)
	}
	d.logits.MulVec(d.w, mat.NewVecDense(len(d.input), d.input))
	out := d.logits.RawVector().Data
	floats.Add(out, d.b)
	softmax(out)
	if d.q.Enabled {
		d.q.Output.roundTrip(out)
	}
	for _, v := range out {
		if math.IsNaN(v) {
			return Prediction{}, fmt.Errorf("dense output is NaN: %w", errs.ErrInferenceEngine)
		}
	}

	p := Prediction{Scores: scores(d.labels, out), Elapsed: time.Since(start)}
	if debug {
		printPrediction(p)
	}
	return p, nil
}

func softmax(x []float64) {
	m := floats.Max(x)
	var sum float64
	for i, v := range x {
		x[i] = math.Exp(v - m)
		sum += x[i]
	}
	floats.Scale(1/sum, x)
}
