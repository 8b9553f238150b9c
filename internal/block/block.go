// SPDX-License-Identifier: MIT
/*
Package block turns configured DSP blocks into feature extractors.

Every extractor writes into a caller-provided matrix whose capacity must equal
OutputSize for the signal it is given, and leaves it shaped 1 x size. Blocks
with state across calls (the continuous MFCC variant) expose Reset.
*/
package block

import (
	"context"
	"fmt"

	"kws/internal/config"
	"kws/internal/dsp"
	"kws/internal/errs"
	"kws/internal/signal"
)

// Kind identifies the extraction algorithm of a block.
type Kind int

const (
	KindMFCC Kind = iota
	KindSpectral
	KindFlatten
	KindRaw
	KindImage
)

var kindNames = [...]string{"mfcc", "spectral", "flatten", "raw", "image"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a configuration type name to a Kind.
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown block type %q: %w", name, errs.ErrParameterInvalid)
}

// Extractor computes one block's features from a signal.
type Extractor interface {
	Extract(ctx context.Context, sig signal.Signal, out *dsp.Matrix) error
	OutputSize(signalLength int) (int, error)
}

// Resetter is implemented by extractors that carry history between calls.
type Resetter interface {
	Reset()
}

// Block is a named, configured extractor.
type Block struct {
	Name      string
	Kind      Kind
	Config    config.BlockConfig
	Extractor Extractor
	freq      int
}

// New builds the block described by cfg for a signal sampled at freq Hz.
func New(cfg config.BlockConfig, freq int) (*Block, error) {
	kind, err := ParseKind(cfg.Type)
	if err != nil {
		return nil, err
	}
	if cfg.Axes <= 0 {
		cfg.Axes = 1
	}
	if cfg.ScaleAxes == 0 {
		cfg.ScaleAxes = 1
	}

	var ex Extractor
	switch kind {
	case KindMFCC:
		ex, err = NewMFCC(cfg, freq)
	case KindSpectral:
		ex, err = NewSpectral(cfg, freq)
	case KindFlatten:
		ex, err = NewFlatten(cfg)
	case KindRaw:
		ex, err = NewRaw(cfg)
	case KindImage:
		ex, err = NewImage(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("block %q: %w", cfg.Name, err)
	}

	name := cfg.Name
	if name == "" {
		name = kind.String()
	}
	return &Block{Name: name, Kind: kind, Config: cfg, Extractor: ex, freq: freq}, nil
}

// PerSlice returns a fresh extractor for continuous mode. Cepstral blocks
// switch to the history-keeping variant without normalisation; every other
// kind is stateless and reused as is.
func (b *Block) PerSlice() (Extractor, error) {
	if b.Kind != KindMFCC {
		return b.Extractor, nil
	}
	return NewMFCCSlice(b.Config, b.freq)
}

// NormalizationWindow reports the CMVN window of a cepstral block.
func (b *Block) NormalizationWindow() (win int, ok bool) {
	if b.Kind != KindMFCC {
		return 0, false
	}
	return b.Config.WinSize, true
}

// NumCepstral is the row width of a cepstral block's output, 0 otherwise.
func (b *Block) NumCepstral() int {
	if b.Kind != KindMFCC {
		return 0
	}
	return b.Config.NumCepstral
}

func checkOutput(out *dsp.Matrix, size int) error {
	if out == nil || out.Size() != size {
		got := 0
		if out != nil {
			got = out.Size()
		}
		return fmt.Errorf("output holds %d values, need %d: %w", got, size, errs.ErrMatrixSizeMismatch)
	}
	return nil
}

// readAxes loads an interleaved signal as one row per axis, scaled.
func readAxes(sig signal.Signal, axes int, scale float64) (*dsp.Matrix, error) {
	n := sig.TotalLength()
	if axes <= 0 || n%axes != 0 {
		return nil, fmt.Errorf("signal of %d samples is not a multiple of %d axes: %w", n, axes, errs.ErrMatrixSizeMismatch)
	}
	m, err := dsp.NewMatrix(n/axes, axes)
	if err != nil {
		return nil, err
	}
	if err := sig.GetData(0, m.Data); err != nil {
		return nil, err
	}
	m.Scale(scale)
	m.Transpose()
	return m, nil
}
