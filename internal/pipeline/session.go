// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"kws/internal/block"
	"kws/internal/dsp"
	"kws/internal/errs"
	"kws/internal/signal"
	"kws/internal/smooth"
)

// Session is the state of one continuous inference stream. It is driven by
// a single consumer goroutine; only SetDebug may be called concurrently.
type Session struct {
	imp        *Impulse
	extractors []block.Extractor
	sizes      []int
	window     *Window
	snapshot   *dsp.Matrix
	smoother   *smooth.Bank
	values     []float64

	normalize   bool
	cmvnWin     int
	numCepstral int

	debug  atomic.Bool
	slices uint64
}

// NewSession prepares per-slice extractors and a feature window of
// SlicesPerWindow slices. The window must match the classifier input.
func NewSession(imp *Impulse, debug bool) (*Session, error) {
	if imp.SlicesPerWindow <= 0 || imp.WindowSamples%imp.SlicesPerWindow != 0 {
		return nil, fmt.Errorf("%d samples in %d slices: %w", imp.WindowSamples, imp.SlicesPerWindow, errs.ErrParameterInvalid)
	}
	s := &Session{imp: imp}

	perSlice := 0
	for _, b := range imp.Blocks {
		ex, err := b.PerSlice()
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", b.Name, err)
		}
		size, err := ex.OutputSize(imp.SliceSize())
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", b.Name, err)
		}
		s.extractors = append(s.extractors, ex)
		s.sizes = append(s.sizes, size)
		perSlice += size
	}

	capacity := perSlice * imp.SlicesPerWindow
	if capacity != imp.Classifier.InputSize() {
		return nil, fmt.Errorf("%d slices of %d features do not fill a classifier input of %d: %w",
			imp.SlicesPerWindow, perSlice, imp.Classifier.InputSize(), errs.ErrMatrixSizeMismatch)
	}

	var err error
	if s.window, err = NewWindow(capacity, perSlice); err != nil {
		return nil, err
	}
	if s.snapshot, err = dsp.NewMatrix(1, capacity); err != nil {
		return nil, err
	}

	labels := len(imp.Classifier.Labels())
	if s.smoother, err = smooth.NewBank(labels, max(imp.SlicesPerWindow/2, 1)); err != nil {
		return nil, err
	}
	s.values = make([]float64, labels)

	if win, ok := imp.Blocks[0].NormalizationWindow(); ok {
		nc := imp.Blocks[0].NumCepstral()
		if capacity%nc != 0 {
			return nil, fmt.Errorf("window of %d features is not a whole number of %d coefficient rows: %w", capacity, nc, errs.ErrMatrixSizeMismatch)
		}
		s.normalize, s.cmvnWin, s.numCepstral = true, win, nc
	}

	s.debug.Store(debug)
	return s, nil
}

func (s *Session) Impulse() *Impulse { return s.imp }

// SliceSize is the signal length RunContinuous expects.
func (s *Session) SliceSize() int { return s.imp.SliceSize() }

// SetDebug toggles feature dumps and per-inference prediction tables.
func (s *Session) SetDebug(on bool) { s.debug.Store(on) }

// RunContinuous processes one slice. While the window is filling the result
// is not Ready and carries only DSP timing. Once full, every slice yields
// smoothed scores for the latest window.
func (s *Session) RunContinuous(ctx context.Context, sig signal.Signal) (*Result, error) {
	debug := s.debug.Load()
	res := &Result{Slice: s.slices}
	s.slices++

	start := time.Now()
	slot := s.window.Slot()
	offset := 0
	for i, ex := range s.extractors {
		b := s.imp.Blocks[i]
		size, err := ex.OutputSize(sig.TotalLength())
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", b.Name, err)
		}
		if size != s.sizes[i] {
			return nil, fmt.Errorf("block %q produced %d features per slice, want %d: %w", b.Name, size, s.sizes[i], errs.ErrMatrixSizeMismatch)
		}
		region, err := dsp.ViewMatrix(1, size, slot[offset:offset+size])
		if err != nil {
			return nil, err
		}
		if err := ex.Extract(ctx, sig, region); err != nil {
			return nil, fmt.Errorf("block %q: %w", b.Name, err)
		}
		offset += size
		if ctx.Err() != nil {
			return nil, fmt.Errorf("after block %q: %w", b.Name, errs.ErrCanceled)
		}
	}
	s.window.Commit()
	res.Timing.DSP = time.Since(start)

	if !s.window.Full() {
		return res, nil
	}

	if err := s.window.Snapshot(s.snapshot); err != nil {
		return nil, err
	}
	if s.normalize {
		if err := s.snapshot.Reshape(s.snapshot.Size()/s.numCepstral, s.numCepstral); err != nil {
			return nil, err
		}
		if err := dsp.CMVNW(s.snapshot, s.cmvnWin, true); err != nil {
			return nil, fmt.Errorf("window normalisation: %w: %w", errs.ErrDSP, err)
		}
		s.snapshot.Flatten()
	}
	res.Timing.DSP = time.Since(start)
	if debug {
		printFeatures(s.snapshot, res.Timing.DSP)
		res.Features = slices.Clone(s.snapshot.Data)
	}

	if err := classify(ctx, s.imp, s.snapshot, res, debug); err != nil {
		return nil, err
	}
	if len(res.Scores) > 0 {
		for i, sc := range res.Scores {
			s.values[i] = sc.Value
		}
		if err := s.smoother.Apply(s.values); err != nil {
			return nil, err
		}
		for i := range res.Scores {
			res.Scores[i].Value = s.values[i]
		}
	}
	res.Ready = true

	s.window.Shift()
	return res, nil
}

// Reset clears the window, the smoothers and any slice history, as if the
// session had just been created.
func (s *Session) Reset() {
	s.window.Reset()
	s.smoother.Reset()
	for _, ex := range s.extractors {
		if r, ok := ex.(block.Resetter); ok {
			r.Reset()
		}
	}
	s.slices = 0
}
