// SPDX-License-Identifier: MIT
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"kws/internal/dsp"
	"kws/internal/errs"
	"kws/internal/signal"
)

// Run classifies one complete window. Every block extracts from the whole
// signal into its region of the feature vector; no smoothing is applied.
func Run(ctx context.Context, imp *Impulse, sig signal.Signal, debug bool) (*Result, error) {
	total := imp.Classifier.InputSize()
	features, err := dsp.NewMatrix(1, total)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	offset := 0
	for _, b := range imp.Blocks {
		size, err := b.Extractor.OutputSize(sig.TotalLength())
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", b.Name, err)
		}
		if offset+size > total {
			return nil, fmt.Errorf("block %q would write outside feature buffer (%d+%d > %d): %w", b.Name, offset, size, total, errs.ErrMatrixSizeMismatch)
		}
		region, err := dsp.ViewMatrix(1, size, features.Data[offset:offset+size])
		if err != nil {
			return nil, err
		}
		if err := b.Extractor.Extract(ctx, sig, region); err != nil {
			return nil, fmt.Errorf("block %q: %w", b.Name, err)
		}
		offset += size
		if ctx.Err() != nil {
			return nil, fmt.Errorf("after block %q: %w", b.Name, errs.ErrCanceled)
		}
	}
	if offset != total {
		return nil, fmt.Errorf("blocks produced %d of %d features: %w", offset, total, errs.ErrMatrixSizeMismatch)
	}

	res := &Result{Ready: true}
	res.Timing.DSP = time.Since(start)
	if debug {
		printFeatures(features, res.Timing.DSP)
		res.Features = slices.Clone(features.Data)
	}
	if err := classify(ctx, imp, features, res, debug); err != nil {
		return nil, err
	}
	return res, nil
}

// classify runs the classifier and the anomaly scorer over a complete
// feature vector and records scores and timings in res.
func classify(ctx context.Context, imp *Impulse, features *dsp.Matrix, res *Result, debug bool) error {
	start := time.Now()
	pred, err := imp.Classifier.Classify(ctx, features, debug)
	if err != nil {
		return err
	}
	res.Scores = pred.Scores
	res.Timing.Classification = time.Since(start)

	if imp.Anomaly != nil {
		start = time.Now()
		score, err := imp.Anomaly.Score(features)
		if err != nil {
			return fmt.Errorf("anomaly: %w", err)
		}
		res.Anomaly, res.HasAnomaly = score, true
		res.Timing.Anomaly = time.Since(start)
	}
	return nil
}
