// SPDX-License-Identifier: MIT
package block

import (
	"context"

	"kws/internal/config"
	"kws/internal/dsp"
	"kws/internal/signal"
)

// Raw passes scaled samples straight through.
type Raw struct {
	scale float64
}

func NewRaw(cfg config.BlockConfig) (*Raw, error) {
	return &Raw{scale: cfg.ScaleAxes}, nil
}

func (e *Raw) OutputSize(signalLength int) (int, error) {
	return signalLength, nil
}

func (e *Raw) Extract(_ context.Context, sig signal.Signal, out *dsp.Matrix) error {
	if err := checkOutput(out, sig.TotalLength()); err != nil {
		return err
	}
	if err := sig.GetData(0, out.Data); err != nil {
		return err
	}
	out.Scale(e.scale)
	out.Flatten()
	return nil
}
