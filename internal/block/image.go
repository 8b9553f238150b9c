// SPDX-License-Identifier: MIT
package block

import (
	"context"
	"fmt"

	"kws/internal/config"
	"kws/internal/dsp"
	"kws/internal/errs"
	"kws/internal/signal"
)

// imageChunk bounds how many pixels are pulled from the signal at once.
const imageChunk = 4096

// Image unpacks 0xRRGGBB pixels into normalised RGB or luma values.
type Image struct {
	width, height int
	grayscale     bool
	buf           []float64
}

func NewImage(cfg config.BlockConfig) (*Image, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("image %dx%d: %w", cfg.Width, cfg.Height, errs.ErrParameterInvalid)
	}
	var gray bool
	switch cfg.Channels {
	case "", "RGB":
	case "Grayscale":
		gray = true
	default:
		return nil, fmt.Errorf("image channels %q: %w", cfg.Channels, errs.ErrParameterInvalid)
	}
	return &Image{width: cfg.Width, height: cfg.Height, grayscale: gray, buf: make([]float64, imageChunk)}, nil
}

func (e *Image) channels() int {
	if e.grayscale {
		return 1
	}
	return 3
}

func (e *Image) OutputSize(signalLength int) (int, error) {
	if signalLength != e.width*e.height {
		return 0, fmt.Errorf("image signal of %d pixels, want %dx%d: %w", signalLength, e.width, e.height, errs.ErrMatrixSizeMismatch)
	}
	return signalLength * e.channels(), nil
}

func (e *Image) Extract(ctx context.Context, sig signal.Signal, out *dsp.Matrix) error {
	total := sig.TotalLength()
	size, err := e.OutputSize(total)
	if err != nil {
		return err
	}
	if err := checkOutput(out, size); err != nil {
		return err
	}

	o := 0
	for offset := 0; offset < total; offset += imageChunk {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("image at pixel %d: %w", offset, errs.ErrCanceled)
		}
		chunk := e.buf[:min(imageChunk, total-offset)]
		if err := sig.GetData(offset, chunk); err != nil {
			return err
		}
		for _, px := range chunk {
			v := uint32(px)
			r := float64(v>>16&0xff) / 255
			g := float64(v>>8&0xff) / 255
			b := float64(v&0xff) / 255
			if e.grayscale {
				out.Data[o] = 0.299*r + 0.587*g + 0.114*b
				o++
				continue
			}
			out.Data[o], out.Data[o+1], out.Data[o+2] = r, g, b
			o += 3
		}
	}
	out.Flatten()
	return nil
}
