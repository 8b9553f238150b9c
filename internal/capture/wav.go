// SPDX-License-Identifier: MIT
package capture

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-audio/wav"
	resampling "github.com/tphakala/go-audio-resampling"

	"kws/internal/errs"
	applog "kws/internal/log"
)

// Replay plays mono PCM into a DoubleBuffer the way a DMA engine would:
// a ring of two half buffers, each handed over as soon as it is filled.
type Replay struct {
	samples []int16
	rate    int
	halfLen int
	speed   float64 // 1 = real time, 0 = paced by the consumer
}

// NewReplay wraps samples recorded at rate. halfLen is the number of raw
// elements per half-buffer interrupt.
func NewReplay(samples []int16, rate, halfLen int) (*Replay, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("replay rate must be positive, got %d", rate)
	}
	if halfLen <= 0 {
		return nil, fmt.Errorf("replay half buffer must be positive, got %d", halfLen)
	}
	return &Replay{samples: samples, rate: rate, halfLen: halfLen, speed: 1}, nil
}

// SetSpeed sets the playback speed relative to real time. Zero replaces the
// clock with the consumer: each chunk is delivered once the consumer is
// waiting, so the replay never overruns.
func (r *Replay) SetSpeed(speed float64) {
	if speed < 0 {
		speed = 0
	}
	r.speed = speed
}

// Samples returns the decoded mono samples.
func (r *Replay) Samples() []int16 {
	return r.samples
}

// Rate returns the sample rate of Samples.
func (r *Replay) Rate() int {
	return r.rate
}

// Run pushes every sample into buf, zero-padding the last half buffer, and
// returns when the input is exhausted or ctx is done.
func (r *Replay) Run(ctx context.Context, buf *DoubleBuffer) error {
	raw := make([]int16, 2*r.halfLen)

	var ticker *time.Ticker
	if r.speed > 0 {
		period := time.Duration(float64(r.halfLen) / float64(r.rate) / r.speed * float64(time.Second))
		ticker = time.NewTicker(max(period, time.Microsecond))
		defer ticker.Stop()
	}

	half := 0
	for pos := 0; pos < len(r.samples); pos += r.halfLen {
		offset := half * r.halfLen
		n := copy(raw[offset:offset+r.halfLen], r.samples[pos:])
		clear(raw[offset+n : offset+r.halfLen])

		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := waitIdle(ctx, buf); err != nil {
			return err
		}

		buf.OnHalfCompleteInt16(raw, offset, r.halfLen)
		half ^= 1
	}
	return nil
}

// idlePoll is how often an unpaced replay checks for an idle consumer.
const idlePoll = 50 * time.Microsecond

// waitIdle blocks until the consumer is waiting for the next buffer, so an
// unpaced replay runs exactly as fast as inference without overrunning it.
func waitIdle(ctx context.Context, buf *DoubleBuffer) error {
	for !buf.Idle() {
		if !buf.Running() {
			return fmt.Errorf("replay: %w", errs.ErrNotRunning)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(idlePoll):
		}
	}
	return ctx.Err()
}

// LoadWAV decodes a PCM WAV file, down-mixes it to mono and resamples it to
// targetRate when the file uses a different rate.
func LoadWAV(path string, targetRate int) ([]int16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid wav file", path)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav file: %w", err)
	}

	channels := max(pcm.Format.NumChannels, 1)
	depth := pcm.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}

	frames := len(pcm.Data) / channels
	mono := make([]float64, frames)
	scale := math.Ldexp(1, depth-1)
	for i := range frames {
		var sum float64
		for ch := range channels {
			sum += float64(pcm.Data[i*channels+ch])
		}
		mono[i] = sum / float64(channels) / scale
	}

	sourceRate := pcm.Format.SampleRate
	if sourceRate != targetRate {
		applog.Infof("Capture: resampling %s from %d Hz to %d Hz", path, sourceRate, targetRate)
		rs, err := resampling.New(&resampling.Config{
			InputRate:  float64(sourceRate),
			OutputRate: float64(targetRate),
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create resampler: %w", err)
		}
		mono, err = rs.Process(mono)
		if err != nil {
			return nil, fmt.Errorf("failed to resample: %w", err)
		}
	}

	out := make([]int16, len(mono))
	for i, v := range mono {
		out[i] = int16(max(min(math.Round(v*32768), math.MaxInt16), math.MinInt16))
	}
	return out, nil
}
