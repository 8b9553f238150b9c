// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrRecordingLimit is returned by Recorder.Write once the configured
// maximum duration has been written.
var ErrRecordingLimit = errors.New("recording limit reached")

// Recorder writes decimated slices, the audio the model actually hears, to a
// mono WAV file.
type Recorder struct {
	path       string
	file       *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer // Reusable buffer for format conversion
	shift      uint
	written    int
	limit      int // samples, 0 for unlimited
}

// NewRecorder creates path and prepares a WAV encoder. bitDepth may be 16,
// 24 or 32; samples are scaled up from 16 bits.
func NewRecorder(path string, sampleRate, bitDepth int, maxDuration time.Duration) (*Recorder, error) {
	switch bitDepth {
	case 0:
		bitDepth = 16
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported recording bit depth %d", bitDepth)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		path:       path,
		file:       file,
		wavEncoder: wav.NewEncoder(file, sampleRate, bitDepth, 1, 1),
		sampleBuf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
		shift: uint(bitDepth - 16),
		limit: int(maxDuration.Seconds() * float64(sampleRate)),
	}, nil
}

func (r *Recorder) Path() string { return r.path }

// Samples is the number of samples written so far.
func (r *Recorder) Samples() int { return r.written }

// Write appends one slice. When the limit is reached the slice is truncated
// and ErrRecordingLimit is returned; the file stays valid until Close.
func (r *Recorder) Write(samples []int16) error {
	if r.wavEncoder == nil {
		return fmt.Errorf("recorder for %s is closed", r.path)
	}
	full := false
	if r.limit > 0 && r.written+len(samples) >= r.limit {
		samples = samples[:r.limit-r.written]
		full = true
	}

	if cap(r.sampleBuf.Data) < len(samples) {
		r.sampleBuf.Data = make([]int, len(samples))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(samples)]
	for i, s := range samples {
		r.sampleBuf.Data[i] = int(s) << r.shift
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("error writing to WAV file: %w", err)
	}
	r.written += len(samples)
	if full {
		return ErrRecordingLimit
	}
	return nil
}

// Close finalises the WAV header and closes the file.
func (r *Recorder) Close() error {
	if r.wavEncoder == nil {
		return nil
	}
	err := r.wavEncoder.Close()
	r.wavEncoder = nil
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}
