// SPDX-License-Identifier: MIT
/*
Package capture implements the hand-off between an audio producer running in
callback context and the inference loop.

The producer (PortAudio callback, DMA-style replay) delivers raw interleaved,
oversampled chunks. OnHalfComplete decimates them into the active half of a
double buffer; when that half is full the halves swap and the consumer is
signalled. The consumer blocks in WaitForBuffer and only ever reads the half
that was just completed.

Thread Safety:
  - Single producer, single consumer
  - ready is an atomic flag; buffer writes happen before it is set
  - The producer path never blocks or allocates
*/
package capture

import (
	"context"
	"fmt"
	"sync/atomic"

	"kws/internal/errs"
	"kws/internal/signal"
)

// DoubleBuffer holds two slice buffers of n samples each.
type DoubleBuffer struct {
	buffers  [2][]int16
	selected atomic.Uint32 // index of the buffer the producer writes
	count    int           // producer-owned write cursor
	phase    int           // producer-owned offset of the next kept element in the next chunk
	stride   int
	nSamples int

	ready   atomic.Bool
	notify  chan struct{}
	running atomic.Bool

	overruns  atomic.Uint64
	completed atomic.Uint64
	waits     atomic.Uint64 // consumer entries into WaitForBuffer
}

// Stats is a snapshot of buffer counters.
type Stats struct {
	Completed uint64 // buffers filled by the producer
	Overruns  uint64 // waits that found a buffer already pending
}

// NewDoubleBuffer allocates both halves. stride is the decimation step in raw
// elements: one sample is kept every stride elements of a producer chunk.
func NewDoubleBuffer(nSamples, stride int) (*DoubleBuffer, error) {
	if nSamples <= 0 {
		return nil, fmt.Errorf("double buffer of %d samples: %w", nSamples, errs.ErrOutOfMemory)
	}
	if stride <= 0 {
		return nil, fmt.Errorf("decimation stride must be positive, got %d: %w", stride, errs.ErrParameterInvalid)
	}
	return &DoubleBuffer{
		buffers:  [2][]int16{make([]int16, nSamples), make([]int16, nSamples)},
		stride:   stride,
		nSamples: nSamples,
		notify:   make(chan struct{}, 1),
	}, nil
}

// Start enables the producer path. Chunks delivered before Start are dropped.
func (b *DoubleBuffer) Start() {
	b.running.Store(true)
}

// Stop disables the producer path. Any later wait fails with
// errs.ErrNotRunning.
func (b *DoubleBuffer) Stop() {
	if !b.running.Swap(false) {
		return
	}
	// Wake a blocked consumer so it can observe the stop.
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Running reports whether the producer path is enabled.
func (b *DoubleBuffer) Running() bool {
	return b.running.Load()
}

// Pending reports whether a completed buffer is waiting for the consumer.
func (b *DoubleBuffer) Pending() bool {
	return b.ready.Load()
}

// Idle reports whether the consumer has taken every completed buffer and
// entered its next wait. Unpaced producers poll it before each chunk so
// that no buffer completes while the consumer is still busy.
func (b *DoubleBuffer) Idle() bool {
	return b.waits.Load() > b.completed.Load()
}

// SliceSize is the number of samples per completed buffer.
func (b *DoubleBuffer) SliceSize() int {
	return b.nSamples
}

// Stride is the decimation step applied to producer chunks.
func (b *DoubleBuffer) Stride() int {
	return b.stride
}

// OnHalfComplete consumes raw[offset:offset+n] from the producer. Samples are
// full-scale 32-bit values; the 16 most significant bits are kept. Every
// stride-th element of the stream is kept; the decimation phase carries over
// chunk boundaries, so a chunk keeps n/stride samples when stride divides n.
//
// Performance Critical:
//   - Called from the audio callback
//   - O(n), no allocations, never blocks
func (b *DoubleBuffer) OnHalfComplete(raw []int32, offset, n int) {
	if !b.running.Load() {
		return
	}
	if offset < 0 || offset+n > len(raw) {
		return
	}
	sel := b.selected.Load()
	buf := b.buffers[sel]
	chunk := raw[offset : offset+n]

	i := b.phase
	for ; i < len(chunk); i += b.stride {
		buf[b.count] = int16(chunk[i] >> 16)
		b.count++

		if b.count == b.nSamples {
			sel ^= 1
			b.selected.Store(sel)
			buf = b.buffers[sel]
			b.count = 0
			b.completed.Add(1)
			b.ready.Store(true)
			select {
			case b.notify <- struct{}{}:
			default:
			}
		}
	}
	b.phase = i - len(chunk)
}

// OnHalfCompleteInt16 is OnHalfComplete for 16-bit producers such as WAV
// replay.
func (b *DoubleBuffer) OnHalfCompleteInt16(raw []int16, offset, n int) {
	if !b.running.Load() {
		return
	}
	if offset < 0 || offset+n > len(raw) {
		return
	}
	sel := b.selected.Load()
	buf := b.buffers[sel]
	chunk := raw[offset : offset+n]

	i := b.phase
	for ; i < len(chunk); i += b.stride {
		buf[b.count] = chunk[i]
		b.count++

		if b.count == b.nSamples {
			sel ^= 1
			b.selected.Store(sel)
			buf = b.buffers[sel]
			b.count = 0
			b.completed.Add(1)
			b.ready.Store(true)
			select {
			case b.notify <- struct{}{}:
			default:
			}
		}
	}
	b.phase = i - len(chunk)
}

// WaitForBuffer blocks until a buffer completes and returns it as a Signal.
// overrun is true when a completed buffer was already pending on entry, which
// means at least one slice was lost. The wait still returns the most recently
// completed buffer in that case.
//
// The returned Signal aliases the completed half and is valid until the
// producer completes the next buffer.
func (b *DoubleBuffer) WaitForBuffer(ctx context.Context) (sig signal.Signal, overrun bool, err error) {
	if !b.running.Load() {
		return nil, false, errs.ErrNotRunning
	}
	if b.ready.Load() {
		overrun = true
		b.overruns.Add(1)
	}
	b.waits.Add(1)

	for !b.ready.CompareAndSwap(true, false) {
		select {
		case <-ctx.Done():
			return nil, overrun, fmt.Errorf("wait for buffer: %w", errs.ErrCanceled)
		case <-b.notify:
			if !b.running.Load() {
				return nil, overrun, errs.ErrNotRunning
			}
		}
	}

	done := b.selected.Load() ^ 1
	return signal.FromInt16(b.buffers[done]), overrun, nil
}

// Stats returns the current counters.
func (b *DoubleBuffer) Stats() Stats {
	return Stats{
		Completed: b.completed.Load(),
		Overruns:  b.overruns.Load(),
	}
}
