// SPDX-License-Identifier: MIT
package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"kws/internal/errs"
)

// rawChunk builds interleaved full-scale samples where every stride-th
// element carries value<<16 and the rest are noise that must be dropped.
func rawChunk(values []int16, stride int) []int32 {
	raw := make([]int32, len(values)*stride)
	for i, v := range values {
		raw[i*stride] = int32(v) << 16
		for j := 1; j < stride; j++ {
			raw[i*stride+j] = 0x7fff0000
		}
	}
	return raw
}

func seq(start, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(start + i)
	}
	return out
}

func TestNewDoubleBufferValidation(t *testing.T) {
	if _, err := NewDoubleBuffer(0, 1); !errors.Is(err, errs.ErrOutOfMemory) {
		t.Errorf("zero samples: got %v, want ErrOutOfMemory", err)
	}
	if _, err := NewDoubleBuffer(16, 0); !errors.Is(err, errs.ErrParameterInvalid) {
		t.Errorf("zero stride: got %v, want ErrParameterInvalid", err)
	}
}

func TestDoubleBufferReadyOnceAndReturnsCompletedHalf(t *testing.T) {
	const n, stride = 8, 4
	b, err := NewDoubleBuffer(n, stride)
	if err != nil {
		t.Fatal(err)
	}
	b.Start()

	// Two half-complete interrupts of n/2 samples each fill exactly one buffer.
	raw := rawChunk(seq(100, n), stride)
	half := len(raw) / 2
	b.OnHalfComplete(raw, 0, half)
	if b.ready.Load() {
		t.Fatal("ready set before buffer was full")
	}
	b.OnHalfComplete(raw, half, half)
	if !b.ready.Load() {
		t.Fatal("ready not set after n samples")
	}
	if got := b.Stats().Completed; got != 1 {
		t.Fatalf("completed = %d, want 1", got)
	}
	if b.selected.Load() != 1 {
		t.Fatalf("producer should write buffer 1 after the flip")
	}

	sig, overrun, err := b.WaitForBuffer(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if overrun {
		t.Error("unexpected overrun on first wait")
	}
	if b.ready.Load() {
		t.Error("ready not cleared by consumer")
	}

	out := make([]float64, n)
	if err := sig.GetData(0, out); err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if want := float64(100 + i); v != want {
			t.Errorf("sample %d = %v, want %v (decimation or buffer selection wrong)", i, v, want)
		}
	}
}

func TestDecimationPhaseCarriesAcrossChunks(t *testing.T) {
	tests := []struct {
		name   string
		stride int
		chunk  int
		chunks int
	}{
		{"Stride divides chunk", 4, 12, 3},
		{"Stride 4 chunk 10", 4, 10, 4},
		{"Stride 3 chunk 400", 3, 400, 3},
		{"Stride 1", 1, 7, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := tt.chunk * tt.chunks
			b, err := NewDoubleBuffer(total+1, tt.stride)
			if err != nil {
				t.Fatal(err)
			}
			b.Start()

			stream := seq(0, total)
			for c := range tt.chunks {
				b.OnHalfCompleteInt16(stream, c*tt.chunk, tt.chunk)
				if tt.chunk%tt.stride == 0 && b.count != (c+1)*tt.chunk/tt.stride {
					t.Fatalf("after chunk %d kept %d samples, want %d", c, b.count, (c+1)*tt.chunk/tt.stride)
				}
			}

			want := (total + tt.stride - 1) / tt.stride
			if b.count != want {
				t.Fatalf("kept %d samples from %d elements, want %d", b.count, total, want)
			}
			for i, v := range b.buffers[0][:b.count] {
				if int(v) != i*tt.stride {
					t.Fatalf("sample %d = %d, want element %d", i, v, i*tt.stride)
				}
			}
		})
	}
}

func TestDecimationPhaseFullScale(t *testing.T) {
	b, err := NewDoubleBuffer(100, 4)
	if err != nil {
		t.Fatal(err)
	}
	b.Start()

	raw := rawChunk(seq(1, 5), 4) // 20 elements, values at 0, 4, 8, 12, 16
	b.OnHalfComplete(raw, 0, 10)
	b.OnHalfComplete(raw, 10, 10)
	if b.count != 5 {
		t.Fatalf("kept %d samples from two 10 element chunks, want 5", b.count)
	}
	for i, v := range b.buffers[0][:5] {
		if v != int16(i+1) {
			t.Errorf("sample %d = %d, want %d", i, v, i+1)
		}
	}
}

func TestDoubleBufferIdle(t *testing.T) {
	const n = 4
	b, err := NewDoubleBuffer(n, 1)
	if err != nil {
		t.Fatal(err)
	}
	b.Start()
	if b.Idle() {
		t.Fatal("idle before the consumer ever waited")
	}

	got := make(chan error, 1)
	go func() {
		_, _, err := b.WaitForBuffer(context.Background())
		got <- err
	}()
	deadline := time.Now().Add(5 * time.Second)
	for !b.Idle() {
		if time.Now().After(deadline) {
			t.Fatal("consumer never became idle")
		}
		time.Sleep(time.Millisecond)
	}

	b.OnHalfCompleteInt16(seq(0, n), 0, n)
	if b.Idle() {
		t.Error("idle while a completed buffer is unconsumed")
	}
	if err := <-got; err != nil {
		t.Fatal(err)
	}
	if b.Idle() {
		t.Error("idle before the consumer re-entered its wait")
	}
}

func TestDoubleBufferOverrun(t *testing.T) {
	const n = 4
	b, err := NewDoubleBuffer(n, 1)
	if err != nil {
		t.Fatal(err)
	}
	b.Start()

	first := seq(1, n)
	second := seq(50, n)
	b.OnHalfCompleteInt16(first, 0, n)
	b.OnHalfCompleteInt16(second, 0, n) // consumer never cleared ready

	sig, overrun, err := b.WaitForBuffer(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !overrun {
		t.Fatal("expected overrun after two completions without a wait")
	}
	if got := b.Stats().Overruns; got != 1 {
		t.Errorf("overruns = %d, want 1", got)
	}

	out := make([]float64, n)
	if err := sig.GetData(0, out); err != nil {
		t.Fatal(err)
	}
	if out[0] != 50 {
		t.Errorf("expected most recently completed buffer, got first sample %v", out[0])
	}
}

func TestDoubleBufferWaitBlocksUntilProducer(t *testing.T) {
	const n = 16
	b, err := NewDoubleBuffer(n, 1)
	if err != nil {
		t.Fatal(err)
	}
	b.Start()

	done := make(chan error, 1)
	go func() {
		_, overrun, err := b.WaitForBuffer(context.Background())
		if err == nil && overrun {
			err = errors.New("unexpected overrun")
		}
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("wait returned before any data: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	b.OnHalfCompleteInt16(seq(0, n), 0, n)

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("wait did not return after buffer completed")
	}
}

func TestDoubleBufferCancelAndStop(t *testing.T) {
	b, err := NewDoubleBuffer(8, 1)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := b.WaitForBuffer(context.Background()); !errors.Is(err, errs.ErrNotRunning) {
		t.Errorf("wait before Start: got %v, want ErrNotRunning", err)
	}

	b.Start()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := b.WaitForBuffer(ctx); !errors.Is(err, errs.ErrCanceled) {
		t.Errorf("canceled wait: got %v, want ErrCanceled", err)
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := b.WaitForBuffer(context.Background())
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	b.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, errs.ErrNotRunning) {
			t.Errorf("wait after Stop: got %v, want ErrNotRunning", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not wake the consumer")
	}

	// Producer input is ignored once stopped.
	b.OnHalfCompleteInt16(seq(0, 8), 0, 8)
	if b.Stats().Completed != 0 {
		t.Error("buffer completed while stopped")
	}
}

func TestOnHalfCompleteNoAllocs(t *testing.T) {
	b, err := NewDoubleBuffer(400, 8)
	if err != nil {
		t.Fatal(err)
	}
	b.Start()
	raw := make([]int32, 6400)

	allocs := testing.AllocsPerRun(100, func() {
		b.OnHalfComplete(raw, 0, 3200)
		b.ready.Store(false)
	})
	if allocs != 0 {
		t.Errorf("OnHalfComplete allocated %v times per run, want 0", allocs)
	}
}

func BenchmarkOnHalfComplete(b *testing.B) {
	buf, err := NewDoubleBuffer(4000, 8)
	if err != nil {
		b.Fatal(err)
	}
	buf.Start()
	raw := make([]int32, 6400)

	b.ReportAllocs()
	for b.Loop() {
		buf.OnHalfComplete(raw, 3200, 3200)
	}
}
