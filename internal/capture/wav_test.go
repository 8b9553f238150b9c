// SPDX-License-Identifier: MIT
package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"kws/internal/errs"
)

func writeTestWAV(t *testing.T, rate, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create wav: %v", err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close file: %v", err)
	}
	return path
}

func TestLoadWAVDownmix(t *testing.T) {
	// Stereo frames (1000, 3000) and (-2000, -4000) average to 2000 and -3000.
	path := writeTestWAV(t, 16000, 2, []int{1000, 3000, -2000, -4000})

	got, err := LoadWAV(path, 16000)
	if err != nil {
		t.Fatal(err)
	}
	want := []int16{2000, -3000}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestLoadWAVResamples(t *testing.T) {
	data := make([]int, 32000)
	path := writeTestWAV(t, 32000, 1, data)

	got, err := LoadWAV(path, 16000)
	if err != nil {
		t.Fatal(err)
	}
	// Allow for resampler filter delay at the edges.
	if len(got) < 15000 || len(got) > 17000 {
		t.Errorf("resampled length = %d, want about 16000", len(got))
	}
}

func TestLoadWAVInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("not a wav"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWAV(path, 16000); err == nil {
		t.Error("expected error for invalid wav file")
	}
}

func TestReplayFeedsDoubleBuffer(t *testing.T) {
	const slice = 100
	samples := seq(0, slice)

	r, err := NewReplay(samples, 16000, 30)
	if err != nil {
		t.Fatal(err)
	}
	r.SetSpeed(0)

	b, err := NewDoubleBuffer(slice, 1)
	if err != nil {
		t.Fatal(err)
	}
	b.Start()

	type waited struct {
		out     []float64
		overrun bool
		err     error
	}
	got := make(chan waited, 1)
	go func() {
		sig, overrun, err := b.WaitForBuffer(context.Background())
		w := waited{overrun: overrun, err: err}
		if err == nil {
			w.out = make([]float64, slice)
			w.err = sig.GetData(0, w.out)
		}
		got <- w
	}()

	// 100 samples in halves of 30 zero-pads the tail: 4 halves, 120 elements.
	if err := r.Run(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	w := <-got
	if w.err != nil {
		t.Fatal(w.err)
	}
	if w.overrun {
		t.Error("unexpected overrun")
	}
	for i, v := range w.out {
		if v != float64(i) {
			t.Fatalf("sample %d = %v, want %d", i, v, i)
		}
	}
	if b.count != 20 {
		t.Errorf("producer cursor = %d, want 20 padded samples in the next buffer", b.count)
	}
}

func TestReplayUnpacedNeverOverruns(t *testing.T) {
	const slice, slices = 400, 12
	r, err := NewReplay(make([]int16, slice*slices), 16000, 100)
	if err != nil {
		t.Fatal(err)
	}
	r.SetSpeed(0)

	b, err := NewDoubleBuffer(slice, 1)
	if err != nil {
		t.Fatal(err)
	}
	b.Start()

	consumed := make(chan int, 1)
	go func() {
		n := 0
		for {
			_, overrun, err := b.WaitForBuffer(context.Background())
			if err != nil || overrun {
				consumed <- n
				return
			}
			n++
			// Slower than the producer, as inference is.
			time.Sleep(2 * time.Millisecond)
		}
	}()

	if err := r.Run(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	for b.Pending() {
		time.Sleep(time.Millisecond)
	}
	b.Stop()

	if n := <-consumed; n != slices {
		t.Errorf("consumer took %d slices, want %d", n, slices)
	}
	if st := b.Stats(); st.Overruns != 0 || st.Completed != slices {
		t.Errorf("stats = %+v, want %d completed and no overruns", st, slices)
	}
}

func TestReplayUnpacedStopsWithBuffer(t *testing.T) {
	r, err := NewReplay(make([]int16, 1000), 16000, 10)
	if err != nil {
		t.Fatal(err)
	}
	r.SetSpeed(0)
	b, _ := NewDoubleBuffer(100, 1)
	b.Start()
	b.Stop()

	// No consumer will ever wait on a stopped buffer.
	if err := r.Run(context.Background(), b); !errors.Is(err, errs.ErrNotRunning) {
		t.Errorf("got %v, want ErrNotRunning", err)
	}
}

func TestReplayCanceled(t *testing.T) {
	r, err := NewReplay(make([]int16, 1000), 16000, 10)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewDoubleBuffer(100, 1)
	b.Start()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx, b); err == nil {
		t.Error("expected context error")
	}
}
