// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func decodeWAV(t *testing.T, path string) ([]int, int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatalf("%s is not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Data, int(dec.SampleRate), int(dec.BitDepth)
}

func TestRecorderWritesSlices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slices.wav")
	rec, err := NewRecorder(path, 16000, 16, 0)
	if err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	slice := []int16{0, 1000, -1000, 32767, -32768}
	for range 3 {
		if err := rec.Write(slice); err != nil {
			t.Fatal(err)
		}
	}
	if rec.Samples() != 15 {
		t.Errorf("Samples = %d, want 15", rec.Samples())
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	if err := rec.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if err := rec.Write(slice); err == nil {
		t.Error("Write after Close succeeded")
	}

	data, rate, depth := decodeWAV(t, path)
	if rate != 16000 || depth != 16 {
		t.Errorf("format = %d Hz %d bit", rate, depth)
	}
	if len(data) != 15 {
		t.Fatalf("decoded %d samples, want 15", len(data))
	}
	for i, want := range slice {
		if data[10+i] != int(want) {
			t.Errorf("sample %d = %d, want %d", 10+i, data[10+i], want)
		}
	}
}

func TestRecorderBitDepth(t *testing.T) {
	tests := []struct {
		depth int
		want  int
		ok    bool
	}{
		{0, 1000, true},
		{16, 1000, true},
		{24, 1000 << 8, true},
		{32, 1000 << 16, true},
		{8, 0, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dbit", tt.depth), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "depth.wav")
			rec, err := NewRecorder(path, 8000, tt.depth, 0)
			if !tt.ok {
				if err == nil {
					rec.Close()
					t.Fatalf("bit depth %d accepted", tt.depth)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if err := rec.Write([]int16{1000}); err != nil {
				t.Fatal(err)
			}
			if err := rec.Close(); err != nil {
				t.Fatal(err)
			}
			data, _, _ := decodeWAV(t, path)
			if len(data) != 1 || data[0] != tt.want {
				t.Errorf("decoded %v, want [%d]", data, tt.want)
			}
		})
	}
}

func TestRecorderLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limited.wav")
	rec, err := NewRecorder(path, 10, 16, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()

	if err := rec.Write(make([]int16, 6)); err != nil {
		t.Fatal(err)
	}
	if err := rec.Write(make([]int16, 6)); !errors.Is(err, ErrRecordingLimit) {
		t.Fatalf("Write past the limit = %v, want ErrRecordingLimit", err)
	}
	if rec.Samples() != 10 {
		t.Errorf("Samples = %d, want 10", rec.Samples())
	}
}

func TestRecorderCreateError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "x.wav")
	if _, err := NewRecorder(path, 16000, 16, 0); err == nil {
		t.Error("recording into a missing directory succeeded")
	}
}

func TestEngineRecordingLifecycle(t *testing.T) {
	e := newTestEngine(t, testConfig())
	dir := t.TempDir()

	path, err := e.StartRecording(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !e.Recording() {
		t.Error("Engine should be in recording state")
	}
	if _, err := e.StartRecording(dir); err == nil {
		t.Error("second StartRecording succeeded")
	}
	if filepath.Dir(path) != dir || filepath.Ext(path) != ".wav" {
		t.Errorf("recording path %s", path)
	}

	if err := e.StopRecording(); err != nil {
		t.Fatal(err)
	}
	if e.Recording() {
		t.Error("Engine still recording after StopRecording")
	}
	if err := e.StopRecording(); err != nil {
		t.Errorf("StopRecording when idle = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("recording file missing: %v", err)
	}
}
