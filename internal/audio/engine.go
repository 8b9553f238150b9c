// SPDX-License-Identifier: MIT
/*
Package audio runs continuous keyword spotting against a live or replayed
audio stream:
- Lock-free capture from PortAudio into a decimating double buffer
- A consumer loop running one inference per completed slice
- Threshold detections with a branchless noise gate veto
- WAV recording of exactly what the model hears

Thread Safety:
- The PortAudio callback only touches the double buffer
- Run is the single consumer; it owns the session and the print cadence
- Gate, detector rules and the debug flag can be changed while running
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"

	"kws/internal/capture"
	"kws/internal/config"
	"kws/internal/errs"
	applog "kws/internal/log"
	"kws/internal/pipeline"
	"kws/internal/signal"
	"kws/internal/transport"
)

type Engine struct {
	config *config.Config
	id     string

	buffer   *capture.DoubleBuffer
	session  *pipeline.Session
	detector *pipeline.Detector
	gate     *Gate

	transportsMu sync.Mutex
	transports   transport.Multi

	// Audio input handling.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	recMu    sync.Mutex
	recorder *Recorder

	// Consumer-owned print cadence.
	printEvery int
	printCount int

	results    atomic.Uint64
	detections atomic.Uint64
}

// Stats counts what the consumer loop has done so far.
type Stats struct {
	Results    uint64
	Detections uint64
	Capture    capture.Stats
}

// NewEngine wires a double buffer sized to the session's slices. No audio
// device is opened until StartInputStream.
func NewEngine(cfg *config.Config, session *pipeline.Session) (*Engine, error) {
	stride := cfg.Audio.Stride(cfg.Model.Frequency)
	buffer, err := capture.NewDoubleBuffer(session.SliceSize(), stride)
	if err != nil {
		return nil, err
	}

	slices := session.Impulse().SlicesPerWindow
	printEvery := cfg.Detection.PrintEvery
	if printEvery <= 0 {
		printEvery = max(slices>>1, 1)
	}

	return &Engine{
		config:     cfg,
		id:         uuid.NewString(),
		buffer:     buffer,
		session:    session,
		detector:   pipeline.NewDetector(cfg.Detection.Rules),
		gate:       NewGate(cfg.Audio.GateThreshold),
		printEvery: printEvery,
		printCount: -slices,
	}, nil
}

// ID identifies this engine's session in published events.
func (e *Engine) ID() string { return e.id }

// Buffer is the producer side for replay sources.
func (e *Engine) Buffer() *capture.DoubleBuffer { return e.buffer }

func (e *Engine) Session() *pipeline.Session { return e.session }

func (e *Engine) Detector() *pipeline.Detector { return e.detector }

// AddTransport publishes every ready result to t. Transports are closed by
// Close.
func (e *Engine) AddTransport(t transport.Transport) {
	e.transportsMu.Lock()
	e.transports = append(e.transports, t)
	e.transportsMu.Unlock()
}

// SetGateThreshold adjusts the noise gate.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (e *Engine) SetGateThreshold(threshold float64) {
	e.gate.SetThreshold(threshold)
}

func (e *Engine) GetGateThreshold() float64 {
	return e.gate.Threshold()
}

func (e *Engine) Stats() Stats {
	return Stats{
		Results:    e.results.Load(),
		Detections: e.detections.Load(),
		Capture:    e.buffer.Stats(),
	}
}

// PrintSettings writes the inferencing summary shown at start up.
func (e *Engine) PrintSettings() {
	imp := e.session.Impulse()
	applog.Printf("Inferencing settings:\n")
	applog.Printf("\tInterval: %.2f ms.\n", 1000/float64(imp.Frequency))
	applog.Printf("\tFrame size: %d\n", imp.WindowSamples)
	applog.Printf("\tSample length: %d ms.\n", imp.WindowSamples*1000/imp.Frequency)
	applog.Printf("\tNo. of classes: %d\n", len(imp.Classifier.Labels()))
}

// Start enables the producer path of the double buffer. Producers started
// before Start lose their first chunks.
func (e *Engine) Start() {
	e.buffer.Start()
}

// Stop disables the producer path; Run returns once it observes the stop.
func (e *Engine) Stop() {
	e.buffer.Stop()
}

// Drain waits until no completed buffer is pending and then stops the
// engine. Replay sources call it after their last chunk.
func (e *Engine) Drain(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for e.buffer.Pending() {
		select {
		case <-ctx.Done():
			e.Stop()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	e.Stop()
	return nil
}

// StartInputStream opens the configured PortAudio input device and feeds
// every callback buffer into the double buffer. PortAudio must be
// initialized.
func (e *Engine) StartInputStream() error {
	a := e.config.Audio
	device, err := InputDevice(a.InputDevice)
	if err != nil {
		return err
	}
	e.inputDevice = device
	if a.LowLatency {
		e.inputLatency = device.DefaultLowInputLatency
	} else {
		e.inputLatency = device.DefaultHighInputLatency
	}

	channels := max(a.InputChannels, 1)
	if got := int(a.SampleRate) * channels / e.buffer.Stride(); got != e.config.Model.Frequency {
		applog.Warnf("Audio: %.0f Hz x %d channels decimated by %d gives %d Hz, model expects %d Hz",
			a.SampleRate, channels, e.buffer.Stride(), got, e.config.Model.Frequency)
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0,
			Device:   nil,
		},
		FramesPerBuffer: a.FramesPerBuffer,
		SampleRate:      a.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("open input stream on %q: %w", device.Name, err)
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return err
	}
	applog.Infof("Audio: Listening on %q (%.0f Hz, %d ch, %d frames per buffer)",
		device.Name, a.SampleRate, channels, a.FramesPerBuffer)
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}
		if err := e.inputStream.Close(); err != nil {
			return err
		}
		e.inputStream = nil
	}
	return nil
}

// processInputStream is the PortAudio callback. Each callback buffer is one
// half transfer.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.buffer.OnHalfComplete(in, 0, len(in))
}

// Run is the inference loop: wait for a slice, apply the overrun policy,
// classify, record, publish and detect. It returns nil when the engine is
// stopped or ctx is done, and the first error otherwise.
func (e *Engine) Run(ctx context.Context) error {
	for {
		sig, overrun, err := e.buffer.WaitForBuffer(ctx)
		if errors.Is(err, errs.ErrNotRunning) || errors.Is(err, errs.ErrCanceled) {
			return nil
		}
		if err != nil {
			return err
		}

		if overrun {
			applog.Printf("ERROR: Audio buffer overrun\n")
			if e.config.Audio.AbortOnOverrun {
				return fmt.Errorf("slice %d: %w", e.results.Load(), errs.ErrBufferOverrun)
			}
			applog.Warnf("Audio: slice lost to overrun (%d so far)", e.buffer.Stats().Overruns)
		}

		res, err := e.session.RunContinuous(ctx, sig)
		if err != nil {
			if errors.Is(err, errs.ErrCanceled) && ctx.Err() != nil {
				return nil
			}
			applog.Printf("ERROR: Failed to run classifier (%d)\n", errs.Code(err))
			return err
		}
		samples, _ := sig.(signal.Int16)
		e.record(samples)
		e.handle(res, samples)
		e.results.Add(1)
	}
}

// handle prints, detects and publishes one result.
func (e *Engine) handle(res *pipeline.Result, samples []int16) {
	e.printCount++
	if e.printCount >= e.printEvery {
		if res.Ready {
			PrintResult(res)
		}
		e.printCount = 0
	}
	if !res.Ready {
		return
	}

	detections := e.detector.Check(res)
	if len(detections) > 0 && !e.gate.Open(samples) {
		applog.Debugf("Audio: gate closed (peak %d), dropping %d detections", Peak(samples), len(detections))
		detections = nil
	}
	for _, d := range detections {
		e.detections.Add(1)
		if d.Message != "" {
			applog.Printf("%s\n", d.Message)
		}
	}

	e.transportsMu.Lock()
	ts := e.transports
	e.transportsMu.Unlock()
	if len(ts) > 0 {
		if err := ts.Send(transport.NewEvent(e.id, res, detections)); err != nil {
			applog.Warnf("Audio: publish slice %d: %v", res.Slice, err)
		}
	}
}

// PrintResult writes the prediction table for res to the console.
func PrintResult(res *pipeline.Result) {
	applog.Printf("Predictions (DSP: %d ms, NN: %d ms)\n",
		res.Timing.DSP.Milliseconds(), res.Timing.Classification.Milliseconds())
	for _, s := range res.Scores {
		applog.Printf("    %s: %.5f\n", s.Label, s.Value)
	}
	if res.HasAnomaly {
		applog.Printf("    anomaly score: %.3f\n", res.Anomaly)
	}
}

// StartRecording begins writing every consumed slice to a new WAV file in
// dir and returns its path.
func (e *Engine) StartRecording(dir string) (string, error) {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	if e.recorder != nil {
		return "", fmt.Errorf("already recording to %s", e.recorder.Path())
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("recording directory: %w", err)
	}
	name := fmt.Sprintf("kws-%s-%s.wav", time.Now().Format("20060102-150405"), e.id[:8])
	path := filepath.Join(dir, name)
	rc := e.config.Recording
	maxDuration := time.Duration(rc.MaxDuration) * time.Second
	rec, err := NewRecorder(path, e.config.Model.Frequency, rc.BitDepth, maxDuration)
	if err != nil {
		return "", err
	}
	e.recorder = rec
	applog.Infof("Audio: Recording to %s", path)
	return path, nil
}

// StopRecording finalises the current recording, if any.
func (e *Engine) StopRecording() error {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	return e.stopRecordingLocked()
}

func (e *Engine) stopRecordingLocked() error {
	if e.recorder == nil {
		return nil
	}
	rec := e.recorder
	e.recorder = nil
	if err := rec.Close(); err != nil {
		return fmt.Errorf("close recording %s: %w", rec.Path(), err)
	}
	applog.Infof("Audio: Recorded %d samples to %s", rec.Samples(), rec.Path())
	return nil
}

// Recording reports whether slices are being written to disk.
func (e *Engine) Recording() bool {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	return e.recorder != nil
}

func (e *Engine) record(samples []int16) {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	if e.recorder == nil || samples == nil {
		return
	}
	err := e.recorder.Write(samples)
	if err == nil {
		return
	}
	if !errors.Is(err, ErrRecordingLimit) {
		applog.Errorf("Audio: %v", err)
	}
	if err := e.stopRecordingLocked(); err != nil {
		applog.Errorf("Audio: %v", err)
	}
}

// Close stops recording, the input stream and the double buffer, then
// closes every transport.
func (e *Engine) Close() error {
	var errsOut []error
	if err := e.StopRecording(); err != nil {
		errsOut = append(errsOut, err)
	}
	if err := e.StopInputStream(); err != nil {
		errsOut = append(errsOut, err)
	}
	e.Stop()

	e.transportsMu.Lock()
	ts := e.transports
	e.transports = nil
	e.transportsMu.Unlock()
	if err := ts.Close(); err != nil {
		errsOut = append(errsOut, err)
	}
	return errors.Join(errsOut...)
}
