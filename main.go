package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"kws/cmd"
	"kws/internal/audio"
	"kws/internal/capture"
	"kws/internal/config"
	applog "kws/internal/log"
	"kws/internal/pipeline"
	kwssignal "kws/internal/signal"
	"kws/internal/transport"
	"kws/internal/transport/udp"
	"kws/pkg/build"
)

// main is the entry point for the keyword spotter.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load the configuration
//   - Build the impulse, session and engine
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Feed the double buffer from PortAudio or a WAV replay
//   - Run the inference loop
//   - Watch the configuration file for changes
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or the end of the replay
//   - Stop recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v, using development build info", err)
	}

	opts, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatal(err)
	}
	if opts.Command == "" {
		return
	}

	if opts.Command == cmd.CommandList {
		if err := listDevices(); err != nil {
			applog.Fatal(err)
		}
		return
	}

	hc, err := config.NewHotConfig(opts.ConfigPath)
	if err != nil {
		applog.Fatal(err)
	}
	cfg := hc.Get()
	opts.Apply(cfg)
	setLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.Command {
	case cmd.CommandClassify:
		err = classify(ctx, cfg, opts.Input)
	case cmd.CommandStream, cmd.CommandRun:
		err = spot(ctx, hc, opts)
	}
	if err != nil {
		applog.Fatal(err)
	}
}

func setLogLevel(name string) {
	level, ok := applog.ParseLevel(name)
	if !ok {
		applog.Warnf("Config: unknown log level %q, using %s", name, level)
	}
	applog.SetLevel(level)
}

func listDevices() error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return audio.ListDevices(os.Stdout)
}

// classify runs one single-shot inference over the first window of path.
func classify(ctx context.Context, cfg *config.Config, path string) error {
	imp, err := pipeline.NewImpulse(cfg.Model)
	if err != nil {
		return err
	}
	samples, err := capture.LoadWAV(path, cfg.Model.Frequency)
	if err != nil {
		return err
	}
	if len(samples) < cfg.Model.WindowSamples {
		padded := make([]int16, cfg.Model.WindowSamples)
		copy(padded, samples)
		samples = padded
	}
	res, err := pipeline.Run(ctx, imp, kwssignal.FromInt16(samples[:cfg.Model.WindowSamples]), cfg.Debug)
	if err != nil {
		return err
	}
	audio.PrintResult(res)
	return nil
}

// spot runs continuous inference on the live device or on a replayed file.
func spot(ctx context.Context, hc *config.HotConfig, opts *cmd.Options) error {
	cfg := hc.Get()

	var samples []int16
	if opts.Command == cmd.CommandStream {
		var err error
		if samples, err = capture.LoadWAV(opts.Input, cfg.Model.Frequency); err != nil {
			return err
		}
		// Replayed audio is already mono at the model rate.
		cfg.Audio.Decimation = 1
	} else {
		// PortAudio must outlive the engine's input stream.
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
	}

	imp, err := pipeline.NewImpulse(cfg.Model)
	if err != nil {
		return err
	}
	session, err := pipeline.NewSession(imp, cfg.Debug)
	if err != nil {
		return err
	}
	engine, err := audio.NewEngine(cfg, session)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			applog.Errorf("Error closing audio engine: %v", err)
		}
	}()
	if err := addTransports(engine, cfg.Transport); err != nil {
		return err
	}

	hc.OnReload(func(next *config.Config) {
		opts.Apply(next)
		setLogLevel(next.LogLevel)
		session.SetDebug(next.Debug)
		engine.Detector().SetRules(next.Detection.Rules)
		engine.SetGateThreshold(next.Audio.GateThreshold)
	})
	if opts.ConfigPath != "" {
		if err := hc.Watch(ctx); err != nil {
			applog.Warnf("Config: not watching %s: %v", opts.ConfigPath, err)
		}
	}

	engine.PrintSettings()
	engine.Start()

	var recording string
	if cfg.Recording.Enabled {
		if recording, err = engine.StartRecording(cfg.Recording.OutputDir); err != nil {
			applog.Errorf("Recording: %v", err)
		}
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := engine.Run(gctx)
		engine.Stop()
		return err
	})

	if samples != nil {
		replay, err := capture.NewReplay(samples, cfg.Model.Frequency, cfg.Audio.FramesPerBuffer)
		if err != nil {
			engine.Stop()
			return errors.Join(err, g.Wait())
		}
		replay.SetSpeed(opts.Speed)
		g.Go(func() error {
			if err := replay.Run(gctx, engine.Buffer()); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
			return engine.Drain(gctx)
		})
	} else {
		if err := engine.StartInputStream(); err != nil {
			engine.Stop()
			return errors.Join(err, g.Wait())
		}
		g.Go(func() error {
			<-gctx.Done()
			engine.Stop()
			return nil
		})
	}

	applog.Printf("Listening!\n")
	err = g.Wait()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if recording != "" {
		if err := engine.StopRecording(); err != nil {
			applog.Errorf("Error stopping recording: %v", err)
		}
		fmt.Printf("\nRecording saved to: %s\n", recording)
	}

	st := engine.Stats()
	applog.Infof("Engine: %d results, %d detections, %d overruns",
		st.Results, st.Detections, st.Capture.Overruns)
	return err
}

func addTransports(engine *audio.Engine, cfg config.TransportConfig) error {
	engine.AddTransport(transport.NewLoggingTransport())

	if cfg.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(cfg.WebSocketAddress, cfg.WebSocketPath)
		if err := ws.Start(); err != nil {
			ws.Close()
			return err
		}
		engine.AddTransport(ws)
	}

	if cfg.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.UDPTargetAddress)
		if err != nil {
			return err
		}
		publisher, err := udp.NewUDPPublisher(cfg.UDPSendInterval, sender)
		if err != nil {
			sender.Close()
			return err
		}
		publisher.Start()
		engine.AddTransport(publisher)
	}
	return nil
}
