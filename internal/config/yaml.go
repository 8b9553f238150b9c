// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"kws/internal/errs"
	applog "kws/internal/log"
)

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"kws.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var (
	blockTypes = []string{"mfcc", "spectral", "flatten", "raw", "image"}
	engines    = []string{"fixed", "dense", "none"}
)

func invalid(format string, v ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, v...), errs.ErrParameterInvalid)
}

// Validate reports the first inconsistency in the configuration. Every
// returned error wraps errs.ErrParameterInvalid.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return invalid("log_level %q is not a known level", c.LogLevel)
	}

	// Audio
	a := c.Audio
	if a.InputDevice < MinDeviceID {
		return invalid("audio.input_device %d below %d", a.InputDevice, MinDeviceID)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return invalid("audio.sample_rate %.0f outside %d..%d", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames {
		return invalid("audio.frames_per_buffer %d outside 1..%d", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.InputChannels <= 0 {
		return invalid("audio.input_channels must be positive, got %d", a.InputChannels)
	}
	if a.Decimation < 0 {
		return invalid("audio.decimation must not be negative, got %d", a.Decimation)
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		return invalid("audio.gate_threshold %.3f outside 0..1", a.GateThreshold)
	}

	// Model
	m := c.Model
	if m.Frequency <= 0 {
		return invalid("model.frequency must be positive, got %d", m.Frequency)
	}
	if m.WindowSamples <= 0 || m.SlicesPerWindow <= 0 {
		return invalid("model.window_samples %d and model.slices_per_window %d must be positive", m.WindowSamples, m.SlicesPerWindow)
	}
	if m.WindowSamples%m.SlicesPerWindow != 0 {
		return invalid("model.window_samples %d not divisible into %d slices", m.WindowSamples, m.SlicesPerWindow)
	}
	if len(m.Labels) == 0 {
		return invalid("model.labels must not be empty")
	}
	if len(m.Blocks) == 0 {
		return invalid("model.blocks must contain at least one block")
	}
	for i, b := range m.Blocks {
		if !slices.Contains(blockTypes, b.Type) {
			return invalid("model.blocks[%d].type %q not one of %v", i, b.Type, blockTypes)
		}
	}
	if !slices.Contains(engines, m.Classifier.Engine) {
		return invalid("model.classifier.engine %q not one of %v", m.Classifier.Engine, engines)
	}
	if m.Classifier.Engine == "fixed" && len(m.Classifier.Scores) != len(m.Labels) {
		return invalid("model.classifier.scores has %d values for %d labels", len(m.Classifier.Scores), len(m.Labels))
	}
	if m.Classifier.Engine == "dense" && m.Classifier.Path == "" {
		return invalid("model.classifier.path required for the dense engine")
	}

	// Detection
	if c.Detection.PrintEvery < 0 {
		return invalid("detection.print_every must not be negative, got %d", c.Detection.PrintEvery)
	}
	for _, r := range c.Detection.Rules {
		if !slices.Contains(m.Labels, r.Label) {
			return invalid("detection rule label %q is not a model label", r.Label)
		}
	}

	// Recording
	if c.Recording.Enabled && c.Recording.BitDepth != 16 {
		return invalid("recording.bit_depth %d unsupported, only 16", c.Recording.BitDepth)
	}

	// Transport
	t := c.Transport
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return invalid("transport.udp_target_address %q: %v", t.UDPTargetAddress, err)
		}
		if t.UDPSendInterval <= 0 {
			return invalid("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if t.WebSocketEnabled {
		if _, _, err := net.SplitHostPort(t.WebSocketAddress); err != nil {
			return invalid("transport.websocket_address %q: %v", t.WebSocketAddress, err)
		}
	}
	return nil
}

// applyEnvOverrides lets deployments change the handful of settings that
// differ per host without editing the YAML file.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Infof("configuration: Overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Infof("configuration: Overriding log_level from env: %s", val)
	}
	// ENV_INPUT_DEVICE
	if val, ok := os.LookupEnv("ENV_INPUT_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.InputDevice = iVal
			applog.Infof("configuration: Overriding audio.input_device from env: %d", iVal)
		}
	}
	// ENV_MODEL_PATH
	if val, ok := os.LookupEnv("ENV_MODEL_PATH"); ok {
		cfg.Model.Classifier.Path = val
		applog.Infof("configuration: Overriding model.classifier.path from env: %s", val)
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Infof("configuration: Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Infof("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Infof("configuration: Overriding transport.udp_send_interval from env: %s", dur)
		}
	}
	// ENV_WS_ENABLED
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.WebSocketEnabled = bVal
			applog.Infof("configuration: Overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WebSocketAddress = val
		applog.Infof("configuration: Overriding transport.websocket_address from env: %s", val)
	}
}
