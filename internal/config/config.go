// SPDX-License-Identifier: MIT
package config

import "time"

// Limits and defaults for the capture front end and the keyword model.
const (
	MinDeviceID     = -1     // -1 represents the system default device
	MinSampleRate   = 8000   // Hz
	MaxSampleRate   = 192000 // Hz
	MaxBufferFrames = 8192

	DefaultSampleRate      = 16000
	DefaultFramesPerBuffer = 400 // 25 ms at 16 kHz
	DefaultFrequency       = 16000
	DefaultWindowSamples   = 16000 // one second of audio per classification window
	DefaultSlicesPerWindow = 4
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Print raw features and per-inference predictions.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn", "error" or "fatal".
	Audio     AudioConfig     `yaml:"audio"`
	Model     ModelConfig     `yaml:"model"`
	Detection DetectionConfig `yaml:"detection"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds settings related to audio capture.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Hardware sample rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per PortAudio callback; each callback is one half transfer.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio.
	InputChannels   int     `yaml:"input_channels"`    // Interleaved channels delivered by the device.
	Decimation      int     `yaml:"decimation"`        // Keep every Nth interleaved sample; 0 derives it from channels and rates.
	AbortOnOverrun  bool    `yaml:"abort_on_overrun"`  // Stop the inference loop when a buffer is overwritten before use.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Slice peak (0..1) below which detections are suppressed; 0 disables.
}

// Stride returns the decimation applied to the interleaved hardware stream.
func (a AudioConfig) Stride(modelFrequency int) int {
	if a.Decimation > 0 {
		return a.Decimation
	}
	channels := max(a.InputChannels, 1)
	ratio := 1
	if modelFrequency > 0 && int(a.SampleRate) > modelFrequency {
		ratio = int(a.SampleRate) / modelFrequency
	}
	return channels * ratio
}

// ModelConfig describes the impulse: the DSP blocks, the classifier and the
// optional anomaly scorer.
type ModelConfig struct {
	Name            string           `yaml:"name"`
	Frequency       int              `yaml:"frequency"`         // Sample rate the model was trained at.
	WindowSamples   int              `yaml:"window_samples"`    // Raw samples per classification window.
	SlicesPerWindow int              `yaml:"slices_per_window"` // Continuous mode slices per window.
	Labels          []string         `yaml:"labels"`
	Blocks          []BlockConfig    `yaml:"blocks"`
	Classifier      ClassifierConfig `yaml:"classifier"`
	Anomaly         *AnomalyConfig   `yaml:"anomaly,omitempty"`
}

// SliceSize is the number of samples delivered per continuous inference.
func (m ModelConfig) SliceSize() int {
	if m.SlicesPerWindow <= 0 {
		return 0
	}
	return m.WindowSamples / m.SlicesPerWindow
}

// BlockConfig configures one feature extraction block. Only the fields of
// the selected type are read.
type BlockConfig struct {
	Name      string  `yaml:"name"`
	Type      string  `yaml:"type"` // mfcc, spectral, flatten, raw or image
	Axes      int     `yaml:"axes"`
	ScaleAxes float64 `yaml:"scale_axes"`

	// mfcc
	NumCepstral   int     `yaml:"num_cepstral"`
	FrameLength   float64 `yaml:"frame_length"`
	FrameStride   float64 `yaml:"frame_stride"`
	NumFilters    int     `yaml:"num_filters"`
	FFTLength     int     `yaml:"fft_length"`
	WinSize       int     `yaml:"win_size"`
	LowFrequency  float64 `yaml:"low_frequency"`
	HighFrequency float64 `yaml:"high_frequency"`
	PreCof        float64 `yaml:"pre_cof"`
	PreShift      int     `yaml:"pre_shift"`

	// spectral
	FilterType             string  `yaml:"filter_type"`
	FilterCutoff           float64 `yaml:"filter_cutoff"`
	FilterOrder            int     `yaml:"filter_order"`
	SpectralPeaksCount     int     `yaml:"spectral_peaks_count"`
	SpectralPeaksThreshold float64 `yaml:"spectral_peaks_threshold"`
	SpectralPowerEdges     string  `yaml:"spectral_power_edges"`
	FFTWindow              string  `yaml:"fft_window"`

	// flatten
	Average  bool `yaml:"average"`
	Minimum  bool `yaml:"minimum"`
	Maximum  bool `yaml:"maximum"`
	RMS      bool `yaml:"rms"`
	Stdev    bool `yaml:"stdev"`
	Skewness bool `yaml:"skewness"`
	Kurtosis bool `yaml:"kurtosis"`

	// image
	Channels string `yaml:"channels"` // "RGB" or "Grayscale"
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
}

// ClassifierConfig selects and parameterises the inference engine.
type ClassifierConfig struct {
	Engine string    `yaml:"engine"` // fixed, dense or none
	Scores []float64 `yaml:"scores"` // fixed engine output, one per label
	Path   string    `yaml:"path"`   // dense engine weights (.yaml, .yml or .msgpack)

	Quantized       bool    `yaml:"quantized"` // int8 tensors with scale and zero point
	InputScale      float64 `yaml:"input_scale"`
	InputZeroPoint  int     `yaml:"input_zero_point"`
	OutputScale     float64 `yaml:"output_scale"`
	OutputZeroPoint int     `yaml:"output_zero_point"`
}

// AnomalyConfig holds a trained nearest-cluster anomaly model.
type AnomalyConfig struct {
	Axes     []int           `yaml:"axes"` // feature indices fed to the scorer
	Mean     []float64       `yaml:"mean"`
	Scale    []float64       `yaml:"scale"`
	Clusters []ClusterConfig `yaml:"clusters"`
}

type ClusterConfig struct {
	Center   []float64 `yaml:"center"`
	MaxError float64   `yaml:"max_error"`
}

// DetectionConfig controls what happens with smoothed predictions.
type DetectionConfig struct {
	PrintEvery int             `yaml:"print_every"` // Print predictions every N results; 0 means slices_per_window/2.
	Rules      []DetectionRule `yaml:"rules"`
}

// DetectionRule fires when Label's smoothed score exceeds Threshold.
type DetectionRule struct {
	Label     string  `yaml:"label"`
	Threshold float64 `yaml:"threshold"`
	Message   string  `yaml:"message"` // printed on detection, e.g. "YES!"
}

// RecordingConfig holds settings related to recording what the model hears.
type RecordingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	OutputDir   string `yaml:"output_dir"`
	BitDepth    int    `yaml:"bit_depth"`
	MaxDuration int    `yaml:"max_duration_seconds"` // 0 for unlimited.
}

// TransportConfig holds settings related to publishing results.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`

	WebSocketEnabled bool   `yaml:"websocket_enabled"`
	WebSocketAddress string `yaml:"websocket_address"` // listen address, e.g. ":8080"
	WebSocketPath    string `yaml:"websocket_path"`
}

// Default returns the built-in configuration: a one second, four slice
// keyword model with a single MFCC block and a fixed classifier.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     MinDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			InputChannels:   1,
			AbortOnOverrun:  true,
		},
		Model: ModelConfig{
			Name:            "keyword-spotting",
			Frequency:       DefaultFrequency,
			WindowSamples:   DefaultWindowSamples,
			SlicesPerWindow: DefaultSlicesPerWindow,
			Labels:          []string{"no", "noise", "unknown", "yes"},
			Blocks:          []BlockConfig{DefaultMFCCBlock()},
			Classifier: ClassifierConfig{
				Engine: "fixed",
				Scores: []float64{0, 1, 0, 0},
			},
		},
		Detection: DetectionConfig{
			Rules: []DetectionRule{
				{Label: "yes", Threshold: 0.5, Message: "YES!"},
			},
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
			BitDepth:  16,
		},
		Transport: TransportConfig{
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond,
			WebSocketAddress: ":8080",
			WebSocketPath:    "/ws",
		},
	}
}

// DefaultMFCCBlock is the cepstral block used by the built-in model.
func DefaultMFCCBlock() BlockConfig {
	return BlockConfig{
		Name:         "mfcc",
		Type:         "mfcc",
		Axes:         1,
		ScaleAxes:    1,
		NumCepstral:  13,
		FrameLength:  0.032,
		FrameStride:  0.016,
		NumFilters:   32,
		FFTLength:    512,
		WinSize:      101,
		LowFrequency: 300,
		PreCof:       0.98,
		PreShift:     1,
	}
}
