// SPDX-License-Identifier: MIT
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"kws/internal/config"
	applog "kws/internal/log"
	"kws/pkg/build"
)

// Commands selected by ParseArgs.
const (
	CommandRun      = "run"
	CommandStream   = "stream"
	CommandClassify = "classify"
	CommandList     = "list"
)

// Options holds what was parsed from the command line. Flags the user did
// not set leave the configuration file untouched.
type Options struct {
	Command    string
	Input      string // WAV file for stream and classify
	ConfigPath string
	Speed      float64

	deviceID  int
	record    bool
	outputDir string
	verbose   bool
	debug     bool
	changed   map[string]bool
}

// ParseArgs parses os.Args. Command is empty when only help or the version
// was requested.
func ParseArgs() (*Options, error) {
	return parse(os.Args[1:])
}

func parse(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{Speed: 1, changed: map[string]bool{}}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandRun
			return nil
		},
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Spot keywords on the live input device (default)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandRun
		},
	})

	streamCmd := &cobra.Command{
		Use:   "stream <file.wav>",
		Short: "Spot keywords in a WAV file replayed as a live stream",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandStream
			options.Input = args[0]
		},
	}
	streamCmd.Flags().Float64Var(&options.Speed, "speed", 1,
		"Replay speed relative to real time; 0 replays as fast as inference allows")
	rootCmd.AddCommand(streamCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "classify <file.wav>",
		Short: "Classify the first window of a WAV file once",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandClassify
			options.Input = args[0]
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
		},
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&options.ConfigPath, "config", "f", "",
		"Configuration file (default config.yaml or kws.yaml if present)")

	// Audio Device Configuration
	flags.IntVarP(&options.deviceID, "device", "d", config.MinDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")

	// Recording Configuration
	flags.BoolVarP(&options.record, "record", "r", false,
		"Record the audio the model hears to a WAV file")
	flags.StringVarP(&options.outputDir, "output", "o", "",
		"Directory for recordings")

	// Debug Configuration
	flags.BoolVarP(&options.verbose, "verbose", "v", false,
		"Show verbose output")
	flags.BoolVar(&options.debug, "debug", false,
		"Print raw features for every inference")

	// cobra falls back to os.Args for a nil slice.
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	for _, name := range []string{"device", "record", "output", "verbose", "debug"} {
		options.changed[name] = flags.Changed(name)
	}
	return options, nil
}

// Apply overrides cfg with every flag set on the command line.
func (o *Options) Apply(cfg *config.Config) {
	if o.changed["device"] {
		cfg.Audio.InputDevice = o.deviceID
	}
	if o.changed["record"] {
		cfg.Recording.Enabled = o.record
	}
	if o.changed["output"] {
		cfg.Recording.OutputDir = o.outputDir
	}
	if o.changed["debug"] {
		cfg.Debug = o.debug
	}
	if o.verbose {
		cfg.LogLevel = applog.LevelDebug.String()
	}
}
