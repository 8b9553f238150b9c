// SPDX-License-Identifier: MIT
package cmd

import (
	"testing"

	"kws/internal/config"
)

func TestParseCommands(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		command string
		input   string
		wantErr bool
	}{
		{"Default runs live", nil, CommandRun, "", false},
		{"Explicit run", []string{"run"}, CommandRun, "", false},
		{"Stream", []string{"stream", "yes.wav"}, CommandStream, "yes.wav", false},
		{"Classify", []string{"classify", "no.wav"}, CommandClassify, "no.wav", false},
		{"List", []string{"list"}, CommandList, "", false},
		{"Stream needs a file", []string{"stream"}, "", "", true},
		{"Unknown flag", []string{"--nope"}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parse(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if opts.Command != tt.command || opts.Input != tt.input {
				t.Errorf("got (%q, %q), want (%q, %q)", opts.Command, opts.Input, tt.command, tt.input)
			}
		})
	}
}

func TestApplyOnlyChangedFlags(t *testing.T) {
	opts, err := parse([]string{"stream", "a.wav", "--speed", "0", "-d", "3", "--record", "-v"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Speed != 0 {
		t.Errorf("speed = %v, want 0", opts.Speed)
	}

	cfg := config.Default()
	cfg.Recording.OutputDir = "from-file"
	cfg.Debug = true
	opts.Apply(cfg)

	if cfg.Audio.InputDevice != 3 || !cfg.Recording.Enabled {
		t.Errorf("flags not applied: device %d, record %v", cfg.Audio.InputDevice, cfg.Recording.Enabled)
	}
	if cfg.Recording.OutputDir != "from-file" || !cfg.Debug {
		t.Error("unset flags overrode the configuration file")
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("log level = %q, want DEBUG", cfg.LogLevel)
	}
}
