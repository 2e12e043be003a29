/*
NAME
  config.go

DESCRIPTION
  config.go loads bdamux's run configuration: PBR buffer size, skip-frame
  count, the `.dtspbr` statistics path and the output script path, from an
  optional TOML file, with CLI flags taking precedence.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package main

import (
	"os"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// runConfig is the fully resolved set of options driving one bdamux run,
// after merging defaults, an optional config file, and CLI flags.
type runConfig struct {
	Input             string
	InputFormat       string
	Output            string
	SkipFirstNFrames  int
	TwoPass           bool
	PbrBufferKiB      int
	DtspbrPath        string
	LogFile           string
	Verbose           bool
}

func defaultConfig() runConfig {
	return runConfig{
		InputFormat:  "es",
		PbrBufferKiB: 240,
	}
}

// loadConfigFile merges a TOML config file's values into cfg, for any field
// the caller has not already set via a CLI flag (flagsSet records which
// flag names were explicitly passed).
func loadConfigFile(cfg runConfig, path string, flagsSet map[string]bool) (runConfig, error) {
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, errors.Wrapf(err, "bdamux: config file %q", path)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return cfg, errors.Wrapf(err, "bdamux: parsing config file %q", path)
	}

	if !flagsSet["input"] && k.Exists("input") {
		cfg.Input = k.String("input")
	}
	if !flagsSet["input-format"] && k.Exists("input_format") {
		cfg.InputFormat = k.String("input_format")
	}
	if !flagsSet["output"] && k.Exists("output") {
		cfg.Output = k.String("output")
	}
	if !flagsSet["skip-frames"] && k.Exists("skip_first_n_frames") {
		cfg.SkipFirstNFrames = k.Int("skip_first_n_frames")
	}
	if !flagsSet["two-pass"] && k.Exists("two_pass") {
		cfg.TwoPass = k.Bool("two_pass")
	}
	if !flagsSet["pbr-buffer-kib"] && k.Exists("pbr_buffer_kib") {
		cfg.PbrBufferKiB = k.Int("pbr_buffer_kib")
	}
	if !flagsSet["dtspbr"] && k.Exists("dtspbr") {
		cfg.DtspbrPath = k.String("dtspbr")
	}
	if !flagsSet["log-file"] && k.Exists("log_file") {
		cfg.LogFile = k.String("log_file")
	}
	if !flagsSet["verbose"] && k.Exists("verbose") {
		cfg.Verbose = k.Bool("verbose")
	}

	return cfg, nil
}
