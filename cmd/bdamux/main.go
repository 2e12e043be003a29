/*
NAME
  main.go

DESCRIPTION
  main.go is the bdamux command-line entry point: it parses flags and an
  optional config file, reads an elementary stream, DTS-HD container, or
  WAVE input, drives the matching codec pipeline, and writes the external
  muxer script.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Command bdamux packages a Blu-ray audio elementary stream, DTS-HD
// container, or WAVE file into the external muxer script that the
// downstream PES/TS muxer (out of scope for this module) consumes.
package main

import (
	"os"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/reelforge/bdamux/container/dtshd"
	"github.com/reelforge/bdamux/driver"
	"github.com/reelforge/bdamux/lpcm"
	"github.com/reelforge/bdamux/pbr"
	"github.com/reelforge/bdamux/script"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code: 0 on success, 1 on any parser,
// compliance, or I/O error.
func run(args []string) int {
	fs := pflag.NewFlagSet("bdamux", pflag.ContinueOnError)

	cfg := defaultConfig()
	input := fs.StringP("input", "i", cfg.Input, "Path to the input elementary stream, DTS-HD container, or WAVE file.")
	inputFormat := fs.String("input-format", cfg.InputFormat, `Input format: "es" (raw elementary stream), "dtshd" (DTS-HD container), or "wav" (LPCM WAVE file).`)
	output := fs.StringP("output", "o", cfg.Output, "Path to write the external muxer script to.")
	skipFrames := fs.Int("skip-frames", cfg.SkipFirstNFrames, "Discard this many leading access units (for delay trimming).")
	twoPass := fs.Bool("two-pass", cfg.TwoPass, "Run the PBR two-pass smoothing pipeline on a DTS ExtSS+XLL stream.")
	pbrBufferKiB := fs.Int("pbr-buffer-kib", cfg.PbrBufferKiB, "PBR smoothing buffer size, in KiB.")
	dtspbrPath := fs.String("dtspbr", cfg.DtspbrPath, "Optional .dtspbr target-size statistics file.")
	lpcmFrameSamples := fs.Int("lpcm-frame-samples", 40, "Samples per channel per access unit, for WAVE input.")
	configPath := fs.String("config", "", "Optional TOML run-config file; flags override its values.")
	logFile := fs.String("log-file", cfg.LogFile, "Optional rotating log file path.")
	verbose := fs.BoolP("verbose", "v", cfg.Verbose, "Enable debug-level logging.")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg.Input, cfg.InputFormat, cfg.Output = *input, *inputFormat, *output
	cfg.SkipFirstNFrames, cfg.TwoPass, cfg.PbrBufferKiB = *skipFrames, *twoPass, *pbrBufferKiB
	cfg.DtspbrPath, cfg.LogFile, cfg.Verbose = *dtspbrPath, *logFile, *verbose

	flagsSet := map[string]bool{}
	fs.Visit(func(f *pflag.Flag) { flagsSet[f.Name] = true })

	cfg, err := loadConfigFile(cfg, *configPath, flagsSet)
	if err != nil {
		errLog(err)
		return 1
	}

	log := newLogger(cfg.LogFile, cfg.Verbose)

	if cfg.Input == "" || cfg.Output == "" {
		errLog(errors.New("bdamux: --input and --output are required"))
		return 1
	}

	raw, err := os.ReadFile(cfg.Input)
	if err != nil {
		errLog(errors.Wrap(err, "bdamux: reading input"))
		return 1
	}

	outFile, err := os.Create(cfg.Output)
	if err != nil {
		errLog(errors.Wrap(err, "bdamux: creating output"))
		return 1
	}
	defer outFile.Close()

	var stats *pbr.Stats
	if cfg.DtspbrPath != "" {
		f, err := os.Open(cfg.DtspbrPath)
		if err != nil {
			errLog(errors.Wrap(err, "bdamux: opening .dtspbr file"))
			return 1
		}
		stats, err = pbr.ParseStats(f)
		f.Close()
		if err != nil {
			errLog(errors.Wrap(err, "bdamux: parsing .dtspbr file"))
			return 1
		}
	}

	w := script.NewWriter(outFile)

	switch cfg.InputFormat {
	case "wav":
		err = lpcm.Ingest(raw, w, lpcm.Options{FrameSamples: *lpcmFrameSamples})
	case "dtshd":
		err = runContainer(raw, w, cfg, stats, log)
	default:
		err = runElementaryStream(raw, w, cfg, stats, log)
	}
	if err != nil {
		errLog(err)
		return 1
	}

	return 0
}

// runElementaryStream drives the codec pipeline over a raw elementary
// stream buffer: detect the codec, build and write the stream header, then
// run the driver over every access unit.
func runElementaryStream(buf []byte, w *script.Writer, cfg runConfig, stats *pbr.Stats, log logging.Logger) error {
	kind, err := driver.Detect(buf)
	if err != nil {
		return err
	}

	hdr, err := buildStreamHeader(kind, buf)
	if err != nil {
		return err
	}
	if err := w.WriteHeader(hdr); err != nil {
		return err
	}

	opts := driver.Options{
		SkipFirstNFrames:  cfg.SkipFirstNFrames,
		TwoPass:           cfg.TwoPass && kind == driver.KindDtsExtSS,
		PbrBufferCapacity: cfg.PbrBufferKiB * 1024,
		Stats:             stats,
	}
	ctx := driver.New(kind, opts, log, w)
	if err := ctx.Run(buf, driver.FileSource{Data: buf}); err != nil {
		return err
	}
	return w.Close()
}

// runContainer delegates to the DTS-HD container reader to locate the
// stream-data chunk, then drives the same pipeline over that segment.
func runContainer(buf []byte, w *script.Writer, cfg runConfig, stats *pbr.Stats, log logging.Logger) error {
	f, err := dtshd.Read(buf)
	if err != nil {
		return errors.Wrap(err, "bdamux: reading DTS-HD container")
	}
	if f.StreamDataLength == 0 {
		return errors.New("bdamux: container has no STRMDATA chunk")
	}
	end := f.StreamDataOffset + f.StreamDataLength
	if end > int64(len(buf)) {
		return errors.New("bdamux: STRMDATA chunk extends past end of file")
	}
	streamBuf := buf[f.StreamDataOffset:end]

	if f.ExtSSMetadata != nil && f.ExtSSMetadata.PbrBufferSizeKiB > 0 {
		cfg.PbrBufferKiB = f.ExtSSMetadata.PbrBufferSizeKiB
	}

	return runElementaryStream(streamBuf, w, cfg, stats, log)
}

func errLog(err error) {
	os.Stderr.WriteString(err.Error() + "\n")
}
