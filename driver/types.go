/*
NAME
  types.go

DESCRIPTION
  types.go defines the codec context / driver's state: the tagged-variant
  stream kind, run options, per-codec sub-contexts, and the file-backed
  SourceReader the AU assembler reads replacement bytes from.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package driver implements the per-codec entry point: it detects the
// elementary stream's codec family from its leading sync word,
// dispatches each access unit to the matching parser, computes its PTS,
// delivers it to the AU assembler, and — in two-pass mode — drives the PBR
// planner and the ExtSS header/XLL-asset rewrite on the second pass.
package driver

import (
	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/au"
	"github.com/reelforge/bdamux/codec/ac3"
	"github.com/reelforge/bdamux/codec/dtscore"
	"github.com/reelforge/bdamux/codec/dtsextss"
	"github.com/reelforge/bdamux/codec/dtsxll"
	"github.com/reelforge/bdamux/codec/mlp"
	"github.com/reelforge/bdamux/pbr"
	"github.com/reelforge/bdamux/script"
)

// Sentinel error kinds.
var (
	ErrNonCompliantChange = errors.New("driver: non-compliant stream-property change across frames")
	ErrUnknownCodec       = errors.New("driver: could not determine codec family from leading sync word")
)

// Kind is the tagged variant of elementary-stream codec family a Context
// drives, dispatched by leading sync word.
type Kind uint8

const (
	KindAC3 Kind = iota
	KindEAC3
	KindMLP
	KindDtsCore
	KindDtsExtSS
)

// Options configures one run of the driver.
type Options struct {
	// SkipFirstNFrames discards that many leading access units entirely
	// (still advancing the file position).
	SkipFirstNFrames int

	// TwoPass enables the PBR two-pass pipeline; only meaningful when the
	// stream is DtsExtSS and carries an XLL component.
	TwoPass bool

	// PbrBufferCapacity is the configured PBR smoothing buffer size in
	// bytes, per the container's EXTSS_MD chunk or a CLI override.
	PbrBufferCapacity int

	// Stats is an optional parsed .dtspbr target-size table.
	Stats *pbr.Stats

	// SrcFileIndex is the source-file index recorded on every cell this
	// run produces, and the index the Context's SourceReader answers
	// ReadAt calls for.
	SrcFileIndex uint8
}

// FileSource implements au.SourceReader over a single in-memory elementary
// stream buffer, addressed as file index 0. It is a thin adapter — the
// driver always operates on one fully-buffered input file, matching the
// codec parsers' buf []byte convention.
type FileSource struct {
	Data []byte
}

// ReadAt implements au.SourceReader.
func (s FileSource) ReadAt(fileIdx uint8, offset int64, length int) ([]byte, error) {
	if fileIdx != 0 {
		return nil, errors.Errorf("driver: unknown source file index %d", fileIdx)
	}
	if offset < 0 || offset+int64(length) > int64(len(s.Data)) {
		return nil, errors.Errorf("driver: read [%d,%d) out of range for %d-byte source", offset, offset+int64(length), len(s.Data))
	}
	return s.Data[offset : offset+int64(length)], nil
}

// Context holds one elementary stream's parse state across its whole run:
// the detected codec kind, per-codec sub-contexts (whichever one kind
// selects), the AU assembler, the output script writer, the primary asset's
// XLL assembler, and two-pass PBR planner/reslicer state.
type Context struct {
	Kind Kind
	Opts Options
	Log  logging.Logger

	AU *au.Assembler
	W  *script.Writer

	ac3Ctx     *ac3.Context
	mlpCtx     *mlp.Context
	dtscoreCtx *dtscore.Context

	// mlpSampleRateHz carries the last known sample rate across access
	// units that lack a major sync (only major-sync AUs carry it).
	mlpSampleRateHz int

	// xll is the single primary asset's XLL assembler, lazily created on
	// first encountering an XLL component. BDAV mandates exactly one
	// asset per ExtSS frame, so one assembler suffices.
	xll *dtsxll.Assembler

	// planner and reslicer are only used in two-pass mode: planner
	// accumulates pass-1 sizes; reslicer drives pass-2 output.
	planner  *pbr.Planner
	reslicer *pbr.Reslicer

	ptsAccum27MHz uint64
	frameIndex    int
	warned        map[string]bool

	// totalSamples is the running sum of audio samples consumed so far for
	// AC3 and MLP streams, used to compute each AU's PTS from an absolute
	// count rather than by accumulating per-frame rounded deltas.
	totalSamples int64
	sampleRateHz int

	// coreSamples and extSamples are DTS's separate Core and ExtSS sample
	// counters: the two substreams run at different frame rates and must
	// accumulate PTS independently.
	coreSamples int64
	extSamples  int64

	// plan is pass-1's redistribution output, consulted by pass 2;
	// planFrameIdx indexes into it as ExtSS AUs are re-encountered.
	plan         *pbr.Plan
	planFrameIdx int

	// src is the SourceReader backing replacement-cell synthesis for the
	// run currently in progress, set by Run.
	src au.SourceReader
}

func (c *Context) warnOnce(kind, msg string) {
	if c.warned == nil {
		c.warned = make(map[string]bool)
	}
	if c.warned[kind] {
		return
	}
	c.warned[kind] = true
	if c.Log != nil {
		c.Log.Warning(msg, "kind", kind)
	}
}
