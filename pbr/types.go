/*
NAME
  types.go

DESCRIPTION
  types.go defines the PBR smoothing planner's state: pass-1 recorded XLL
  frame sizes, the optional .dtspbr target-size table, and the pass-2
  reslicer's per-frame result.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package pbr implements the DTS-XLL Peak Bit-Rate smoothing planner: a
// single-pass pass-through mode, and a two-pass mode that records
// per-frame XLL sizes on pass 1, redistributes them right-to-left against a
// fixed buffer capacity and an optional target-size table, then on pass 2
// reslices decoded XLL frames (via codec/dtsxll's trace machinery) into the
// planned sizes.
package pbr

import "github.com/pkg/errors"

// Sentinel error kinds.
var (
	ErrPbrSmoothingInfeasible = errors.New("pbr: smoothing is infeasible for the configured buffer capacity")
	ErrStatsFileMalformed     = errors.New("pbr: .dtspbr statistics file is malformed")
	ErrReslicerStarved        = errors.New("pbr: reslicer ran out of decoded source bytes")
)

// defaultFakeTargetBytes is the fallback per-frame target used when no
// .dtspbr statistics file is supplied.
const defaultFakeTargetBytes = 3200

// StatRecord is one (timestamp, target_size) entry from a .dtspbr file.
type StatRecord struct {
	Hours, Minutes, Seconds, Frames int
	TargetSize                      int
}

// Stats is a parsed .dtspbr statistics file: an FPS value and a strictly
// timestamp-ordered list of target-size records, the first of which must
// be at zero timestamp.
type Stats struct {
	FPS     int
	Records []StatRecord
}

// Plan is the pass-1/redistribution output: one emitted target size per
// audio frame, in original frame order.
type Plan struct {
	EmittedSizes []int
}

// ResliceResult is one pass-2 reslice outcome for a single audio frame: the
// new PBR frame's size, whether it starts with (or contains) a decoded XLL
// frame's sync word, that sync word's byte offset within the new frame, and
// the initial decoding delay to report in the rewritten ExtSS XLL
// sub-fields.
type ResliceResult struct {
	Size            int
	SyncPresent     bool
	SyncOffsetBytes int
	InitialDelay    int
}
