/*
NAME
  types.go

DESCRIPTION
  types.go defines the DTS-XLL assembler's state: the PBR smoothing buffer,
  the pending/decoded PbrFrame FIFOs, and the source-file-position trace.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package dtsxll implements the DTS-XLL assembler that sits between the
// ExtSS parser and the XLL common-header decode: a PBR smoothing buffer, a
// FIFO of pending and decoded PbrFrames, and the source-file-position trace
// operations used to reslice decoded frames for PBR two-pass output.
package dtsxll

import "github.com/pkg/errors"

// Sentinel error kinds.
var (
	ErrPbrBufferOverflow = errors.New("dtsxll: PBR buffer overflow")
	ErrPbrUnderflow      = errors.New("dtsxll: PBR pending frame decode-delay underflow")
	ErrTraceFull         = errors.New("dtsxll: source-file-position trace already holds 8 ranges")
)

// MaxBufferBytes is the largest PBR smoothing buffer capacity a DTS-HD MA
// decoder is guaranteed to provide, 240 KiB.
const MaxBufferBytes = 240 * 1024

// maxTraceRanges bounds how many discontiguous source spans a single
// resliced frame can be made of before the assembler gives up on tracking
// it precisely.
const maxTraceRanges = 8

// Range is one contiguous span of source-file bytes.
type Range struct {
	Offset int64
	Length int
}

// Trace is the source-file-position trace: an ordered list of byte ranges
// that together make up a decoded or resliced frame's original source
// bytes.
type Trace struct {
	Ranges []Range
}

// Add appends (off, len) to the trace. It fails if the trace already holds
// the maximum of 8 ranges.
func (t *Trace) Add(off int64, length int) error {
	if len(t.Ranges) >= maxTraceRanges {
		return ErrTraceFull
	}
	if length == 0 {
		return nil
	}
	t.Ranges = append(t.Ranges, Range{Offset: off, Length: length})
	return nil
}

// TotalLength returns the sum of all ranges' lengths.
func (t *Trace) TotalLength() int {
	n := 0
	for _, r := range t.Ranges {
		n += r.Length
	}
	return n
}

// Collect removes up to n bytes from the front of src, appending them to t.
// It returns the number of bytes actually moved (less than n if src is
// exhausted).
func (t *Trace) Collect(src *Trace, n int) int {
	moved := 0
	for n > 0 && len(src.Ranges) > 0 {
		head := &src.Ranges[0]
		take := head.Length
		if take > n {
			take = n
		}
		t.Ranges = append(t.Ranges, Range{Offset: head.Offset, Length: take})
		head.Offset += int64(take)
		head.Length -= take
		moved += take
		n -= take
		if head.Length == 0 {
			src.Ranges = src.Ranges[1:]
		}
	}
	return moved
}

// RelativeOffset returns the logical position within t's concatenated
// ranges at which absolute source offset abs falls, and whether abs is
// covered by t at all. Used to compute a resliced frame's new XLL
// sync-word offset after PBR redistribution.
func (t *Trace) RelativeOffset(abs int64) (int, bool) {
	pos := 0
	for _, r := range t.Ranges {
		if abs >= r.Offset && abs < r.Offset+int64(r.Length) {
			return pos + int(abs-r.Offset), true
		}
		pos += r.Length
	}
	return 0, false
}

// PbrFrame is one entry in the assembler's pending or decoded FIFO: a span
// of PBR-buffered bytes not yet (pending) or already (decoded) handed to
// the XLL common-header parser, with its decode-delay countdown and
// originating sequence number.
type PbrFrame struct {
	Seq             int
	DecodeDelay     int
	RemainingBytes  int
	Trace           Trace
	SyncWordPresent bool
	SyncOffsetBytes int
}

// Assembler holds the PBR smoothing buffer and the pending/decoded FIFOs
// for one XLL-carrying asset stream.
type Assembler struct {
	bufCapacity int
	buf         []byte
	bufTrace    Trace
	maxUsed     int

	pending []PbrFrame
	decoded []PbrFrame

	nextSeq int
}

// New returns an Assembler with the given buffer capacity (bytes), clamped
// to MaxBufferBytes.
func New(capacity int) *Assembler {
	if capacity > MaxBufferBytes {
		capacity = MaxBufferBytes
	}
	return &Assembler{bufCapacity: capacity}
}

// Stats reports the maximum observed PBR buffer usage, for the driver to
// surface at end of run as a high-water mark.
type Stats struct {
	MaxBufferUsage int
}

// Stats returns the assembler's current usage statistics.
func (a *Assembler) Stats() Stats {
	return Stats{MaxBufferUsage: a.maxUsed}
}
