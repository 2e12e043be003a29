/*
NAME
  reslicer.go

DESCRIPTION
  reslicer.go implements pass 2: concatenating slices of decoded XLL frames
  (codec/dtsxll) into PBR frames of the planned size, tracking sync-word
  presence/offset and initial decoding delay.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package pbr

import (
	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/codec/dtsxll"
)

// entry tracks one decoded XLL frame not yet fully consumed by the
// reslicer: its originating sequence number (for initial-delay
// computation), its remaining, not-yet-emitted source-position trace, and
// whether any bytes have been taken from it yet. Every decoded frame
// begins with an XLL sync word at its own first byte (that's what
// codec/dtsxll's common-header decode requires), so the first byte ever
// taken from a fresh entry marks a sync-word start.
type entry struct {
	seq     int
	trace   dtsxll.Trace
	started bool
}

// Reslicer holds the FIFO of decoded XLL frames awaiting pass-2 reslicing
// and the count of PBR frames already emitted.
type Reslicer struct {
	queue        []entry
	emittedCount int
}

// Feed pushes newly decoded XLL frames (in order) onto the reslicer's
// input FIFO.
func (r *Reslicer) Feed(frames ...dtsxll.PbrFrame) {
	for _, f := range frames {
		r.queue = append(r.queue, entry{seq: f.Seq, trace: f.Trace})
	}
}

// Next consumes targetSize bytes from the front of the FIFO, building one
// new PBR-frame trace. It reports whether any decoded frame's sync word
// falls within the new frame, its byte offset within it, and the initial
// decoding delay (the sync-originating frame's sequence number minus the
// number of PBR frames already emitted).
func (r *Reslicer) Next(targetSize int) (dtsxll.Trace, ResliceResult, error) {
	var out dtsxll.Trace
	remaining := targetSize
	sawSync := false
	syncOffset := 0
	syncSeq := 0

	for remaining > 0 {
		if len(r.queue) == 0 {
			return out, ResliceResult{}, errors.Wrapf(ErrReslicerStarved, "pbr: need %d more bytes", remaining)
		}
		head := &r.queue[0]
		freshStart := !head.started
		before := out.TotalLength()

		n := out.Collect(&head.trace, remaining)
		if n == 0 {
			break // Shouldn't happen: Collect makes progress while src has ranges.
		}
		head.started = true

		if freshStart && !sawSync {
			sawSync = true
			syncOffset = before
			syncSeq = head.seq
		}

		remaining -= n
		if head.trace.TotalLength() == 0 {
			r.queue = r.queue[1:]
		}
	}

	delay := 0
	if sawSync {
		delay = syncSeq - r.emittedCount
	}
	r.emittedCount++

	return out, ResliceResult{Size: targetSize, SyncPresent: sawSync, SyncOffsetBytes: syncOffset, InitialDelay: delay}, nil
}
