/*
NAME
  planner.go

DESCRIPTION
  planner.go implements pass 1's per-frame size recording and the
  last-to-first PBR redistribution walk.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package pbr

import "github.com/pkg/errors"

// Planner accumulates pass-1 per-audio-frame XLL sizes and computes the
// pass-2 redistribution plan.
type Planner struct {
	BufferCapacity int
	Stats          *Stats // nil uses the fake default target.

	recordedSizes []int
}

// NewPlanner returns a Planner with the given PBR buffer capacity and an
// optional parsed .dtspbr table (nil for the fake 3200 bytes/frame
// default).
func NewPlanner(bufferCapacity int, stats *Stats) *Planner {
	return &Planner{BufferCapacity: bufferCapacity, Stats: stats}
}

// RecordFrame appends one audio frame's original XLL size to the pass-1
// record, in stream order.
func (p *Planner) RecordFrame(size int) {
	p.recordedSizes = append(p.recordedSizes, size)
}

// targetSize returns the per-frame target size. A supplied .dtspbr table
// collapses to its average target size for every frame rather than being
// consulted per-timestamp, since the table's timestamps don't line up
// one-to-one with decoded frame indices.
func (p *Planner) targetSize(i int) int {
	if p.Stats != nil {
		return p.Stats.averageTargetSize()
	}
	return defaultFakeTargetBytes
}

// Plan runs the last-to-first redistribution walk over the pass-1 recorded
// sizes and returns the emitted target size for each frame, in original
// frame order. It fails with ErrPbrSmoothingInfeasible if bytes remain
// buffered after frame 0.
func (p *Planner) Plan() (*Plan, error) {
	n := len(p.recordedSizes)
	emitted := make([]int, n)
	bufferedFromFuture := 0

	for i := n - 1; i >= 0; i-- {
		required := p.recordedSizes[i] + bufferedFromFuture
		target := required
		if tgt := p.targetSize(i); tgt < target {
			target = tgt
		}
		if p.BufferCapacity > 0 && required > p.BufferCapacity {
			min := required - p.BufferCapacity
			if target < min {
				target = min
			}
		}
		emitted[i] = target
		bufferedFromFuture = required - target
	}

	if bufferedFromFuture != 0 {
		return nil, errors.Wrapf(ErrPbrSmoothingInfeasible, "pbr: %d bytes remain after frame 0", bufferedFromFuture)
	}

	return &Plan{EmittedSizes: emitted}, nil
}
