/*
NAME
  assembler.go

DESCRIPTION
  assembler.go implements the per-asset PBR ingestion algorithm: the PBR
  buffer append, pending-FIFO decode-delay countdown, sync-offset split into
  a new PbrFrame, common-header decode of the FIFO head, decoded-frame
  trace recording, and buffer/underflow bookkeeping.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package dtsxll

import "github.com/pkg/errors"

// SetBufferCapacity sets the active PBR buffer size, as advertised by the
// container's EXTSS_MD PBR smoothing-buffer-size field. It must be called
// before the first Ingest and is clamped to MaxBufferBytes.
func (a *Assembler) SetBufferCapacity(capacity int) {
	if capacity > MaxBufferBytes {
		capacity = MaxBufferBytes
	}
	a.bufCapacity = capacity
}

// Ingest processes one XLL-carrying asset's bytes: append to the PBR
// buffer, age the pending FIFO, split on a sync offset into a new
// PbrFrame, decode the FIFO head's common header, and record its
// source-position trace. srcOffset is data's absolute position in the
// original source file, used to build the trace the PBR planner and AU
// assembler later read back from.
//
// A pending head whose decode-delay has not yet reached zero is simply not
// ready to decode this tick (steady-state warm-up at stream start), not an
// error; ErrPbrUnderflow is raised only if a frame's delay falls below -1,
// meaning a frame stayed undecoded for more than one tick after it became
// due (a delay of -1 is tolerated, as a remainder frame re-queued with
// delay 0 reaches -1 on the tick that decodes it).
func (a *Assembler) Ingest(srcOffset int64, data []byte, syncWordPresent bool, syncOffsetBytes, initialDelay int) error {
	if len(a.buf)+len(data) > a.bufCapacity {
		return errors.Wrapf(ErrPbrBufferOverflow, "dtsxll: %d + %d exceeds capacity %d", len(a.buf), len(data), a.bufCapacity)
	}
	a.buf = append(a.buf, data...)
	if err := a.bufTrace.Add(srcOffset, len(data)); err != nil {
		return err
	}
	if len(a.buf) > a.maxUsed {
		a.maxUsed = len(a.buf)
	}

	for i := range a.pending {
		a.pending[i].DecodeDelay--
		if a.pending[i].DecodeDelay < -1 {
			return errors.Wrapf(ErrPbrUnderflow, "dtsxll: pending frame seq %d", a.pending[i].Seq)
		}
	}

	if syncWordPresent {
		if syncOffsetBytes > 0 && len(a.pending) > 0 {
			a.pending[len(a.pending)-1].RemainingBytes += syncOffsetBytes
		}
		a.pending = append(a.pending, PbrFrame{
			Seq:            a.nextSeq,
			DecodeDelay:    initialDelay,
			RemainingBytes: len(data) - syncOffsetBytes,
		})
		a.nextSeq++
	} else if len(a.pending) > 0 {
		a.pending[len(a.pending)-1].RemainingBytes += len(data)
	} else {
		a.pending = append(a.pending, PbrFrame{Seq: a.nextSeq, RemainingBytes: len(data)})
		a.nextSeq++
	}

	if len(a.pending) == 0 {
		return a.updateUsage()
	}
	head := a.pending[0]
	if head.DecodeDelay > 0 {
		return a.updateUsage()
	}

	if head.RemainingBytes > len(a.buf) {
		return a.updateUsage() // Not enough buffered bytes yet for this frame.
	}
	hdr, err := parseCommonHeader(a.buf[:head.RemainingBytes])
	if err != nil {
		return errors.Wrap(err, "dtsxll: decoding XLL common header")
	}

	decoded := PbrFrame{Seq: head.Seq}
	decoded.Trace.Collect(&a.bufTrace, hdr.FrameSizeBytes)
	a.buf = a.buf[hdr.FrameSizeBytes:]
	a.decoded = append(a.decoded, decoded)

	a.pending = a.pending[1:]
	if hdr.FrameSizeBytes < head.RemainingBytes {
		a.pending = append([]PbrFrame{{
			Seq:            a.nextSeq,
			DecodeDelay:    0,
			RemainingBytes: head.RemainingBytes - hdr.FrameSizeBytes,
		}}, a.pending...)
		a.nextSeq++
	}

	return a.updateUsage()
}

func (a *Assembler) updateUsage() error {
	if len(a.buf) > a.maxUsed {
		a.maxUsed = len(a.buf)
	}
	if len(a.buf) > a.bufCapacity {
		return errors.Wrapf(ErrPbrBufferOverflow, "dtsxll: usage %d exceeds capacity %d", len(a.buf), a.bufCapacity)
	}
	return nil
}

// DecodedFrames returns the FIFO of decoded-frame traces not yet consumed
// by the second-pass slicing output, and clears it.
func (a *Assembler) DecodedFrames() []PbrFrame {
	out := a.decoded
	a.decoded = nil
	return out
}

// Pending returns a read-only snapshot of the current pending FIFO, for
// tests and driver diagnostics.
func (a *Assembler) Pending() []PbrFrame {
	return append([]PbrFrame(nil), a.pending...)
}
