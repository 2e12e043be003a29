/*
NAME
  pbrpass.go

DESCRIPTION
  pbrpass.go implements the two-pass PBR pipeline's orchestration from the
  driver's side: a pass-1 pre-scan that records per-AU XLL sizes and lets
  the XLL assembler decode pass-1 frames so the reslicer has something to
  slice from, and pass 2's per-AU rewrite of the ExtSS header and XLL asset
  cell into their planned, resliced form.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package driver

import (
	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/au"
	"github.com/reelforge/bdamux/codec/dtscore"
	"github.com/reelforge/bdamux/codec/dtsextss"
	"github.com/reelforge/bdamux/codec/dtsxll"
	"github.com/reelforge/bdamux/pbr"
)

// planPass runs a read-only first pass over buf, recording each ExtSS AU's
// original XLL payload size with the planner and feeding the bytes through
// a scratch XLL assembler so its decoded-frame FIFO can be handed to the
// reslicer. No script is written and no AU cells are built.
func (c *Context) planPass(buf []byte) error {
	scratchCore := dtscore.NewContext()
	scratchXLL := dtsxll.New(c.Opts.PbrBufferCapacity)

	pos := 0
	for pos < len(buf) {
		rest := buf[pos:]
		n := 0

		if sync4(rest) == dtsCoreSync {
			f, err := scratchCore.Parse(rest)
			if err != nil {
				return errors.Wrapf(err, "driver: pass 1 Core frame at offset %d", pos)
			}
			n += f.FrameBytes
		}

		if n+4 > len(rest) || sync4(rest[n:]) != dtsExtSSSync {
			if n == 0 {
				return errors.Wrapf(ErrUnknownCodec, "driver: pass 1 sync word at offset %d", pos)
			}
			pos += n
			continue
		}

		extBuf := rest[n:]
		f, err := dtsextss.Parse(extBuf)
		if err != nil {
			return errors.Wrapf(err, "driver: pass 1 ExtSS frame at offset %d", pos+n)
		}

		assetLen := f.FrameSizeBytes - f.HeaderSizeBytes
		if len(f.Assets) > 0 && f.Assets[0].XLL != nil && assetLen > 0 {
			a := f.Assets[0]
			c.planner.RecordFrame(assetLen)
			assetAbsOffset := int64(pos + n + f.HeaderSizeBytes)
			if err := scratchXLL.Ingest(assetAbsOffset, extBuf[f.HeaderSizeBytes:f.FrameSizeBytes],
				a.XLL.SyncWordPresent, a.XLL.SyncOffsetBytes, a.XLL.InitialDecodingDelayFrames); err != nil {
				return errors.Wrapf(err, "driver: pass 1 XLL ingest at offset %d", assetAbsOffset)
			}
		}

		pos += n + f.FrameSizeBytes
	}

	plan, err := c.planner.Plan()
	if err != nil {
		return err
	}
	c.plan = plan
	c.reslicer = &pbr.Reslicer{}
	c.reslicer.Feed(scratchXLL.DecodedFrames()...)
	c.planFrameIdx = 0
	return nil
}

// deliverRewrittenExtSS implements pass 2's handling of one ExtSS+XLL
// access unit: slice the planned size out of the reslicer's decoded-frame
// FIFO, rewrite the ExtSS header to advertise the new slicing, and emit
// synthesized ExtSSHdr/ExtSSAsset cells whose bytes are produced at
// Finalize time from the rewritten header and the XLL trace. It returns
// the ORIGINAL (pre-rewrite) frame length, since pass 2 still walks the
// unmodified source file.
func (c *Context) deliverRewrittenExtSS(f *dtsextss.Frame, asset *dtsextss.AssetDescriptor) (int, error) {
	if c.planFrameIdx >= len(c.plan.EmittedSizes) {
		return 0, errors.New("driver: pass 2 has more ExtSS+XLL access units than pass 1 observed")
	}
	target := c.plan.EmittedSizes[c.planFrameIdx]
	c.planFrameIdx++

	trace, result, err := c.reslicer.Next(target)
	if err != nil {
		return 0, errors.Wrap(err, "driver: reslicing ExtSS asset")
	}

	rewritten := *f
	rewrittenAssets := append([]dtsextss.AssetDescriptor(nil), f.Assets...)
	rewrittenXLL := *asset.XLL
	rewrittenXLL.SyncWordPresent = result.SyncPresent
	rewrittenXLL.SyncOffsetBytes = result.SyncOffsetBytes
	rewrittenXLL.InitialDecodingDelayFrames = result.InitialDelay
	rewrittenAssets[0].XLL = &rewrittenXLL
	rewritten.Assets = rewrittenAssets
	rewritten.FrameSizeBytes = f.HeaderSizeBytes + result.Size

	headerBytes, err := dtsextss.Rewrite(&rewritten)
	if err != nil {
		return 0, errors.Wrap(err, "driver: rewriting ExtSS header")
	}

	if err := c.AU.BeginCell(au.ExtSSHdr, c.Opts.SrcFileIndex); err != nil {
		return 0, err
	}
	if err := c.AU.ReplaceWith(au.Literal{Bytes: headerBytes}, len(headerBytes)); err != nil {
		return 0, err
	}
	if err := c.AU.CommitCell(); err != nil {
		return 0, err
	}

	if err := c.AU.BeginCell(au.ExtSSAsset, c.Opts.SrcFileIndex); err != nil {
		return 0, err
	}
	if err := c.AU.ReplaceWith(au.Trace{FileIdx: c.Opts.SrcFileIndex, Ranges: toAuRanges(trace)}, result.Size); err != nil {
		return 0, err
	}
	if err := c.AU.CommitCell(); err != nil {
		return 0, err
	}

	pts := ptsFromSamples(c.extSamples, f.ReferenceClockHz)
	c.extSamples += int64(f.FrameDurationSamples)
	if err := c.deliver(pts); err != nil {
		return 0, err
	}

	return f.FrameSizeBytes, nil
}

// toAuRanges converts a dtsxll.Trace's ranges to au.SourceRange, the
// narrower type the assembler's Replacement machinery (au.Trace) expects.
func toAuRanges(t dtsxll.Trace) []au.SourceRange {
	out := make([]au.SourceRange, len(t.Ranges))
	for i, r := range t.Ranges {
		out[i] = au.SourceRange{Offset: r.Offset, Length: r.Length}
	}
	return out
}
