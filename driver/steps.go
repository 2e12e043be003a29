/*
NAME
  steps.go

DESCRIPTION
  steps.go implements the per-codec access-unit step functions that
  driver.go's loop dispatches to: parse one AU, open/commit its cells on
  the AU assembler, compute its PTS from the parsed sample count, and
  deliver it. The DTS step additionally covers
  the hybrid Core+ExtSS framing a BDAV primary stream uses (a Core sync
  frame immediately followed by its ExtSS peer, both folded into the same
  access unit and PES record) and, in two-pass mode, drives the PBR
  planner/reslicer on pass 2.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package driver

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/au"
	"github.com/reelforge/bdamux/codec/dtscore"
	"github.com/reelforge/bdamux/codec/dtsextss"
	"github.com/reelforge/bdamux/codec/dtsxll"
)

const pts27MHzHz = 27000000

// ptsFromSamples converts a cumulative sample count at rateHz into a 27MHz
// PTS tick count.
func ptsFromSamples(samples int64, rateHz int) uint64 {
	if rateHz == 0 {
		return 0
	}
	return uint64(samples) * pts27MHzHz / uint64(rateHz)
}

// mlpSamplesPerAU is TrueHD's fixed per-access-unit sample count, keyed by
// sample-rate family: every AU spans the same playback duration regardless
// of its byte size (which varies because TrueHD is VBR). The formal
// definition is access_unit_length * 16 / k; algebraically that reduces to
// this fixed-per-rate constant, since k is exactly
// 16*access_unit_length/samplesPerAU for a compliant stream, and the
// constant is the only quantity a PTS computation actually needs.
func mlpSamplesPerAU(sampleRateHz int) int {
	switch sampleRateHz {
	case 48000, 44100:
		return 40
	case 96000, 88200:
		return 80
	case 192000, 176400:
		return 160
	default:
		return 40
	}
}

// stepAC3 parses one AC-3/E-AC-3 access unit, delivers it as a single Core
// cell, and advances PTS by 1536 samples at the frame's sample rate.
func (c *Context) stepAC3(rest []byte, srcOffset int64, src au.SourceReader) (int, error) {
	f, err := c.ac3Ctx.Parse(rest)
	if err != nil {
		return 0, err
	}

	if err := c.AU.BeginCell(au.Core, c.Opts.SrcFileIndex); err != nil {
		return 0, err
	}
	if err := c.AU.SetSourceRange(srcOffset, f.FrameBytes); err != nil {
		return 0, err
	}
	if err := c.AU.CommitCell(); err != nil {
		return 0, err
	}

	c.sampleRateHz = f.SampleRate
	pts := ptsFromSamples(c.totalSamples, c.sampleRateHz)
	c.totalSamples += 1536

	if err := c.deliver(pts); err != nil {
		return 0, err
	}
	return f.FrameBytes, nil
}

// stepMLP parses one MLP/TrueHD access unit and delivers it as a single
// Core cell spanning the whole AU.
func (c *Context) stepMLP(rest []byte, srcOffset int64, src au.SourceReader) (int, error) {
	f, err := c.mlpCtx.Parse(rest)
	if err != nil {
		return 0, err
	}
	lengthBytes := f.AccessUnitLengthWords * 2

	if f.MajorSync != nil {
		c.mlpSampleRateHz = f.MajorSync.SampleRate
	}

	if err := c.AU.BeginCell(au.Core, c.Opts.SrcFileIndex); err != nil {
		return 0, err
	}
	if err := c.AU.SetSourceRange(srcOffset, lengthBytes); err != nil {
		return 0, err
	}
	if err := c.AU.CommitCell(); err != nil {
		return 0, err
	}

	pts := ptsFromSamples(c.totalSamples, c.mlpSampleRateHz)
	c.totalSamples += int64(mlpSamplesPerAU(c.mlpSampleRateHz))

	if err := c.deliver(pts); err != nil {
		return 0, err
	}
	return lengthBytes, nil
}

// stepDtsCore and stepDtsExtSS both dispatch to stepDts: a BDAV DTS
// elementary stream interleaves an optional Core sync frame and its ExtSS
// peer back to back within the same access unit — a standalone
// retro-compatible Core frame accompanies the ExtSS frame carrying XLL.
// Detecting the codec family from the leading sync word (driver.Detect)
// only tells us which sync word comes FIRST; stepDts re-inspects the sync
// word at each internal position so both pure-Core, pure-ExtSS and hybrid
// streams are handled by one path.
func (c *Context) stepDtsCore(rest []byte, srcOffset int64, src au.SourceReader) (int, error) {
	return c.stepDts(rest, srcOffset, src)
}

func (c *Context) stepDtsExtSS(rest []byte, srcOffset int64, src au.SourceReader) (int, error) {
	return c.stepDts(rest, srcOffset, src)
}

func (c *Context) stepDts(rest []byte, srcOffset int64, src au.SourceReader) (int, error) {
	pos := 0
	sawCore := false
	var corePTS uint64

	if sync4(rest) == dtsCoreSync {
		if c.dtscoreCtx == nil {
			c.dtscoreCtx = dtscore.NewContext()
		}
		f, err := c.dtscoreCtx.Parse(rest)
		if err != nil {
			return 0, err
		}
		if err := c.AU.BeginCell(au.Core, c.Opts.SrcFileIndex); err != nil {
			return 0, err
		}
		if err := c.AU.SetSourceRange(srcOffset, f.FrameBytes); err != nil {
			return 0, err
		}
		if err := c.AU.CommitCell(); err != nil {
			return 0, err
		}
		corePTS = ptsFromSamples(c.coreSamples, 48000)
		c.coreSamples += int64(f.NumBlocks * f.SamplesPerBlock)
		sawCore = true
		pos += f.FrameBytes
	}

	if pos+4 > len(rest) || sync4(rest[pos:]) != dtsExtSSSync {
		if !sawCore {
			return 0, errors.Wrap(ErrUnknownCodec, "driver: sync word matches neither DTS Core nor ExtSS")
		}
		// Core-only access unit (a Core frame with no ExtSS peer after
		// it): deliver on the Core's own PTS clock.
		if err := c.deliver(corePTS); err != nil {
			return 0, err
		}
		return pos, nil
	}

	extStart := pos
	extBuf := rest[extStart:]
	f, err := dtsextss.Parse(extBuf)
	if err != nil {
		return 0, err
	}

	if c.xll == nil {
		c.xll = dtsxll.New(c.Opts.PbrBufferCapacity)
	}

	var asset *dtsextss.AssetDescriptor
	if len(f.Assets) > 0 {
		asset = &f.Assets[0]
	}

	if c.Opts.TwoPass && asset != nil && asset.XLL != nil {
		n, err := c.deliverRewrittenExtSS(f, asset)
		if err != nil {
			return 0, err
		}
		return pos + n, nil
	}

	if err := c.AU.BeginCell(au.ExtSSHdr, c.Opts.SrcFileIndex); err != nil {
		return 0, err
	}
	if err := c.AU.SetSourceRange(srcOffset+int64(extStart), f.HeaderSizeBytes); err != nil {
		return 0, err
	}
	if err := c.AU.CommitCell(); err != nil {
		return 0, err
	}

	assetLen := f.FrameSizeBytes - f.HeaderSizeBytes
	if asset != nil && asset.XLL != nil && assetLen > 0 {
		assetAbsOffset := srcOffset + int64(extStart) + int64(f.HeaderSizeBytes)
		if err := c.AU.BeginCell(au.ExtSSAsset, c.Opts.SrcFileIndex); err != nil {
			return 0, err
		}
		if err := c.AU.SetSourceRange(assetAbsOffset, assetLen); err != nil {
			return 0, err
		}
		if err := c.AU.CommitCell(); err != nil {
			return 0, err
		}
		if err := c.xll.Ingest(assetAbsOffset, extBuf[f.HeaderSizeBytes:f.FrameSizeBytes],
			asset.XLL.SyncWordPresent, asset.XLL.SyncOffsetBytes, asset.XLL.InitialDecodingDelayFrames); err != nil {
			return 0, err
		}
	} else if assetLen > 0 {
		if err := c.AU.BeginCell(au.Core, c.Opts.SrcFileIndex); err != nil {
			return 0, err
		}
		if err := c.AU.SetSourceRange(srcOffset+int64(extStart)+int64(f.HeaderSizeBytes), assetLen); err != nil {
			return 0, err
		}
		if err := c.AU.CommitCell(); err != nil {
			return 0, err
		}
	}

	// The Core and ExtSS peers, when both present, share one access unit
	// and one PES record; the ExtSS frame-duration clock governs its PTS
	// since it is the higher-resolution of the two.
	pts := ptsFromSamples(c.extSamples, f.ReferenceClockHz)
	c.extSamples += int64(f.FrameDurationSamples)
	if err := c.deliver(pts); err != nil {
		return 0, err
	}

	return pos + f.FrameSizeBytes, nil
}

// sync4 reads a 4-byte big-endian sync word from the front of buf, or 0 if
// buf is too short (which will never match either DTS sync constant).
func sync4(buf []byte) uint32 {
	if len(buf) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(buf)
}
