/*
NAME
  driver.go

DESCRIPTION
  driver.go implements the per-codec entry point: detecting the stream's
  codec family from its leading sync word, looping over
  access units until EOF, computing each AU's PTS, delivering it to the AU
  assembler, and honoring skip_first_N_frames.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package driver

import (
	"encoding/binary"

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

const (
	ac3SyncWord  = 0x0B77
	dtsCoreSync  = 0x7FFE8001
	dtsExtSSSync = 0x64582025
)

// Detect inspects the leading bytes of an elementary stream and reports
// its codec Kind. A stream that matches neither the AC-3 nor DTS magics is
// assumed to be MLP/TrueHD,
// which has no fixed leading magic (its minor sync is a check-nibble plus
// length field, not a constant pattern).
func Detect(buf []byte) (Kind, error) {
	if len(buf) < 4 {
		return 0, errors.Wrap(ErrUnknownCodec, "driver: buffer too short to detect codec")
	}
	if binary.BigEndian.Uint16(buf) == ac3SyncWord {
		return KindAC3, nil
	}
	switch binary.BigEndian.Uint32(buf) {
	case dtsCoreSync:
		return KindDtsCore, nil
	case dtsExtSSSync:
		return KindDtsExtSS, nil
	}
	return KindMLP, nil
}

// New returns a Context ready to process one elementary stream of the
// given kind.
func New(kind Kind, opts Options, log logging.Logger, w *script.Writer) *Context {
	c := &Context{Kind: kind, Opts: opts, Log: log, W: w, AU: au.New()}
	switch kind {
	case KindAC3, KindEAC3:
		c.ac3Ctx = ac3.NewContext(func(k, m string) { c.warnOnce(k, m) })
	case KindMLP:
		c.mlpCtx = mlp.NewContext(func(k, m string) { c.warnOnce(k, m) })
	case KindDtsCore:
		c.dtscoreCtx = dtscore.NewContext()
	case KindDtsExtSS:
		c.xll = dtsxll.New(opts.PbrBufferCapacity)
	}
	if opts.TwoPass {
		c.planner = pbr.NewPlanner(opts.PbrBufferCapacity, opts.Stats)
		c.reslicer = &pbr.Reslicer{}
	}
	return c
}

// Run processes buf (the whole elementary stream) from the start,
// delivering one PES record per non-skipped access unit to the Context's
// script.Writer. src is the SourceReader the AU assembler reads
// replacement bytes back from (buf wrapped as FileSource, normally).
//
// With Opts.TwoPass set, Run first calls planPass over the whole of buf to
// build the plan and reslicer from a pass-1 scan, then emits pass 2.
func (c *Context) Run(buf []byte, src au.SourceReader) error {
	c.src = src
	if c.Opts.TwoPass {
		if err := c.planPass(buf); err != nil {
			return errors.Wrap(err, "driver: PBR planning pass")
		}
	}
	pos := 0
	for pos < len(buf) {
		n, err := c.step(buf[pos:], int64(pos), src)
		if err != nil {
			return errors.Wrapf(err, "driver: frame at offset %d", pos)
		}
		if n == 0 {
			break
		}
		pos += n
	}
	return nil
}

// step parses one access unit starting at rest (rest == buf[srcOffset:])
// and returns its byte length, or 0 at a clean EOF boundary.
func (c *Context) step(rest []byte, srcOffset int64, src au.SourceReader) (int, error) {
	switch c.Kind {
	case KindAC3, KindEAC3:
		return c.stepAC3(rest, srcOffset, src)
	case KindMLP:
		return c.stepMLP(rest, srcOffset, src)
	case KindDtsCore:
		return c.stepDtsCore(rest, srcOffset, src)
	case KindDtsExtSS:
		return c.stepDtsExtSS(rest, srcOffset, src)
	default:
		return 0, errors.Wrap(ErrUnknownCodec, "driver: unset codec kind")
	}
}

// deliver finalizes the current AU with pts and writes it, unless this
// access unit is within the skip_first_N_frames window, in which case its
// cells are discarded without being written (the file position has
// already advanced by the caller).
func (c *Context) deliver(pts27MHz uint64) error {
	defer func() { c.frameIndex++ }()
	if c.frameIndex < c.Opts.SkipFirstNFrames {
		// Drop any committed cells for this AU without emitting a PES.
		*c.AU = *au.New()
		return nil
	}
	_, err := c.AU.Finalize(pts27MHz, c.src, c.W)
	return err
}
