/*
NAME
  parser.go

DESCRIPTION
  parser.go implements Parse, decoding one MLP/TrueHD access unit from a
  byte buffer: minor sync, optional major sync, substream directory, each
  substream's blocks, terminator and substream parity/CRC, and the optional
  EXTRA_DATA trailer.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package mlp

import (
	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/bits"
)

// WarnFunc is called with a one-shot warning message when a non-fatal
// condition is observed for the first time in a stream.
type WarnFunc func(kind, msg string)

// Context tracks parser state across the access units of one MLP stream:
// whether the first AU has been seen (to enforce MissingMajorSync) and
// which warning kinds have already fired.
type Context struct {
	seenFirst bool
	warned    map[string]bool
	Warn      WarnFunc
}

// NewContext returns a fresh Context for one stream.
func NewContext(warn WarnFunc) *Context {
	return &Context{warned: make(map[string]bool), Warn: warn}
}

func (c *Context) warnOnce(kind, msg string) {
	if c.warned[kind] {
		return
	}
	c.warned[kind] = true
	if c.Warn != nil {
		c.Warn(kind, msg)
	}
}

// Parse decodes one access unit from buf, which must start at the minor
// sync and contain at least AccessUnitLengthWords*2 bytes.
func (c *Context) Parse(buf []byte) (*Frame, error) {
	r := bits.New(buf)

	if len(buf) < 4 {
		return nil, errors.Wrap(ErrRangeViolation, "mlp: buffer shorter than minor sync")
	}

	checkNibble, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	auLen, err := r.Read(12)
	if err != nil {
		return nil, err
	}
	inputTiming, err := r.Read(16)
	if err != nil {
		return nil, err
	}
	_ = checkNibble // Read but not checked.

	f := &Frame{
		AccessUnitLengthWords: int(auLen),
		InputTiming:           int(inputTiming),
	}
	if f.AccessUnitLengthWords < 2 {
		return nil, errors.Wrap(ErrRangeViolation, "mlp: access_unit_length below minimum of 2 words")
	}
	if f.AccessUnitLengthWords*2 > len(buf) {
		return nil, errors.Wrap(ErrRangeViolation, "mlp: access_unit_length exceeds buffer")
	}

	hasMajor, err := peekMajorSync(r)
	if err != nil {
		return nil, err
	}
	f.HasMajorSync = hasMajor

	if !c.seenFirst {
		c.seenFirst = true
		if !hasMajor {
			return nil, errors.Wrap(ErrComplianceViolation, "mlp: missing major sync on first AU")
		}
	}

	if hasMajor {
		ms, err := parseMajorSync(r)
		if err != nil {
			return nil, err
		}
		f.MajorSync = ms
	}

	substreamCount := 1
	if f.MajorSync != nil {
		substreamCount = f.MajorSync.SubstreamCount
		if substreamCount == 0 {
			substreamCount = 1
		}
	}

	dir, _, err := parseSubstreamDirectory(r, substreamCount)
	if err != nil {
		return nil, err
	}
	f.Substreams = dir

	auWordLimit := f.AccessUnitLengthWords
	prevEnd := 0
	for i, e := range dir {
		if e.RestartNonexistent == hasMajor {
			return nil, errors.Wrapf(ErrRangeViolation, "mlp: substream %d restart_nonexistent inconsistent with major sync presence", i)
		}
		if e.EndPtrWords <= prevEnd {
			return nil, errors.Wrapf(ErrRangeViolation, "mlp: substream %d end pointer non-monotone", i)
		}
		if e.EndPtrWords > auWordLimit {
			return nil, errors.Wrapf(ErrRangeViolation, "mlp: substream %d end pointer exceeds AU length", i)
		}
		prevEnd = e.EndPtrWords
	}

	segments := make([]SubstreamSegment, len(dir))
	var firstTerminatorZero int
	var firstTerminatorSeen bool
	for i, e := range dir {
		seg := &SubstreamSegment{
			FIRChanges: make(map[int]int),
			IIRChanges: make(map[int]int),
		}

		chans := make(map[int]*ChannelParams)
		var restart *RestartHeader

		for {
			if hasMajor && seg.Blocks == 0 {
				rh, err := parseRestartHeader(r, i)
				if err != nil {
					return nil, err
				}
				restart = rh
				seg.HasRestart = true
				seg.Restart = *rh
			}
			if restart == nil {
				return nil, errors.Wrapf(ErrRangeViolation, "mlp: substream %d has no restart header to decode blocks against", i)
			}

			bh, err := parseBlockHeader(r, restart, chans, seg)
			if err != nil {
				return nil, err
			}
			if err := parseBlockData(r, restart, bh, chans); err != nil {
				return nil, err
			}
			seg.Blocks++

			for _, cp := range chans {
				if cp.NumHuffLSBs > seg.MaxBitsSeen {
					seg.MaxBitsSeen = cp.NumHuffLSBs
				}
			}

			last, err := r.Bit()
			if err != nil {
				return nil, err
			}
			if last {
				break
			}
		}

		if err := r.PadToWordBoundary(); err != nil {
			return nil, err
		}

		zeroSamples, termPresent, err := parseTerminator(r)
		if err != nil {
			return nil, err
		}
		seg.TerminatorZeroSamples = zeroSamples
		if termPresent {
			if !firstTerminatorSeen {
				firstTerminatorSeen = true
				firstTerminatorZero = zeroSamples
			} else if zeroSamples != firstTerminatorZero {
				return nil, errors.Wrap(ErrRangeViolation, "mlp: terminator signaling differs between substreams")
			}
		}

		if e.CRCPresent {
			parity, err := r.Read(8)
			if err != nil {
				return nil, err
			}
			crcVal, err := r.Read(8)
			if err != nil {
				return nil, err
			}
			_ = parity
			_ = crcVal // Parity and CRC are read but not verified against the segment bytes.
		}

		segments[i] = *seg
	}
	f.Segments = segments

	if err := r.ByteAlign(); err != nil {
		return nil, err
	}
	if r.RemainingBits() >= 16 {
		if err := parseExtraData(r); err == nil {
			f.HasExtraData = true
		}
	}

	if err := c.checkChannelOverlap(f); err != nil {
		return nil, err
	}

	return f, nil
}

// checkChannelOverlap verifies that no two substreams claim overlapping
// coded-channel ranges.
func (c *Context) checkChannelOverlap(f *Frame) error {
	var used uint32
	for i, seg := range f.Segments {
		if !seg.HasRestart {
			continue
		}
		r := seg.Restart
		width := r.MaxChan - r.MinChan + 1
		mask := (uint32(1)<<uint(width) - 1) << uint(r.MinChan)
		if used&mask != 0 {
			return errors.Wrapf(ErrRangeViolation, "mlp: substream %d channel range overlaps a prior substream", i)
		}
		used |= mask
	}
	return nil
}

// parseExtraData decodes the optional EXTRA_DATA trailer.
func parseExtraData(r *bits.Reader) error {
	start := r.PositionBits()
	word, err := r.Read(16)
	if err != nil {
		return err
	}
	checkNibble := (word >> 12) & 0xF
	length := int(word & 0x0FFF)
	if xorNibble16(word) != 0xF {
		// Not a recognized EXTRA_DATA length word; treat as absent (the
		// 16 bits already read are not given back to r).
		return errors.New("mlp: no EXTRA_DATA trailer present")
	}
	_ = checkNibble

	dataBits := length*16 - 8
	if dataBits < 0 || r.RemainingBits() < dataBits+8 {
		return errors.New("mlp: EXTRA_DATA length exceeds remaining buffer")
	}
	if err := r.Skip(dataBits); err != nil {
		return err
	}
	if _, err := r.Read(8); err != nil { // EXTRA_DATA_parity, not independently re-verified.
		return err
	}
	_ = start
	return nil
}

func xorNibble16(v uint32) uint32 {
	var x uint32
	for i := 0; i < 4; i++ {
		x ^= (v >> uint(i*4)) & 0xF
	}
	return x
}

// Summarize derives the per-access-unit summary for f.
func Summarize(f *Frame) *Informations {
	info := &Informations{}
	if f.MajorSync == nil {
		return info
	}
	ms := f.MajorSync
	info.SamplingFrequency = ms.SampleRate
	if ms.EightChPresentation != 0 {
		info.NbChannels = popcount(uint32(ms.EightChAssignment))
	} else {
		info.NbChannels = popcount(uint32(ms.SixChAssignment))
	}
	info.PeakDataRateBps = ms.PeakDataRateBps
	info.AtmosPresent = ms.SixteenChPresentPresent && ms.SixteenCh != nil

	switch ms.TwoChPresentation {
	case 1:
		info.Mono = true
	case 2:
		info.Binaural = true
	case 3:
		info.MatrixSurround = true
	}

	for _, seg := range f.Segments {
		if seg.MaxBitsSeen > info.ObservedBitDepth {
			info.ObservedBitDepth = seg.MaxBitsSeen
		}
	}
	return info
}
