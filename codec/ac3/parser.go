/*
NAME
  parser.go

DESCRIPTION
  parser.go implements Parse, decoding one AC-3 or E-AC-3 access unit's
  sync-info, BSI and additional-BSI from a byte buffer, and Context, which
  tracks across-frame invariants and one-shot warnings for a stream.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package ac3

import (
	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/bits"
)

// WarnFunc is called with a one-shot warning message when a non-fatal
// condition is observed for the first time in a stream.
type WarnFunc func(kind, msg string)

// Context tracks parser state across the frames of one AC-3/E-AC-3 stream:
// the first successfully parsed frame (for the across-frame compliance
// check) and which warning kinds have already fired.
type Context struct {
	first *Frame
	warned map[string]bool
	Warn   WarnFunc
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

// Parse decodes one access unit from buf, which must start at the sync
// word and contain at least the full frame.
func (c *Context) Parse(buf []byte) (*Frame, error) {
	r := bits.New(buf)

	sync, err := r.Read(16)
	if err != nil {
		return nil, errors.Wrap(err, "ac3: reading sync word")
	}
	if sync != syncWord {
		return nil, errors.Wrapf(ErrBadSyncWord, "got %#x", sync)
	}

	if _, err := r.Read(16); err != nil { // crc1, stored but not verified here.
		return nil, errors.Wrap(err, "ac3: reading crc1")
	}

	fscodBits, err := r.Read(2)
	if err != nil {
		return nil, err
	}

	f := &Frame{}

	// Peek ahead to bsid without committing, since AC-3 and E-AC-3 diverge
	// in everything after the sync word: in AC-3, crc1(16) and then
	// fscod(2)+frmsizecod(6) precede bsid; in E-AC-3 there is no crc1, and
	// strmtyp(2)+substreamid(3)+frmsiz(11) follow the sync word directly,
	// then fscod/numblkscod(4)+acmod(3)+lfeon(1) before bsid. Both layouts
	// put bsid at the same bit offset.
	//
	// The two formats are told apart the way real demuxers do it: decode
	// as classic AC-3 first (fscod/frmsizecod/bsid at fixed offsets) and
	// check bsid; bsid==16 means the bits we just read as crc1 and
	// fscod/frmsizecod were actually E-AC-3 fields, so start over from the
	// sync word and redecode as E-AC-3.
	savedFscod := fscodBits
	frmsizecodBits, err := r.Read(6)
	if err != nil {
		return nil, err
	}
	bsidPeek, err := r.Peek(5)
	if err != nil {
		return nil, err
	}
	if bsidPeek == 16 {
		return c.parseEAC3(bits.New(buf))
	}

	return c.parseAC3(r, int(savedFscod), int(frmsizecodBits), f)
}

func (c *Context) parseAC3(r *bits.Reader, fscod, frmsizecod int, f *Frame) (*Frame, error) {
	if fscod == 3 {
		return nil, errors.Wrapf(ErrReservedValue, "ac3: fscod reserved")
	}
	words, kbps, ok := frameSizeWords(frmsizecod, fscod)
	if !ok {
		return nil, errors.Wrapf(ErrReservedValue, "ac3: frmsizecod %d reserved", frmsizecod)
	}
	f.SampleRate = sampleRates[fscod]
	f.FrameWords = words
	f.FrameBytes = words * 2
	f.BitrateKbps = kbps

	bsid, err := r.Read(5)
	if err != nil {
		return nil, err
	}
	f.Bsid = int(bsid)

	bsmod, err := r.Read(3)
	if err != nil {
		return nil, err
	}

	acmod, err := r.Read(3)
	if err != nil {
		return nil, err
	}
	f.Acmod = int(acmod)

	if f.Acmod&0x1 != 0 && f.Acmod != 0x1 {
		if _, err := r.Read(2); err != nil { // cmixlev
			return nil, err
		}
	}
	if f.Acmod&0x4 != 0 {
		if _, err := r.Read(2); err != nil { // surmixlev
			return nil, err
		}
	}
	if f.Acmod == 0x2 {
		if _, err := r.Read(2); err != nil { // dsurmod
			return nil, err
		}
	}

	lfeon, err := r.Bit()
	if err != nil {
		return nil, err
	}
	f.LfeOn = lfeon
	f.NbChannels = NbChannels(f.Acmod, f.LfeOn)

	dialnorm, err := r.Read(5)
	if err != nil {
		return nil, err
	}
	f.DialNorm = -int(dialnorm)

	compe, err := r.Bit()
	if err != nil {
		return nil, err
	}
	if compe {
		v, err := r.Read(8)
		if err != nil {
			return nil, err
		}
		vv := uint8(v)
		f.CompressionGain = &vv
	}

	langcode, err := r.Bit()
	if err != nil {
		return nil, err
	}
	if langcode {
		v, err := r.Read(8)
		if err != nil {
			return nil, err
		}
		vv := uint8(v)
		f.LangCode = &vv
	}

	audprode, err := r.Bit()
	if err != nil {
		return nil, err
	}
	if audprode {
		mixlevel, err := r.Read(5)
		if err != nil {
			return nil, err
		}
		roomtyp, err := r.Read(2)
		if err != nil {
			return nil, err
		}
		f.AudioProdInfo = &AudioProdInfo{MixLevel: int(mixlevel), RoomType: int(roomtyp)}
	}

	if f.Acmod == 0 {
		if err := c.parseDualMono(r, f); err != nil {
			return nil, err
		}
	}

	copyrightb, err := r.Bit()
	if err != nil {
		return nil, err
	}
	f.Copyright = copyrightb

	origbs, err := r.Bit()
	if err != nil {
		return nil, err
	}
	f.Original = origbs

	if f.Bsid == 6 {
		// Alternate BSI: dmixmod, Lt/Rt and Lo/Ro mix levels, dsurexmod,
		// dheadphonmod, A/D converter type, else legacy timecodes.
		xbsi1e, err := r.Bit()
		if err != nil {
			return nil, err
		}
		if xbsi1e {
			if err := r.Skip(2 + 3 + 3 + 3 + 3); err != nil { // dmixmod, ltrtcmixlev, ltrtsurmixlev, lorocmixlev, lorosurmixlev
				return nil, err
			}
		}
		xbsi2e, err := r.Bit()
		if err != nil {
			return nil, err
		}
		if xbsi2e {
			dsurexmod, err := r.Read(2)
			if err != nil {
				return nil, err
			}
			dheadphonmod, err := r.Read(2)
			if err != nil {
				return nil, err
			}
			f.Dsurexmod = int(dsurexmod)
			f.Dheadphonmod = int(dheadphonmod)
			if err := r.Skip(1); err != nil { // adconvtyp
				return nil, err
			}
			if err := r.Skip(8); err != nil { // xbsi2, reserved/future use byte group per source text
				return nil, err
			}
		}
	} else {
		if err := r.Skip(1); err != nil { // timecod1e
			return nil, err
		}
	}

	addbsie, err := r.Bit()
	if err != nil {
		return nil, err
	}
	if addbsie {
		addbsil, err := r.Read(6)
		if err != nil {
			return nil, err
		}
		if int(addbsil) > 63 {
			return nil, errors.Wrap(ErrRangeViolation, "ac3: addbsil > 63")
		}
		nbits := (int(addbsil) + 1) * 8
		atmos, err := parseAddBSI(r, nbits)
		if err != nil {
			return nil, err
		}
		f.Atmos = atmos
	}

	if err := r.ByteAlign(); err != nil {
		return nil, err
	}
	f.HeaderBytes = r.BytePos()

	return c.finishFrame(f)
}

func (c *Context) parseDualMono(r *bits.Reader, f *Frame) error {
	dualmono2, err := r.Read(5)
	if err != nil {
		return err
	}
	d := &DualMonoVariant{DialNorm2: -int(dualmono2)}

	compr2e, err := r.Bit()
	if err != nil {
		return err
	}
	if compr2e {
		v, err := r.Read(8)
		if err != nil {
			return err
		}
		vv := uint8(v)
		d.CompressionGain2 = &vv
	}
	langcod2e, err := r.Bit()
	if err != nil {
		return err
	}
	if langcod2e {
		v, err := r.Read(8)
		if err != nil {
			return err
		}
		vv := uint8(v)
		d.LangCode2 = &vv
	}
	audprodi2e, err := r.Bit()
	if err != nil {
		return err
	}
	if audprodi2e {
		mixlevel2, err := r.Read(5)
		if err != nil {
			return err
		}
		roomtyp2, err := r.Read(2)
		if err != nil {
			return err
		}
		d.AudioProdInfo2 = &AudioProdInfo{MixLevel: int(mixlevel2), RoomType: int(roomtyp2)}
	}
	f.DualMono = d
	return nil
}

// parseAddBSI recognizes the single defined additional-BSI variant: EC3
// Extension Type A (Atmos), identified by its first byte equal to 0x01,
// whose second byte is the Atmos object complexity index. Any other
// pattern is consumed (skipped) and ignored, per the open-ended nature of
// addbsi.
func parseAddBSI(r *bits.Reader, nbits int) (*EC3TypeA, error) {
	if nbits < 16 {
		if err := r.Skip(nbits); err != nil {
			return nil, err
		}
		return nil, nil
	}
	tag, err := r.Read(8)
	if err != nil {
		return nil, err
	}
	val, err := r.Read(8)
	if err != nil {
		return nil, err
	}
	if err := r.Skip(nbits - 16); err != nil {
		return nil, err
	}
	if tag != 0x01 {
		return nil, nil
	}
	return &EC3TypeA{ComplexityIndex: uint8(val)}, nil
}

// finishFrame applies the across-frame NonCompliantChange check and
// records this frame as the reference for subsequent ones if it's first.
func (c *Context) finishFrame(f *Frame) (*Frame, error) {
	if c.first == nil {
		c.first = f
		return f, nil
	}
	p := c.first
	switch {
	case f.Acmod != p.Acmod,
		f.SampleRate != p.SampleRate,
		f.BitrateKbps != p.BitrateKbps,
		f.LfeOn != p.LfeOn,
		f.StreamType != p.StreamType,
		f.Bsid != p.Bsid:
		return nil, errors.Wrap(ErrNonCompliantChange, "ac3: stream property changed across frames")
	}
	return f, nil
}
