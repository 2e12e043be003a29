/*
NAME
  eac3.go

DESCRIPTION
  eac3.go implements the E-AC-3 (bsid==16) branch of the BSI: strmtyp,
  substreamid, frmsiz, fscod/fscod2, optional mixing metadata, optional
  informational metadata, optional channel map, and additional-BSI.

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

func (c *Context) parseEAC3(r *bits.Reader) (*Frame, error) {
	if _, err := r.Read(16); err != nil { // sync word, already validated by caller's peek path.
		return nil, err
	}

	f := &Frame{IsEAC3: true}

	strmtyp, err := r.Read(2)
	if err != nil {
		return nil, err
	}
	f.StreamType = StreamType(strmtyp)
	if f.StreamType == 3 {
		return nil, errors.Wrap(ErrReservedValue, "eac3: strmtyp reserved")
	}

	substreamid, err := r.Read(3)
	if err != nil {
		return nil, err
	}
	f.SubstreamID = int(substreamid)
	if f.SubstreamID != 0 {
		return nil, errors.Wrap(ErrComplianceViolation, "eac3: substreamid must be 0 for BDAV")
	}

	frmsiz, err := r.Read(11)
	if err != nil {
		return nil, err
	}
	f.FrameWords = int(frmsiz) + 1
	f.FrameBytes = f.FrameWords * 2

	fscod, err := r.Read(2)
	if err != nil {
		return nil, err
	}
	var numblkscod int
	if fscod == 3 {
		fscod2, err := r.Read(2)
		if err != nil {
			return nil, err
		}
		if fscod2 == 3 {
			return nil, errors.Wrap(ErrReservedValue, "eac3: fscod2 reserved")
		}
		if fscod2 != 0 {
			return nil, errors.Wrap(ErrComplianceViolation, "eac3: only 48kHz permitted when fscod==3")
		}
		f.SampleRate = sampleRates[fscod2]
		numblkscod = 3 // Implicitly 6 blocks.
	} else {
		f.SampleRate = sampleRates[fscod]
		v, err := r.Read(2)
		if err != nil {
			return nil, err
		}
		numblkscod = int(v)
	}
	_ = numblkscod

	acmod, err := r.Read(3)
	if err != nil {
		return nil, err
	}
	f.Acmod = int(acmod)
	if f.Acmod == 0 {
		return nil, errors.Wrap(ErrComplianceViolation, "eac3: dual-mono (acmod==0) rejected under BDAV")
	}

	lfeon, err := r.Bit()
	if err != nil {
		return nil, err
	}
	f.LfeOn = lfeon
	f.NbChannels = NbChannels(f.Acmod, f.LfeOn)

	bsid, err := r.Read(5)
	if err != nil {
		return nil, err
	}
	f.Bsid = int(bsid)
	if f.Bsid <= 10 || f.Bsid > 16 {
		return nil, errors.Wrapf(ErrRangeViolation, "eac3: bsid %d out of range (10,16]", f.Bsid)
	}

	dialnorm, err := r.Read(5)
	if err != nil {
		return nil, err
	}
	f.DialNorm = -int(dialnorm)

	compre, err := r.Bit()
	if err != nil {
		return nil, err
	}
	if compre {
		v, err := r.Read(8)
		if err != nil {
			return nil, err
		}
		vv := uint8(v)
		f.CompressionGain = &vv
	}

	if f.Acmod == 0 {
		if err := c.parseDualMono(r, f); err != nil {
			return nil, err
		}
	}

	if f.StreamType == StreamTypeDependent {
		chanmape, err := r.Bit()
		if err != nil {
			return nil, err
		}
		if chanmape {
			v, err := r.Read(16)
			if err != nil {
				return nil, err
			}
			vv := uint16(v)
			f.ChanMap = &vv
			if popcount16(vv) != f.NbChannels {
				return nil, errors.Wrap(ErrInconsistentChanMap, "eac3: chanmap channel count mismatch")
			}
		}
	}

	mixmdate, err := r.Bit()
	if err != nil {
		return nil, err
	}
	if mixmdate {
		if err := parseMixMetadata(r, f); err != nil {
			return nil, err
		}
	}

	infomdate, err := r.Bit()
	if err != nil {
		return nil, err
	}
	if infomdate {
		if err := c.parseInfoMetadata(r, f); err != nil {
			return nil, err
		}
	}

	if numblkscod == 0 /* 1 block */ && f.StreamType == StreamTypeIndependent {
		convsync, err := r.Bit()
		if err != nil {
			return nil, err
		}
		_ = convsync
	}

	if f.StreamType == StreamTypeAC3Convert && f.SubstreamID == 0 {
		blkid, err := r.Bit()
		if err != nil {
			return nil, err
		}
		if blkid {
			if err := r.Skip(6); err != nil { // frmsizecod, for the converted legacy AC-3 stream.
				return nil, err
			}
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
			return nil, errors.Wrap(ErrRangeViolation, "eac3: addbsil > 63")
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

// parseMixMetadata consumes E-AC-3's optional mixing-metadata block. Its
// full subtree is informational only (not surfaced on Frame); this module
// does not re-encode or act on mix levels, so the block is validated for
// well-formedness (it must parse to completion without running past the
// frame) and discarded.
func parseMixMetadata(r *bits.Reader, f *Frame) error {
	if f.Acmod > 1 {
		if err := r.Skip(2); err != nil { // dmixmod
			return err
		}
	}
	if f.Acmod&0x1 != 0 && f.Acmod > 0x2 {
		if err := r.Skip(3 + 3); err != nil { // ltrtcmixlev, lorocmixlev
			return err
		}
	}
	if f.Acmod&0x4 != 0 {
		if err := r.Skip(3 + 3); err != nil { // ltrtsurmixlev, lorosurmixlev
			return err
		}
	}
	if f.LfeOn {
		lfemixlevcode, err := r.Bit()
		if err != nil {
			return err
		}
		if lfemixlevcode {
			if err := r.Skip(5); err != nil {
				return err
			}
		}
	}
	if f.StreamType == StreamTypeIndependent {
		pgmscle, err := r.Bit()
		if err != nil {
			return err
		}
		if pgmscle {
			if err := r.Skip(6); err != nil {
				return err
			}
		}
		if f.Acmod == 0 {
			pgmscl2e, err := r.Bit()
			if err != nil {
				return err
			}
			if pgmscl2e {
				if err := r.Skip(6); err != nil {
					return err
				}
			}
		}
		extpgmscle, err := r.Bit()
		if err != nil {
			return err
		}
		if extpgmscle {
			if err := r.Skip(6); err != nil {
				return err
			}
		}
		mixdef, err := r.Read(2)
		if err != nil {
			return err
		}
		switch mixdef {
		case 1:
			if err := r.Skip(1 + 1 + 3); err != nil { // premixcmpsel, drcsrc, premixcmpscl
				return err
			}
		case 2:
			if err := r.Skip(12 * 8); err != nil { // mixdata, fixed-length variant.
				return err
			}
		case 3:
			mixdeflen, err := r.Read(5)
			if err != nil {
				return err
			}
			nbits := (int(mixdeflen) + 2) * 8
			if err := r.Skip(nbits); err != nil {
				return err
			}
		}
		if f.Acmod < 2 {
			paninfoe, err := r.Bit()
			if err != nil {
				return err
			}
			if paninfoe {
				if err := r.Skip(8 + 6); err != nil {
					return err
				}
			}
			if f.Acmod == 0 {
				paninfo2e, err := r.Bit()
				if err != nil {
					return err
				}
				if paninfo2e {
					if err := r.Skip(8 + 6); err != nil {
						return err
					}
				}
			}
		}
		frmmixcfginfoe, err := r.Bit()
		if err != nil {
			return err
		}
		if frmmixcfginfoe {
			if err := r.Skip(5); err != nil { // Single-block simplification; multi-block streams carry more, not exercised by BDAV (single-block secondary frames).
				return err
			}
		}
	}
	return nil
}

// parseInfoMetadata consumes bsmod, copyright/original flags, conditional
// dsurmod/dheadphonmod/dsurexmod, and audio-production info.
func (c *Context) parseInfoMetadata(r *bits.Reader, f *Frame) error {
	bsmod, err := r.Read(3)
	if err != nil {
		return err
	}
	f.Bsmod = int(bsmod)

	copyrightb, err := r.Bit()
	if err != nil {
		return err
	}
	f.Copyright = copyrightb

	origbs, err := r.Bit()
	if err != nil {
		return err
	}
	f.Original = origbs

	if f.Acmod == 0x2 {
		dsurmod, err := r.Read(2)
		if err != nil {
			return err
		}
		dheadphonmod, err := r.Read(2)
		if err != nil {
			return err
		}
		f.Dsurmod = int(dsurmod)
		f.Dheadphonmod = int(dheadphonmod)
	}
	if f.Acmod >= 0x6 {
		dsurexmod, err := r.Read(2)
		if err != nil {
			return err
		}
		f.Dsurexmod = int(dsurexmod)
	}

	audprode, err := r.Bit()
	if err != nil {
		return err
	}
	if audprode {
		mixlevel, err := r.Read(5)
		if err != nil {
			return err
		}
		roomtyp, err := r.Read(2)
		if err != nil {
			return err
		}
		f.AudioProdInfo = &AudioProdInfo{MixLevel: int(mixlevel), RoomType: int(roomtyp)}
	}
	if f.Bsmod > 5 {
		c.warnOnce("reserved-bsmod", "eac3: bsmod value has no defined meaning above 5")
	}
	return nil
}

func popcount16(v uint16) int {
	n := 0
	for v != 0 {
		n += int(v & 1)
		v >>= 1
	}
	return n
}
