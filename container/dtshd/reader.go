/*
NAME
  reader.go

DESCRIPTION
  reader.go walks a DTS-HD container's chunk list: 8-byte ASCII magic plus
  8-byte big-endian length, DWORD-aligned. Recognized chunks are decoded
  into File; unknown chunks are skipped by their declared length.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package dtshd

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/bits"
)

const chunkHeaderLen = 16 // 8-byte magic + 8-byte length.

// Read walks buf's chunk list from the start and returns the decoded File.
// It stops and returns the accumulated result at the STRMDATA chunk,
// recording that chunk's payload offset/length for the caller to read the
// elementary stream from directly; chunks after STRMDATA (if any) are not
// visited by this call.
func Read(buf []byte) (*File, error) {
	f := &File{}
	pos := 0
	seen := map[string]bool{}

	for pos+chunkHeaderLen <= len(buf) {
		magic := string(buf[pos : pos+8])
		length := binary.BigEndian.Uint64(buf[pos+8 : pos+16])
		payloadStart := pos + chunkHeaderLen
		payloadEnd := payloadStart + int(length)
		if payloadEnd > len(buf) {
			return nil, errors.Wrapf(ErrTruncated, "dtshd: chunk %q declares length %d at offset %d", magic, length, pos)
		}
		payload := buf[payloadStart:payloadEnd]

		if magic == MagicSTRMDATA {
			f.StreamDataOffset = int64(payloadStart)
			f.StreamDataLength = int64(length)
			return f, nil
		}

		if isRecognized(magic) {
			if seen[magic] {
				return nil, errors.Wrapf(ErrDuplicateChunk, "dtshd: chunk %q repeated at offset %d", magic, pos)
			}
			seen[magic] = true
			if err := decodeChunk(f, magic, payload); err != nil {
				return nil, errors.Wrapf(err, "dtshd: decoding chunk %q", magic)
			}
		}

		pos = dwordAlign(payloadEnd)
	}

	return f, nil
}

func dwordAlign(n int) int {
	if n%4 != 0 {
		n += 4 - n%4
	}
	return n
}

func isRecognized(magic string) bool {
	switch magic {
	case MagicDTSHDHDR, MagicFILEINFO, MagicCORESSMD, MagicEXTSSMD,
		MagicAUPRHDR, MagicAUPRINFO, MagicNAVITBL, MagicTIMECODE,
		MagicBUILDVER, MagicBLACKOUT, MagicBRANCHPT:
		return true
	default:
		return false
	}
}

func decodeChunk(f *File, magic string, payload []byte) error {
	switch magic {
	case MagicDTSHDHDR:
		h, err := decodeHeader(payload)
		if err != nil {
			return err
		}
		f.Header = h
	case MagicEXTSSMD:
		m, err := decodeExtSSMetadata(payload)
		if err != nil {
			return err
		}
		f.ExtSSMetadata = m
	case MagicBUILDVER:
		v, err := decodeBuildVersion(payload)
		if err != nil {
			return err
		}
		f.BuildVersion = v
	case MagicTIMECODE:
		tc, err := decodeTimecode(payload)
		if err != nil {
			return err
		}
		f.Timecode = tc
	default:
		// FILEINFO, CORESSMD, AUPR_HDR, AUPRINFO, NAVI_TBL, BLACKOUT,
		// BRANCHPT: recognized for dedup/presence but not decoded by this
		// module, which only needs the stream-timing and PBR-sizing
		// metadata to drive the codec context.
	}
	return nil
}

// decodeHeader decodes DTSHDHDR. Layout: version(8) must be 0,
// refClockHz-code(2), reserved(6), timestamp(40), tcFrameRate(8),
// flags(8): vbr(1) pbrs(1) navi(1) core(1) extss(1) reserved(3),
// numPresentations(8), numExtSS(8).
func decodeHeader(payload []byte) (*Header, error) {
	r := bits.New(payload)

	version, err := r.Read(8)
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "dtshd: header version %d", version)
	}

	clockCode, err := r.Read(2)
	if err != nil {
		return nil, err
	}
	if err := r.Skip(6); err != nil {
		return nil, err
	}
	tsHi, err := r.Read(8)
	if err != nil {
		return nil, err
	}
	tsLo, err := r.Read(32)
	if err != nil {
		return nil, err
	}
	ts := uint64(tsHi)<<32 | uint64(tsLo)
	tcRate, err := r.Read(8)
	if err != nil {
		return nil, err
	}
	vbr, err := r.Bit()
	if err != nil {
		return nil, err
	}
	pbrs, err := r.Bit()
	if err != nil {
		return nil, err
	}
	navi, err := r.Bit()
	if err != nil {
		return nil, err
	}
	core, err := r.Bit()
	if err != nil {
		return nil, err
	}
	extss, err := r.Bit()
	if err != nil {
		return nil, err
	}
	if err := r.Skip(3); err != nil {
		return nil, err
	}
	numPres, err := r.Read(8)
	if err != nil {
		return nil, err
	}
	numExtSS, err := r.Read(8)
	if err != nil {
		return nil, err
	}

	clocks := [4]int{44100, 48000, 96000, 192000}

	return &Header{
		ReferenceClockHz:  clocks[clockCode],
		Timestamp:         ts,
		TCFrameRate:       int(tcRate),
		VBR:               vbr,
		PBRSPerformed:     pbrs,
		NaviPresent:       navi,
		CorePresent:       core,
		ExtSSPresent:      extss,
		PresentationCount: int(numPres),
		ExtSSCount:        int(numExtSS),
	}, nil
}

// decodeExtSSMetadata decodes EXTSS_MD. Layout: vbr(1), reserved(7), then
// either avgBitrateKbps(24)+peakBitrateKbps(24)+pbrBufferKiB(24) when
// vbr=1, or fixedPayloadSize(24) when vbr=0.
func decodeExtSSMetadata(payload []byte) (*ExtSSMetadata, error) {
	r := bits.New(payload)

	vbr, err := r.Bit()
	if err != nil {
		return nil, err
	}
	if err := r.Skip(7); err != nil {
		return nil, err
	}

	m := &ExtSSMetadata{VBR: vbr}
	if m.VBR {
		avg, err := r.Read(24)
		if err != nil {
			return nil, err
		}
		peak, err := r.Read(24)
		if err != nil {
			return nil, err
		}
		pbr, err := r.Read(24)
		if err != nil {
			return nil, err
		}
		m.AvgBitrateKbps = int(avg)
		m.PeakBitrateKbps = int(peak)
		m.PbrBufferSizeKiB = int(pbr)
		return m, nil
	}

	fixed, err := r.Read(24)
	if err != nil {
		return nil, err
	}
	m.FixedPayloadSize = int(fixed)
	return m, nil
}

func decodeBuildVersion(payload []byte) (*BuildVersion, error) {
	r := bits.New(payload)
	major, err := r.Read(16)
	if err != nil {
		return nil, err
	}
	minor, err := r.Read(16)
	if err != nil {
		return nil, err
	}
	micro, err := r.Read(16)
	if err != nil {
		return nil, err
	}
	build, err := r.Read(16)
	if err != nil {
		return nil, err
	}
	return &BuildVersion{Major: int(major), Minor: int(minor), Micro: int(micro), Build: int(build)}, nil
}

func decodeTimecode(payload []byte) (*Timecode, error) {
	r := bits.New(payload)
	h, err := r.Read(8)
	if err != nil {
		return nil, err
	}
	m, err := r.Read(8)
	if err != nil {
		return nil, err
	}
	s, err := r.Read(8)
	if err != nil {
		return nil, err
	}
	fr, err := r.Read(8)
	if err != nil {
		return nil, err
	}
	return &Timecode{Hours: int(h), Minutes: int(m), Seconds: int(s), Frames: int(fr)}, nil
}
