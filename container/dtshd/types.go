/*
NAME
  types.go

DESCRIPTION
  types.go defines the DTS-HD container chunk model: the 8-byte ASCII
  magic + 8-byte big-endian length chunk framing, and the decoded content of
  the chunks this module acts on.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package dtshd reads a DTS-HD container file's chunk structure: 8-byte
// ASCII magic plus 8-byte big-endian length, DWORD-aligned. Recognized
// chunks are decoded; unknown chunks are skipped by their declared length.
package dtshd

import "github.com/pkg/errors"

// Sentinel error kinds.
var (
	ErrBadMagic          = errors.New("dtshd: bad chunk magic")
	ErrUnsupportedVersion = errors.New("dtshd: unsupported header version")
	ErrDuplicateChunk    = errors.New("dtshd: recognized chunk appears more than once")
	ErrTruncated         = errors.New("dtshd: chunk declares a length beyond the file")
)

// Magic values for the chunks this module recognizes.
const (
	MagicDTSHDHDR = "DTSHDHDR"
	MagicFILEINFO = "FILEINFO"
	MagicCORESSMD = "CORESSMD"
	MagicEXTSSMD  = "EXTSS_MD"
	MagicAUPRHDR  = "AUPR_HDR"
	MagicAUPRINFO = "AUPRINFO"
	MagicNAVITBL  = "NAVI_TBL"
	MagicSTRMDATA = "STRMDATA"
	MagicTIMECODE = "TIMECODE"
	MagicBUILDVER = "BUILDVER"
	MagicBLACKOUT = "BLACKOUT"
	MagicBRANCHPT = "BRANCHPT"
)

// Header is the decoded DTSHDHDR chunk.
type Header struct {
	ReferenceClockHz    int
	Timestamp           uint64 // 40-bit.
	TCFrameRate         int
	VBR                 bool
	PBRSPerformed       bool
	NaviPresent         bool
	CorePresent         bool
	ExtSSPresent        bool
	PresentationCount   int
	ExtSSCount          int
}

// ExtSSMetadata is the decoded EXTSS_MD chunk: either a VBR-path bitrate
// pair plus PBR buffer size, or a CBR-path fixed payload size.
type ExtSSMetadata struct {
	VBR              bool
	AvgBitrateKbps   int
	PeakBitrateKbps  int
	PbrBufferSizeKiB int
	FixedPayloadSize int
}

// BuildVersion is the decoded BUILDVER chunk: decoded rather than skipped,
// since it's cheap and useful for debug logging.
type BuildVersion struct {
	Major, Minor, Micro, Build int
}

// Timecode is the decoded TIMECODE chunk, likewise a supplemented decode.
type Timecode struct {
	Hours, Minutes, Seconds, Frames int
}

// File is the decoded container: the header, the recognized metadata
// chunks seen before STRMDATA, and the byte offset/length of the stream
// data segment itself (left for the driver to read from directly).
type File struct {
	Header        *Header
	ExtSSMetadata *ExtSSMetadata
	BuildVersion  *BuildVersion
	Timecode      *Timecode

	StreamDataOffset int64
	StreamDataLength int64
}
