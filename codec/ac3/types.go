/*
NAME
  types.go

DESCRIPTION
  types.go defines the AC-3/E-AC-3 frame descriptor and sentinel errors.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package ac3 decodes AC-3 and Enhanced AC-3 (E-AC-3) access units: sync
// info, the bit stream information (BSI) block, and the additional-BSI
// extension. It does not decode audio samples.
package ac3

import "github.com/pkg/errors"

// Sentinel error kinds.
var (
	ErrBadSyncWord          = errors.New("ac3: bad sync word")
	ErrReservedValue        = errors.New("ac3: reserved value")
	ErrRangeViolation       = errors.New("ac3: range violation")
	ErrInconsistentChanMap  = errors.New("ac3: inconsistent channel map")
	ErrNonCompliantChange   = errors.New("ac3: non-compliant stream property change")
	ErrComplianceViolation  = errors.New("ac3: BDAV compliance violation")
)

// syncWord is the AC-3/E-AC-3 16-bit frame sync word.
const syncWord = 0x0B77

// StreamType enumerates E-AC-3's strmtyp field.
type StreamType uint8

const (
	StreamTypeIndependent StreamType = 0
	StreamTypeDependent   StreamType = 1
	StreamTypeAC3Convert  StreamType = 2
)

// DualMonoVariant carries the per-channel dual-mono BSI variants present
// when acmod==0 (1+1).
type DualMonoVariant struct {
	DialNorm2         int
	CompressionGain2  *uint8
	LangCode2         *uint8
	AudioProdInfo2    *AudioProdInfo
}

// AudioProdInfo carries mixlevel/roomtyp production information.
type AudioProdInfo struct {
	MixLevel int
	RoomType int
}

// EC3TypeA carries the E-AC-3 type-A (Atmos) additional-BSI payload.
type EC3TypeA struct {
	ComplexityIndex uint8
}

// Frame is the parsed descriptor of one AC-3/E-AC-3 access unit.
type Frame struct {
	IsEAC3 bool

	// Sync-info / BSI common fields.
	Bsid        int
	SampleRate  int
	FrameWords  int
	FrameBytes  int
	BitrateKbps int // 0 for E-AC-3 (VBR, no fixed rate table).

	Acmod      int
	LfeOn      bool
	NbChannels int

	DialNorm         int
	CompressionGain  *uint8
	LangCode         *uint8
	AudioProdInfo    *AudioProdInfo
	DualMono         *DualMonoVariant
	Copyright        bool
	Original         bool

	// E-AC-3 specific.
	StreamType    StreamType
	SubstreamID   int
	ChanMap       *uint16
	Bsmod         int
	Dsurmod       int
	Dheadphonmod  int
	Dsurexmod     int

	// EC3 type-A Atmos marker, present only when addbsi was recognized.
	Atmos *EC3TypeA

	// HeaderBytes is the number of bytes consumed decoding the header
	// (sync info + BSI), for callers that need to locate the payload.
	HeaderBytes int
}
