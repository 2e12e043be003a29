/*
NAME
  types.go

DESCRIPTION
  types.go defines the DTS Extension Substream (ExtSS) header descriptor
  and sentinel errors.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package dtsextss decodes and byte-exact-rewrites the DTS Extension
// Substream (ExtSS) header: static fields, per-asset descriptors, and
// decoder-navigation coding-mode data.
package dtsextss

import "github.com/pkg/errors"

// Sentinel error kinds.
var (
	ErrBadSyncWord               = errors.New("dtsextss: bad sync word")
	ErrReservedValue             = errors.New("dtsextss: reserved value")
	ErrRangeViolation            = errors.New("dtsextss: range violation")
	ErrComplianceViolation       = errors.New("dtsextss: BDAV compliance violation")
	ErrCRCMismatch               = errors.New("dtsextss: header CRC mismatch")
	ErrFieldOverflow             = errors.New("dtsextss: field overflow on rewrite")
	ErrMixMetadataNotImplemented = errors.New("dtsextss: mix metadata rewrite not implemented")
)

const syncWord = 0x64582025

// CodingMode enumerates the per-asset decoder-navigation coding mode.
type CodingMode int

const (
	CodingHDComponents CodingMode = iota
	CodingHDLosslessNoCore
	CodingHDLowBitrate
	CodingAuxiliary
)

// XLLSubFields carries the XLL-specific decoder-navigation fields, present
// when the asset's coding-components-used mask includes XLL.
type XLLSubFields struct {
	PeakBufferSizeBytes     int // 4-bit field value << 4, KiB-to-bytes.
	InitialDecodingDelayFrames int
	SyncWordPresent         bool
	SyncOffsetBytes         int
}

// AssetDescriptor is one ExtSS asset's parsed static, dynamic and
// decoder-navigation content.
type AssetDescriptor struct {
	AssetIndex int

	AssetType   int
	Language    [3]byte
	InfoText    []byte
	BitDepth    int
	MaxSampleRateHz int
	TotalChannels   int

	DirectSpeakerFeed bool
	SpeakerActivityMask uint32
	RemapChannelMasks  []uint32

	CodingMode CodingMode
	ComponentMask uint32 // coding-components-used bitmask.
	XLL           *XLLSubFields

	CoreInExtSS     bool
	CoreSyncOffsetBytes int

	// DynamicHasMixMetadata records whether the parsed dynamic section
	// carried mix metadata, so the rewriter can reject the asset (mix
	// metadata rewrite is not implemented).
	DynamicHasMixMetadata bool
}

// Frame is the parsed descriptor of one ExtSS header.
type Frame struct {
	UserDefinedBits int
	ExtSSIndex      int // 0 (primary) or 2 (secondary).
	LongHeaderSizeFlag bool
	HeaderSizeBytes    int
	FrameSizeBytes     int

	ReferenceClockHz int
	FrameDurationSamples int // 512 for primary, 4096 for secondary.
	TimestampPresent bool
	Timestamp        uint64

	NumAudioPresentations int
	NumAssets             int

	ActiveExtSSMask  []uint32 // per presentation.
	ActiveAssetMask  [][]uint32 // per presentation, per ExtSS.

	MixMetadataPresent bool
	MixAdjustmentLevel int
	OutputConfigCount  int
	OutputChannelMasks []uint32

	Assets []AssetDescriptor

	HeaderCRC uint16

	// ReservedTail retains up to 16 bytes of reserved header content
	// verbatim, so a rewrite reproduces it exactly rather than re-deriving it.
	ReservedTail []byte
}
