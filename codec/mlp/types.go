/*
NAME
  types.go

DESCRIPTION
  types.go defines the MLP/TrueHD access-unit descriptor, its component
  structs, and sentinel errors.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package mlp decodes Dolby TrueHD (MLP) access units: minor sync, major
// sync, substream directory, restart headers, block headers and block data,
// and the EXTRA_DATA trailer. It does not reconstruct PCM samples;
// Huffman/LSB residuals are consumed for bitstream accounting only.
package mlp

import "github.com/pkg/errors"

// Sentinel error kinds.
var (
	ErrBadSyncWord         = errors.New("mlp: bad sync word")
	ErrReservedValue       = errors.New("mlp: reserved value")
	ErrRangeViolation      = errors.New("mlp: range violation")
	ErrComplianceViolation = errors.New("mlp: BDAV compliance violation")
	ErrMissingMajorSync    = errors.New("mlp: missing major sync on first access unit")
	ErrNotImplemented      = errors.New("mlp: feature not implemented")
	ErrCRCMismatch         = errors.New("mlp: CRC mismatch")
)

const (
	formatSyncTrueHD = 0xF8726FBA
	formatSyncDVDA   = 0xF8726FBB
	majorSyncSig     = 0xB752

	maxMatrix    = 16
	maxMatrices  = 16
	maxChannels  = 16
	maxSubstreams = 4

	// maxPeakBps is MAX_PEAK, the BDAV peak-data-rate compliance ceiling,
	// approximately 24.5 Mbps.
	maxPeakBps = 24500000
)

// sampleRateTable maps the 4-bit audio_sampling_frequency code to Hz: codes
// 0-2 are 48/96/192kHz and 8-10 are 44.1/88.2/176.4kHz; all other codes are
// reserved (0 in the table).
var sampleRateTable = [16]int{
	48000, 96000, 192000, 0, 0, 0, 0, 0,
	44100, 88200, 176400, 0, 0, 0, 0, 0,
}

// ChannelMeaning carries the dialnorm/mix-level/source-format fields common
// to the 2/6/8-ch presentations in major sync's channel_meaning block.
type ChannelMeaning struct {
	DialNorm     int
	MixLevel     int
	SourceFormat int
}

// ExtraChannelMeaning carries the recognized 16-ch channel-meaning form.
type ExtraChannelMeaning struct {
	DialNorm     int
	MixLevel     int
	ChannelCount int
	DynObjectOnly bool
	LFEPresent   bool
}

// MajorSync is the parsed major-sync-info block.
type MajorSync struct {
	SampleRate     int
	Group2SampleRate int // Not set by parseMajorSync; always 0.
	SixChMultichannelType int
	EightChMultichannelType int
	TwoChPresentation   int
	SixChPresentation   int
	EightChPresentation int
	SixChAssignment   int
	EightChAssignment int

	ConstantFIFODelay bool
	Alternate8ChSyntax bool

	VariableBitrate bool
	PeakDataRate    int // raw 15-bit field.
	PeakDataRateBps int // scaled: raw*Fs/16.

	SubstreamCount       int
	ExtendedSubstreamInfo int
	SixteenChPresentPresent bool

	TwoCh   ChannelMeaning
	SixCh   ChannelMeaning
	EightCh ChannelMeaning

	ExtraChannelMeaningPresent bool
	ExtraChannelMeaningLength  int
	SixteenCh                  *ExtraChannelMeaning
}

// SubstreamDirEntry is one entry of the substream directory.
type SubstreamDirEntry struct {
	ExtraSubstreamWord bool
	RestartNonexistent bool
	CRCPresent         bool
	EndPtrWords        int // 12-bit end pointer, in 16-bit words from the start of substream data.
	DRCGainUpdate      int
	DRCTimeUpdate      int
}

// RestartHeader is the per-substream decoder-reset block.
type RestartHeader struct {
	OutputTiming int
	MinChan      int
	MaxChan      int
	MaxMatrixChan int
	DitherShift  int
	DitherSeed   int
	MaxShift     int
	MaxLSBs      int
	MaxBits      int
	ErrorProtect bool
	LosslessCheck int
	ChAssign     []int // length MaxMatrixChan+1.
}

// FilterParams carries one FIR or IIR filter's order, shift, coefficients
// and optional state (state is illegal for FIR filters).
type FilterParams struct {
	Present bool
	Order   int
	Shift   int
	Coeff   []int
	State   []int
}

// MatrixParams carries one downmix matrix's coefficients.
type MatrixParams struct {
	OutputChan    int
	FracBits      int
	LSBBypassExists bool
	CoeffPresent  []bool
	Coeff         []int
	NoiseShift    int
}

// ChannelParams is the per-channel block-header state carried across
// blocks within one access unit.
type ChannelParams struct {
	FIR FilterParams
	IIR FilterParams
	HuffOffset     int
	HuffCodebook   int
	NumHuffLSBs    int
}

// BlockHeader is the parsed content of one block header.
type BlockHeader struct {
	BlockSize         int
	MatrixParamsPresent bool
	Matrices          []MatrixParams
	OutputShiftPresent bool
	OutputShift       []int
	QuantStepSizePresent bool
	QuantStepSize     []int
}

// SubstreamSegment is one substream's decoded content within an access
// unit: its restart header (if present) and the running per-channel
// filter/entropy state after processing all blocks.
type SubstreamSegment struct {
	HasRestart   bool
	Restart      RestartHeader
	Blocks       int
	MatrixParamsChanges int
	FIRChanges   map[int]int
	IIRChanges   map[int]int
	MaxBitsSeen  int
	TerminatorZeroSamples int
}

// Frame is the parsed descriptor of one MLP access unit.
type Frame struct {
	AccessUnitLengthWords int
	InputTiming           int
	HasMajorSync          bool
	MajorSync             *MajorSync
	Substreams            []SubstreamDirEntry
	Segments              []SubstreamSegment

	// EXTRA_DATA trailer, if present.
	HasExtraData bool
}

// Informations is the derived per-access-unit summary: sample rate,
// channel count, peak data rate and the flags a downstream muxer needs
// without re-walking the full frame structure.
type Informations struct {
	SamplingFrequency int
	NbChannels        int
	PeakDataRateBps   int
	AtmosPresent      bool
	Binaural          bool
	Mono              bool
	MatrixSurround    bool
	ObservedBitDepth  int
}
