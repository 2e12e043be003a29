/*
NAME
  dtscore.go

DESCRIPTION
  dtscore.go decodes a DTS Core frame header (sync, FTYPE, SHORT, NBLKS,
  FSIZE, AMODE, SFREQ, PCMR/ES, bit-rate code, flags, optional dialnorm) and
  tracks the across-frame invariants BDAV requires.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package dtscore decodes DTS Core sync frame headers. It does not parse
// the audio payload.
package dtscore

import (
	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/bits"
)

var (
	ErrBadSyncWord         = errors.New("dtscore: bad sync word")
	ErrReservedValue       = errors.New("dtscore: reserved value")
	ErrRangeViolation      = errors.New("dtscore: range violation")
	ErrComplianceViolation = errors.New("dtscore: BDAV compliance violation")
	ErrNonCompliantChange  = errors.New("dtscore: non-compliant stream property change")
)

const syncWord = 0x7FFE8001

// sfreqTable maps the 4-bit SFREQ code to sample rate in Hz; 0 and values
// without a defined rate are reserved.
var sfreqTable = [16]int{
	0, 8000, 16000, 32000, 0, 0, 11025, 22050, 44100, 0,
	12000, 24000, 48000, 96000, 192000, 0,
}

// amodeChannels maps AMODE (0..15) to the number of full-bandwidth
// channels (excludes LFE, which is a separate flag).
var amodeChannels = [16]int{
	1, 2, 2, 2, 2, 3, 3, 4, 4, 5, 6, 6, 6, 7, 8, 8,
}

// bitRateTable maps the 5-bit bit-rate code to kbps; two values are
// special: 29 (open rate, rejected under BDAV) and reserved codes
// (30 unused, 31 = "Lossless" marker rarely seen in Core-only headers).
var bitRateTable = [30]int{
	32, 56, 64, 96, 112, 128, 192, 224, 256, 320,
	384, 448, 512, 576, 640, 768, 896, 1024, 1152, 1280,
	1344, 1408, 1411, 1472, 1536, 1920, 2048, 3072, 3840, 0, // 29: open rate.
}

const (
	openRateCode = 29
	reservedMin  = 30
)

// Frame is the parsed DTS Core frame header.
type Frame struct {
	Term        bool
	SamplesPerBlock int // SHORT + 1
	NumBlocks   int // NBLKS + 1
	FrameBytes  int // FSIZE + 1
	PayloadBytes int
	Amode       int
	NbChannels  int
	SampleRate  int
	PCMRBitDepth int
	ESFlag      bool
	BitRateKbps int
	Aux         bool
	HDCD        bool
	ExtAudio    bool
	ExtAudioID  int
	ASPF        bool
	LFF         bool
	DialNorm    int
	VerNum      int
}

// pcmrTable maps the 3-bit PCMR code to (bit depth, ES flag).
var pcmrTable = [8]struct {
	depth int
	es    bool
}{
	{16, false}, {16, true}, {20, false}, {20, true},
	{0, false} /* reserved */, {24, false}, {24, true}, {0, false},
}

// Context tracks across-frame invariants for one DTS Core stream.
type Context struct {
	first *Frame
}

// NewContext returns a fresh Context for one stream.
func NewContext() *Context { return &Context{} }

// Parse decodes one Core frame header from buf, which must start at the
// sync word.
func (c *Context) Parse(buf []byte) (*Frame, error) {
	r := bits.New(buf)

	sync, err := r.Read(32)
	if err != nil {
		return nil, errors.Wrap(err, "dtscore: reading sync word")
	}
	if sync != syncWord {
		return nil, errors.Wrapf(ErrBadSyncWord, "got %#x", sync)
	}

	f := &Frame{}

	ftype, err := r.Bit()
	if err != nil {
		return nil, err
	}
	f.Term = !ftype // FTYPE: 1 = normal frame, 0 = termination frame.

	if err := r.Skip(5); err != nil { // DSYNC / deficit sample count, not modeled.
		return nil, err
	}

	short, err := r.Read(7)
	if err != nil {
		return nil, err
	}
	f.SamplesPerBlock = int(short) + 1

	_, err = r.Bit() // CPF, CRC present flag.
	if err != nil {
		return nil, err
	}

	nblks, err := r.Read(7)
	if err != nil {
		return nil, err
	}
	f.NumBlocks = int(nblks) + 1
	if f.NumBlocks < 6 {
		return nil, errors.Wrap(ErrRangeViolation, "dtscore: NBLKS below minimum")
	}
	if f.Term {
		valid := map[int]bool{8: true, 16: true, 32: true, 64: true, 128: true}
		if !valid[f.NumBlocks] {
			return nil, errors.Wrap(ErrRangeViolation, "dtscore: NBLKS+1 not a valid power-of-two block count")
		}
	}

	fsize, err := r.Read(14)
	if err != nil {
		return nil, err
	}
	f.FrameBytes = int(fsize) + 1
	if f.FrameBytes < 96 {
		return nil, errors.Wrap(ErrRangeViolation, "dtscore: FSIZE below minimum")
	}

	amode, err := r.Read(6)
	if err != nil {
		return nil, err
	}
	f.Amode = int(amode)
	f.NbChannels = amodeChannels[f.Amode&0xF]

	sfreq, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	rate := sfreqTable[sfreq]
	if rate == 0 {
		return nil, errors.Wrap(ErrReservedValue, "dtscore: SFREQ reserved")
	}
	f.SampleRate = rate
	if f.SampleRate != 48000 {
		return nil, errors.Wrap(ErrComplianceViolation, "dtscore: Core must be 48kHz for BDAV")
	}

	rateCode, err := r.Read(5)
	if err != nil {
		return nil, err
	}
	if int(rateCode) == openRateCode {
		return nil, errors.Wrap(ErrComplianceViolation, "dtscore: open bit-rate not permitted under BDAV")
	}
	if int(rateCode) >= reservedMin {
		return nil, errors.Wrap(ErrReservedValue, "dtscore: bit-rate code reserved")
	}
	f.BitRateKbps = bitRateTable[rateCode]
	if f.BitRateKbps < 96 {
		return nil, errors.Wrap(ErrComplianceViolation, "dtscore: Core must be >=96kbps for BDAV")
	}

	if err := r.Skip(1); err != nil { // FIXEDBIT, always 1.
		return nil, err
	}

	dsync, err := r.Bit()
	if err != nil {
		return nil, err
	}
	_ = dsync // DYNF, dynamic range flag, not modeled.

	aux, err := r.Bit()
	if err != nil {
		return nil, err
	}
	f.Aux = aux

	hdcd, err := r.Bit()
	if err != nil {
		return nil, err
	}
	f.HDCD = hdcd

	extAudioID, err := r.Read(3)
	if err != nil {
		return nil, err
	}
	extAudio, err := r.Bit()
	if err != nil {
		return nil, err
	}
	f.ExtAudio = extAudio
	f.ExtAudioID = int(extAudioID)

	aspf, err := r.Bit()
	if err != nil {
		return nil, err
	}
	f.ASPF = aspf

	lff, err := r.Read(2)
	if err != nil {
		return nil, err
	}
	if lff == 3 {
		return nil, errors.Wrap(ErrReservedValue, "dtscore: LFF reserved")
	}
	f.LFF = lff != 0
	if f.LFF {
		f.NbChannels++
	}

	if err := r.Skip(1); err != nil { // HFLAG.
		return nil, err
	}
	if err := r.Skip(1); err != nil { // FILTS.
		return nil, err
	}

	vernum, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	if vernum > 7 {
		return nil, errors.Wrap(ErrRangeViolation, "dtscore: VERNUM above 7")
	}
	f.VerNum = int(vernum)

	if err := r.Skip(2); err != nil { // CHIST.
		return nil, err
	}

	pcmr, err := r.Read(3)
	if err != nil {
		return nil, err
	}
	entry := pcmrTable[pcmr]
	if entry.depth == 0 {
		return nil, errors.Wrap(ErrReservedValue, "dtscore: PCMR reserved")
	}
	f.PCMRBitDepth = entry.depth
	f.ESFlag = entry.es

	if err := r.Skip(1); err != nil { // SUMF.
		return nil, err
	}
	if err := r.Skip(1); err != nil { // SUMS.
		return nil, err
	}

	if f.VerNum == 7 {
		dialnorm, err := r.Read(4)
		if err != nil {
			return nil, err
		}
		f.DialNorm = -16 - int(dialnorm)
	} else if f.VerNum >= 2 {
		dialnorm, err := r.Read(4)
		if err != nil {
			return nil, err
		}
		f.DialNorm = -int(dialnorm)
	}

	f.PayloadBytes = f.FrameBytes - r.BytePos()
	if f.PayloadBytes < 0 {
		return nil, errors.Wrap(ErrRangeViolation, "dtscore: FSIZE smaller than header")
	}

	return c.finish(f)
}

func (c *Context) finish(f *Frame) (*Frame, error) {
	if c.first == nil {
		c.first = f
		return f, nil
	}
	p := c.first
	switch {
	case f.Amode != p.Amode,
		f.SampleRate != p.SampleRate,
		f.PCMRBitDepth != p.PCMRBitDepth,
		f.ESFlag != p.ESFlag,
		f.BitRateKbps != p.BitRateKbps,
		f.LFF != p.LFF,
		f.ExtAudio != p.ExtAudio,
		f.ExtAudioID != p.ExtAudioID,
		f.VerNum != p.VerNum:
		return nil, errors.Wrap(ErrNonCompliantChange, "dtscore: stream property changed across frames")
	}
	return f, nil
}
