/*
NAME
  majorsync.go

DESCRIPTION
  majorsync.go decodes the MLP major-sync-info block: format_sync,
  format_info, signature, flags, peak data rate, substream counts,
  channel_meaning and optional extra-channel-meaning, plus its CRC-16.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package mlp

import (
	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/bits"
	"github.com/reelforge/bdamux/crc"
)

var majorSyncCRCTable = crc.NewTable16(0x11021, 0xFFFF)

// peekMajorSync reports whether the next 32 bits look like a major sync: a
// major sync is present whenever the upper 24 bits equal 0xF8726F.
func peekMajorSync(r *bits.Reader) (bool, error) {
	if r.RemainingBits() < 32 {
		return false, nil // Too short to hold a major sync.
	}
	v, err := r.Peek(32)
	if err != nil {
		return false, err
	}
	return v>>8 == 0xF8726F, nil
}

func parseMajorSync(r *bits.Reader) (*MajorSync, error) {
	rec := crc.NewRecorder(majorSyncCRCTable)
	rec.Begin(r)

	formatSync, err := r.Read(32)
	if err != nil {
		return nil, err
	}
	if formatSync == formatSyncDVDA {
		return nil, errors.Wrap(ErrBadSyncWord, "mlp: DVD-Audio MLP format_sync rejected")
	}
	if formatSync != formatSyncTrueHD {
		return nil, errors.Wrapf(ErrBadSyncWord, "mlp: format_sync %#x not TrueHD", formatSync)
	}

	formatInfo, err := r.Read(32)
	if err != nil {
		return nil, err
	}

	signature, err := r.Read(16)
	if err != nil {
		return nil, err
	}
	if signature != majorSyncSig {
		return nil, errors.Wrapf(ErrBadSyncWord, "mlp: signature %#x != 0xB752", signature)
	}

	flags, err := r.Read(16)
	if err != nil {
		return nil, err
	}

	if err := r.Skip(16); err != nil { // reserved.
		return nil, err
	}

	ms := &MajorSync{
		ConstantFIFODelay:  flags&(1<<15) != 0,
		Alternate8ChSyntax: flags&(1<<11) != 0,
	}

	if err := decodeFormatInfo(formatInfo, ms); err != nil {
		return nil, err
	}

	vbr, err := r.Bit()
	if err != nil {
		return nil, err
	}
	ms.VariableBitrate = vbr

	peak, err := r.Read(15)
	if err != nil {
		return nil, err
	}
	ms.PeakDataRate = int(peak)
	ms.PeakDataRateBps = ms.PeakDataRate * ms.SampleRate / 16
	if ms.PeakDataRateBps > maxPeakBps {
		return nil, errors.Wrap(ErrComplianceViolation, "mlp: peak data rate exceeds MAX_PEAK")
	}

	substreamCount, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	ms.SubstreamCount = int(substreamCount)
	if ms.SubstreamCount > maxSubstreams {
		return nil, errors.Wrap(ErrRangeViolation, "mlp: substream count exceeds maximum")
	}

	if err := r.Skip(2); err != nil { // reserved.
		return nil, err
	}

	extSSInfo, err := r.Read(2)
	if err != nil {
		return nil, err
	}
	ms.ExtendedSubstreamInfo = int(extSSInfo)

	substreamInfo, err := r.Read(8)
	if err != nil {
		return nil, err
	}
	ms.SixChPresentation = int((substreamInfo >> 4) & 0x3)
	ms.EightChPresentation = int((substreamInfo >> 1) & 0x7)
	ms.SixteenChPresentPresent = substreamInfo&0x1 != 0

	if err := decodeChannelMeaning(r, ms); err != nil {
		return nil, err
	}

	if ms.ExtraChannelMeaningPresent {
		nbits := (ms.ExtraChannelMeaningLength+1)*16 - 4
		if err := decodeExtraChannelMeaning(r, ms, nbits); err != nil {
			return nil, err
		}
	}

	if err := r.ByteAlign(); err != nil {
		return nil, err
	}
	// Finalize before reading the CRC field itself: the CRC covers the
	// major-sync content that precedes it, not its own transmitted bytes.
	crcComputed := rec.Finalize(r)

	crcExpected, err := r.Read(16)
	if err != nil {
		return nil, err
	}
	if crcComputed != crcExpected {
		return nil, errors.Wrapf(ErrCRCMismatch, "mlp: major-sync-info CRC mismatch, got %#x want %#x", crcComputed, crcExpected)
	}

	return ms, nil
}

// decodeFormatInfo unpacks the 32-bit format_info field. Layout: 4-bit
// audio_sampling_frequency, 1-bit 6ch_multichannel_type, 1-bit
// 8ch_multichannel_type, 2-bit 2ch_presentation, 2-bit 6ch_presentation,
// 2-bit 8ch_presentation, 5-bit 6ch_channel_assignment, 13-bit
// 8ch_channel_assignment (4 payload bits + 1 Tsl/Tsr bit + 8 reserved when
// alternate syntax is set), 2-bit reserved.
func decodeFormatInfo(formatInfo uint32, ms *MajorSync) error {
	freqCode := (formatInfo >> 28) & 0xF
	rate := sampleRateTable[freqCode]
	if rate == 0 {
		return errors.Wrap(ErrReservedValue, "mlp: audio_sampling_frequency reserved")
	}
	ms.SampleRate = rate

	ms.SixChMultichannelType = int((formatInfo >> 27) & 0x1)
	ms.EightChMultichannelType = int((formatInfo >> 26) & 0x1)
	if ms.SixChMultichannelType > 1 || ms.EightChMultichannelType > 1 {
		return errors.Wrap(ErrReservedValue, "mlp: multichannel_type reserved")
	}

	ms.TwoChPresentation = int((formatInfo >> 24) & 0x3)
	ms.SixChPresentation = int((formatInfo >> 22) & 0x3)
	ms.EightChPresentation = int((formatInfo >> 20) & 0x3)

	ms.SixChAssignment = int((formatInfo >> 15) & 0x1F)
	if popcount(uint32(ms.SixChAssignment)) > 6 {
		return errors.Wrap(ErrRangeViolation, "mlp: 6ch channel count > 6")
	}

	eightChField := (formatInfo >> 2) & 0x1FFF
	if ms.Alternate8ChSyntax {
		ms.EightChAssignment = int(eightChField & 0xF)
	} else {
		ms.EightChAssignment = int(eightChField)
		if popcount(uint32(ms.EightChAssignment)) > 8 {
			return errors.Wrap(ErrRangeViolation, "mlp: 8ch channel count > 8")
		}
	}

	return nil
}

func popcount(v uint32) int {
	n := 0
	for v != 0 {
		n += int(v & 1)
		v >>= 1
	}
	return n
}

// decodeChannelMeaning reads the 64-bit channel_meaning block: three
// ChannelMeaning groups (2/6/8-ch), each dialnorm(5)+mixlevel(6)+
// sourceformat(5), plus extra_channel_meaning_present(1) and
// extra_channel_meaning_length(4) trailing it (3*16=48 bits + 1 + 4 = 53;
// the remaining 11 bits are reserved, padding the block to 64 bits).
func decodeChannelMeaning(r *bits.Reader, ms *MajorSync) error {
	read := func() (ChannelMeaning, error) {
		var cm ChannelMeaning
		d, err := r.Read(5)
		if err != nil {
			return cm, err
		}
		m, err := r.Read(6)
		if err != nil {
			return cm, err
		}
		s, err := r.Read(5)
		if err != nil {
			return cm, err
		}
		cm.DialNorm, cm.MixLevel, cm.SourceFormat = -int(d), int(m), int(s)
		return cm, nil
	}

	var err error
	if ms.TwoCh, err = read(); err != nil {
		return err
	}
	if ms.SixCh, err = read(); err != nil {
		return err
	}
	if ms.EightCh, err = read(); err != nil {
		return err
	}

	present, err := r.Bit()
	if err != nil {
		return err
	}
	ms.ExtraChannelMeaningPresent = present

	length, err := r.Read(4)
	if err != nil {
		return err
	}
	ms.ExtraChannelMeaningLength = int(length)

	return r.Skip(11) // reserved padding to 64 bits.
}

// decodeExtraChannelMeaning reads the recognized 16-ch channel_meaning
// form and skips any trailing bits of the declared block not consumed by
// it (the multi-content form is unimplemented).
func decodeExtraChannelMeaning(r *bits.Reader, ms *MajorSync, nbits int) error {
	if nbits < 17 {
		return r.Skip(nbits)
	}
	start := r.PositionBits()

	dialnorm, err := r.Read(5)
	if err != nil {
		return err
	}
	mixlevel, err := r.Read(6)
	if err != nil {
		return err
	}
	chanCount, err := r.Read(5)
	if err != nil {
		return err
	}
	dynObjectOnly, err := r.Bit()
	if err != nil {
		return err
	}
	ecm := &ExtraChannelMeaning{
		DialNorm:      -int(dialnorm),
		MixLevel:      int(mixlevel),
		ChannelCount:  int(chanCount),
		DynObjectOnly: dynObjectOnly,
	}
	if dynObjectOnly {
		lfe, err := r.Bit()
		if err != nil {
			return err
		}
		ecm.LFEPresent = lfe
	}
	ms.SixteenCh = ecm

	consumed := r.PositionBits() - start
	remaining := nbits - consumed
	if remaining < 0 {
		return errors.Wrap(ErrNotImplemented, "mlp: 16-ch channel-meaning multi-content form")
	}
	return r.Skip(remaining)
}
