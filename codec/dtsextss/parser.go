/*
NAME
  parser.go

DESCRIPTION
  parser.go decodes one DTS Extension Substream (ExtSS) header: static
  fields, per-asset descriptors (static/dynamic/decoder-navigation
  sections), and the trailing header CRC-16.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package dtsextss

import (
	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/bits"
	"github.com/reelforge/bdamux/crc"
)

var headerCRCTable = crc.NewTable16(0x11021, 0xFFFF)

// maskWidth returns the bit width of a variable-width channel mask field,
// 4*(n+1) — this single helper backs the output-configuration mask, the
// asset speaker-activity/downmix mask, and the remap-set channel mask,
// which all share the same width computation.
func maskWidth(n int) int { return 4 * (n + 1) }

// Parse decodes one ExtSS header from buf, which must start at the sync
// word.
func Parse(buf []byte) (*Frame, error) {
	r := bits.New(buf)

	sync, err := r.Read(32)
	if err != nil {
		return nil, err
	}
	if sync != syncWord {
		return nil, errors.Wrapf(ErrBadSyncWord, "dtsextss: got %#x", sync)
	}

	rec := crc.NewRecorder(headerCRCTable)

	userBits, err := r.Read(8)
	if err != nil {
		return nil, err
	}
	f := &Frame{UserDefinedBits: int(userBits)}

	rec.Begin(r)

	extSSIdx, err := r.Read(2)
	if err != nil {
		return nil, err
	}
	f.ExtSSIndex = int(extSSIdx)
	if f.ExtSSIndex != 0 && f.ExtSSIndex != 2 {
		return nil, errors.Wrapf(ErrComplianceViolation, "dtsextss: extSSIdx %d not primary(0) or secondary(2)", f.ExtSSIndex)
	}

	longFlag, err := r.Bit()
	if err != nil {
		return nil, err
	}
	f.LongHeaderSizeFlag = longFlag

	hdrSizeWidth, frameSizeWidth := 8, 16
	if longFlag {
		hdrSizeWidth, frameSizeWidth = 12, 20
	}
	hdrSize, err := r.Read(hdrSizeWidth)
	if err != nil {
		return nil, err
	}
	f.HeaderSizeBytes = int(hdrSize) + 1

	frameSize, err := r.Read(frameSizeWidth)
	if err != nil {
		return nil, err
	}
	f.FrameSizeBytes = int(frameSize) + 1

	staticFieldsPresent, err := r.Bit()
	if err != nil {
		return nil, err
	}
	if staticFieldsPresent {
		if err := parseStaticFields(r, f); err != nil {
			return nil, err
		}
	} else if f.ExtSSIndex == 0 || f.ExtSSIndex == 2 {
		return nil, errors.Wrap(ErrComplianceViolation, "dtsextss: static fields must be present for BDAV")
	}

	if f.NumAudioPresentations != 1 || f.NumAssets != 1 {
		return nil, errors.Wrap(ErrComplianceViolation, "dtsextss: BDAV requires exactly one audio presentation and one asset")
	}

	want := uint32(0x1)
	if f.ExtSSIndex == 2 {
		want = 0x5
	}
	if len(f.ActiveExtSSMask) != 1 || f.ActiveExtSSMask[0] != want {
		return nil, errors.Wrapf(ErrComplianceViolation, "dtsextss: activeExtSSMask must be %#x", want)
	}

	assets := make([]AssetDescriptor, f.NumAssets)
	for i := range assets {
		a, err := parseAssetDescriptor(r, f.ExtSSIndex, frameSizeWidth)
		if err != nil {
			return nil, err
		}
		assets[i] = *a
	}
	f.Assets = assets

	if err := r.ByteAlign(); err != nil {
		return nil, err
	}

	remaining := f.HeaderSizeBytes - r.BytePos() - 2 // -2 for the trailing CRC field.
	if remaining < 0 {
		return nil, errors.Wrap(ErrRangeViolation, "dtsextss: header size smaller than parsed content")
	}
	tail := remaining
	if tail > 16 {
		tail = 16
	}
	if tail > 0 {
		f.ReservedTail = make([]byte, tail)
		for i := range f.ReservedTail {
			v, err := r.Read(8)
			if err != nil {
				return nil, err
			}
			f.ReservedTail[i] = byte(v)
		}
		remaining -= tail
	}
	if remaining > 0 {
		if err := r.Skip(remaining * 8); err != nil {
			return nil, err
		}
	}

	// Finalize before reading the CRC field itself: the CRC covers the
	// header content that precedes it, not its own transmitted bytes.
	crcComputed := rec.Finalize(r)

	crcVal, err := r.Read(16)
	if err != nil {
		return nil, err
	}
	f.HeaderCRC = uint16(crcVal)
	if crcComputed != crcVal {
		return nil, errors.Wrapf(ErrCRCMismatch, "dtsextss: header CRC mismatch, got %#x want %#x", crcComputed, crcVal)
	}

	return f, nil
}

func parseStaticFields(r *bits.Reader, f *Frame) error {
	clockCode, err := r.Read(2)
	if err != nil {
		return err
	}
	clocks := [4]int{32000, 44100, 48000, 0}
	f.ReferenceClockHz = clocks[clockCode]
	if f.ReferenceClockHz != 48000 {
		return errors.Wrap(ErrComplianceViolation, "dtsextss: reference clock must be 48kHz")
	}

	durCode, err := r.Bit()
	if err != nil {
		return err
	}
	if durCode {
		f.FrameDurationSamples = 4096
	} else {
		f.FrameDurationSamples = 512
	}

	tsPresent, err := r.Bit()
	if err != nil {
		return err
	}
	f.TimestampPresent = tsPresent
	if tsPresent {
		ts, err := r.Read(32)
		if err != nil {
			return err
		}
		frac, err := r.Read(4)
		if err != nil {
			return err
		}
		f.Timestamp = uint64(ts)<<4 | uint64(frac)
	}

	numPres, err := r.Read(3)
	if err != nil {
		return err
	}
	f.NumAudioPresentations = int(numPres) + 1

	numAssets, err := r.Read(3)
	if err != nil {
		return err
	}
	f.NumAssets = int(numAssets) + 1

	f.ActiveExtSSMask = make([]uint32, f.NumAudioPresentations)
	f.ActiveAssetMask = make([][]uint32, f.NumAudioPresentations)
	for p := 0; p < f.NumAudioPresentations; p++ {
		mask, err := r.Read(8)
		if err != nil {
			return err
		}
		f.ActiveExtSSMask[p] = mask
		assetMasks := make([]uint32, 0, 4)
		for ss := 0; ss < 8; ss++ {
			if mask&(1<<uint(ss)) == 0 {
				continue
			}
			am, err := r.Read(8)
			if err != nil {
				return err
			}
			assetMasks = append(assetMasks, am)
		}
		f.ActiveAssetMask[p] = assetMasks
	}

	mixPresent, err := r.Bit()
	if err != nil {
		return err
	}
	f.MixMetadataPresent = mixPresent
	if mixPresent {
		adj, err := r.Read(2)
		if err != nil {
			return err
		}
		f.MixAdjustmentLevel = int(adj)

		cfgCount, err := r.Read(2)
		if err != nil {
			return err
		}
		f.OutputConfigCount = int(cfgCount) + 1

		f.OutputChannelMasks = make([]uint32, f.OutputConfigCount)
		for i := range f.OutputChannelMasks {
			n, err := r.Read(4)
			if err != nil {
				return err
			}
			w := maskWidth(int(n))
			v, err := r.Read(w)
			if err != nil {
				return err
			}
			f.OutputChannelMasks[i] = v
		}
	}

	return nil
}

func parseAssetDescriptor(r *bits.Reader, extSSIdx, fsizeWidth int) (*AssetDescriptor, error) {
	descLen, err := r.Read(9)
	if err != nil {
		return nil, err
	}
	assetIdx, err := r.Read(3)
	if err != nil {
		return nil, err
	}
	start := r.PositionBits()

	a := &AssetDescriptor{AssetIndex: int(assetIdx)}

	assetType, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	a.AssetType = int(assetType)

	for i := 0; i < 3; i++ {
		v, err := r.Read(8)
		if err != nil {
			return nil, err
		}
		a.Language[i] = byte(v)
	}

	infoLen, err := r.Read(10)
	if err != nil {
		return nil, err
	}
	if int(infoLen) > 1024 {
		return nil, errors.Wrap(ErrRangeViolation, "dtsextss: info text exceeds 1024 bytes")
	}
	a.InfoText = make([]byte, infoLen)
	for i := range a.InfoText {
		v, err := r.Read(8)
		if err != nil {
			return nil, err
		}
		a.InfoText[i] = byte(v)
	}

	bitDepthCode, err := r.Bit()
	if err != nil {
		return nil, err
	}
	a.BitDepth = 16
	if bitDepthCode {
		a.BitDepth = 24
	}

	rateCode, err := r.Read(2)
	if err != nil {
		return nil, err
	}
	rates := [4]int{48000, 96000, 192000, 0}
	a.MaxSampleRateHz = rates[rateCode]
	if a.MaxSampleRateHz == 0 {
		return nil, errors.Wrap(ErrReservedValue, "dtsextss: max sample rate reserved")
	}
	if extSSIdx == 2 && a.MaxSampleRateHz != 48000 {
		return nil, errors.Wrap(ErrComplianceViolation, "dtsextss: secondary asset must be 48kHz")
	}

	chanCode, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	a.TotalChannels = int(chanCode) + 1
	if a.TotalChannels > 8 {
		return nil, errors.Wrap(ErrComplianceViolation, "dtsextss: total channels exceeds 8")
	}
	if a.TotalChannels > 6 && a.MaxSampleRateHz > 96000 {
		return nil, errors.Wrap(ErrComplianceViolation, "dtsextss: >6 channels requires <=96kHz")
	}
	if extSSIdx == 2 && a.TotalChannels > 6 {
		return nil, errors.Wrap(ErrComplianceViolation, "dtsextss: secondary asset limited to 6 channels")
	}
	if a.MaxSampleRateHz == 192000 && a.TotalChannels > 6 {
		return nil, errors.Wrap(ErrComplianceViolation, "dtsextss: 192kHz limited to 6 channels")
	}

	dsf, err := r.Bit()
	if err != nil {
		return nil, err
	}
	a.DirectSpeakerFeed = dsf
	if dsf {
		if err := parseSpeakerFeed(r, a); err != nil {
			return nil, err
		}
	}

	if err := parseAssetDynamic(r, a); err != nil {
		return nil, err
	}

	if err := parseDecoderNavigation(r, a, fsizeWidth); err != nil {
		return nil, err
	}

	if err := r.ByteAlign(); err != nil {
		return nil, err
	}

	consumed := r.PositionBits() - start
	if consumed > int(descLen)*8 {
		return nil, errors.Wrap(ErrRangeViolation, "dtsextss: asset descriptor exceeds its declared length")
	}

	return a, nil
}

func parseSpeakerFeed(r *bits.Reader, a *AssetDescriptor) error {
	n, err := r.Read(4)
	if err != nil {
		return err
	}
	mask, err := r.Read(maskWidth(int(n)))
	if err != nil {
		return err
	}
	a.SpeakerActivityMask = mask

	remapSets, err := r.Read(2)
	if err != nil {
		return err
	}
	a.RemapChannelMasks = make([]uint32, remapSets)
	for i := range a.RemapChannelMasks {
		rn, err := r.Read(4)
		if err != nil {
			return err
		}
		cmask, err := r.Read(maskWidth(int(rn)))
		if err != nil {
			return err
		}
		a.RemapChannelMasks[i] = cmask
		numCoeffs := popcount(cmask)
		if err := r.Skip(numCoeffs * 5); err != nil { // remap coefficient codes, not individually modeled.
			return err
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

func parseAssetDynamic(r *bits.Reader, a *AssetDescriptor) error {
	drcPresent, err := r.Bit()
	if err != nil {
		return err
	}
	if drcPresent {
		if err := r.Skip(8); err != nil {
			return err
		}
	}

	dialogNormPresent, err := r.Bit()
	if err != nil {
		return err
	}
	if dialogNormPresent {
		if err := r.Skip(5); err != nil {
			return err
		}
	}

	mixPresent, err := r.Bit()
	if err != nil {
		return err
	}
	a.DynamicHasMixMetadata = mixPresent
	if mixPresent {
		if err := r.Skip(8); err != nil { // Mix metadata payload, validated for well-formedness only.
			return err
		}
	}
	return nil
}

const (
	componentCoreInExtSS = 1 << 0
	componentXBR         = 1 << 1
	componentXXCH        = 1 << 2
	componentX96         = 1 << 3
	componentLBR         = 1 << 4
	componentXLL         = 1 << 5
)

func parseDecoderNavigation(r *bits.Reader, a *AssetDescriptor, fsizeWidth int) error {
	codingCode, err := r.Read(2)
	if err != nil {
		return err
	}
	a.CodingMode = CodingMode(codingCode)

	switch a.CodingMode {
	case CodingHDComponents:
		mask, err := r.Read(12)
		if err != nil {
			return err
		}
		a.ComponentMask = mask
		for bit := 0; bit < 12; bit++ {
			if mask&(1<<uint(bit)) == 0 {
				continue
			}
			if err := parseComponentEntry(r, a, 1<<uint(bit), fsizeWidth); err != nil {
				return err
			}
		}
	case CodingHDLosslessNoCore:
		a.ComponentMask = componentXLL
		if err := parseComponentEntry(r, a, componentXLL, fsizeWidth); err != nil {
			return err
		}
	case CodingHDLowBitrate:
		a.ComponentMask = componentLBR
		if err := parseComponentEntry(r, a, componentLBR, fsizeWidth); err != nil {
			return err
		}
	case CodingAuxiliary:
		size, err := r.Read(14)
		if err != nil {
			return err
		}
		if err := r.Skip(8); err != nil { // aux codec id.
			return err
		}
		syncPresent, err := r.Bit()
		if err != nil {
			return err
		}
		if syncPresent {
			if err := r.Skip(fsizeWidth); err != nil {
				return err
			}
		}
		_ = size
	default:
		return errors.Wrap(ErrReservedValue, "dtsextss: coding mode reserved")
	}

	drcRev2Present, err := r.Bit()
	if err != nil {
		return err
	}
	if drcRev2Present {
		if err := r.Skip(8); err != nil {
			return err
		}
	}

	return nil
}

func parseComponentEntry(r *bits.Reader, a *AssetDescriptor, component uint32, fsizeWidth int) error {
	if _, err := r.Read(14); err != nil { // component size, not separately modeled.
		return err
	}
	switch component {
	case componentCoreInExtSS:
		a.CoreInExtSS = true
		syncPresent, err := r.Bit()
		if err != nil {
			return err
		}
		if syncPresent {
			off, err := r.Read(fsizeWidth)
			if err != nil {
				return err
			}
			a.CoreSyncOffsetBytes = int(off)
		}
	case componentLBR:
		syncPresent, err := r.Bit()
		if err != nil {
			return err
		}
		if syncPresent {
			if err := r.Skip(fsizeWidth); err != nil {
				return err
			}
		}
	case componentXLL:
		xll := &XLLSubFields{}
		peakCode, err := r.Read(4)
		if err != nil {
			return err
		}
		xll.PeakBufferSizeBytes = (int(peakCode) << 4) * 1024

		delayWidth, err := r.Read(5)
		if err != nil {
			return err
		}
		delay, err := r.Read(int(delayWidth))
		if err != nil {
			return err
		}
		xll.InitialDecodingDelayFrames = int(delay)

		syncPresent, err := r.Bit()
		if err != nil {
			return err
		}
		xll.SyncWordPresent = syncPresent
		if syncPresent {
			off, err := r.Read(fsizeWidth)
			if err != nil {
				return err
			}
			xll.SyncOffsetBytes = int(off)
		}
		a.XLL = xll
	default:
		// XBR/XXCH/X96: size already consumed above, no sub-fields modeled.
	}
	return nil
}
