/*
NAME
  rewriter.go

DESCRIPTION
  rewriter.go re-encodes a parsed Frame back into a byte-exact ExtSS header:
  every field the parser read is written back verbatim, except the few
  fields the caller may adjust (frame size, timestamp), and the header
  CRC-16 is recomputed over the rewritten content.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package dtsextss

import (
	"github.com/pkg/errors"
)

// bitWriter is an MSB-first bit writer used by Rewrite to reproduce the
// ExtSS header's exact bit layout.
type bitWriter struct {
	out   []byte
	acc   uint32
	nbits int
}

func (w *bitWriter) put(v uint32, n int) error {
	if n < 0 || n > 32 {
		return errors.Wrap(ErrFieldOverflow, "dtsextss: invalid field width")
	}
	if n < 32 && v>>uint(n) != 0 {
		return errors.Wrap(ErrFieldOverflow, "dtsextss: value does not fit field width")
	}
	w.acc = w.acc<<uint(n) | v
	w.nbits += n
	for w.nbits >= 8 {
		shift := w.nbits - 8
		w.out = append(w.out, byte(w.acc>>uint(shift)))
		w.nbits -= 8
		w.acc &= (1 << uint(w.nbits)) - 1
	}
	return nil
}

func (w *bitWriter) byteAlign() {
	if w.nbits > 0 {
		w.out = append(w.out, byte(w.acc<<uint(8-w.nbits)))
		w.nbits = 0
		w.acc = 0
	}
}

// Rewrite re-encodes f into a byte-exact ExtSS header, recomputing the
// header CRC-16 over the reproduced content. It returns ErrFieldOverflow if
// any field's value no longer fits its original bit width (e.g. a caller
// grew FrameSizeBytes past the short-header 16-bit limit without setting
// LongHeaderSizeFlag), and ErrMixMetadataNotImplemented if any asset's
// dynamic section carries mix metadata, which this rewriter does not
// reproduce bit-for-bit.
func Rewrite(f *Frame) ([]byte, error) {
	head, body, err := buildHeader(f)
	if err != nil {
		return nil, err
	}

	target := f.HeaderSizeBytes - 2 // Pad to just before the CRC field.
	for len(head.out)+len(body.out) < target {
		if err := body.put(0, 8); err != nil {
			return nil, err
		}
	}
	if len(head.out)+len(body.out) > target {
		return nil, errors.Wrap(ErrFieldOverflow, "dtsextss: rewritten content exceeds header size")
	}

	// The CRC covers everything from just after user-defined-bits (i.e.
	// body.out), mirroring where Parse's Recorder.Begin is bracketed.
	crcVal := headerCRCTable.Checksum(body.out)

	out := append(append([]byte{}, head.out...), body.out...)
	out = append(out, byte(crcVal>>8), byte(crcVal))
	return out, nil
}

// HeaderLength returns the total byte length f would occupy if rewritten,
// without regard to f.HeaderSizeBytes (which this computes). Callers size a
// frame by calling HeaderLength, assigning the result to HeaderSizeBytes,
// then calling Rewrite.
func HeaderLength(f *Frame) (int, error) {
	head, body, err := buildHeader(f)
	if err != nil {
		return 0, err
	}
	return len(head.out) + len(body.out) + 2, nil
}

// buildHeader writes f's sync/user-defined-bits into head and everything
// from extSSIdx through the asset descriptors and reserved tail into body,
// stopping just before any size-target padding or the CRC field.
func buildHeader(f *Frame) (head, body *bitWriter, err error) {
	for i := range f.Assets {
		if f.Assets[i].DynamicHasMixMetadata {
			return nil, nil, errors.Wrapf(ErrMixMetadataNotImplemented, "dtsextss: asset %d", i)
		}
	}

	head = &bitWriter{}
	if err := head.put(syncWord, 32); err != nil {
		return nil, nil, err
	}
	if err := head.put(uint32(f.UserDefinedBits), 8); err != nil {
		return nil, nil, err
	}

	body = &bitWriter{}
	if err := body.put(uint32(f.ExtSSIndex), 2); err != nil {
		return nil, nil, err
	}
	if err := body.putBool(f.LongHeaderSizeFlag); err != nil {
		return nil, nil, err
	}

	hdrSizeWidth, frameSizeWidth := 8, 16
	if f.LongHeaderSizeFlag {
		hdrSizeWidth, frameSizeWidth = 12, 20
	}
	if err := body.put(uint32(f.HeaderSizeBytes-1), hdrSizeWidth); err != nil {
		return nil, nil, errors.Wrap(ErrFieldOverflow, "dtsextss: header size exceeds field width")
	}
	if err := body.put(uint32(f.FrameSizeBytes-1), frameSizeWidth); err != nil {
		return nil, nil, errors.Wrap(ErrFieldOverflow, "dtsextss: frame size exceeds field width")
	}

	staticPresent := f.ReferenceClockHz != 0
	if err := body.putBool(staticPresent); err != nil {
		return nil, nil, err
	}
	if staticPresent {
		if err := writeStaticFields(body, f); err != nil {
			return nil, nil, err
		}
	}

	for i := range f.Assets {
		if err := writeAssetDescriptor(body, &f.Assets[i], frameSizeWidth); err != nil {
			return nil, nil, errors.Wrapf(err, "dtsextss: asset %d", i)
		}
	}
	body.byteAlign()

	for _, b := range f.ReservedTail {
		if err := body.put(uint32(b), 8); err != nil {
			return nil, nil, err
		}
	}

	return head, body, nil
}

func (w *bitWriter) putBool(b bool) error {
	v := uint32(0)
	if b {
		v = 1
	}
	return w.put(v, 1)
}

func writeStaticFields(w *bitWriter, f *Frame) error {
	clockCode := uint32(2) // 48kHz, the only BDAV-valid value.
	if err := w.put(clockCode, 2); err != nil {
		return err
	}
	durBit := uint32(0)
	if f.FrameDurationSamples == 4096 {
		durBit = 1
	}
	if err := w.put(durBit, 1); err != nil {
		return err
	}
	if err := w.putBool(f.TimestampPresent); err != nil {
		return err
	}
	if f.TimestampPresent {
		if err := w.put(uint32(f.Timestamp>>4), 32); err != nil {
			return err
		}
		if err := w.put(uint32(f.Timestamp&0xF), 4); err != nil {
			return err
		}
	}
	if err := w.put(uint32(f.NumAudioPresentations-1), 3); err != nil {
		return err
	}
	if err := w.put(uint32(f.NumAssets-1), 3); err != nil {
		return err
	}
	for p, mask := range f.ActiveExtSSMask {
		if err := w.put(mask, 8); err != nil {
			return err
		}
		for _, am := range f.ActiveAssetMask[p] {
			if err := w.put(am, 8); err != nil {
				return err
			}
		}
	}
	if err := w.putBool(f.MixMetadataPresent); err != nil {
		return err
	}
	if f.MixMetadataPresent {
		if err := w.put(uint32(f.MixAdjustmentLevel), 2); err != nil {
			return err
		}
		if err := w.put(uint32(f.OutputConfigCount-1), 2); err != nil {
			return err
		}
		for _, mask := range f.OutputChannelMasks {
			n := minMaskCode(mask)
			if err := w.put(uint32(n), 4); err != nil {
				return err
			}
			if err := w.put(mask, maskWidth(n)); err != nil {
				return err
			}
		}
	}
	return nil
}

// minMaskCode returns the smallest n such that mask fits in maskWidth(n)
// bits, the inverse of the width computation parseStaticFields applies when
// decoding an output-channel mask.
func minMaskCode(mask uint32) int {
	for n := 0; n < 16; n++ {
		if mask>>uint(maskWidth(n)) == 0 {
			return n
		}
	}
	return 15
}

func writeAssetDescriptor(w *bitWriter, a *AssetDescriptor, fsizeWidth int) error {
	inner := &bitWriter{}

	if err := inner.put(uint32(a.AssetType), 4); err != nil {
		return err
	}
	for _, b := range a.Language {
		if err := inner.put(uint32(b), 8); err != nil {
			return err
		}
	}
	if err := inner.put(uint32(len(a.InfoText)), 10); err != nil {
		return err
	}
	for _, b := range a.InfoText {
		if err := inner.put(uint32(b), 8); err != nil {
			return err
		}
	}
	bitDepthBit := uint32(0)
	if a.BitDepth == 24 {
		bitDepthBit = 1
	}
	if err := inner.put(bitDepthBit, 1); err != nil {
		return err
	}
	rateCode, err := encodeSampleRate(a.MaxSampleRateHz)
	if err != nil {
		return err
	}
	if err := inner.put(rateCode, 2); err != nil {
		return err
	}
	if err := inner.put(uint32(a.TotalChannels-1), 4); err != nil {
		return err
	}
	if err := inner.putBool(a.DirectSpeakerFeed); err != nil {
		return err
	}
	if a.DirectSpeakerFeed {
		n := minMaskCode(a.SpeakerActivityMask)
		if err := inner.put(uint32(n), 4); err != nil {
			return err
		}
		if err := inner.put(a.SpeakerActivityMask, maskWidth(n)); err != nil {
			return err
		}
		if err := inner.put(uint32(len(a.RemapChannelMasks)), 2); err != nil {
			return err
		}
		for _, cmask := range a.RemapChannelMasks {
			rn := minMaskCode(cmask)
			if err := inner.put(uint32(rn), 4); err != nil {
				return err
			}
			if err := inner.put(cmask, maskWidth(rn)); err != nil {
				return err
			}
			numCoeffs := popcount(cmask)
			if err := inner.put(0, numCoeffs*5); err != nil {
				return err
			}
		}
	}

	// Dynamic section: no DRC/dialnorm/mix metadata reproduced (mix
	// metadata is rejected earlier in Rewrite; DRC and dialnorm are not
	// retained by Parse, so they are always rewritten absent).
	if err := inner.putBool(false); err != nil {
		return err
	}
	if err := inner.putBool(false); err != nil {
		return err
	}
	if err := inner.putBool(false); err != nil {
		return err
	}

	if err := writeDecoderNavigation(inner, a, fsizeWidth); err != nil {
		return err
	}
	inner.byteAlign()

	if err := w.put(uint32(len(inner.out)), 9); err != nil {
		return errors.Wrap(ErrFieldOverflow, "dtsextss: asset descriptor exceeds 9-bit length field")
	}
	if err := w.put(uint32(a.AssetIndex), 3); err != nil {
		return err
	}
	for _, b := range inner.out {
		if err := w.put(uint32(b), 8); err != nil {
			return err
		}
	}
	return nil
}

func encodeSampleRate(hz int) (uint32, error) {
	switch hz {
	case 48000:
		return 0, nil
	case 96000:
		return 1, nil
	case 192000:
		return 2, nil
	default:
		return 0, errors.Wrapf(ErrRangeViolation, "dtsextss: unsupported sample rate %d", hz)
	}
}

func writeDecoderNavigation(w *bitWriter, a *AssetDescriptor, fsizeWidth int) error {
	if err := w.put(uint32(a.CodingMode), 2); err != nil {
		return err
	}
	switch a.CodingMode {
	case CodingHDComponents:
		if err := w.put(a.ComponentMask, 12); err != nil {
			return err
		}
		for bit := 0; bit < 12; bit++ {
			if a.ComponentMask&(1<<uint(bit)) == 0 {
				continue
			}
			if err := writeComponentEntry(w, a, 1<<uint(bit), fsizeWidth); err != nil {
				return err
			}
		}
	case CodingHDLosslessNoCore:
		if err := writeComponentEntry(w, a, componentXLL, fsizeWidth); err != nil {
			return err
		}
	case CodingHDLowBitrate:
		if err := writeComponentEntry(w, a, componentLBR, fsizeWidth); err != nil {
			return err
		}
	case CodingAuxiliary:
		if err := w.put(0, 14); err != nil {
			return err
		}
		if err := w.put(0, 8); err != nil {
			return err
		}
		if err := w.putBool(false); err != nil {
			return err
		}
	default:
		return errors.Wrap(ErrReservedValue, "dtsextss: coding mode reserved")
	}
	return w.putBool(false) // extended DRC rev2, not reproduced.
}

func writeComponentEntry(w *bitWriter, a *AssetDescriptor, component uint32, fsizeWidth int) error {
	if err := w.put(0, 14); err != nil { // component size, recomputed by the caller's container layer.
		return err
	}
	switch component {
	case componentCoreInExtSS:
		if err := w.putBool(a.CoreSyncOffsetBytes != 0); err != nil {
			return err
		}
		if a.CoreSyncOffsetBytes != 0 {
			return w.put(uint32(a.CoreSyncOffsetBytes), fsizeWidth)
		}
	case componentLBR:
		return w.putBool(false)
	case componentXLL:
		if a.XLL == nil {
			return errors.Wrap(ErrRangeViolation, "dtsextss: XLL coding mode with no XLL sub-fields")
		}
		peakCode := uint32(a.XLL.PeakBufferSizeBytes/1024) >> 4
		if err := w.put(peakCode, 4); err != nil {
			return err
		}
		delayWidth := bitWidth(a.XLL.InitialDecodingDelayFrames)
		if err := w.put(uint32(delayWidth), 5); err != nil {
			return err
		}
		if err := w.put(uint32(a.XLL.InitialDecodingDelayFrames), delayWidth); err != nil {
			return err
		}
		if err := w.putBool(a.XLL.SyncWordPresent); err != nil {
			return err
		}
		if a.XLL.SyncWordPresent {
			return w.put(uint32(a.XLL.SyncOffsetBytes), fsizeWidth)
		}
	default:
		// XBR/XXCH/X96: size already written above, no sub-fields modeled.
	}
	return nil
}

func bitWidth(v int) int {
	n := 0
	for v != 0 {
		n++
		v >>= 1
	}
	if n == 0 {
		n = 1
	}
	return n
}
