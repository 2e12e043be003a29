/*
NAME
  lpcm.go

DESCRIPTION
  lpcm.go implements the LPCM/WAVE ingest path: a straightforward
  WAVE-to-PES packaging path sharing only the script emitter with the core
  bitstream codecs. It decodes a WAVE file, derives the BDAV stream header fields from
  its format chunk, and emits one PES record per fixed-size access unit,
  synthesizing each frame's LPCM sample data as a little-endian literal that
  a byte-order swap command turns big-endian, plus a reusable per-frame
  audio-data header.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package lpcm packages a WAVE file into the external muxer script, as a
// thin alternative to the bitstream-parsing codecs: it does not parse or
// validate a compressed bitstream, only repackages already-decoded PCM
// samples into BDAV's big-endian per-frame layout.
package lpcm

import (
	"bytes"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/script"
)

// Sentinel error kinds.
var (
	ErrInvalidWAV            = errors.New("lpcm: not a valid WAVE file")
	ErrUnsupportedSampleRate = errors.New("lpcm: sample rate not one of 48/96/192 kHz")
	ErrUnsupportedBitDepth   = errors.New("lpcm: bit depth not one of 16/20/24 bits")
)

// audioHeaderBlockID is the data-block table slot holding the synthesized
// per-frame audio-data header, registered once and referenced by every PES
// record's InsertDataBlock command.
const audioHeaderBlockID = 1

// audioHeaderLen is the fixed per-frame audio-data header size: LPCM's
// 4-byte audio-data header recurs once per frame.
const audioHeaderLen = 4

const pts27MHzHz = 27000000

// Options configures one WAVE-to-script ingest run.
type Options struct {
	// SrcFileIndex is not used by Ingest: LPCM frames are always
	// synthesized as literals rather than copied from the source file,
	// since the source is little-endian and the output is not.
	SrcFileIndex uint8

	// FrameSamples is the number of samples per channel packaged into each
	// access unit. Callers choose this to match the downstream muxer's PES
	// pacing requirements; BDAV does not mandate a fixed access-unit size
	// for LPCM.
	FrameSamples int
}

// Ingest decodes raw, a complete WAVE file, and writes its stream header, a
// single reusable audio-data-header data block, and one PES record per
// opts.FrameSamples-sample access unit to w. It closes w on success.
func Ingest(raw []byte, w *script.Writer, opts Options) error {
	if opts.FrameSamples <= 0 {
		return errors.New("lpcm: FrameSamples must be positive")
	}

	d := wav.NewDecoder(bytes.NewReader(raw))
	if !d.IsValidFile() {
		return ErrInvalidWAV
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return errors.Wrap(err, "lpcm: decoding WAVE PCM data")
	}
	if buf.Format == nil {
		return ErrInvalidWAV
	}

	channels := buf.Format.NumChannels
	sampleRateHz := buf.Format.SampleRate

	srCode, err := sampleRateCode(sampleRateHz)
	if err != nil {
		return err
	}
	bdCode, bytesPerSample, err := bitDepthCode(buf.SourceBitDepth)
	if err != nil {
		return err
	}

	if err := w.RegisterDataBlock(audioHeaderBlockID, audioDataHeader(srCode, bdCode, channels)); err != nil {
		return err
	}
	if err := w.WriteHeader(script.StreamHeader{
		Codec:      script.CodecLPCM,
		Channels:   uint8(channels),
		SampleRate: srCode,
		BitDepth:   bdCode,
		BitrateBps: uint32(sampleRateHz * channels * buf.SourceBitDepth),
	}); err != nil {
		return err
	}

	frameLenSamples := opts.FrameSamples * channels
	if frameLenSamples <= 0 {
		return errors.New("lpcm: stream has no channels")
	}

	samplesPerChannelDone := int64(0)
	for pos := 0; pos < len(buf.Data); pos += frameLenSamples {
		end := pos + frameLenSamples
		if end > len(buf.Data) {
			end = len(buf.Data)
		}
		chunk := buf.Data[pos:end]

		data := make([]byte, 0, len(chunk)*bytesPerSample)
		for _, s := range chunk {
			data = append(data, packLE(s, bytesPerSample)...)
		}

		cmds := []script.Command{
			script.InsertDataBlock{DstOffset: 0, Mode: 0, BlockID: audioHeaderBlockID},
			script.WriteLiteral{DstOffset: audioHeaderLen, Data: data},
			script.ByteOrderSwap{WordSize: uint8(bytesPerSample), DstOffset: audioHeaderLen, Length: uint32(len(data))},
		}

		pts := ptsFromSamples(samplesPerChannelDone, sampleRateHz)
		if err := w.WritePES(script.PESRecord{PTS: pts, Commands: cmds}); err != nil {
			return err
		}
		samplesPerChannelDone += int64(len(chunk) / channels)
	}

	return w.Close()
}

// ptsFromSamples converts a cumulative per-channel sample count at rateHz
// into a 27 MHz PTS tick count, matching the codec drivers' convention.
func ptsFromSamples(samples int64, rateHz int) uint64 {
	if rateHz == 0 {
		return 0
	}
	return uint64(samples) * pts27MHzHz / uint64(rateHz)
}

// packLE packs v's low n bytes in little-endian order. The ByteOrderSwap
// command converts the result to BDAV's big-endian layout once it lands in
// the output payload, so samples are packed in source (native) order here.
func packLE(v int, n int) []byte {
	b := make([]byte, n)
	uv := uint32(v)
	for i := 0; i < n; i++ {
		b[i] = byte(uv >> uint(8*i))
	}
	return b
}

func sampleRateCode(hz int) (script.SampleRateCode, error) {
	switch hz {
	case 48000:
		return script.SampleRate48k, nil
	case 96000:
		return script.SampleRate96k, nil
	case 192000:
		return script.SampleRate192k, nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedSampleRate, "lpcm: got %d Hz", hz)
	}
}

func bitDepthCode(bits int) (script.BitDepthCode, int, error) {
	switch bits {
	case 16:
		return script.BitDepth16, 2, nil
	case 20:
		return script.BitDepth20, 3, nil
	case 24:
		return script.BitDepth24, 3, nil
	default:
		return 0, 0, errors.Wrapf(ErrUnsupportedBitDepth, "lpcm: got %d bits", bits)
	}
}

// audioDataHeader synthesizes the reusable per-frame audio-data header: a
// simplified encoding sufficient for the muxer script's data-block table,
// since the header's full bitfield semantics belong to the downstream
// muxer's codec table, not this ingest adapter.
func audioDataHeader(sr script.SampleRateCode, bd script.BitDepthCode, channels int) []byte {
	return []byte{
		byte(sr)<<6 | byte(bd)<<4 | byte(channels&0x0F),
		0, 0, 0,
	}
}
