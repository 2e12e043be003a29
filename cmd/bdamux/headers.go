/*
NAME
  headers.go

DESCRIPTION
  headers.go derives the external script's StreamHeader record from a
  shallow, header-only parse of the elementary stream's first access unit.
  This classification (which CodecType value a stream is) is a muxer-level
  policy choice the core parsers don't make themselves, so it lives here at
  the CLI boundary.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package main

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/codec/ac3"
	"github.com/reelforge/bdamux/codec/dtscore"
	"github.com/reelforge/bdamux/codec/dtsextss"
	"github.com/reelforge/bdamux/codec/mlp"
	"github.com/reelforge/bdamux/driver"
	"github.com/reelforge/bdamux/script"
)

const (
	dtsCoreSync  = 0x7FFE8001
	dtsExtSSSync = 0x64582025
)

func sync4(buf []byte) uint32 {
	if len(buf) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(buf)
}

// buildStreamHeader parses just enough of buf's leading access unit(s) to
// populate the script's StreamHeader record.
func buildStreamHeader(kind driver.Kind, buf []byte) (script.StreamHeader, error) {
	switch kind {
	case driver.KindAC3, driver.KindEAC3:
		return ac3StreamHeader(buf)
	case driver.KindMLP:
		return mlpStreamHeader(buf)
	case driver.KindDtsCore, driver.KindDtsExtSS:
		return dtsStreamHeader(buf)
	default:
		return script.StreamHeader{}, errors.New("bdamux: cannot build a stream header for an unknown codec kind")
	}
}

func ac3StreamHeader(buf []byte) (script.StreamHeader, error) {
	f, err := ac3.NewContext(nil).Parse(buf)
	if err != nil {
		return script.StreamHeader{}, errors.Wrap(err, "bdamux: parsing leading AC-3/E-AC-3 frame for header")
	}
	codec := script.CodecAC3
	if f.IsEAC3 && f.StreamType == ac3.StreamTypeDependent {
		codec = script.CodecEAC3Secondary
	}
	return script.StreamHeader{
		Codec:      codec,
		Channels:   uint8(f.NbChannels),
		SampleRate: sampleRateCodeOf(f.SampleRate),
		BitDepth:   script.BitDepth16,
		BitrateBps: uint32(f.BitrateKbps) * 1000,
	}, nil
}

func mlpStreamHeader(buf []byte) (script.StreamHeader, error) {
	f, err := mlp.NewContext(nil).Parse(buf)
	if err != nil {
		return script.StreamHeader{}, errors.Wrap(err, "bdamux: parsing leading MLP frame for header")
	}
	info := mlp.Summarize(f)
	return script.StreamHeader{
		Codec:      script.CodecMLP,
		Channels:   uint8(info.NbChannels),
		SampleRate: sampleRateCodeOf(info.SamplingFrequency),
		BitDepth:   bitDepthCodeOf(info.ObservedBitDepth),
		BitrateBps: uint32(info.PeakDataRateBps),
	}, nil
}

func dtsStreamHeader(buf []byte) (script.StreamHeader, error) {
	if sync4(buf) == dtsCoreSync {
		cf, err := dtscore.NewContext().Parse(buf)
		if err != nil {
			return script.StreamHeader{}, errors.Wrap(err, "bdamux: parsing leading DTS Core frame for header")
		}
		rest := buf[cf.FrameBytes:]
		if sync4(rest) != dtsExtSSSync {
			return script.StreamHeader{
				Codec:      script.CodecDTS,
				Channels:   uint8(cf.NbChannels),
				SampleRate: sampleRateCodeOf(cf.SampleRate),
				BitDepth:   bitDepthCodeOf(cf.PCMRBitDepth),
				BitrateBps: uint32(cf.BitRateKbps) * 1000,
			}, nil
		}
		return extSSStreamHeader(rest, cf.NbChannels)
	}
	if sync4(buf) == dtsExtSSSync {
		return extSSStreamHeader(buf, 0)
	}
	return script.StreamHeader{}, errors.New("bdamux: leading bytes match neither DTS Core nor ExtSS sync")
}

func extSSStreamHeader(buf []byte, coreChannels int) (script.StreamHeader, error) {
	f, err := dtsextss.Parse(buf)
	if err != nil {
		return script.StreamHeader{}, errors.Wrap(err, "bdamux: parsing leading DTS ExtSS frame for header")
	}
	codec := script.CodecDTSHDHR
	var channels, bitDepth, sampleRate int
	if len(f.Assets) > 0 {
		a := f.Assets[0]
		channels, bitDepth, sampleRate = a.TotalChannels, a.BitDepth, a.MaxSampleRateHz
		if a.XLL != nil {
			codec = script.CodecDTSHDMA
		}
	}
	if channels == 0 {
		channels = coreChannels
	}
	return script.StreamHeader{
		Codec:      codec,
		Channels:   uint8(channels),
		SampleRate: sampleRateCodeOf(sampleRate),
		BitDepth:   bitDepthCodeOf(bitDepth),
		BitrateBps: 0,
	}, nil
}

func sampleRateCodeOf(hz int) script.SampleRateCode {
	switch {
	case hz >= 176400:
		return script.SampleRate192k
	case hz >= 88200:
		return script.SampleRate96k
	default:
		return script.SampleRate48k
	}
}

func bitDepthCodeOf(bits int) script.BitDepthCode {
	switch {
	case bits >= 24:
		return script.BitDepth24
	case bits >= 20:
		return script.BitDepth20
	default:
		return script.BitDepth16
	}
}
