/*
NAME
  reader_test.go

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package dtshd

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func appendChunk(buf []byte, magic string, payload []byte) []byte {
	buf = append(buf, []byte(magic)...)
	lenField := make([]byte, 8)
	binary.BigEndian.PutUint64(lenField, uint64(len(payload)))
	buf = append(buf, lenField...)
	buf = append(buf, payload...)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

// minimalHeaderPayload builds a DTSHDHDR payload: version=0, clockCode=1
// (48kHz), reserved(6)=0, timestamp(40)=0, tcFrameRate=0, flags byte with
// vbr=1,pbrs=0,navi=0,core=0,extss=1,reserved(3)=0, numPresentations=1,
// numExtSS=1.
func minimalHeaderPayload() []byte {
	flags := byte(0)
	flags |= 1 << 7 // vbr
	flags |= 1 << 3 // extss
	return []byte{
		0x00,       // version
		0x01 << 6,  // clockCode=1, reserved(6)=0
		0, 0, 0, 0, 0, // timestamp(40)
		0x00, // tcFrameRate
		flags,
		0x01, // numPresentations
		0x01, // numExtSS
	}
}

func TestReadMinimalContainer(t *testing.T) {
	var buf []byte
	buf = appendChunk(buf, MagicDTSHDHDR, minimalHeaderPayload())

	extssPayload := []byte{0x80, 0, 0, 100, 0, 0, 200, 0, 0, 50}
	buf = appendChunk(buf, MagicEXTSSMD, extssPayload)

	buildPayload := []byte{0, 1, 0, 2, 0, 3, 0, 4}
	buf = appendChunk(buf, MagicBUILDVER, buildPayload)

	streamData := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02}
	buf = appendChunk(buf, MagicSTRMDATA, streamData)

	f, err := Read(buf)
	require.NoError(t, err)

	require.NotNil(t, f.Header)
	require.Equal(t, 48000, f.Header.ReferenceClockHz)
	require.True(t, f.Header.VBR)
	require.True(t, f.Header.ExtSSPresent)
	require.Equal(t, 1, f.Header.PresentationCount)

	require.NotNil(t, f.ExtSSMetadata)
	require.True(t, f.ExtSSMetadata.VBR)
	require.Equal(t, 100, f.ExtSSMetadata.AvgBitrateKbps)
	require.Equal(t, 200, f.ExtSSMetadata.PeakBitrateKbps)
	require.Equal(t, 50, f.ExtSSMetadata.PbrBufferSizeKiB)

	require.NotNil(t, f.BuildVersion)
	require.Equal(t, BuildVersion{Major: 1, Minor: 2, Micro: 3, Build: 4}, *f.BuildVersion)

	require.Equal(t, int64(len(streamData)), f.StreamDataLength)
	require.Equal(t, streamData, buf[f.StreamDataOffset:f.StreamDataOffset+f.StreamDataLength])
}

func TestReadUnknownChunkSkipped(t *testing.T) {
	var buf []byte
	buf = appendChunk(buf, "UNKNCHNK", []byte{1, 2, 3})
	buf = appendChunk(buf, MagicSTRMDATA, []byte{9, 9})

	f, err := Read(buf)
	require.NoError(t, err)
	require.Nil(t, f.Header)
	require.Equal(t, int64(2), f.StreamDataLength)
}

func TestReadDuplicateChunkRejected(t *testing.T) {
	var buf []byte
	buf = appendChunk(buf, MagicDTSHDHDR, minimalHeaderPayload())
	buf = appendChunk(buf, MagicDTSHDHDR, minimalHeaderPayload())

	_, err := Read(buf)
	require.ErrorIs(t, err, ErrDuplicateChunk)
}

func TestReadTruncatedChunkRejected(t *testing.T) {
	buf := []byte(MagicDTSHDHDR)
	lenField := make([]byte, 8)
	binary.BigEndian.PutUint64(lenField, 1000)
	buf = append(buf, lenField...)

	_, err := Read(buf)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestReadCBRExtSSMetadata(t *testing.T) {
	var buf []byte
	payload := []byte{0x00, 0, 0, 123}
	buf = appendChunk(buf, MagicEXTSSMD, payload)
	buf = appendChunk(buf, MagicSTRMDATA, []byte{0})

	f, err := Read(buf)
	require.NoError(t, err)
	require.False(t, f.ExtSSMetadata.VBR)
	require.Equal(t, 123, f.ExtSSMetadata.FixedPayloadSize)
}
