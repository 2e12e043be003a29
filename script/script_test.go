/*
NAME
  script_test.go

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package script

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	wr := NewWriter(&buf)
	require.NoError(t, wr.RegisterDataBlock(1, []byte{0x0B, 0x77, 0x00, 0x00}))
	require.NoError(t, wr.WriteHeader(StreamHeader{
		Codec:      CodecAC3,
		Channels:   2,
		SampleRate: SampleRate48k,
		BitDepth:   BitDepth16,
		BitrateBps: 192000,
	}))
	rec := PESRecord{
		PTS:         PTS90kHzTo27MHz(90000),
		IsExtension: false,
		Commands: []Command{
			CopySource{DstOffset: 0, SrcFileIdx: 0, SrcOffset: 0, Length: 768},
			WriteLiteral{DstOffset: 768, Data: []byte{0x01, 0x02}},
			InsertDataBlock{DstOffset: 770, Mode: 0, BlockID: 1},
		},
	}
	require.NoError(t, wr.WritePES(rec))
	require.NoError(t, wr.Close())

	rd := NewReader(&buf)
	hdr, blocks, err := rd.ReadHeader()
	require.NoError(t, err)
	require.True(t, cmp.Equal(StreamHeader{
		Codec:      CodecAC3,
		Channels:   2,
		SampleRate: SampleRate48k,
		BitDepth:   BitDepth16,
		BitrateBps: 192000,
	}, hdr))
	require.Len(t, blocks, 1)
	require.Equal(t, uint16(1), blocks[0].ID)

	got, eof, err := rd.ReadRecord()
	require.NoError(t, err)
	require.False(t, eof)
	require.Equal(t, rec.PTS, got.PTS)
	require.Equal(t, rec.IsExtension, got.IsExtension)
	require.True(t, cmp.Equal(rec.Commands, got.Commands))

	_, eof, err = rd.ReadRecord()
	require.NoError(t, err)
	require.True(t, eof)
}
