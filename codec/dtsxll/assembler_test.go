/*
NAME
  assembler_test.go

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package dtsxll

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// encodeXLLHeader hand-encodes a minimal XLL common header whose decoded
// FrameSizeBytes equals total: sync(32), headerSizeWidth=0(5)+headerSizeBytes(1)=0,
// frameSizeWidth=22(5), frameSizeBytes(23)=total-1, numChanSets(4)=0.
func encodeXLLHeader(total int) []byte {
	type bw struct {
		out   []byte
		acc   uint32
		nbits int
	}
	w := &bw{}
	put := func(v uint32, n int) {
		w.acc = w.acc<<uint(n) | v
		w.nbits += n
		for w.nbits >= 8 {
			shift := w.nbits - 8
			w.out = append(w.out, byte(w.acc>>uint(shift)))
			w.nbits -= 8
			w.acc &= (1 << uint(w.nbits)) - 1
		}
	}
	put(xllSyncWord, 32)
	put(0, 5) // headerSizeWidth=0 -> headerSizeBytes width 1 bit.
	put(0, 1) // headerSizeBytes field value 0 -> +1 = 1 byte.
	put(22, 5) // frameSizeWidth=22 -> frameSizeBytes field width 23 bits.
	put(uint32(total-1), 23)
	put(0, 4) // numChanSets field value 0 -> +1 = 1.
	if w.nbits > 0 {
		w.out = append(w.out, byte(w.acc<<uint(8-w.nbits)))
	}
	out := make([]byte, total)
	copy(out, w.out)
	return out
}

func TestIngestSingleFrameDecodesImmediately(t *testing.T) {
	a := New(4096)
	frame := encodeXLLHeader(64)

	err := a.Ingest(0, frame, true, 0, 0)
	require.NoError(t, err)

	decoded := a.DecodedFrames()
	require.Len(t, decoded, 1)
	require.Equal(t, 64, decoded[0].Trace.TotalLength())
	require.Equal(t, 0, len(a.Pending()))
}

func TestIngestRespectsDecodeDelay(t *testing.T) {
	a := New(4096)
	frame := encodeXLLHeader(32)

	err := a.Ingest(0, frame, true, 0, 2)
	require.NoError(t, err)
	require.Empty(t, a.DecodedFrames())
	require.Len(t, a.Pending(), 1)

	err = a.Ingest(32, []byte{}, false, 0, 0)
	require.NoError(t, err)
	require.Empty(t, a.DecodedFrames())

	err = a.Ingest(32, []byte{}, false, 0, 0)
	require.NoError(t, err)
	decoded := a.DecodedFrames()
	require.Len(t, decoded, 1)
}

func TestIngestOverflow(t *testing.T) {
	a := New(16)
	err := a.Ingest(0, make([]byte, 32), false, 0, 0)
	require.ErrorIs(t, err, ErrPbrBufferOverflow)
}

func TestTraceAddFullRejected(t *testing.T) {
	var tr Trace
	for i := 0; i < maxTraceRanges; i++ {
		require.NoError(t, tr.Add(int64(i*10), 10))
	}
	require.ErrorIs(t, tr.Add(1000, 1), ErrTraceFull)
}

func TestTraceCollectAndRelativeOffset(t *testing.T) {
	var src Trace
	require.NoError(t, src.Add(100, 10))
	require.NoError(t, src.Add(200, 10))

	var dst Trace
	moved := dst.Collect(&src, 15)
	require.Equal(t, 15, moved)
	require.Equal(t, 5, src.TotalLength())

	pos, ok := dst.RelativeOffset(204)
	require.True(t, ok)
	require.Equal(t, 10+4, pos)
}
