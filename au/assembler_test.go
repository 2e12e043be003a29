/*
NAME
  assembler_test.go

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package au

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reelforge/bdamux/script"
)

type fakeSource struct{ data []byte }

func (f fakeSource) ReadAt(fileIdx uint8, offset int64, length int) ([]byte, error) {
	return f.data[offset : offset+int64(length)], nil
}

func newTestWriter(t *testing.T) (*script.Writer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	w := script.NewWriter(&buf)
	require.NoError(t, w.WriteHeader(script.StreamHeader{Codec: script.CodecDTS}))
	return w, &buf
}

func TestMergeContiguousCopies(t *testing.T) {
	a := New()
	require.NoError(t, a.BeginCell(Core, 0))
	require.NoError(t, a.SetSourceRange(0, 100))
	require.NoError(t, a.CommitCell())

	require.NoError(t, a.BeginCell(Core, 0))
	require.NoError(t, a.SetSourceRange(100, 50))
	require.NoError(t, a.CommitCell())

	require.Equal(t, 150, a.ByteLength())

	w, _ := newTestWriter(t)
	class, err := a.Finalize(0, nil, w)
	require.NoError(t, err)
	require.Equal(t, CoreSS, class)
}

func TestFinalizeEmptyResetsSilently(t *testing.T) {
	a := New()
	w, _ := newTestWriter(t)
	class, err := a.Finalize(0, nil, w)
	require.NoError(t, err)
	require.Equal(t, Empty, class)
}

func TestFinalizeWithOpenCellFails(t *testing.T) {
	a := New()
	require.NoError(t, a.BeginCell(Core, 0))
	w, _ := newTestWriter(t)
	_, err := a.Finalize(0, nil, w)
	require.Error(t, err)
}

func TestReplacementCellSynthesizesLiteral(t *testing.T) {
	a := New()
	src := fakeSource{data: []byte("0123456789")}

	require.NoError(t, a.BeginCell(ExtSSAsset, 0))
	require.NoError(t, a.ReplaceWith(Trace{FileIdx: 0, Ranges: []SourceRange{{Offset: 2, Length: 3}, {Offset: 7, Length: 2}}}, 5))
	require.NoError(t, a.CommitCell())

	w, buf := newTestWriter(t)
	class, err := a.Finalize(0, src, w)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.Equal(t, Empty, class) // No ExtSSHdr cell present, and no Core cell.

	rd := script.NewReader(buf)
	_, _, err = rd.ReadHeader()
	require.NoError(t, err)
	rec, eof, err := rd.ReadRecord()
	require.NoError(t, err)
	require.False(t, eof)
	require.Len(t, rec.Commands, 1)
	lit, ok := rec.Commands[0].(script.WriteLiteral)
	require.True(t, ok)
	require.Equal(t, []byte("23478"), lit.Data)
}

func TestClassificationExtSS(t *testing.T) {
	a := New()
	require.NoError(t, a.BeginCell(ExtSSHdr, 0))
	require.NoError(t, a.SetSourceRange(0, 10))
	require.NoError(t, a.CommitCell())
	require.NoError(t, a.BeginCell(ExtSSAsset, 0))
	require.NoError(t, a.SetSourceRange(10, 90))
	require.NoError(t, a.CommitCell())

	w, _ := newTestWriter(t)
	class, err := a.Finalize(0, nil, w)
	require.NoError(t, err)
	require.Equal(t, ExtSS, class)
}

func TestNoAdjacentContiguousCopiesSurviveMerge(t *testing.T) {
	a := New()
	require.NoError(t, a.BeginCell(Core, 0))
	require.NoError(t, a.SetSourceRange(0, 10))
	require.NoError(t, a.CommitCell())
	require.NoError(t, a.BeginCell(Core, 0))
	require.NoError(t, a.SetSourceRange(10, 10))
	require.NoError(t, a.CommitCell())
	require.NoError(t, a.BeginCell(Core, 0))
	require.NoError(t, a.SetSourceRange(30, 5)) // Gap: not contiguous with previous.
	require.NoError(t, a.CommitCell())

	a.merge()
	kept := 0
	for _, c := range a.cells {
		if !c.skip {
			kept++
		}
	}
	require.Equal(t, 2, kept)
}
