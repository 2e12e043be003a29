/*
NAME
  reslicer_test.go

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package pbr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reelforge/bdamux/codec/dtsxll"
)

func traceOf(t *testing.T, off int64, length int) dtsxll.Trace {
	t.Helper()
	var tr dtsxll.Trace
	require.NoError(t, tr.Add(off, length))
	return tr
}

func TestReslicerSplitsSingleDecodedFrameAcrossTwoOutputs(t *testing.T) {
	var r Reslicer
	r.Feed(dtsxll.PbrFrame{Seq: 0, Trace: traceOf(t, 1000, 100)})

	out1, res1, err := r.Next(60)
	require.NoError(t, err)
	require.Equal(t, 60, out1.TotalLength())
	require.True(t, res1.SyncPresent)
	require.Equal(t, 0, res1.SyncOffsetBytes)
	require.Equal(t, 0, res1.InitialDelay) // seq 0 - emittedCount 0 (before increment).

	out2, res2, err := r.Next(40)
	require.NoError(t, err)
	require.Equal(t, 40, out2.TotalLength())
	require.False(t, res2.SyncPresent) // continuation bytes only, no fresh sync.
}

func TestReslicerCombinesTwoDecodedFramesIntoOneOutput(t *testing.T) {
	var r Reslicer
	r.Feed(
		dtsxll.PbrFrame{Seq: 5, Trace: traceOf(t, 0, 30)},
		dtsxll.PbrFrame{Seq: 6, Trace: traceOf(t, 30, 30)},
	)

	out, res, err := r.Next(40)
	require.NoError(t, err)
	require.Equal(t, 40, out.TotalLength())
	require.True(t, res.SyncPresent)
	require.Equal(t, 0, res.SyncOffsetBytes)
	require.Equal(t, 5, res.InitialDelay)

	out2, res2, err := r.Next(20)
	require.NoError(t, err)
	require.Equal(t, 20, out2.TotalLength())
	require.False(t, res2.SyncPresent) // seq 6's sync byte was already emitted in the first output.
	require.Equal(t, 0, res2.InitialDelay)
}

func TestReslicerStarvedReturnsError(t *testing.T) {
	var r Reslicer
	r.Feed(dtsxll.PbrFrame{Seq: 0, Trace: traceOf(t, 0, 10)})

	_, _, err := r.Next(20)
	require.ErrorIs(t, err, ErrReslicerStarved)
}
