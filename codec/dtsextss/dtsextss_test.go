/*
NAME
  dtsextss_test.go

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package dtsextss

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// minimalPrimaryFrame builds a well-formed primary (extSSIdx 0) ExtSS
// descriptor: one audio presentation, one LBR-coded stereo asset, no
// remap/mix metadata.
func minimalPrimaryFrame() *Frame {
	f := &Frame{
		ExtSSIndex:            0,
		HeaderSizeBytes:       1, // overwritten by Rewrite's self-consistent sizing below.
		FrameSizeBytes:        2012,
		ReferenceClockHz:      48000,
		FrameDurationSamples:  512,
		NumAudioPresentations: 1,
		NumAssets:             1,
		ActiveExtSSMask:       []uint32{0x1},
		ActiveAssetMask:       [][]uint32{{0x1}},
	}
	f.Assets = []AssetDescriptor{
		{
			AssetIndex:      0,
			AssetType:       0,
			Language:        [3]byte{'e', 'n', 'g'},
			BitDepth:        16,
			MaxSampleRateHz: 48000,
			TotalChannels:   2,
			CodingMode:      CodingHDLowBitrate,
		},
	}
	return f
}

func TestRewriteParseRoundTrip(t *testing.T) {
	f := minimalPrimaryFrame()

	size, err := HeaderLength(f)
	require.NoError(t, err)
	f.HeaderSizeBytes = size

	buf, err := Rewrite(f)
	require.NoError(t, err)
	require.Len(t, buf, size)

	got, err := Parse(buf)
	require.NoError(t, err)
	require.Equal(t, f.ExtSSIndex, got.ExtSSIndex)
	require.Equal(t, f.HeaderSizeBytes, got.HeaderSizeBytes)
	require.Equal(t, f.FrameSizeBytes, got.FrameSizeBytes)
	require.Equal(t, f.ReferenceClockHz, got.ReferenceClockHz)
	require.Equal(t, f.NumAudioPresentations, got.NumAudioPresentations)
	require.Equal(t, f.NumAssets, got.NumAssets)
	require.Len(t, got.Assets, 1)
	require.Equal(t, 2, got.Assets[0].TotalChannels)
	require.Equal(t, CodingHDLowBitrate, got.Assets[0].CodingMode)
}

func TestParseBadSyncWord(t *testing.T) {
	buf := make([]byte, 32)
	_, err := Parse(buf)
	require.ErrorIs(t, err, ErrBadSyncWord)
}

func TestParseNonPrimarySecondaryIndexRejected(t *testing.T) {
	f := minimalPrimaryFrame()
	f.ExtSSIndex = 1 // neither primary nor secondary.

	size, err := HeaderLength(f)
	require.NoError(t, err)
	f.HeaderSizeBytes = size

	buf, err := Rewrite(f)
	require.NoError(t, err)

	_, err = Parse(buf)
	require.ErrorIs(t, err, ErrComplianceViolation)
}

func TestRewriteRejectsMixMetadata(t *testing.T) {
	f := minimalPrimaryFrame()
	f.Assets[0].DynamicHasMixMetadata = true

	f.HeaderSizeBytes = 64
	_, err := Rewrite(f)
	require.ErrorIs(t, err, ErrMixMetadataNotImplemented)
}

func TestMinMaskCodeRoundTrip(t *testing.T) {
	for _, mask := range []uint32{0x1, 0x3F, 0xFFFF} {
		n := minMaskCode(mask)
		require.LessOrEqual(t, mask, uint32(1)<<uint(maskWidth(n))-1)
	}
}
