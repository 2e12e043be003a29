/*
DESCRIPTION
  bitreader_test.go provides testing for functionality in bitreader.go.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package bits

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestReadSequence(t *testing.T) {
	// 1000 1111, 1110 0011
	r := New([]byte{0x8f, 0xe3})

	v, err := r.Read(4)
	require.NoError(t, err)
	require.EqualValues(t, 0x8, v)

	v, err = r.Read(2)
	require.NoError(t, err)
	require.EqualValues(t, 0x3, v)

	v, err = r.Read(4)
	require.NoError(t, err)
	require.EqualValues(t, 0xf, v)

	v, err = r.Read(6)
	require.NoError(t, err)
	require.EqualValues(t, 0x23, v)
}

func TestPeekDoesNotAdvance(t *testing.T) {
	r := New([]byte{0x8f, 0xe3})

	v, err := r.Peek(8)
	require.NoError(t, err)
	require.EqualValues(t, 0x8f, v)

	require.Zero(t, r.PositionBits())

	v, err = r.Read(8)
	require.NoError(t, err)
	require.EqualValues(t, 0x8f, v)
}

func TestUnexpectedEnd(t *testing.T) {
	r := New([]byte{0xff})
	_, err := r.Read(9)
	require.ErrorIs(t, err, ErrUnexpectedEnd)
	// Position must not move on a failed read.
	require.Zero(t, r.PositionBits())
}

func TestByteAlign(t *testing.T) {
	r := New([]byte{0xff, 0x00})
	_, err := r.Read(3)
	require.NoError(t, err)
	require.NoError(t, r.ByteAlign())
	require.EqualValues(t, 8, r.PositionBits())
}

func TestPadToWordBoundary(t *testing.T) {
	r := New([]byte{0xff, 0xff, 0x00, 0x00})
	_, err := r.Read(20)
	require.NoError(t, err)
	require.NoError(t, r.PadToWordBoundary())
	require.EqualValues(t, 32, r.PositionBits())
}

// TestReadPeekRoundTrip checks that reading n bits always equals peeking n
// bits immediately before the read, for arbitrary buffers and read plans.
func TestReadPeekRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		buf := rapid.SliceOfN(rapid.Byte(), 1, 32).Draw(rt, "buf")
		r := New(buf)
		total := len(buf) * 8
		consumed := 0
		for consumed < total {
			maxN := total - consumed
			if maxN > 32 {
				maxN = 32
			}
			n := rapid.IntRange(0, maxN).Draw(rt, "n")
			peeked, err := r.Peek(n)
			require.NoError(rt, err)
			read, err := r.Read(n)
			require.NoError(rt, err)
			require.Equal(rt, peeked, read)
			consumed += n
		}
		require.Equal(rt, total, r.PositionBits())
		require.Zero(rt, r.RemainingBits())
	})
}
