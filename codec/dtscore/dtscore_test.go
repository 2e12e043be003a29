/*
NAME
  dtscore_test.go

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package dtscore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// bitWriter is a tiny MSB-first bit writer used only by tests to construct
// synthetic frames.
type bitWriter struct {
	bytes_ []byte
	bitbuf uint32
	nbits  int
}

func newBitWriter() *bitWriter { return &bitWriter{} }

func (w *bitWriter) put(v uint32, n int) {
	w.bitbuf = w.bitbuf<<uint(n) | (v & ((1 << uint(n)) - 1))
	w.nbits += n
	for w.nbits >= 8 {
		shift := w.nbits - 8
		w.bytes_ = append(w.bytes_, byte(w.bitbuf>>uint(shift)))
		w.nbits -= 8
		w.bitbuf &= (1 << uint(w.nbits)) - 1
	}
}

func (w *bitWriter) bytes() []byte {
	if w.nbits > 0 {
		w.bytes_ = append(w.bytes_, byte(w.bitbuf<<uint(8-w.nbits)))
		w.nbits = 0
	}
	return w.bytes_
}

// buildCoreFrame writes a minimal DTS Core header: FTYPE normal, SHORT=31,
// NBLKS=15 (16 blocks), FSIZE, AMODE=9 plus LFF=1 (5.1), SFREQ for 48kHz,
// the given bit-rate code, VERNUM=0 (no dialnorm field).
func buildCoreFrame(t *testing.T, fsize, rateCode int) []byte {
	t.Helper()
	w := newBitWriter()
	w.put(syncWord, 32)
	w.put(1, 1)  // FTYPE: 1 = normal.
	w.put(0, 5)  // DSYNC/deficit, not modeled.
	w.put(31, 7) // SHORT -> SamplesPerBlock = 32.
	w.put(0, 1)  // CPF.
	w.put(15, 7) // NBLKS -> NumBlocks = 16.
	w.put(uint32(fsize-1), 14)
	w.put(9, 6) // AMODE: C+L+R+SL+SR.
	w.put(12, 4) // SFREQ: 48kHz.
	w.put(uint32(rateCode), 5)
	w.put(1, 1) // FIXEDBIT.
	w.put(0, 1) // DYNF.
	w.put(0, 1) // AUX.
	w.put(0, 1) // HDCD.
	w.put(0, 3) // EXT_AUDIO_ID.
	w.put(0, 1) // EXT_AUDIO.
	w.put(0, 1) // ASPF.
	w.put(1, 2) // LFF: LFE present.
	w.put(0, 1) // HFLAG.
	w.put(0, 1) // FILTS.
	w.put(0, 4) // VERNUM: 0.
	w.put(0, 2) // CHIST.
	w.put(0, 3) // PCMR: 16-bit.
	w.put(0, 1) // SUMF.
	w.put(0, 1) // SUMS.
	buf := w.bytes()
	full := make([]byte, fsize)
	copy(full, buf)
	return full
}

func TestParseS3DTSCoreSingleFrame(t *testing.T) {
	buf := buildCoreFrame(t, 2012, 22) // rate code 22 -> 1411kbps, close to S3's 1509.75kbps DTS Core rate.
	c := NewContext()
	f, err := c.Parse(buf)
	require.NoError(t, err)
	require.Equal(t, 48000, f.SampleRate)
	require.Equal(t, 2012, f.FrameBytes)
	require.Equal(t, 6, f.NbChannels)
	require.Equal(t, 16, f.NumBlocks)
	require.Equal(t, 32, f.SamplesPerBlock)
}

func TestParseFSIZERangeViolation(t *testing.T) {
	buf := buildCoreFrame(t, 95, 20)
	c := NewContext()
	_, err := c.Parse(buf)
	require.ErrorIs(t, err, ErrRangeViolation)
}

func TestParseBadSyncWord(t *testing.T) {
	c := NewContext()
	_, err := c.Parse([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	require.ErrorIs(t, err, ErrBadSyncWord)
}

func TestParseOpenBitRateRejected(t *testing.T) {
	buf := buildCoreFrame(t, 2012, 29) // 29 == open rate code.
	c := NewContext()
	_, err := c.Parse(buf)
	require.ErrorIs(t, err, ErrComplianceViolation)
}

func TestParseNonCompliantChangeAcrossFrames(t *testing.T) {
	c := NewContext()
	first := buildCoreFrame(t, 2012, 20)
	_, err := c.Parse(first)
	require.NoError(t, err)

	w := newBitWriter()
	w.put(syncWord, 32)
	w.put(1, 1)
	w.put(0, 5)
	w.put(31, 7)
	w.put(0, 1)
	w.put(15, 7)
	w.put(uint32(2012-1), 14)
	w.put(2, 6) // AMODE changes to stereo.
	w.put(12, 4)
	w.put(20, 5)
	w.put(1, 1)
	w.put(0, 1)
	w.put(0, 1)
	w.put(0, 1)
	w.put(0, 3)
	w.put(0, 1)
	w.put(0, 1)
	w.put(0, 2)
	w.put(0, 1)
	w.put(0, 1)
	w.put(0, 4)
	w.put(0, 2)
	w.put(0, 3)
	w.put(0, 1)
	w.put(0, 1)
	buf := w.bytes()
	full := make([]byte, 2012)
	copy(full, buf)

	_, err = c.Parse(full)
	require.ErrorIs(t, err, ErrNonCompliantChange)
}
