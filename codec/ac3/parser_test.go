/*
NAME
  parser_test.go

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package ac3

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildAC3Frame constructs a minimal valid classic-AC3 frame with the given
// frmsizecod/fscod/acmod, padded to its declared frame size.
func buildAC3Frame(t *testing.T, frmsizecod, fscod, acmod int, lfeon bool) []byte {
	t.Helper()
	w := newBitWriter()
	w.put(syncWord, 16)
	w.put(0, 16) // crc1
	w.put(uint32(fscod), 2)
	w.put(uint32(frmsizecod), 6)
	w.put(8, 5) // bsid
	w.put(0, 3) // bsmod
	w.put(uint32(acmod), 3)
	if acmod&0x1 != 0 && acmod != 0x1 {
		w.put(0, 2)
	}
	if acmod&0x4 != 0 {
		w.put(0, 2)
	}
	if acmod == 0x2 {
		w.put(0, 2)
	}
	lfe := uint32(0)
	if lfeon {
		lfe = 1
	}
	w.put(lfe, 1)
	w.put(0, 5) // dialnorm
	w.put(0, 1) // compre
	w.put(0, 1) // langcode
	w.put(0, 1) // audprodie
	if acmod == 0 {
		w.put(0, 5)
		w.put(0, 1)
		w.put(0, 1)
		w.put(0, 1)
	}
	w.put(0, 1) // copyrightb
	w.put(0, 1) // origbs
	w.put(0, 1) // timecod1e
	w.put(0, 1) // addbsie
	buf := w.bytes()

	words, _, ok := frameSizeWords(frmsizecod, fscod)
	require.True(t, ok)
	full := make([]byte, words*2)
	copy(full, buf)
	return full
}

func TestParseS1AC3Minimal(t *testing.T) {
	// frmsizecod=20 at fscod=0 (48kHz) gives 768-byte, 192kbps frames.
	buf := buildAC3Frame(t, 20, 0, 0x2, false)
	require.Len(t, buf, 768)

	c := NewContext(nil)
	f, err := c.Parse(buf)
	require.NoError(t, err)
	require.Equal(t, 48000, f.SampleRate)
	require.Equal(t, 768, f.FrameBytes)
	require.Equal(t, 192, f.BitrateKbps)
	require.Equal(t, 2, f.NbChannels)
}

func TestParseS2NonCompliantChange(t *testing.T) {
	c := NewContext(nil)
	first := buildAC3Frame(t, 16, 0, 0x2, false)
	_, err := c.Parse(first)
	require.NoError(t, err)

	second := buildAC3Frame(t, 16, 0, 0x1, false) // acmod changes 2/0 -> 1/0.
	_, err = c.Parse(second)
	require.ErrorIs(t, err, ErrNonCompliantChange)
}

func TestParseBadSyncWord(t *testing.T) {
	c := NewContext(nil)
	_, err := c.Parse([]byte{0x00, 0x00, 0, 0, 0, 0, 0, 0})
	require.ErrorIs(t, err, ErrBadSyncWord)
}

func TestParseReservedFrmsizecod(t *testing.T) {
	w := newBitWriter()
	w.put(syncWord, 16)
	w.put(0, 16)
	w.put(0, 2)
	w.put(40, 6) // 38-63 reserved.
	buf := w.bytes()
	full := make([]byte, 16)
	copy(full, buf)

	c := NewContext(nil)
	_, err := c.Parse(full)
	require.ErrorIs(t, err, ErrReservedValue)
}

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
