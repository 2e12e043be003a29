/*
NAME
  parser_test.go

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package mlp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reelforge/bdamux/crc"
)

// bitWriter is a tiny MSB-first bit writer used only by tests to construct
// synthetic access units.
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

func TestMissingMajorSyncFirstAU(t *testing.T) {
	w := newBitWriter()
	w.put(0, 4)    // check_nibble.
	w.put(2, 12)   // access_unit_length: minimum.
	w.put(0, 16)   // input_timing.
	w.put(0, 16)   // body, no major sync pattern.
	buf := w.bytes()

	c := NewContext(nil)
	_, err := c.Parse(buf)
	require.ErrorIs(t, err, ErrComplianceViolation)
}

func TestMinorSyncAccessUnitLengthBelowMinimum(t *testing.T) {
	w := newBitWriter()
	w.put(0, 4)
	w.put(1, 12) // below minimum of 2.
	w.put(0, 16)
	buf := w.bytes()
	full := make([]byte, 8)
	copy(full, buf)

	c := NewContext(nil)
	_, err := c.Parse(full)
	require.ErrorIs(t, err, ErrRangeViolation)
}

func TestRestartSyncAllowedTable(t *testing.T) {
	require.True(t, restartSyncAllowed(0, 0x31EA))
	require.False(t, restartSyncAllowed(0, 0x31EB))
	require.True(t, restartSyncAllowed(1, 0x31EA))
	require.True(t, restartSyncAllowed(1, 0x31EB))
	require.True(t, restartSyncAllowed(2, 0x31EB))
	require.True(t, restartSyncAllowed(3, 0x31EC))
	require.False(t, restartSyncAllowed(3, 0x31EA))
}

// buildMinimalAU constructs one complete synthetic access unit: minor sync,
// major sync (mono, 48kHz), a single-substream directory entry, a restart
// header for one channel, one empty block, and no terminator or substream
// CRC.
func buildMinimalAU(t *testing.T) []byte {
	t.Helper()
	body := newBitWriter()

	// Major sync.
	body.put(formatSyncTrueHD, 32)
	formatInfo := uint32(0) // freq code 0 -> 48kHz, all else zero.
	body.put(formatInfo, 32)
	body.put(majorSyncSig, 16)
	body.put(0, 16) // flags.
	body.put(0, 16) // reserved.
	body.put(0, 1)  // variable_bitrate.
	body.put(0, 15) // peak_data_rate.
	body.put(1, 4)  // substream count.
	body.put(0, 2)  // reserved.
	body.put(0, 2)  // extended_substream_info.
	body.put(0, 8)  // substream_info.
	// channel_meaning: 3x (5+6+5) + present(1) + length(4) + reserved(11) = 64.
	body.put(0, 5)
	body.put(0, 6)
	body.put(0, 5)
	body.put(0, 5)
	body.put(0, 6)
	body.put(0, 5)
	body.put(0, 5)
	body.put(0, 6)
	body.put(0, 5)
	body.put(0, 1) // extra_channel_meaning_present.
	body.put(0, 4) // extra_channel_meaning_length.
	body.put(0, 11)

	majorSyncBytes := body.bytes()
	// CRC covers majorSyncBytes as written so far (format_sync..reserved pad).
	crcVal := crc.NewTable16(0x11021, 0xFFFF).Checksum(majorSyncBytes)

	full := newBitWriter()
	for _, b := range majorSyncBytes {
		full.put(uint32(b), 8)
	}
	full.put(crcVal, 16)

	// Substream directory: one entry, no extra word.
	// restart_nonexistent must be false (0) since hasMajor is true.
	dirWord := uint32(0)<<15 | uint32(0)<<14 | uint32(0)<<13 | uint32(0)<<12 | uint32(8)
	full.put(dirWord, 16)

	// Restart header for substream 0, covering channels 0 and 1 (max_chan
	// must exceed min_chan). Apart from max_chan and max_matrix_chan (both
	// 1), every field after the sync word is zero in this minimal fixture,
	// so the CRC can be computed directly from the known bit sequence
	// rather than by reading back a byte-padded snapshot — avoiding any
	// risk of the snapshot's end-of-stream byte padding shifting the
	// bit-serial region checkRestartCRC will later recompute from the
	// assembled buffer.
	const restartSync = 0x31EA
	const restartZeroTailBits = 4 + 23 + 4 + 5 + 5 + 5 + 1 + 8 + 16 + 6 + 6 // dither_shift through ch_assign[1].
	var reg uint32
	feed := func(v uint32, n int) { // MSB first.
		for i := n - 1; i >= 0; i-- {
			reg = crc.UpdateBit(reg, 8, restartCRCPoly, (v>>uint(i))&1)
		}
	}
	feed(restartSync, 14)
	feed(0, 16) // output_timing.
	feed(0, 4)  // min_chan.
	feed(1, 4)  // max_chan.
	feed(1, 4)  // max_matrix_chan.
	feed(0, restartZeroTailBits)

	full.put(restartSync, 14) // sync.
	full.put(0, 16)           // output_timing.
	full.put(0, 4)            // min_chan: 0.
	full.put(1, 4)            // max_chan: 1.
	full.put(1, 4)            // max_matrix_chan: 1.
	full.put(0, 4)            // dither_shift.
	full.put(0, 23)           // dither_seed.
	full.put(0, 4)            // max_shift.
	full.put(0, 5)            // max_lsbs.
	full.put(0, 5)            // max_bits (1st).
	full.put(0, 5)            // max_bits (2nd).
	full.put(0, 1)            // error_protect.
	full.put(0, 8)            // lossless_check.
	full.put(0, 16)           // reserved.
	full.put(0, 6)            // ch_assign[0].
	full.put(0, 6)            // ch_assign[1].
	full.put(reg, 8)          // restart header CRC.

	// Block header: content_exists=1, content=0x00 (no optional sections).
	full.put(1, 1)
	full.put(0, 8)
	// Channel loop: channels 0 and 1, presence=0 for both.
	full.put(0, 1)
	full.put(0, 1)
	// last_block_in_segment.
	full.put(1, 1)

	// Pad to the 16-bit word boundary the parser requires after the last
	// block of a segment. Content so far, including the
	// 32-bit minor sync that will be prepended below, totals 417 bits;
	// the next word boundary is 432, so 15 bits of padding are needed.
	full.put(0, 15)

	payload := full.bytes()

	// Prepend minor sync now that the body length is known.
	auWords := (len(payload) + 4 + 1) / 2 // +4 for minor sync header itself, round up to words.
	head := newBitWriter()
	head.put(0, 4)
	head.put(uint32(auWords), 12)
	head.put(0, 16)
	headBytes := head.bytes()

	out := append(append([]byte{}, headBytes...), payload...)
	for len(out) < auWords*2 {
		out = append(out, 0)
	}
	return out
}

func TestParseMinimalAccessUnit(t *testing.T) {
	buf := buildMinimalAU(t)
	c := NewContext(nil)
	f, err := c.Parse(buf)
	require.NoError(t, err)
	require.True(t, f.HasMajorSync)
	require.NotNil(t, f.MajorSync)
	require.Equal(t, 48000, f.MajorSync.SampleRate)
	require.Len(t, f.Segments, 1)
	require.True(t, f.Segments[0].HasRestart)

	info := Summarize(f)
	require.Equal(t, 48000, info.SamplingFrequency)
}
