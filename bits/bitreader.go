/*
DESCRIPTION
  bitreader.go provides a big-endian, MSB-first bit reader over a borrowed
  byte buffer, as used by the codec parsers in codec/ac3, codec/mlp and
  codec/dtscore/dtsextss/dtsxll.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package bits provides a bit reader implementation that reads big-endian,
// MSB-first bit fields from a byte buffer held in memory, rather than from
// an io.Reader. Unlike a stream reader, a buffer reader can peek arbitrarily
// far ahead, report its exact bit position, and be constructed fresh for
// every access unit without re-framing.
package bits

import "errors"

// ErrUnexpectedEnd is returned by Read, Peek, Skip, ByteAlign and
// PadToWordBoundary when fewer bits remain in the buffer than requested.
// Unlike a streaming reader, running off the end of the buffer is always a
// hard error; there is no short read and no zero-fill.
var ErrUnexpectedEnd = errors.New("bits: unexpected end of buffer")

// Reader is a big-endian, MSB-first bit reader over a byte buffer that it
// does not own. The zero value is not usable; construct with New.
//
// A Reader is constructed fresh per access unit over a buffer holding
// exactly that access unit's bytes, and discarded once the access unit has
// been fully parsed.
type Reader struct {
	buf     []byte
	byteOff int // Next byte to be consumed from buf.
	bitOff  int // Bit offset within buf[byteOff], 0 == MSB of that byte.
}

// New returns a Reader over buf. buf is not copied and must not be mutated
// while the Reader is in use.
func New(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// totalBits returns the number of bits in the underlying buffer.
func (r *Reader) totalBits() int {
	return len(r.buf) * 8
}

// posBits returns the absolute bit position of the next unread bit.
func (r *Reader) posBits() int {
	return r.byteOff*8 + r.bitOff
}

// Read returns the next n bits (n in [0,32]) as the least-significant bits
// of the result, MSB-first, advancing the reader by n bits. It fails with
// ErrUnexpectedEnd, leaving the reader position unchanged, if fewer than n
// bits remain.
func (r *Reader) Read(n int) (uint32, error) {
	v, err := r.Peek(n)
	if err != nil {
		return 0, err
	}
	r.advance(n)
	return v, nil
}

// Peek returns the next n bits (n in [0,32]) without advancing the reader.
func (r *Reader) Peek(n int) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	if r.posBits()+n > r.totalBits() {
		return 0, ErrUnexpectedEnd
	}
	var v uint64
	byteOff, bitOff, remaining := r.byteOff, r.bitOff, n
	for remaining > 0 {
		avail := 8 - bitOff
		take := avail
		if take > remaining {
			take = remaining
		}
		b := r.buf[byteOff]
		shift := avail - take
		mask := byte((1 << uint(take)) - 1)
		v = v<<uint(take) | uint64((b>>uint(shift))&mask)
		remaining -= take
		bitOff += take
		if bitOff == 8 {
			bitOff = 0
			byteOff++
		}
	}
	return uint32(v), nil
}

// Skip advances the reader by n bits without returning them.
func (r *Reader) Skip(n int) error {
	if r.posBits()+n > r.totalBits() {
		return ErrUnexpectedEnd
	}
	r.advance(n)
	return nil
}

// Bit reads a single bit and returns it as a bool.
func (r *Reader) Bit() (bool, error) {
	v, err := r.Read(1)
	return v == 1, err
}

// ByteAlign advances the reader past any remaining bits of the current
// byte. It is a no-op if the reader is already byte-aligned.
func (r *Reader) ByteAlign() error {
	if r.bitOff == 0 {
		return nil
	}
	return r.Skip(8 - r.bitOff)
}

// PadToWordBoundary advances the reader past the remaining bits of the
// current 16-bit word, counted from the start of the buffer.
func (r *Reader) PadToWordBoundary() error {
	rem := r.posBits() % 16
	if rem == 0 {
		return nil
	}
	return r.Skip(16 - rem)
}

// PositionBits returns the number of bits consumed since construction.
func (r *Reader) PositionBits() int {
	return r.posBits()
}

// BytePos returns the byte offset of the next unread bit. It is only
// meaningful when the reader is byte-aligned.
func (r *Reader) BytePos() int {
	return r.byteOff
}

// RemainingBits returns the number of bits left to read.
func (r *Reader) RemainingBits() int {
	return r.totalBits() - r.posBits()
}

// Buf returns the underlying buffer the reader was constructed over.
func (r *Reader) Buf() []byte {
	return r.buf
}

// advance moves the cursor forward n bits without bounds checking; callers
// must have already verified n bits remain.
func (r *Reader) advance(n int) {
	total := r.bitOff + n
	r.byteOff += total / 8
	r.bitOff = total % 8
}
