/*
NAME
  crc.go

DESCRIPTION
  crc.go provides a table-driven CRC engine for the two polynomial widths
  used by the codec families this module parses (8-bit, for MLP restart
  headers and substream parity; 16-bit, for DTS ExtSS headers and MLP
  major-sync/substream CRCs), plus a Recorder that brackets "everything
  consumed since this point" the way the formats require.

AUTHOR
  Dan Kortschak <dan@ausocean.org>
  Saxon Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package crc provides table-driven CRC-8 and CRC-16 computation and a
// begin/finalize recording helper for brackets that must accumulate bytes
// consumed by a downstream parser after recording starts.
package crc

import "github.com/reelforge/bdamux/bits"

// Table holds a precomputed CRC table for one polynomial, built once and
// reused across every frame of a stream.
type Table struct {
	width uint // 8 or 16.
	poly  uint32
	init  uint32
	entries [256]uint32
}

// NewTable8 builds an 8-bit CRC table for the given polynomial (the
// polynomial's own top bit, x^8, is implicit and not included in poly).
func NewTable8(poly uint8) *Table {
	return newTable(8, uint32(poly)<<0, 0)
}

// NewTable16 builds a 16-bit CRC table for the given polynomial and MSB-first
// convention (as used by DTS ExtSS, poly 0x11021 i.e. x^16+x^12+x^5+1).
func NewTable16(poly uint32, init uint32) *Table {
	return newTable(16, poly, init)
}

func newTable(width uint, poly uint32, init uint32) *Table {
	t := &Table{width: width, poly: poly, init: init}
	top := uint32(1) << (width - 1)
	for i := range t.entries {
		crc := uint32(i) << (width - 8)
		for j := 0; j < 8; j++ {
			if crc&top != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		t.entries[i] = crc & ((1 << width) - 1)
	}
	return t
}

// mask returns the bitmask for the table's width.
func (t *Table) mask() uint32 {
	return (1 << t.width) - 1
}

// Update folds p into crc using t, MSB-first byte order.
func (t *Table) Update(crc uint32, p []byte) uint32 {
	shift := t.width - 8
	for _, b := range p {
		idx := byte(crc>>shift) ^ b
		crc = (t.entries[idx] ^ (crc << 8)) & t.mask()
	}
	return crc
}

// Checksum computes the CRC of p from the table's initial value.
func (t *Table) Checksum(p []byte) uint32 {
	return t.Update(t.init, p)
}

// Recorder brackets a run of bytes consumed by a bits.Reader, beginning at
// the reader's current byte offset and finalizing at its current (later)
// byte-aligned offset. It is the bit-level analogue of "hash.Hash.Write
// everything since I called Reset", expressed as begin/finalize instead of a
// write callback since the region's length isn't known until parsing the
// bits in between has finished.
type Recorder struct {
	table    *Table
	buf      []byte // The buffer being read from; shared with the bits.Reader.
	startOff int
	active   bool
}

// NewRecorder returns a Recorder using table, to be used over the same
// buffer a bits.Reader is reading.
func NewRecorder(table *Table) *Recorder {
	return &Recorder{table: table}
}

// Begin captures r's current byte offset as the start of the region to be
// checksummed. r must be byte-aligned.
func (rec *Recorder) Begin(r *bits.Reader) {
	rec.buf = r.Buf()
	rec.startOff = r.BytePos()
	rec.active = true
}

// Finalize computes the CRC over bytes from the offset captured by Begin up
// to r's current byte offset (r must be byte-aligned) and clears the
// in-use flag.
func (rec *Recorder) Finalize(r *bits.Reader) uint32 {
	end := r.BytePos()
	v := rec.table.Checksum(rec.buf[rec.startOff:end])
	rec.active = false
	return v
}

// FinalizeAndCheck is Finalize followed by a comparison against expected,
// returning a *MismatchError on disagreement.
func (rec *Recorder) FinalizeAndCheck(r *bits.Reader, expected uint32) error {
	if got := rec.Finalize(r); got != expected {
		return &MismatchError{Got: got, Want: expected}
	}
	return nil
}

// InUse reports whether Begin has been called without a matching Finalize.
func (rec *Recorder) InUse() bool {
	return rec.active
}

// UpdateBit folds a single bit into crc under an explicit polynomial and
// register width, MSB-first, under the same convention as Table.Update, so
// folding a byte in bit by bit gives the same result as a table-driven
// update over that byte. It is used by MLP's restart-header CRC, whose
// region need not start or end on a byte boundary (see codec/mlp's
// checkRestartCRC).
func UpdateBit(crc uint32, width uint, poly uint32, bit uint32) uint32 {
	mask := (uint32(1) << width) - 1
	top := ((crc >> (width - 1)) ^ bit) & 1
	crc = (crc << 1) & mask
	if top == 1 {
		crc ^= poly
	}
	return crc & mask
}

// MismatchError reports a CRC verification failure.
type MismatchError struct {
	Got, Want uint32
}

func (e *MismatchError) Error() string {
	return "crc: mismatch"
}
