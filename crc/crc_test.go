/*
NAME
  crc_test.go

AUTHOR
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package crc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reelforge/bdamux/bits"
)

func TestTable16KnownVector(t *testing.T) {
	// CRC-16/XMODEM (poly 0x1021, init 0x0000) of "123456789" is 0x31C3.
	table := NewTable16(0x1021, 0x0000)
	got := table.Checksum([]byte("123456789"))
	require.EqualValues(t, 0x31C3, got)
}

func TestRecorderBeginFinalize(t *testing.T) {
	table := NewTable16(0x1021, 0x0000)
	buf := []byte("123456789\x00\x00")
	r := bits.New(buf)
	rec := NewRecorder(table)

	rec.Begin(r)
	require.NoError(t, r.Skip(9*8))
	got := rec.Finalize(r)
	require.EqualValues(t, 0x31C3, got)
	require.False(t, rec.InUse())
}

func TestFinalizeAndCheckMismatch(t *testing.T) {
	table := NewTable16(0x1021, 0x0000)
	buf := []byte("123456789")
	r := bits.New(buf)
	rec := NewRecorder(table)
	rec.Begin(r)
	require.NoError(t, r.Skip(len(buf)*8))
	err := rec.FinalizeAndCheck(r, 0xFFFF)
	require.Error(t, err)
}

func TestUpdateBitMatchesByteTable(t *testing.T) {
	// Folding a byte in bit-by-bit with UpdateBit must match the
	// table-driven single-byte update for the same polynomial/width.
	table := NewTable8(0x1D) // x^8+x^4+x^3+x^2+1 without implicit top bit.
	b := byte(0xA5)
	want := table.Update(0, []byte{b})

	got := uint32(0)
	for i := 7; i >= 0; i-- {
		bit := uint32((b >> uint(i)) & 1)
		got = UpdateBit(got, 8, 0x1D, bit)
	}
	require.Equal(t, want, got)
}
