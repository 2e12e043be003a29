/*
NAME
  commands.go

DESCRIPTION
  commands.go defines the script command set: CopySource, WriteLiteral,
  InsertDataBlock, PaddingFill and ByteOrderSwap.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package script

import (
	"encoding/binary"
	"io"
)

// Command tags identify which command follows in the wire encoding.
const (
	tagCopySource uint8 = iota + 1
	tagWriteLiteral
	tagInsertDataBlock
	tagPaddingFill
	tagByteOrderSwap
)

// Command is one instruction in a PES record's command list.
type Command interface {
	encode(w io.Writer) error
}

// CopySource instructs the muxer to copy Length bytes from SrcOffset in
// source file SrcFileIdx to DstOffset in the output payload.
type CopySource struct {
	DstOffset  uint32
	SrcFileIdx uint8
	SrcOffset  uint64
	Length     uint32
}

func (c CopySource) encode(w io.Writer) error {
	buf := []byte{tagCopySource}
	buf = binary.BigEndian.AppendUint32(buf, c.DstOffset)
	buf = append(buf, c.SrcFileIdx)
	buf = binary.BigEndian.AppendUint64(buf, c.SrcOffset)
	buf = binary.BigEndian.AppendUint32(buf, c.Length)
	_, err := w.Write(buf)
	return err
}

// WriteLiteral instructs the muxer to splice synthesized Data at DstOffset.
type WriteLiteral struct {
	DstOffset uint32
	Data      []byte
}

func (c WriteLiteral) encode(w io.Writer) error {
	buf := []byte{tagWriteLiteral}
	buf = binary.BigEndian.AppendUint32(buf, c.DstOffset)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Data)))
	buf = append(buf, c.Data...)
	_, err := w.Write(buf)
	return err
}

// InsertDataBlock instructs the muxer to splice a previously registered,
// reusable data block (e.g. LPCM's fixed 4-byte per-frame audio-data
// header) at DstOffset. Mode is a codec-defined interpretation hint
// (currently unused by any codec in this module; carried for forward
// compatibility with the LPCM adapter).
type InsertDataBlock struct {
	DstOffset uint32
	Mode      uint8
	BlockID   uint16
}

func (c InsertDataBlock) encode(w io.Writer) error {
	buf := []byte{tagInsertDataBlock}
	buf = binary.BigEndian.AppendUint32(buf, c.DstOffset)
	buf = append(buf, c.Mode)
	buf = binary.BigEndian.AppendUint16(buf, c.BlockID)
	_, err := w.Write(buf)
	return err
}

// PaddingFill instructs the muxer to fill Length bytes at DstOffset with
// ByteValue, repeated. Mode is reserved for future fill strategies.
type PaddingFill struct {
	DstOffset uint32
	Mode      uint8
	Length    uint32
	ByteValue uint8
}

func (c PaddingFill) encode(w io.Writer) error {
	buf := []byte{tagPaddingFill}
	buf = binary.BigEndian.AppendUint32(buf, c.DstOffset)
	buf = append(buf, c.Mode)
	buf = binary.BigEndian.AppendUint32(buf, c.Length)
	buf = append(buf, c.ByteValue)
	_, err := w.Write(buf)
	return err
}

// ByteOrderSwap instructs the muxer to swap the byte order of Length bytes
// at DstOffset in WordSize-byte words (used by LPCM ingest, which shares
// only this emitter with the core codecs).
type ByteOrderSwap struct {
	WordSize  uint8
	DstOffset uint32
	Length    uint32
}

func (c ByteOrderSwap) encode(w io.Writer) error {
	buf := []byte{tagByteOrderSwap}
	buf = append(buf, c.WordSize)
	buf = binary.BigEndian.AppendUint32(buf, c.DstOffset)
	buf = binary.BigEndian.AppendUint32(buf, c.Length)
	_, err := w.Write(buf)
	return err
}
