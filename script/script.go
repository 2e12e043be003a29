/*
NAME
  script.go

DESCRIPTION
  script.go implements the external muxer script emitter described in the
  access-unit assembler's downstream interface: a stream header record, a
  reusable data-block table, and one PES record per access unit carrying a
  PTS and an ordered command list instructing a downstream PES/TS muxer how
  to assemble the output payload from source byte ranges and synthesized
  literals.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package script implements the serialization of the external muxer script:
// the sequence of stream-header, data-block and per-AU PES records that
// tell a downstream PES/TS muxer which source bytes to copy, which
// synthesized bytes to splice in, and what PTS to stamp each frame with.
package script

import (
	"encoding/binary"
	"io"

	"github.com/Comcast/gots/v2"
	"github.com/pkg/errors"
)

// magic identifies the start of a script stream, written once before the
// stream header record.
var magic = [8]byte{'B', 'D', 'A', 'M', 'U', 'X', 'v', '1'}

// endOfStream is written as the final byte of a script.
const endOfStream = 0xFF

// CodecType identifies the elementary stream codec family a script
// describes.
type CodecType uint8

const (
	CodecAC3 CodecType = iota
	CodecEAC3Secondary
	CodecDTS
	CodecDTSHDHR
	CodecDTSHDMA
	CodecDTSExpress
	CodecLPCM
	CodecMLP
)

// SampleRateCode and BitDepthCode enumerate the only values BDAV allows on
// the output side.
type SampleRateCode uint8

const (
	SampleRate48k SampleRateCode = iota
	SampleRate96k
	SampleRate192k
)

type BitDepthCode uint8

const (
	BitDepth16 BitDepthCode = iota
	BitDepth20
	BitDepth24
)

// StreamHeader is the first record of a script, describing the elementary
// stream as a whole.
type StreamHeader struct {
	Codec      CodecType
	Channels   uint8
	SampleRate SampleRateCode
	BitDepth   BitDepthCode
	BitrateBps uint32
}

// PESRecord is one access unit's worth of script output.
type PESRecord struct {
	// PTS is the 27 MHz presentation timestamp (internal representation;
	// externalized to 90 kHz/33-bit on the wire, matching MPEG-2 PES).
	PTS uint64

	// IsExtension marks an ExtSS (extension) access unit as opposed to a
	// CoreSS (base) one.
	IsExtension bool

	Commands []Command
}

// Writer serializes a script to an underlying io.Writer.
type Writer struct {
	w          io.Writer
	dataBlocks map[uint16][]byte
	order      []uint16
	wroteHdr   bool
}

// NewWriter returns a Writer that emits a script to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, dataBlocks: make(map[uint16][]byte)}
}

// RegisterDataBlock adds data to the script's reusable data-block table
// under id, for later reference from InsertDataBlock commands. Must be
// called before WriteHeader.
func (wr *Writer) RegisterDataBlock(id uint16, data []byte) error {
	if wr.wroteHdr {
		return errors.New("script: data blocks must be registered before WriteHeader")
	}
	if _, ok := wr.dataBlocks[id]; ok {
		return errors.Errorf("script: data block %d already registered", id)
	}
	wr.dataBlocks[id] = data
	wr.order = append(wr.order, id)
	return nil
}

// WriteHeader writes the magic, the stream header record and the data-block
// table. It must be called exactly once, before any WritePES call.
func (wr *Writer) WriteHeader(h StreamHeader) error {
	if wr.wroteHdr {
		return errors.New("script: header already written")
	}
	if _, err := wr.w.Write(magic[:]); err != nil {
		return errors.Wrap(err, "script: writing magic")
	}
	buf := make([]byte, 0, 8)
	buf = append(buf, byte(h.Codec), h.Channels, byte(h.SampleRate), byte(h.BitDepth))
	buf = binary.BigEndian.AppendUint32(buf, h.BitrateBps)
	if _, err := wr.w.Write(buf); err != nil {
		return errors.Wrap(err, "script: writing stream header")
	}
	if err := wr.writeDataBlockTable(); err != nil {
		return err
	}
	wr.wroteHdr = true
	return nil
}

func (wr *Writer) writeDataBlockTable() error {
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(wr.order)))
	if _, err := wr.w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "script: writing data block count")
	}
	for _, id := range wr.order {
		data := wr.dataBlocks[id]
		entry := make([]byte, 0, 8+len(data))
		entry = binary.BigEndian.AppendUint16(entry, id)
		entry = binary.BigEndian.AppendUint32(entry, uint32(len(data)))
		entry = append(entry, data...)
		if _, err := wr.w.Write(entry); err != nil {
			return errors.Wrap(err, "script: writing data block entry")
		}
	}
	return nil
}

// WritePES writes one access unit's PES record.
func (wr *Writer) WritePES(rec PESRecord) error {
	if !wr.wroteHdr {
		return errors.New("script: header not yet written")
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, pesTag)
	var ptsField [5]byte
	gots.InsertPTS(ptsField[:], pts27MHzTo90kHz(rec.PTS))
	buf = append(buf, ptsField[:]...)
	var flags byte
	if rec.IsExtension {
		flags |= flagExtension
	}
	buf = append(buf, flags)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(rec.Commands)))
	if _, err := wr.w.Write(buf); err != nil {
		return errors.Wrap(err, "script: writing PES record header")
	}
	for _, c := range rec.Commands {
		if err := c.encode(wr.w); err != nil {
			return errors.Wrap(err, "script: writing command")
		}
	}
	return nil
}

// Close writes the end-of-stream marker. The Writer must not be used
// afterwards.
func (wr *Writer) Close() error {
	_, err := wr.w.Write([]byte{endOfStream})
	return err
}

// pts27MHzTo90kHz converts the internal 27 MHz PTS clock to the external
// 90 kHz clock carried on the wire.
func pts27MHzTo90kHz(pts27 uint64) uint64 {
	return pts27 / 300
}

// PTS90kHzTo27MHz is the inverse of the wire conversion, exported for
// drivers computing PTS deltas against externally-specified clocks (e.g.
// container timestamps).
func PTS90kHzTo27MHz(pts90 uint64) uint64 {
	return pts90 * 300
}

const (
	pesTag        = 0xAA
	flagExtension = 0x1
)
