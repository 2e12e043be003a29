/*
NAME
  reader.go

DESCRIPTION
  reader.go decodes a script written by Writer. It exists primarily to
  support round-trip testing of the emitter; the production consumer of a
  script is the downstream PES/TS muxer, which this module does not
  implement.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package script

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// DataBlockTableEntry is one entry read back from the script's reusable
// data-block table.
type DataBlockTableEntry struct {
	ID   uint16
	Data []byte
}

// Reader decodes a script produced by Writer.
type Reader struct {
	r io.Reader
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadHeader reads and validates the magic, the stream header record and
// the data-block table.
func (rd *Reader) ReadHeader() (StreamHeader, []DataBlockTableEntry, error) {
	var m [8]byte
	if _, err := io.ReadFull(rd.r, m[:]); err != nil {
		return StreamHeader{}, nil, errors.Wrap(err, "script: reading magic")
	}
	if m != magic {
		return StreamHeader{}, nil, errors.New("script: bad magic")
	}
	var hb [8]byte
	if _, err := io.ReadFull(rd.r, hb[:]); err != nil {
		return StreamHeader{}, nil, errors.Wrap(err, "script: reading stream header")
	}
	h := StreamHeader{
		Codec:      CodecType(hb[0]),
		Channels:   hb[1],
		SampleRate: SampleRateCode(hb[2]),
		BitDepth:   BitDepthCode(hb[3]),
		BitrateBps: binary.BigEndian.Uint32(hb[4:8]),
	}
	var cb [2]byte
	if _, err := io.ReadFull(rd.r, cb[:]); err != nil {
		return StreamHeader{}, nil, errors.Wrap(err, "script: reading data block count")
	}
	n := binary.BigEndian.Uint16(cb[:])
	entries := make([]DataBlockTableEntry, 0, n)
	for i := uint16(0); i < n; i++ {
		var eh [6]byte
		if _, err := io.ReadFull(rd.r, eh[:]); err != nil {
			return StreamHeader{}, nil, errors.Wrap(err, "script: reading data block entry header")
		}
		id := binary.BigEndian.Uint16(eh[0:2])
		size := binary.BigEndian.Uint32(eh[2:6])
		data := make([]byte, size)
		if _, err := io.ReadFull(rd.r, data); err != nil {
			return StreamHeader{}, nil, errors.Wrap(err, "script: reading data block payload")
		}
		entries = append(entries, DataBlockTableEntry{ID: id, Data: data})
	}
	return h, entries, nil
}

// ReadRecord reads the next record: either a PESRecord or the end-of-stream
// marker (eof==true).
func (rd *Reader) ReadRecord() (rec PESRecord, eof bool, err error) {
	var tag [1]byte
	if _, err := io.ReadFull(rd.r, tag[:]); err != nil {
		return PESRecord{}, false, errors.Wrap(err, "script: reading record tag")
	}
	if tag[0] == endOfStream {
		return PESRecord{}, true, nil
	}
	if tag[0] != pesTag {
		return PESRecord{}, false, errors.Errorf("script: unknown record tag %#x", tag[0])
	}
	var hdr [8]byte
	if _, err := io.ReadFull(rd.r, hdr[:]); err != nil {
		return PESRecord{}, false, errors.Wrap(err, "script: reading PES record header")
	}
	rec.PTS = PTS90kHzTo27MHz(decodePTS(hdr[0:5]))
	rec.IsExtension = hdr[5]&flagExtension != 0
	count := binary.BigEndian.Uint16(hdr[6:8])
	for i := uint16(0); i < count; i++ {
		cmd, err := decodeCommand(rd.r)
		if err != nil {
			return PESRecord{}, false, err
		}
		rec.Commands = append(rec.Commands, cmd)
	}
	return rec, false, nil
}

// decodePTS reverses gots.InsertPTS's 5-byte, 33-bit marker-bit encoding.
func decodePTS(b []byte) uint64 {
	v := uint64(b[0]&0x0E) << 29
	v |= uint64(b[1]) << 22
	v |= uint64(b[2]&0xFE) << 14
	v |= uint64(b[3]) << 7
	v |= uint64(b[4]&0xFE) >> 1
	return v
}

func decodeCommand(r io.Reader) (Command, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, errors.Wrap(err, "script: reading command tag")
	}
	switch tag[0] {
	case tagCopySource:
		var b [17]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return CopySource{
			DstOffset:  binary.BigEndian.Uint32(b[0:4]),
			SrcFileIdx: b[4],
			SrcOffset:  binary.BigEndian.Uint64(b[5:13]),
			Length:     binary.BigEndian.Uint32(b[13:17]),
		}, nil
	case tagWriteLiteral:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		dst := binary.BigEndian.Uint32(b[0:4])
		n := binary.BigEndian.Uint32(b[4:8])
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		return WriteLiteral{DstOffset: dst, Data: data}, nil
	case tagInsertDataBlock:
		var b [7]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return InsertDataBlock{
			DstOffset: binary.BigEndian.Uint32(b[0:4]),
			Mode:      b[4],
			BlockID:   binary.BigEndian.Uint16(b[5:7]),
		}, nil
	case tagPaddingFill:
		var b [10]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return PaddingFill{
			DstOffset: binary.BigEndian.Uint32(b[0:4]),
			Mode:      b[4],
			Length:    binary.BigEndian.Uint32(b[5:9]),
			ByteValue: b[9],
		}, nil
	case tagByteOrderSwap:
		var b [9]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return ByteOrderSwap{
			WordSize:  b[0],
			DstOffset: binary.BigEndian.Uint32(b[1:5]),
			Length:    binary.BigEndian.Uint32(b[5:9]),
		}, nil
	default:
		return nil, errors.Errorf("script: unknown command tag %#x", tag[0])
	}
}
