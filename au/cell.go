/*
NAME
  cell.go

DESCRIPTION
  cell.go defines the access-unit cell model: an ordered sequence of
  either (copy N bytes from a source offset) or (splice N synthesized
  bytes) operations that together describe one output PES payload.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

// Package au implements the access-unit assembler: it holds the ordered
// list of cells for the AU currently under construction, merges
// contiguous source copies on finalization, classifies the AU's content,
// and drives emission of the output script's PES record.
package au

// Kind identifies what a cell's bytes represent in the output payload.
type Kind uint8

const (
	// Core is a DTS Core (or AC3/E-AC3/MLP, which have no substream split)
	// frame body cell.
	Core Kind = iota
	// ExtSSHdr is a DTS Extension Substream header cell.
	ExtSSHdr
	// ExtSSAsset is a DTS Extension Substream per-asset payload cell.
	ExtSSAsset
)

// SourceReader reads raw bytes from an input file by index, used by
// Replacement implementations that must read back original source bytes to
// synthesize a replacement (notably the XLL reslicing trace).
type SourceReader interface {
	ReadAt(fileIdx uint8, offset int64, length int) ([]byte, error)
}

// Replacement produces the literal bytes for a cell that does not copy a
// single contiguous source range verbatim.
type Replacement interface {
	// Synthesize returns the bytes this replacement contributes to the
	// output payload.
	Synthesize(src SourceReader) ([]byte, error)
}

// Literal is a Replacement that already holds its bytes (used for a
// rewritten ExtSS header).
type Literal struct {
	Bytes []byte
}

// Synthesize implements Replacement.
func (l Literal) Synthesize(SourceReader) ([]byte, error) {
	return l.Bytes, nil
}

// SourceRange is one (offset, length) span to be read from a source file,
// used by Trace.
type SourceRange struct {
	Offset int64
	Length int
}

// Trace is a Replacement that reconstructs its bytes by concatenating
// ranges read back from a source file — the shape produced by the XLL
// source-file-position trace after PBR reslicing.
type Trace struct {
	FileIdx uint8
	Ranges  []SourceRange
}

// Synthesize implements Replacement.
func (t Trace) Synthesize(src SourceReader) ([]byte, error) {
	total := 0
	for _, rg := range t.Ranges {
		total += rg.Length
	}
	out := make([]byte, 0, total)
	for _, rg := range t.Ranges {
		b, err := src.ReadAt(t.FileIdx, rg.Offset, rg.Length)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// cell is one entry in an access unit's cell list.
type cell struct {
	kind        Kind
	srcFileIdx  uint8
	srcOffset   int64
	length      int
	skip        bool
	replacement Replacement
}

// contiguousWith reports whether c directly follows prev in source order
// with no gap, on the same source file, and neither is a replacement — the
// condition under which the two may be merged into a single copy.
func (c cell) contiguousWith(prev cell) bool {
	if c.replacement != nil || prev.replacement != nil {
		return false
	}
	if c.srcFileIdx != prev.srcFileIdx {
		return false
	}
	return prev.srcOffset+int64(prev.length) == c.srcOffset
}
