/*
NAME
  assembler.go

DESCRIPTION
  assembler.go implements the access-unit assembler state machine: a cell
  under construction (begin/commit/discard), and finalize, which merges
  contiguous copies, classifies the AU and emits the output script's PES
  record for it.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package au

import (
	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/script"
)

// Classification is the content classification of a finalized access unit.
type Classification uint8

const (
	Empty Classification = iota
	CoreSS
	ExtSS
)

// Assembler accumulates cells for the access unit currently being built and
// emits a script.PESRecord for it on Finalize.
type Assembler struct {
	cells    []cell
	building bool
	cur      cell
}

// New returns an empty Assembler.
func New() *Assembler {
	return &Assembler{}
}

// BeginCell opens a new cell of the given kind on the given source file. It
// is an error to begin a cell while one is already open.
func (a *Assembler) BeginCell(kind Kind, srcFileIdx uint8) error {
	if a.building {
		return errors.New("au: cell already under construction")
	}
	a.building = true
	a.cur = cell{kind: kind, srcFileIdx: srcFileIdx}
	return nil
}

// SetSourceRange sets the current cell's source byte range.
func (a *Assembler) SetSourceRange(offset int64, length int) error {
	if !a.building {
		return errors.New("au: no cell under construction")
	}
	a.cur.srcOffset = offset
	a.cur.length = length
	return nil
}

// ReplaceWith marks the current cell as synthesized: its bytes come from r
// rather than from a verbatim source copy. length is the byte length the
// replacement will ultimately produce, used for merge-contiguity and size
// bookkeeping before the replacement is realized.
func (a *Assembler) ReplaceWith(r Replacement, length int) error {
	if !a.building {
		return errors.New("au: no cell under construction")
	}
	a.cur.replacement = r
	a.cur.length = length
	return nil
}

// CommitCell appends the current cell to the access unit and clears the
// "under construction" state.
func (a *Assembler) CommitCell() error {
	if !a.building {
		return errors.New("au: no cell under construction")
	}
	a.cells = append(a.cells, a.cur)
	a.building = false
	a.cur = cell{}
	return nil
}

// DiscardCell clears the "under construction" state without appending.
func (a *Assembler) DiscardCell() error {
	if !a.building {
		return errors.New("au: no cell under construction")
	}
	a.building = false
	a.cur = cell{}
	return nil
}

// classify returns the content classification of the committed cells.
func (a *Assembler) classify() Classification {
	if len(a.cells) == 0 {
		return Empty
	}
	hasCore := false
	for _, c := range a.cells {
		if c.kind == ExtSSHdr {
			return ExtSS
		}
		if c.kind == Core {
			hasCore = true
		}
	}
	if hasCore {
		return CoreSS
	}
	return Empty
}

// merge marks adjacent non-replaced cells whose source ranges are
// physically contiguous as skip=true on all but the first, and extends the
// first's length to cover them, so no two adjacent non-skipped copy cells
// reference contiguous source bytes after finalization. Indices are
// preserved; merged-out cells stay in the slice with skip=true.
func (a *Assembler) merge() {
	lastKept := -1
	for i := range a.cells {
		if a.cells[i].skip {
			continue
		}
		if lastKept >= 0 && a.cells[i].contiguousWith(a.cells[lastKept]) {
			a.cells[lastKept].length += a.cells[i].length
			a.cells[i].skip = true
			continue
		}
		lastKept = i
	}
}

// Finalize requires no cell to be under construction. If the access unit
// has zero cells, it resets silently and reports Empty with no PES record
// written. Otherwise it merges contiguous copies, classifies the AU,
// synthesizes any replacement cells via src, and writes one PESRecord to w.
func (a *Assembler) Finalize(pts uint64, src SourceReader, w *script.Writer) (Classification, error) {
	if a.building {
		return Empty, errors.New("au: cannot finalize with a cell under construction")
	}
	if len(a.cells) == 0 {
		return Empty, nil
	}

	a.merge()
	class := a.classify()

	rec := script.PESRecord{PTS: pts, IsExtension: class == ExtSS}
	dst := uint32(0)
	for _, c := range a.cells {
		if c.skip {
			continue
		}
		if c.replacement != nil {
			b, err := c.replacement.Synthesize(src)
			if err != nil {
				return class, errors.Wrap(err, "au: synthesizing replacement cell")
			}
			rec.Commands = append(rec.Commands, script.WriteLiteral{DstOffset: dst, Data: b})
			dst += uint32(len(b))
			continue
		}
		rec.Commands = append(rec.Commands, script.CopySource{
			DstOffset:  dst,
			SrcFileIdx: c.srcFileIdx,
			SrcOffset:  uint64(c.srcOffset),
			Length:     uint32(c.length),
		})
		dst += uint32(c.length)
	}

	if err := w.WritePES(rec); err != nil {
		return class, errors.Wrap(err, "au: writing PES record")
	}

	a.cells = a.cells[:0]
	return class, nil
}

// ByteLength returns the sum of non-skipped cell lengths in the access unit
// currently held (before or after Finalize has cleared it — call before
// Finalize for a live count). Callers use it to check an access unit's
// total size against a codec's frame-size field before finalizing.
func (a *Assembler) ByteLength() int {
	total := 0
	for _, c := range a.cells {
		if !c.skip {
			total += c.length
		}
	}
	return total
}
