/*
NAME
  substream.go

DESCRIPTION
  substream.go decodes the MLP substream directory, per-substream restart
  headers (with their shifted-byte CRC-8), block headers, block data
  entropy residuals, and the access-unit terminator.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package mlp

import (
	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/bits"
	"github.com/reelforge/bdamux/crc"
)

const restartCRCPoly = 0x1D // x^8+x^4+x^3+x^2+1, implicit top bit per crc.NewTable8 convention.

var substreamParityTable = crc.NewTable8(restartCRCPoly)

func parseSubstreamDirectory(r *bits.Reader, count int) ([]SubstreamDirEntry, uint16, error) {
	entries := make([]SubstreamDirEntry, 0, count)
	var parity uint16
	for i := 0; i < count; i++ {
		word, err := r.Read(16)
		if err != nil {
			return nil, 0, err
		}
		parity ^= uint16(word)

		e := SubstreamDirEntry{
			ExtraSubstreamWord: word&(1<<15) != 0,
			RestartNonexistent: word&(1<<14) != 0,
			CRCPresent:         word&(1<<13) != 0,
			EndPtrWords:        int(word & 0x0FFF),
		}
		if e.ExtraSubstreamWord {
			extra, err := r.Read(16)
			if err != nil {
				return nil, 0, err
			}
			parity ^= uint16(extra)
			e.DRCGainUpdate = signExtend(int(extra>>7)&0x1FF, 9)
			e.DRCTimeUpdate = int((extra >> 4) & 0x7)
		}
		entries = append(entries, e)
	}
	return entries, parity, nil
}

func signExtend(v, bits int) int {
	m := 1 << (bits - 1)
	return (v ^ m) - m
}

// parseRestartHeader decodes one substream's restart header and verifies
// its shifted-byte CRC-8.
func parseRestartHeader(r *bits.Reader, ssIndex int) (*RestartHeader, error) {
	bitStart := r.PositionBits()

	sync, err := r.Read(14)
	if err != nil {
		return nil, err
	}
	if !restartSyncAllowed(ssIndex, sync) {
		return nil, errors.Wrapf(ErrBadSyncWord, "mlp: restart sync %#x invalid for substream %d", sync, ssIndex)
	}

	outputTiming, err := r.Read(16)
	if err != nil {
		return nil, err
	}
	minChan, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	maxChan, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	if int(maxChan) <= int(minChan) {
		return nil, errors.Wrap(ErrRangeViolation, "mlp: restart max_chan <= min_chan")
	}
	maxMatrixChan, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	if int(maxMatrixChan) > maxMatrix {
		return nil, errors.Wrap(ErrRangeViolation, "mlp: max_matrix_chan exceeds MAX_MATRIX")
	}
	ditherShift, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	ditherSeed, err := r.Read(23)
	if err != nil {
		return nil, err
	}
	maxShiftRaw, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	maxShift := signExtend(int(maxShiftRaw), 4)
	if maxShift < 0 || maxShift > 24 {
		return nil, errors.Wrap(ErrRangeViolation, "mlp: max_shift out of [0,24]")
	}
	maxLSBs, err := r.Read(5)
	if err != nil {
		return nil, err
	}
	if int(maxLSBs) > 24 {
		return nil, errors.Wrap(ErrRangeViolation, "mlp: max_lsbs > 24")
	}
	maxBits1, err := r.Read(5)
	if err != nil {
		return nil, err
	}
	maxBits2, err := r.Read(5)
	if err != nil {
		return nil, err
	}
	if maxBits1 != maxBits2 {
		return nil, errors.Wrap(ErrRangeViolation, "mlp: max_bits fields disagree")
	}
	if int(maxBits1) > 24 {
		return nil, errors.Wrap(ErrRangeViolation, "mlp: max_bits > 24")
	}
	errorProtect, err := r.Bit()
	if err != nil {
		return nil, err
	}
	losslessCheck, err := r.Read(8)
	if err != nil {
		return nil, err
	}
	reserved, err := r.Read(16)
	if err != nil {
		return nil, err
	}
	_ = reserved // Non-zero reserved is a warning, handled by caller (needs Context for one-shot tracking).

	chAssign := make([]int, int(maxMatrixChan)+1)
	for i := range chAssign {
		v, err := r.Read(6)
		if err != nil {
			return nil, err
		}
		if int(v) > int(maxMatrixChan) {
			return nil, errors.Wrap(ErrRangeViolation, "mlp: ch_assign exceeds max_matrix_chan")
		}
		chAssign[i] = int(v)
	}

	crcExpected, err := r.Read(8)
	if err != nil {
		return nil, err
	}

	if err := checkRestartCRC(r, bitStart, r.PositionBits()-8, uint32(sync), uint32(crcExpected)); err != nil {
		return nil, err
	}

	return &RestartHeader{
		OutputTiming:  int(outputTiming),
		MinChan:       int(minChan),
		MaxChan:       int(maxChan),
		MaxMatrixChan: int(maxMatrixChan),
		DitherShift:   int(ditherShift),
		DitherSeed:    int(ditherSeed),
		MaxShift:      maxShift,
		MaxLSBs:       int(maxLSBs),
		MaxBits:       int(maxBits1),
		ErrorProtect:  errorProtect,
		LosslessCheck: int(losslessCheck),
		ChAssign:      chAssign,
	}, nil
}

// checkRestartCRC recomputes the restart header's shifted CRC-8 over the
// region [bitStart, bitEnd) and compares it against expected. The
// containing byte's top 2 bits belong to the frame above and are excluded;
// the first 6 bits consumed are the top 6 bits of the 14-bit
// sync word, which together with the whole bytes and the trailing partial
// byte that follow make up the checksummed region. Rather than splitting
// this into a table-driven run over whole bytes plus a bit-serial tail (two
// operations that are mathematically identical to a single bit-serial run
// over the same bits), this computes the entire region with crc.UpdateBit,
// which folds in one bit at a time regardless of byte alignment.
func checkRestartCRC(r *bits.Reader, bitStart, bitEnd int, sync, expected uint32) error {
	buf := r.Buf()
	var reg uint32
	for pos := bitStart; pos < bitEnd; pos++ {
		byteIdx := pos / 8
		bitIdx := 7 - pos%8
		bit := (buf[byteIdx] >> uint(bitIdx)) & 1
		reg = crc.UpdateBit(reg, 8, restartCRCPoly, uint32(bit))
	}
	if reg != expected {
		return errors.Wrapf(ErrCRCMismatch, "mlp: restart header CRC mismatch (got %#x, want %#x)", reg, expected)
	}
	return nil
}

// parseBlockHeader decodes one block header, applying the restart header's
// presence bitmask semantics. chans holds the substream's running per-channel
// parameter state, updated in place; seg accumulates the per-AU change
// counters checked here and in parseChannelParameters.
func parseBlockHeader(r *bits.Reader, restart *RestartHeader, chans map[int]*ChannelParams, seg *SubstreamSegment) (*BlockHeader, error) {
	contentExists, err := r.Bit()
	if err != nil {
		return nil, err
	}
	content := byte(0xFF)
	if contentExists {
		v, err := r.Read(8)
		if err != nil {
			return nil, err
		}
		content = byte(v)
	}

	bh := &BlockHeader{}

	if content&0x80 != 0 { // block_size_present.
		v, err := r.Read(9)
		if err != nil {
			return nil, err
		}
		bh.BlockSize = int(v)
	}

	if content&0x40 != 0 { // matrix_parameters_present.
		seg.MatrixParamsChanges++
		if seg.MatrixParamsChanges > 1 {
			return nil, errors.Wrap(ErrRangeViolation, "mlp: matrix_parameters present more than once per AU")
		}
		bh.MatrixParamsPresent = true
		mats, err := parseMatrixParameters(r, restart.MinChan, restart.MaxChan)
		if err != nil {
			return nil, err
		}
		bh.Matrices = mats
	}

	if content&0x20 != 0 { // output_shift_present.
		bh.OutputShiftPresent = true
		n := restart.MaxMatrixChan + 1
		bh.OutputShift = make([]int, n)
		for i := 0; i < n; i++ {
			v, err := r.Read(4)
			if err != nil {
				return nil, err
			}
			bh.OutputShift[i] = signExtend(int(v), 4)
		}
	}

	if content&0x10 != 0 { // quant_step_size_present.
		bh.QuantStepSizePresent = true
		n := restart.MaxMatrixChan + 1
		bh.QuantStepSize = make([]int, n)
		for i := 0; i < n; i++ {
			v, err := r.Read(4)
			if err != nil {
				return nil, err
			}
			bh.QuantStepSize[i] = int(v)
		}
	}

	for ch := restart.MinChan; ch <= restart.MaxChan; ch++ {
		present, err := r.Bit()
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		cp, ok := chans[ch]
		if !ok {
			cp = &ChannelParams{}
			chans[ch] = cp
		}
		if err := parseChannelParameters(r, cp, seg, ch); err != nil {
			return nil, err
		}
	}

	return bh, nil
}

func parseMatrixParameters(r *bits.Reader, minChan, maxChan int) ([]MatrixParams, error) {
	count, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	if int(count) > maxMatrices {
		return nil, errors.Wrap(ErrRangeViolation, "mlp: matrix count exceeds MAX_MATRICES")
	}
	mats := make([]MatrixParams, count)
	for i := range mats {
		outCh, err := r.Read(4)
		if err != nil {
			return nil, err
		}
		fracBits, err := r.Read(4)
		if err != nil {
			return nil, err
		}
		bypass, err := r.Bit()
		if err != nil {
			return nil, err
		}
		m := MatrixParams{OutputChan: int(outCh), FracBits: int(fracBits), LSBBypassExists: bypass}

		span := maxChan - minChan + 3 // [min_chan..max_chan+2].
		m.CoeffPresent = make([]bool, span)
		m.Coeff = make([]int, span)
		for c := 0; c < span; c++ {
			present, err := r.Bit()
			if err != nil {
				return nil, err
			}
			m.CoeffPresent[c] = present
			if present {
				v, err := r.Read(2 + m.FracBits)
				if err != nil {
					return nil, err
				}
				m.Coeff[c] = signExtend(int(v), 2+m.FracBits)
			}
		}
		v, err := r.Read(4)
		if err != nil {
			return nil, err
		}
		m.NoiseShift = int(v)
		mats[i] = m
	}
	return mats, nil
}

func parseChannelParameters(r *bits.Reader, cp *ChannelParams, seg *SubstreamSegment, ch int) error {
	firPresent, err := r.Bit()
	if err != nil {
		return err
	}
	if firPresent {
		seg.FIRChanges[ch]++
		if seg.FIRChanges[ch] > 1 {
			return errors.Wrapf(ErrRangeViolation, "mlp: FIR parameters present more than once for channel %d", ch)
		}
		fp, err := parseFilterParameters(r, true)
		if err != nil {
			return err
		}
		cp.FIR = *fp
	}

	iirPresent, err := r.Bit()
	if err != nil {
		return err
	}
	if iirPresent {
		seg.IIRChanges[ch]++
		if seg.IIRChanges[ch] > 1 {
			return errors.Wrapf(ErrRangeViolation, "mlp: IIR parameters present more than once for channel %d", ch)
		}
		fp, err := parseFilterParameters(r, false)
		if err != nil {
			return err
		}
		cp.IIR = *fp
	}

	if cp.FIR.Order+cp.IIR.Order > 8 {
		return errors.Wrap(ErrRangeViolation, "mlp: FIR+IIR order sum exceeds 8")
	}
	if cp.FIR.Present && cp.IIR.Present && cp.FIR.Shift != cp.IIR.Shift {
		return errors.Wrap(ErrRangeViolation, "mlp: FIR/IIR shifts disagree")
	}

	huffOffRaw, err := r.Read(15)
	if err != nil {
		return err
	}
	cp.HuffOffset = signExtend(int(huffOffRaw), 15)

	book, err := r.Read(2)
	if err != nil {
		return err
	}
	cp.HuffCodebook = int(book)

	lsbs, err := r.Read(5)
	if err != nil {
		return err
	}
	if int(lsbs) > 24 {
		return errors.Wrap(ErrRangeViolation, "mlp: num_huffman_lsbs > 24")
	}
	cp.NumHuffLSBs = int(lsbs)

	return nil
}

func parseFilterParameters(r *bits.Reader, fir bool) (*FilterParams, error) {
	order, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	fp := &FilterParams{Present: true, Order: int(order)}
	if fp.Order == 0 {
		return fp, nil
	}
	shift, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	fp.Shift = int(shift)

	coeffBits, err := r.Read(5)
	if err != nil {
		return nil, err
	}
	coeffShift, err := r.Read(4)
	if err != nil {
		return nil, err
	}
	fp.Coeff = make([]int, fp.Order)
	for i := range fp.Coeff {
		v, err := r.Read(int(coeffBits))
		if err != nil {
			return nil, err
		}
		fp.Coeff[i] = signExtend(int(v), int(coeffBits)) << coeffShift
	}

	statePresent, err := r.Bit()
	if err != nil {
		return nil, err
	}
	if statePresent {
		if fir {
			return nil, errors.Wrap(ErrRangeViolation, "mlp: FIR filter state_present is illegal")
		}
		stateBits, err := r.Read(4)
		if err != nil {
			return nil, err
		}
		fp.State = make([]int, fp.Order)
		for i := range fp.State {
			v, err := r.Read(int(stateBits))
			if err != nil {
				return nil, err
			}
			fp.State[i] = signExtend(int(v), int(stateBits))
		}
	}
	return fp, nil
}

// parseBlockData consumes one block's matrix LSB-bypass bits and per-channel
// entropy-coded residuals. It does not reconstruct samples.
func parseBlockData(r *bits.Reader, restart *RestartHeader, bh *BlockHeader, chans map[int]*ChannelParams) error {
	blockSize := bh.BlockSize
	if blockSize == 0 {
		return nil
	}
	for s := 0; s < blockSize; s++ {
		for _, m := range bh.Matrices {
			if m.LSBBypassExists {
				if _, err := r.Bit(); err != nil {
					return err
				}
			}
		}
		for ch := restart.MinChan; ch <= restart.MaxChan; ch++ {
			cp := chans[ch]
			if cp == nil {
				continue
			}
			lsbWidth := cp.NumHuffLSBs
			if cp.HuffCodebook != 0 {
				book := huffmanBooks[cp.HuffCodebook-1]
				_, length, err := lookupHuffman(book, r.Peek)
				if err != nil {
					return err
				}
				if err := r.Skip(length); err != nil {
					return err
				}
			}
			if lsbWidth > 0 {
				if err := r.Skip(lsbWidth); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// parseTerminator decodes the AU terminator if at least 32 bits remain in
// r; the end of the substream segment is not checked.
func parseTerminator(r *bits.Reader) (zeroSamples int, present bool, err error) {
	if r.RemainingBits() < 32 {
		return 0, false, nil
	}
	termA, err := r.Read(18)
	if err != nil {
		return 0, false, err
	}
	if termA != 0x3FFF4 {
		return 0, false, errors.Wrapf(ErrRangeViolation, "mlp: terminatorA %#x != 0x3FFF4", termA)
	}
	zeroIndicated, err := r.Bit()
	if err != nil {
		return 0, false, err
	}
	if zeroIndicated {
		v, err := r.Read(13)
		if err != nil {
			return 0, false, err
		}
		return int(v), true, nil
	}
	termB, err := r.Read(13)
	if err != nil {
		return 0, false, err
	}
	if termB != 0x1234 {
		return 0, false, errors.Wrapf(ErrRangeViolation, "mlp: terminatorB %#x != 0x1234", termB)
	}
	return 0, true, nil
}
