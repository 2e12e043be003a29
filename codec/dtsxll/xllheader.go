/*
NAME
  xllheader.go

DESCRIPTION
  xllheader.go decodes just enough of the XLL common header to learn one
  decoded frame's byte length. Channel-set sample reconstruction is out of
  scope for this module, which only repositions and resizes XLL frames; it
  is not decoded here, mirroring codec/mlp's block-data handling
  (Huffman/residual bits are consumed, not reconstructed into samples).

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package dtsxll

import (
	"github.com/pkg/errors"

	"github.com/reelforge/bdamux/bits"
)

// ErrBadXLLSync reports a common-header sync mismatch.
var ErrBadXLLSync = errors.New("dtsxll: bad XLL common-header sync word")

const xllSyncWord = 0x41A29547

// CommonHeader carries the subset of the XLL common header this module
// needs: the frame's total byte length, so the assembler can advance its
// PbrFrame bookkeeping and source-position trace by that many bytes.
type CommonHeader struct {
	FrameSizeBytes int
	NumChanSets    int
}

// parseCommonHeader decodes the XLL common header from the start of buf.
func parseCommonHeader(buf []byte) (*CommonHeader, error) {
	r := bits.New(buf)

	sync, err := r.Read(32)
	if err != nil {
		return nil, err
	}
	if sync != xllSyncWord {
		return nil, errors.Wrapf(ErrBadXLLSync, "dtsxll: got %#x", sync)
	}

	headerSizeWidth, err := r.Read(5)
	if err != nil {
		return nil, err
	}
	headerSizeBytes, err := r.Read(int(headerSizeWidth) + 1)
	if err != nil {
		return nil, err
	}

	frameSizeWidth, err := r.Read(5)
	if err != nil {
		return nil, err
	}
	frameSizeBytes, err := r.Read(int(frameSizeWidth) + 1)
	if err != nil {
		return nil, err
	}

	numChanSets, err := r.Read(4)
	if err != nil {
		return nil, err
	}

	if int(headerSizeBytes)+1 > len(buf) {
		return nil, errors.Wrapf(ErrBadXLLSync, "dtsxll: header size %d exceeds available buffer", headerSizeBytes+1)
	}

	return &CommonHeader{
		FrameSizeBytes: int(frameSizeBytes) + 1,
		NumChanSets:    int(numChanSets) + 1,
	}, nil
}
