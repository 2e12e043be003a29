/*
NAME
  headers_test.go

DESCRIPTION
  headers_test.go tests the sample-rate/bit-depth code classification
  helpers used when building a script.StreamHeader.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package main

import (
	"testing"

	"github.com/reelforge/bdamux/script"
)

func TestSampleRateCodeOf(t *testing.T) {
	tests := []struct {
		hz   int
		want script.SampleRateCode
	}{
		{44100, script.SampleRate48k},
		{48000, script.SampleRate48k},
		{88200, script.SampleRate96k},
		{96000, script.SampleRate96k},
		{176400, script.SampleRate192k},
		{192000, script.SampleRate192k},
	}
	for _, tt := range tests {
		if got := sampleRateCodeOf(tt.hz); got != tt.want {
			t.Errorf("sampleRateCodeOf(%d) = %v, want %v", tt.hz, got, tt.want)
		}
	}
}

func TestBitDepthCodeOf(t *testing.T) {
	tests := []struct {
		bits int
		want script.BitDepthCode
	}{
		{16, script.BitDepth16},
		{20, script.BitDepth20},
		{24, script.BitDepth24},
	}
	for _, tt := range tests {
		if got := bitDepthCodeOf(tt.bits); got != tt.want {
			t.Errorf("bitDepthCodeOf(%d) = %v, want %v", tt.bits, got, tt.want)
		}
	}
}
