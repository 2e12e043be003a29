/*
NAME
  lpcm_test.go

DESCRIPTION
  lpcm_test.go tests the WAVE-to-script ingest path against a synthesized
  minimal WAVE file.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package lpcm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/reelforge/bdamux/script"
)

// synthWAV builds a minimal valid 16-bit stereo 48kHz WAVE file containing
// nSamples frames (per channel) of a simple ramp, writing the canonical
// RIFF/WAVE chunk layout directly since this package has no WAVE encoder of
// its own to exercise (Ingest only ever decodes WAVE, never writes it).
func synthWAV(t *testing.T, nSamples int) []byte {
	t.Helper()
	const channels, bitDepth, sampleRate = 2, 16, 48000
	bytesPerSample := bitDepth / 8
	blockAlign := channels * bytesPerSample
	dataLen := nSamples * blockAlign

	pcm := make([]byte, dataLen)
	for i := 0; i < nSamples*channels; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(i))
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM format tag.
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitDepth))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)
	return buf.Bytes()
}

func TestIngest(t *testing.T) {
	raw := synthWAV(t, 100)

	var out bytes.Buffer
	sw := script.NewWriter(&out)
	if err := Ingest(raw, sw, Options{SrcFileIndex: 0, FrameSamples: 40}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("Ingest wrote no bytes")
	}
}

func TestIngestRejectsZeroFrameSamples(t *testing.T) {
	raw := synthWAV(t, 10)
	var out bytes.Buffer
	sw := script.NewWriter(&out)
	if err := Ingest(raw, sw, Options{FrameSamples: 0}); err == nil {
		t.Fatal("expected error for FrameSamples <= 0")
	}
}

func TestIngestRejectsGarbage(t *testing.T) {
	var out bytes.Buffer
	sw := script.NewWriter(&out)
	if err := Ingest([]byte("not a wave file"), sw, Options{FrameSamples: 40}); err == nil {
		t.Fatal("expected error for non-WAVE input")
	}
}
