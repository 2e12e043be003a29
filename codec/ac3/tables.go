/*
NAME
  tables.go

DESCRIPTION
  tables.go provides the AC-3/E-AC-3 lookup tables: frmsizecod -> frame size
  in 16-bit words and bitrate, fscod -> sample rate, and acmod(+lfeon) ->
  channel count.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package ac3

// sampleRates indexes fscod (0..2); fscod==3 is reserved in AC3, and in
// E-AC-3 selects fscod2 instead (see parser.go).
var sampleRates = [3]int{48000, 44100, 32000}

// frameSizeEntry is one row of the frmsizecod table.
type frameSizeEntry struct {
	bitrateKbps int
	words       [3]int // indexed by fscod.
}

// frmsizecodTable is generated at init from the AC-3 frame-size formula:
// words = bitrate_kbps * 1000 * 1536 / (sample_rate * 16), which is exact
// for 48kHz and 32kHz and requires the classic even/odd "+1 word" code pair
// at 44.1kHz to average out the fractional remainder across two frames.
var frmsizecodTable [38]frameSizeEntry

var bitratesKbps = [19]int{
	32, 40, 48, 56, 64, 80, 96, 112, 128, 160,
	192, 224, 256, 320, 384, 448, 512, 576, 640,
}

func init() {
	for i, br := range bitratesKbps {
		w48 := br * 1000 * 1536 / (48000 * 16)
		w32 := br * 1000 * 1536 / (32000 * 16)
		w44 := br * 1000 * 1536 / (44100 * 16)
		frmsizecodTable[2*i] = frameSizeEntry{bitrateKbps: br, words: [3]int{w48, w44, w32}}
		frmsizecodTable[2*i+1] = frameSizeEntry{bitrateKbps: br, words: [3]int{w48, w44 + 1, w32}}
	}
}

// frameSizeWords looks up the frame size in 16-bit words for a given
// frmsizecod and fscod. ok is false for reserved frmsizecod values (38-63).
func frameSizeWords(frmsizecod, fscod int) (words, kbps int, ok bool) {
	if frmsizecod < 0 || frmsizecod >= len(frmsizecodTable) {
		return 0, 0, false
	}
	e := frmsizecodTable[frmsizecod]
	return e.words[fscod], e.bitrateKbps, true
}

// nbChannelsTable maps acmod (0..7) to the number of full-bandwidth
// channels (excluding LFE).
var nbChannelsTable = [8]int{
	2, // 0: 1+1 (dual mono, two independent mono channels)
	1, // 1: 1/0 (mono)
	2, // 2: 2/0 (stereo)
	3, // 3: 3/0
	3, // 4: 2/1
	4, // 5: 3/1
	4, // 6: 2/2
	5, // 7: 3/2
}

// NbChannels returns the total channel count (including LFE if present) for
// the given acmod/lfeon pair.
func NbChannels(acmod int, lfeon bool) int {
	n := nbChannelsTable[acmod]
	if lfeon {
		n++
	}
	return n
}
