/*
NAME
  stats.go

DESCRIPTION
  stats.go parses the optional .dtspbr statistics file: a decimal FPS line
  followed by "HH:MM:SS:FF,target_size" records, strictly timestamp-ordered
  starting at zero.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package pbr

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseStats reads a .dtspbr file from r. Timestamp fields are parsed by
// hand, fixed-width, rather than through time.Time: they encode a frame
// count, not wall-clock seconds, so strftime-style formatting only applies
// on the debug-logging write side (see cmd/bdamux), never here.
func ParseStats(r io.Reader) (*Stats, error) {
	sc := bufio.NewScanner(r)

	if !sc.Scan() {
		return nil, errors.Wrap(ErrStatsFileMalformed, "pbr: empty .dtspbr file")
	}
	fps, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		return nil, errors.Wrapf(ErrStatsFileMalformed, "pbr: bad FPS line %q", sc.Text())
	}

	st := &Stats{FPS: fps}
	var prevTotal = -1
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rec, err := parseStatLine(line)
		if err != nil {
			return nil, err
		}
		total := rec.Frames + rec.Seconds*fps + rec.Minutes*60*fps + rec.Hours*3600*fps
		if len(st.Records) == 0 {
			if total != 0 {
				return nil, errors.Wrap(ErrStatsFileMalformed, "pbr: first .dtspbr record must be at zero timestamp")
			}
		} else if total <= prevTotal {
			return nil, errors.Wrap(ErrStatsFileMalformed, "pbr: .dtspbr records must be strictly ordered")
		}
		prevTotal = total
		st.Records = append(st.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "pbr: reading .dtspbr file")
	}
	if len(st.Records) == 0 {
		return nil, errors.Wrap(ErrStatsFileMalformed, "pbr: .dtspbr file has no records")
	}
	return st, nil
}

func parseStatLine(line string) (StatRecord, error) {
	parts := strings.SplitN(line, ",", 2)
	if len(parts) != 2 {
		return StatRecord{}, errors.Wrapf(ErrStatsFileMalformed, "pbr: bad .dtspbr record %q", line)
	}
	tcParts := strings.Split(parts[0], ":")
	if len(tcParts) != 4 {
		return StatRecord{}, errors.Wrapf(ErrStatsFileMalformed, "pbr: bad timecode %q", parts[0])
	}
	nums := make([]int, 4)
	for i, p := range tcParts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return StatRecord{}, errors.Wrapf(ErrStatsFileMalformed, "pbr: bad timecode field %q", p)
		}
		nums[i] = n
	}
	target, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return StatRecord{}, errors.Wrapf(ErrStatsFileMalformed, "pbr: bad target size %q", parts[1])
	}
	return StatRecord{Hours: nums[0], Minutes: nums[1], Seconds: nums[2], Frames: nums[3], TargetSize: target}, nil
}

// averageTargetSize collapses the timestamped table to a single per-frame
// target, since the table's timestamps don't line up one-to-one with
// decoded frame indices.
func (s *Stats) averageTargetSize() int {
	if s == nil || len(s.Records) == 0 {
		return defaultFakeTargetBytes
	}
	sum := 0
	for _, r := range s.Records {
		sum += r.TargetSize
	}
	return sum / len(s.Records)
}
