/*
NAME
  planner_test.go

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package pbr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPlanRedistributesAndPreservesTotal exercises the last-to-first
// redistribution walk against a case small enough to hand-verify: the
// middle frame's recorded size exceeds the 3200-byte default target, so
// its 1800-byte excess is carried back to frame 0.
func TestPlanRedistributesAndPreservesTotal(t *testing.T) {
	p := NewPlanner(4000, nil)
	for _, sz := range []int{1000, 5000, 2000} {
		p.RecordFrame(sz)
	}

	plan, err := p.Plan()
	require.NoError(t, err)
	require.Equal(t, []int{2800, 3200, 2000}, plan.EmittedSizes)

	sumRecorded, sumEmitted := 0, 0
	for i, sz := range []int{1000, 5000, 2000} {
		sumRecorded += sz
		sumEmitted += plan.EmittedSizes[i]
	}
	require.Equal(t, sumRecorded, sumEmitted)
}

// TestPlanBoundsRespectInvariant6 checks the universal invariant from spec
// §8.6: cumulative emitted stays within buffer_size of cumulative recorded
// at every frame.
func TestPlanBoundsRespectInvariant6(t *testing.T) {
	recorded := []int{1000, 5000, 2000}
	capacity := 4000

	p := NewPlanner(capacity, nil)
	for _, sz := range recorded {
		p.RecordFrame(sz)
	}
	plan, err := p.Plan()
	require.NoError(t, err)

	cumRecorded, cumEmitted := 0, 0
	for i := range recorded {
		cumRecorded += recorded[i]
		cumEmitted += plan.EmittedSizes[i]
		require.LessOrEqual(t, cumEmitted, cumRecorded+capacity)
		require.GreaterOrEqual(t, cumEmitted, cumRecorded-capacity)
	}
}

func TestPlanInfeasibleWhenBufferedRemainsAfterFrameZero(t *testing.T) {
	p := NewPlanner(100, nil)
	p.RecordFrame(10000)

	_, err := p.Plan()
	require.ErrorIs(t, err, ErrPbrSmoothingInfeasible)
}
