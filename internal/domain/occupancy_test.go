package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyOccupancyBands(t *testing.T) {
	cases := []struct {
		percentage float64
		want       OccupancyStatus
	}{
		{0, OccupancyGreen},
		{30, OccupancyGreen},
		{30.01, OccupancyYellow},
		{70, OccupancyYellow},
		{70.01, OccupancyRed},
		{150, OccupancyRed},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ClassifyOccupancy(tc.percentage), "percentage %v", tc.percentage)
	}
}

func TestNewOccupancy(t *testing.T) {
	red := NewOccupancy(71, 100)
	require.Equal(t, OccupancyRed, red.Status)
	require.InDelta(t, 71.0, red.Percentage, 0.0001)

	green := NewOccupancy(30, 100)
	require.Equal(t, OccupancyGreen, green.Status)

	over := NewOccupancy(120, 100)
	require.InDelta(t, 120.0, over.Percentage, 0.0001)
	require.Equal(t, OccupancyRed, over.Status)

	defaulted := NewOccupancy(10, 0)
	require.Equal(t, DefaultCapacity, defaulted.Capacity)
	require.InDelta(t, 10.0, defaulted.Percentage, 0.0001)
}

func TestIdentityTransition(t *testing.T) {
	identity := Identity{ID: "u1", Status: StatusPending}

	changed, err := identity.transition(StatusApproved)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, StatusApproved, identity.Status)

	changed, err = identity.transition(StatusApproved)
	require.NoError(t, err)
	require.False(t, changed)

	_, err = identity.transition(StatusRejected)
	require.ErrorIs(t, err, ErrInvalidState)
}
