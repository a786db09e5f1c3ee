package model

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seats(avail ...bool) SeatList {
	out := make(SeatList, len(avail))
	for i, a := range avail {
		out[i] = Seat{Name: string(rune('A' + i)), Available: a}
	}
	return out
}

func assertBalanced(t *testing.T, l SeatList) {
	t.Helper()
	s := l.Stats()
	assert.Equal(t, len(l), s.Total)
	assert.Equal(t, s.Total, s.Available+s.Occupied)
}

func TestStatsOfEmptyList(t *testing.T) {
	var c Committee
	s := c.Stats()
	assert.Equal(t, SeatStats{}, s)
}

func TestAssignMarksExactlySelected(t *testing.T) {
	l := seats(true, true, true, true, true)
	out, err := l.Assign([]int{1, 3})
	require.NoError(t, err)

	want := []bool{true, false, true, false, true}
	for i, seat := range out {
		assert.Equal(t, want[i], seat.Available, "seat %d", i)
	}
	assertBalanced(t, out)
	// receiver untouched
	assert.Equal(t, 5, l.Stats().Available)
}

func TestAssignKeepsUnrelatedOccupiedSeats(t *testing.T) {
	l := seats(false, true, true)
	out, err := l.Assign([]int{2})
	require.NoError(t, err)
	assert.False(t, out[0].Available)
	assert.True(t, out[1].Available)
	assert.False(t, out[2].Available)
}

func TestAssignOutOfRange(t *testing.T) {
	_, err := seats(true).Assign([]int{4})
	assert.True(t, errors.Is(err, ErrSeatIndex))
}

func TestBulkAvailableThenOccupied(t *testing.T) {
	l := seats(true, false, true, false)
	for n := 0; n < 2; n++ {
		l = l.WithAll(true).WithAll(false)
		for _, seat := range l {
			assert.False(t, seat.Available)
		}
		assertBalanced(t, l)
	}
}

func TestToggle(t *testing.T) {
	l := seats(true, true)
	out, err := l.Toggle(0)
	require.NoError(t, err)
	assert.False(t, out[0].Available)
	assert.True(t, out[1].Available)
	assertBalanced(t, out)

	back, err := out.Toggle(0)
	require.NoError(t, err)
	assert.True(t, back[0].Available)

	_, err = l.Toggle(-1)
	assert.Error(t, err)
}

func TestRequireAvailable(t *testing.T) {
	l := seats(true, false)
	assert.NoError(t, l.RequireAvailable([]int{0}))
	assert.Error(t, l.RequireAvailable([]int{0, 1}))
}

func TestLabelsAndAvailableIndexes(t *testing.T) {
	l := seats(true, false, true)
	assert.Equal(t, []int{0, 2}, l.AvailableIndexes())

	labels, err := l.Labels([]int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, labels)
}

func TestUniqueIndexes(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, UniqueIndexes([]int{3, 1, 3, 2, 1}))
}

func TestAggregateStats(t *testing.T) {
	cs := []Committee{
		{Name: "GA", Seats: 4, SeatsList: seats(true, false, true)},
		{Name: "SC", Seats: 2},
		{Name: "HRC", Seats: 1, SeatsList: seats(false)},
	}
	got := AggregateStats(cs)
	assert.Equal(t, 3, got.Committees)
	assert.Equal(t, 7, got.Declared)
	assert.Equal(t, 4, got.Total)
	assert.Equal(t, 2, got.Available)
	assert.Equal(t, 2, got.Occupied)
}

func TestCommitteeMatches(t *testing.T) {
	c := Committee{Name: "Security Council", Topic: "Arctic", President: "Ana Ruiz"}
	assert.True(t, c.Matches(""))
	assert.True(t, c.Matches("security"))
	assert.True(t, c.Matches("ARCTIC"))
	assert.True(t, c.Matches("ruiz"))
	assert.False(t, c.Matches("unesco"))
}
