package schedule

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/renova-api/internal/model"
)

func block(id int64, start time.Time, d time.Duration) *model.ScheduleBlock {
	return &model.ScheduleBlock{ID: id, TherapistID: 1, StartAt: start, EndAt: start.Add(d)}
}

func TestStartOfWeek(t *testing.T) {
	tests := []struct {
		name string
		day  time.Time
		want time.Time
	}{
		{"sunday", time.Date(2024, 6, 2, 15, 30, 0, 0, time.UTC), time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)},
		{"monday", time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC), time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)},
		{"saturday", time.Date(2024, 6, 8, 23, 59, 0, 0, time.UTC), time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)},
		{"across month", time.Date(2024, 7, 2, 8, 0, 0, 0, time.UTC), time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StartOfWeek(tt.day))
		})
	}
}

func TestSlotStart(t *testing.T) {
	ref := time.Date(2024, 6, 5, 11, 20, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC), SlotStart(ref, time.Monday, 9))
	assert.Equal(t, time.Date(2024, 6, 8, 23, 0, 0, 0, time.UTC), SlotStart(ref, time.Saturday, 23))
}

func TestBuildWeekGridPlacesWednesdayAfternoon(t *testing.T) {
	weekStart := StartOfWeek(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC))
	wed := block(7, time.Date(2024, 6, 5, 14, 0, 0, 0, time.UTC), time.Hour)

	grid := BuildWeekGrid(weekStart, []*model.ScheduleBlock{wed})

	require.Len(t, grid, 7)
	for _, day := range grid {
		require.Len(t, day, 24)
	}
	assert.Same(t, wed, grid[3][14])

	filled := 0
	for _, day := range grid {
		for _, cell := range day {
			if cell != nil {
				filled++
			}
		}
	}
	assert.Equal(t, 1, filled)
}

func TestBuildWeekGridDropsBlocksOutsideTheWeekOrOffTheHour(t *testing.T) {
	weekStart := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	blocks := []*model.ScheduleBlock{
		block(1, weekStart.Add(-time.Hour), time.Hour),
		block(2, weekStart.AddDate(0, 0, 7), time.Hour),
		block(3, time.Date(2024, 6, 4, 10, 30, 0, 0, time.UTC), time.Hour),
		block(4, time.Date(2024, 6, 4, 11, 0, 0, 0, time.UTC), 30*time.Minute),
		block(5, time.Date(2024, 6, 8, 23, 30, 0, 0, time.UTC), time.Hour),
		block(6, weekStart, time.Hour),
		block(7, time.Date(2024, 6, 8, 23, 0, 0, 0, time.UTC), time.Hour),
	}

	grid := BuildWeekGrid(weekStart, blocks)

	assert.Nil(t, grid[2][10])
	assert.Nil(t, grid[2][11])
	assert.Equal(t, int64(6), grid[0][0].ID)
	assert.Equal(t, int64(7), grid[6][23].ID)
	assert.Nil(t, grid[6][22])
}

func TestBuildWeekGridUsesWeekLocation(t *testing.T) {
	loc := time.FixedZone("EDT", -4*60*60)
	weekStart := StartOfWeek(time.Date(2024, 6, 4, 12, 0, 0, 0, loc))
	// 13:00 UTC is 09:00 EDT on Monday
	b := block(1, time.Date(2024, 6, 3, 13, 0, 0, 0, time.UTC), time.Hour)

	grid := BuildWeekGrid(weekStart, []*model.ScheduleBlock{b})
	assert.Same(t, b, grid[1][9])
}

func toronto(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	return loc
}

func TestBuildWeekGridFallBackWeek(t *testing.T) {
	loc := toronto(t)
	weekStart, weekEnd := WeekRange(time.Date(2024, 11, 5, 12, 0, 0, 0, loc))
	require.Equal(t, 169*time.Hour, weekEnd.Sub(weekStart))

	lastSlot := block(1, time.Date(2024, 11, 9, 23, 0, 0, 0, loc), time.Hour)
	grid := BuildWeekGrid(weekStart, []*model.ScheduleBlock{lastSlot})

	assert.Same(t, lastSlot, grid[6][23])
}

func TestBuildWeekGridSpringForwardWeek(t *testing.T) {
	loc := toronto(t)
	weekStart, weekEnd := WeekRange(time.Date(2024, 3, 12, 12, 0, 0, 0, loc))
	require.Equal(t, 167*time.Hour, weekEnd.Sub(weekStart))

	lastSlot := block(1, time.Date(2024, 3, 16, 23, 0, 0, 0, loc), time.Hour)
	nextWeek := block(2, weekEnd, time.Hour)
	grid := BuildWeekGrid(weekStart, []*model.ScheduleBlock{lastSlot, nextWeek})

	assert.Same(t, lastSlot, grid[6][23])
	assert.Nil(t, grid[0][0])
}

func TestBuildWeekGridRepeatedHourKeepsEarlierBlock(t *testing.T) {
	loc := toronto(t)
	weekStart := StartOfWeek(time.Date(2024, 11, 3, 12, 0, 0, 0, loc))
	// 05:00 UTC is 01:00 EDT, 06:00 UTC is 01:00 EST
	edt := block(1, time.Date(2024, 11, 3, 5, 0, 0, 0, time.UTC), time.Hour)
	est := block(2, time.Date(2024, 11, 3, 6, 0, 0, 0, time.UTC), time.Hour)

	grid := BuildWeekGrid(weekStart, []*model.ScheduleBlock{est, edt})

	assert.Same(t, edt, grid[0][1])
}
