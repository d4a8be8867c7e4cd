package series

import (
	"fmt"
	"time"
)

// EpochDate is the canonical zero day all daily variables are re-based onto.
// A variable declaring a different zeroDay has every day offset shifted by
// the whole-day difference, so same-real-date observations from different
// sources land on the same day value.
const EpochDate = "2020-01-21"

const isoDateLayout = "2006-01-02"

// DiffDateDays returns a-b measured in whole days, both arguments being ISO
// dates.
func DiffDateDays(a, b string) (int, error) {
	ta, err := time.Parse(isoDateLayout, a)
	if err != nil {
		return 0, fmt.Errorf("invalid ISO date %q: %w", a, err)
	}
	tb, err := time.Parse(isoDateLayout, b)
	if err != nil {
		return 0, fmt.Errorf("invalid ISO date %q: %w", b, err)
	}
	return int(ta.Sub(tb).Hours() / 24), nil
}

// dayOffsetShift computes the re-basing shift for one variable. An empty
// zeroDay means the variable already uses the canonical epoch.
func dayOffsetShift(zeroDay string) (int, error) {
	if zeroDay == "" || zeroDay == EpochDate {
		return 0, nil
	}
	return DiffDateDays(zeroDay, EpochDate)
}
