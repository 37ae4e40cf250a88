package recurrence

import (
	"cashflow/internal/core"
)

// Schedule returns the series dates from start through end in ascending
// order, start included. PROJECT yields start only, whatever end is. The
// result never exceeds MaxInstances; truncated reports whether the cap cut
// the series short.
func Schedule(cadence core.Cadence, start, end core.Date) (dates []core.Date, truncated bool, err error) {
	stepper, err := GetStepper(cadence)
	if err != nil {
		return nil, false, err
	}

	dates = []core.Date{start}
	for n := 1; ; n++ {
		next := stepper.Nth(start, n)
		if !stepper.Within(next, end) {
			return dates, false, nil
		}
		if len(dates) == MaxInstances {
			return dates, true, nil
		}
		dates = append(dates, next)
	}
}

// Following returns the dates after start, for callers that already created
// the first instance themselves.
func Following(cadence core.Cadence, start, end core.Date) ([]core.Date, bool, error) {
	dates, truncated, err := Schedule(cadence, start, end)
	if err != nil {
		return nil, false, err
	}
	return dates[1:], truncated, nil
}
