// Package recurrence expands a cadence into concrete dates and materializes
// one ledger row per date.
//
// Each cadence has its own Stepper strategy; the registry maps cadences to
// steppers so new cadences can be added without touching the schedule code.
package recurrence

import (
	"fmt"
	"sync"
	"time"

	"cashflow/internal/core"
)

// MaxInstances is the ceiling on dates a single series may produce, start
// included. It bounds generation from a malformed or far-future end date,
// e.g. decades of WEEKLY steps.
const MaxInstances = 1000

// Stepper is the strategy for one cadence.
type Stepper interface {
	// Nth returns the n-th occurrence after anchor, n >= 1.
	Nth(anchor core.Date, n int) core.Date
	// Within reports whether d still belongs to a series ending at end.
	Within(d, end core.Date) bool
}

// WeeklyStepper adds seven days per step; the end date is compared by day.
type WeeklyStepper struct{}

func (WeeklyStepper) Nth(anchor core.Date, n int) core.Date {
	return core.Date{Time: anchor.AddDate(0, 0, 7*n)}
}

func (WeeklyStepper) Within(d, end core.Date) bool {
	return !d.After(end)
}

// MonthlyStepper adds calendar months, keeping the anchor's day of month and
// clamping it to the last day of shorter months.
type MonthlyStepper struct{}

func (MonthlyStepper) Nth(anchor core.Date, n int) core.Date {
	return clamped(anchor.Year(), anchor.Month()+n, anchor.Day())
}

// Within compares by month: an instance in the end date's month is included.
func (MonthlyStepper) Within(d, end core.Date) bool {
	return monthIndex(d) <= monthIndex(end)
}

// YearlyStepper adds calendar years; Feb 29 anchors fall back to Feb 28.
type YearlyStepper struct{}

func (YearlyStepper) Nth(anchor core.Date, n int) core.Date {
	return clamped(anchor.Year()+n, anchor.Month(), anchor.Day())
}

func (YearlyStepper) Within(d, end core.Date) bool {
	return monthIndex(d) <= monthIndex(end)
}

// ProjectStepper never steps: a project is billed once.
type ProjectStepper struct{}

func (ProjectStepper) Nth(anchor core.Date, _ int) core.Date { return anchor }

func (ProjectStepper) Within(_, _ core.Date) bool { return false }

var (
	steppersMu sync.RWMutex
	steppers   = map[core.Cadence]Stepper{
		core.Weekly:  WeeklyStepper{},
		core.Monthly: MonthlyStepper{},
		core.Yearly:  YearlyStepper{},
		core.Project: ProjectStepper{},
	}
)

// GetStepper returns the stepper registered for cadence.
func GetStepper(cadence core.Cadence) (Stepper, error) {
	steppersMu.RLock()
	s, ok := steppers[cadence]
	steppersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown cadence: %s", cadence)
	}
	return s, nil
}

// RegisterStepper adds or replaces the stepper for a cadence.
func RegisterStepper(cadence core.Cadence, s Stepper) {
	steppersMu.Lock()
	defer steppersMu.Unlock()
	steppers[cadence] = s
}

// clamped builds year/month/day, normalizing month overflow and clamping day
// to the month length.
func clamped(year, month, day int) core.Date {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return core.NewDate(first.Year(), int(first.Month()), day)
}

func monthIndex(d core.Date) int {
	return d.Year()*12 + d.Month() - 1
}
