package recurrence

import (
	"testing"

	"cashflow/internal/core"
)

func TestSchedule(t *testing.T) {
	d := core.NewDate

	tests := []struct {
		name    string
		cadence core.Cadence
		start   core.Date
		end     core.Date
		want    []core.Date
	}{
		{
			name:    "weekly includes instance on end date",
			cadence: core.Weekly,
			start:   d(2024, 1, 1),
			end:     d(2024, 1, 22),
			want:    []core.Date{d(2024, 1, 1), d(2024, 1, 8), d(2024, 1, 15), d(2024, 1, 22)},
		},
		{
			name:    "monthly anchored on the 31st",
			cadence: core.Monthly,
			start:   d(2024, 1, 31),
			end:     d(2024, 4, 30),
			want:    []core.Date{d(2024, 1, 31), d(2024, 2, 29), d(2024, 3, 31), d(2024, 4, 30)},
		},
		{
			name:    "monthly client subscription",
			cadence: core.Monthly,
			start:   d(2024, 1, 15),
			end:     d(2024, 4, 15),
			want:    []core.Date{d(2024, 1, 15), d(2024, 2, 15), d(2024, 3, 15), d(2024, 4, 15)},
		},
		{
			name:    "monthly end month counts even before anchor day",
			cadence: core.Monthly,
			start:   d(2024, 1, 20),
			end:     d(2024, 3, 5),
			want:    []core.Date{d(2024, 1, 20), d(2024, 2, 20), d(2024, 3, 20)},
		},
		{
			name:    "yearly",
			cadence: core.Yearly,
			start:   d(2022, 6, 1),
			end:     d(2024, 6, 1),
			want:    []core.Date{d(2022, 6, 1), d(2023, 6, 1), d(2024, 6, 1)},
		},
		{
			name:    "project is a single instance",
			cadence: core.Project,
			start:   d(2024, 1, 1),
			end:     d(2034, 1, 1),
			want:    []core.Date{d(2024, 1, 1)},
		},
		{
			name:    "end equals start",
			cadence: core.Weekly,
			start:   d(2024, 5, 5),
			end:     d(2024, 5, 5),
			want:    []core.Date{d(2024, 5, 5)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated, err := Schedule(tt.cadence, tt.start, tt.end)
			if err != nil {
				t.Fatalf("Schedule() error = %v", err)
			}
			if truncated {
				t.Errorf("Schedule() truncated unexpectedly")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Schedule() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if !got[i].Equal(tt.want[i]) {
					t.Errorf("Schedule()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSchedule_CapsAtMaxInstances(t *testing.T) {
	got, truncated, err := Schedule(core.Weekly, core.NewDate(2000, 1, 1), core.NewDate(2100, 1, 1))
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if !truncated {
		t.Error("Schedule() should report truncation")
	}
	if len(got) != MaxInstances {
		t.Errorf("Schedule() returned %d dates, want %d", len(got), MaxInstances)
	}
}

func TestFollowing_SkipsStart(t *testing.T) {
	got, _, err := Following(core.Monthly, core.NewDate(2024, 1, 10), core.NewDate(2024, 3, 10))
	if err != nil {
		t.Fatalf("Following() error = %v", err)
	}
	if len(got) != 2 || !got[0].Equal(core.NewDate(2024, 2, 10)) {
		t.Errorf("Following() = %v", got)
	}

	got, _, _ = Following(core.Project, core.NewDate(2024, 1, 10), core.NewDate(2030, 1, 1))
	if len(got) != 0 {
		t.Errorf("Following(PROJECT) = %v, want none", got)
	}
}

func TestSchedule_UnknownCadence(t *testing.T) {
	if _, _, err := Schedule("HOURLY", core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1)); err == nil {
		t.Error("Schedule() should fail for unknown cadence")
	}
}
