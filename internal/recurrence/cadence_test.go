package recurrence

import (
	"sync"
	"testing"

	"cashflow/internal/core"
)

func TestMonthlyStepper_Nth(t *testing.T) {
	stepper := MonthlyStepper{}
	anchor := core.NewDate(2024, 1, 31)

	tests := []struct {
		name string
		n    int
		want core.Date
	}{
		{name: "leap february clamps to 29", n: 1, want: core.NewDate(2024, 2, 29)},
		{name: "march keeps anchor day", n: 2, want: core.NewDate(2024, 3, 31)},
		{name: "april clamps to 30", n: 3, want: core.NewDate(2024, 4, 30)},
		{name: "crosses the year", n: 12, want: core.NewDate(2025, 1, 31)},
		{name: "non-leap february clamps to 28", n: 13, want: core.NewDate(2025, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stepper.Nth(anchor, tt.n)
			if !got.Equal(tt.want) {
				t.Errorf("MonthlyStepper.Nth(%s, %d) = %s, want %s", anchor, tt.n, got, tt.want)
			}
		})
	}
}

func TestYearlyStepper_Nth(t *testing.T) {
	stepper := YearlyStepper{}
	anchor := core.NewDate(2024, 2, 29)

	tests := []struct {
		name string
		n    int
		want core.Date
	}{
		{name: "non-leap year clamps", n: 1, want: core.NewDate(2025, 2, 28)},
		{name: "next leap year keeps 29", n: 4, want: core.NewDate(2028, 2, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stepper.Nth(anchor, tt.n)
			if !got.Equal(tt.want) {
				t.Errorf("YearlyStepper.Nth(%s, %d) = %s, want %s", anchor, tt.n, got, tt.want)
			}
		})
	}
}

func TestStepper_Within(t *testing.T) {
	end := core.NewDate(2024, 3, 15)

	tests := []struct {
		name    string
		stepper Stepper
		d       core.Date
		want    bool
	}{
		{name: "weekly on end day", stepper: WeeklyStepper{}, d: end, want: true},
		{name: "weekly day after end", stepper: WeeklyStepper{}, d: core.NewDate(2024, 3, 16), want: false},
		{name: "monthly later in end month", stepper: MonthlyStepper{}, d: core.NewDate(2024, 3, 31), want: true},
		{name: "monthly month after end", stepper: MonthlyStepper{}, d: core.NewDate(2024, 4, 1), want: false},
		{name: "yearly in end month", stepper: YearlyStepper{}, d: core.NewDate(2024, 3, 20), want: true},
		{name: "project never continues", stepper: ProjectStepper{}, d: core.NewDate(2024, 1, 1), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stepper.Within(tt.d, end); got != tt.want {
				t.Errorf("Within(%s, %s) = %v, want %v", tt.d, end, got, tt.want)
			}
		})
	}
}

func TestGetStepper(t *testing.T) {
	tests := []struct {
		cadence core.Cadence
		want    Stepper
		wantErr bool
	}{
		{core.Weekly, WeeklyStepper{}, false},
		{core.Monthly, MonthlyStepper{}, false},
		{core.Yearly, YearlyStepper{}, false},
		{core.Project, ProjectStepper{}, false},
		{"DAILY", nil, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.cadence), func(t *testing.T) {
			got, err := GetStepper(tt.cadence)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetStepper(%s) error = %v, wantErr %v", tt.cadence, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("GetStepper(%s) = %T, want %T", tt.cadence, got, tt.want)
			}
		})
	}
}

type fortnightly struct{}

func (fortnightly) Nth(anchor core.Date, n int) core.Date {
	return core.Date{Time: anchor.AddDate(0, 0, 14*n)}
}

func (fortnightly) Within(d, end core.Date) bool { return !d.After(end) }

func TestRegisterStepper(t *testing.T) {
	const biweekly core.Cadence = "BIWEEKLY"
	RegisterStepper(biweekly, fortnightly{})
	defer func() {
		steppersMu.Lock()
		delete(steppers, biweekly)
		steppersMu.Unlock()
	}()

	dates, _, err := Schedule(biweekly, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31))
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if len(dates) != 3 {
		t.Errorf("Schedule() returned %d dates, want 3", len(dates))
	}
}

func TestRegisterStepper_ConcurrentLookups(t *testing.T) {
	const custom core.Cadence = "CUSTOM"
	defer func() {
		steppersMu.Lock()
		delete(steppers, custom)
		steppersMu.Unlock()
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			RegisterStepper(custom, fortnightly{})
		}()
		go func() {
			defer wg.Done()
			if _, err := GetStepper(core.Monthly); err != nil {
				t.Errorf("GetStepper(MONTHLY) error = %v", err)
			}
		}()
	}
	wg.Wait()

	if _, err := GetStepper(custom); err != nil {
		t.Errorf("GetStepper(%s) error = %v", custom, err)
	}
}
