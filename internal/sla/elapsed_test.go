package sla

import (
	"testing"
	"time"
)

func TestElapsedHours(t *testing.T) {
	cal := testCalendar(t)
	july4 := Holidays{Specific: []SpecificHoliday{{Year: 2024, Month: time.July, Day: 4}}}
	cases := []struct {
		name       string
		start, end time.Time
		holidays   Holidays
		want       float64
	}{
		{"equal instants", at(2024, 7, 3, 10, 0), at(2024, 7, 3, 10, 0), Holidays{}, 0},
		{"reversed", at(2024, 7, 3, 12, 0), at(2024, 7, 3, 10, 0), Holidays{}, 0},
		{"zero start", time.Time{}, at(2024, 7, 3, 10, 0), Holidays{}, 0},
		{"inside one day", at(2024, 7, 3, 9, 15), at(2024, 7, 3, 13, 45), Holidays{}, 4.5},
		{"over the weekend", at(2024, 7, 5, 16, 0), at(2024, 7, 8, 9, 0), Holidays{}, 2.0},
		{"start before opening", at(2024, 7, 3, 6, 0), at(2024, 7, 3, 10, 30), Holidays{}, 2.0},
		{"start at closing rolls over", at(2024, 7, 2, 17, 30), at(2024, 7, 3, 9, 30), Holidays{}, 1.0},
		{"start after closing rolls over", at(2024, 7, 2, 20, 0), at(2024, 7, 3, 9, 30), Holidays{}, 1.0},
		{"start on saturday", at(2024, 7, 6, 11, 0), at(2024, 7, 8, 10, 0), Holidays{}, 1.5},
		{"end after closing", at(2024, 7, 3, 16, 0), at(2024, 7, 3, 21, 0), Holidays{}, 1.5},
		{"end before next opening", at(2024, 7, 5, 16, 0), at(2024, 7, 8, 8, 0), Holidays{}, 1.5},
		{"snapped past end", at(2024, 7, 5, 18, 0), at(2024, 7, 7, 12, 0), Holidays{}, 0},
		{"full week", at(2024, 7, 1, 8, 30), at(2024, 7, 5, 17, 30), Holidays{}, 45},
		{"holiday skipped", at(2024, 7, 3, 16, 0), at(2024, 7, 5, 10, 0), july4, 3.0},
		{"inside a holiday", at(2024, 7, 4, 9, 0), at(2024, 7, 4, 16, 0), july4, 0},
		{"two decimals", at(2024, 7, 3, 9, 0), at(2024, 7, 3, 9, 20), Holidays{}, 0.33},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := cal.ElapsedHours(tt.start, tt.end, tt.holidays); got != tt.want {
				t.Fatalf("ElapsedHours = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestElapsedHoursWithinWindowIsWallClock(t *testing.T) {
	cal := testCalendar(t)
	base := at(2024, 7, 2, 8, 30)
	for i := 0; i < 9*60; i += 37 {
		a := base.Add(time.Duration(i) * time.Minute)
		for j := i; j <= 9*60; j += 53 {
			b := base.Add(time.Duration(j) * time.Minute)
			want := Round2(b.Sub(a).Hours())
			if got := cal.ElapsedHours(a, b, Holidays{}); got != want {
				t.Fatalf("%v -> %v: got %v want %v", a, b, got, want)
			}
		}
	}
}

func TestWindows(t *testing.T) {
	cal := testCalendar(t)
	h := Holidays{Recurring: []RecurringHoliday{{Day: 9, Month: time.July}}}
	var got []Window
	for w := range cal.Windows(at(2024, 7, 5, 16, 0), at(2024, 7, 10, 12, 0), h) {
		got = append(got, w)
	}
	want := []Window{
		{Day: at(2024, 7, 5, 0, 0), From: at(2024, 7, 5, 16, 0), To: at(2024, 7, 5, 17, 30)},
		{Day: at(2024, 7, 8, 0, 0), From: at(2024, 7, 8, 8, 30), To: at(2024, 7, 8, 17, 30)},
		{Day: at(2024, 7, 10, 0, 0), From: at(2024, 7, 10, 8, 30), To: at(2024, 7, 10, 12, 0)},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d windows: %+v", len(got), got)
	}
	for i := range want {
		if !got[i].Day.Equal(want[i].Day) || !got[i].From.Equal(want[i].From) || !got[i].To.Equal(want[i].To) {
			t.Fatalf("window %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	// stopping early must not panic
	for range cal.Windows(at(2024, 7, 1, 9, 0), at(2024, 7, 31, 9, 0), Holidays{}) {
		break
	}
}

func TestWindowsNoReachableWorkingDay(t *testing.T) {
	cal := testCalendar(t)
	h := Holidays{}
	for d := 1; d <= 31; d++ {
		h.Recurring = append(h.Recurring, RecurringHoliday{Day: d, Month: time.August})
	}
	if got := cal.ElapsedHours(at(2024, 8, 1, 9, 0), at(2024, 8, 31, 17, 0), h); got != 0 {
		t.Fatalf("expected 0 for a fully closed month, got %v", got)
	}
}

func TestElapsedHoursString(t *testing.T) {
	cal := testCalendar(t)
	cases := []struct {
		name       string
		start, end string
		want       float64
	}{
		{"rfc3339", "2024-07-05T16:00:00Z", "2024-07-08T09:00:00Z", 2},
		{"sql layout", "2024-07-03 09:00:00", "2024-07-03 10:30:00", 1.5},
		{"date only", "2024-07-03", "2024-07-04", 9},
		{"garbage start", "yesterday", "2024-07-03 10:30:00", 0},
		{"empty end", "2024-07-03 09:00:00", "", 0},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := cal.ElapsedHoursString(tt.start, tt.end, Holidays{}); got != tt.want {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestRounding(t *testing.T) {
	if got := Round2(1.005 + 1e-9); got != 1.01 {
		t.Fatalf("Round2 = %v", got)
	}
	if got := Round1(83.25); got != 83.3 {
		t.Fatalf("Round1 = %v", got)
	}
	if got := Round1(-1.25); got != -1.3 {
		t.Fatalf("Round1 negative = %v", got)
	}
}
