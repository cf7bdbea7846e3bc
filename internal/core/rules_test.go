// Package core provides tests for the wudan routing rules.
package core

import (
	"testing"
	"time"

	"github.com/phonesync/phonesync/internal/config"
)

func defaultRules(t *testing.T) *RulesEngine {
	t.Helper()
	e, err := NewRulesEngine(config.Default().Rules)
	if err != nil {
		t.Fatalf("failed to build rules engine: %v", err)
	}
	return e
}

func TestRulesEngine_AfterCutoffWindows(t *testing.T) {
	e := defaultRules(t)

	// 2021-06-06 is a Sunday; 10:00 falls in the 08:00-13:00 window.
	if !e.InWindow(time.Date(2021, 6, 6, 10, 0, 0, 0, time.Local)) {
		t.Error("Sunday 10:00 in 2021 should be in window")
	}
	// 2021-06-11 is a Friday; Fridays have no post-cutoff windows.
	if e.InWindow(time.Date(2021, 6, 11, 14, 0, 0, 0, time.Local)) {
		t.Error("Friday 14:00 in 2021 should not be in window")
	}
	// 2021-06-12 is a Saturday; 08:00-16:00.
	if !e.InWindow(time.Date(2021, 6, 12, 15, 59, 59, 0, time.Local)) {
		t.Error("Saturday 15:59:59 in 2021 should be in window")
	}
}

func TestRulesEngine_BeforeCutoffWindows(t *testing.T) {
	e := defaultRules(t)

	// 2020-03-02 is a Monday; 07:00 falls in the 05:00-08:00 window.
	if !e.InWindow(time.Date(2020, 3, 2, 7, 0, 0, 0, time.Local)) {
		t.Error("Monday 07:00 in 2020 should be in window")
	}
	// 2020-03-01 is a Sunday; Sundays are not pre-cutoff training days.
	if e.InWindow(time.Date(2020, 3, 1, 10, 0, 0, 0, time.Local)) {
		t.Error("Sunday 10:00 in 2020 should not be in window")
	}
}

func TestRulesEngine_InclusiveEndAtSecondGranularity(t *testing.T) {
	e := defaultRules(t)

	// The Monday morning window ends at 08:00: exactly 08:00:00 is in,
	// 08:00:30 is out.
	if !e.InWindow(time.Date(2020, 3, 2, 8, 0, 0, 0, time.Local)) {
		t.Error("08:00:00 should be inside an 08:00-ending window")
	}
	if e.InWindow(time.Date(2020, 3, 2, 8, 0, 30, 0, time.Local)) {
		t.Error("08:00:30 should be outside an 08:00-ending window")
	}
}

func TestRulesEngine_CutoffYearBoundary(t *testing.T) {
	e := defaultRules(t)

	// 2020-12-30 (Wednesday) 19:00: pre-cutoff Wednesdays allow 18:00-22:00.
	if !e.InWindow(time.Date(2020, 12, 30, 19, 0, 0, 0, time.Local)) {
		t.Error("Wednesday 19:00 in 2020 should use pre-cutoff rules")
	}
	// 2021-01-04 (Monday) 20:30: post-cutoff Monday evenings end at 21:00.
	if !e.InWindow(time.Date(2021, 1, 4, 20, 30, 0, 0, time.Local)) {
		t.Error("Monday 20:30 in 2021 should use post-cutoff rules")
	}
	// 21:30 on a 2021 Monday is out even though pre-cutoff Mondays ran
	// until 22:00; the year selects the stricter epoch.
	if e.InWindow(time.Date(2021, 1, 4, 21, 30, 0, 0, time.Local)) {
		t.Error("Monday 21:30 in 2021 should be outside the 21:00-ending window")
	}
}

func TestNewRulesEngine_RejectsBadWeekday(t *testing.T) {
	rc := config.Default().Rules
	rc.BeforeCutoff.DaysOfWeek = append(rc.BeforeCutoff.DaysOfWeek, 7)
	if _, err := NewRulesEngine(rc); err == nil {
		t.Error("expected error for weekday 7")
	}
}

func TestNewRulesEngine_RejectsBadTime(t *testing.T) {
	rc := config.Default().Rules
	rc.AfterCutoff.TimeRanges["0"] = []config.TimeRange{{Start: "25:00", End: "26:00"}}
	if _, err := NewRulesEngine(rc); err == nil {
		t.Error("expected error for hour 25")
	}
}

func TestRulesEngine_Explain(t *testing.T) {
	e := defaultRules(t)

	v := e.Explain(time.Date(2021, 6, 6, 10, 0, 0, 0, time.Local))
	if v.Epoch != "after_cutoff" {
		t.Errorf("epoch = %q, want after_cutoff", v.Epoch)
	}
	if !v.DayMatches || !v.InWindow {
		t.Errorf("expected day match and in-window, got %+v", v)
	}
	if len(v.Ranges) != 1 || v.Ranges[0] != "08:00-13:00" {
		t.Errorf("ranges = %v, want [08:00-13:00]", v.Ranges)
	}
}
