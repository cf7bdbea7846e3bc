package core

import (
	"fmt"
	"strconv"
	"time"

	"github.com/phonesync/phonesync/internal/config"
)

// clockRange is an inclusive [start,end] interval in minutes since
// midnight. End is inclusive at second zero: 08:00:30 is outside a range
// ending at 08:00.
type clockRange struct {
	start int
	end   int
}

func (r clockRange) contains(secondsOfDay int) bool {
	return secondsOfDay >= r.start*60 && secondsOfDay <= r.end*60
}

// RulesEngine decides whether a video belongs in the wudan subtree based
// on its timestamp. Two rule epochs are selected solely by calendar year:
// strictly before the cutoff year, and on/after it.
//
// InWindow is pure: no I/O, no state mutation.
type RulesEngine struct {
	cutoffYear int

	earlyDays   map[int]bool
	earlyRanges []clockRange

	lateDays   map[int]bool
	lateRanges map[int][]clockRange // weekday (Sunday=0) -> ranges
}

// NewRulesEngine parses and validates the configured rule epochs.
// Invalid weekdays or unparseable time strings are constructor errors;
// the engine refuses to start rather than failing per-file.
func NewRulesEngine(rc config.RulesConfig) (*RulesEngine, error) {
	e := &RulesEngine{
		cutoffYear: rc.CutoffYear,
		earlyDays:  make(map[int]bool),
		lateDays:   make(map[int]bool),
		lateRanges: make(map[int][]clockRange),
	}

	for _, d := range rc.BeforeCutoff.DaysOfWeek {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("before_cutoff: invalid day of week %d (must be 0-6)", d)
		}
		e.earlyDays[d] = true
	}
	for _, tr := range rc.BeforeCutoff.TimeRanges {
		r, err := parseRange(tr)
		if err != nil {
			return nil, fmt.Errorf("before_cutoff: %w", err)
		}
		e.earlyRanges = append(e.earlyRanges, r)
	}

	for _, d := range rc.AfterCutoff.DaysOfWeek {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("after_cutoff: invalid day of week %d (must be 0-6)", d)
		}
		e.lateDays[d] = true
	}
	for key, ranges := range rc.AfterCutoff.TimeRanges {
		day, err := strconv.Atoi(key)
		if err != nil || day < 0 || day > 6 {
			return nil, fmt.Errorf("after_cutoff: invalid weekday key %q (must be \"0\"-\"6\")", key)
		}
		for _, tr := range ranges {
			r, err := parseRange(tr)
			if err != nil {
				return nil, fmt.Errorf("after_cutoff day %d: %w", day, err)
			}
			e.lateRanges[day] = append(e.lateRanges[day], r)
		}
	}

	return e, nil
}

func parseRange(tr config.TimeRange) (clockRange, error) {
	start, err := config.ParseClock(tr.Start)
	if err != nil {
		return clockRange{}, err
	}
	end, err := config.ParseClock(tr.End)
	if err != nil {
		return clockRange{}, err
	}
	if end < start {
		return clockRange{}, fmt.Errorf("time range %s-%s ends before it starts", tr.Start, tr.End)
	}
	return clockRange{start: start, end: end}, nil
}

// InWindow reports whether a timestamp falls inside the routing windows.
// Weekday numbering is Sunday=0, matching time.Weekday.
func (e *RulesEngine) InWindow(t time.Time) bool {
	day := int(t.Weekday())
	secs := t.Hour()*3600 + t.Minute()*60 + t.Second()

	if t.Year() < e.cutoffYear {
		if !e.earlyDays[day] {
			return false
		}
		for _, r := range e.earlyRanges {
			if r.contains(secs) {
				return true
			}
		}
		return false
	}

	if !e.lateDays[day] {
		return false
	}
	for _, r := range e.lateRanges[day] {
		if r.contains(secs) {
			return true
		}
	}
	return false
}

// RuleVerdict explains an InWindow decision for operator tooling.
type RuleVerdict struct {
	Timestamp  string   `json:"timestamp"`
	Epoch      string   `json:"epoch"`
	Weekday    int      `json:"weekday"`
	DayName    string   `json:"day_name"`
	DayMatches bool     `json:"day_matches"`
	Ranges     []string `json:"candidate_ranges"`
	InWindow   bool     `json:"in_window"`
}

// Explain returns the epoch, weekday match and candidate ranges that
// produced the decision for t.
func (e *RulesEngine) Explain(t time.Time) RuleVerdict {
	day := int(t.Weekday())
	v := RuleVerdict{
		Timestamp: t.Format("2006-01-02 15:04:05"),
		Weekday:   day,
		DayName:   t.Weekday().String(),
		InWindow:  e.InWindow(t),
	}

	var ranges []clockRange
	if t.Year() < e.cutoffYear {
		v.Epoch = "before_cutoff"
		v.DayMatches = e.earlyDays[day]
		ranges = e.earlyRanges
	} else {
		v.Epoch = "after_cutoff"
		v.DayMatches = e.lateDays[day]
		ranges = e.lateRanges[day]
	}
	for _, r := range ranges {
		v.Ranges = append(v.Ranges, fmt.Sprintf("%02d:%02d-%02d:%02d",
			r.start/60, r.start%60, r.end/60, r.end%60))
	}
	return v
}
