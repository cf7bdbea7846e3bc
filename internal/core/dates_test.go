// Package core provides tests for the PhoneSync engine components.
package core

import (
	"testing"
	"time"
)

func TestExtractDate_PhoneCameraName(t *testing.T) {
	got, ok := ExtractDate("20250406_110016_1.mp4")
	if !ok {
		t.Fatal("expected a date")
	}
	want := time.Date(2025, 4, 6, 11, 0, 16, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractDate_InvalidTimeFallsToDateOnly(t *testing.T) {
	// The time component 29:29:93 is impossible; the date-only prefix
	// pattern still yields 2025-04-12.
	got, ok := ExtractDate("20250412_292993_1.mp4")
	if !ok {
		t.Fatal("expected a date")
	}
	want := time.Date(2025, 4, 12, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractDate_VendorPrefix(t *testing.T) {
	got, ok := ExtractDate("IMG_20230115_093012.jpg")
	if !ok {
		t.Fatal("expected a date")
	}
	want := time.Date(2023, 1, 15, 9, 30, 12, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractDate_Screenshot(t *testing.T) {
	got, ok := ExtractDate("Screenshot_20240105-134501_Chrome.png")
	if !ok {
		t.Fatal("expected a date")
	}
	want := time.Date(2024, 1, 5, 13, 45, 1, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractDate_WeChatEpoch(t *testing.T) {
	got, ok := ExtractDate("wx_camera_1618112345000.mp4")
	if !ok {
		t.Fatal("expected a date")
	}
	// Milliseconds are reduced to seconds before conversion.
	want := time.Unix(1618112345, 0)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractDate_NoMatch(t *testing.T) {
	for _, name := range []string{"M4H01890.MP4", "notadate_13_45.mp4", "vacation.mov"} {
		if _, ok := ExtractDate(name); ok {
			t.Errorf("%s: expected no date", name)
		}
	}
}

func TestExtractDate_RejectsImpossibleCalendarDay(t *testing.T) {
	// Feb 30 survives the digit ranges but not the calendar round-trip.
	if _, ok := ExtractDate("20230230_120000.mp4"); ok {
		t.Error("expected Feb 30 to be rejected")
	}
}

func TestExtractDate_YearBounds(t *testing.T) {
	if _, ok := ExtractDate("18991231_120000.mp4"); ok {
		t.Error("expected year 1899 to be rejected")
	}
	if _, ok := ExtractDate("21150101_120000.mp4"); ok {
		t.Error("expected year 2115 to be rejected")
	}
}
