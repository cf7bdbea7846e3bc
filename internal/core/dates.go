// Package core provides the reconciliation and organization engine for
// PhoneSync: date extraction, time-window routing rules, corpus inventory,
// deduplication, target path resolution and incremental processing state.
package core

import (
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// datePattern pairs a filename regexp with how its capture groups are
// interpreted. Patterns are tried in order, most specific first; a match
// that fails calendar validation is rejected and the scan continues.
type datePattern struct {
	re    *regexp.Regexp
	epoch bool // single capture group holding a unix timestamp
}

var datePatterns = []datePattern{
	// YYYYMMDD_HHMMSS.ext or YYYYMMDD_HHMMSS_N.ext (phone camera default)
	{re: regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})_(\d{2})(\d{2})(\d{2})(?:_\d+)?\.`)},
	// IMG_YYYYMMDD_HHMMSS and similar vendor prefixes
	{re: regexp.MustCompile(`[A-Z]{3}_(\d{4})(\d{2})(\d{2})[_-](\d{2})(\d{2})(\d{2})`)},
	// Screenshot_YYYYMMDD-HHMMSS_App
	{re: regexp.MustCompile(`Screenshot_(\d{4})(\d{2})(\d{2})-(\d{2})(\d{2})(\d{2})`)},
	// Date-only forms
	{re: regexp.MustCompile(`(\d{4})_(\d{2})_(\d{2})`)},
	{re: regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)},
	{re: regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})(?:[_-]|$)`)},
	// WeChat exports carry a raw unix timestamp, seconds or milliseconds
	{re: regexp.MustCompile(`wx_camera_(\d{10,13})`), epoch: true},
	// Legacy month-first forms
	{re: regexp.MustCompile(`(\d{2})(\d{2})(\d{4})`)},
	{re: regexp.MustCompile(`(\d{2})-(\d{2})-(\d{4})`)},
	{re: regexp.MustCompile(`(\d{2})_(\d{2})_(\d{4})`)},
}

// ExtractDate parses an acquisition timestamp out of a filename.
// The first pattern that matches and survives calendar validation wins.
// Returns false when no pattern yields a valid date; callers then fall
// back to EXIF (pictures) or the filesystem modification time.
func ExtractDate(name string) (time.Time, bool) {
	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(name)
		if m == nil {
			continue
		}

		if p.epoch {
			ts, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				continue
			}
			if ts > 1e10 { // milliseconds
				ts /= 1000
			}
			return time.Unix(ts, 0), true
		}

		if t, ok := buildDate(m[1:]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// buildDate assembles a timestamp from capture groups. Group order is
// year-first when the first group has four digits, month-first otherwise.
func buildDate(groups []string) (time.Time, bool) {
	if len(groups) < 3 {
		return time.Time{}, false
	}

	nums := make([]int, len(groups))
	for i, g := range groups {
		n, err := strconv.Atoi(g)
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}

	var year, month, day int
	if len(groups[0]) == 4 {
		year, month, day = nums[0], nums[1], nums[2]
	} else {
		month, day, year = nums[0], nums[1], nums[2]
	}

	if year < 1900 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	var hour, minute, second int
	if len(nums) >= 6 {
		hour, minute, second = nums[3], nums[4], nums[5]
		if hour > 23 || minute > 59 || second > 59 {
			return time.Time{}, false
		}
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
	// time.Date normalizes impossible dates (Feb 30 becomes Mar 2);
	// a changed component means the capture was not a real calendar day.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// exifDate reads DateTimeOriginal from a picture file. Missing or
// unparseable EXIF is normal and reported as !ok, never as an error.
func exifDate(path string) (time.Time, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, false
	}

	dt, err := x.DateTime()
	if err != nil {
		return time.Time{}, false
	}
	if dt.Year() < 1900 || dt.Year() > time.Now().Year()+1 {
		return time.Time{}, false
	}
	return dt, true
}
