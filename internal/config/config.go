// Package config implements loading and validation of the PhoneSync
// configuration file (phonesync.json).
//
// Validation is fail-fast: malformed time strings, out-of-range weekday
// values or missing target roots are load errors, never per-file errors.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "phonesync.json"

// EnvConfigPath overrides config discovery when set.
const EnvConfigPath = "PHONESYNC_CONFIG"

// TimeRange is an inclusive [start,end] clock-time interval in HH:MM form.
// Intervals are same-day only; overnight spans are not supported.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// EpochRules are the pre-cutoff routing rules: one weekday set and a flat
// interval list applied to every allowed weekday.
type EpochRules struct {
	DaysOfWeek []int       `json:"days_of_week"` // Sunday=0 .. Saturday=6
	TimeRanges []TimeRange `json:"time_ranges"`
}

// WeekdayRules are the post-cutoff routing rules: per-weekday interval
// lists, keyed by the weekday digit ("0".."6").
type WeekdayRules struct {
	DaysOfWeek []int                  `json:"days_of_week"`
	TimeRanges map[string][]TimeRange `json:"time_ranges"`
}

// RulesConfig holds the two non-overlapping rule epochs, partitioned by
// calendar year of the file timestamp.
type RulesConfig struct {
	CutoffYear   int          `json:"cutoff_year"`
	BeforeCutoff EpochRules   `json:"before_cutoff"`
	AfterCutoff  WeekdayRules `json:"after_cutoff"`
}

// TargetPaths are the destination roots keyed by category.
type TargetPaths struct {
	Pictures string `json:"pictures"`
	Videos   string `json:"videos"`
	Wudan    string `json:"wudan"`
}

// FileExtensions are the recognized media extensions per category,
// lower-cased with leading dot.
type FileExtensions struct {
	Pictures []string `json:"pictures"`
	Videos   []string `json:"videos"`
}

// Options are the behavioral toggles for a run.
type Options struct {
	EnableDeduplication  bool `json:"enable_deduplication"`
	CreateMissingFolders bool `json:"create_missing_folders"`
	ForceRecopyIfNewer   bool `json:"force_recopy_if_newer"`
	EnableIncremental    bool `json:"enable_incremental_processing"`
	DryRun               bool `json:"dry_run"`
	Workers              int  `json:"workers"`
}

// Config is the effective configuration consumed by the engine.
type Config struct {
	SourceFolders  []string       `json:"source_folders"`
	TargetPaths    TargetPaths    `json:"target_paths"`
	FileExtensions FileExtensions `json:"file_extensions"`
	Rules          RulesConfig    `json:"wudan_rules"`
	Options        Options        `json:"options"`
	StateDir       string         `json:"state_dir"`
}

// Default returns a configuration with the built-in extension sets,
// routing rules and options. Load unmarshals on top of it, so a config
// file only needs to state what it changes.
func Default() *Config {
	return &Config{
		FileExtensions: FileExtensions{
			Pictures: []string{".jpg", ".jpeg", ".png"},
			Videos:   []string{".mp4", ".mov", ".avi"},
		},
		Rules: RulesConfig{
			CutoffYear: 2021,
			BeforeCutoff: EpochRules{
				DaysOfWeek: []int{1, 2, 3, 4, 6},
				TimeRanges: []TimeRange{
					{Start: "05:00", End: "08:00"},
					{Start: "18:00", End: "22:00"},
				},
			},
			AfterCutoff: WeekdayRules{
				DaysOfWeek: []int{0, 1, 2, 3, 4, 6},
				TimeRanges: map[string][]TimeRange{
					"0": {{Start: "08:00", End: "13:00"}},
					"1": {{Start: "05:00", End: "08:00"}, {Start: "18:00", End: "21:00"}},
					"2": {{Start: "05:00", End: "08:00"}, {Start: "18:00", End: "21:00"}},
					"3": {{Start: "18:00", End: "22:00"}},
					"4": {{Start: "05:00", End: "08:00"}, {Start: "18:00", End: "21:00"}},
					"6": {{Start: "08:00", End: "16:00"}},
				},
			},
		},
		Options: Options{
			EnableDeduplication:  true,
			CreateMissingFolders: true,
			EnableIncremental:    true,
			Workers:              4,
		},
		StateDir: "state",
	}
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Discover returns the config path to use: the explicit path if given,
// then $PHONESYNC_CONFIG, then ./phonesync.json, then ~/.phonesync/phonesync.json.
func Discover(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, nil
	}
	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config: %w", err)
	}
	return filepath.Join(home, ".phonesync", DefaultFileName), nil
}

// Validate checks structural requirements and the routing rules.
func (c *Config) Validate() error {
	if len(c.SourceFolders) == 0 {
		return fmt.Errorf("source_folders must not be empty")
	}
	if c.TargetPaths.Pictures == "" || c.TargetPaths.Videos == "" || c.TargetPaths.Wudan == "" {
		return fmt.Errorf("target_paths requires pictures, videos and wudan roots")
	}
	if len(c.FileExtensions.Pictures) == 0 || len(c.FileExtensions.Videos) == 0 {
		return fmt.Errorf("file_extensions requires pictures and videos lists")
	}
	if c.Options.Workers < 1 {
		return fmt.Errorf("options.workers must be at least 1, got %d", c.Options.Workers)
	}
	if c.Rules.CutoffYear < 1900 || c.Rules.CutoffYear > 2100 {
		return fmt.Errorf("wudan_rules.cutoff_year out of range: %d", c.Rules.CutoffYear)
	}
	return c.Rules.validate()
}

func (r *RulesConfig) validate() error {
	for _, d := range r.BeforeCutoff.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("before_cutoff: invalid day of week %d (must be 0-6)", d)
		}
	}
	for _, tr := range r.BeforeCutoff.TimeRanges {
		if err := tr.validate(); err != nil {
			return fmt.Errorf("before_cutoff: %w", err)
		}
	}
	for _, d := range r.AfterCutoff.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("after_cutoff: invalid day of week %d (must be 0-6)", d)
		}
	}
	for key, ranges := range r.AfterCutoff.TimeRanges {
		day, err := strconv.Atoi(key)
		if err != nil || day < 0 || day > 6 {
			return fmt.Errorf("after_cutoff: invalid weekday key %q (must be \"0\"-\"6\")", key)
		}
		for _, tr := range ranges {
			if err := tr.validate(); err != nil {
				return fmt.Errorf("after_cutoff day %d: %w", day, err)
			}
		}
	}
	return nil
}

func (tr TimeRange) validate() error {
	start, err := ParseClock(tr.Start)
	if err != nil {
		return err
	}
	end, err := ParseClock(tr.End)
	if err != nil {
		return err
	}
	if end < start {
		return fmt.Errorf("time range %s-%s ends before it starts", tr.Start, tr.End)
	}
	return nil
}

// ParseClock parses an HH:MM string into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format %q (want HH:MM)", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time format %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time format %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return hour*60 + minute, nil
}
