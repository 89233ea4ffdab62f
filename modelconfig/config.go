/*
NAME
  config.go

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package modelconfig loads a weather model's YAML configuration (spec
// §4.4) and implements its forecast-cycle scheduling and URL-generation
// logic: which cycle hours are due for download right now, how long a
// given cycle's forecast run is, and the URL set a given cycle needs.
package modelconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Variable is one entry of a model's variables[] list.
type Variable struct {
	InternalID string `yaml:"internal_id"`
	GribID     string `yaml:"grib_id"`
	GribLevel  string `yaml:"grib_level"`
	URLID      string `yaml:"url_id"`
	URLLevel   string `yaml:"url_level"`
	Formula    string `yaml:"formula"`
	// Skip lists forecast hours this variable is omitted from, e.g. a
	// variable NOMADS only publishes for fhour 0.
	Skip []int `yaml:"skip"`
}

type cycleRunConfig struct {
	AppliesToHours []int `yaml:"applies_to_hours"`
	ForecastHours  int   `yaml:"forecast_hours"`
}

type scheduleConfig struct {
	LeadMinutes  int   `yaml:"lead_minutes"`
	IntervalHours int  `yaml:"interval_hours"`
	AllCycles    []int `yaml:"all_cycles"`
	CycleConfigs struct {
		LongRun  cycleRunConfig `yaml:"long_run"`
		ShortRun cycleRunConfig `yaml:"short_run"`
	} `yaml:"cycle_configs"`
}

type downloadConfig struct {
	FhourDigits int    `yaml:"fhour_digits"`
	URLTemplate string `yaml:"url_template"`
	// URLVariableTemplate renders one variable's query fragment for a
	// NOMADS-style source_agency; GenerateURLs joins one fragment per
	// variable with "&" and appends the result to URLTemplate, emitting
	// a single bulk-file URL per forecast hour instead of one URL per
	// (forecast_hour, variable) pair.
	URLVariableTemplate string `yaml:"url_variable_template"`
}

type rawConfig struct {
	Metadata struct {
		ID           string `yaml:"id"`
		SourceAgency string `yaml:"source_agency"`
	} `yaml:"metadata"`
	Schedule  scheduleConfig `yaml:"schedule"`
	Download  downloadConfig `yaml:"download"`
	Variables []Variable     `yaml:"variables"`
}

// Model is a fully loaded weather model configuration.
type Model struct {
	ID           string
	SourceAgency string
	Path         string
	Schedule     scheduleConfig
	Download     downloadConfig
	Variables    []Variable

	allCycles map[int]bool
}

// Load parses a model YAML config at path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "modelconfig: reading %s", path)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "modelconfig: parsing %s", path)
	}
	if raw.Metadata.ID == "" {
		return nil, fmt.Errorf("modelconfig: %s: metadata.id is required", path)
	}

	cycles := make(map[int]bool, len(raw.Schedule.AllCycles))
	for _, h := range raw.Schedule.AllCycles {
		cycles[h] = true
	}

	return &Model{
		ID:           raw.Metadata.ID,
		SourceAgency: raw.Metadata.SourceAgency,
		Path:         path,
		Schedule:     raw.Schedule,
		Download:     raw.Download,
		Variables:    raw.Variables,
		allCycles:    cycles,
	}, nil
}

// LoadAll loads every *.yaml file in dir, skipping (and logging to
// stderr, matching the upstream loader's best-effort behaviour) any
// file that fails to parse.
func LoadAll(dir string) ([]*Model, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, errors.Wrapf(err, "modelconfig: globbing %s", dir)
	}

	var models []*Model
	for _, path := range entries {
		m, err := Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "modelconfig: skipping %s: %v\n", path, err)
			continue
		}
		models = append(models, m)
	}
	return models, nil
}

// ForecastDuration returns the number of forecast hours a cycle starting
// at cycleHour (0-23) runs for, based on the model's long_run/short_run
// cycle_configs buckets, or 0 if cycleHour belongs to neither.
func (m *Model) ForecastDuration(cycleHour int) int {
	for _, h := range m.Schedule.CycleConfigs.LongRun.AppliesToHours {
		if h == cycleHour {
			return m.Schedule.CycleConfigs.LongRun.ForecastHours
		}
	}
	for _, h := range m.Schedule.CycleConfigs.ShortRun.AppliesToHours {
		if h == cycleHour {
			return m.Schedule.CycleConfigs.ShortRun.ForecastHours
		}
	}
	return 0
}

// IsCycleHour reports whether hour is one of the model's scheduled
// cycle hours.
func (m *Model) IsCycleHour(hour int) bool { return m.allCycles[hour] }
