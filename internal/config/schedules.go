package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// JobSchedule configures one scheduled job for the local server.
type JobSchedule struct {
	Schedule    string `yaml:"schedule"`
	Enabled     bool   `yaml:"enabled"`
	Description string `yaml:"description"`
}

// Schedules maps job names to their schedule.
type Schedules struct {
	Jobs map[string]*JobSchedule `yaml:"jobs"`
}

// LoadSchedulesFromPath loads the job schedule file at path.
func LoadSchedulesFromPath(path string) (*Schedules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedules config: %w", err)
	}
	return ParseSchedules(data)
}

// ParseSchedules decodes and validates a schedule document.
func ParseSchedules(data []byte) (*Schedules, error) {
	var cfg Schedules
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse schedules config: %w", err)
	}

	for name, job := range cfg.Jobs {
		if job == nil {
			return nil, fmt.Errorf("job %s: empty definition", name)
		}
		job.Schedule = strings.TrimSpace(job.Schedule)
		if job.Schedule == "" {
			return nil, fmt.Errorf("job %s: schedule is required", name)
		}
	}

	return &cfg, nil
}

// LoadSchedulesOrDefault loads the schedule file or returns the default one
// if it cannot be read.
func LoadSchedulesOrDefault(path string) *Schedules {
	cfg, err := LoadSchedulesFromPath(path)
	if err != nil {
		return DefaultSchedules()
	}
	return cfg
}

// DefaultSchedules returns the built-in schedule.
func DefaultSchedules() *Schedules {
	return &Schedules{
		Jobs: map[string]*JobSchedule{
			"AuthorsListCron": {
				Schedule:    "*/5 * * * *",
				Enabled:     true,
				Description: "Logs every author currently stored",
			},
			"AuthorCreationCron": {
				Schedule:    "@hourly",
				Enabled:     false,
				Description: "Always fails; exercises job error handling",
			},
		},
	}
}

// Enabled returns the names of enabled jobs in a stable order.
func (s *Schedules) Enabled() []string {
	var names []string
	for name, job := range s.Jobs {
		if job.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
