// Package batchsched drives recurring session submission: a cron
// expression fires a named schedule, which enqueues the plans it names
// as a fresh orchestrator session. Not part of spec.md's core
// components, but a natural ambient surface for a CLI that would
// otherwise require an external cron entry calling `paratest run`.
//
// Grounded on internal/batch/config.go and scheduler.go, repurposed
// from ERP batch-task runs to recurring test-session submission.
package batchsched

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/robfig/cron/v3"
)

// ScheduleConfig represents one recurring session submission.
type ScheduleConfig struct {
	Name        string        `toml:"name"`
	Cron        string        `toml:"cron"`
	Plans       []string      `toml:"plans"`
	MaxDuration time.Duration `toml:"max_duration"`
	Notify      bool          `toml:"notify"`
}

// ScheduleFile holds every configured schedule, as loaded from TOML.
type ScheduleFile struct {
	Schedules []ScheduleConfig `toml:"schedule"`
}

// Validate checks a schedule's required fields and normalizes defaults.
func (c *ScheduleConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("schedule name is required")
	}
	if c.Cron == "" {
		return fmt.Errorf("cron expression is required")
	}
	if _, err := ParseCron(c.Cron); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if len(c.Plans) == 0 {
		return fmt.Errorf("schedule %s: at least one plan is required", c.Name)
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 4 * time.Hour
	}
	return nil
}

// ParseCron parses a standard five-field cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// LoadScheduleFile reads schedule configuration from a TOML file. A
// missing file yields an empty, valid ScheduleFile.
func LoadScheduleFile(path string) (*ScheduleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ScheduleFile{}, nil
		}
		return nil, err
	}

	var sf ScheduleFile
	if err := toml.Unmarshal(data, &sf); err != nil {
		return nil, err
	}

	for i := range sf.Schedules {
		if err := sf.Schedules[i].Validate(); err != nil {
			return nil, fmt.Errorf("schedule %d: %w", i, err)
		}
	}

	return &sf, nil
}
