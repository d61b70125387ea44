package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultTimestampFormat is the layout of the timestamp tag in artifact names.
	DefaultTimestampFormat = "2006-01-02_15-04-05"
	// DefaultTimeout bounds a single acquisition.
	DefaultTimeout = 2 * time.Hour
	// MinMaxAge is the smallest retention threshold accepted for any tier.
	MinMaxAge = time.Hour

	EngineMySQL    = "mysql"
	EnginePostgres = "postgres"
)

var (
	// ErrValidateConfig indicates that the loaded configuration is invalid.
	ErrValidateConfig = errors.New("configuration validation failed")

	// ErrConfigurationMissing indicates a declared target lacks a setting it
	// cannot be used without.
	ErrConfigurationMissing = errors.New("configuration missing")
)

// Validate checks the presence of required fields so that later stages never
// have to.
func (c *Config) Validate() error {
	if c.BackupDir == "" {
		return fmt.Errorf("%w: backup_dir is not set", ErrConfigurationMissing)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrValidateConfig, c.Log.Format)
	}
	if err := c.Retention.validate(); err != nil {
		return err
	}
	if err := c.Schedule.validate(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Hosts))
	for i, h := range c.Hosts {
		if h.Name == "" {
			return fmt.Errorf("%w: hosts[%d] has no name", ErrConfigurationMissing, i)
		}
		if !validComponent(h.Name) {
			return fmt.Errorf("%w: host name %q is not a valid path component", ErrValidateConfig, h.Name)
		}
		if seen[h.Name] {
			return fmt.Errorf("%w: host %q declared twice", ErrValidateConfig, h.Name)
		}
		seen[h.Name] = true

		switch h.Engine {
		case "", EngineMySQL, EnginePostgres:
		default:
			return fmt.Errorf("%w: host %q: unknown engine %q", ErrValidateConfig, h.Name, h.Engine)
		}
		for _, db := range h.Databases {
			if db == "" {
				return fmt.Errorf("%w: host %q: empty database name", ErrConfigurationMissing, h.Name)
			}
			if !validComponent(db) {
				return fmt.Errorf("%w: host %q: database %q is not a valid path component", ErrValidateConfig, h.Name, db)
			}
		}
		for _, fg := range h.FileGroups {
			if fg.Name == "" {
				return fmt.Errorf("%w: host %q: file group without name", ErrConfigurationMissing, h.Name)
			}
			if !validComponent(fg.Name) {
				return fmt.Errorf("%w: host %q: file group %q is not a valid path component", ErrValidateConfig, h.Name, fg.Name)
			}
			if len(fg.Paths) == 0 {
				return fmt.Errorf("%w: host %q: file group %q has no paths", ErrConfigurationMissing, h.Name, fg.Name)
			}
		}
	}
	return nil
}

// validate requires every threshold to be at least MinMaxAge and strictly
// greater than the one of the finer tier.
func (r RetentionConfig) validate() error {
	tiers := []struct {
		name string
		p    PeriodConfig
	}{
		{"daily", r.Daily},
		{"weekly", r.Weekly},
		{"monthly", r.Monthly},
		{"yearly", r.Yearly},
	}
	var prev time.Duration
	for _, t := range tiers {
		if t.p.MaxAge < MinMaxAge {
			return fmt.Errorf("%w: retention.%s.max_age %s is below the %s minimum",
				ErrValidateConfig, t.name, t.p.MaxAge, MinMaxAge)
		}
		if t.p.MaxAge <= prev {
			return fmt.Errorf("%w: retention.%s.max_age must exceed the finer tier", ErrValidateConfig, t.name)
		}
		if t.p.Keep < 0 {
			return fmt.Errorf("%w: retention.%s.keep must not be negative", ErrValidateConfig, t.name)
		}
		prev = t.p.MaxAge
	}
	return nil
}

func (s ScheduleConfig) validate() error {
	for name, spec := range map[string]string{"backup": s.Backup, "rotate": s.Rotate} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("%w: schedule.%s: %v", ErrValidateConfig, name, err)
		}
	}
	return nil
}

func validComponent(s string) bool {
	return s != "." && s != ".." && !strings.HasPrefix(s, ".") && !strings.ContainsAny(s, `/\`)
}
