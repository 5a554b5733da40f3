// Package config defines the taskweave application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level taskweave configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Notion    NotionConfig    `json:"notion" yaml:"notion"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	LogLevel  string          `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the HTTP control server.
type ServerConfig struct {
	Addr        string `json:"addr" yaml:"addr"` // listen address, e.g., ":8090"
	BearerToken string `json:"bearer_token,omitempty" yaml:"bearer_token"`
}

// NotionConfig holds credentials for the remote task database.
type NotionConfig struct {
	APIKey     string `json:"api_key,omitempty" yaml:"api_key"`
	DatabaseID string `json:"database_id,omitempty" yaml:"database_id"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url"`
}

// SchedulerConfig controls slot generation and the scheduling cycle.
type SchedulerConfig struct {
	Owner           string   `json:"owner" yaml:"owner"`
	WorkStartHour   int      `json:"work_start_hour" yaml:"work_start_hour"`
	WorkEndHour     int      `json:"work_end_hour" yaml:"work_end_hour"`
	SlotMinutes     int      `json:"slot_minutes" yaml:"slot_minutes"`
	HorizonDays     int      `json:"horizon_days" yaml:"horizon_days"`
	IntervalMinutes int      `json:"interval_minutes" yaml:"interval_minutes"`
	Timezone        string   `json:"timezone" yaml:"timezone"`
	Workdays        []string `json:"workdays,omitempty" yaml:"workdays"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8090",
		},
		Scheduler: SchedulerConfig{
			WorkStartHour:   9,
			WorkEndHour:     17,
			SlotMinutes:     15,
			HorizonDays:     7,
			IntervalMinutes: 10,
			Timezone:        "Local",
			Workdays:        []string{"Mon", "Tue", "Wed", "Thu", "Fri"},
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file, applies environment overrides, and returns
// the parsed configuration. A missing file is not an error; environment
// variables alone can fully configure the scheduler.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables onto the config. Env wins over
// the file so deployments can keep secrets out of it.
func (c *Config) applyEnv() {
	envString(&c.Notion.APIKey, "NOTION_API_KEY")
	envString(&c.Notion.DatabaseID, "NOTION_DB_ID")
	envString(&c.Notion.BaseURL, "NOTION_BASE_URL")
	envString(&c.Server.Addr, "TASKWEAVE_ADDR")
	envString(&c.Server.BearerToken, "BEARER_TOKEN")
	envString(&c.Scheduler.Owner, "TASKWEAVE_OWNER")
	envString(&c.Scheduler.Timezone, "TASKWEAVE_TIMEZONE")
	envString(&c.LogLevel, "TASKWEAVE_LOG_LEVEL")
	envInt(&c.Scheduler.WorkStartHour, "TASKWEAVE_WORK_START_HOUR")
	envInt(&c.Scheduler.WorkEndHour, "TASKWEAVE_WORK_END_HOUR")
	envInt(&c.Scheduler.SlotMinutes, "TASKWEAVE_SLOT_MINUTES")
	envInt(&c.Scheduler.HorizonDays, "TASKWEAVE_HORIZON_DAYS")
	envInt(&c.Scheduler.IntervalMinutes, "TASKWEAVE_INTERVAL_MINUTES")
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

var weekdayNames = map[string]time.Weekday{
	"Sun": time.Sunday, "Mon": time.Monday, "Tue": time.Tuesday,
	"Wed": time.Wednesday, "Thu": time.Thursday, "Fri": time.Friday,
	"Sat": time.Saturday,
}

// WorkdaySet resolves the configured workday names to weekdays.
func (c *SchedulerConfig) WorkdaySet() (map[time.Weekday]bool, error) {
	set := make(map[time.Weekday]bool, len(c.Workdays))
	for _, name := range c.Workdays {
		wd, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown workday %q", name)
		}
		set[wd] = true
	}
	return set, nil
}

// Location resolves the configured IANA timezone name.
func (c *SchedulerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks the scheduler settings. Notion credentials are checked
// separately because the local store mode runs without them.
func (c *Config) Validate() error {
	s := &c.Scheduler
	if s.WorkStartHour < 0 || s.WorkEndHour > 24 || s.WorkStartHour >= s.WorkEndHour {
		return fmt.Errorf("work hours %d-%d invalid: start must be before end within 0-24", s.WorkStartHour, s.WorkEndHour)
	}
	if s.SlotMinutes <= 0 {
		return fmt.Errorf("slot_minutes must be positive, got %d", s.SlotMinutes)
	}
	if s.HorizonDays <= 0 {
		return fmt.Errorf("horizon_days must be positive, got %d", s.HorizonDays)
	}
	if s.IntervalMinutes <= 0 {
		return fmt.Errorf("interval_minutes must be positive, got %d", s.IntervalMinutes)
	}
	if len(s.Workdays) == 0 {
		return fmt.Errorf("workdays must not be empty")
	}
	if _, err := s.WorkdaySet(); err != nil {
		return err
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}

// ValidateNotion checks the remote store credentials.
func (c *Config) ValidateNotion() error {
	if c.Notion.APIKey == "" {
		return fmt.Errorf("notion api_key is required (NOTION_API_KEY)")
	}
	if c.Notion.DatabaseID == "" {
		return fmt.Errorf("notion database_id is required (NOTION_DB_ID)")
	}
	return nil
}
