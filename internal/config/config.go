package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kiracore/jiraflow/internal/cycletime"
	"github.com/kiracore/jiraflow/internal/wip"
)

const (
	DefaultWorkers          = 8
	DefaultStalledThreshold = 5
	dateLayout              = "2006-01-02"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds all validation errors
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Config is the explicit configuration of one run
type Config struct {
	Version        string    `yaml:"version" mapstructure:"version" json:"version"`
	TimezoneOffset string    `yaml:"timezone_offset" mapstructure:"timezone_offset" json:"timezone_offset"`
	DataDir        string    `yaml:"data_dir" mapstructure:"data_dir" json:"data_dir"`
	TargetPath     string    `yaml:"target_path" mapstructure:"target_path" json:"target_path"`
	HolidayDates   []string  `yaml:"holiday_dates" mapstructure:"holiday_dates" json:"holiday_dates"`
	Projects       []Project `yaml:"projects" mapstructure:"projects" json:"projects"`
	Settings       Settings  `yaml:"settings" mapstructure:"settings" json:"settings"`
}

// Project configures one downloaded project
type Project struct {
	Name                   string          `yaml:"name" mapstructure:"name" json:"name"`
	FilePrefix             string          `yaml:"file_prefix" mapstructure:"file_prefix" json:"file_prefix"`
	ProjectID              string          `yaml:"project_id" mapstructure:"project_id" json:"project_id,omitempty"`
	BoardID                int             `yaml:"board_id" mapstructure:"board_id" json:"board_id,omitempty"`
	CycleTime              cycletime.Rules `yaml:"cycletime" mapstructure:"cycletime" json:"cycletime"`
	ExpeditedPriorityNames []string        `yaml:"expedited_priority_names" mapstructure:"expedited_priority_names" json:"expedited_priority_names,omitempty"`
	StalledThresholdDays   int             `yaml:"stalled_threshold_days" mapstructure:"stalled_threshold_days" json:"stalled_threshold_days"`
	ParentLinkFields       []string        `yaml:"customfield_parent_links" mapstructure:"customfield_parent_links" json:"customfield_parent_links,omitempty"`
	DiscardChangesBefore   *Discard        `yaml:"discard_changes_before" mapstructure:"discard_changes_before" json:"discard_changes_before,omitempty"`
	GroupingRules          []wip.Rule      `yaml:"grouping_rules" mapstructure:"grouping_rules" json:"grouping_rules,omitempty"`
}

// Discard configures dropping early history. Exactly one field is set.
type Discard struct {
	StatusBecomes []string `yaml:"status_becomes" mapstructure:"status_becomes" json:"status_becomes,omitempty"`
	Date          string   `yaml:"date" mapstructure:"date" json:"date,omitempty"`
}

// Settings holds run settings
type Settings struct {
	Workers  int    `yaml:"workers" mapstructure:"workers" json:"workers"`
	Database string `yaml:"database" mapstructure:"database" json:"database,omitempty"`
}

// Label returns the name used in logs and reports
func (p *Project) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.FilePrefix
}

// StalledThreshold returns the configured threshold or the default
func (p *Project) StalledThreshold() int {
	if p.StalledThresholdDays > 0 {
		return p.StalledThresholdDays
	}
	return DefaultStalledThreshold
}

func defaults() *Config {
	return &Config{
		Version: "1",
		DataDir: "target",
		Settings: Settings{
			Workers: DefaultWorkers,
		},
	}
}

// Load loads configuration from viper
func Load() (*Config, error) {
	cfg := defaults()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFromFile loads configuration from a yaml file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Projects {
		if c.Projects[i].StalledThresholdDays == 0 {
			c.Projects[i].StalledThresholdDays = DefaultStalledThreshold
		}
	}
}

var timezoneRegex = regexp.MustCompile(`^([+-])(\d{2}):(\d{2})$`)

// Location returns the zone for timezone_offset, UTC when unset
func (c *Config) Location() (*time.Location, error) {
	if c.TimezoneOffset == "" {
		return time.UTC, nil
	}
	m := timezoneRegex.FindStringSubmatch(c.TimezoneOffset)
	if m == nil {
		return nil, fmt.Errorf("invalid timezone offset %q (expected +HH:MM or -HH:MM)", c.TimezoneOffset)
	}
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	if hours > 14 || minutes > 59 {
		return nil, fmt.Errorf("invalid timezone offset %q", c.TimezoneOffset)
	}
	offset := hours*3600 + minutes*60
	if m[1] == "-" {
		offset = -offset
	}
	return time.FixedZone(c.TimezoneOffset, offset), nil
}

// Holidays expands holiday_dates. Ranges written a..b include both ends.
func (c *Config) Holidays() ([]time.Time, error) {
	var out []time.Time
	for _, entry := range c.HolidayDates {
		from, to, isRange := strings.Cut(entry, "..")
		start, err := time.Parse(dateLayout, strings.TrimSpace(from))
		if err != nil {
			return nil, fmt.Errorf("invalid holiday %q", entry)
		}
		if !isRange {
			out = append(out, start)
			continue
		}
		end, err := time.Parse(dateLayout, strings.TrimSpace(to))
		if err != nil {
			return nil, fmt.Errorf("invalid holiday range %q", entry)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("holiday range %q ends before it starts", entry)
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			out = append(out, d)
		}
	}
	return out, nil
}

// FindProject returns the project with name or file prefix
func (c *Config) FindProject(name string) (*Project, error) {
	for i := range c.Projects {
		if c.Projects[i].Name == name || c.Projects[i].FilePrefix == name {
			return &c.Projects[i], nil
		}
	}
	return nil, fmt.Errorf("project %q not found in configuration", name)
}

// SelectProjects returns the projects whose label matches pattern.
// An empty pattern selects every project.
func (c *Config) SelectProjects(pattern string) []*Project {
	var out []*Project
	for i := range c.Projects {
		if pattern == "" || matchPattern(pattern, c.Projects[i].Label()) {
			out = append(out, &c.Projects[i])
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	// Version check
	if c.Version == "" {
		result.AddWarning("version", "version not specified, assuming v1")
	} else if c.Version != "1" {
		result.AddWarning("version", fmt.Sprintf("unknown version %q, expected \"1\"", c.Version))
	}

	if _, err := c.Location(); err != nil {
		result.AddError("timezone_offset", err.Error())
	}
	if _, err := c.Holidays(); err != nil {
		result.AddError("holiday_dates", err.Error())
	}
	if c.DataDir == "" {
		result.AddWarning("data_dir", "data_dir not specified, using current directory")
	}

	c.validateProjects(result)
	c.validateSettings(result)

	return result
}

func (c *Config) validateProjects(result *ValidationResult) {
	if len(c.Projects) == 0 {
		result.AddError("projects", "at least one project is required")
		return
	}

	seen := make(map[string]bool)
	for i, p := range c.Projects {
		field := fmt.Sprintf("projects[%d]", i)

		if p.FilePrefix == "" {
			result.AddError(field+".file_prefix", "file prefix is required")
		} else if seen[p.FilePrefix] {
			result.AddError(field+".file_prefix", fmt.Sprintf("duplicate file prefix %q", p.FilePrefix))
		}
		seen[p.FilePrefix] = true

		if p.Name == "" {
			result.AddWarning(field+".name", "name not specified, file prefix will be used")
		}

		if err := p.CycleTime.Check(nil); err != nil {
			result.AddError(field+".cycletime", err.Error())
		}

		if p.StalledThresholdDays < 1 {
			result.AddError(field+".stalled_threshold_days", "stalled threshold must be at least 1 day")
		}

		if d := p.DiscardChangesBefore; d != nil {
			switch {
			case len(d.StatusBecomes) == 0 && d.Date == "":
				result.AddError(field+".discard_changes_before", "either status_becomes or date is required")
			case len(d.StatusBecomes) > 0 && d.Date != "":
				result.AddError(field+".discard_changes_before", "status_becomes and date are mutually exclusive")
			case d.Date != "":
				if _, err := time.Parse(dateLayout, d.Date); err != nil {
					result.AddError(field+".discard_changes_before.date", fmt.Sprintf("invalid date %q", d.Date))
				}
			}
		}

		if err := wip.CheckRules(p.GroupingRules); err != nil {
			result.AddError(field+".grouping_rules", err.Error())
		}
		for j, r := range p.GroupingRules {
			if !r.Ignore && r.Label == "" {
				result.AddWarning(fmt.Sprintf("%s.grouping_rules[%d].label", field, j), "label not specified")
			}
		}

		if len(p.ExpeditedPriorityNames) == 0 {
			result.AddWarning(field+".expedited_priority_names", "no expedited priorities, nothing will show as expedited")
		}
	}
}

func (c *Config) validateSettings(result *ValidationResult) {
	if c.Settings.Workers < 1 {
		result.AddWarning("settings.workers", fmt.Sprintf("workers < 1, will use default (%d)", DefaultWorkers))
	} else if c.Settings.Workers > 64 {
		result.AddWarning("settings.workers", "workers > 64 rarely helps; issues are parsed from local files")
	}
}

// Workers returns the configured worker count or the default
func (c *Config) Workers() int {
	if c.Settings.Workers < 1 {
		return DefaultWorkers
	}
	return c.Settings.Workers
}

// matchPattern does simple glob matching
func matchPattern(pattern, str string) bool {
	if pattern == "*" {
		return true
	}

	// Handle prefix wildcard (*-team)
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(str, pattern[1:])
	}

	// Handle suffix wildcard (sp-*)
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(str, pattern[:len(pattern)-1])
	}

	matched, _ := filepath.Match(pattern, str)
	return matched
}
