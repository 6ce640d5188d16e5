package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Maps    MapsConfig    `toml:"maps"`
	Backend BackendConfig `toml:"backend"`
	Browser BrowserConfig `toml:"browser"`
	Script  ScriptConfig  `toml:"script"`
	Report  ReportConfig  `toml:"report"`
	Watch   WatchConfig   `toml:"watch"`
	Logging LoggingConfig `toml:"logging"`
}

// MapsConfig contains Google Maps JavaScript API loader configuration
type MapsConfig struct {
	APIKey    string   `toml:"api_key"`                         // Maps JavaScript API key (prefer MAPCHECK_MAPS_API_KEY)
	Version   string   `toml:"version" validate:"required"`     // Loader channel or version: "weekly", "quarterly", "3.55"
	Libraries []string `toml:"libraries" validate:"dive,alpha"` // Extra libraries requested from the loader, e.g. ["places"]
	Language  string   `toml:"language"`
	Region    string   `toml:"region"`
	BaseURL   string   `toml:"base_url" validate:"required,url"`
}

// BackendConfig selects which mapping client the diagnostic runs against
type BackendConfig struct {
	Name string `toml:"name" validate:"required,oneof=browser script"` // "browser" (headless Chrome) or "script" (embedded JS VM)
}

// BrowserConfig contains headless Chrome configuration for the browser backend
type BrowserConfig struct {
	Headless       bool   `toml:"headless"`
	NoSandbox      bool   `toml:"no_sandbox"`
	DisableGPU     bool   `toml:"disable_gpu"`
	UserAgent      string `toml:"user_agent"`
	ExecPath       string `toml:"exec_path"`       // Chrome binary; empty uses chromedp discovery
	LoadTimeout    string `toml:"load_timeout"`    // Duration string, how long to wait for google.maps to appear (default: "15s")
	RequestTimeout string `toml:"request_timeout"` // Duration string per CDP request (default: "30s")
}

// LoadTimeoutDuration returns the parsed load_timeout, or the default when unparseable
func (b BrowserConfig) LoadTimeoutDuration() time.Duration {
	return durationOr(b.LoadTimeout, defaultLoadTimeout)
}

// RequestTimeoutDuration returns the parsed request_timeout, or the default when unparseable
func (b BrowserConfig) RequestTimeoutDuration() time.Duration {
	return durationOr(b.RequestTimeout, defaultRequestTimeout)
}

// ScriptConfig contains configuration for the embedded JavaScript backend
type ScriptConfig struct {
	Files   []string `toml:"files"`   // Scripts evaluated in order before the checks run
	Timeout string   `toml:"timeout"` // Per-script evaluation timeout as duration string (default: "10s")
}

// TimeoutDuration returns the parsed timeout, or the default when unparseable
func (s ScriptConfig) TimeoutDuration() time.Duration {
	return durationOr(s.Timeout, defaultScriptTimeout)
}

const (
	defaultLoadTimeout    = 15 * time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultScriptTimeout  = 10 * time.Second
)

// ReportConfig controls how the run report is rendered
type ReportConfig struct {
	Format      string `toml:"format" validate:"oneof=text json yaml"`
	FailOnError bool   `toml:"fail_on_error"` // Exit non-zero when any check fails
}

// WatchConfig contains the schedule for repeated diagnostics
type WatchConfig struct {
	Schedule string `toml:"schedule"`  // Cron format with seconds, e.g. "0 */5 * * * *"
	OnChange bool   `toml:"on_change"` // Also run when a script file changes
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"`
	Output     []string `toml:"output" validate:"dive,oneof=stdout console file"`
	TimeFormat string   `toml:"time_format"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Maps: MapsConfig{
			APIKey:    "", // User must provide API key via env or config file
			Version:   "weekly",
			Libraries: []string{"places"},
			BaseURL:   "https://maps.googleapis.com/maps/api/js",
		},
		Backend: BackendConfig{
			Name: "browser",
		},
		Browser: BrowserConfig{
			Headless:       true,
			NoSandbox:      false,
			DisableGPU:     true,
			UserAgent:      "Mapcheck/1.0",
			LoadTimeout:    "15s",
			RequestTimeout: "30s",
		},
		Script: ScriptConfig{
			Timeout: "10s",
		},
		Report: ReportConfig{
			Format:      "text",
			FailOnError: true,
		},
		Watch: WatchConfig{
			Schedule: "0 */5 * * * *", // Every 5 minutes
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Maps configuration
	if apiKey := os.Getenv("MAPCHECK_MAPS_API_KEY"); apiKey != "" {
		config.Maps.APIKey = apiKey
	}
	if version := os.Getenv("MAPCHECK_MAPS_VERSION"); version != "" {
		config.Maps.Version = version
	}
	if libraries := os.Getenv("MAPCHECK_MAPS_LIBRARIES"); libraries != "" {
		config.Maps.Libraries = splitList(libraries)
	}
	if language := os.Getenv("MAPCHECK_MAPS_LANGUAGE"); language != "" {
		config.Maps.Language = language
	}
	if region := os.Getenv("MAPCHECK_MAPS_REGION"); region != "" {
		config.Maps.Region = region
	}

	// Backend configuration
	if name := os.Getenv("MAPCHECK_BACKEND"); name != "" {
		config.Backend.Name = name
	}

	// Browser configuration
	if headless := os.Getenv("MAPCHECK_BROWSER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if noSandbox := os.Getenv("MAPCHECK_BROWSER_NO_SANDBOX"); noSandbox != "" {
		if ns, err := strconv.ParseBool(noSandbox); err == nil {
			config.Browser.NoSandbox = ns
		}
	}
	if execPath := os.Getenv("MAPCHECK_BROWSER_EXEC_PATH"); execPath != "" {
		config.Browser.ExecPath = execPath
	}
	if loadTimeout := os.Getenv("MAPCHECK_BROWSER_LOAD_TIMEOUT"); loadTimeout != "" {
		if _, err := time.ParseDuration(loadTimeout); err == nil {
			config.Browser.LoadTimeout = loadTimeout
		}
	}
	if requestTimeout := os.Getenv("MAPCHECK_BROWSER_REQUEST_TIMEOUT"); requestTimeout != "" {
		if _, err := time.ParseDuration(requestTimeout); err == nil {
			config.Browser.RequestTimeout = requestTimeout
		}
	}

	// Script configuration
	if files := os.Getenv("MAPCHECK_SCRIPT_FILES"); files != "" {
		config.Script.Files = splitList(files)
	}
	if timeout := os.Getenv("MAPCHECK_SCRIPT_TIMEOUT"); timeout != "" {
		if _, err := time.ParseDuration(timeout); err == nil {
			config.Script.Timeout = timeout
		}
	}

	// Report configuration
	if format := os.Getenv("MAPCHECK_REPORT_FORMAT"); format != "" {
		config.Report.Format = format
	}

	// Watch configuration
	if schedule := os.Getenv("MAPCHECK_WATCH_SCHEDULE"); schedule != "" {
		config.Watch.Schedule = schedule
	}
	if onChange := os.Getenv("MAPCHECK_WATCH_ON_CHANGE"); onChange != "" {
		if oc, err := strconv.ParseBool(onChange); err == nil {
			config.Watch.OnChange = oc
		}
	}

	// Logging configuration
	if level := os.Getenv("MAPCHECK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("MAPCHECK_LOG_OUTPUT"); output != "" {
		if outputs := splitList(output); len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// FlagOverrides holds command-line values that take precedence over all other sources
type FlagOverrides struct {
	Backend     string
	Format      string
	LogLevel    string
	Schedule    string
	ScriptFiles []string
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, flags FlagOverrides) {
	if flags.Backend != "" {
		config.Backend.Name = flags.Backend
	}
	if flags.Format != "" {
		config.Report.Format = flags.Format
	}
	if flags.LogLevel != "" {
		config.Logging.Level = flags.LogLevel
	}
	if flags.Schedule != "" {
		config.Watch.Schedule = flags.Schedule
	}
	if len(flags.ScriptFiles) > 0 {
		config.Script.Files = flags.ScriptFiles
	}
}

// Validate checks struct constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	durations := []struct{ name, value string }{
		{"browser.load_timeout", c.Browser.LoadTimeout},
		{"browser.request_timeout", c.Browser.RequestTimeout},
		{"script.timeout", c.Script.Timeout},
	}
	for _, d := range durations {
		if err := validatePositiveDuration(d.value); err != nil {
			return fmt.Errorf("invalid configuration: %s: %w", d.name, err)
		}
	}
	if c.Backend.Name == "script" && len(c.Script.Files) == 0 {
		return fmt.Errorf("invalid configuration: script backend requires at least one script file")
	}
	if c.Watch.Schedule != "" {
		if err := ValidateSchedule(c.Watch.Schedule); err != nil {
			return fmt.Errorf("invalid configuration: watch.schedule: %w", err)
		}
	}
	return nil
}

func validatePositiveDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be greater than zero, got %q", value)
	}
	return nil
}

func durationOr(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return fallback
}

// ValidateSchedule validates a cron schedule expression with a leading seconds field
func ValidateSchedule(schedule string) error {
	if _, err := ScheduleParser().Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// ScheduleParser returns the cron parser used for watch schedules
func ScheduleParser() cron.Parser {
	return cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// RedactKey masks an API key for logging, keeping only the last four characters
func RedactKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "***REDACTED***"
	}
	return "***REDACTED***" + key[len(key)-4:]
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
