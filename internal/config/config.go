// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration. Values are resolved by
// viper with the usual precedence: flags > environment > config file >
// defaults.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Timeouts TimeoutConfig  `mapstructure:"timeouts" yaml:"timeouts"`
	Evidence EvidenceConfig `mapstructure:"evidence" yaml:"evidence"`
	Compare  CompareConfig  `mapstructure:"compare" yaml:"compare"`
	Fuzz     FuzzConfig     `mapstructure:"fuzz" yaml:"fuzz"`
}

// LoggerConfig mirrors the observability package's needs.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // console | json
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls the chromedp-backed driver.
type BrowserConfig struct {
	Headless        bool   `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool   `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string `mapstructure:"user_agent" yaml:"user_agent"`
	Debug           bool   `mapstructure:"debug" yaml:"debug"`
}

// OutputConfig controls where run artifacts land.
type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// TimeoutConfig carries the per-operation wait budgets. A wait exceeding its
// budget converts the run to FAILED, not ERRORED.
type TimeoutConfig struct {
	PageLoad time.Duration `mapstructure:"page_load" yaml:"page_load"`
	WaitText time.Duration `mapstructure:"wait_text" yaml:"wait_text"`
	Eval     time.Duration `mapstructure:"eval" yaml:"eval"`
	Probe    time.Duration `mapstructure:"probe" yaml:"probe"`
}

// EvidenceConfig configures checkpoint capture extras.
type EvidenceConfig struct {
	ProbeCmds           []string `mapstructure:"probe_cmds" yaml:"probe_cmds"`
	ProbeCwd            string   `mapstructure:"probe_cwd" yaml:"probe_cwd"`
	AIExplorer          bool     `mapstructure:"ai_explorer" yaml:"ai_explorer"`
	RawValuePatterns    []string `mapstructure:"raw_value_patterns" yaml:"raw_value_patterns"`
	LabelTerms          []string `mapstructure:"label_terms" yaml:"label_terms"`
	ToolPayloadPatterns []string `mapstructure:"tool_payload_patterns" yaml:"tool_payload_patterns"`
}

// CompareConfig configures paired baseline/modified runs.
type CompareConfig struct {
	BeforeCmd      string `mapstructure:"before_cmd" yaml:"before_cmd"`
	BetweenCmd     string `mapstructure:"between_cmd" yaml:"between_cmd"`
	AfterCmd       string `mapstructure:"after_cmd" yaml:"after_cmd"`
	ContinueOnFail bool   `mapstructure:"continue_on_fail" yaml:"continue_on_fail"`
	Retries        int    `mapstructure:"retries" yaml:"retries"`
}

// FuzzConfig configures the seeded monkey tester.
type FuzzConfig struct {
	Seed             int64         `mapstructure:"seed" yaml:"seed"`
	Duration         time.Duration `mapstructure:"duration" yaml:"duration"`
	Safety           string        `mapstructure:"safety" yaml:"safety"` // read-only | dangerous
	ScreenshotEvery  int           `mapstructure:"screenshot_every" yaml:"screenshot_every"`
	CheckpointEvery  int           `mapstructure:"checkpoint_every" yaml:"checkpoint_every"`
	ActionsPerSecond float64       `mapstructure:"actions_per_second" yaml:"actions_per_second"`
}

// NewDefaultConfig returns a Config populated with the registered defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		// Defaults are static; an unmarshal failure here is a programming error.
		panic(fmt.Sprintf("config: failed to unmarshal defaults: %v", err))
	}
	return cfg
}

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "intentcheck")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// Browser
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.debug", false)

	// Output
	v.SetDefault("output.dir", "./test_outputs")

	// Timeouts
	v.SetDefault("timeouts.page_load", "120s")
	v.SetDefault("timeouts.wait_text", "30s")
	v.SetDefault("timeouts.eval", "15s")
	v.SetDefault("timeouts.probe", "60s")

	// Evidence
	v.SetDefault("evidence.ai_explorer", false)

	// Compare
	v.SetDefault("compare.continue_on_fail", false)
	v.SetDefault("compare.retries", 0)

	// Fuzz
	v.SetDefault("fuzz.seed", 1337)
	v.SetDefault("fuzz.duration", "10m")
	v.SetDefault("fuzz.safety", "read-only")
	v.SetDefault("fuzz.screenshot_every", 10)
	v.SetDefault("fuzz.checkpoint_every", 0)
	v.SetDefault("fuzz.actions_per_second", 2.0)
}

// Validate checks internal consistency. It does not reach the network.
func (c *Config) Validate() error {
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be 'console' or 'json', got %q", c.Logger.Format)
	}
	switch c.Fuzz.Safety {
	case "read-only", "dangerous":
	default:
		return fmt.Errorf("fuzz.safety must be 'read-only' or 'dangerous', got %q", c.Fuzz.Safety)
	}
	if c.Timeouts.PageLoad <= 0 {
		return fmt.Errorf("timeouts.page_load must be positive")
	}
	if c.Fuzz.Duration <= 0 {
		return fmt.Errorf("fuzz.duration must be positive")
	}
	if c.Fuzz.ActionsPerSecond <= 0 {
		return fmt.Errorf("fuzz.actions_per_second must be positive")
	}
	if c.Compare.Retries < 0 {
		return fmt.Errorf("compare.retries must not be negative")
	}
	return nil
}
