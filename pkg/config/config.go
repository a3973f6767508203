package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	errs "eoscraper/pkg/errors"
)

// RolePlaceholder is substituted with the crawled role in URL and path templates
const RolePlaceholder = "{role}"

// RowPlaceholder is substituted with the 1-based row number in row selectors
const RowPlaceholder = "{row}"

// Run modes of the supervisor
const (
	ModeOnce          = "once"
	ModeUntilComplete = "until-complete"
	ModeContinuous    = "continuous"
)

// Config holds all configuration options for the harvester
type Config struct {
	// What to crawl and how to pace the estimate
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Browser automation and selectors
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Restart policy
	Supervisor SupervisorConfig `yaml:"supervisor" json:"supervisor"`

	// Durable storage of harvested records
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`

	// Pacing of detail views
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CrawlConfig selects the catalog and seeds the progress estimate
type CrawlConfig struct {
	Role                 string        `yaml:"role" json:"role" validate:"required"`
	RowsPerPage          int           `yaml:"rows_per_page" json:"rows_per_page" validate:"gt=0"`
	TotalExpectedRecords int           `yaml:"total_expected_records" json:"total_expected_records" validate:"gte=0"`
	PageLoadTime         time.Duration `yaml:"page_load_time" json:"page_load_time" validate:"gte=0"`
	StartFromLastPage    bool          `yaml:"start_from_last_page" json:"start_from_last_page"`
}

// BrowserConfig drives the chromedp record source
type BrowserConfig struct {
	ListingURL     string            `yaml:"listing_url" json:"listing_url" validate:"required"`
	Roles          map[string]string `yaml:"roles" json:"roles" validate:"required,min=1"`
	WaitTimeout    time.Duration     `yaml:"wait_timeout" json:"wait_timeout" validate:"gt=0"`
	PollInterval   time.Duration     `yaml:"poll_interval" json:"poll_interval" validate:"gt=0"`
	SettleDelay    time.Duration     `yaml:"settle_delay" json:"settle_delay" validate:"gte=0"`
	Headless       bool              `yaml:"headless" json:"headless"`
	Flags          []string          `yaml:"flags" json:"flags"`
	UserAgent      string            `yaml:"user_agent" json:"user_agent"`
	WindowWidth    int               `yaml:"window_width" json:"window_width" validate:"gte=0"`
	WindowHeight   int               `yaml:"window_height" json:"window_height" validate:"gte=0"`
	RecordURLField string            `yaml:"record_url_field" json:"record_url_field"`
	SkipHeadings   []string          `yaml:"skip_headings" json:"skip_headings"`
	Selectors      SelectorConfig    `yaml:"selectors" json:"selectors"`
}

// SelectorConfig lists the element queries used by the browser source.
// Both CSS selectors and XPath expressions are accepted.
type SelectorConfig struct {
	Table             string `yaml:"table" json:"table" validate:"required"`
	Rows              string `yaml:"rows" json:"rows" validate:"required"`
	RowID             string `yaml:"row_id" json:"row_id" validate:"required"`
	DetailButton      string `yaml:"detail_button" json:"detail_button" validate:"required"`
	DetailReady       string `yaml:"detail_ready" json:"detail_ready" validate:"required"`
	DetailContainer   string `yaml:"detail_container" json:"detail_container" validate:"required"`
	FieldBlocks       string `yaml:"field_blocks" json:"field_blocks" validate:"required"`
	LastUpdated       string `yaml:"last_updated" json:"last_updated"`
	NextButton        string `yaml:"next_button" json:"next_button" validate:"required"`
	LastButton        string `yaml:"last_button" json:"last_button"`
	DisabledClass     string `yaml:"disabled_class" json:"disabled_class" validate:"required"`
	PageSizeTrigger   string `yaml:"page_size_trigger" json:"page_size_trigger"`
	PageSizeOptions   string `yaml:"page_size_options" json:"page_size_options"`
	CookieAccept      string `yaml:"cookie_accept" json:"cookie_accept"`
	CookiePromptClose string `yaml:"cookie_prompt_close" json:"cookie_prompt_close"`
}

// SupervisorConfig holds the restart policy
type SupervisorConfig struct {
	Mode                   string        `yaml:"mode" json:"mode" validate:"oneof=once until-complete continuous"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures" json:"max_consecutive_failures" validate:"gt=0"`
	Backoff                time.Duration `yaml:"backoff" json:"backoff" validate:"gte=0"`
	BackoffStrategy        string        `yaml:"backoff_strategy" json:"backoff_strategy" validate:"oneof=constant exponential"`
	MaxBackoff             time.Duration `yaml:"max_backoff" json:"max_backoff" validate:"gte=0"`
	MaxMemoryMB            int           `yaml:"max_memory_mb" json:"max_memory_mb" validate:"gte=0"`
}

// CheckpointConfig holds the checkpoint location
type CheckpointConfig struct {
	Path    string `yaml:"path" json:"path" validate:"required"`
	Backend string `yaml:"backend" json:"backend" validate:"oneof=json sqlite"`
}

// RateLimitConfig holds pacing of detail views. Zero disables pacing.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute" validate:"gte=0"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns a Config targeting the EUDAMED economic operator search
func DefaultConfig() *Config {
	const screen = "/html/body/app-root/eui-block-content/div/ecl-app/div/div/div"
	const table = screen + "/app-search-eo/eui-block-content/div/div/p-table/div"
	const detail = screen + "/app-eo-detail/eui-block-content/div/div/div[2]/div[2]/div[1]/div/mat-accordion/mat-expansion-panel/div/div"

	return &Config{
		Crawl: CrawlConfig{
			Role:                 "manufacturer",
			RowsPerPage:          50,
			TotalExpectedRecords: 23153,
			PageLoadTime:         2 * time.Second,
			StartFromLastPage:    false,
		},
		Browser: BrowserConfig{
			ListingURL: "https://ec.europa.eu/tools/eudamed/#/screen/search-eo?actorTypeCode=" + RolePlaceholder + "&submitted=true",
			Roles: map[string]string{
				"manufacturer":                   "refdata.actor-type.manufacturer",
				"importer":                       "refdata.actor-type.importer",
				"authorised-representative":      "refdata.actor-type.authorised-representative",
				"system-procedure-pack-producer": "refdata.actor-type.system-procedure-pack-producer",
			},
			WaitTimeout:  10 * time.Second,
			PollInterval: 250 * time.Millisecond,
			SettleDelay:  2 * time.Second,
			Headless:     true,
			Flags: []string{
				"disable-extensions",
				"disable-infobars",
				"disable-gpu",
				"disable-notifications",
			},
			WindowWidth:    1920,
			WindowHeight:   1080,
			RecordURLField: "Actor URL",
			SkipHeadings: []string{
				"Actor identification",
				"Actor address",
				"Actor contact details",
			},
			Selectors: SelectorConfig{
				Table:             screen + "/app-search-eo/eui-block-content/div",
				Rows:              "tr",
				RowID:             table + "/div/table/tbody/tr[" + RowPlaceholder + "]/td[1]",
				DetailButton:      table + "/div/table/tbody/tr[" + RowPlaceholder + "]/td[8]/button",
				DetailReady:       "#actor_information",
				DetailContainer:   detail + "/div[2]",
				FieldBlocks:       "dl",
				LastUpdated:       detail + "/div[1]/app-history-nav/ul/li[2]",
				NextButton:        table + "/p-paginator/div/button[3]",
				LastButton:        table + "/p-paginator/div/button[4]",
				DisabledClass:     "p-disabled",
				PageSizeTrigger:   ".p-dropdown-trigger",
				PageSizeOptions:   "p-dropdownitem",
				CookieAccept:      "//a[@href='#accept']",
				CookiePromptClose: ".wt-ecl-message__close",
			},
		},
		Supervisor: SupervisorConfig{
			Mode:                   ModeUntilComplete,
			MaxConsecutiveFailures: 5,
			Backoff:                30 * time.Second,
			BackoffStrategy:        "constant",
			MaxBackoff:             10 * time.Minute,
			MaxMemoryMB:            10 * 1024,
		},
		Checkpoint: CheckpointConfig{
			Path:    "eudamed_" + RolePlaceholder + ".json",
			Backend: "json",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   "",
			Format: "auto",
		},
	}
}

// CheckpointPath returns the checkpoint path with the role substituted
func (c *Config) CheckpointPath() string {
	return strings.ReplaceAll(c.Checkpoint.Path, RolePlaceholder, c.Crawl.Role)
}

// ListingURL returns the listing URL for role
func (c *Config) ListingURL(role string) (string, error) {
	return c.Browser.RoleURL(role)
}

// RoleURL expands the listing URL template with the catalog code of role
func (b *BrowserConfig) RoleURL(role string) (string, error) {
	code, ok := b.Roles[role]
	if !ok {
		return "", errs.Configuration("listing url", "unknown role %q", role)
	}
	return strings.ReplaceAll(b.ListingURL, RolePlaceholder, code), nil
}

// RowSelector substitutes the 1-based row number into a row selector
func RowSelector(template string, row int) string {
	return strings.ReplaceAll(template, RowPlaceholder, strconv.Itoa(row))
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errList []error

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errList = append(errList, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := ParseDuration(v)
			if err != nil {
				errList = append(errList, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errList = append(errList, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	// Crawl
	str("EOSCRAPER_ROLE", &c.Crawl.Role)
	integer("EOSCRAPER_ROWS_PER_PAGE", &c.Crawl.RowsPerPage)
	integer("EOSCRAPER_TOTAL_EXPECTED_RECORDS", &c.Crawl.TotalExpectedRecords)
	duration("EOSCRAPER_PAGE_LOAD_TIME", &c.Crawl.PageLoadTime)
	boolean("EOSCRAPER_START_FROM_LAST_PAGE", &c.Crawl.StartFromLastPage)

	// Browser
	duration("EOSCRAPER_WAIT_TIMEOUT", &c.Browser.WaitTimeout)
	boolean("EOSCRAPER_HEADLESS", &c.Browser.Headless)
	str("EOSCRAPER_USER_AGENT", &c.Browser.UserAgent)

	// Supervisor
	str("EOSCRAPER_MODE", &c.Supervisor.Mode)
	integer("EOSCRAPER_MAX_CONSECUTIVE_FAILURES", &c.Supervisor.MaxConsecutiveFailures)
	duration("EOSCRAPER_BACKOFF", &c.Supervisor.Backoff)
	str("EOSCRAPER_BACKOFF_STRATEGY", &c.Supervisor.BackoffStrategy)
	integer("EOSCRAPER_MAX_MEMORY_MB", &c.Supervisor.MaxMemoryMB)

	// Checkpoint
	str("EOSCRAPER_CHECKPOINT_PATH", &c.Checkpoint.Path)
	str("EOSCRAPER_CHECKPOINT_BACKEND", &c.Checkpoint.Backend)

	// Rate limiting
	integer("EOSCRAPER_REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)

	// Logging
	str("EOSCRAPER_LOG_LEVEL", &c.Logging.Level)
	str("EOSCRAPER_LOG_FILE", &c.Logging.File)
	str("EOSCRAPER_LOG_FORMAT", &c.Logging.Format)

	if len(errList) > 0 {
		return errs.Wrap(errs.ErrorTypeConfiguration, "environment", errors.Join(errList...))
	}
	return nil
}

// ParseDuration accepts Go duration strings ("30s", "1m30s") or a bare
// number of seconds
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".eoscraper.yaml",
		".eoscraper.yml",
		filepath.Join(home, ".config", "eoscraper", "config.yaml"),
		filepath.Join(home, ".config", "eoscraper", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks if the configuration is valid. Every failure is a
// configuration error, which the supervisor never retries.
func (c *Config) Validate() error {
	var errList []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errList = append(errList, fmt.Errorf("%s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errList = append(errList, err)
		}
	}

	if _, ok := c.Browser.Roles[c.Crawl.Role]; c.Crawl.Role != "" && !ok {
		known := make([]string, 0, len(c.Browser.Roles))
		for r := range c.Browser.Roles {
			known = append(known, r)
		}
		errList = append(errList, fmt.Errorf("unknown role %q (known: %s)", c.Crawl.Role, strings.Join(known, ", ")))
	}
	if c.Browser.ListingURL != "" && !strings.Contains(c.Browser.ListingURL, RolePlaceholder) {
		errList = append(errList, fmt.Errorf("listing url must contain %s", RolePlaceholder))
	}
	for name, sel := range map[string]string{
		"row_id":        c.Browser.Selectors.RowID,
		"detail_button": c.Browser.Selectors.DetailButton,
	} {
		if sel != "" && !strings.Contains(sel, RowPlaceholder) {
			errList = append(errList, fmt.Errorf("selector %s must contain %s", name, RowPlaceholder))
		}
	}
	if c.Browser.PollInterval > c.Browser.WaitTimeout && c.Browser.WaitTimeout > 0 {
		errList = append(errList, errors.New("poll interval cannot exceed wait timeout"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errList = append(errList, errors.New("invalid log level"))
	}
	validFormats := map[string]bool{"": true, "auto": true, "console": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errList = append(errList, errors.New("invalid log format"))
	}

	if len(errList) > 0 {
		return errs.Wrap(errs.ErrorTypeConfiguration, "config validate", errors.Join(errList...))
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in flags are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if role, ok := flags["role"].(string); ok && role != "" {
		c.Crawl.Role = role
	}
	if rows, ok := flags["rows-per-page"].(int); ok {
		c.Crawl.RowsPerPage = rows
	}
	if total, ok := flags["total-expected"].(int); ok {
		c.Crawl.TotalExpectedRecords = total
	}
	if fromLast, ok := flags["from-last-page"].(bool); ok {
		c.Crawl.StartFromLastPage = fromLast
	}
	if wait, ok := flags["wait-timeout"].(time.Duration); ok {
		c.Browser.WaitTimeout = wait
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if mode, ok := flags["mode"].(string); ok && mode != "" {
		c.Supervisor.Mode = mode
	}
	if maxFailures, ok := flags["max-failures"].(int); ok {
		c.Supervisor.MaxConsecutiveFailures = maxFailures
	}
	if backoff, ok := flags["backoff"].(time.Duration); ok {
		c.Supervisor.Backoff = backoff
	}
	if path, ok := flags["checkpoint"].(string); ok && path != "" {
		c.Checkpoint.Path = path
	}
	if backend, ok := flags["checkpoint-backend"].(string); ok && backend != "" {
		c.Checkpoint.Backend = backend
	}
	if rpm, ok := flags["rate-limit"].(int); ok {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".eoscraper.env"))
	}

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfiguration, "config file", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, err
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
