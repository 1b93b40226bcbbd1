package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"meirbatch/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for a MEIR export run.
type Config struct {
	Login     Login     `yaml:"login"`
	Device    Device    `yaml:"device"`
	Elements  Elements  `yaml:"elements"`
	Dates     Dates     `yaml:"dates"`
	Variables Variables `yaml:"variables"`
	Waits     Waits     `yaml:"waits"`
	Files     Files     `yaml:"files"`
	Browser   Browser   `yaml:"browser"`
	Storage   Storage   `yaml:"storage"`
	Logging   Logging   `yaml:"logging"`
}

// Login identifies the login form. Username and Password are only ever set
// from the environment.
type Login struct {
	URL        string `yaml:"url"`
	UsernameID string `yaml:"username_id"`
	PasswordID string `yaml:"password_id"`
	ButtonID   string `yaml:"button_id"`
	MarkerID   string `yaml:"marker_id"`

	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// Device selects the device whose data is exported.
type Device struct {
	SelectorID string `yaml:"selector_id"`
	Name       string `yaml:"name"`
}

// Elements holds the identifiers of the export form controls.
type Elements struct {
	DateStartID      string `yaml:"date_start_id"`
	DateEndID        string `yaml:"date_end_id"`
	TimeStartID      string `yaml:"time_start_id"`
	TimeEndID        string `yaml:"time_end_id"`
	ApplyButtonID    string `yaml:"apply_button_id"`
	DownloadButtonID string `yaml:"download_button_id"`
	VariableInputs   string `yaml:"variable_inputs"` // CSS selector
}

// Dates is the overall export range and how it is windowed.
type Dates struct {
	StartDate   string `yaml:"start_date"`
	EndDate     string `yaml:"end_date"`
	WindowDays  int    `yaml:"window_days"`
	StartTime   string `yaml:"start_time"`
	EndTime     string `yaml:"end_time"`
	InputLayout string `yaml:"input_layout"`
}

// Variables controls how the variable list is batched and entered.
type Variables struct {
	File        string        `yaml:"file"`
	BatchSize   int           `yaml:"batch_size"`
	StartIndex  int           `yaml:"start_index"` // 1-based
	EndIndex    VariableIndex `yaml:"end_index"`   // 1-based inclusive, or "end"
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

// Waits are the bounded waits and fixed pauses of each phase.
type Waits struct {
	Login        time.Duration `yaml:"login"`
	Popup        time.Duration `yaml:"popup"`
	DeviceSelect time.Duration `yaml:"device_select"`
	Settle       time.Duration `yaml:"settle"`
	PerVariable  time.Duration `yaml:"per_variable"`
	PlotRender   time.Duration `yaml:"plot_render"`
	Download     time.Duration `yaml:"download"`
}

// Files holds the download/output locations and merge options.
type Files struct {
	DownloadDir         string `yaml:"download_dir"`
	OutputDir           string `yaml:"output_dir"`
	DownloadPattern     string `yaml:"download_pattern"`
	CombinedFormat      string `yaml:"combined_format"`
	DropRepeatedColumns bool   `yaml:"drop_repeated_columns"`
	WatchDownloads      bool   `yaml:"watch_downloads"`
}

// Browser configures the Chrome instance driven by the run.
type Browser struct {
	Headless  bool   `yaml:"headless"`
	Stealth   bool   `yaml:"stealth"`
	RemoteURL string `yaml:"remote_url"`
	Bin       string `yaml:"bin"`
}

// Storage holds paths for the run journal and artifact manifest.
type Storage struct {
	StateDir string `yaml:"state_dir"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// ---------------------------------------------------------------------------
// Variable index sentinel
// ---------------------------------------------------------------------------

// VariableIndex is a 1-based variable position. LastIndex means "the last
// variable in the list", whatever its length turns out to be.
type VariableIndex int

// LastIndex is the resolved form of the "end"/"last" sentinel.
const LastIndex VariableIndex = -1

// UnmarshalYAML accepts an integer or one of the sentinels "end" and "last".
func (v *VariableIndex) UnmarshalYAML(node *yaml.Node) error {
	s := strings.TrimSpace(node.Value)
	switch strings.ToLower(s) {
	case "end", "last", "-1":
		*v = LastIndex
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("variable index %q: want an integer or \"end\"", s)
	}
	if n < 1 {
		return fmt.Errorf("variable index %d: must be >= 1", n)
	}
	*v = VariableIndex(n)
	return nil
}

// Resolve returns the 0-based exclusive bound this index denotes in a list of
// n variables.
func (v VariableIndex) Resolve(n int) int {
	if v == LastIndex || int(v) > n {
		return n
	}
	return int(v)
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// Defaults returns the values used for every field the YAML leaves unset.
func Defaults() Config {
	return Config{
		Login: Login{
			MarkerID: "lblDeviceName",
		},
		Device: Device{
			SelectorID: "lblDeviceName",
		},
		Elements: Elements{
			VariableInputs: "input[id='txtVariables']",
		},
		Dates: Dates{
			WindowDays:  7,
			StartTime:   "00:00",
			EndTime:     "23:59",
			InputLayout: domain.DateLayout,
		},
		Variables: Variables{
			File:        "data/variables.txt",
			BatchSize:   6,
			StartIndex:  1,
			EndIndex:    LastIndex,
			MaxAttempts: 3,
			RetryDelay:  time.Second,
		},
		Waits: Waits{
			Login:        10 * time.Second,
			Popup:        10 * time.Second,
			DeviceSelect: 10 * time.Second,
			Settle:       time.Second,
			PlotRender:   15 * time.Second,
			Download:     10 * time.Second,
		},
		Files: Files{
			DownloadDir:     "downloads",
			OutputDir:       "output",
			DownloadPattern: "*.csv",
			CombinedFormat:  "csv",
		},
		Storage: Storage{
			StateDir: "state",
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path on top of
// Defaults, so keys the file leaves out keep their default and keys it sets
// (zero included) win. A .env file in the working directory is loaded when
// present, and environment variable overrides are applied last.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := mergo.Merge(&cfg, envOverrides(), mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	return &cfg, nil
}

// envOverrides collects the well-known environment variables into a Config.
// Only the fields whose variable is set are non-zero.
func envOverrides() Config {
	var o Config
	o.Login.Username = os.Getenv("MEIR_USERNAME")
	o.Login.Password = os.Getenv("MEIR_PASSWORD")
	o.Login.URL = os.Getenv("MEIR_LOGIN_URL")

	o.Files.DownloadDir = os.Getenv("MEIR_DOWNLOAD_DIR")
	o.Files.OutputDir = os.Getenv("MEIR_OUTPUT_DIR")
	o.Storage.StateDir = os.Getenv("MEIR_STATE_DIR")

	o.Logging.Level = os.Getenv("LOG_LEVEL")
	return o
}

// ---------------------------------------------------------------------------
// Validation and derived values
// ---------------------------------------------------------------------------

// Validate reports the first configuration problem that would make a run
// impossible.
func (c *Config) Validate() error {
	if c.Login.URL == "" {
		return errors.New("config: login.url is required")
	}
	for _, f := range []struct{ name, id string }{
		{"login.username_id", c.Login.UsernameID},
		{"login.password_id", c.Login.PasswordID},
		{"login.button_id", c.Login.ButtonID},
		{"elements.date_start_id", c.Elements.DateStartID},
		{"elements.date_end_id", c.Elements.DateEndID},
		{"elements.time_start_id", c.Elements.TimeStartID},
		{"elements.time_end_id", c.Elements.TimeEndID},
		{"elements.apply_button_id", c.Elements.ApplyButtonID},
		{"elements.download_button_id", c.Elements.DownloadButtonID},
	} {
		if f.id == "" {
			return fmt.Errorf("config: %s is required", f.name)
		}
	}
	if c.Device.Name == "" {
		return errors.New("config: device.name is required")
	}

	start, end, err := c.Dates.Range()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("config: dates.start_date %s must be before end_date %s",
			c.Dates.StartDate, c.Dates.EndDate)
	}
	if c.Dates.WindowDays <= 0 {
		return fmt.Errorf("config: dates.window_days must be > 0, got %d", c.Dates.WindowDays)
	}

	if c.Variables.BatchSize <= 0 {
		return fmt.Errorf("config: variables.batch_size must be > 0, got %d", c.Variables.BatchSize)
	}
	if c.Variables.MaxAttempts <= 0 {
		return fmt.Errorf("config: variables.max_attempts must be > 0, got %d", c.Variables.MaxAttempts)
	}
	if c.Variables.EndIndex != LastIndex && int(c.Variables.EndIndex) < c.Variables.StartIndex {
		return fmt.Errorf("config: variables.end_index %d is before start_index %d",
			c.Variables.EndIndex, c.Variables.StartIndex)
	}

	if c.Files.DownloadDir == "" || c.Files.OutputDir == "" {
		return errors.New("config: files.download_dir and files.output_dir are required")
	}
	return nil
}

// RequireCredentials reports whether login credentials were supplied through
// the environment.
func (c *Config) RequireCredentials() error {
	if c.Login.Username == "" || c.Login.Password == "" {
		return errors.New("config: MEIR_USERNAME and MEIR_PASSWORD must be set")
	}
	return nil
}

// Range parses the configured overall date range.
func (d Dates) Range() (start, end time.Time, err error) {
	start, err = time.Parse(domain.DateLayout, d.StartDate)
	if err != nil {
		return start, end, fmt.Errorf("config: dates.start_date: %w", err)
	}
	end, err = time.Parse(domain.DateLayout, d.EndDate)
	if err != nil {
		return start, end, fmt.Errorf("config: dates.end_date: %w", err)
	}
	return start, end, nil
}

// VariableRange resolves the configured 1-based start index and end index
// (or sentinel) into a 0-based half-open range over n variables. The config
// itself is left untouched.
func (c *Config) VariableRange(n int) (start, end int) {
	end = c.Variables.EndIndex.Resolve(n)
	start = c.Variables.StartIndex - 1
	if start < 0 {
		start = 0
	}
	if start > end {
		start = end
	}
	return start, end
}
