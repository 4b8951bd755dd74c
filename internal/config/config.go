// Package config holds the server configuration, read from YAML and
// overlaid by command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/magpierre/datacomm/communicator"
	"github.com/magpierre/datacomm/internal/log"
)

// Transports.
const (
	TransportStdio     = "stdio"
	TransportTCP       = "tcp"
	TransportWebsocket = "websocket"
)

// Key generators.
const (
	KeysSequential = "sequential"
	KeysULID       = "ulid"
)

// Source kinds.
const (
	SourceCSV     = "csv"
	SourceParquet = "parquet"
	SourceJSON    = "json"
	SourceBolt    = "bolt"
	SourceDelta   = "delta"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete server configuration.
type Config struct {
	Transport   string   `yaml:"transport"`
	Listen      string   `yaml:"listen"`
	MinPushSize int      `yaml:"minPushSize"`
	Keys        string   `yaml:"keys"`
	Source      Source   `yaml:"source"`
	Filter      string   `yaml:"filter"`
	Script      string   `yaml:"script"`
	Sort        []string `yaml:"sort"`
	Formatted   bool     `yaml:"formatted"`
	Log         Log      `yaml:"log"`
	Metrics     Metrics  `yaml:"metrics"`

	// AllowScripts lets remote clients filter with Go scripts.
	AllowScripts bool `yaml:"allowScripts"`
}

// Source selects the served table.
type Source struct {
	// Kind is csv, parquet, json, bolt or delta. Empty picks the kind
	// from the path.
	Kind string `yaml:"kind"`
	// Path is the data file, bolt database or, for delta, the profile file.
	Path string `yaml:"path"`
	// Table names the bolt table or the delta table as share.schema.table.
	Table   string        `yaml:"table"`
	FileID  string        `yaml:"fileId"`
	Columns []string      `yaml:"columns"`
	Limit   int64         `yaml:"limit"`
	Timeout time.Duration `yaml:"timeout"`
}

// Log mirrors the logging flags.
type Log struct {
	OutputLevels string   `yaml:"outputLevels"`
	JSON         bool     `yaml:"json"`
	Targets      []string `yaml:"targets"`
}

// Metrics configures the Prometheus listener. An empty Listen disables it.
type Metrics struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Transport:   TransportStdio,
		Listen:      "localhost:7070",
		MinPushSize: communicator.DefaultMinPushSize,
		Keys:        KeysSequential,
		Log:         Log{OutputLevels: "default:info", Targets: []string{"stderr"}},
		Metrics:     Metrics{Path: "/metrics"},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(content, c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return c, nil
}

// Validate reports every problem of the configuration at once.
func (c *Config) Validate() error {
	var errs *multierror.Error
	add := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch c.Transport {
	case TransportStdio:
	case TransportTCP, TransportWebsocket:
		if c.Listen == "" {
			add("transport %s needs a listen address", c.Transport)
		}
	default:
		add("unknown transport %q", c.Transport)
	}
	if c.MinPushSize < 0 {
		add("minPushSize must not be negative, got %d", c.MinPushSize)
	}
	switch c.Keys {
	case KeysSequential, KeysULID:
	default:
		add("unknown key generator %q", c.Keys)
	}
	if c.Filter != "" && c.Script != "" {
		add("filter and script are mutually exclusive")
	}
	for _, s := range c.Sort {
		f := strings.Fields(s)
		if len(f) == 0 || len(f) > 2 || (len(f) == 2 && !strings.EqualFold(f[1], "asc") && !strings.EqualFold(f[1], "desc")) {
			add("sort %q must be \"column [asc|desc]\"", s)
		}
	}
	if err := c.Source.validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, sl := range strings.Split(c.Log.OutputLevels, ",") {
		if sl == "" {
			continue
		}
		level := sl
		if i := strings.Index(sl, ":"); i >= 0 {
			level = sl[i+1:]
		}
		if _, err := log.ParseLevel(level); err != nil {
			add("log output level %q", sl)
		}
	}
	return errs.ErrorOrNil()
}

func (s *Source) validate() error {
	var errs *multierror.Error
	add := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf("%w: source: "+format, append([]any{ErrInvalid}, args...)...))
	}
	if s.Path == "" {
		add("path is required")
	}
	switch s.Kind {
	case "", SourceCSV, SourceParquet, SourceJSON:
	case SourceBolt, SourceDelta:
		if s.Table == "" {
			add("kind %s needs a table", s.Kind)
		}
	default:
		add("unknown kind %q", s.Kind)
	}
	if s.Limit < 0 {
		add("limit must not be negative, got %d", s.Limit)
	}
	return errs.ErrorOrNil()
}

// LogOptions converts the log section into logging options.
func (c *Config) LogOptions() *log.Options {
	o := log.DefaultOptions()
	if c.Log.OutputLevels != "" {
		o.OutputLevels = c.Log.OutputLevels
	}
	if len(c.Log.Targets) > 0 {
		o.OutputPaths = c.Log.Targets
	}
	o.JSONEncoding = c.Log.JSON
	return o
}

// KeyGenerator returns the configured key generator.
func (c *Config) KeyGenerator() communicator.KeyGenerator {
	if c.Keys == KeysULID {
		return communicator.ULIDKeys()
	}
	return communicator.SequentialKeys()
}
