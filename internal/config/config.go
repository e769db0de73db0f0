package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/agenthands/neobatch/internal/core/model"
)

const (
	DefaultURL           = "http://localhost:7474/db/data/"
	DefaultHighWaterMark = 512
	DefaultIndexKey      = "id"
	DefaultUserAgent     = "neo4j-batch-index"
	DefaultFlushTimeout  = 60 * time.Second
)

// Duration reads "30s"-style strings from TOML and YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type StoreConfig struct {
	URL            string   `toml:"url" yaml:"url"`
	Username       string   `toml:"username" yaml:"username"`
	Password       string   `toml:"password" yaml:"password"`
	Database       string   `toml:"database" yaml:"database"`
	UserAgent      string   `toml:"user_agent" yaml:"user_agent"`
	RequestTimeout Duration `toml:"request_timeout" yaml:"request_timeout"`
}

type WriterConfig struct {
	HighWaterMark    int      `toml:"high_water_mark" yaml:"high_water_mark"`
	IndexKey         string   `toml:"index_key" yaml:"index_key"`
	FlushTimeout     Duration `toml:"flush_timeout" yaml:"flush_timeout"`
	RequeueOnFailure bool     `toml:"requeue_on_failure" yaml:"requeue_on_failure"`
}

type IdentityConfig struct {
	// Path of the badger directory. Empty keeps the index in memory only.
	Path string `toml:"path" yaml:"path"`
}

type ServerConfig struct {
	Address string `toml:"address" yaml:"address"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

type IngestConfig struct {
	Format       string `toml:"format" yaml:"format"`
	DefaultLabel string `toml:"default_label" yaml:"default_label"`
}

type Config struct {
	Store    StoreConfig       `toml:"store" yaml:"store"`
	Writer   WriterConfig      `toml:"writer" yaml:"writer"`
	Identity IdentityConfig    `toml:"identity" yaml:"identity"`
	Indexes  []model.IndexSpec `toml:"indexes" yaml:"indexes"`
	Server   ServerConfig      `toml:"server" yaml:"server"`
	Ingest   IngestConfig      `toml:"ingest" yaml:"ingest"`
	Log      LogConfig         `toml:"log" yaml:"log"`
}

func Default() *Config {
	return &Config{
		Store: StoreConfig{
			URL:            DefaultURL,
			Username:       "neo4j",
			UserAgent:      DefaultUserAgent,
			RequestTimeout: Duration{30 * time.Second},
		},
		Writer: WriterConfig{
			HighWaterMark:    DefaultHighWaterMark,
			IndexKey:         DefaultIndexKey,
			FlushTimeout:     Duration{DefaultFlushTimeout},
			RequeueOnFailure: true,
		},
		Server: ServerConfig{Address: ":8080"},
		Ingest: IngestConfig{Format: "ndjson", DefaultLabel: "Person"},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads a TOML or YAML file (by extension) over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to the defaults when path
// is empty or the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv overrides file values with NEOBATCH_* environment variables.
func (c *Config) ApplyEnv() error {
	strVars := map[string]*string{
		"NEOBATCH_URL":            &c.Store.URL,
		"NEOBATCH_USERNAME":       &c.Store.Username,
		"NEOBATCH_PASSWORD":       &c.Store.Password,
		"NEOBATCH_DATABASE":       &c.Store.Database,
		"NEOBATCH_INDEX_KEY":      &c.Writer.IndexKey,
		"NEOBATCH_IDENTITY_PATH":  &c.Identity.Path,
		"NEOBATCH_SERVER_ADDRESS": &c.Server.Address,
		"NEOBATCH_LOG_LEVEL":      &c.Log.Level,
		"NEOBATCH_LOG_FORMAT":     &c.Log.Format,
	}
	for name, dst := range strVars {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	if v := os.Getenv("NEOBATCH_HIGH_WATER_MARK"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NEOBATCH_HIGH_WATER_MARK: %w", err)
		}
		c.Writer.HighWaterMark = n
	}
	if v := os.Getenv("NEOBATCH_FLUSH_TIMEOUT"); v != "" {
		if err := c.Writer.FlushTimeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("NEOBATCH_FLUSH_TIMEOUT: %w", err)
		}
	}
	if v := os.Getenv("NEOBATCH_REQUEUE_ON_FAILURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("NEOBATCH_REQUEUE_ON_FAILURE: %w", err)
		}
		c.Writer.RequeueOnFailure = b
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return errors.New("store.url is required")
	}
	if c.Writer.HighWaterMark < 1 {
		return fmt.Errorf("writer.high_water_mark must be positive, got %d", c.Writer.HighWaterMark)
	}
	if c.Writer.IndexKey != "" && !model.ValidIdentifier(c.Writer.IndexKey) {
		return fmt.Errorf("writer.index_key %q is not a valid property name", c.Writer.IndexKey)
	}
	if c.Writer.FlushTimeout.Duration < 0 {
		return errors.New("writer.flush_timeout must not be negative")
	}
	for _, idx := range c.Indexes {
		if !model.ValidIdentifier(idx.Label) || !model.ValidIdentifier(idx.Key) {
			return fmt.Errorf("invalid index %s(%s)", idx.Label, idx.Key)
		}
	}
	switch c.Ingest.Format {
	case "ndjson", "lines":
	default:
		return fmt.Errorf("ingest.format must be ndjson or lines, got %q", c.Ingest.Format)
	}
	return nil
}
