package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// CurrentVersion is the only config schema version this build understands.
const CurrentVersion = 1

// DirName is the per-workspace directory holding config and caches.
const DirName = ".codehint"

// Config represents the complete codehint configuration
type Config struct {
	Version int `json:"version" mapstructure:"version" toml:"version"`

	Documents DocumentsConfig `json:"documents" mapstructure:"documents" toml:"documents"`
	Fragments FragmentsConfig `json:"fragments" mapstructure:"fragments" toml:"fragments"`
	Transport TransportConfig `json:"transport" mapstructure:"transport" toml:"transport"`
	FileCache FileCacheConfig `json:"fileCache" mapstructure:"fileCache" toml:"fileCache"`
	Queries   QueriesConfig   `json:"queries" mapstructure:"queries" toml:"queries"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging" toml:"logging"`
}

// DocumentsConfig controls dirty tracking and large-document behavior
type DocumentsConfig struct {
	LargeDocumentLines   int `json:"largeDocumentLines" mapstructure:"largeDocumentLines" toml:"largeDocumentLines"`
	MaxFragmentDirtySpan int `json:"maxFragmentDirtySpan" mapstructure:"maxFragmentDirtySpan" toml:"maxFragmentDirtySpan"`
	SyncDirtySpan        int `json:"syncDirtySpan" mapstructure:"syncDirtySpan" toml:"syncDirtySpan"`
	SyncDebounceMs       int `json:"syncDebounceMs" mapstructure:"syncDebounceMs" toml:"syncDebounceMs"`
	TabSize              int `json:"tabSize" mapstructure:"tabSize" toml:"tabSize"`
}

// FragmentsConfig controls the enclosing-function fragment heuristic
type FragmentsConfig struct {
	Enabled          bool     `json:"enabled" mapstructure:"enabled" toml:"enabled"`
	ScanBackLines    int      `json:"scanBackLines" mapstructure:"scanBackLines" toml:"scanBackLines"`
	ScanForwardLines int      `json:"scanForwardLines" mapstructure:"scanForwardLines" toml:"scanForwardLines"`
	Keywords         []string `json:"keywords" mapstructure:"keywords" toml:"keywords"`
	// Classifier is "auto", "lexer" or "treesitter"
	Classifier string `json:"classifier" mapstructure:"classifier" toml:"classifier"`
}

// TransportConfig selects and configures the engine transport
type TransportConfig struct {
	// Kind is "remote" or "local"
	Kind   string       `json:"kind" mapstructure:"kind" toml:"kind"`
	Remote RemoteConfig `json:"remote" mapstructure:"remote" toml:"remote"`
	Local  LocalConfig  `json:"local" mapstructure:"local" toml:"local"`
}

// RemoteConfig configures the HTTP engine transport
type RemoteConfig struct {
	Endpoint           string `json:"endpoint" mapstructure:"endpoint" toml:"endpoint"`
	PingPath           string `json:"pingPath" mapstructure:"pingPath" toml:"pingPath"`
	TimeoutMs          int    `json:"timeoutMs" mapstructure:"timeoutMs" toml:"timeoutMs"`
	GzipThresholdBytes int    `json:"gzipThresholdBytes" mapstructure:"gzipThresholdBytes" toml:"gzipThresholdBytes"`
}

// LocalConfig configures the in-process engine transport
type LocalConfig struct {
	// Manifest is an optional environment.toml listing definition sources
	Manifest string `json:"manifest" mapstructure:"manifest" toml:"manifest"`
	// Definitions are definition sources (paths or http URLs) used when no manifest is set
	Definitions []string `json:"definitions" mapstructure:"definitions" toml:"definitions"`
}

// FileCacheConfig configures the fetched-file cache
type FileCacheConfig struct {
	MaxEntries     int  `json:"maxEntries" mapstructure:"maxEntries" toml:"maxEntries"`
	FetchTimeoutMs int  `json:"fetchTimeoutMs" mapstructure:"fetchTimeoutMs" toml:"fetchTimeoutMs"`
	Persist        bool `json:"persist" mapstructure:"persist" toml:"persist"`
}

// QueriesConfig controls query delivery
type QueriesConfig struct {
	DropStale bool `json:"dropStale" mapstructure:"dropStale" toml:"dropStale"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format" toml:"format"`
	Level  string `json:"level" mapstructure:"level" toml:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Documents: DocumentsConfig{
			LargeDocumentLines:   250,
			MaxFragmentDirtySpan: 100,
			SyncDirtySpan:        100,
			SyncDebounceMs:       100,
			TabSize:              4,
		},
		Fragments: FragmentsConfig{
			Enabled:          true,
			ScanBackLines:    50,
			ScanForwardLines: 20,
			Keywords:         []string{"function"},
			Classifier:       "auto",
		},
		Transport: TransportConfig{
			Kind: "remote",
			Remote: RemoteConfig{
				Endpoint:           "http://localhost:56575",
				PingPath:           "/ping",
				TimeoutMs:          10000,
				GzipThresholdBytes: 64 * 1024,
			},
			Local: LocalConfig{
				Definitions: []string{
					"defs/ecma5.json",
					"defs/browser.json",
					"defs/requirejs.json",
					"defs/jquery.json",
				},
			},
		},
		FileCache: FileCacheConfig{
			MaxEntries:     256,
			FetchTimeoutMs: 10000,
			Persist:        false,
		},
		Queries: QueriesConfig{
			DropStale: true,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// SyncDebounce returns the debounce delay for large-document syncs
func (c *Config) SyncDebounce() time.Duration {
	return time.Duration(c.Documents.SyncDebounceMs) * time.Millisecond
}

// RemoteTimeout returns the HTTP timeout for remote engine calls
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Transport.Remote.TimeoutMs) * time.Millisecond
}

// FetchTimeout returns the HTTP timeout for network file fetches
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FileCache.FetchTimeoutMs) * time.Millisecond
}

// setDefaults registers every key so env overrides reach Unmarshal
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)

	v.SetDefault("documents.largeDocumentLines", d.Documents.LargeDocumentLines)
	v.SetDefault("documents.maxFragmentDirtySpan", d.Documents.MaxFragmentDirtySpan)
	v.SetDefault("documents.syncDirtySpan", d.Documents.SyncDirtySpan)
	v.SetDefault("documents.syncDebounceMs", d.Documents.SyncDebounceMs)
	v.SetDefault("documents.tabSize", d.Documents.TabSize)

	v.SetDefault("fragments.enabled", d.Fragments.Enabled)
	v.SetDefault("fragments.scanBackLines", d.Fragments.ScanBackLines)
	v.SetDefault("fragments.scanForwardLines", d.Fragments.ScanForwardLines)
	v.SetDefault("fragments.keywords", d.Fragments.Keywords)
	v.SetDefault("fragments.classifier", d.Fragments.Classifier)

	v.SetDefault("transport.kind", d.Transport.Kind)
	v.SetDefault("transport.remote.endpoint", d.Transport.Remote.Endpoint)
	v.SetDefault("transport.remote.pingPath", d.Transport.Remote.PingPath)
	v.SetDefault("transport.remote.timeoutMs", d.Transport.Remote.TimeoutMs)
	v.SetDefault("transport.remote.gzipThresholdBytes", d.Transport.Remote.GzipThresholdBytes)
	v.SetDefault("transport.local.manifest", d.Transport.Local.Manifest)
	v.SetDefault("transport.local.definitions", d.Transport.Local.Definitions)

	v.SetDefault("fileCache.maxEntries", d.FileCache.MaxEntries)
	v.SetDefault("fileCache.fetchTimeoutMs", d.FileCache.FetchTimeoutMs)
	v.SetDefault("fileCache.persist", d.FileCache.Persist)

	v.SetDefault("queries.dropStale", d.Queries.DropStale)

	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
}

// LoadConfig loads configuration from <dir>/.codehint/config.{json,toml,yaml}.
// A missing file yields the defaults; CODEHINT_* environment variables override both.
func LoadConfig(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(dir, DirName))

	v.SetEnvPrefix("CODEHINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to <dir>/.codehint/config.<format>.
// format is "json" or "toml".
func (c *Config) Save(dir, format string) (string, error) {
	var (
		data []byte
		err  error
	)

	switch format {
	case "", "json":
		format = "json"
		data, err = json.MarshalIndent(c, "", "  ")
	case "toml":
		data, err = toml.Marshal(c)
	default:
		return "", &ConfigError{Field: "format", Message: fmt.Sprintf("unsupported format %q", format)}
	}
	if err != nil {
		return "", err
	}

	configDir := filepath.Join(dir, DirName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", DirName, err)
	}

	path := filepath.Join(configDir, "config."+format)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Documents.LargeDocumentLines <= 0 {
		return &ConfigError{Field: "documents.largeDocumentLines", Message: "must be positive"}
	}
	if c.Documents.MaxFragmentDirtySpan <= 0 {
		return &ConfigError{Field: "documents.maxFragmentDirtySpan", Message: "must be positive"}
	}
	if c.Documents.TabSize <= 0 {
		return &ConfigError{Field: "documents.tabSize", Message: "must be positive"}
	}
	if c.Documents.SyncDirtySpan < 0 {
		return &ConfigError{Field: "documents.syncDirtySpan", Message: "must not be negative"}
	}
	if c.Documents.SyncDebounceMs < 0 {
		return &ConfigError{Field: "documents.syncDebounceMs", Message: "must not be negative"}
	}
	if c.Fragments.ScanBackLines < 0 {
		return &ConfigError{Field: "fragments.scanBackLines", Message: "must not be negative"}
	}
	if c.Fragments.ScanForwardLines < 0 {
		return &ConfigError{Field: "fragments.scanForwardLines", Message: "must not be negative"}
	}
	if c.Fragments.Enabled && len(c.Fragments.Keywords) == 0 {
		return &ConfigError{Field: "fragments.keywords", Message: "at least one keyword is required"}
	}
	switch c.Fragments.Classifier {
	case "auto", "lexer", "treesitter":
	default:
		return &ConfigError{Field: "fragments.classifier", Message: "must be auto, lexer or treesitter"}
	}
	switch c.Transport.Kind {
	case "remote":
		if c.Transport.Remote.Endpoint == "" {
			return &ConfigError{Field: "transport.remote.endpoint", Message: "required for remote transport"}
		}
	case "local":
	default:
		return &ConfigError{Field: "transport.kind", Message: "must be remote or local"}
	}
	if c.FileCache.MaxEntries <= 0 {
		return &ConfigError{Field: "fileCache.maxEntries", Message: "must be positive"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
