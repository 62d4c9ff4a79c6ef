package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort       = 8000
	DefaultCharset    = "utf-8"
	DefaultLogLevel   = "info"
	DefaultReadBuffer = 64 << 10

	// FilenamesUnsafe joins the client-supplied filename to the upload
	// directory verbatim, "../" and absolute paths included.
	FilenamesUnsafe = "unsafe"
	// FilenamesSafe keeps only the base name of the client-supplied filename.
	FilenamesSafe = "safe"
)

// Config is intentionally small and YAML/JSON-friendly.
type Config struct {
	// Root is the directory served by dirdrop. Uploads land under it.
	// Default: "."
	Root string `yaml:"root" json:"root"`

	// Bind is the listen address without port. Empty means all interfaces.
	Bind string `yaml:"bind" json:"bind"`

	// Port is the listen port. Default: 8000.
	Port int `yaml:"port" json:"port"`

	// Charset names the encoding of rendered pages (any WHATWG label).
	// Characters the charset cannot represent are substituted.
	// Default: "utf-8"
	Charset string `yaml:"charset" json:"charset"`

	// Filenames selects how client-supplied upload names are turned into
	// paths: "unsafe" (default, verbatim join) or "safe" (base name only).
	Filenames string `yaml:"filenames" json:"filenames"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"logLevel"`

	// Metrics exposes Prometheus metrics at /metrics.
	Metrics bool `yaml:"metrics" json:"metrics,omitempty"`

	// WebDAV mounts the served root read-write under /dav/.
	WebDAV bool `yaml:"webdav" json:"webdav,omitempty"`

	// ReadBuffer is the buffer size used to read upload bodies.
	ReadBuffer int `yaml:"read_buffer" json:"readBuffer,omitempty"`
}

// Load reads a YAML config file. Missing fields keep their zero value;
// call ApplyDefaults afterwards.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Root) == "" {
		c.Root = "."
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Charset == "" {
		c.Charset = DefaultCharset
	}
	if c.Filenames == "" {
		c.Filenames = FilenamesUnsafe
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ReadBuffer == 0 {
		c.ReadBuffer = DefaultReadBuffer
	}
}

// Validate reports every out-of-range field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range 1-65535", c.Port))
	}
	switch c.Filenames {
	case FilenamesUnsafe, FilenamesSafe:
	default:
		errs = append(errs, fmt.Errorf("filenames must be %q or %q, got %q", FilenamesUnsafe, FilenamesSafe, c.Filenames))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	if c.ReadBuffer < 16 {
		errs = append(errs, fmt.Errorf("read_buffer %d too small (min 16)", c.ReadBuffer))
	}
	return errors.Join(errs...)
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// SafeFilenames reports whether upload names are reduced to their base name.
func (c *Config) SafeFilenames() bool {
	return c.Filenames == FilenamesSafe
}
