package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/alarm-cond/internal/logger"
)

// Config holds the settings shared by the daemon and its remote client.
type Config struct {
	// ListenAddress is where the daemon serves gRPC; empty or ListenDisabled turns gRPC off.
	ListenAddress string `yaml:"listen_addr"`
	// ServerAddress is the daemon address the client dials.
	ServerAddress string `yaml:"server_addr"`
	// LogLevel is the initial logging level name.
	LogLevel string `yaml:"log_level"`
	// Timeout is the duration for unary RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// WatchBuffer is the per-watcher notice queue length.
	WatchBuffer int `yaml:"watch_buffer"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "alarm-cond.yaml"

	// DefaultAddress is the default gRPC address for both the daemon and the client.
	DefaultAddress = "127.0.0.1:50051"

	// ListenDisabled as a listen address turns the gRPC front-end off.
	ListenDisabled = "off"

	// DefaultLogLevel is the logging level used when none is configured.
	DefaultLogLevel = "info"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultWatchBuffer is the default per-watcher notice queue length.
	DefaultWatchBuffer = 64

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownLogLevel is returned for log level names the logger does not know.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ListenAddress: DefaultAddress,
		ServerAddress: DefaultAddress,
		LogLevel:      DefaultLogLevel,
		Timeout:       DefaultTimeout,
		WatchBuffer:   DefaultWatchBuffer,
	}
}

// Load reads configuration from path and validates it. Keys absent from the
// file keep their defaults. When path is empty the default file is used, and
// a missing default file yields the defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	cfg := Default()

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills defaults for unset values.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		settings.ServerAddress = DefaultAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server address: %w", err)
	}

	if settings.ListenAddress != "" && settings.ListenAddress != ListenDisabled {
		if _, err := net.ResolveTCPAddr("tcp", settings.ListenAddress); err != nil {
			return fmt.Errorf("invalid listen address: %w", err)
		}
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
	}

	// Set default timeout if not specified
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.WatchBuffer <= 0 {
		settings.WatchBuffer = DefaultWatchBuffer
	}

	return nil
}
