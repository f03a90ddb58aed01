package client

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oshokin/alarm-cond/internal/config"
	"github.com/oshokin/alarm-cond/internal/logger"
)

// ErrConfigExists is returned by InitConfig when the file exists and overwrite was not requested.
var ErrConfigExists = errors.New("settings file already exists")

// InitConfig writes the default settings to opts.ConfigPath, using
// opts.ServerAddress as both the listen and the dial address when set.
func InitConfig(ctx context.Context, opts *Options, overwrite bool) error {
	ctx = logger.WithName(ctx, "alarm-ctl")

	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultConfigFilename
	}

	if !overwrite {
		_, err := os.Stat(filepath.Clean(path))

		switch {
		case err == nil:
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("check settings file: %w", err)
		}
	}

	settings := config.Default()
	if opts.ServerAddress != "" {
		settings.ListenAddress = opts.ServerAddress
		settings.ServerAddress = opts.ServerAddress
	}

	if err := config.Save(path, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	logger.InfoKV(ctx, "Settings written", "path", path)

	_, err := fmt.Fprintf(output(opts), "Settings written to %s\n", path)

	return err
}
