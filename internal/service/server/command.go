package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/oshokin/alarm-cond/internal/config"
	"github.com/oshokin/alarm-cond/internal/logger"
	"github.com/oshokin/alarm-cond/internal/version"
)

// Options controls the alarm-cond process and configuration.
type Options struct {
	// Stdin is the console input; nil means os.Stdin.
	Stdin io.Reader
	// Stdout receives notices and list dumps; nil means os.Stdout.
	Stdout io.Writer
	// Stderr receives "Invalid command." reports; nil means os.Stderr.
	Stderr io.Writer
	// Listener, when set, is used for gRPC instead of listening on the configured address.
	Listener net.Listener
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the configured gRPC listen address.
	ListenAddress string
	// LogLevel overrides the configured logging level.
	LogLevel string
	// Interactive enables the console front-end; end of input stops the daemon.
	Interactive bool
}

var (
	// ErrNoFrontEnd indicates that neither the console nor gRPC is enabled.
	ErrNoFrontEnd = errors.New("no front-end enabled: use the console or set a listen address")
	// errInputClosed stops the daemon when the console reaches end of input.
	errInputClosed = errors.New("console input closed")
)

// Run starts the coordinator and the enabled front-ends and blocks until ctx
// is cancelled, console input ends or a front-end fails. Display workers are
// stopped before Run returns.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-cond")

	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	level, _ := logger.ParseLogLevel(settings.LogLevel)
	logger.SetLevel(level)

	lis, err := listen(ctx, opts, settings)
	if err != nil {
		return err
	}

	if lis == nil && !opts.Interactive {
		return ErrNoFrontEnd
	}

	logger.InfoKV(ctx, "Alarm daemon starting", append(version.KV(), "interactive", opts.Interactive)...)

	d := newDaemon(settings, writerOr(opts.Stdout, os.Stdout), writerOr(opts.Stderr, os.Stderr))

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return d.scheduler.Run(groupCtx)
	})

	if opts.Interactive {
		var in io.Reader = os.Stdin
		if opts.Stdin != nil {
			in = opts.Stdin
		}

		group.Go(func() error {
			if err := d.console.Run(groupCtx, in); err != nil {
				return err
			}

			if groupCtx.Err() != nil {
				return nil
			}

			return errInputClosed
		})
	}

	if lis != nil {
		serveGRPC(groupCtx, group, d, lis)
	}

	err = group.Wait()
	if errors.Is(err, errInputClosed) {
		logger.Info(ctx, "Console input closed, shutting down")

		err = nil
	}

	logger.Info(ctx, "Alarm daemon stopped")

	return err
}

// serveGRPC runs the gRPC front-end on lis within group and stops it when ctx ends.
func serveGRPC(ctx context.Context, group *errgroup.Group, d *daemon, lis net.Listener) {
	gs := d.grpcServer()

	logger.InfoKV(ctx, "Alarm daemon listening", "listen_address", lis.Addr().String())

	group.Go(func() error {
		if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")

		// Watch streams only end when their subscription does.
		d.hub.Close()
		gs.GracefulStop()

		logger.Info(ctx, "GRPC server stopped")

		return nil
	})
}

// loadSettings reads the configuration and applies command line overrides.
func loadSettings(opts *Options) (*config.Config, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.ListenAddress != "" {
		settings.ListenAddress = opts.ListenAddress
	}

	if opts.LogLevel != "" {
		settings.LogLevel = opts.LogLevel
	}

	if err = config.Validate(settings); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	return settings, nil
}

// listen returns the gRPC listener, or nil when gRPC is disabled.
func listen(ctx context.Context, opts *Options, settings *config.Config) (net.Listener, error) {
	if opts.Listener != nil {
		return opts.Listener, nil
	}

	listenAddress, err := resolveListenAddress(settings.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve listen address: %w", err)
	}

	if listenAddress == "" {
		return nil, nil //nolint:nilnil // gRPC is disabled.
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	return lis, nil
}

// resolveListenAddress returns the address to listen on, or "" when gRPC is disabled.
func resolveListenAddress(address string) (string, error) {
	if address == "" || address == config.ListenDisabled {
		return "", nil
	}

	if _, _, err := net.SplitHostPort(address); err != nil {
		return "", fmt.Errorf("invalid listen address format %q: %w", address, err)
	}

	return address, nil
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}

	return w
}
