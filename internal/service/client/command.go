package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/oshokin/alarm-cond/internal/config"
	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
	"github.com/oshokin/alarm-cond/internal/logger"
	"github.com/oshokin/alarm-cond/internal/notice"
	"github.com/oshokin/alarm-cond/internal/service/common"
)

// Options configures how alarm-ctl reaches the daemon.
type Options struct {
	// Out receives command output; nil means os.Stdout.
	Out io.Writer
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// RetryInterval is the delay before Watch reconnects; zero means defaultRetryInterval.
	RetryInterval time.Duration
}

// defaultRetryInterval defines the reconnect delay of Watch.
const defaultRetryInterval = 1 * time.Second

// connect loads settings and dials the daemon. The returned context carries
// a logger at the configured level.
func connect(ctx context.Context, opts *Options) (context.Context, *common.Client, error) {
	ctx = logger.WithName(ctx, "alarm-ctl")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return ctx, nil, fmt.Errorf("load settings: %w", err)
	}

	level, _ := logger.ParseLogLevel(cfg.LogLevel)
	ctx = logger.ToContext(ctx, logger.FromContext(ctx).WithOptions(logger.WithLevel(level)))

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	dialOptions := []common.Option{common.WithCallTimeout(cfg.Timeout)}

	// Identify current user and hostname for the daemon's logs.
	if actor, err := common.DetectActor(); err != nil {
		logger.WarnKV(ctx, "Unable to detect actor", "error", err)
	} else {
		dialOptions = append(dialOptions, common.WithActor(actor))
	}

	logger.DebugKV(ctx, "Connecting to alarm daemon", "server_address", serverAddress)

	client, err := common.Dial(ctx, serverAddress, dialOptions...)

	return ctx, client, err
}

func output(opts *Options) io.Writer {
	if opts.Out == nil {
		return os.Stdout
	}

	return opts.Out
}

// Submit inserts or replaces an alarm on the daemon.
func Submit(ctx context.Context, opts *Options, id int64, period time.Duration, message string) error {
	ctx, client, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	committed, replaced, err := client.Submit(ctx, id, period, message)
	if err != nil {
		return err
	}

	what := "First"
	if replaced {
		what = "Replacement"
	}

	_, err = fmt.Fprintf(output(opts), "%s Alarm Request With Message Number (%d) Accepted: <%d %s>\n",
		what, committed.ID, committed.Seconds(), committed.Message)

	return err
}

// Cancel requests cancellation of an alarm on the daemon.
func Cancel(ctx context.Context, opts *Options, id int64) error {
	ctx, client, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	cancelled, err := client.Cancel(ctx, id)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("no alarm request with message number (%d) to cancel: %w", id, err)
	case errors.Is(err, domain.ErrAlreadyCancelling):
		return fmt.Errorf("more than one request to cancel alarm request with message number (%d): %w", id, err)
	case err != nil:
		return err
	}

	_, err = fmt.Fprintf(output(opts), "Cancel Alarm Request With Message Number (%d) Accepted: <%d %s>\n",
		cancelled.ID, cancelled.Seconds(), cancelled.Message)

	return err
}

// List prints the daemon's alarms, as the console list dump or as JSON.
func List(ctx context.Context, opts *Options, asJSON bool) error {
	ctx, client, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	alarms, raw, err := client.List(ctx)
	if err != nil {
		return err
	}

	line := notice.FormatList(alarms, time.Now())

	if asJSON {
		data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(raw)
		if err != nil {
			return fmt.Errorf("marshal list: %w", err)
		}

		line = string(data)
	}

	_, err = fmt.Fprintln(output(opts), line)

	return err
}

// Watch prints every notice the daemon emits until ctx is cancelled.
// Lost connections are retried.
func Watch(ctx context.Context, opts *Options) error {
	ctx, client, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	interval := opts.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}

	out := output(opts)

	// attempt streams once, returns (completed, error).
	attempt := func() (bool, error) {
		err := client.Watch(ctx, func(_ domain.Notice, line string) error {
			_, err := fmt.Fprintln(out, line)

			return err
		})

		switch {
		case ctx.Err() != nil:
			return true, nil
		case err == nil:
			logger.Info(ctx, "Daemon closed the notice stream, reconnecting")

			return false, nil
		case retryable(err):
			logger.WarnKV(ctx, "Notice stream interrupted, reconnecting", "error", err)

			return false, nil
		default:
			return false, err
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Retry loop until cancellation or a permanent failure.
	for {
		done, err := attempt()
		if err != nil {
			return err
		}

		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// retryable reports whether a stream failure is worth reconnecting for.
func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
