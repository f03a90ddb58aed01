package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-cond/internal/config"
	"github.com/oshokin/alarm-cond/internal/logger"
	client "github.com/oshokin/alarm-cond/internal/service/client"
	"github.com/oshokin/alarm-cond/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides server_addr from the configuration.
	serverAddress string
	// asJSON switches list output to JSON.
	asJSON bool
	// overwrite lets config init replace an existing file.
	overwrite bool

	// rootCmd represents the base command for talking to the alarm daemon.
	rootCmd = &cobra.Command{
		Use:   "alarm-ctl",
		Short: "Control a running alarm daemon.",
		Long: `Submits, cancels and lists alarms on a running alarm-cond over gRPC,
or follows the notices it prints.

The daemon address is loaded from the configuration file unless --server is given.`,
		SilenceUsage: true,
	}

	submitCmd = &cobra.Command{
		Use:   "submit <id> <seconds> <message...>",
		Short: "Insert an alarm, or replace the alarm with the same id.",
		Args:  cobra.MinimumNArgs(3), //nolint:mnd // id, seconds and at least one message word.
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositive("id", args[0])
			if err != nil {
				return err
			}

			seconds, err := parsePositive("seconds", args[1])
			if err != nil {
				return err
			}

			if seconds > math.MaxInt64/int64(time.Second) {
				return fmt.Errorf("seconds out of range: %d", seconds)
			}

			return withSignals(func(ctx context.Context) error {
				return client.Submit(ctx, options(cmd), id, time.Duration(seconds)*time.Second, strings.Join(args[2:], " "))
			})
		},
	}

	cancelCmd = &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel the alarm with the given id.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositive("id", args[0])
			if err != nil {
				return err
			}

			return withSignals(func(ctx context.Context) error {
				return client.Cancel(ctx, options(cmd), id)
			})
		},
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Print the pending alarms.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSignals(func(ctx context.Context) error {
				return client.List(ctx, options(cmd), asJSON)
			})
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Follow the daemon's notices until interrupted.",
		Long: `Prints every notice the daemon emits, in the same format as its console.
Reconnects when the daemon restarts or drops the stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSignals(func(ctx context.Context) error {
				return client.Watch(ctx, options(cmd))
			})
		},
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the settings file.",
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write the default settings to the --config path.",
		Long: `Writes the default settings to the file named by --config.
When --server is given it becomes both the daemon's listen address and the
address alarm-ctl dials. An existing file is kept unless --force is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSignals(func(ctx context.Context) error {
				return client.InitConfig(ctx, options(cmd), overwrite)
			})
		},
	}
)

// withSignals runs fn with a context cancelled on SIGTERM or SIGINT.
func withSignals(fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return fn(ctx)
}

func options(cmd *cobra.Command) *client.Options {
	return &client.Options{
		Out:           cmd.OutOrStdout(),
		ConfigPath:    cfgPath,
		ServerAddress: serverAddress,
	}
}

// parsePositive parses a positive decimal argument.
func parsePositive(name, arg string) (int64, error) {
	value, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, arg)
	}

	return value, nil
}

// Execute runs the alarm-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	err := rootCmd.Execute()

	// os.Exit skips deferred calls, so flush before it.
	logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "server", "s", "", "alarm daemon address (host:port)")

	listCmd.Flags().BoolVar(&asJSON, "json", false, "print the list as JSON")

	configInitCmd.Flags().BoolVarP(&overwrite, "force", "f", false, "overwrite an existing settings file")
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(submitCmd, cancelCmd, listCmd, watchCmd, configCmd)
}
