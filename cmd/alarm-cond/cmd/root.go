package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-cond/internal/config"
	"github.com/oshokin/alarm-cond/internal/logger"
	"github.com/oshokin/alarm-cond/internal/service/server"
	"github.com/oshokin/alarm-cond/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// listenAddress overrides listen_addr from the configuration.
	listenAddress string
	// logLevel overrides log_level from the configuration.
	logLevel string
	// interactive enables the console front-end.
	interactive bool

	// rootCmd represents the base command for running the alarm daemon.
	rootCmd = &cobra.Command{
		Use:   "alarm-cond",
		Short: "Run the alarm daemon.",
		Long: `Starts the alarm daemon that displays each alarm's message every period until it is cancelled.

Alarms are entered on standard input, one request per line:

  <seconds> Message(<id>) <text>   insert, or replace the alarm with that id
  Cancel: Message(<id>)            cancel the alarm with that id
  List                             print the pending alarms

End of input stops the daemon. With --interactive=false the daemon runs
without a console and is driven through gRPC only (see alarm-ctl).
The gRPC listen address comes from the configuration file or --listen;
"off" disables gRPC.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return server.Run(ctx, &server.Options{
				Stdin:         cmd.InOrStdin(),
				Stdout:        cmd.OutOrStdout(),
				Stderr:        cmd.ErrOrStderr(),
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				LogLevel:      logLevel,
				Interactive:   interactive,
			})
		},
	}
)

// Execute runs the alarm-cond CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&listenAddress, "listen", "l", "", `gRPC listen address, "off" disables gRPC`)
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "logging level (debug, info, warn, error)")
	rootCmd.Flags().BoolVarP(&interactive, "interactive", "i", true, "read alarm requests from standard input")
}
