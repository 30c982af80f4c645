package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maxgio92/stackprof/internal/settings"
	"github.com/maxgio92/stackprof/pkg/cmd/options"
	"github.com/maxgio92/stackprof/pkg/cmd/start"
	"github.com/maxgio92/stackprof/pkg/cmd/status"
	"github.com/maxgio92/stackprof/pkg/cmd/stop"
	"github.com/maxgio92/stackprof/pkg/cmd/wait"
)

const logLevelInfo = "info"

func NewCommand(opts *options.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   settings.CmdName,
		Short: fmt.Sprintf("%s is a statistical stack sampling profiler", settings.CmdName),
		Long: fmt.Sprintf(`%s captures the running thread's call stack on every sampling tick,
aggregates identical stacks in a bounded counting table and streams full raw
samples through a bounded drop-on-full channel.
`, settings.CmdName),
		DisableAutoGenTag: true,
	}
	cmd.AddCommand(start.NewCommand(opts))
	cmd.AddCommand(status.NewCommand(opts))
	cmd.AddCommand(stop.NewCommand(opts))
	cmd.AddCommand(wait.NewCommand(opts))

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", logLevelInfo, "Set the log level (trace, debug, info, warn, error, fatal, panic)")

	return cmd
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main() and only needs to happen
// once to the root command.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(
		log.ConsoleWriter{Out: os.Stderr},
	).With().Timestamp().Logger()

	opts := options.NewOptions(
		options.WithContext(ctx),
		options.WithLogger(logger),
	)

	if err := NewCommand(opts).Execute(); err != nil {
		os.Exit(1)
	}
}
