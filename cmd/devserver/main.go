// Command devserver runs the bookstore locally: every router on one HTTP
// server, the scheduled jobs on a cron, and the database migrations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/bookstore_lambda/internal/app"
	"github.com/R3E-Network/bookstore_lambda/internal/config"
	"github.com/R3E-Network/bookstore_lambda/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "devserver",
		Short:         "Run the bookstore functions locally",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newJobCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newRoutesCommand())

	return cmd
}

// bootstrap loads configuration and wires an application around it.
func bootstrap(opts ...app.Option) (*app.Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logging.NewFromConfig(cfg), opts...)
}
