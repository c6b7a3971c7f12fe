package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/bookstore_lambda/internal/app"
	"github.com/R3E-Network/bookstore_lambda/internal/app/jobs"
	"github.com/R3E-Network/bookstore_lambda/internal/envelope"
	"github.com/R3E-Network/bookstore_lambda/internal/platform/migrations"
)

func newJobCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "job <name>",
		Short:     "Run one scheduled job now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.AuthorsListName, jobs.AuthorCreationName},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			job, err := a.Job(args[0])
			if err != nil {
				return fmt.Errorf("%w (available: %s)", err, strings.Join(a.JobNames(), ", "))
			}

			inv := a.Envelope.RunJob(cmd.Context(), job)
			if inv == nil || inv.Outcome() != envelope.OutcomeSuccess {
				return fmt.Errorf("job %s failed", job.Name())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s finished in %dms\n", job.Name(), inv.Duration().Milliseconds())
			return nil
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a.Database.Connect(ctx)
			defer func() {
				if err := a.Database.Close(); err != nil {
					a.Log.WithError(err).Warn("close database")
				}
			}()

			db, err := a.Database.DB()
			if err != nil {
				return err
			}
			return migrations.Up(ctx, db.DB, a.Log)
		},
	}
}

// offline satisfies envelope.Connector without touching the database.
type offline struct{}

func (offline) Connect(context.Context)          {}
func (offline) Disconnect(context.Context) error { return nil }

func newRoutesCommand() *cobra.Command {
	var routers []string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the routes each function serves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(app.WithConnector(offline{}))
			if err != nil {
				return err
			}
			api, err := a.BuildAPI(cmd.Context(), routers...)
			if err != nil {
				return err
			}
			for _, route := range api.Routes {
				fmt.Fprintln(cmd.OutOrStdout(), route.String())
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&routers, "router", nil, "limit to these routers (authors, books, shops, health)")

	return cmd
}
