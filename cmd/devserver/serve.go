package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/R3E-Network/bookstore_lambda/internal/app"
	"github.com/R3E-Network/bookstore_lambda/internal/app/metrics"
	"github.com/R3E-Network/bookstore_lambda/internal/config"
)

type serveOptions struct {
	addr      string
	schedules string
	noCron    bool
}

func newServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve every router and run the enabled scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default HTTP_ADDR)")
	cmd.Flags().StringVar(&opts.schedules, "schedules", "", "job schedule file (default SCHEDULES_FILE)")
	cmd.Flags().BoolVar(&opts.noCron, "no-cron", false, "do not run scheduled jobs")

	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	log := a.Log

	api, err := a.BuildAPI(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Database.Close(); err != nil {
			log.WithError(err).Warn("close database")
		}
	}()

	if api.Limiter != nil {
		api.Limiter.StartCleanup(time.Minute, ctx.Done())
	}

	if !opts.noCron {
		scheduler, err := startScheduler(ctx, a, opts.schedules)
		if err != nil {
			return err
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	router := http.NewServeMux()
	router.Handle("/metrics", metrics.Handler())
	router.Handle("/", api.Handler)

	addr := opts.addr
	if addr == "" {
		addr = a.Config.HTTPAddr
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// startScheduler runs every enabled job on the process application. Jobs
// share its lifecycle with HTTP; the envelope keeps the connection while any
// invocation is running.
func startScheduler(ctx context.Context, a *app.Application, path string) (*cron.Cron, error) {
	if path == "" {
		path = a.Config.SchedulesFile
	}
	schedules := config.LoadSchedulesOrDefault(path)

	cronLog := cron.PrintfLogger(a.Log)
	scheduler := cron.New(cron.WithLogger(cronLog), cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))

	for _, name := range schedules.Enabled() {
		job, err := a.Job(name)
		if err != nil {
			return nil, err
		}
		spec := schedules.Jobs[name].Schedule
		if _, err := scheduler.AddFunc(spec, func() { a.Envelope.RunJob(ctx, job) }); err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", name, spec, err)
		}
		a.Log.Infof("Scheduled %s at %q", name, spec)
	}

	scheduler.Start()
	return scheduler, nil
}
