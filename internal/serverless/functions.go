package serverless

import (
	"context"
	"net/http"

	"github.com/R3E-Network/bookstore_lambda/internal/app"
	"github.com/R3E-Network/bookstore_lambda/internal/config"
	"github.com/R3E-Network/bookstore_lambda/internal/logging"
)

// HTTPFunction is the handler of a deployed HTTP function mounting the named
// routers.
func HTTPFunction(routers ...string) HTTPHandler {
	return NewHTTPHandler(logging.NewDefault("bookstore"), func(ctx context.Context) (http.Handler, error) {
		a, err := newApplication()
		if err != nil {
			return nil, err
		}
		api, err := a.BuildAPI(ctx, routers...)
		if err != nil {
			return nil, err
		}
		return api.Handler, nil
	})
}

// JobFunction is the handler of a deployed scheduled function.
func JobFunction(name string) JobHandler {
	return NewJobHandler(logging.NewDefault("bookstore"), func(context.Context) (JobTarget, error) {
		a, err := newApplication()
		if err != nil {
			return JobTarget{}, err
		}
		job, err := a.Job(name)
		if err != nil {
			return JobTarget{}, err
		}
		return JobTarget{Envelope: a.Envelope, Job: job}, nil
	})
}

func newApplication() (*app.Application, error) {
	cfg, err := config.Get()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logging.NewFromConfig(cfg))
}
