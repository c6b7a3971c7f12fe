// Package serverless adapts the application to AWS Lambda events. Each
// handler builds its dependencies once per execution environment and reuses
// them across warm invocations.
package serverless

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/bookstore_lambda/internal/app/metrics"
	"github.com/R3E-Network/bookstore_lambda/internal/envelope"
	apperrors "github.com/R3E-Network/bookstore_lambda/internal/errors"
	"github.com/R3E-Network/bookstore_lambda/internal/logging"
	"github.com/R3E-Network/bookstore_lambda/internal/warmstart"
)

// HTTPHandler is the Lambda signature for API Gateway REST proxy events.
type HTTPHandler func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// JobHandler is the Lambda signature for scheduled events.
type JobHandler func(ctx context.Context, evt events.CloudWatchEvent) error

// JobTarget is what a scheduled function needs per invocation.
type JobTarget struct {
	Envelope *envelope.Envelope
	Job      envelope.Job
}

// NewHTTPHandler returns a Lambda handler serving the handler produced by
// build. A failed build answers with the default error body and is retried
// on the next invocation.
func NewHTTPHandler(log *logging.Logger, build warmstart.BuildFunc[http.Handler]) HTTPHandler {
	if log == nil {
		log = logging.NewDefault("serverless")
	}
	var cache warmstart.Cache[*httpadapter.HandlerAdapter]

	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		adapter, err := cache.Get(ctx, func(ctx context.Context) (*httpadapter.HandlerAdapter, error) {
			h, err := build(ctx)
			metrics.RecordBuild(err == nil)
			if err != nil {
				return nil, err
			}
			return httpadapter.New(h), nil
		})
		if err != nil {
			log.WithContext(ctx).WithError(err).Error("build http application")
			return defaultErrorResponse(), nil
		}
		return adapter.ProxyWithContext(ctx, req)
	}
}

// NewJobHandler returns a Lambda handler running the job produced by build.
// It never reports failure to the platform: job errors are logged by the
// envelope and a failed build is logged here.
func NewJobHandler(log *logging.Logger, build warmstart.BuildFunc[JobTarget]) JobHandler {
	if log == nil {
		log = logging.NewDefault("serverless")
	}
	var cache warmstart.Cache[JobTarget]

	return func(ctx context.Context, evt events.CloudWatchEvent) error {
		target, err := cache.Get(ctx, func(ctx context.Context) (JobTarget, error) {
			t, err := build(ctx)
			metrics.RecordBuild(err == nil)
			return t, err
		})
		if err != nil {
			log.WithContext(ctx).WithError(err).Error("build job application")
			return nil
		}

		if evt.ID != "" {
			log.WithContext(ctx).WithFields(logrus.Fields{
				"event_id":    evt.ID,
				"detail_type": evt.DetailType,
			}).Debug("scheduled event received")
		}
		target.Envelope.RunJob(ctx, target.Job)
		return nil
	}
}

func defaultErrorResponse() events.APIGatewayProxyResponse {
	resp, status := apperrors.DefaultResponse()
	body, _ := json.Marshal(resp)
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
