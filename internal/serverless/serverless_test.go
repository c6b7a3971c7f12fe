package serverless

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/bookstore_lambda/internal/envelope"
	"github.com/R3E-Network/bookstore_lambda/internal/httputil"
	"github.com/R3E-Network/bookstore_lambda/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewWithOutput("serverless-test", "debug", "json", &bytes.Buffer{})
}

func TestHTTPHandler_BuildsOnce(t *testing.T) {
	log := testLogger()
	env := envelope.New(log, nil)

	var builds atomic.Int32
	handler := NewHTTPHandler(log, func(context.Context) (http.Handler, error) {
		builds.Add(1)
		return env.Middleware(env.Handle(func(w http.ResponseWriter, r *http.Request) error {
			httputil.WriteJSON(w, http.StatusOK, map[string]string{"path": r.URL.Path})
			return nil
		})), nil
	})

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-42"})
	for i := 0; i < 3; i++ {
		resp, err := handler(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/api/health"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"path":"/api/health"}`, resp.Body)
		assert.Equal(t, []string{"req-42"}, resp.MultiValueHeaders[httputil.TraceHeader])
	}
	assert.Equal(t, int32(1), builds.Load())
}

func TestHTTPHandler_FailedBuildIsRetried(t *testing.T) {
	var builds atomic.Int32
	handler := NewHTTPHandler(testLogger(), func(context.Context) (http.Handler, error) {
		if builds.Add(1) == 1 {
			return nil, errors.New("database unreachable")
		}
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}), nil
	})

	resp, err := handler(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"code":"000","message":"Uncontrolled unexpected error","name":"UnknownError"}`, resp.Body)

	resp, err = handler(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int32(2), builds.Load())
}

func TestJobHandler(t *testing.T) {
	log := testLogger()
	env := envelope.New(log, nil)

	var runs, builds atomic.Int32
	job := envelope.JobFunc{JobName: "FlakyCron", Fn: func(context.Context) error {
		runs.Add(1)
		return errors.New("always fails")
	}}
	handler := NewJobHandler(log, func(context.Context) (JobTarget, error) {
		builds.Add(1)
		return JobTarget{Envelope: env, Job: job}, nil
	})

	evt := events.CloudWatchEvent{ID: "evt-1", DetailType: "Scheduled Event"}
	assert.NoError(t, handler(context.Background(), evt))
	assert.NoError(t, handler(context.Background(), evt))
	assert.Equal(t, int32(2), runs.Load())
	assert.Equal(t, int32(1), builds.Load())
}

func TestJobHandler_BuildFailure(t *testing.T) {
	handler := NewJobHandler(testLogger(), func(context.Context) (JobTarget, error) {
		return JobTarget{}, errors.New("config invalid")
	})
	assert.NoError(t, handler(context.Background(), events.CloudWatchEvent{}))
}
