package envelope

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/R3E-Network/bookstore_lambda/internal/errors"
	"github.com/R3E-Network/bookstore_lambda/internal/httputil"
	"github.com/R3E-Network/bookstore_lambda/internal/invocation"
	"github.com/R3E-Network/bookstore_lambda/internal/logging"
)

type fakeConn struct {
	connects    atomic.Int32
	disconnects atomic.Int32
	disconnErr  error
}

func (c *fakeConn) Connect(context.Context) { c.connects.Add(1) }

func (c *fakeConn) Disconnect(context.Context) error {
	c.disconnects.Add(1)
	return c.disconnErr
}

func newEnvelope(t *testing.T, opts ...Option) (*Envelope, *fakeConn, *test.Hook) {
	t.Helper()
	log := logging.NewWithOutput("test", "debug", "json", &bytes.Buffer{})
	hook := test.NewLocal(log.Logger)
	conn := &fakeConn{}
	return New(log, conn, opts...), conn, hook
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_Success(t *testing.T) {
	env, conn, hook := newEnvelope(t)

	var seen string
	h := env.Middleware(env.Handle(func(w http.ResponseWriter, r *http.Request) error {
		seen = invocation.TraceID(r.Context())
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
		return nil
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/books?limit=2", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	traceID := rec.Header().Get(httputil.TraceHeader)
	require.NotEmpty(t, traceID)
	assert.Equal(t, traceID, seen)
	assert.EqualValues(t, 1, conn.connects.Load())
	assert.EqualValues(t, 0, conn.disconnects.Load(), "requests keep the connection warm")

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "-→ GET /api/books", entries[0].Message)
	assert.Regexp(t, `^←- GET /api/books \d+ms$`, entries[1].Message)
	for _, e := range entries {
		assert.Equal(t, traceID, e.Data["trace_id"])
		assert.Equal(t, invocation.RequestMeta{Method: http.MethodGet, URL: "/api/books?limit=2"}, e.Data["request"])
	}
}

func TestMiddleware_UsesLambdaRequestID(t *testing.T) {
	env, _, _ := newEnvelope(t)
	h := env.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "c6af9ac6-7b61-11e6-9a41-93e8deadbeef"})
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/shops", nil).WithContext(ctx))

	assert.Equal(t, "c6af9ac6-7b61-11e6-9a41-93e8deadbeef", rec.Header().Get(httputil.TraceHeader))
}

func TestMiddleware_DomainError(t *testing.T) {
	env, _, hook := newEnvelope(t)
	h := env.Middleware(env.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return apperrors.New("2-001", "Book not found",
			apperrors.WithHTTPStatus(http.StatusNotFound),
			apperrors.WithKind("NotFoundById"),
			apperrors.WithCause(errors.New("sql: no rows in result set")),
		)
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/books/42", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"code":"2-001","message":"Book not found","name":"BOOK_ERROR.NotFoundById"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "no rows")

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	last := entries[1]
	assert.Equal(t, logrus.ErrorLevel, last.Level)
	assert.Equal(t, "2-001", last.Data["code"])
	assert.Equal(t, "BOOK_ERROR.NotFoundById", last.Data["name"])
	assert.Equal(t, rec.Header().Get(httputil.TraceHeader), last.Data["trace_id"])
	assert.GreaterOrEqual(t, last.Data["duration_ms"], int64(0))
}

func TestMiddleware_UnclassifiedError(t *testing.T) {
	env, _, _ := newEnvelope(t)
	h := env.Middleware(env.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return fmt.Errorf("pq: password authentication failed for user %q", "app")
	}))

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/authors", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":"000","message":"Uncontrolled unexpected error","name":"UnknownError"}`, rec.Body.String())
}

func TestMiddleware_Panic(t *testing.T) {
	env, _, hook := newEnvelope(t)
	h := env.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	}))

	var rec *httptest.ResponseRecorder
	require.NotPanics(t, func() {
		rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/authors", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":"000","message":"Uncontrolled unexpected error","name":"UnknownError"}`, rec.Body.String())
	assert.Equal(t, "000", hook.LastEntry().Data["code"])
}

func TestMiddleware_PanicWithDomainError(t *testing.T) {
	env, _, _ := newEnvelope(t)
	h := env.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(apperrors.Validation("limit must be a number", nil))
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/authors?limit=x", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"code":"3-001","message":"limit must be a number","name":"REQUEST_ERROR.Validation"}`, rec.Body.String())
}

func TestMiddleware_AbortHandlerPropagates(t *testing.T) {
	env, _, hook := newEnvelope(t)
	h := env.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	rec := httptest.NewRecorder()
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books", nil))
	})

	assert.Empty(t, rec.Body.String())
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.ErrorLevel, e.Level)
	}
	assert.Regexp(t, `^-x GET /api/books aborted \(\d+ms\)$`, hook.LastEntry().Message)
}

func TestGuard_RejectionIsClassified(t *testing.T) {
	env, _, hook := newEnvelope(t)

	var reached bool
	guard := env.Guard(func(r *http.Request) error {
		if r.Header.Get("X-Blocked") != "" {
			return apperrors.RateLimited()
		}
		return nil
	})
	h := env.Middleware(guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/books", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, reached)

	reached = false
	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	req.Header.Set("X-Blocked", "1")
	rec = serve(h, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3-002", hook.LastEntry().Data["code"])
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestMiddleware_DurationNeverNegative(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var calls atomic.Int32
	clock := func() time.Time {
		// The clock steps backwards between start and finish.
		return base.Add(-time.Duration(calls.Add(1)) * time.Second)
	}

	env, _, hook := newEnvelope(t, WithClock(clock))

	var inv *Invocation
	h := env.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inv, _ = Current(r.Context())
	}))
	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, inv)
	assert.Equal(t, time.Duration(0), inv.Duration())
	assert.Equal(t, OutcomeSuccess, inv.Outcome())
	assert.EqualValues(t, 0, hook.LastEntry().Data["duration_ms"])
}

func TestMiddleware_ConcurrentIsolation(t *testing.T) {
	env, _, _ := newEnvelope(t)
	h := env.Middleware(env.Handle(func(w http.ResponseWriter, r *http.Request) error {
		before := invocation.TraceID(r.Context())
		time.Sleep(time.Millisecond)
		after := invocation.TraceID(r.Context())
		if before != after {
			return errors.New("trace id changed mid-request")
		}
		_, _ = w.Write([]byte(after))
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/books", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, rec.Header().Get(httputil.TraceHeader), rec.Body.String())
		}()
	}
	wg.Wait()
}

func TestRouteTaggerAndNotFound(t *testing.T) {
	env, _, hook := newEnvelope(t)

	var route string
	r := mux.NewRouter()
	r.Use(env.RouteTagger)
	r.NotFoundHandler = env.NotFound()
	r.Handle("/api/books/{bookId}", env.Handle(func(w http.ResponseWriter, req *http.Request) error {
		inv, _ := Current(req.Context())
		route = inv.routeTemplate()
		return nil
	}))
	h := env.Middleware(r)

	serve(h, httptest.NewRequest(http.MethodGet, "/api/books/7", nil))
	assert.Equal(t, "/api/books/{bookId}", route)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"code":"3-003","message":"Route GET /nowhere not found","name":"REQUEST_ERROR.RouteNotFound"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(httputil.TraceHeader))
	assert.Equal(t, "3-003", hook.LastEntry().Data["code"])
}

func TestHandle_WithoutMiddleware(t *testing.T) {
	env, _, _ := newEnvelope(t)
	h := env.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("boom")
	})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":"000","message":"Uncontrolled unexpected error","name":"UnknownError"}`, rec.Body.String())
}

func TestRunJob_Success(t *testing.T) {
	env, conn, hook := newEnvelope(t)

	var seen invocation.Record
	inv := env.RunJob(context.Background(), JobFunc{JobName: "AuthorsListCron", Fn: func(ctx context.Context) error {
		seen, _ = invocation.FromContext(ctx)
		return nil
	}})

	require.NotNil(t, inv)
	assert.Equal(t, OutcomeSuccess, inv.Outcome())
	assert.Equal(t, invocation.KindJob, seen.Kind())
	job, ok := seen.Job()
	require.True(t, ok)
	assert.Equal(t, "AuthorsListCron", job.Name)

	assert.EqualValues(t, 1, conn.connects.Load())
	assert.EqualValues(t, 1, conn.disconnects.Load())

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "-> Starting AuthorsListCron cron job", entries[0].Message)
	assert.Regexp(t, `^<- Finishing AuthorsListCron cron job \(\d+ms\)$`, entries[1].Message)
	assert.Equal(t, seen.TraceID(), entries[0].Data["trace_id"])
	assert.Equal(t, seen.TraceID(), entries[1].Data["trace_id"])
}

func TestRunJob_FailureIsSwallowed(t *testing.T) {
	env, conn, hook := newEnvelope(t)
	conn.disconnErr = errors.New("already closed")

	appErr := apperrors.New("1-001", "Author error example", apperrors.WithHTTPStatus(http.StatusBadRequest), apperrors.WithKind("Example"))

	var inv *Invocation
	require.NotPanics(t, func() {
		inv = env.RunJob(context.Background(), JobFunc{JobName: "AuthorCreationCron", Fn: func(ctx context.Context) error {
			return appErr
		}})
	})

	assert.Equal(t, OutcomeFailure, inv.Outcome())
	assert.ErrorIs(t, inv.Err(), appErr)
	assert.EqualValues(t, 1, conn.disconnects.Load())

	var failure *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			failure = e
		}
	}
	require.NotNil(t, failure)
	assert.Regexp(t, `^Error in cron job AuthorCreationCron \(\d+ms\)$`, failure.Message)
	assert.Equal(t, "1-001", failure.Data["code"])
	assert.Equal(t, "AUTHOR_ERROR.Example", failure.Data["name"])
	assert.Equal(t, invocation.JobMeta{Name: "AuthorCreationCron"}, failure.Data["job"])
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestRunJob_PanicIsSwallowed(t *testing.T) {
	env, conn, _ := newEnvelope(t)

	var inv *Invocation
	require.NotPanics(t, func() {
		inv = env.RunJob(context.Background(), JobFunc{JobName: "Exploding", Fn: func(ctx context.Context) error {
			panic("index out of range")
		}})
	})

	assert.Equal(t, OutcomeFailure, inv.Outcome())
	assert.EqualError(t, inv.Err(), "panic: index out of range")
	assert.EqualValues(t, 1, conn.disconnects.Load())
}

func TestRunJob_OverlappingJobsKeepConnection(t *testing.T) {
	env, conn, _ := newEnvelope(t)

	started := make(chan struct{})
	unblock := make(chan struct{})
	done := make(chan *Invocation)
	go func() {
		done <- env.RunJob(context.Background(), JobFunc{JobName: "AuthorsListCron", Fn: func(ctx context.Context) error {
			close(started)
			<-unblock
			return nil
		}})
	}()
	<-started

	inv := env.RunJob(context.Background(), JobFunc{JobName: "AuthorCreationCron", Fn: func(context.Context) error { return nil }})
	assert.Equal(t, OutcomeSuccess, inv.Outcome())
	assert.EqualValues(t, 0, conn.disconnects.Load(), "a running job still holds the connection")

	close(unblock)
	assert.Equal(t, OutcomeSuccess, (<-done).Outcome())
	assert.EqualValues(t, 1, conn.disconnects.Load())
	assert.EqualValues(t, 2, conn.connects.Load())
}

func TestRunJob_InFlightRequestKeepsConnection(t *testing.T) {
	env, conn, _ := newEnvelope(t)

	started := make(chan struct{})
	unblock := make(chan struct{})
	h := env.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-unblock
		w.WriteHeader(http.StatusNoContent)
	}))

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- serve(h, httptest.NewRequest(http.MethodGet, "/api/books", nil)) }()
	<-started

	env.RunJob(context.Background(), JobFunc{JobName: "AuthorsListCron", Fn: func(context.Context) error { return nil }})
	assert.EqualValues(t, 0, conn.disconnects.Load())

	close(unblock)
	assert.Equal(t, http.StatusNoContent, (<-done).Code)
	assert.EqualValues(t, 0, conn.disconnects.Load(), "requests never release the connection")

	env.RunJob(context.Background(), JobFunc{JobName: "AuthorsListCron", Fn: func(context.Context) error { return nil }})
	assert.EqualValues(t, 1, conn.disconnects.Load())
}

func TestRunJob_WithoutConnector(t *testing.T) {
	log := logging.NewWithOutput("test", "info", "json", &bytes.Buffer{})
	env := New(log, nil)

	inv := env.RunJob(context.Background(), JobFunc{JobName: "NoDB", Fn: func(context.Context) error { return nil }})
	assert.Equal(t, OutcomeSuccess, inv.Outcome())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "pending", OutcomePending.String())
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "failure", OutcomeFailure.String())
}
