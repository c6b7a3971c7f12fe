// Package envelope wraps every invocation, HTTP request or scheduled job, in
// the same lifecycle: establish the invocation context, log the start, make
// sure the database is connected, run the work, then log the finish or the
// classified failure.
package envelope

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"

	apperrors "github.com/R3E-Network/bookstore_lambda/internal/errors"
	"github.com/R3E-Network/bookstore_lambda/internal/invocation"
	"github.com/R3E-Network/bookstore_lambda/internal/logging"
)

// Connector is the shared downstream resource an invocation depends on.
// Connect must be idempotent and must not return an error: failures are the
// connector's to log.
type Connector interface {
	Connect(ctx context.Context)
	Disconnect(ctx context.Context) error
}

// Outcome is the result of an invocation.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "pending"
	}
}

// Invocation is the bookkeeping for one run of the envelope.
type Invocation struct {
	Start time.Time

	mu       sync.Mutex
	outcome  Outcome
	duration time.Duration
	err      error
	resp     apperrors.Response
	status   int
	route    string
}

// Outcome returns the recorded outcome.
func (i *Invocation) Outcome() Outcome {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.outcome
}

// Duration returns the recorded duration. It is never negative.
func (i *Invocation) Duration() time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.duration
}

// Err returns the failure recorded for the invocation, if any.
func (i *Invocation) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

// fail records the first classified failure. Later failures are ignored.
func (i *Invocation) fail(err error) (apperrors.Response, int, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.resp, i.status, false
	}
	i.err = err
	i.resp, i.status, _ = apperrors.Classify(err)
	return i.resp, i.status, true
}

func (i *Invocation) failure() (apperrors.Response, int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.resp, i.status, i.err
}

// finish stamps the duration and outcome and returns the duration.
func (i *Invocation) finish(end time.Time) time.Duration {
	i.mu.Lock()
	defer i.mu.Unlock()
	d := end.Sub(i.Start)
	if d < 0 {
		d = 0
	}
	i.duration = d
	if i.err != nil {
		i.outcome = OutcomeFailure
	} else {
		i.outcome = OutcomeSuccess
	}
	return d
}

func (i *Invocation) setRoute(route string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.route = route
}

func (i *Invocation) routeTemplate() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.route
}

type invocationKey struct{}

// Current returns the bookkeeping record of the invocation ctx belongs to.
func Current(ctx context.Context) (*Invocation, bool) {
	inv, ok := ctx.Value(invocationKey{}).(*Invocation)
	return inv, ok
}

// Option configures an Envelope.
type Option func(*Envelope)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Envelope) { e.now = now }
}

// Envelope applies the invocation lifecycle. It is safe for concurrent use.
type Envelope struct {
	log  *logging.Logger
	conn Connector
	now  func() time.Time

	mu     sync.Mutex
	active int // running invocations, guarded by mu
}

// New creates an Envelope. conn may be nil when no downstream resource is
// configured.
func New(log *logging.Logger, conn Connector, opts ...Option) *Envelope {
	if log == nil {
		log = logging.NewDefault("envelope")
	}
	e := &Envelope{log: log, conn: conn, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Logger returns the envelope's logger.
func (e *Envelope) Logger() *logging.Logger {
	return e.log
}

// begin enters the invocation scope and starts the clock.
func (e *Envelope) begin(ctx context.Context, rec invocation.Record) (context.Context, *Invocation) {
	ctx = invocation.WithRecord(ctx, rec)
	inv := &Invocation{Start: e.now()}
	return context.WithValue(ctx, invocationKey{}, inv), inv
}

// acquire registers a running invocation and connects.
func (e *Envelope) acquire(ctx context.Context) {
	e.mu.Lock()
	e.active++
	e.mu.Unlock()

	if e.conn != nil {
		e.conn.Connect(ctx)
	}
}

// release unregisters an invocation. The connection is released only when
// disconnect is set and no other invocation is running. The lock is held
// across Disconnect so a starting invocation connects after it, not during.
func (e *Envelope) release(ctx context.Context, disconnect bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.active--
	if !disconnect || e.active > 0 || e.conn == nil {
		return nil
	}
	return e.conn.Disconnect(ctx)
}

// traceID prefers the request id Lambda assigned to the invocation.
func traceID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return invocation.NewTraceID()
}
