// Package invocation carries the identity of a single invocation (HTTP request
// or scheduled job run) through context.Context.
package invocation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind discriminates the origin of an invocation.
type Kind string

const (
	KindRequest Kind = "request"
	KindJob     Kind = "job"
)

// RequestMeta describes the inbound HTTP request of a request invocation.
type RequestMeta struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// JobMeta describes the scheduled job of a job invocation.
type JobMeta struct {
	Name string `json:"name"`
}

// Record is the identity of one invocation. It is immutable once built; use
// NewRequestRecord or NewJobRecord to construct one.
type Record struct {
	traceID string
	kind    Kind
	request *RequestMeta
	job     *JobMeta
}

// NewRequestRecord builds the record for an HTTP request invocation.
func NewRequestRecord(traceID, method, url string) Record {
	return Record{
		traceID: traceID,
		kind:    KindRequest,
		request: &RequestMeta{Method: method, URL: url},
	}
}

// NewJobRecord builds the record for a scheduled job invocation.
func NewJobRecord(traceID, name string) Record {
	return Record{
		traceID: traceID,
		kind:    KindJob,
		job:     &JobMeta{Name: name},
	}
}

func (r Record) TraceID() string { return r.traceID }

func (r Record) Kind() Kind { return r.kind }

// Request returns a copy of the request metadata. ok is false for job records.
func (r Record) Request() (meta RequestMeta, ok bool) {
	if r.request == nil {
		return RequestMeta{}, false
	}
	return *r.request, true
}

// Job returns a copy of the job metadata. ok is false for request records.
func (r Record) Job() (meta JobMeta, ok bool) {
	if r.job == nil {
		return JobMeta{}, false
	}
	return *r.job, true
}

// Validate enforces that exactly one metadata block is present and that it
// matches the kind.
func (r Record) Validate() error {
	if strings.TrimSpace(r.traceID) == "" {
		return fmt.Errorf("invocation record: trace id is required")
	}
	switch r.kind {
	case KindRequest:
		if r.request == nil || r.job != nil {
			return fmt.Errorf("invocation record: request kind requires request metadata only")
		}
	case KindJob:
		if r.job == nil || r.request != nil {
			return fmt.Errorf("invocation record: job kind requires job metadata only")
		}
	default:
		return fmt.Errorf("invocation record: unknown kind %q", r.kind)
	}
	return nil
}

// NewTraceID generates a fresh identifier for invocations that arrive without
// a platform-assigned request id.
func NewTraceID() string {
	return uuid.NewString()
}

type recordKey struct{}

// WithRecord returns a child context carrying rec. Code running under the
// returned context observes rec through FromContext; the parent is untouched.
func WithRecord(ctx context.Context, rec Record) context.Context {
	return context.WithValue(ctx, recordKey{}, rec)
}

// FromContext returns the record of the invocation ctx belongs to. ok is false
// outside any invocation scope.
func FromContext(ctx context.Context) (Record, bool) {
	if ctx == nil {
		return Record{}, false
	}
	rec, ok := ctx.Value(recordKey{}).(Record)
	return rec, ok
}

// TraceID is a shortcut for FromContext(ctx).TraceID(). It returns "" outside
// an invocation scope.
func TraceID(ctx context.Context) string {
	rec, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return rec.traceID
}

// Run executes work under a scope where FromContext returns rec and
// propagates whatever work returns. A Run nested inside another shadows the
// outer record for its own subtree only.
func Run[T any](ctx context.Context, rec Record, work func(context.Context) (T, error)) (T, error) {
	if err := rec.Validate(); err != nil {
		var zero T
		return zero, err
	}
	return work(WithRecord(ctx, rec))
}
