package envelope

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/bookstore_lambda/internal/app/metrics"
	apperrors "github.com/R3E-Network/bookstore_lambda/internal/errors"
	"github.com/R3E-Network/bookstore_lambda/internal/httputil"
	"github.com/R3E-Network/bookstore_lambda/internal/invocation"
)

// HandlerFunc is an HTTP handler that reports failure by returning an error
// instead of writing an error response itself.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Middleware is the HTTP side of the envelope. It must be the outermost
// handler so that every response, including rejected and unmatched ones,
// carries the trace id header.
func (e *Envelope) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, inv := e.begin(r.Context(), invocation.NewRequestRecord(traceID(r.Context()), r.Method, r.URL.String()))
		w.Header().Set(httputil.TraceHeader, invocation.TraceID(ctx))

		done := metrics.RequestStarted()
		defer done()

		e.log.WithContext(ctx).Infof("-→ %s %s", r.Method, r.URL.Path)
		e.acquire(ctx)
		defer func() { _ = e.release(ctx, false) }()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		r = r.WithContext(ctx)

		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					// The server aborts the response; nothing may be written.
					d := inv.finish(e.now())
					e.log.WithContext(ctx).WithField("duration_ms", d.Milliseconds()).
						Warnf("-x %s %s aborted (%dms)", r.Method, r.URL.Path, d.Milliseconds())
					metrics.RecordHTTPRequest(r.Method, inv.routeTemplate(), sw.status, d)
					panic(p)
				}
				e.writeFailure(sw, r, inv, apperrors.FromPanic(p))
			}

			d := inv.finish(e.now())
			if resp, status, err := inv.failure(); err != nil {
				e.logFailure(r, err, resp, status, d)
			} else {
				e.log.LogRequest(ctx, r.Method, r.URL.Path, sw.status, d)
			}
			metrics.RecordHTTPRequest(r.Method, inv.routeTemplate(), sw.status, d)
		}()

		next.ServeHTTP(sw, r)
	})
}

// Handle adapts h so that a returned error is classified and written as the
// JSON error body. The failure is logged by Middleware.
func (e *Envelope) Handle(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			inv, ok := Current(r.Context())
			if !ok {
				// Not behind Middleware; still answer with a classified body.
				httputil.WriteError(w, err)
				return
			}
			e.writeFailure(w, r, inv, err)
		}
	})
}

// Guard returns a middleware that rejects a request when check fails. The
// rejection is classified, written and logged like any handler failure.
func (e *Envelope) Guard(check func(*http.Request) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return e.Handle(func(w http.ResponseWriter, r *http.Request) error {
			if err := check(r); err != nil {
				return err
			}
			next.ServeHTTP(w, r)
			return nil
		})
	}
}

// RouteTagger is a mux middleware that records the matched route template
// for metrics. Mount it with Router.Use.
func (e *Envelope) RouteTagger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inv, ok := Current(r.Context()); ok {
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					inv.setRoute(tpl)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// NotFound answers requests no route matched.
func (e *Envelope) NotFound() http.Handler {
	return e.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return apperrors.RouteNotFound(r.Method, r.URL.Path)
	})
}

func (e *Envelope) writeFailure(w http.ResponseWriter, r *http.Request, inv *Invocation, err error) {
	resp, status, first := inv.fail(err)
	if !first {
		return
	}
	if sw, ok := w.(*statusWriter); ok && sw.wrote {
		// Headers are gone; the failure is still logged.
		return
	}
	httputil.WriteJSON(w, status, resp)
}

func (e *Envelope) logFailure(r *http.Request, err error, resp apperrors.Response, status int, d time.Duration) {
	metrics.RecordHTTPError(resp.Code)

	entry := e.log.WithContext(r.Context()).WithError(err).WithFields(logrus.Fields{
		"code":        resp.Code,
		"name":        resp.Name,
		"status":      status,
		"method":      r.Method,
		"path":        r.URL.Path,
		"duration_ms": d.Milliseconds(),
	})
	entry.Errorf("Error in %s %s (%dms)", r.Method, r.URL.Path, d.Milliseconds())
}

// statusWriter records the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.wrote {
		return
	}
	w.status = code
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
