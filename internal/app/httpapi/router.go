// Package httpapi exposes the HTTP routers. Handlers return errors and leave
// classification, logging and the error body to the invocation envelope.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/bookstore_lambda/internal/app/storage"
	"github.com/R3E-Network/bookstore_lambda/internal/envelope"
	apperrors "github.com/R3E-Network/bookstore_lambda/internal/errors"
)

// Router mounts a group of routes under BasePath.
type Router interface {
	BasePath() string
	Register(r *mux.Router, env *envelope.Envelope)
}

// listParams reads the limit and skip query parameters. Both must be
// non-negative integers when present.
func listParams(r *http.Request) (storage.ListParams, error) {
	var params storage.ListParams
	q := r.URL.Query()

	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &params.Limit},
		{"skip", &params.Skip},
	} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || strings.HasPrefix(raw, "+") {
			return storage.ListParams{}, apperrors.Validation(p.name+" must be a non-negative integer", err)
		}
		*p.dst = n
	}
	return params, nil
}

// storeError maps storage sentinels to domain errors. notFound builds the
// domain-specific not-found error.
func storeError(err error, notFound func(cause error) error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return notFound(err)
	case errors.Is(err, storage.ErrReference):
		return apperrors.Validation("authorId does not reference an existing author", err)
	default:
		return err
	}
}
