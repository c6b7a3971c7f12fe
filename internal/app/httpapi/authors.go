package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/bookstore_lambda/internal/app/domain/author"
	"github.com/R3E-Network/bookstore_lambda/internal/app/services/authors"
	"github.com/R3E-Network/bookstore_lambda/internal/app/storage"
	"github.com/R3E-Network/bookstore_lambda/internal/envelope"
	"github.com/R3E-Network/bookstore_lambda/internal/httputil"
)

type authorCreateRequest struct {
	Name string `json:"name" validate:"required"`
}

type authorPatchRequest struct {
	Name *string `json:"name" validate:"omitempty,min=1"`
}

// AuthorRouter serves /api/authors.
type AuthorRouter struct {
	store    storage.AuthorStore
	creation *authors.Service
}

// NewAuthorRouter creates the author routes.
func NewAuthorRouter(store storage.AuthorStore, creation *authors.Service) *AuthorRouter {
	return &AuthorRouter{store: store, creation: creation}
}

func (a *AuthorRouter) BasePath() string { return "/api/authors" }

func (a *AuthorRouter) Register(r *mux.Router, env *envelope.Envelope) {
	r.Handle("", env.Handle(a.list)).Methods(http.MethodGet)
	r.Handle("", env.Handle(a.create)).Methods(http.MethodPost)
	r.Handle("/{authorId}", env.Handle(a.get)).Methods(http.MethodGet)
	r.Handle("/{authorId}", env.Handle(a.patch)).Methods(http.MethodPatch)
	r.Handle("/{authorId}", env.Handle(a.delete)).Methods(http.MethodDelete)
}

func (a *AuthorRouter) list(w http.ResponseWriter, r *http.Request) error {
	params, err := listParams(r)
	if err != nil {
		return err
	}

	page, err := a.store.ListAuthors(r.Context(), storage.AuthorFilter{
		ListParams: params,
		Name:       r.URL.Query().Get("name"),
	})
	if err != nil {
		return err
	}
	httputil.WriteJSON(w, http.StatusOK, page)
	return nil
}

func (a *AuthorRouter) get(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["authorId"]

	details, err := a.store.GetAuthorDetails(r.Context(), id)
	if err != nil {
		return storeError(err, notFoundAuthor(id))
	}
	httputil.WriteJSON(w, http.StatusOK, details)
	return nil
}

func (a *AuthorRouter) create(w http.ResponseWriter, r *http.Request) error {
	var req authorCreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return err
	}

	created, err := a.creation.Create(r.Context(), req.Name)
	if err != nil {
		return err
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]author.Author{"author": created})
	return nil
}

func (a *AuthorRouter) patch(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["authorId"]

	var req authorPatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return err
	}

	updated, err := a.store.UpdateAuthor(r.Context(), id, author.Patch{Name: req.Name})
	if err != nil {
		return storeError(err, notFoundAuthor(id))
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
	return nil
}

func (a *AuthorRouter) delete(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["authorId"]

	if err := a.store.DeleteAuthor(r.Context(), id); err != nil {
		return storeError(err, notFoundAuthor(id))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"authorId": id})
	return nil
}

func notFoundAuthor(id string) func(error) error {
	return func(cause error) error { return author.ErrNotFoundByID(id, cause) }
}
