package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/bookstore_lambda/internal/app/domain/book"
	"github.com/R3E-Network/bookstore_lambda/internal/app/storage"
	"github.com/R3E-Network/bookstore_lambda/internal/envelope"
	"github.com/R3E-Network/bookstore_lambda/internal/httputil"
)

type bookCreateRequest struct {
	Title    string `json:"title" validate:"required"`
	AuthorID string `json:"authorId" validate:"required,uuid"`
}

type bookPatchRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=1"`
	AuthorID *string `json:"authorId" validate:"omitempty,uuid"`
}

type bookListQuery struct {
	AuthorID string `json:"authorId" validate:"omitempty,uuid"`
	Title    string `json:"title"`
}

// BookRouter serves /api/books.
type BookRouter struct {
	store storage.BookStore
}

// NewBookRouter creates the book routes.
func NewBookRouter(store storage.BookStore) *BookRouter {
	return &BookRouter{store: store}
}

func (b *BookRouter) BasePath() string { return "/api/books" }

func (b *BookRouter) Register(r *mux.Router, env *envelope.Envelope) {
	r.Handle("", env.Handle(b.list)).Methods(http.MethodGet)
	r.Handle("", env.Handle(b.create)).Methods(http.MethodPost)
	r.Handle("/{bookId}", env.Handle(b.get)).Methods(http.MethodGet)
	r.Handle("/{bookId}", env.Handle(b.patch)).Methods(http.MethodPatch)
	r.Handle("/{bookId}", env.Handle(b.delete)).Methods(http.MethodDelete)
}

func (b *BookRouter) list(w http.ResponseWriter, r *http.Request) error {
	params, err := listParams(r)
	if err != nil {
		return err
	}
	q := bookListQuery{
		AuthorID: r.URL.Query().Get("authorId"),
		Title:    r.URL.Query().Get("title"),
	}
	if err := httputil.Validate(q); err != nil {
		return err
	}

	page, err := b.store.ListBooks(r.Context(), storage.BookFilter{
		ListParams: params,
		AuthorID:   q.AuthorID,
		Title:      q.Title,
	})
	if err != nil {
		return err
	}
	httputil.WriteJSON(w, http.StatusOK, page)
	return nil
}

func (b *BookRouter) get(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["bookId"]

	found, err := b.store.GetBook(r.Context(), id)
	if err != nil {
		return storeError(err, notFoundBook(id))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]book.Book{"book": found})
	return nil
}

func (b *BookRouter) create(w http.ResponseWriter, r *http.Request) error {
	var req bookCreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return err
	}

	created, err := b.store.CreateBook(r.Context(), book.New(req.AuthorID, req.Title))
	if err != nil {
		return storeError(err, notFoundBook(""))
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]book.Book{"book": created})
	return nil
}

func (b *BookRouter) patch(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["bookId"]

	var req bookPatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return err
	}

	updated, err := b.store.UpdateBook(r.Context(), id, book.Patch{AuthorID: req.AuthorID, Title: req.Title})
	if err != nil {
		return storeError(err, notFoundBook(id))
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
	return nil
}

func (b *BookRouter) delete(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["bookId"]

	if err := b.store.DeleteBook(r.Context(), id); err != nil {
		return storeError(err, notFoundBook(id))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"bookId": id})
	return nil
}

func notFoundBook(id string) func(error) error {
	return func(cause error) error { return book.ErrNotFoundByID(id, cause) }
}
