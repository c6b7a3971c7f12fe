package storage

import (
	"context"
	"errors"

	"github.com/R3E-Network/bookstore_lambda/internal/app/domain/author"
	"github.com/R3E-Network/bookstore_lambda/internal/app/domain/book"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("storage: record not found")
	// ErrReference is returned when a write points at a record that does not
	// exist, such as a book for an unknown author.
	ErrReference = errors.New("storage: referenced record not found")
)

// DefaultLimit applies when a list call does not set one.
const DefaultLimit = 20

// ListParams pages through a listing.
type ListParams struct {
	Limit int
	Skip  int
}

// Normalize fills defaults and clamps negative values.
func (p ListParams) Normalize() ListParams {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Skip < 0 {
		p.Skip = 0
	}
	return p
}

// Page is one page of results plus the total number of matches.
type Page[T any] struct {
	Results []T `json:"results"`
	Total   int `json:"total"`
}

// AuthorFilter narrows an author listing. Name matches case-insensitively
// anywhere in the author name.
type AuthorFilter struct {
	ListParams
	Name string
}

// BookFilter narrows a book listing.
type BookFilter struct {
	ListParams
	AuthorID string
	Title    string
}

// AuthorDetails is an author together with their books.
type AuthorDetails struct {
	Author author.Author `json:"author"`
	Books  []book.Book   `json:"books"`
}

// AuthorStore persists authors.
type AuthorStore interface {
	CreateAuthor(ctx context.Context, a author.Author) (author.Author, error)
	GetAuthor(ctx context.Context, id string) (author.Author, error)
	GetAuthorDetails(ctx context.Context, id string) (AuthorDetails, error)
	ListAuthors(ctx context.Context, filter AuthorFilter) (Page[author.Author], error)
	UpdateAuthor(ctx context.Context, id string, patch author.Patch) (author.Author, error)
	// DeleteAuthor removes the author and all of their books atomically.
	DeleteAuthor(ctx context.Context, id string) error
}

// BookStore persists books.
type BookStore interface {
	CreateBook(ctx context.Context, b book.Book) (book.Book, error)
	GetBook(ctx context.Context, id string) (book.Book, error)
	ListBooks(ctx context.Context, filter BookFilter) (Page[book.Book], error)
	UpdateBook(ctx context.Context, id string, patch book.Patch) (book.Book, error)
	DeleteBook(ctx context.Context, id string) error
}
