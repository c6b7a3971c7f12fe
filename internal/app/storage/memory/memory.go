package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/bookstore_lambda/internal/app/domain/author"
	"github.com/R3E-Network/bookstore_lambda/internal/app/domain/book"
	"github.com/R3E-Network/bookstore_lambda/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is intended for tests.
type Store struct {
	mu      sync.RWMutex
	authors map[string]author.Author
	books   map[string]book.Book
}

var _ storage.AuthorStore = (*Store)(nil)
var _ storage.BookStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		authors: make(map[string]author.Author),
		books:   make(map[string]book.Book),
	}
}

// AuthorStore implementation -------------------------------------------------

func (s *Store) CreateAuthor(_ context.Context, a author.Author) (author.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	} else if _, exists := s.authors[a.ID]; exists {
		return author.Author{}, fmt.Errorf("author %s already exists", a.ID)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.UpdatedAt = a.CreatedAt

	s.authors[a.ID] = a
	return a, nil
}

func (s *Store) GetAuthor(_ context.Context, id string) (author.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.authors[id]
	if !ok {
		return author.Author{}, fmt.Errorf("author %s: %w", id, storage.ErrNotFound)
	}
	return a, nil
}

func (s *Store) GetAuthorDetails(_ context.Context, id string) (storage.AuthorDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.authors[id]
	if !ok {
		return storage.AuthorDetails{}, fmt.Errorf("author %s: %w", id, storage.ErrNotFound)
	}

	books := make([]book.Book, 0)
	for _, b := range s.books {
		if b.AuthorID == id {
			books = append(books, b)
		}
	}
	sortBooks(books)
	return storage.AuthorDetails{Author: a, Books: books}, nil
}

func (s *Store) ListAuthors(_ context.Context, filter storage.AuthorFilter) (storage.Page[author.Author], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]author.Author, 0, len(s.authors))
	for _, a := range s.authors {
		if containsFold(a.Name, filter.Name) {
			matches = append(matches, a)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return newerFirst(matches[i].CreatedAt, matches[j].CreatedAt, matches[i].ID, matches[j].ID)
	})

	return storage.Page[author.Author]{
		Results: window(matches, filter.ListParams),
		Total:   len(matches),
	}, nil
}

func (s *Store) UpdateAuthor(_ context.Context, id string, patch author.Patch) (author.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.authors[id]
	if !ok {
		return author.Author{}, fmt.Errorf("author %s: %w", id, storage.ErrNotFound)
	}
	a = patch.Apply(a)
	a.UpdatedAt = time.Now().UTC()
	s.authors[id] = a
	return a, nil
}

func (s *Store) DeleteAuthor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authors[id]; !ok {
		return fmt.Errorf("author %s: %w", id, storage.ErrNotFound)
	}
	for bookID, b := range s.books {
		if b.AuthorID == id {
			delete(s.books, bookID)
		}
	}
	delete(s.authors, id)
	return nil
}

// BookStore implementation ---------------------------------------------------

func (s *Store) CreateBook(_ context.Context, b book.Book) (book.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authors[b.AuthorID]; !ok {
		return book.Book{}, fmt.Errorf("author %s: %w", b.AuthorID, storage.ErrReference)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	} else if _, exists := s.books[b.ID]; exists {
		return book.Book{}, fmt.Errorf("book %s already exists", b.ID)
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.UpdatedAt = b.CreatedAt

	s.books[b.ID] = b
	return b, nil
}

func (s *Store) GetBook(_ context.Context, id string) (book.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return book.Book{}, fmt.Errorf("book %s: %w", id, storage.ErrNotFound)
	}
	return b, nil
}

func (s *Store) ListBooks(_ context.Context, filter storage.BookFilter) (storage.Page[book.Book], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]book.Book, 0, len(s.books))
	for _, b := range s.books {
		if filter.AuthorID != "" && b.AuthorID != filter.AuthorID {
			continue
		}
		if !containsFold(b.Title, filter.Title) {
			continue
		}
		matches = append(matches, b)
	}
	sortBooks(matches)

	return storage.Page[book.Book]{
		Results: window(matches, filter.ListParams),
		Total:   len(matches),
	}, nil
}

func (s *Store) UpdateBook(_ context.Context, id string, patch book.Patch) (book.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[id]
	if !ok {
		return book.Book{}, fmt.Errorf("book %s: %w", id, storage.ErrNotFound)
	}
	b = patch.Apply(b)
	if _, ok := s.authors[b.AuthorID]; !ok {
		return book.Book{}, fmt.Errorf("author %s: %w", b.AuthorID, storage.ErrReference)
	}
	b.UpdatedAt = time.Now().UTC()
	s.books[id] = b
	return b, nil
}

func (s *Store) DeleteBook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return fmt.Errorf("book %s: %w", id, storage.ErrNotFound)
	}
	delete(s.books, id)
	return nil
}

// helpers --------------------------------------------------------------------

func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// newerFirst orders by creation time descending, breaking ties by id.
func newerFirst(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return idA < idB
}

func sortBooks(books []book.Book) {
	sort.Slice(books, func(i, j int) bool {
		return newerFirst(books[i].CreatedAt, books[j].CreatedAt, books[i].ID, books[j].ID)
	})
}

func window[T any](items []T, params storage.ListParams) []T {
	params = params.Normalize()
	if params.Skip >= len(items) {
		return []T{}
	}
	end := params.Skip + params.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[params.Skip:end]
}
