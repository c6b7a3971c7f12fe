package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/R3E-Network/bookstore_lambda/internal/app/domain/author"
	"github.com/R3E-Network/bookstore_lambda/internal/app/domain/book"
	"github.com/R3E-Network/bookstore_lambda/internal/app/storage"
)

// foreignKeyViolation is the PostgreSQL SQLSTATE for a broken reference.
const foreignKeyViolation = "23503"

// Handle yields the connected database handle. *database.Lifecycle satisfies
// it; the handle is resolved per call so a store can be built before the
// connection exists.
type Handle interface {
	DB() (*sqlx.DB, error)
}

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	handle Handle
}

var _ storage.AuthorStore = (*Store)(nil)
var _ storage.BookStore = (*Store)(nil)

// New creates a Store using the provided handle.
func New(handle Handle) *Store {
	return &Store{handle: handle}
}

// --- AuthorStore ------------------------------------------------------------

const authorColumns = `id, name, created_at, updated_at`

func (s *Store) CreateAuthor(ctx context.Context, a author.Author) (author.Author, error) {
	db, err := s.handle.DB()
	if err != nil {
		return author.Author{}, err
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.UpdatedAt = a.CreatedAt

	_, err = db.NamedExecContext(ctx, `
		INSERT INTO authors (id, name, created_at, updated_at)
		VALUES (:id, :name, :created_at, :updated_at)
	`, a)
	if err != nil {
		return author.Author{}, fmt.Errorf("insert author: %w", err)
	}
	return a, nil
}

func (s *Store) GetAuthor(ctx context.Context, id string) (author.Author, error) {
	db, err := s.handle.DB()
	if err != nil {
		return author.Author{}, err
	}

	key, ok := parseID(id)
	if !ok {
		return author.Author{}, missing("author", id)
	}

	var a author.Author
	err = db.GetContext(ctx, &a, `SELECT `+authorColumns+` FROM authors WHERE id = $1`, key)
	if err != nil {
		return author.Author{}, notFound("author", id, err)
	}
	return a, nil
}

func (s *Store) GetAuthorDetails(ctx context.Context, id string) (storage.AuthorDetails, error) {
	a, err := s.GetAuthor(ctx, id)
	if err != nil {
		return storage.AuthorDetails{}, err
	}

	db, err := s.handle.DB()
	if err != nil {
		return storage.AuthorDetails{}, err
	}

	books := make([]book.Book, 0)
	err = db.SelectContext(ctx, &books, `
		SELECT `+bookColumns+`
		FROM books
		WHERE author_id = $1
		ORDER BY created_at DESC, id
	`, a.ID)
	if err != nil {
		return storage.AuthorDetails{}, fmt.Errorf("select author books: %w", err)
	}
	return storage.AuthorDetails{Author: a, Books: books}, nil
}

func (s *Store) ListAuthors(ctx context.Context, filter storage.AuthorFilter) (storage.Page[author.Author], error) {
	db, err := s.handle.DB()
	if err != nil {
		return storage.Page[author.Author]{}, err
	}

	params := filter.ListParams.Normalize()
	const where = `WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')`
	name := strings.TrimSpace(filter.Name)

	page := storage.Page[author.Author]{Results: make([]author.Author, 0)}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return db.SelectContext(gctx, &page.Results, `
			SELECT `+authorColumns+`
			FROM authors `+where+`
			ORDER BY created_at DESC, id
			LIMIT $2 OFFSET $3
		`, name, params.Limit, params.Skip)
	})
	g.Go(func() error {
		return db.GetContext(gctx, &page.Total, `SELECT COUNT(*) FROM authors `+where, name)
	})
	if err := g.Wait(); err != nil {
		return storage.Page[author.Author]{}, fmt.Errorf("list authors: %w", err)
	}
	return page, nil
}

func (s *Store) UpdateAuthor(ctx context.Context, id string, patch author.Patch) (author.Author, error) {
	db, err := s.handle.DB()
	if err != nil {
		return author.Author{}, err
	}

	key, ok := parseID(id)
	if !ok {
		return author.Author{}, missing("author", id)
	}

	var a author.Author
	err = db.GetContext(ctx, &a, `
		UPDATE authors
		SET name = COALESCE($2, name), updated_at = $3
		WHERE id = $1
		RETURNING `+authorColumns, key, trimmed(patch.Name), time.Now().UTC())
	if err != nil {
		return author.Author{}, notFound("author", id, err)
	}
	return a, nil
}

func (s *Store) DeleteAuthor(ctx context.Context, id string) (err error) {
	db, err := s.handle.DB()
	if err != nil {
		return err
	}

	key, ok := parseID(id)
	if !ok {
		return missing("author", id)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete author: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM books WHERE author_id = $1`, key); err != nil {
		return fmt.Errorf("delete author books: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM authors WHERE id = $1`, key)
	if err != nil {
		return fmt.Errorf("delete author: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		err = missing("author", id)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete author: %w", err)
	}
	return nil
}

// --- BookStore --------------------------------------------------------------

const bookColumns = `id, author_id, title, created_at, updated_at`

func (s *Store) CreateBook(ctx context.Context, b book.Book) (book.Book, error) {
	db, err := s.handle.DB()
	if err != nil {
		return book.Book{}, err
	}

	if _, ok := parseID(b.AuthorID); !ok {
		return book.Book{}, fmt.Errorf("author %s: %w", b.AuthorID, storage.ErrReference)
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.UpdatedAt = b.CreatedAt

	_, err = db.NamedExecContext(ctx, `
		INSERT INTO books (id, author_id, title, created_at, updated_at)
		VALUES (:id, :author_id, :title, :created_at, :updated_at)
	`, b)
	if err != nil {
		return book.Book{}, reference("author", b.AuthorID, fmt.Errorf("insert book: %w", err))
	}
	return b, nil
}

func (s *Store) GetBook(ctx context.Context, id string) (book.Book, error) {
	db, err := s.handle.DB()
	if err != nil {
		return book.Book{}, err
	}

	key, ok := parseID(id)
	if !ok {
		return book.Book{}, missing("book", id)
	}

	var b book.Book
	err = db.GetContext(ctx, &b, `SELECT `+bookColumns+` FROM books WHERE id = $1`, key)
	if err != nil {
		return book.Book{}, notFound("book", id, err)
	}
	return b, nil
}

func (s *Store) ListBooks(ctx context.Context, filter storage.BookFilter) (storage.Page[book.Book], error) {
	db, err := s.handle.DB()
	if err != nil {
		return storage.Page[book.Book]{}, err
	}

	params := filter.ListParams.Normalize()
	const where = `WHERE ($1::uuid IS NULL OR author_id = $1) AND ($2 = '' OR title ILIKE '%' || $2 || '%')`
	title := strings.TrimSpace(filter.Title)

	page := storage.Page[book.Book]{Results: make([]book.Book, 0)}
	var authorID any
	if raw := strings.TrimSpace(filter.AuthorID); raw != "" {
		key, ok := parseID(raw)
		if !ok {
			// No book references an author that cannot exist.
			return page, nil
		}
		authorID = key
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return db.SelectContext(gctx, &page.Results, `
			SELECT `+bookColumns+`
			FROM books `+where+`
			ORDER BY created_at DESC, id
			LIMIT $3 OFFSET $4
		`, authorID, title, params.Limit, params.Skip)
	})
	g.Go(func() error {
		return db.GetContext(gctx, &page.Total, `SELECT COUNT(*) FROM books `+where, authorID, title)
	})
	if err := g.Wait(); err != nil {
		return storage.Page[book.Book]{}, fmt.Errorf("list books: %w", err)
	}
	return page, nil
}

func (s *Store) UpdateBook(ctx context.Context, id string, patch book.Patch) (book.Book, error) {
	db, err := s.handle.DB()
	if err != nil {
		return book.Book{}, err
	}

	key, ok := parseID(id)
	if !ok {
		return book.Book{}, missing("book", id)
	}
	if patch.AuthorID != nil {
		if _, ok := parseID(*patch.AuthorID); !ok {
			return book.Book{}, fmt.Errorf("author %s: %w", *patch.AuthorID, storage.ErrReference)
		}
	}

	var b book.Book
	err = db.GetContext(ctx, &b, `
		UPDATE books
		SET author_id = COALESCE($2::uuid, author_id), title = COALESCE($3, title), updated_at = $4
		WHERE id = $1
		RETURNING `+bookColumns, key, patch.AuthorID, trimmed(patch.Title), time.Now().UTC())
	if err != nil {
		authorID := ""
		if patch.AuthorID != nil {
			authorID = *patch.AuthorID
		}
		return book.Book{}, notFound("book", id, reference("author", authorID, err))
	}
	return b, nil
}

func (s *Store) DeleteBook(ctx context.Context, id string) error {
	db, err := s.handle.DB()
	if err != nil {
		return err
	}

	key, ok := parseID(id)
	if !ok {
		return missing("book", id)
	}

	result, err := db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, key)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return missing("book", id)
	}
	return nil
}

// --- helpers ----------------------------------------------------------------

// parseID returns the canonical form of a UUID key. Keys are compared as
// uuid so the primary key and author_id indexes serve the lookup; a string
// that is not a UUID cannot match any row.
func parseID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

func missing(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return missing(kind, id)
	}
	return err
}

func reference(kind, id string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrReference)
	}
	return err
}
