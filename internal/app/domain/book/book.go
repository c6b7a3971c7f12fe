package book

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/R3E-Network/bookstore_lambda/internal/errors"
)

// Book belongs to exactly one author.
type Book struct {
	ID        string    `json:"id" db:"id"`
	AuthorID  string    `json:"authorId" db:"author_id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// New creates a book with a fresh id and timestamps.
func New(authorID, title string) Book {
	now := time.Now().UTC()
	return Book{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Title:     strings.TrimSpace(title),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Patch holds the optional fields of a partial update.
type Patch struct {
	AuthorID *string
	Title    *string
}

// Apply returns a copy of b with the patch applied.
func (p Patch) Apply(b Book) Book {
	if p.AuthorID != nil {
		b.AuthorID = *p.AuthorID
	}
	if p.Title != nil {
		b.Title = strings.TrimSpace(*p.Title)
	}
	return b
}

// ErrNotFoundByID reports a missing book.
func ErrNotFoundByID(id string, cause error) *apperrors.AppError {
	return apperrors.New(apperrors.PrefixBook+"-001", "Book not found by id: "+id,
		apperrors.WithHTTPStatus(http.StatusNotFound),
		apperrors.WithKind("NotFoundById"),
		apperrors.WithCause(cause),
	)
}
