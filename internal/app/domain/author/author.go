package author

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/R3E-Network/bookstore_lambda/internal/errors"
)

// Author is a writer owning zero or more books.
type Author struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// New creates an author with a fresh id and timestamps.
func New(name string) Author {
	now := time.Now().UTC()
	return Author{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Patch holds the optional fields of a partial update.
type Patch struct {
	Name *string
}

// Apply returns a copy of a with the patch applied.
func (p Patch) Apply(a Author) Author {
	if p.Name != nil {
		a.Name = strings.TrimSpace(*p.Name)
	}
	return a
}

// ErrExample is raised by the author creation job to exercise the failure path.
func ErrExample() *apperrors.AppError {
	return apperrors.New(apperrors.PrefixAuthor+"-001", "Author error example",
		apperrors.WithHTTPStatus(http.StatusBadRequest),
		apperrors.WithKind("Example"),
	)
}

// ErrNotFoundByID reports a missing author.
func ErrNotFoundByID(id string, cause error) *apperrors.AppError {
	return apperrors.New(apperrors.PrefixAuthor+"-002", "Author not found by id: "+id,
		apperrors.WithHTTPStatus(http.StatusNotFound),
		apperrors.WithKind("NotFoundById"),
		apperrors.WithCause(cause),
	)
}
