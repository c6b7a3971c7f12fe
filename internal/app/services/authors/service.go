package authors

import (
	"context"
	"strings"

	"github.com/R3E-Network/bookstore_lambda/internal/app/domain/author"
	"github.com/R3E-Network/bookstore_lambda/internal/app/storage"
	apperrors "github.com/R3E-Network/bookstore_lambda/internal/errors"
	"github.com/R3E-Network/bookstore_lambda/internal/logging"
)

// Service owns author creation.
type Service struct {
	store storage.AuthorStore
	log   *logging.Logger
}

// New creates a configured author service.
func New(store storage.AuthorStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("authors")
	}
	return &Service{store: store, log: log}
}

// Create registers a new author.
func (s *Service) Create(ctx context.Context, name string) (author.Author, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return author.Author{}, apperrors.Validation("name is required", nil)
	}

	created, err := s.store.CreateAuthor(ctx, author.New(name))
	if err != nil {
		return author.Author{}, err
	}

	s.log.WithContext(ctx).WithField("author_id", created.ID).Infof("Creation author: %s", created.ID)
	return created, nil
}
