// Package jobs holds the scheduled jobs. Each job is run through the
// invocation envelope, which owns logging of start, finish and failure.
package jobs

import (
	"context"

	"github.com/R3E-Network/bookstore_lambda/internal/app/domain/author"
	"github.com/R3E-Network/bookstore_lambda/internal/app/storage"
	"github.com/R3E-Network/bookstore_lambda/internal/envelope"
	"github.com/R3E-Network/bookstore_lambda/internal/logging"
)

const (
	AuthorsListName    = "AuthorsListCron"
	AuthorCreationName = "AuthorCreationCron"
)

var (
	_ envelope.Job = (*AuthorsList)(nil)
	_ envelope.Job = (*AuthorCreation)(nil)
)

// AuthorsList logs the most recent page of authors.
type AuthorsList struct {
	store storage.AuthorStore
	log   *logging.Logger
}

// NewAuthorsList creates the job.
func NewAuthorsList(store storage.AuthorStore, log *logging.Logger) *AuthorsList {
	return &AuthorsList{store: store, log: log}
}

func (j *AuthorsList) Name() string { return AuthorsListName }

func (j *AuthorsList) Run(ctx context.Context) error {
	log := j.log.WithContext(ctx)
	log.Info("Executing authors list cron logic...")

	page, err := j.store.ListAuthors(ctx, storage.AuthorFilter{})
	if err != nil {
		return err
	}
	for _, a := range page.Results {
		log.WithField("author_id", a.ID).Infof("There is an author %q with id: %s", a.Name, a.ID)
	}
	return nil
}

// AuthorCreation always fails with the example author error. It exists to
// exercise the job failure path end to end.
type AuthorCreation struct {
	log *logging.Logger
}

// NewAuthorCreation creates the job.
func NewAuthorCreation(log *logging.Logger) *AuthorCreation {
	return &AuthorCreation{log: log}
}

func (j *AuthorCreation) Name() string { return AuthorCreationName }

func (j *AuthorCreation) Run(ctx context.Context) error {
	j.log.WithContext(ctx).Info("Executing author creation cron logic...")
	return author.ErrExample()
}
