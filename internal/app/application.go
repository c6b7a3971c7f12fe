package app

import (
	"fmt"

	"github.com/R3E-Network/bookstore_lambda/internal/app/httpapi"
	"github.com/R3E-Network/bookstore_lambda/internal/app/jobs"
	"github.com/R3E-Network/bookstore_lambda/internal/app/services/authors"
	"github.com/R3E-Network/bookstore_lambda/internal/app/storage"
	"github.com/R3E-Network/bookstore_lambda/internal/app/storage/postgres"
	"github.com/R3E-Network/bookstore_lambda/internal/config"
	"github.com/R3E-Network/bookstore_lambda/internal/database"
	"github.com/R3E-Network/bookstore_lambda/internal/envelope"
	"github.com/R3E-Network/bookstore_lambda/internal/logging"
)

// Router names accepted by Application.Routers.
const (
	RouterAuthors = "authors"
	RouterBooks   = "books"
	RouterShops   = "shops"
	RouterHealth  = "health"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// PostgreSQL implementation over the shared connection.
type Stores struct {
	Authors storage.AuthorStore
	Books   storage.BookStore
}

// Option customises New.
type Option func(*options)

type options struct {
	stores    Stores
	connector envelope.Connector
	dbOpts    []database.Option
}

// WithStores overrides the persistence layer.
func WithStores(stores Stores) Option {
	return func(o *options) { o.stores = stores }
}

// WithConnector replaces the database lifecycle as the envelope's connector.
func WithConnector(conn envelope.Connector) Option {
	return func(o *options) { o.connector = conn }
}

// WithDatabaseOptions configures the database lifecycle.
func WithDatabaseOptions(opts ...database.Option) Option {
	return func(o *options) { o.dbOpts = append(o.dbOpts, opts...) }
}

// Application holds the process-wide singletons: one logger, one database
// lifecycle, one envelope. Everything else is built from them.
type Application struct {
	Config   *config.Config
	Log      *logging.Logger
	Database *database.Lifecycle
	Envelope *envelope.Envelope
	Stores   Stores
	Authors  *authors.Service

	connector envelope.Connector
	routers   map[string]httpapi.Router
	jobs      map[string]envelope.Job
}

// New wires the application. It performs no I/O.
func New(cfg *config.Config, log *logging.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	if log == nil {
		log = logging.NewFromConfig(cfg)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db := database.New(cfg.DatabaseURL, log, o.dbOpts...)

	stores := o.stores
	if stores.Authors == nil || stores.Books == nil {
		pg := postgres.New(db)
		if stores.Authors == nil {
			stores.Authors = pg
		}
		if stores.Books == nil {
			stores.Books = pg
		}
	}

	conn := o.connector
	if conn == nil {
		conn = db
	}

	a := &Application{
		Config:    cfg,
		Log:       log,
		Database:  db,
		Envelope:  envelope.New(log, conn),
		Stores:    stores,
		Authors:   authors.New(stores.Authors, log),
		connector: conn,
	}

	a.routers = map[string]httpapi.Router{
		RouterAuthors: httpapi.NewAuthorRouter(stores.Authors, a.Authors),
		RouterBooks:   httpapi.NewBookRouter(stores.Books),
		RouterShops:   httpapi.NewShopRouter(nil),
		RouterHealth:  httpapi.HealthRouter{},
	}
	a.jobs = map[string]envelope.Job{
		jobs.AuthorsListName:    jobs.NewAuthorsList(stores.Authors, log),
		jobs.AuthorCreationName: jobs.NewAuthorCreation(log),
	}

	return a, nil
}

// Routers returns the named routers in the given order. With no names every
// router is returned.
func (a *Application) Routers(names ...string) ([]httpapi.Router, error) {
	if len(names) == 0 {
		names = []string{RouterHealth, RouterAuthors, RouterBooks, RouterShops}
	}
	out := make([]httpapi.Router, 0, len(names))
	for _, name := range names {
		r, ok := a.routers[name]
		if !ok {
			return nil, fmt.Errorf("app: unknown router %q", name)
		}
		out = append(out, r)
	}
	return out, nil
}

// Job returns the scheduled job registered under name.
func (a *Application) Job(name string) (envelope.Job, error) {
	j, ok := a.jobs[name]
	if !ok {
		return nil, fmt.Errorf("app: unknown job %q", name)
	}
	return j, nil
}

// JobNames lists the registered jobs.
func (a *Application) JobNames() []string {
	return []string{jobs.AuthorsListName, jobs.AuthorCreationName}
}
