// Package database manages the single PostgreSQL handle shared by every
// invocation of a process. The handle is constructed once and lives until
// the process closes it.
package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/R3E-Network/bookstore_lambda/internal/logging"
)

// ErrNotConnected is returned by DB when no connected handle is available.
var ErrNotConnected = errors.New("database: not connected")

// ErrClosed reports a Connect after Close.
var ErrClosed = errors.New("database: lifecycle closed")

// State is the connection state of a Lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Opener constructs the underlying handle for dsn. It must not perform I/O
// that is expected to fail on an unreachable server; Connect pings afterwards.
type Opener func(ctx context.Context, dsn string) (*sqlx.DB, error)

func openPostgres(_ context.Context, dsn string) (*sqlx.DB, error) {
	return sqlx.Open("postgres", dsn)
}

// PoolConfig bounds the connection pool behind the handle.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithOpener replaces the PostgreSQL opener.
func WithOpener(open Opener) Option {
	return func(l *Lifecycle) { l.open = open }
}

// WithPool sets the pool limits applied to the handle once opened.
func WithPool(cfg PoolConfig) Option {
	return func(l *Lifecycle) { l.pool = cfg }
}

// Lifecycle owns the shared handle. Connect and Disconnect are serialized;
// DB may be called concurrently from any number of invocations.
type Lifecycle struct {
	dsn  string
	host string
	log  *logging.Logger
	open Opener
	pool PoolConfig

	mu     sync.Mutex
	db     *sqlx.DB // guarded by mu; constructed at most once
	opened int      // guarded by mu
	closed bool     // guarded by mu

	state atomic.Int32
	live  atomic.Pointer[sqlx.DB]
}

// New creates a disconnected lifecycle for dsn.
func New(dsn string, log *logging.Logger, opts ...Option) *Lifecycle {
	if log == nil {
		log = logging.NewDefault("database")
	}

	host := ""
	if u, err := url.Parse(dsn); err == nil {
		host = u.Hostname()
	}

	l := &Lifecycle{
		dsn:  dsn,
		host: host,
		log:  log,
		open: openPostgres,
		pool: PoolConfig{
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connect makes the handle ready. It is a no-op when already connected, and
// concurrent callers wait for the connect in progress instead of starting a
// second one. The handle is constructed on the first call only; later calls
// re-ping it. Failures are logged and swallowed: the handle stays unusable
// and dependent work fails with ErrNotConnected.
func (l *Lifecycle) Connect(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State() == StateConnected {
		return
	}

	log := l.log.WithContext(ctx).WithField("host", l.host)

	if l.closed {
		log.WithError(ErrClosed).Error("Unexpected error in database connection")
		return
	}
	l.state.Store(int32(StateConnecting))

	if l.db == nil {
		db, err := l.open(ctx, l.dsn)
		if err != nil {
			l.state.Store(int32(StateDisconnected))
			log.WithError(err).Error("Unexpected error in database connection")
			return
		}
		if l.pool.MaxOpenConns > 0 {
			db.SetMaxOpenConns(l.pool.MaxOpenConns)
		}
		if l.pool.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(l.pool.ConnMaxLifetime)
		}
		l.db = db
		l.opened++
	}
	if l.pool.MaxIdleConns > 0 {
		l.db.SetMaxIdleConns(l.pool.MaxIdleConns)
	}

	log.Infof("Connecting to database %s ...", l.host)

	if err := l.db.PingContext(ctx); err != nil {
		l.state.Store(int32(StateDisconnected))
		log.WithError(err).Error("Unexpected error in database connection")
		return
	}

	l.live.Store(l.db)
	l.state.Store(int32(StateConnected))
	log.Infof("Successful connection to database: %s", l.host)
}

// Disconnect releases the pooled connections and marks the lifecycle
// disconnected. The handle itself is kept, so work that already holds it
// finishes normally and the next Connect re-pings the same object. Calling
// it when nothing was opened, or twice, is a no-op.
func (l *Lifecycle) Disconnect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil || l.State() == StateDisconnected {
		return nil
	}

	l.live.Store(nil)
	if l.pool.MaxIdleConns > 0 {
		// Closes idle connections now and busy ones as they are returned;
		// Connect restores the limit.
		l.db.SetMaxIdleConns(0)
	}
	l.state.Store(int32(StateDisconnected))

	l.log.WithContext(ctx).WithField("host", l.host).Debug("Disconnected from database")
	return nil
}

// Close shuts the handle down for good. It is meant for process shutdown;
// Connect fails with ErrClosed afterwards.
func (l *Lifecycle) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.live.Store(nil)
	l.state.Store(int32(StateDisconnected))

	if l.db == nil {
		return nil
	}
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// DB returns the connected handle.
func (l *Lifecycle) DB() (*sqlx.DB, error) {
	if db := l.live.Load(); db != nil {
		return db, nil
	}
	return nil, ErrNotConnected
}

// State reports the current connection state.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// Host is the database host name, for logging.
func (l *Lifecycle) Host() string {
	return l.host
}

// Opened reports how many handles have been constructed.
func (l *Lifecycle) Opened() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opened
}
