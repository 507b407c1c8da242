package store

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/rs/zerolog/log"

	"github.com/fpang/doc-ingest-pipeline/internal/config"
	"github.com/fpang/doc-ingest-pipeline/internal/pipeline"
)

// PostgresCounter counts chunks over a direct database connection. The
// connection is opened lazily so a run that never verifies never dials.
type PostgresCounter struct {
	db      *sql.DB
	query   string
	timeout time.Duration
}

// DSN renders the connection URL for cfg.
func DSN(cfg config.Store) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, cfg.Port),
		Path:   "/" + cfg.Name,
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else if cfg.User != "" {
		u.User = url.User(cfg.User)
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {cfg.SSLMode}}.Encode()
	}
	return u.String()
}

// NewPostgresCounter prepares a counter for cfg. sql.Open does not connect.
func NewPostgresCounter(cfg config.Store) (*PostgresCounter, error) {
	db, err := sql.Open("pgx", DSN(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	db.SetMaxOpenConns(1)
	return NewPostgresCounterWithDB(db, cfg)
}

// NewPostgresCounterWithDB wraps an existing handle.
func NewPostgresCounterWithDB(db *sql.DB, cfg config.Store) (*PostgresCounter, error) {
	if err := checkIdentifiers(cfg.Table, cfg.TagKey); err != nil {
		return nil, err
	}
	return &PostgresCounter{
		db:      db,
		query:   countQuery(cfg.Table, cfg.TagKey, "$1"),
		timeout: cfg.QueryTimeout,
	}, nil
}

// CountByTag returns the distinct documents and total chunks tagged with tag.
func (p *PostgresCounter) CountByTag(ctx context.Context, tag string) (pipeline.StoreCounts, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var counts pipeline.StoreCounts
	if err := p.db.QueryRowContext(ctx, p.query, tag).Scan(&counts.Documents, &counts.Chunks); err != nil {
		return pipeline.StoreCounts{}, errors.Wrap(err, "count chunks")
	}
	log.Debug().Str("runTag", tag).Int("documents", counts.Documents).Int("chunks", counts.Chunks).Msg("Store counts read")
	return counts, nil
}

// Close releases the connection pool.
func (p *PostgresCounter) Close() error {
	return p.db.Close()
}
