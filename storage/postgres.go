package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/urizennnn/reposcraper/scraper"
)

const schema = `
CREATE TABLE IF NOT EXISTS repositories (
	name     TEXT        NOT NULL,
	owner    TEXT        NOT NULL,
	stars    INTEGER     NOT NULL,
	watchers INTEGER     NOT NULL,
	forks    INTEGER     NOT NULL,
	language TEXT        NOT NULL,
	updated  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS repositories_positions (
	date     DATE    NOT NULL,
	repo     TEXT    NOT NULL,
	position INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS repositories_authors_commits (
	date        DATE    NOT NULL,
	repo        TEXT    NOT NULL,
	author      TEXT    NOT NULL,
	commits_num INTEGER NOT NULL
);`

// Writer persists the result of one scrape run.
type Writer interface {
	Save(ctx context.Context, repos []scraper.RepositorySummary, scrapedAt time.Time) error
}

// Postgres writes scrape results with COPY, all three tables in one transaction.
type Postgres struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

func Connect(ctx context.Context, dsn string, log logrus.FieldLogger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Postgres{pool: pool, log: log}, nil
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, repos []scraper.RepositorySummary, scrapedAt time.Time) error {
	if len(repos) == 0 {
		p.log.Warn("storage: no repositories to save, skipping insert")
		return nil
	}

	b := Project(repos, scrapedAt)
	p.log.WithFields(logrus.Fields{
		"repositories":   len(b.Repositories),
		"positions":      len(b.Positions),
		"author_commits": len(b.AuthorCommits),
	}).Info("storage: writing batch")

	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"repositories"},
			[]string{"name", "owner", "stars", "watchers", "forks", "language", "updated"},
			pgx.CopyFromSlice(len(b.Repositories), func(i int) ([]any, error) {
				r := b.Repositories[i]
				return []any{r.Name, r.Owner, r.Stars, r.Watchers, r.Forks, r.Language, r.Updated}, nil
			}),
		); err != nil {
			return fmt.Errorf("copy repositories: %w", err)
		}

		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"repositories_positions"},
			[]string{"date", "repo", "position"},
			pgx.CopyFromSlice(len(b.Positions), func(i int) ([]any, error) {
				r := b.Positions[i]
				return []any{r.Date, r.Repo, r.Position}, nil
			}),
		); err != nil {
			return fmt.Errorf("copy positions: %w", err)
		}

		if len(b.AuthorCommits) == 0 {
			return nil
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"repositories_authors_commits"},
			[]string{"date", "repo", "author", "commits_num"},
			pgx.CopyFromSlice(len(b.AuthorCommits), func(i int) ([]any, error) {
				r := b.AuthorCommits[i]
				return []any{r.Date, r.Repo, r.Author, r.CommitsNum}, nil
			}),
		); err != nil {
			return fmt.Errorf("copy author commits: %w", err)
		}
		return nil
	})
}

func (p *Postgres) Close() {
	p.pool.Close()
}
