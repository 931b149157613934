package storage

import (
	"context"
	"os"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urizennnn/reposcraper/scraper"
)

func connectTestDB(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	logger, _ := logtest.NewNullLogger()
	ctx := context.Background()
	p, err := Connect(ctx, dsn, logger)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	require.NoError(t, p.Migrate(ctx))
	return p
}

func TestPostgresSaveWritesAllTables(t *testing.T) {
	p := connectTestDB(t)
	ctx := context.Background()

	repo := "storage-test-" + time.Now().Format("150405.000000")
	scrapedAt := time.Now().UTC()
	require.NoError(t, p.Save(ctx, []scraper.RepositorySummary{{
		Name: repo, Owner: "o", Position: 1, Stars: 3, Language: "Go",
		AuthorCommits: []scraper.AuthorCommitCount{{Author: "ann", CommitsNum: 4}},
	}}, scrapedAt))

	var stars, position, commits int
	require.NoError(t, p.pool.QueryRow(ctx, `SELECT stars FROM repositories WHERE name = $1`, repo).Scan(&stars))
	require.NoError(t, p.pool.QueryRow(ctx, `SELECT position FROM repositories_positions WHERE repo = $1`, repo).Scan(&position))
	require.NoError(t, p.pool.QueryRow(ctx, `SELECT commits_num FROM repositories_authors_commits WHERE repo = $1 AND author = 'ann'`, repo).Scan(&commits))
	assert.Equal(t, 3, stars)
	assert.Equal(t, 1, position)
	assert.Equal(t, 4, commits)
}

func TestPostgresSaveSkipsEmptyRun(t *testing.T) {
	p := connectTestDB(t)
	require.NoError(t, p.Save(context.Background(), nil, time.Now()))
}
