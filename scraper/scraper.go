package scraper

import (
	"context"
	"fmt"

	"github.com/google/go-github/v74/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Fetcher is the remote side of a scrape.
type Fetcher interface {
	TopRepositories(ctx context.Context, limit int) ([]*github.Repository, error)
	Commits(ctx context.Context, owner, repo string) ([]*github.RepositoryCommit, error)
}

// Scraper ranks the most starred repositories and counts yesterday's commits
// per author for each of them.
type Scraper struct {
	fetcher Fetcher
	limit   int
	log     logrus.FieldLogger
}

type Option func(*Scraper)

// WithLimit sets how many ranked repositories are scraped.
func WithLimit(n int) Option {
	return func(s *Scraper) { s.limit = n }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scraper) {
		if l != nil {
			s.log = l
		}
	}
}

func New(fetcher Fetcher, opts ...Option) *Scraper {
	s := &Scraper{
		fetcher: fetcher,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape returns one summary per ranked repository, ordered by position
// starting at 1. The first failed fetch cancels the remaining ones and fails
// the whole run; no partial result is returned.
func (s *Scraper) Scrape(ctx context.Context) ([]RepositorySummary, error) {
	return s.ScrapeTop(ctx, s.limit)
}

// ScrapeTop is Scrape with a per-call limit; zero falls back to the configured one.
func (s *Scraper) ScrapeTop(ctx context.Context, limit int) ([]RepositorySummary, error) {
	if limit <= 0 {
		limit = s.limit
	}
	s.log.WithField("limit", limit).Debug("scraper: starting to fetch repositories")

	repos, err := s.fetcher.TopRepositories(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch top repositories: %w", err)
	}

	results := make([]RepositorySummary, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	for i, repo := range repos {
		g.Go(func() error {
			summary, err := s.process(gctx, i+1, repo)
			if err != nil {
				return err
			}
			results[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.WithField("count", len(results)).Debug("scraper: fetched repositories")
	return results, nil
}

func (s *Scraper) process(ctx context.Context, position int, repo *github.Repository) (RepositorySummary, error) {
	owner, name := repo.GetOwner().GetLogin(), repo.GetName()
	log := s.log.WithFields(logrus.Fields{"position": position, "repo": owner + "/" + name})

	if owner == "" {
		log.Warn("scraper: repository has no owner, skipping commits")
		return Summarize(position, repo, nil), nil
	}

	log.Debug("scraper: processing repository")
	commits, err := s.fetcher.Commits(ctx, owner, name)
	if err != nil {
		return RepositorySummary{}, fmt.Errorf("repository #%d %s/%s: %w", position, owner, name, err)
	}

	authors := Aggregate(commits)
	log.WithField("authors", len(authors)).Debug("scraper: aggregated commits")
	return Summarize(position, repo, authors), nil
}

// Summarize builds the summary of a raw ranked repository record.
func Summarize(position int, repo *github.Repository, authors []AuthorCommitCount) RepositorySummary {
	if authors == nil {
		authors = []AuthorCommitCount{}
	}
	return RepositorySummary{
		Name:          repo.GetName(),
		Owner:         orUnknown(repo.GetOwner().GetLogin()),
		Position:      position,
		Stars:         repo.GetStargazersCount(),
		Watchers:      repo.GetWatchersCount(),
		Forks:         repo.GetForksCount(),
		Language:      orUnknown(repo.GetLanguage()),
		AuthorCommits: authors,
	}
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
