package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/go-github/v74/github"
	"github.com/sirupsen/logrus"

	"github.com/urizennnn/reposcraper/cache"
)

// DefaultTopLimit is the search page size; GitHub caps per_page at 100.
const DefaultTopLimit = 100

// Window is the half-open UTC interval [Since, Until).
type Window struct {
	Since time.Time
	Until time.Time
}

// DayWindow returns the previous UTC calendar day relative to now.
func DayWindow(now time.Time) Window {
	now = now.UTC()
	until := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Window{Since: until.AddDate(0, 0, -1), Until: until}
}

type windowKey struct{}

// ContextWithWindow pins the commit window used by Fetcher.Commits for calls
// made with the returned context.
func ContextWithWindow(ctx context.Context, w Window) context.Context {
	return context.WithValue(ctx, windowKey{}, w)
}

// WindowFromContext returns the window pinned by ContextWithWindow, if any.
func WindowFromContext(ctx context.Context) (Window, bool) {
	w, ok := ctx.Value(windowKey{}).(Window)
	return w, ok
}

// Fetcher reads the star ranking and per-repository commit windows through a Gate.
type Fetcher struct {
	gate  *Gate
	cache *cache.Cache[[]*github.RepositoryCommit]
	pages int
	now   func() time.Time
	log   logrus.FieldLogger
}

type FetcherOption func(*Fetcher)

// WithCommitCache memoizes commit windows until the window stops being "yesterday".
func WithCommitCache(c *cache.Cache[[]*github.RepositoryCommit]) FetcherOption {
	return func(f *Fetcher) { f.cache = c }
}

// WithCommitPages follows up to n pages of commits. The default of 1 reads
// only the first page, so busy repositories are under-counted.
func WithCommitPages(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.pages = n
		}
	}
}

func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

func WithFetcherLogger(l logrus.FieldLogger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

func NewFetcher(gate *Gate, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		gate:  gate,
		pages: 1,
		now:   time.Now,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// TopRepositories returns the first page of the star ranking in the order the
// API returned it.
func (f *Fetcher) TopRepositories(ctx context.Context, limit int) ([]*github.Repository, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	f.log.WithField("limit", limit).Debug("github: fetching top repositories")

	params := url.Values{
		"q":        {"stars:>1"},
		"sort":     {"stars"},
		"order":    {"desc"},
		"per_page": {strconv.Itoa(limit)},
	}
	var result github.RepositoriesSearchResult
	if _, err := f.gate.Do(ctx, http.MethodGet, "search/repositories", params, &result); err != nil {
		return nil, err
	}
	return result.Repositories, nil
}

// Commits returns the commits of owner/repo made during the window pinned on
// ctx, or the previous UTC day when none is pinned.
func (f *Fetcher) Commits(ctx context.Context, owner, repo string) ([]*github.RepositoryCommit, error) {
	now := f.now()
	window, ok := WindowFromContext(ctx)
	if !ok {
		window = DayWindow(now)
	}
	key := fmt.Sprintf("%s/%s@%s", owner, repo, window.Since.Format(time.DateOnly))
	if cached, ok := f.cache.Get(key); ok {
		f.log.WithField("repo", owner+"/"+repo).Debug("github: commits served from cache")
		return cached, nil
	}

	f.log.WithField("repo", owner+"/"+repo).Debug("github: fetching commits")
	endpoint := fmt.Sprintf("repos/%s/%s/commits", url.PathEscape(owner), url.PathEscape(repo))
	params := url.Values{
		"since": {window.Since.Format(time.RFC3339)},
		"until": {window.Until.Format(time.RFC3339)},
	}

	var commits []*github.RepositoryCommit
	page := 1
	for fetched := 0; fetched < f.pages; fetched++ {
		if page > 1 {
			params.Set("page", strconv.Itoa(page))
		}
		var batch []*github.RepositoryCommit
		resp, err := f.gate.Do(ctx, http.MethodGet, endpoint, params, &batch)
		if err != nil {
			return nil, err
		}
		commits = append(commits, batch...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	f.cache.Set(key, commits, window.Until.AddDate(0, 0, 1).Sub(now))
	return commits, nil
}
