package storage

import (
	"time"

	"github.com/urizennnn/reposcraper/scraper"
)

type RepositoryRow struct {
	Name     string
	Owner    string
	Stars    int
	Watchers int
	Forks    int
	Language string
	Updated  time.Time
}

type PositionRow struct {
	Date     time.Time
	Repo     string
	Position int
}

type AuthorCommitsRow struct {
	Date       time.Time
	Repo       string
	Author     string
	CommitsNum int
}

// Batch holds the three row sets derived from one scrape run.
type Batch struct {
	Repositories  []RepositoryRow
	Positions     []PositionRow
	AuthorCommits []AuthorCommitsRow
}

// Project splits a scrape result into per-table rows. Dates are the calendar
// day of scrapedAt in its own location.
func Project(repos []scraper.RepositorySummary, scrapedAt time.Time) Batch {
	date := time.Date(scrapedAt.Year(), scrapedAt.Month(), scrapedAt.Day(), 0, 0, 0, 0, scrapedAt.Location())
	updated := scrapedAt.Truncate(time.Second)

	b := Batch{
		Repositories: make([]RepositoryRow, 0, len(repos)),
		Positions:    make([]PositionRow, 0, len(repos)),
	}
	for _, r := range repos {
		b.Repositories = append(b.Repositories, RepositoryRow{
			Name:     r.Name,
			Owner:    r.Owner,
			Stars:    r.Stars,
			Watchers: r.Watchers,
			Forks:    r.Forks,
			Language: r.Language,
			Updated:  updated,
		})
		b.Positions = append(b.Positions, PositionRow{Date: date, Repo: r.Name, Position: r.Position})
		for _, a := range r.AuthorCommits {
			b.AuthorCommits = append(b.AuthorCommits, AuthorCommitsRow{
				Date:       date,
				Repo:       r.Name,
				Author:     a.Author,
				CommitsNum: a.CommitsNum,
			})
		}
	}
	return b
}
