package scraper

// Unknown replaces an absent owner or language.
const Unknown = "Unknown"

// AuthorCommitCount is the number of commits one author display name made in
// the scraped window.
type AuthorCommitCount struct {
	Author     string `json:"author"`
	CommitsNum int    `json:"commits_num"`
}

// RepositorySummary is one ranked repository of a scrape run.
type RepositorySummary struct {
	Name          string              `json:"name"`
	Owner         string              `json:"owner"`
	Position      int                 `json:"position"`
	Stars         int                 `json:"stars"`
	Watchers      int                 `json:"watchers"`
	Forks         int                 `json:"forks"`
	Language      string              `json:"language"`
	AuthorCommits []AuthorCommitCount `json:"author_commits"`
}
