package scraper

import "github.com/google/go-github/v74/github"

// Aggregate counts commits per author display name. Commits without an author
// name are skipped. Entries keep the order in which each author first appears.
func Aggregate(commits []*github.RepositoryCommit) []AuthorCommitCount {
	index := make(map[string]int)
	counts := make([]AuthorCommitCount, 0)

	for _, c := range commits {
		author := c.GetCommit().GetAuthor()
		if author == nil || author.Name == nil {
			continue
		}
		name := *author.Name
		if i, ok := index[name]; ok {
			counts[i].CommitsNum++
			continue
		}
		index[name] = len(counts)
		counts = append(counts, AuthorCommitCount{Author: name, CommitsNum: 1})
	}
	return counts
}
