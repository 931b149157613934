package ai

import "time"

type Contributor struct {
	Name    string `json:"name"`
	Commits int    `json:"commits"`
}

type RepoActivity struct {
	Repo         string        `json:"repo"`
	Position     int           `json:"position"`
	Stars        int           `json:"stars"`
	Language     string        `json:"language"`
	Commits      int           `json:"commits"`
	Contributors []Contributor `json:"contributors,omitempty"`
}

// DigestJob is the model input for one scrape run.
type DigestJob struct {
	Since        time.Time      `json:"since"`
	Until        time.Time      `json:"until"`
	Repositories []RepoActivity `json:"repositories"`
}

type Digest struct {
	Headline   string   `json:"headline"`
	Highlights []string `json:"highlights,omitempty"`
	TopAuthors []string `json:"topAuthors,omitempty"`
}

type UsageDetails struct {
	Model            string `json:"model"`
	PromptTokens     int64  `json:"promptTokens"`
	CompletionTokens int64  `json:"completionTokens"`
	TotalTokens      int64  `json:"totalTokens"`
}

type DigestResult struct {
	Digest  Digest       `json:"digest"`
	Details UsageDetails `json:"details"`
}
