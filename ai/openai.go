package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/sirupsen/logrus"

	"github.com/urizennnn/reposcraper/scraper"
)

const digestTool = "emit_scrape_digest"

var (
	ErrNoToolCall   = errors.New("ai: model did not return tool call")
	ErrEmptyPayload = errors.New("ai: empty digest payload")
)

// Digester turns a scrape run into a short structured digest.
type Digester struct {
	client openai.Client
	model  openai.ChatModel
	log    logrus.FieldLogger
}

func NewDigester(apiKey string, log logrus.FieldLogger, opts ...option.RequestOption) *Digester {
	if log == nil {
		log = logrus.StandardLogger()
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Digester{
		client: openai.NewClient(opts...),
		model:  openai.ChatModelGPT4oMini,
		log:    log,
	}
}

// NewDigestJob keeps the first top repositories of a ranked run. A top of
// zero or less keeps them all.
func NewDigestJob(repos []scraper.RepositorySummary, since, until time.Time, top int) DigestJob {
	if top <= 0 || top > len(repos) {
		top = len(repos)
	}
	job := DigestJob{
		Since:        since.UTC(),
		Until:        until.UTC(),
		Repositories: make([]RepoActivity, 0, top),
	}
	for _, r := range repos[:top] {
		activity := RepoActivity{
			Repo:     r.Owner + "/" + r.Name,
			Position: r.Position,
			Stars:    r.Stars,
			Language: r.Language,
		}
		for _, a := range r.AuthorCommits {
			activity.Commits += a.CommitsNum
			activity.Contributors = append(activity.Contributors, Contributor{Name: a.Author, Commits: a.CommitsNum})
		}
		job.Repositories = append(job.Repositories, activity)
	}
	return job
}

func (d *Digester) Digest(ctx context.Context, job DigestJob) (DigestResult, error) {
	sys := `You are the daily digest writer for a GitHub activity scraper. Output ONE function call "emit_scrape_digest" with JSON that matches the provided schema.
- headline: one sentence on yesterday's activity across the most starred repositories.
- highlights: at most five bullets naming repositories with notable commit activity.
- topAuthors: up to five author names with the most commits overall.
Stay truthful to the payload; do not invent repositories or authors.`

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return DigestResult{}, fmt.Errorf("encode digest job: %w", err)
	}

	tool := openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        digestTool,
		Description: openai.String("Return the digest of one scrape run."),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]any{
				"headline": map[string]any{"type": "string"},
				"highlights": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"topAuthors": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required": []string{"headline", "highlights", "topAuthors"},
		},
	})

	choice := openai.ToolChoiceOptionFunctionToolChoice(openai.ChatCompletionNamedToolChoiceFunctionParam{
		Name: digestTool,
	})

	params := openai.ChatCompletionNewParams{
		Model: d.model,
		Seed:  openai.Int(0),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(sys),
			openai.UserMessage(fmt.Sprintf(`{"instruction":"Digest this scrape run","payload":%s}`, string(jobJSON))),
		},
		Tools:      []openai.ChatCompletionToolUnionParam{tool},
		ToolChoice: choice,
	}

	resp, err := d.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return DigestResult{}, fmt.Errorf("ai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return DigestResult{}, ErrNoToolCall
	}

	var out Digest
	for _, tc := range resp.Choices[0].Message.ToolCalls {
		if tc.Function.Name == digestTool {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &out); err != nil {
				return DigestResult{}, fmt.Errorf("ai: bad tool args: %w", err)
			}
			break
		}
	}
	if out.Headline == "" {
		return DigestResult{}, ErrEmptyPayload
	}

	details := UsageDetails{
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	d.log.WithFields(logrus.Fields{
		"repositories": len(job.Repositories),
		"highlights":   len(out.Highlights),
		"tokens":       details.TotalTokens,
	}).Info("ai: digest ready")

	return DigestResult{Digest: out, Details: details}, nil
}
