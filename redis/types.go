package redis

import "time"

const (
	JobsStream    = "scrape:jobs"
	ResultsStream = "scrape:results"
	ConsumerGroup = "scrapers"
)

// ScrapeJob is one request, read from the jobs stream, to run a scrape.
type ScrapeJob struct {
	ID          string `json:"-"`
	Limit       int    `json:"limit"`
	Digest      bool   `json:"digest"`
	RequestedBy string `json:"requested_by"`
}

// StreamOptions tunes the consumer loop.
type StreamOptions struct {
	Count      int64
	Block      time.Duration
	BackoffMin time.Duration
	BackoffMax time.Duration

	// ClaimIdle is how long a delivered but unacked job waits before it is
	// claimed again.
	ClaimIdle time.Duration
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.Count <= 0 {
		o.Count = 10
	}
	if o.Block <= 0 {
		o.Block = 5 * time.Second
	}
	if o.BackoffMin <= 0 {
		o.BackoffMin = 100 * time.Millisecond
	}
	if o.BackoffMax < o.BackoffMin {
		o.BackoffMax = 3 * time.Second
	}
	if o.ClaimIdle <= 0 {
		o.ClaimIdle = time.Minute
	}
	return o
}
