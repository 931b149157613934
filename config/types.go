package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ModeOnce   = "once"
	ModeWorker = "worker"
)

type Config struct {
	// App
	Env      string `split_words:"true" default:"prod" validate:"oneof=dev staging prod"`
	LogLevel string `split_words:"true" default:"info" validate:"oneof=debug info warn error"`
	Mode     string `default:"once" validate:"oneof=once worker"`

	// GitHub: a token, or GitHub App installation credentials
	GithubToken          string `split_words:"true" validate:"required_without=GithubClientID"`
	GithubClientID       string `split_words:"true" validate:"required_without=GithubToken"`
	GithubPrivateKey     string `split_words:"true" validate:"required_with=GithubClientID"`
	GithubInstallationID int64  `split_words:"true" validate:"required_with=GithubClientID"`
	GithubBaseURL        string `split_words:"true" validate:"omitempty,url"`

	// Scrape tuning
	TopLimit            int           `split_words:"true" default:"100" validate:"gte=1,lte=100"`
	RequestsPerSecond   int           `split_words:"true" default:"100" validate:"gt=0"`
	ConcurrencyLimit    int           `split_words:"true" default:"100" validate:"gte=0"`
	MaxTokensMultiplier int           `split_words:"true" default:"2" validate:"gte=0"`
	MinSleepTime        time.Duration `split_words:"true" default:"100ms" validate:"gte=0"`
	HourlyQuota         int           `split_words:"true" default:"0" validate:"gte=0"`
	RequestTimeout      time.Duration `split_words:"true" default:"30s" validate:"gte=0"`
	CommitPages         int           `split_words:"true" default:"1" validate:"gte=1,lte=10"`
	CacheSize           int           `split_words:"true" default:"1000" validate:"gt=0"`
	DigestTop           int           `split_words:"true" default:"10" validate:"gte=0"`

	// Redis
	RedisURL          string        `split_words:"true" validate:"required_if=Mode worker"`
	RedisStreamMaxLen int64         `split_words:"true" default:"1000" validate:"gt=0"`
	RedisBlockTimeout time.Duration `split_words:"true" default:"5s" validate:"gt=0"`
	RedisBatchSize    int64         `split_words:"true" default:"10" validate:"gt=0"`
	BackoffMin        time.Duration `split_words:"true" default:"100ms" validate:"gt=0"`
	BackoffMax        time.Duration `split_words:"true" default:"3s" validate:"gtefield=BackoffMin"`
	RedisClaimIdle    time.Duration `split_words:"true" default:"1m" validate:"gt=0"`

	// Postgres
	DatabaseURL string `split_words:"true"`

	// OPENAI
	OpenaiApiKey string `split_words:"true"`
}

type Loader struct {
	Prefix   string
	Validate *validator.Validate
}
