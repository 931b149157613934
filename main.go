package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	gogithub "github.com/google/go-github/v74/github"
	"github.com/openai/openai-go/v2/option"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/urizennnn/reposcraper/ai"
	"github.com/urizennnn/reposcraper/cache"
	"github.com/urizennnn/reposcraper/config"
	"github.com/urizennnn/reposcraper/github"
	"github.com/urizennnn/reposcraper/ratelimit"
	"github.com/urizennnn/reposcraper/redis"
	"github.com/urizennnn/reposcraper/scraper"
	"github.com/urizennnn/reposcraper/service"
	"github.com/urizennnn/reposcraper/storage"
)

var consumerName = fmt.Sprintf("%s-%d", "reposcraper", os.Getpid())

func main() {
	cfg, err := config.NewLoader("APP").Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("reposcraper stopped")
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.Env == "prod" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	client, err := github.NewClient(ctx, github.Auth{
		Token:          cfg.GithubToken,
		ClientID:       cfg.GithubClientID,
		PrivateKey:     cfg.GithubPrivateKeyPEM(),
		InstallationID: cfg.GithubInstallationID,
	}, cfg.GithubBaseURL, cfg.RequestTimeout)
	if err != nil {
		return err
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		RequestsPerPeriod:   cfg.RequestsPerSecond,
		Period:              time.Second,
		ConcurrencyLimit:    cfg.ConcurrencyLimit,
		MaxTokensMultiplier: cfg.MaxTokensMultiplier,
		MinSleepTime:        cfg.MinSleepTime,
	})
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"requests_per_second": cfg.RequestsPerSecond,
		"concurrency_limit":   cfg.ConcurrencyLimit,
	}).Debug("rate limiter initialized")

	commitCache, err := cache.New[[]*gogithub.RepositoryCommit](cfg.CacheSize)
	if err != nil {
		return err
	}

	gate := github.NewGate(client, limiter,
		github.WithQuota(ratelimit.NewQuota(cfg.HourlyQuota)),
		github.WithRequestTimeout(cfg.RequestTimeout),
		github.WithGateLogger(log),
	)
	fetcher := github.NewFetcher(gate,
		github.WithCommitCache(commitCache),
		github.WithCommitPages(cfg.CommitPages),
		github.WithFetcherLogger(log),
	)
	sc := scraper.New(fetcher, scraper.WithLimit(cfg.TopLimit), scraper.WithLogger(log))

	opts := []service.Option{service.WithLogger(log)}

	if cfg.DatabaseURL != "" {
		pg, err := storage.Connect(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		opts = append(opts, service.WithWriter(pg))
	}

	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb, err = redis.ConnectToRedisURL(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection error: %w", err)
		}
		defer rdb.Close()
		opts = append(opts, service.WithPublisher(redis.NewPublisher(rdb, redis.ResultsStream, cfg.RedisStreamMaxLen)))
	}

	digest := cfg.OpenaiApiKey != ""
	if digest {
		opts = append(opts, service.WithDigester(ai.NewDigester(cfg.OpenaiApiKey, log, option.WithRequestTimeout(cfg.RequestTimeout)), cfg.DigestTop))
	}

	svc := service.New(sc, opts...)

	if cfg.Mode == config.ModeWorker {
		log.WithField("consumer", consumerName).Info("watching scrape jobs")
		return redis.WatchStreams(ctx, rdb, redis.JobsStream, redis.ConsumerGroup, consumerName, redis.StreamOptions{
			Count:      cfg.RedisBatchSize,
			Block:      cfg.RedisBlockTimeout,
			BackoffMin: cfg.BackoffMin,
			BackoffMax: cfg.BackoffMax,
			ClaimIdle:  cfg.RedisClaimIdle,
		}, svc.JobHandler(), log)
	}

	res, err := svc.Run(ctx, service.Request{Digest: digest})
	if err != nil {
		return err
	}
	for _, r := range res.Repositories[:min(5, len(res.Repositories))] {
		log.WithFields(logrus.Fields{
			"position": r.Position,
			"repo":     r.Owner + "/" + r.Name,
			"stars":    r.Stars,
			"authors":  len(r.AuthorCommits),
		}).Info("top repository")
	}
	return nil
}
