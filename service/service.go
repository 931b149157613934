package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/urizennnn/reposcraper/ai"
	ghapi "github.com/urizennnn/reposcraper/github"
	"github.com/urizennnn/reposcraper/redis"
	"github.com/urizennnn/reposcraper/scraper"
	"github.com/urizennnn/reposcraper/storage"
)

type Scraper interface {
	ScrapeTop(ctx context.Context, limit int) ([]scraper.RepositorySummary, error)
}

type Publisher interface {
	Publish(ctx context.Context, runID string, payload any) (string, error)
}

type Digester interface {
	Digest(ctx context.Context, job ai.DigestJob) (ai.DigestResult, error)
}

// Request parametrizes one run. A zero Limit uses the scraper's default.
type Request struct {
	Limit  int
	Digest bool
}

// Result is what a run hands to its collaborators.
type Result struct {
	RunID        string                      `json:"run_id"`
	ScrapedAt    time.Time                   `json:"scraped_at"`
	Since        time.Time                   `json:"since"`
	Until        time.Time                   `json:"until"`
	Repositories []scraper.RepositorySummary `json:"repositories"`
	Digest       *ai.DigestResult            `json:"digest,omitempty"`
}

// Service performs scrape runs and fans the result out to storage, the
// result stream and the digester. Every collaborator except the scraper is optional.
type Service struct {
	scraper   Scraper
	writer    storage.Writer
	publisher Publisher
	digester  Digester
	digestTop int
	now       func() time.Time
	log       logrus.FieldLogger
}

type Option func(*Service)

func WithWriter(w storage.Writer) Option {
	return func(s *Service) { s.writer = w }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithDigester enables digests over the first top repositories of a run.
func WithDigester(d Digester, top int) Option {
	return func(s *Service) {
		s.digester = d
		s.digestTop = top
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func New(sc Scraper, opts ...Option) *Service {
	s := &Service{
		scraper: sc,
		now:     time.Now,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scrapes once. A failed scrape persists and publishes nothing. A failed
// digest is logged and the run still succeeds without it.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	res := Result{RunID: uuid.NewString(), ScrapedAt: s.now()}
	window := ghapi.DayWindow(res.ScrapedAt)
	res.Since, res.Until = window.Since, window.Until

	log := s.log.WithField("run_id", res.RunID)
	log.WithField("limit", req.Limit).Info("service: scrape started")

	start := time.Now()
	repos, err := s.scraper.ScrapeTop(ghapi.ContextWithWindow(ctx, window), req.Limit)
	if err != nil {
		log.WithError(err).Error("service: failed to fetch repositories")
		return Result{}, fmt.Errorf("scrape %s: %w", res.RunID, err)
	}
	res.Repositories = repos
	log.WithFields(logrus.Fields{
		"repositories": len(repos),
		"elapsed":      time.Since(start).Round(time.Millisecond).String(),
	}).Info("service: fetched repositories")

	if s.writer != nil {
		if err := s.writer.Save(ctx, repos, res.ScrapedAt); err != nil {
			return Result{}, fmt.Errorf("save %s: %w", res.RunID, err)
		}
		log.Info("service: repositories saved")
	}

	if req.Digest && s.digester != nil {
		job := ai.NewDigestJob(repos, res.Since, res.Until, s.digestTop)
		digest, err := s.digester.Digest(ctx, job)
		if err != nil {
			log.WithError(err).Warn("service: digest failed")
		} else {
			res.Digest = &digest
		}
	}

	if s.publisher != nil {
		id, err := s.publisher.Publish(ctx, res.RunID, res)
		if err != nil {
			return Result{}, fmt.Errorf("publish %s: %w", res.RunID, err)
		}
		log.WithField("entry_id", id).Info("service: result published")
	}

	return res, nil
}

// JobHandler adapts Run to the redis stream consumer.
func (s *Service) JobHandler() redis.Handler {
	return func(ctx context.Context, job redis.ScrapeJob) error {
		s.log.WithFields(logrus.Fields{
			"job_id":       job.ID,
			"requested_by": job.RequestedBy,
		}).Info("service: processing job")
		_, err := s.Run(ctx, Request{Limit: job.Limit, Digest: job.Digest})
		return err
	}
}
