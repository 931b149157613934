package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrBadJob = errors.New("redis: malformed scrape job")

// Handler runs one job. A nil error acknowledges the message.
type Handler func(ctx context.Context, job ScrapeJob) error

func ConnectToRedisURL(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if err := rdb.
		XGroupCreateMkStream(ctx, JobsStream, ConsumerGroup, "$").
		Err(); err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		_ = rdb.Close()
		return nil, fmt.Errorf("xgroup create %s/%s: %w", JobsStream, ConsumerGroup, err)
	}

	return rdb, nil
}

// WatchStreams consumes stream as consumer in group until ctx is done. Read
// errors back off exponentially. Messages whose handler fails stay pending
// and are claimed again once idle for opts.ClaimIdle.
func WatchStreams(ctx context.Context, rdb *redis.Client, stream, group, consumer string, opts StreamOptions, handle Handler, log logrus.FieldLogger) error {
	opts = opts.withDefaults()
	backoff := opts.BackoffMin
	cursor := "0-0"
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		claimed, next, err := rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   stream,
			Group:    group,
			Consumer: consumer,
			MinIdle:  opts.ClaimIdle,
			Start:    cursor,
			Count:    opts.Count,
		}).Result()
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("redis: error claiming pending messages")
		} else if err == nil {
			cursor = next
			if len(claimed) > 0 {
				log.WithField("count", len(claimed)).Info("redis: reclaimed pending jobs")
			}
			handleMessages(ctx, rdb, stream, group, claimed, handle, log)
		}

		res, err := rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    opts.Count,
			Block:    opts.Block,
			NoAck:    false,
		}).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			log.WithError(err).Warn("redis: error reading from stream")
			select {
			case <-time.After(backoff):
				if backoff < opts.BackoffMax {
					backoff *= 2
				}
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			backoff = opts.BackoffMin
		}
		for _, incomingStream := range res {
			handleMessages(ctx, rdb, stream, group, incomingStream.Messages, handle, log)
		}
	}
}

func handleMessages(ctx context.Context, rdb *redis.Client, stream, group string, msgs []redis.XMessage, handle Handler, log logrus.FieldLogger) {
	for _, msg := range msgs {
		job, err := parseJob(msg)
		if err != nil {
			// Poison messages are acked so they are not redelivered forever.
			log.WithError(err).WithField("message_id", msg.ID).Error("redis: dropping job")
			ack(ctx, rdb, stream, group, msg.ID, log)
			continue
		}
		if err := handle(ctx, job); err != nil {
			log.WithError(err).WithField("message_id", msg.ID).Error("redis: error handling job")
			continue
		}
		ack(ctx, rdb, stream, group, msg.ID, log)
	}
}

func ack(ctx context.Context, rdb *redis.Client, stream, group, id string, log logrus.FieldLogger) {
	if err := rdb.XAck(ctx, stream, group, id).Err(); err != nil {
		log.WithError(err).WithField("message_id", id).Error("redis: error acknowledging message")
	}
}

// parseJob accepts either a JSON "payload" field or flat "limit"/"digest"/"requested_by" fields.
func parseJob(msg redis.XMessage) (ScrapeJob, error) {
	job := ScrapeJob{ID: msg.ID}

	if raw, ok := msg.Values["payload"]; ok {
		s, ok := raw.(string)
		if !ok {
			return job, fmt.Errorf("%w: payload is %T", ErrBadJob, raw)
		}
		if err := json.Unmarshal([]byte(s), &job); err != nil {
			return job, fmt.Errorf("%w: %v", ErrBadJob, err)
		}
		job.ID = msg.ID
	} else {
		if v, ok := msg.Values["limit"].(string); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return job, fmt.Errorf("%w: limit %q", ErrBadJob, v)
			}
			job.Limit = n
		}
		if v, ok := msg.Values["digest"].(string); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return job, fmt.Errorf("%w: digest %q", ErrBadJob, v)
			}
			job.Digest = b
		}
		if v, ok := msg.Values["requested_by"].(string); ok {
			job.RequestedBy = v
		}
	}

	if job.Limit < 0 || job.Limit > 100 {
		return job, fmt.Errorf("%w: limit %d out of range", ErrBadJob, job.Limit)
	}
	return job, nil
}

// Publisher appends scrape results to a capped stream.
type Publisher struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewPublisher(rdb *redis.Client, stream string, maxLen int64) *Publisher {
	return &Publisher{rdb: rdb, stream: stream, maxLen: maxLen}
}

// Publish adds payload as JSON under runID and returns the entry ID.
func (p *Publisher) Publish(ctx context.Context, runID string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	id, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"run_id":  runID,
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return id, nil
}
