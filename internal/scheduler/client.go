// Package scheduler runs the periodic CRM mirror synchronization through an
// asynq task queue. The stats read path never syncs; this is the only writer
// of the mirror tables.
package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"

	"leadstats_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
	queue  string
}

// MirrorSyncTrigger enqueues an on-demand mirror sync.
type MirrorSyncTrigger interface {
	TriggerMirrorSync(ctx context.Context, requested string) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) TriggerMirrorSync(ctx context.Context, requested string) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewMirrorSyncTask(MirrorSyncPayload{
		RunID:     uuid.NewString(),
		Requested: requested,
	})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	clientOpt := asynq.RedisClientOpt{
		Addr:     opt.Addr,
		Username: opt.Username,
		Password: opt.Password,
		DB:       opt.DB,
	}
	if opt.TLSConfig != nil {
		clientOpt.TLSConfig = opt.TLSConfig
		if tlsInsecure {
			clientOpt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		}
	}

	return clientOpt, nil
}
