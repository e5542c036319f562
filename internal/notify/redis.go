package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ernie/altcheck/internal/config"
	"github.com/ernie/altcheck/internal/domain"
	"github.com/ernie/altcheck/internal/logger"
	goredis "github.com/redis/go-redis/v9"
)

// RedisPublisher publishes alerts as JSON on a Redis pub/sub channel
type RedisPublisher struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisPublisher connects to cfg.Addr and pings it once
func NewRedisPublisher(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*RedisPublisher, error) {
	if log == nil {
		log = logger.Nop()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return &RedisPublisher{
		log:     log.With("component", "redis"),
		rdb:     rdb,
		channel: cfg.Channel,
	}, nil
}

func (p *RedisPublisher) Notify(ctx context.Context, alert domain.Alert) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis publisher not initialized")
	}
	raw, err := json.Marshal(domain.NewAltAlertEvent(alert))
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

func (p *RedisPublisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
