package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/pythagon-backend/internal/platform/logger"
	"github.com/yungbote/pythagon-backend/internal/realtime"
)

const DefaultChannel = "pythagon.status"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Channel is the prefix; events go to <Channel>.<kind>.
	Channel string
}

// redisBus fans status events out over Redis pub/sub so other replicas and
// push gateways can follow problem and solution progress.
type redisBus struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
}

func NewRedisBus(ctx context.Context, log *logger.Logger, cfg RedisConfig) (Bus, error) {
	if log == nil {
		return nil, errors.New("logger required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis addr required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        strings.TrimSpace(cfg.Addr),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	b := newRedisBusWithClient(log, rdb, cfg.Channel)
	b.log.Info("Status bus connected", "addr", cfg.Addr, "prefix", b.prefix)
	return b, nil
}

func newRedisBusWithClient(log *logger.Logger, rdb goredis.UniversalClient, prefix string) *redisBus {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultChannel
	}
	return &redisBus{log: log.With("service", "bus.Redis"), rdb: rdb, prefix: prefix}
}

func (b *redisBus) channelFor(kind string) string {
	if kind == "" {
		return b.prefix
	}
	return b.prefix + "." + kind
}

func (b *redisBus) Publish(ctx context.Context, ev realtime.StatusEvent) error {
	if b == nil || b.rdb == nil {
		return errors.New("redis bus closed")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode status event: %w", err)
	}
	ch := b.channelFor(ev.Kind)
	if err := b.rdb.Publish(ctx, ch, raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ch, err)
	}
	return nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
