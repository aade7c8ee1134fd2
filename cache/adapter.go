package cache

import (
	"context"
	"errors"
	"time"

	"github.com/brewbuds/server/cache/local"
	cacheredis "github.com/brewbuds/server/cache/redis"
	"github.com/brewbuds/server/cache/zset"
	"github.com/brewbuds/server/config"
	"github.com/goccy/go-json"
)

// Cache is the subset of Redis the services use: sessions and view markers
// (KV), viewed ids (Set), bean ranking (ZSet) and recent searches (List).
type Cache interface {
	// KV
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Set
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// ZSet
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error)
	ZScore(ctx context.Context, key, member string) (float64, error)
	// ZReplace swaps the whole set for members in one step and sets ttl.
	// Readers see either the old or the new set, never a partial one.
	ZReplace(ctx context.Context, key string, members []ZMember, ttl time.Duration) error

	// List
	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRem(ctx context.Context, key, value string) error
}

type ZMember = zset.Member

// IsNotFound reports whether err is a missing-key error from either backend.
func IsNotFound(err error) bool {
	return errors.Is(err, local.ErrNotFound) || errors.Is(err, cacheredis.ErrNotFound)
}

// Message is one published notification payload.
type Message struct {
	Channel string
	Payload string
}

// PubSub carries live notifications between instances. Subscriptions end
// when the subscribe context is done or the returned cancel is called.
type PubSub interface {
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error)
}

// CacheConfig selects the backend. An empty RedisAddr keeps everything in
// process, which only suits a single instance.
type CacheConfig struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	KeyPrefix       string
	LocalGCInterval time.Duration
	LocalPubSubBuf  int
}

// FromConfig maps the cache section of the application config.
func FromConfig(c config.CacheConfig) CacheConfig {
	return CacheConfig{
		RedisAddr:       c.RedisAddr,
		RedisPassword:   c.RedisPassword,
		RedisDB:         c.RedisDB,
		KeyPrefix:       c.KeyPrefix,
		LocalGCInterval: c.LocalGCInterval,
		LocalPubSubBuf:  c.LocalPubSubBuf,
	}
}

func (cfg CacheConfig) redis() cacheredis.Config {
	return cacheredis.Config{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.KeyPrefix,
	}
}

func NewCache(cfg CacheConfig) (Cache, error) {
	if cfg.RedisAddr != "" {
		return cacheredis.NewCache(cfg.redis())
	}
	return local.NewCache(local.Config{GCInterval: cfg.LocalGCInterval})
}

func NewPubSub(cfg CacheConfig) (PubSub, error) {
	if cfg.RedisAddr != "" {
		rps, err := cacheredis.NewPubSub(cfg.redis())
		if err != nil {
			return nil, err
		}
		return &redisPubSubAdapter{ps: rps}, nil
	}
	return &localPubSubAdapter{ps: local.NewPubSub(cfg.LocalPubSubBuf)}, nil
}

// GetJSON decodes the JSON value at key. found is false on a miss or when
// the stored value no longer decodes into T.
func GetJSON[T any](ctx context.Context, c Cache, key string) (v T, found bool, err error) {
	raw, err := c.Get(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return v, false, nil
		}
		return v, false, err
	}
	if json.Unmarshal([]byte(raw), &v) != nil {
		var zero T
		return zero, false, nil
	}
	return v, true, nil
}

func SetJSON(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, string(b), ttl)
}

func forward[T any](in <-chan T, conv func(T) *Message) <-chan *Message {
	out := make(chan *Message, 256)
	go func() {
		defer close(out)
		for msg := range in {
			out <- conv(msg)
		}
	}()
	return out
}

type localPubSubAdapter struct {
	ps *local.LocalPubSub
}

func (a *localPubSubAdapter) Publish(ctx context.Context, channel, message string) error {
	return a.ps.Publish(ctx, channel, message)
}

func (a *localPubSubAdapter) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	localCh, cancel, err := a.ps.Subscribe(ctx, channels...)
	if err != nil {
		return nil, nil, err
	}
	return forward(localCh, func(m *local.LocalMessage) *Message {
		return &Message{Channel: m.Channel, Payload: m.Payload}
	}), cancel, nil
}

type redisPubSubAdapter struct {
	ps *cacheredis.RedisPubSub
}

func (a *redisPubSubAdapter) Publish(ctx context.Context, channel, message string) error {
	return a.ps.Publish(ctx, channel, message)
}

func (a *redisPubSubAdapter) Subscribe(ctx context.Context, channels ...string) (<-chan *Message, func(), error) {
	redisCh, cancel, err := a.ps.Subscribe(ctx, channels...)
	if err != nil {
		return nil, nil, err
	}
	return forward(redisCh, func(m *cacheredis.RedisMessage) *Message {
		return &Message{Channel: m.Channel, Payload: m.Payload}
	}), cancel, nil
}
