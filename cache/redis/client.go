// Package redis is the production Cache and PubSub backend.
package redis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/brewbuds/server/cache/zset"
	goredis "github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("cache: key not found")

type Config struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces every key and channel so several deployments
	// can share one Redis ("brewbuds:staging:").
	KeyPrefix string
}

func dial(cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// prefixer applies the configured namespace.
type prefixer string

func (p prefixer) key(k string) string { return string(p) + k }

func (p prefixer) keys(ks []string) []string {
	if p == "" {
		return ks
	}
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = p.key(k)
	}
	return out
}

func members(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// RedisCache implements cache.Cache.
type RedisCache struct {
	client *goredis.Client
	p      prefixer
}

func NewCache(cfg Config) (*RedisCache, error) {
	client, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: client, p: prefixer(cfg.KeyPrefix)}, nil
}

func (r *RedisCache) Close() error { return r.client.Close() }

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.p.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.p.key(key), value, ttl).Err()
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, r.p.keys(keys)...).Err()
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.p.key(key)).Result()
	return n > 0, err
}

// SetNX backs view de-duplication: true only for the first writer.
func (r *RedisCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.p.key(key), value, ttl).Result()
}

func (r *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, r.p.key(key), ttl).Err()
}

func (r *RedisCache) SAdd(ctx context.Context, key string, values ...string) error {
	return r.client.SAdd(ctx, r.p.key(key), members(values)...).Err()
}

func (r *RedisCache) SRem(ctx context.Context, key string, values ...string) error {
	return r.client.SRem(ctx, r.p.key(key), members(values)...).Err()
}

func (r *RedisCache) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, r.p.key(key)).Result()
}

func (r *RedisCache) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return r.client.SIsMember(ctx, r.p.key(key), member).Result()
}

func (r *RedisCache) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return r.client.ZAdd(ctx, r.p.key(key), goredis.Z{Score: score, Member: member}).Err()
}

func (r *RedisCache) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.ZRevRange(ctx, r.p.key(key), start, stop).Result()
}

func (r *RedisCache) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]zset.Member, error) {
	zs, err := r.client.ZRevRangeWithScores(ctx, r.p.key(key), start, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]zset.Member, 0, len(zs))
	for _, z := range zs {
		m, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, zset.Member{Member: m, Score: z.Score})
	}
	return out, nil
}

// ZReplace runs DEL, ZADD and EXPIRE in one MULTI/EXEC.
func (r *RedisCache) ZReplace(ctx context.Context, key string, members []zset.Member, ttl time.Duration) error {
	k := r.p.key(key)
	zs := make([]goredis.Z, len(members))
	for i, m := range members {
		zs[i] = goredis.Z{Score: m.Score, Member: m.Member}
	}
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, k)
		if len(zs) == 0 {
			return nil
		}
		pipe.ZAdd(ctx, k, zs...)
		if ttl > 0 {
			pipe.Expire(ctx, k, ttl)
		}
		return nil
	})
	return err
}

func (r *RedisCache) ZScore(ctx context.Context, key, member string) (float64, error) {
	v, err := r.client.ZScore(ctx, r.p.key(key), member).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, ErrNotFound
	}
	return v, err
}

func (r *RedisCache) LPush(ctx context.Context, key string, values ...string) error {
	return r.client.LPush(ctx, r.p.key(key), members(values)...).Err()
}

func (r *RedisCache) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.LRange(ctx, r.p.key(key), start, stop).Result()
}

func (r *RedisCache) LTrim(ctx context.Context, key string, start, stop int64) error {
	return r.client.LTrim(ctx, r.p.key(key), start, stop).Err()
}

// LRem removes every occurrence of value.
func (r *RedisCache) LRem(ctx context.Context, key, value string) error {
	return r.client.LRem(ctx, r.p.key(key), 0, value).Err()
}

// RedisMessage carries the channel name without the key prefix.
type RedisMessage struct {
	Channel string
	Payload string
}

type RedisPubSub struct {
	client *goredis.Client
	p      prefixer
}

func NewPubSub(cfg Config) (*RedisPubSub, error) {
	client, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return &RedisPubSub{client: client, p: prefixer(cfg.KeyPrefix)}, nil
}

func (r *RedisPubSub) Close() error { return r.client.Close() }

func (r *RedisPubSub) Publish(ctx context.Context, channel, message string) error {
	return r.client.Publish(ctx, r.p.key(channel), message).Err()
}

// Subscribe waits for the subscription to be confirmed so a publish issued
// right after it returns is not lost. The stream ends when ctx is done or
// cancel is called.
func (r *RedisPubSub) Subscribe(ctx context.Context, channels ...string) (<-chan *RedisMessage, func(), error) {
	ps := r.client.Subscribe(ctx, r.p.keys(channels)...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}
	out := make(chan *RedisMessage, 256)
	done := make(chan struct{})
	go func() {
		defer close(out)
		in := ps.Channel()
		for {
			select {
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- &RedisMessage{Channel: strings.TrimPrefix(msg.Channel, string(r.p)), Payload: msg.Payload}:
				case <-done:
					return
				}
			case <-ctx.Done():
				_ = ps.Close()
				return
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}
	return out, cancel, nil
}
