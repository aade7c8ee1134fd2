package local

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/brewbuds/server/cache/zset"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

// ErrWrongType mirrors Redis WRONGTYPE when a key holds another kind of value.
var ErrWrongType = errors.New("cache: wrong type for key")

// Config holds LocalCache settings.
type Config struct {
	GCInterval time.Duration
}

type kind int

const (
	kindString kind = iota
	kindSet
	kindZSet
	kindList
)

type zEntry struct {
	member string
	score  float64
}

// item is one key of any type. A zero expireAt never expires.
type item struct {
	kind     kind
	str      string
	set      map[string]struct{}
	zset     []zEntry // sorted by score descending
	list     []string
	expireAt time.Time
}

func (it *item) expired(now time.Time) bool {
	return !it.expireAt.IsZero() && now.After(it.expireAt)
}

// LocalCache is an in-process stand-in for Redis, used in development and tests.
type LocalCache struct {
	mu     sync.Mutex
	items  map[string]*item
	stopGC chan struct{}
	once   sync.Once
}

// NewCache creates a LocalCache and starts the background GC goroutine.
func NewCache(cfg Config) (*LocalCache, error) {
	interval := cfg.GCInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	c := &LocalCache{
		items:  make(map[string]*item),
		stopGC: make(chan struct{}),
	}
	go c.runGC(interval)
	return c, nil
}

// Close stops the background GC goroutine.
func (c *LocalCache) Close() {
	c.once.Do(func() { close(c.stopGC) })
}

func (c *LocalCache) runGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, it := range c.items {
				if it.expired(now) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		case <-c.stopGC:
			return
		}
	}
}

// lookup returns the live item for key, evicting it if expired. Caller holds mu.
func (c *LocalCache) lookup(key string) *item {
	it, ok := c.items[key]
	if !ok {
		return nil
	}
	if it.expired(time.Now()) {
		delete(c.items, key)
		return nil
	}
	return it
}

// typed returns the item for key, creating it with k if absent. Caller holds mu.
func (c *LocalCache) typed(key string, k kind, create bool) (*item, error) {
	it := c.lookup(key)
	if it == nil {
		if !create {
			return nil, nil
		}
		it = &item{kind: k}
		switch k {
		case kindSet:
			it.set = make(map[string]struct{})
		}
		c.items[key] = it
		return it, nil
	}
	if it.kind != k {
		return nil, ErrWrongType
	}
	return it, nil
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// ---- KV ----

func (c *LocalCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, err := c.typed(key, kindString, false)
	if err != nil {
		return "", err
	}
	if it == nil {
		return "", ErrNotFound
	}
	return it.str, nil
}

func (c *LocalCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &item{kind: kindString, str: value, expireAt: expiry(ttl)}
	return nil
}

func (c *LocalCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *LocalCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(key) != nil, nil
}

func (c *LocalCache) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookup(key) != nil {
		return false, nil
	}
	c.items[key] = &item{kind: kindString, str: value, expireAt: expiry(ttl)}
	return true, nil
}

// Expire sets a TTL on a key of any type. Missing keys are ignored, as in Redis.
func (c *LocalCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it := c.lookup(key); it != nil {
		it.expireAt = expiry(ttl)
	}
	return nil
}

// ---- Set ----

func (c *LocalCache) SAdd(_ context.Context, key string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, err := c.typed(key, kindSet, true)
	if err != nil {
		return err
	}
	for _, m := range members {
		it.set[m] = struct{}{}
	}
	return nil
}

func (c *LocalCache) SRem(_ context.Context, key string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, err := c.typed(key, kindSet, false)
	if err != nil || it == nil {
		return err
	}
	for _, m := range members {
		delete(it.set, m)
	}
	if len(it.set) == 0 {
		delete(c.items, key)
	}
	return nil
}

func (c *LocalCache) SMembers(_ context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, err := c.typed(key, kindSet, false)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return []string{}, nil
	}
	result := make([]string, 0, len(it.set))
	for m := range it.set {
		result = append(result, m)
	}
	return result, nil
}

func (c *LocalCache) SIsMember(_ context.Context, key, member string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, err := c.typed(key, kindSet, false)
	if err != nil || it == nil {
		return false, err
	}
	_, ok := it.set[member]
	return ok, nil
}

// ---- ZSet ----

func (c *LocalCache) ZAdd(_ context.Context, key string, score float64, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, err := c.typed(key, kindZSet, true)
	if err != nil {
		return err
	}
	found := false
	for i := range it.zset {
		if it.zset[i].member == member {
			it.zset[i].score = score
			found = true
			break
		}
	}
	if !found {
		it.zset = append(it.zset, zEntry{member: member, score: score})
	}
	// Ties are ordered by member descending, as ZREVRANGE does.
	sortZ(it.zset)
	return nil
}

func (c *LocalCache) ZRevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, err := c.typed(key, kindZSet, false)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return []string{}, nil
	}
	lo, hi, ok := bounds(int64(len(it.zset)), start, stop)
	if !ok {
		return []string{}, nil
	}
	result := make([]string, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		result = append(result, it.zset[i].member)
	}
	return result, nil
}

func (c *LocalCache) ZRevRangeWithScores(_ context.Context, key string, start, stop int64) ([]zset.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, err := c.typed(key, kindZSet, false)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return []zset.Member{}, nil
	}
	lo, hi, ok := bounds(int64(len(it.zset)), start, stop)
	if !ok {
		return []zset.Member{}, nil
	}
	result := make([]zset.Member, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		result = append(result, zset.Member{Member: it.zset[i].member, Score: it.zset[i].score})
	}
	return result, nil
}

// ZReplace holds the lock for the whole swap. An empty members list
// deletes the key.
func (c *LocalCache) ZReplace(_ context.Context, key string, members []zset.Member, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it := c.lookup(key); it != nil && it.kind != kindZSet {
		return ErrWrongType
	}
	if len(members) == 0 {
		delete(c.items, key)
		return nil
	}
	byMember := make(map[string]float64, len(members))
	for _, m := range members {
		byMember[m.Member] = m.Score
	}
	entries := make([]zEntry, 0, len(byMember))
	for m, score := range byMember {
		entries = append(entries, zEntry{member: m, score: score})
	}
	sortZ(entries)
	it := &item{kind: kindZSet, zset: entries}
	if ttl > 0 {
		it.expireAt = time.Now().Add(ttl)
	}
	c.items[key] = it
	return nil
}

func (c *LocalCache) ZScore(_ context.Context, key, member string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, err := c.typed(key, kindZSet, false)
	if err != nil {
		return 0, err
	}
	if it != nil {
		for _, e := range it.zset {
			if e.member == member {
				return e.score, nil
			}
		}
	}
	return 0, ErrNotFound
}

// ---- List ----

func (c *LocalCache) LPush(_ context.Context, key string, values ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, err := c.typed(key, kindList, true)
	if err != nil {
		return err
	}
	// Last value ends up at index 0.
	for _, v := range values {
		it.list = append([]string{v}, it.list...)
	}
	return nil
}

func (c *LocalCache) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, err := c.typed(key, kindList, false)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return []string{}, nil
	}
	lo, hi, ok := bounds(int64(len(it.list)), start, stop)
	if !ok {
		return []string{}, nil
	}
	result := make([]string, hi-lo+1)
	copy(result, it.list[lo:hi+1])
	return result, nil
}

func (c *LocalCache) LTrim(_ context.Context, key string, start, stop int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, err := c.typed(key, kindList, false)
	if err != nil || it == nil {
		return err
	}
	lo, hi, ok := bounds(int64(len(it.list)), start, stop)
	if !ok {
		delete(c.items, key)
		return nil
	}
	it.list = append([]string(nil), it.list[lo:hi+1]...)
	return nil
}

// LRem removes every occurrence of value (Redis LREM with count 0).
func (c *LocalCache) LRem(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, err := c.typed(key, kindList, false)
	if err != nil || it == nil {
		return err
	}
	kept := it.list[:0]
	for _, v := range it.list {
		if v != value {
			kept = append(kept, v)
		}
	}
	it.list = kept
	if len(it.list) == 0 {
		delete(c.items, key)
	}
	return nil
}

// sortZ orders by score descending, ties by member descending like ZREVRANGE.
func sortZ(z []zEntry) {
	sort.SliceStable(z, func(a, b int) bool {
		if z[a].score != z[b].score {
			return z[a].score > z[b].score
		}
		return z[a].member > z[b].member
	})
}

// bounds resolves Redis-style inclusive indexes (negative counts from the end).
func bounds(n, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}
