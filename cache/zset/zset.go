// Package zset holds the sorted-set member type shared by the cache backends.
package zset

// Member is one scored member of a sorted set.
type Member struct {
	Member string
	Score  float64
}
