// Package paging holds the page request and page envelope shared by list
// endpoints.
package paging

import "math"

const (
	DefaultSize = 12
	MaxSize     = 100
	// MaxPage keeps (Page-1)*Size inside an int on every platform.
	MaxPage = math.MaxInt32 / MaxSize
)

// Request is a 1-based page request.
type Request struct {
	Page int `form:"page"`
	Size int `form:"size"`
}

// Normalize clamps page to 1..MaxPage and size to 1..MaxSize.
func (r Request) Normalize() Request {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Page > MaxPage {
		r.Page = MaxPage
	}
	if r.Size < 1 {
		r.Size = DefaultSize
	}
	if r.Size > MaxSize {
		r.Size = MaxSize
	}
	return r
}

func (r Request) Offset() int { return (r.Page - 1) * r.Size }

// Result is one page of items.
type Result[T any] struct {
	Results []T   `json:"results"`
	Count   int64 `json:"count"`
	HasNext bool  `json:"has_next"`
}

// New builds a Result, turning a nil slice into an empty one.
func New[T any](items []T, total int64, req Request) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{
		Results: items,
		Count:   total,
		HasNext: int64(req.Offset()+len(items)) < total,
	}
}

// Slice pages over an in-memory slice.
func Slice[T any](all []T, req Request) Result[T] {
	req = req.Normalize()
	start := req.Offset()
	if start < 0 || start > len(all) {
		start = len(all)
	}
	end := start + req.Size
	if end > len(all) {
		end = len(all)
	}
	return New(append([]T(nil), all[start:end]...), int64(len(all)), req)
}
