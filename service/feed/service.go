// Package feed composes the post and tasted-record feeds and de-duplicates
// them against what the viewer has already seen.
package feed

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/cache"
	"github.com/brewbuds/server/config"
	"github.com/brewbuds/server/metrics"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/paging"
	"github.com/brewbuds/server/service/relationship"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feed types.
const (
	TypeFollowing = "following"
	TypeCommon    = "common"
	TypeRefresh   = "refresh"
)

var tables = map[string]string{
	model.ObjectPost:   "posts",
	model.ObjectRecord: "tasted_records",
}

// Request selects one page of a feed.
type Request struct {
	Viewer  int64
	Type    string
	Subject string // posts only
	paging.Request
}

// Candidate is a feed item before ordering.
type Candidate struct {
	ID       int64
	AuthorID int64
}

type Service struct {
	db             *gorm.DB
	cache          cache.Cache
	rel            *relationship.Service
	viewTTL        time.Duration
	candidateLimit int
	logger         *zap.Logger
}

func New(db *gorm.DB, c cache.Cache, rel *relationship.Service, cfg config.FeedConfig, logger *zap.Logger) *Service {
	if cfg.ViewTTL <= 0 {
		cfg.ViewTTL = 24 * time.Hour
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 500
	}
	return &Service{
		db:             db,
		cache:          c,
		rel:            rel,
		viewTTL:        cfg.ViewTTL,
		candidateLimit: cfg.CandidateLimit,
		logger:         logger,
	}
}

// ViewerKey identifies a viewer for view de-duplication: the user id when
// signed in, the client address otherwise.
func ViewerKey(userID int64, ip string) string {
	if userID != 0 {
		return "u:" + strconv.FormatInt(userID, 10)
	}
	return "ip:" + ip
}

// MarkViewed counts a view once per viewer within the view TTL and records
// the object in the signed-in viewer's viewed set. It reports whether this
// was the first view.
func (svc *Service) MarkViewed(ctx context.Context, kind string, id, userID int64, ip string) (bool, error) {
	table, ok := tables[kind]
	if !ok {
		return false, apperr.Validation("unknown feed kind %q", kind)
	}
	first, err := svc.cache.SetNX(ctx, cache.ViewKey(kind, id, ViewerKey(userID, ip)), "1", svc.viewTTL)
	if err != nil || !first {
		return false, err
	}
	if err := svc.db.WithContext(ctx).Table(table).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
		return true, err
	}
	metrics.FeedViews.WithLabelValues(kind).Inc()

	if userID != 0 {
		key := cache.ViewedKey(kind, userID)
		if err := svc.cache.SAdd(ctx, key, strconv.FormatInt(id, 10)); err != nil {
			return true, err
		}
		if err := svc.cache.Expire(ctx, key, svc.viewTTL); err != nil {
			return true, err
		}
	}
	return true, nil
}

// ViewedIDs returns the ids the user has seen within the view TTL.
func (svc *Service) ViewedIDs(ctx context.Context, kind string, userID int64) (map[int64]bool, error) {
	out := map[int64]bool{}
	if userID == 0 {
		return out, nil
	}
	members, err := svc.cache.SMembers(ctx, cache.ViewedKey(kind, userID))
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			out[id] = true
		}
	}
	return out, nil
}

func (svc *Service) candidates(ctx context.Context, kind string, req Request, hidden []int64) ([]Candidate, error) {
	q := svc.db.WithContext(ctx).Table(tables[kind]).
		Select("id", "author_id").
		Where("author_id IN (?)", svc.db.Model(&model.User{}).Select("id").Where("is_active = ?", true))
	if len(hidden) > 0 {
		q = q.Where("author_id NOT IN ?", hidden)
	}
	switch kind {
	case model.ObjectRecord:
		q = q.Where("is_private = ?", false)
	case model.ObjectPost:
		if req.Subject != "" {
			q = q.Where("subject = ?", req.Subject)
		}
	}
	var rows []Candidate
	err := q.Order("created_at DESC, id DESC").Limit(svc.candidateLimit).Find(&rows).Error
	return rows, err
}

// IDs returns one page of feed ids in display order.
func (svc *Service) IDs(ctx context.Context, kind string, req Request) (paging.Result[int64], error) {
	if _, ok := tables[kind]; !ok {
		return paging.Result[int64]{}, apperr.Validation("unknown feed kind %q", kind)
	}
	if req.Type == "" {
		req.Type = TypeCommon
	}
	if req.Type != TypeFollowing && req.Type != TypeCommon && req.Type != TypeRefresh {
		return paging.Result[int64]{}, apperr.Validation("unknown feed type %q", req.Type)
	}
	if req.Subject != "" && (kind != model.ObjectPost || !model.ValidSubject(req.Subject)) {
		return paging.Result[int64]{}, apperr.Validation("unknown subject %q", req.Subject)
	}

	hidden, err := svc.rel.HiddenUserIDs(ctx, req.Viewer)
	if err != nil {
		return paging.Result[int64]{}, err
	}
	cands, err := svc.candidates(ctx, kind, req, hidden)
	if err != nil {
		return paging.Result[int64]{}, err
	}
	viewed, err := svc.ViewedIDs(ctx, kind, req.Viewer)
	if err != nil {
		return paging.Result[int64]{}, err
	}
	followed := map[int64]bool{}
	if req.Viewer != 0 {
		ids, err := svc.rel.FollowingIDs(ctx, req.Viewer)
		if err != nil {
			return paging.Result[int64]{}, err
		}
		for _, id := range ids {
			followed[id] = true
		}
	}

	ordered := Compose(req.Type, req.Viewer, cands, followed, viewed)
	return paging.Slice(ordered, req.Request), nil
}

// Compose orders candidates (newest first) for a feed type:
//
//	following: followed unviewed, then followed viewed
//	common:    followed unviewed, other unviewed, then everything viewed
//	refresh:   every unviewed item, shuffled
//
// The viewer's own items are never included.
func Compose(feedType string, viewer int64, cands []Candidate, followed, viewed map[int64]bool) []int64 {
	var followNew, otherNew, seen []int64
	for _, c := range cands {
		if viewer != 0 && c.AuthorID == viewer {
			continue
		}
		isFollowed := followed[c.AuthorID]
		if feedType == TypeFollowing && !isFollowed {
			continue
		}
		switch {
		case viewed[c.ID]:
			seen = append(seen, c.ID)
		case isFollowed:
			followNew = append(followNew, c.ID)
		default:
			otherNew = append(otherNew, c.ID)
		}
	}

	out := make([]int64, 0, len(cands))
	switch feedType {
	case TypeRefresh:
		out = append(append(out, followNew...), otherNew...)
		rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	case TypeFollowing:
		out = append(append(out, followNew...), seen...)
	default:
		out = append(append(append(out, followNew...), otherNew...), seen...)
	}
	return out
}
