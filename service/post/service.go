// Package post manages discussion posts, optionally linked to the author's
// tasted records.
package post

import (
	"context"
	"errors"
	"strings"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/comment"
	"github.com/brewbuds/server/service/like"
	"github.com/brewbuds/server/service/match"
	"github.com/brewbuds/server/service/note"
	"github.com/brewbuds/server/service/paging"
	"github.com/brewbuds/server/service/photo"
	"github.com/brewbuds/server/service/relationship"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxLinkedRecords caps how many tasted records a post may reference.
const MaxLinkedRecords = 10

type CreateInput struct {
	Subject         string  `json:"subject"`
	Title           string  `json:"title"`
	Content         string  `json:"content"`
	Tag             string  `json:"tag"`
	TastedRecordIDs []int64 `json:"tasted_records"`
	PhotoIDs        []int64 `json:"photos"`
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	Subject         *string  `json:"subject"`
	Title           *string  `json:"title"`
	Content         *string  `json:"content"`
	Tag             *string  `json:"tag"`
	TastedRecordIDs *[]int64 `json:"tasted_records"`
	PhotoIDs        *[]int64 `json:"photos"`
}

// View is a post enriched for one viewer.
type View struct {
	model.Post
	IsUserLiked  bool  `json:"is_user_liked"`
	IsUserNoted  bool  `json:"is_user_noted"`
	CommentCount int64 `json:"comment_count"`
}

type Service struct {
	db       *gorm.DB
	rel      *relationship.Service
	likes    *like.Service
	notes    *note.Service
	comments *comment.Service
	photos   *photo.Service
	logger   *zap.Logger
}

func New(db *gorm.DB, rel *relationship.Service, likes *like.Service, notes *note.Service,
	comments *comment.Service, photos *photo.Service, logger *zap.Logger) *Service {
	return &Service{db: db, rel: rel, likes: likes, notes: notes, comments: comments, photos: photos, logger: logger}
}

func required(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", apperr.Validation("%s is required", field)
	}
	return v, nil
}

// linkRecords replaces the post's linked records. Every record must belong
// to authorID.
func linkRecords(tx *gorm.DB, authorID, postID int64, ids []int64) error {
	ids = dedupe(ids)
	if len(ids) > MaxLinkedRecords {
		return apperr.Validation("at most %d tasted records", MaxLinkedRecords)
	}
	if len(ids) > 0 {
		var n int64
		if err := tx.Model(&model.TastedRecord{}).Where("id IN ? AND author_id = ?", ids, authorID).Count(&n).Error; err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return apperr.Validation("tasted records must be your own")
		}
	}
	if err := tx.Exec("DELETE FROM post_tasted_records WHERE post_id = ?", postID).Error; err != nil {
		return err
	}
	for _, id := range ids {
		if err := tx.Exec("INSERT INTO post_tasted_records (post_id, tasted_record_id) VALUES (?, ?)", postID, id).Error; err != nil {
			return err
		}
	}
	return nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Create writes a post with its linked records and photos.
func (svc *Service) Create(ctx context.Context, userID int64, in CreateInput) (*View, error) {
	if !model.ValidSubject(in.Subject) {
		return nil, apperr.Validation("unknown subject %q", in.Subject)
	}
	title, err := required("title", in.Title)
	if err != nil {
		return nil, err
	}
	content, err := required("content", in.Content)
	if err != nil {
		return nil, err
	}

	p := model.Post{AuthorID: userID, Subject: in.Subject, Title: title, Content: content, Tag: in.Tag}
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author", "TastedRecords", "Photos").Create(&p).Error; err != nil {
			return err
		}
		if err := linkRecords(tx, userID, p.ID, in.TastedRecordIDs); err != nil {
			return err
		}
		return photo.Attach(tx, userID, in.PhotoIDs, "post_id", p.ID)
	})
	if err != nil {
		return nil, err
	}
	return svc.Get(ctx, userID, p.ID)
}

func (svc *Service) load(ctx context.Context, q *gorm.DB) *gorm.DB {
	return q.WithContext(ctx).
		Preload("Author").
		Preload("Photos", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("TastedRecords", func(db *gorm.DB) *gorm.DB { return db.Order("tasted_records.created_at DESC") }).
		Preload("TastedRecords.Bean").
		Preload("TastedRecords.Photos")
}

// Get returns one post.
func (svc *Service) Get(ctx context.Context, viewer, id int64) (*View, error) {
	var p model.Post
	err := svc.load(ctx, svc.db).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("post not found")
	}
	if err != nil {
		return nil, err
	}
	blocked, err := svc.rel.IsBlockedEither(ctx, viewer, p.AuthorID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, apperr.Forbidden("blocked user's post")
	}
	views, err := svc.enrich(ctx, viewer, []model.Post{p})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (svc *Service) own(ctx context.Context, userID, id int64) (*model.Post, error) {
	var p model.Post
	err := svc.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("post not found")
	}
	if err != nil {
		return nil, err
	}
	if p.AuthorID != userID {
		return nil, apperr.Forbidden("not your post")
	}
	return &p, nil
}

// Update changes the author's own post.
func (svc *Service) Update(ctx context.Context, userID, id int64, in UpdateInput) (*View, error) {
	p, err := svc.own(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if in.Subject != nil {
		if !model.ValidSubject(*in.Subject) {
			return nil, apperr.Validation("unknown subject %q", *in.Subject)
		}
		fields["subject"] = *in.Subject
	}
	if in.Title != nil {
		v, err := required("title", *in.Title)
		if err != nil {
			return nil, err
		}
		fields["title"] = v
	}
	if in.Content != nil {
		v, err := required("content", *in.Content)
		if err != nil {
			return nil, err
		}
		fields["content"] = v
	}
	if in.Tag != nil {
		fields["tag"] = *in.Tag
	}

	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fields) > 0 {
			if err := tx.Model(&model.Post{}).Where("id = ?", p.ID).Updates(fields).Error; err != nil {
				return err
			}
		}
		if in.TastedRecordIDs != nil {
			if err := linkRecords(tx, userID, p.ID, *in.TastedRecordIDs); err != nil {
				return err
			}
		}
		if in.PhotoIDs != nil {
			return photo.Attach(tx, userID, *in.PhotoIDs, "post_id", p.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return svc.Get(ctx, userID, p.ID)
}

// Delete removes the author's own post with its comments, likes, notes,
// record links and photos.
func (svc *Service) Delete(ctx context.Context, userID, id int64) error {
	p, err := svc.own(ctx, userID, id)
	if err != nil {
		return err
	}
	var keys []string
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := comment.Purge(tx, model.ObjectPost, p.ID); err != nil {
			return err
		}
		if err := tx.Where("object_type = ? AND object_id = ?", model.ObjectPost, p.ID).Delete(&model.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("object_type = ? AND object_id = ?", model.ObjectPost, p.ID).Delete(&model.Note{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM post_tasted_records WHERE post_id = ?", p.ID).Error; err != nil {
			return err
		}
		var err error
		if keys, err = photo.Detach(tx, "post_id", p.ID); err != nil {
			return err
		}
		return tx.Delete(&model.Post{}, p.ID).Error
	})
	if err != nil {
		return err
	}
	svc.photos.RemoveObjects(ctx, keys)
	return nil
}

func (svc *Service) visible(ctx context.Context, viewer int64) (*gorm.DB, error) {
	hidden, err := svc.rel.HiddenUserIDs(ctx, viewer)
	if err != nil {
		return nil, err
	}
	q := svc.db.WithContext(ctx).Model(&model.Post{})
	if len(hidden) > 0 {
		q = q.Where("posts.author_id NOT IN ?", hidden)
	}
	return q, nil
}

func (svc *Service) page(ctx context.Context, viewer int64, q *gorm.DB, req paging.Request) (paging.Result[View], error) {
	req = req.Normalize()
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return paging.Result[View]{}, err
	}
	var posts []model.Post
	if err := svc.load(ctx, q).Order("posts.created_at DESC, posts.id DESC").
		Offset(req.Offset()).Limit(req.Size).Find(&posts).Error; err != nil {
		return paging.Result[View]{}, err
	}
	views, err := svc.enrich(ctx, viewer, posts)
	if err != nil {
		return paging.Result[View]{}, err
	}
	return paging.New(views, total, req), nil
}

// List returns posts newest first, optionally of one subject.
func (svc *Service) List(ctx context.Context, viewer int64, subject string, req paging.Request) (paging.Result[View], error) {
	if subject != "" && !model.ValidSubject(subject) {
		return paging.Result[View]{}, apperr.Validation("unknown subject %q", subject)
	}
	q, err := svc.visible(ctx, viewer)
	if err != nil {
		return paging.Result[View]{}, err
	}
	if subject != "" {
		q = q.Where("posts.subject = ?", subject)
	}
	return svc.page(ctx, viewer, q, req)
}

// ListByAuthor lists one author's posts.
func (svc *Service) ListByAuthor(ctx context.Context, viewer, authorID int64, req paging.Request) (paging.Result[View], error) {
	blocked, err := svc.rel.IsBlockedEither(ctx, viewer, authorID)
	if err != nil {
		return paging.Result[View]{}, err
	}
	if blocked {
		return paging.Result[View]{}, apperr.Forbidden("blocked user's posts")
	}
	q := svc.db.WithContext(ctx).Model(&model.Post{}).Where("author_id = ?", authorID)
	return svc.page(ctx, viewer, q, req)
}

// Search matches title or content.
func (svc *Service) Search(ctx context.Context, viewer int64, term string, req paging.Request) (paging.Result[View], error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return paging.Result[View]{}, apperr.Validation("q is required")
	}
	q, err := svc.visible(ctx, viewer)
	if err != nil {
		return paging.Result[View]{}, err
	}
	pattern := match.Contains(term)
	return svc.page(ctx, viewer, q.Where("posts.title"+match.Like+" OR posts.content"+match.Like, pattern, pattern), req)
}

// Load fetches posts by id in the given order, skipping missing ones.
func (svc *Service) Load(ctx context.Context, viewer int64, ids []int64) ([]View, error) {
	if len(ids) == 0 {
		return []View{}, nil
	}
	var posts []model.Post
	if err := svc.load(ctx, svc.db).Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	ordered := make([]model.Post, 0, len(posts))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return svc.enrich(ctx, viewer, ordered)
}

func (svc *Service) enrich(ctx context.Context, viewer int64, posts []model.Post) ([]View, error) {
	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	liked, err := svc.likes.LikedIDs(ctx, viewer, model.ObjectPost, ids)
	if err != nil {
		return nil, err
	}
	noted, err := svc.notes.NotedIDs(ctx, viewer, model.ObjectPost, ids)
	if err != nil {
		return nil, err
	}
	counts, err := svc.comments.Counts(ctx, model.ObjectPost, ids)
	if err != nil {
		return nil, err
	}
	views := make([]View, len(posts))
	for i, p := range posts {
		if p.Author != nil {
			pub := p.Author.Public()
			p.Author = &pub
		}
		recs := make([]model.TastedRecord, 0, len(p.TastedRecords))
		for _, r := range p.TastedRecords {
			if r.IsPrivate && r.AuthorID != viewer {
				continue
			}
			recs = append(recs, r)
		}
		p.TastedRecords = recs
		if p.Photos == nil {
			p.Photos = []model.Photo{}
		}
		views[i] = View{Post: p, IsUserLiked: liked[p.ID], IsUserNoted: noted[p.ID], CommentCount: counts[p.ID]}
	}
	return views, nil
}
