// Package comment manages comments on posts and tasted records. Replies go
// one level deep.
package comment

import (
	"context"
	"errors"
	"strings"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/like"
	"github.com/brewbuds/server/service/notify"
	"github.com/brewbuds/server/service/paging"
	"github.com/brewbuds/server/service/relationship"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tables = map[string]string{
	model.ObjectPost:   "posts",
	model.ObjectRecord: "tasted_records",
}

// View is a comment as shown to one viewer.
type View struct {
	model.Comment
	IsUserLiked bool   `json:"is_user_liked"`
	Replies     []View `json:"replies,omitempty"`
}

type Service struct {
	db       *gorm.DB
	rel      *relationship.Service
	likes    *like.Service
	notifier notify.Notifier
	logger   *zap.Logger
}

func New(db *gorm.DB, rel *relationship.Service, likes *like.Service, notifier notify.Notifier, logger *zap.Logger) *Service {
	return &Service{db: db, rel: rel, likes: likes, notifier: notifier, logger: logger}
}

// objectAuthor returns the author of a commentable object visible to viewer.
func (svc *Service) objectAuthor(ctx context.Context, viewer int64, objectType string, objectID int64) (int64, error) {
	table, ok := tables[objectType]
	if !ok {
		return 0, apperr.Validation("cannot comment on %q", objectType)
	}
	q := svc.db.WithContext(ctx).Table(table).Where("id = ?", objectID)
	if objectType == model.ObjectRecord {
		q = q.Where("is_private = ? OR author_id = ?", false, viewer)
	}
	var authorIDs []int64
	if err := q.Pluck("author_id", &authorIDs).Error; err != nil {
		return 0, err
	}
	if len(authorIDs) == 0 {
		return 0, apperr.NotFound("%s not found", objectType)
	}
	blocked, err := svc.rel.IsBlockedEither(ctx, viewer, authorIDs[0])
	if err != nil {
		return 0, err
	}
	if blocked {
		return 0, apperr.Forbidden("blocked user's content")
	}
	return authorIDs[0], nil
}

func (svc *Service) notify(ctx context.Context, n notify.Notice) {
	if err := svc.notifier.Notify(ctx, n); err != nil {
		svc.logger.Warn("comment notification failed", zap.String("type", n.Type), zap.Error(err))
	}
}

// Create adds a comment, or a reply when parentID is set. A reply to a
// reply is attached to the top-level comment instead.
func (svc *Service) Create(ctx context.Context, userID int64, objectType string, objectID int64, parentID *int64, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("content is required")
	}
	authorID, err := svc.objectAuthor(ctx, userID, objectType, objectID)
	if err != nil {
		return nil, err
	}

	var parent *model.Comment
	if parentID != nil {
		var p model.Comment
		err := svc.db.WithContext(ctx).First(&p, *parentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("parent comment not found")
		}
		if err != nil {
			return nil, err
		}
		if p.ObjectType != objectType || p.ObjectID != objectID {
			return nil, apperr.Validation("parent comment belongs to another %s", objectType)
		}
		if p.ParentID != nil {
			var top model.Comment
			if err := svc.db.WithContext(ctx).First(&top, *p.ParentID).Error; err != nil {
				return nil, err
			}
			p = top
		}
		if p.IsDeleted {
			return nil, apperr.NotFound("parent comment not found")
		}
		blocked, err := svc.rel.IsBlockedEither(ctx, userID, p.AuthorID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, apperr.Forbidden("blocked user's comment")
		}
		parent = &p
	}

	c := &model.Comment{ObjectType: objectType, ObjectID: objectID, AuthorID: userID, Content: content}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	if err := svc.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}

	if parent != nil && parent.AuthorID != userID {
		svc.notify(ctx, notify.Notice{
			UserID: parent.AuthorID, ActorID: userID, Type: model.NotifyReply,
			ObjectType: objectType, ObjectID: objectID,
		})
	}
	if parent == nil || parent.AuthorID != authorID {
		svc.notify(ctx, notify.Notice{
			UserID: authorID, ActorID: userID, Type: model.NotifyComment,
			ObjectType: objectType, ObjectID: objectID,
		})
	}
	return c, nil
}

// List returns top-level comments oldest first, each with its visible
// replies. Deleted comments are kept as placeholders while they have
// visible replies.
func (svc *Service) List(ctx context.Context, viewer int64, objectType string, objectID int64, req paging.Request) (paging.Result[View], error) {
	req = req.Normalize()
	if _, err := svc.objectAuthor(ctx, viewer, objectType, objectID); err != nil {
		return paging.Result[View]{}, err
	}
	hidden, err := svc.rel.HiddenUserIDs(ctx, viewer)
	if err != nil {
		return paging.Result[View]{}, err
	}
	db := svc.db.WithContext(ctx)

	replies := db.Table("comments r").Select("1").
		Where("r.parent_id = comments.id AND r.is_deleted = ?", false)
	if len(hidden) > 0 {
		replies = replies.Where("r.author_id NOT IN ?", hidden)
	}
	q := db.Model(&model.Comment{}).
		Where("object_type = ? AND object_id = ? AND parent_id IS NULL", objectType, objectID).
		Where("is_deleted = ? OR EXISTS (?)", false, replies)
	if len(hidden) > 0 {
		q = q.Where("author_id NOT IN ?", hidden)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return paging.Result[View]{}, err
	}
	var top []model.Comment
	if err := q.Preload("Author").Order("created_at ASC, id ASC").
		Offset(req.Offset()).Limit(req.Size).Find(&top).Error; err != nil {
		return paging.Result[View]{}, err
	}
	if len(top) == 0 {
		return paging.New([]View{}, total, req), nil
	}

	ids := make([]int64, len(top))
	for i, c := range top {
		ids[i] = c.ID
	}
	rq := db.Preload("Author").Where("parent_id IN ? AND is_deleted = ?", ids, false)
	if len(hidden) > 0 {
		rq = rq.Where("author_id NOT IN ?", hidden)
	}
	var rs []model.Comment
	if err := rq.Order("created_at ASC, id ASC").Find(&rs).Error; err != nil {
		return paging.Result[View]{}, err
	}

	allIDs := append([]int64{}, ids...)
	for _, r := range rs {
		allIDs = append(allIDs, r.ID)
	}
	liked, err := svc.likes.LikedIDs(ctx, viewer, model.ObjectComment, allIDs)
	if err != nil {
		return paging.Result[View]{}, err
	}

	byParent := make(map[int64][]View)
	for _, r := range rs {
		byParent[*r.ParentID] = append(byParent[*r.ParentID], toView(r, liked))
	}
	views := make([]View, len(top))
	for i, c := range top {
		views[i] = toView(c, liked)
		views[i].Replies = byParent[c.ID]
	}
	return paging.New(views, total, req), nil
}

func toView(c model.Comment, liked map[int64]bool) View {
	c.Replies = nil
	if c.IsDeleted {
		c.Content = ""
		c.Author = nil
	} else if c.Author != nil {
		pub := c.Author.Public()
		c.Author = &pub
	}
	return View{Comment: c, IsUserLiked: liked[c.ID]}
}

func (svc *Service) own(ctx context.Context, userID, id int64) (*model.Comment, error) {
	var c model.Comment
	err := svc.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && c.IsDeleted) {
		return nil, apperr.NotFound("comment not found")
	}
	if err != nil {
		return nil, err
	}
	if c.AuthorID != userID {
		return nil, apperr.Forbidden("not your comment")
	}
	return &c, nil
}

// Update changes the content of the author's own comment.
func (svc *Service) Update(ctx context.Context, userID, id int64, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("content is required")
	}
	c, err := svc.own(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	c.Content = content
	if err := svc.db.WithContext(ctx).Model(c).Update("content", content).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// Delete soft-deletes a comment that still has replies and removes it
// otherwise. Removing the last reply of a soft-deleted comment removes that
// comment as well.
func (svc *Service) Delete(ctx context.Context, userID, id int64) error {
	c, err := svc.own(ctx, userID, id)
	if err != nil {
		return err
	}
	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var replies int64
		if err := tx.Model(&model.Comment{}).Where("parent_id = ?", c.ID).Count(&replies).Error; err != nil {
			return err
		}
		if replies > 0 {
			return tx.Model(c).Updates(map[string]interface{}{"is_deleted": true, "content": ""}).Error
		}
		if err := hardDelete(tx, c.ID); err != nil {
			return err
		}
		if c.ParentID == nil {
			return nil
		}

		var parent model.Comment
		if err := tx.First(&parent, *c.ParentID).Error; err != nil {
			return err
		}
		if !parent.IsDeleted {
			return nil
		}
		var left int64
		if err := tx.Model(&model.Comment{}).Where("parent_id = ?", parent.ID).Count(&left).Error; err != nil {
			return err
		}
		if left > 0 {
			return nil
		}
		return hardDelete(tx, parent.ID)
	})
}

func hardDelete(tx *gorm.DB, id int64) error {
	if err := tx.Where("object_type = ? AND object_id = ?", model.ObjectComment, id).Delete(&model.Like{}).Error; err != nil {
		return err
	}
	return tx.Delete(&model.Comment{}, id).Error
}

// Counts returns the number of live comments per object.
func (svc *Service) Counts(ctx context.Context, objectType string, ids []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		ObjectID int64
		N        int64
	}
	err := svc.db.WithContext(ctx).Model(&model.Comment{}).
		Select("object_id, COUNT(*) AS n").
		Where("object_type = ? AND object_id IN ? AND is_deleted = ?", objectType, ids, false).
		Group("object_id").Scan(&rows).Error
	for _, r := range rows {
		out[r.ObjectID] = r.N
	}
	return out, err
}

// Purge removes every comment of an object and the likes on them inside tx.
func Purge(tx *gorm.DB, objectType string, objectID int64) error {
	ids := tx.Model(&model.Comment{}).Select("id").Where("object_type = ? AND object_id = ?", objectType, objectID)
	if err := tx.Where("object_type = ? AND object_id IN (?)", model.ObjectComment, ids).Delete(&model.Like{}).Error; err != nil {
		return err
	}
	if err := tx.Where("object_type = ? AND object_id = ? AND parent_id IS NOT NULL", objectType, objectID).
		Delete(&model.Comment{}).Error; err != nil {
		return err
	}
	return tx.Where("object_type = ? AND object_id = ?", objectType, objectID).Delete(&model.Comment{}).Error
}
