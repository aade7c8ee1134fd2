// Package like toggles likes on posts, tasted records and comments.
package like

import (
	"context"
	"errors"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/metrics"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/notify"
	"github.com/brewbuds/server/service/relationship"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tables = map[string]string{
	model.ObjectPost:    "posts",
	model.ObjectRecord:  "tasted_records",
	model.ObjectComment: "comments",
}

// Result is the state after a toggle.
type Result struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

type target struct {
	ID        int64
	AuthorID  int64
	LikeCount int64
}

type Service struct {
	db       *gorm.DB
	rel      *relationship.Service
	notifier notify.Notifier
	logger   *zap.Logger
}

func New(db *gorm.DB, rel *relationship.Service, notifier notify.Notifier, logger *zap.Logger) *Service {
	return &Service{db: db, rel: rel, notifier: notifier, logger: logger}
}

// visible checks the target exists and may be seen by userID.
func (svc *Service) visible(ctx context.Context, userID int64, objectType string, objectID int64) (*target, error) {
	db := svc.db.WithContext(ctx)
	var t target
	var err error
	switch objectType {
	case model.ObjectRecord:
		err = db.Table("tasted_records").Select("id", "author_id", "like_count").
			Where("id = ? AND (is_private = ? OR author_id = ?)", objectID, false, userID).Take(&t).Error
	case model.ObjectComment:
		err = db.Table("comments").Select("id", "author_id", "like_count").
			Where("id = ? AND is_deleted = ?", objectID, false).Take(&t).Error
	default:
		err = db.Table("posts").Select("id", "author_id", "like_count").Where("id = ?", objectID).Take(&t).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("%s not found", objectType)
	}
	if err != nil {
		return nil, err
	}
	blocked, err := svc.rel.IsBlockedEither(ctx, userID, t.AuthorID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, apperr.Forbidden("blocked user's content")
	}
	return &t, nil
}

// Toggle likes the object if userID has not liked it yet and unlikes it
// otherwise. The target row is locked while the counter changes.
func (svc *Service) Toggle(ctx context.Context, userID int64, objectType string, objectID int64) (Result, error) {
	table, ok := tables[objectType]
	if !ok {
		return Result{}, apperr.Validation("cannot like %q", objectType)
	}
	t, err := svc.visible(ctx, userID, objectType, objectID)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked target
		if err := tx.Table(table).Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "author_id", "like_count").Where("id = ?", objectID).Take(&locked).Error; err != nil {
			return err
		}

		del := tx.Where("user_id = ? AND object_type = ? AND object_id = ?", userID, objectType, objectID).
			Delete(&model.Like{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected > 0 {
			res.Liked = false
			res.LikeCount = locked.LikeCount - 1
			if res.LikeCount < 0 {
				res.LikeCount = 0
			}
			return tx.Table(table).Where("id = ?", objectID).
				UpdateColumn("like_count", gorm.Expr("CASE WHEN like_count > 0 THEN like_count - 1 ELSE 0 END")).Error
		}

		if err := tx.Create(&model.Like{UserID: userID, ObjectType: objectType, ObjectID: objectID}).Error; err != nil {
			return err
		}
		res.Liked = true
		res.LikeCount = locked.LikeCount + 1
		return tx.Table(table).Where("id = ?", objectID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
	if err != nil {
		return Result{}, err
	}
	metrics.RecordLikeToggle(objectType, res.Liked)

	if res.Liked && t.AuthorID != userID {
		if err := svc.notifier.Notify(ctx, notify.Notice{
			UserID: t.AuthorID, ActorID: userID, Type: model.NotifyLike,
			ObjectType: objectType, ObjectID: objectID,
		}); err != nil {
			svc.logger.Warn("like notification failed", zap.Error(err))
		}
	}
	return res, nil
}

// LikedIDs reports which of ids userID has liked.
func (svc *Service) LikedIDs(ctx context.Context, userID int64, objectType string, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	if userID == 0 || len(ids) == 0 {
		return out, nil
	}
	var liked []int64
	err := svc.db.WithContext(ctx).Model(&model.Like{}).
		Where("user_id = ? AND object_type = ? AND object_id IN ?", userID, objectType, ids).
		Pluck("object_id", &liked).Error
	for _, id := range liked {
		out[id] = true
	}
	return out, err
}

// Likers lists the users who liked an object, newest first.
func (svc *Service) Likers(ctx context.Context, objectType string, objectID int64, limit int) ([]model.User, error) {
	var users []model.User
	err := svc.db.WithContext(ctx).Model(&model.User{}).
		Joins("JOIN likes l ON l.user_id = users.id").
		Where("l.object_type = ? AND l.object_id = ? AND users.is_active = ?", objectType, objectID, true).
		Order("l.created_at DESC, l.id DESC").Limit(limit).Find(&users).Error
	for i := range users {
		users[i] = users[i].Public()
	}
	return users, err
}
