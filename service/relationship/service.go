// Package relationship manages follow and block edges between users.
package relationship

import (
	"context"
	"errors"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/service/notify"
	"github.com/brewbuds/server/service/paging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	notifier notify.Notifier
	logger   *zap.Logger
}

func New(db *gorm.DB, notifier notify.Notifier, logger *zap.Logger) *Service {
	return &Service{db: db, notifier: notifier, logger: logger}
}

func (svc *Service) exists(tx *gorm.DB, from, to int64, typ string) (bool, error) {
	var n int64
	err := tx.Model(&model.Relationship{}).
		Where("from_user_id = ? AND to_user_id = ? AND type = ?", from, to, typ).
		Count(&n).Error
	return n > 0, err
}

func (svc *Service) activeUser(tx *gorm.DB, id int64) error {
	var u model.User
	err := tx.Select("id", "is_active").First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !u.IsActive) {
		return apperr.NotFound("user not found")
	}
	return err
}

// Follow creates a follow edge from -> to.
func (svc *Service) Follow(ctx context.Context, from, to int64) error {
	if from == to {
		return apperr.Validation("cannot follow yourself")
	}
	db := svc.db.WithContext(ctx)
	if err := svc.activeUser(db, to); err != nil {
		return err
	}
	blocked, err := svc.IsBlockedEither(ctx, from, to)
	if err != nil {
		return err
	}
	if blocked {
		return apperr.Forbidden("cannot follow a blocked user")
	}
	following, err := svc.exists(db, from, to, model.RelationFollow)
	if err != nil {
		return err
	}
	if following {
		return apperr.Conflict("already following")
	}
	if err := db.Create(&model.Relationship{FromUserID: from, ToUserID: to, Type: model.RelationFollow}).Error; err != nil {
		return err
	}
	if err := svc.notifier.Notify(ctx, notify.Notice{
		UserID: to, ActorID: from, Type: model.NotifyFollow,
		ObjectType: model.ObjectUser, ObjectID: from,
	}); err != nil {
		svc.logger.Warn("follow notification failed", zap.Error(err))
	}
	return nil
}

func (svc *Service) remove(ctx context.Context, from, to int64, typ string) error {
	res := svc.db.WithContext(ctx).
		Where("from_user_id = ? AND to_user_id = ? AND type = ?", from, to, typ).
		Delete(&model.Relationship{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("%s relationship not found", typ)
	}
	return nil
}

func (svc *Service) Unfollow(ctx context.Context, from, to int64) error {
	return svc.remove(ctx, from, to, model.RelationFollow)
}

// Block creates a block edge and drops follow edges in both directions.
func (svc *Service) Block(ctx context.Context, from, to int64) error {
	if from == to {
		return apperr.Validation("cannot block yourself")
	}
	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := svc.activeUser(tx, to); err != nil {
			return err
		}
		blocked, err := svc.exists(tx, from, to, model.RelationBlock)
		if err != nil {
			return err
		}
		if blocked {
			return apperr.Conflict("already blocked")
		}
		if err := tx.Where("type = ? AND ((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?))",
			model.RelationFollow, from, to, to, from).
			Delete(&model.Relationship{}).Error; err != nil {
			return err
		}
		return tx.Create(&model.Relationship{FromUserID: from, ToUserID: to, Type: model.RelationBlock}).Error
	})
}

func (svc *Service) Unblock(ctx context.Context, from, to int64) error {
	return svc.remove(ctx, from, to, model.RelationBlock)
}

// IsFollowing reports whether from follows to.
func (svc *Service) IsFollowing(ctx context.Context, from, to int64) (bool, error) {
	return svc.exists(svc.db.WithContext(ctx), from, to, model.RelationFollow)
}

// IsMutualFollow reports whether a and b follow each other.
func (svc *Service) IsMutualFollow(ctx context.Context, a, b int64) (bool, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.Relationship{}).
		Where("type = ? AND ((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?))",
			model.RelationFollow, a, b, b, a).
		Count(&n).Error
	return n == 2, err
}

// IsBlocked reports whether from has blocked to.
func (svc *Service) IsBlocked(ctx context.Context, from, to int64) (bool, error) {
	return svc.exists(svc.db.WithContext(ctx), from, to, model.RelationBlock)
}

// IsBlockedEither reports whether either user has blocked the other.
// Anonymous viewers (id 0) are never blocked.
func (svc *Service) IsBlockedEither(ctx context.Context, a, b int64) (bool, error) {
	if a == 0 || b == 0 {
		return false, nil
	}
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.Relationship{}).
		Where("type = ? AND ((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?))",
			model.RelationBlock, a, b, b, a).
		Count(&n).Error
	return n > 0, err
}

func (svc *Service) FollowingIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	err := svc.db.WithContext(ctx).Model(&model.Relationship{}).
		Where("from_user_id = ? AND type = ?", userID, model.RelationFollow).
		Pluck("to_user_id", &ids).Error
	return ids, err
}

func (svc *Service) FollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	err := svc.db.WithContext(ctx).Model(&model.Relationship{}).
		Where("to_user_id = ? AND type = ?", userID, model.RelationFollow).
		Pluck("from_user_id", &ids).Error
	return ids, err
}

// HiddenUserIDs returns users the viewer blocked plus users who blocked the
// viewer. Their content is never shown to the viewer.
func (svc *Service) HiddenUserIDs(ctx context.Context, userID int64) ([]int64, error) {
	if userID == 0 {
		return []int64{}, nil
	}
	var rows []model.Relationship
	err := svc.db.WithContext(ctx).
		Where("type = ? AND (from_user_id = ? OR to_user_id = ?)", model.RelationBlock, userID, userID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		other := r.ToUserID
		if other == userID {
			other = r.FromUserID
		}
		if !seen[other] {
			seen[other] = true
			ids = append(ids, other)
		}
	}
	return ids, nil
}

// Counts returns follower and following counts of userID.
func (svc *Service) Counts(ctx context.Context, userID int64) (followers, following int64, err error) {
	db := svc.db.WithContext(ctx).Model(&model.Relationship{})
	if err = db.Where("to_user_id = ? AND type = ?", userID, model.RelationFollow).Count(&followers).Error; err != nil {
		return
	}
	err = svc.db.WithContext(ctx).Model(&model.Relationship{}).
		Where("from_user_id = ? AND type = ?", userID, model.RelationFollow).Count(&following).Error
	return
}

func (svc *Service) listUsers(ctx context.Context, matchCol, joinCol string, userID int64, typ string, req paging.Request) (paging.Result[model.User], error) {
	req = req.Normalize()
	q := svc.db.WithContext(ctx).Model(&model.User{}).
		Joins("JOIN relationships r ON r."+joinCol+" = users.id").
		Where("r."+matchCol+" = ? AND r.type = ? AND users.is_active = ?", userID, typ, true)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return paging.Result[model.User]{}, err
	}
	var users []model.User
	if err := q.Order("r.created_at DESC, r.id DESC").Offset(req.Offset()).Limit(req.Size).
		Find(&users).Error; err != nil {
		return paging.Result[model.User]{}, err
	}
	for i := range users {
		users[i] = users[i].Public()
	}
	return paging.New(users, total, req), nil
}

// Followers lists users following userID, newest edge first.
func (svc *Service) Followers(ctx context.Context, userID int64, req paging.Request) (paging.Result[model.User], error) {
	return svc.listUsers(ctx, "to_user_id", "from_user_id", userID, model.RelationFollow, req)
}

// Following lists users userID follows, newest edge first.
func (svc *Service) Following(ctx context.Context, userID int64, req paging.Request) (paging.Result[model.User], error) {
	return svc.listUsers(ctx, "from_user_id", "to_user_id", userID, model.RelationFollow, req)
}

// Blocked lists users userID has blocked, newest edge first.
func (svc *Service) Blocked(ctx context.Context, userID int64, req paging.Request) (paging.Result[model.User], error) {
	return svc.listUsers(ctx, "from_user_id", "to_user_id", userID, model.RelationBlock, req)
}
