// Package notify stores in-app notifications, streams them to connected
// clients and pushes them to registered devices.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/brewbuds/server/apperr"
	"github.com/brewbuds/server/cache"
	"github.com/brewbuds/server/metrics"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/push"
	"github.com/brewbuds/server/service/paging"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notice describes something that happened to UserID because of ActorID.
type Notice struct {
	UserID     int64
	ActorID    int64
	Type       string
	ObjectType string
	ObjectID   int64
	// Message overrides the generated text. Required for NotifyNotice.
	Message string
}

// Notifier is the dependency other services take.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

type pushJob struct {
	userID int64
	msg    push.Message
}

// Service implements Notifier.
type Service struct {
	db       *gorm.DB
	ps       cache.PubSub
	pusher   push.Pusher
	queue    chan pushJob
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New creates the service and starts the push worker. queueSize bounds the
// number of pending pushes; extra pushes are dropped.
func New(db *gorm.DB, ps cache.PubSub, pusher push.Pusher, queueSize int, logger *zap.Logger) *Service {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if pusher == nil {
		pusher = push.Nop{}
	}
	svc := &Service{
		db:     db,
		ps:     ps,
		pusher: pusher,
		queue:  make(chan pushJob, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Stop delivers what is already queued and stops the worker.
func (svc *Service) Stop() {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func objectLabel(objectType string) string {
	switch objectType {
	case model.ObjectRecord:
		return "tasting record"
	case model.ObjectComment:
		return "comment"
	default:
		return "post"
	}
}

func render(n Notice, actor string) (string, error) {
	switch n.Type {
	case model.NotifyLike:
		return fmt.Sprintf("%s liked your %s.", actor, objectLabel(n.ObjectType)), nil
	case model.NotifyComment:
		return fmt.Sprintf("%s commented on your %s.", actor, objectLabel(n.ObjectType)), nil
	case model.NotifyReply:
		return fmt.Sprintf("%s replied to your comment.", actor), nil
	case model.NotifyFollow:
		return fmt.Sprintf("%s started following you.", actor), nil
	case model.NotifyNotice:
		if n.Message == "" {
			return "", apperr.Validation("notice message is required")
		}
		return n.Message, nil
	}
	return "", apperr.Validation("unknown notification type %q", n.Type)
}

// Notify stores the notification, publishes it to live subscribers and
// queues a push. Notices to oneself and notices the user opted out of are
// silently skipped.
func (svc *Service) Notify(ctx context.Context, n Notice) error {
	if n.UserID == 0 || n.UserID == n.ActorID {
		return nil
	}
	setting, err := svc.Settings(ctx, n.UserID)
	if err != nil {
		return err
	}
	if !setting.Allows(n.Type) {
		return nil
	}

	actor := "Someone"
	if n.ActorID != 0 {
		var u model.User
		if err := svc.db.WithContext(ctx).Select("nickname").First(&u, n.ActorID).Error; err == nil {
			actor = u.Nickname
		}
	}
	text, err := render(n, actor)
	if err != nil {
		return err
	}

	row := &model.Notification{
		UserID:     n.UserID,
		ActorID:    n.ActorID,
		Type:       n.Type,
		Message:    text,
		ObjectType: n.ObjectType,
		ObjectID:   n.ObjectID,
	}
	if err := svc.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	metrics.NotificationsSent.WithLabelValues(n.Type).Inc()

	if payload, err := json.Marshal(row); err == nil {
		if err := svc.ps.Publish(ctx, cache.NotifyChannel(n.UserID), string(payload)); err != nil {
			svc.logger.Warn("notify publish failed", zap.Int64("user_id", n.UserID), zap.Error(err))
		}
	}

	job := pushJob{userID: n.UserID, msg: push.Message{
		Title: "BrewBuds",
		Body:  text,
		Data: map[string]string{
			"type":            n.Type,
			"object_type":     n.ObjectType,
			"object_id":       strconv.FormatInt(n.ObjectID, 10),
			"notification_id": strconv.FormatInt(row.ID, 10),
		},
	}}
	select {
	case svc.queue <- job:
	default:
		metrics.RecordPush("dropped")
		svc.logger.Warn("push queue full, dropping push", zap.Int64("user_id", n.UserID))
	}
	return nil
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	for {
		select {
		case job := <-svc.queue:
			svc.deliver(job)
		case <-svc.stopCh:
			for {
				select {
				case job := <-svc.queue:
					svc.deliver(job)
				default:
					return
				}
			}
		}
	}
}

func (svc *Service) deliver(job pushJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var tokens []string
	if err := svc.db.WithContext(ctx).Model(&model.PushDevice{}).
		Where("user_id = ?", job.userID).Pluck("token", &tokens).Error; err != nil {
		svc.logger.Error("push token lookup failed", zap.Error(err))
		return
	}
	if len(tokens) == 0 {
		return
	}
	job.msg.Tokens = tokens

	res, err := svc.pusher.Push(ctx, job.msg)
	if len(res.Unregistered) > 0 {
		metrics.PushResults.WithLabelValues("unregistered").Add(float64(len(res.Unregistered)))
		if derr := svc.db.WithContext(ctx).Where("token IN ?", res.Unregistered).
			Delete(&model.PushDevice{}).Error; derr != nil {
			svc.logger.Error("push token cleanup failed", zap.Error(derr))
		}
	}
	if err != nil {
		if !errors.Is(err, push.ErrUnavailable) {
			metrics.RecordPush("error")
		}
		svc.logger.Warn("push failed", zap.Int64("user_id", job.userID), zap.Error(err))
		return
	}
	metrics.RecordPush("ok")
}

// List returns the user's notifications, newest first.
func (svc *Service) List(ctx context.Context, userID int64, req paging.Request) (paging.Result[model.Notification], error) {
	req = req.Normalize()
	q := svc.db.WithContext(ctx).Model(&model.Notification{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return paging.Result[model.Notification]{}, err
	}
	var rows []model.Notification
	if err := q.Order("created_at DESC, id DESC").Offset(req.Offset()).Limit(req.Size).Find(&rows).Error; err != nil {
		return paging.Result[model.Notification]{}, err
	}
	return paging.New(rows, total, req), nil
}

func (svc *Service) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).Count(&n).Error
	return n, err
}

// MarkRead marks one notification as read.
func (svc *Service) MarkRead(ctx context.Context, userID, id int64) error {
	res := svc.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("notification not found")
	}
	return nil
}

// MarkAllRead marks every unread notification as read and returns how many changed.
func (svc *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res := svc.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (svc *Service) Delete(ctx context.Context, userID, id int64) error {
	res := svc.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("notification not found")
	}
	return nil
}

// PurgeRead deletes read notifications created before cutoff and returns
// how many went.
func (svc *Service) PurgeRead(ctx context.Context, cutoff time.Time) (int64, error) {
	res := svc.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&model.Notification{})
	return res.RowsAffected, res.Error
}

// RegisterDevice stores token for userID. A token moves to the latest user
// that registers it.
func (svc *Service) RegisterDevice(ctx context.Context, userID int64, token, deviceType string) (*model.PushDevice, error) {
	if token == "" {
		return nil, apperr.Validation("device token is required")
	}
	dev := &model.PushDevice{UserID: userID, Token: token, DeviceType: deviceType}
	err := svc.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_type", "updated_at"}),
	}).Create(dev).Error
	if err != nil {
		return nil, err
	}
	var stored model.PushDevice
	if err := svc.db.WithContext(ctx).Where("token = ?", token).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (svc *Service) RemoveDevice(ctx context.Context, userID int64, token string) error {
	res := svc.db.WithContext(ctx).Where("user_id = ? AND token = ?", userID, token).Delete(&model.PushDevice{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("device not found")
	}
	return nil
}

// Settings returns the user's notification settings, all enabled when
// none were saved.
func (svc *Service) Settings(ctx context.Context, userID int64) (model.NotificationSetting, error) {
	var s model.NotificationSetting
	err := svc.db.WithContext(ctx).First(&s, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DefaultNotificationSetting(userID), nil
	}
	return s, err
}

func (svc *Service) UpdateSettings(ctx context.Context, s model.NotificationSetting) error {
	return svc.db.WithContext(ctx).Save(&s).Error
}

// Subscribe streams the user's new notifications as JSON payloads.
func (svc *Service) Subscribe(ctx context.Context, userID int64) (<-chan *cache.Message, func(), error) {
	return svc.ps.Subscribe(ctx, cache.NotifyChannel(userID))
}

// Recorder collects notices instead of delivering them.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

// Sent returns a copy of the recorded notices.
func (r *Recorder) Sent() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}
