package audit

import (
	"context"
	"sync"
	"time"

	"github.com/brewbuds/server/metrics"
	"github.com/brewbuds/server/model"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Moderation actions.
const (
	ActionBlock          = "user.block"
	ActionUnblock        = "user.unblock"
	ActionWithdraw       = "user.withdraw"
	ActionReportCreate   = "report.create"
	ActionReportResolve  = "report.resolve"
	ActionRankingRefresh = "ranking.refresh"
	ActionEventCreate    = "event.create"
)

// Entry holds one audit event to be logged.
type Entry struct {
	TraceID    string
	UserID     int64 // 0 for system actions
	Action     string
	TargetType string
	TargetID   int64
	Detail     interface{}
	IP         string
}

// Logger is what handlers depend on.
type Logger interface {
	Log(entry Entry)
}

// Service logs audit entries asynchronously in batches.
type Service struct {
	db       *gorm.DB
	ch       chan *model.AuditLog
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditLog, 1024),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an audit entry for async DB write.
func (svc *Service) Log(entry Entry) {
	record := &model.AuditLog{
		TraceID:    entry.TraceID,
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		IP:         entry.IP,
	}
	if entry.UserID != 0 {
		uid := entry.UserID
		record.UserID = &uid
	}
	if entry.Detail != nil {
		if b, err := json.Marshal(entry.Detail); err == nil {
			record.Detail = datatypes.JSON(b)
		}
	}
	select {
	case svc.ch <- record:
	default:
		metrics.AuditDropped.Inc()
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("action", entry.Action))
	}
}

// Stop flushes queued entries and waits for the worker, or gives up when
// ctx is done. A nil ctx waits indefinitely.
func (svc *Service) Stop(ctx context.Context) {
	svc.stopOnce.Do(func() { close(svc.stopCh) })
	done := make(chan struct{})
	go func() {
		svc.wg.Wait()
		close(done)
	}()
	if ctx == nil {
		<-done
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
		svc.logger.Warn("audit flush abandoned", zap.Error(ctx.Err()))
	}
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Error(err), zap.Int("size", len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
					if len(batch) >= 100 {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Recorder collects entries in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Log(entry Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}
