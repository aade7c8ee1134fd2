package audit

import (
	"context"
	"testing"
	"time"

	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nop() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

func TestLog_EnqueuedAndFlushed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	svc.Log(Entry{
		TraceID:    "trace-123",
		UserID:     2,
		Action:     ActionReportCreate,
		TargetType: model.ObjectPost,
		TargetID:   9,
		Detail:     map[string]string{"reason": "spam"},
		IP:         "127.0.0.1",
	})

	// Stop flushes remaining entries
	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "trace-123", logs[0].TraceID)
	require.NotNil(t, logs[0].UserID)
	assert.Equal(t, int64(2), *logs[0].UserID)
	assert.Equal(t, ActionReportCreate, logs[0].Action)
	assert.Equal(t, int64(9), logs[0].TargetID)
	assert.JSONEq(t, `{"reason":"spam"}`, string(logs[0].Detail))
	assert.Equal(t, "127.0.0.1", logs[0].IP)
}

func TestLog_BatchFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	for i := 0; i < 250; i++ {
		svc.Log(Entry{Action: ActionBlock, UserID: 1, TargetType: model.ObjectUser, TargetID: int64(i)})
	}
	svc.Stop(context.Background())

	var count int64
	db.Model(&model.AuditLog{}).Count(&count)
	assert.Equal(t, int64(250), count)
}

func TestLog_TimerFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	defer svc.Stop(context.Background())

	svc.Log(Entry{Action: ActionRankingRefresh})

	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.AuditLog{}).Count(&count)
		return count == 1
	}, 4*time.Second, 100*time.Millisecond)
}

func TestLog_SystemActionHasNoUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	svc.Log(Entry{Action: ActionRankingRefresh})
	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].UserID)
}

func TestStop_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	svc.Stop(context.Background())
	svc.Stop(context.Background()) // must not panic
}

func TestLog_DropsWhenFull(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	for i := 0; i < 1100; i++ {
		svc.Log(Entry{Action: "flood"})
	}
	svc.Stop(context.Background())
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Log(Entry{Action: ActionWithdraw, UserID: 3})
	require.Len(t, r.Entries(), 1)
	assert.Equal(t, ActionWithdraw, r.Entries()[0].Action)
}
