package rest

import (
	"net/http"
	"time"

	"github.com/brewbuds/server/audit"
	"github.com/brewbuds/server/model"
	"github.com/brewbuds/server/scheduler"
	"github.com/brewbuds/server/service/event"
	"github.com/brewbuds/server/service/ranking"
	"github.com/brewbuds/server/service/report"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler handles staff-only REST endpoints.
// Routes should be protected by IPWhitelist, Auth and RequireStaff.
type AdminHandler struct {
	db      *gorm.DB
	sched   *scheduler.Scheduler
	ranking *ranking.Service
	reports *report.Service
	events  *event.Service
	audit   audit.Logger
	logger  *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	db *gorm.DB,
	sched *scheduler.Scheduler,
	r *ranking.Service,
	reports *report.Service,
	events *event.Service,
	al audit.Logger,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{db: db, sched: sched, ranking: r, reports: reports, events: events, audit: al, logger: logger}
}

type taskInfo struct {
	Name    string     `json:"name"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

// Metrics returns a snapshot of scheduled tasks and content counts.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())
	counts := map[string]int64{}
	for name, m := range map[string]interface{}{
		"users":          &model.User{},
		"posts":          &model.Post{},
		"tasted_records": &model.TastedRecord{},
		"comments":       &model.Comment{},
		"beans":          &model.Bean{},
	} {
		var n int64
		if err := db.Model(m).Count(&n).Error; err != nil {
			respondError(c, err)
			return
		}
		counts[name] = n
	}
	var pending int64
	if err := db.Model(&model.Report{}).Where("status = ?", model.ReportPending).Count(&pending).Error; err != nil {
		respondError(c, err)
		return
	}
	counts["pending_reports"] = pending

	names := h.sched.ListTickers()
	tasks := make([]taskInfo, 0, len(names))
	for _, name := range names {
		t := taskInfo{Name: name}
		if next, ok := h.sched.NextRun(name); ok {
			t.NextRun = &next
		}
		tasks = append(tasks, t)
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts, "scheduler_tasks": tasks})
}

// RefreshRanking rebuilds both weekly rankings now.
// POST /api/admin/ranking/refresh
func (h *AdminHandler) RefreshRanking(c *gin.Context) {
	if err := h.ranking.Refresh(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	h.audit.Log(auditEntry(c, audit.ActionRankingRefresh, "ranking", 0, nil))
	h.logger.Info("ranking refreshed by staff")
	c.JSON(http.StatusOK, gin.H{"refreshed": true})
}

// Reports lists reports for moderation.
// GET /api/admin/reports?status=
func (h *AdminHandler) Reports(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	res, err := h.reports.List(c.Request.Context(), c.Query("status"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ResolveReport closes a pending report.
// POST /api/admin/reports/:id/resolve {"status": "resolved"|"rejected"}
func (h *AdminHandler) ResolveReport(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.reports.Resolve(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit.Log(auditEntry(c, audit.ActionReportResolve, "report", id, gin.H{"status": r.Status}))
	c.JSON(http.StatusOK, r)
}

// CreateEvent publishes a new event.
// POST /api/admin/events
func (h *AdminHandler) CreateEvent(c *gin.Context) {
	var req event.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	e, err := h.events.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit.Log(auditEntry(c, audit.ActionEventCreate, "event", e.ID, gin.H{"title": e.Title}))
	c.JSON(http.StatusCreated, e)
}
