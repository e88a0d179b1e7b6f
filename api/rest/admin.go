package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cuonghoang741/vivivi-server/model"
	"github.com/cuonghoang741/vivivi-server/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Announcer publishes a broadcast message to every connected client.
type Announcer interface {
	Announce(ctx context.Context, message string) error
}

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	db        *gorm.DB
	sched     *scheduler.Scheduler
	announcer Announcer
	logger    *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(db *gorm.DB, sched *scheduler.Scheduler, announcer Announcer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{db: db, sched: sched, announcer: announcer, logger: logger}
}

// Metrics returns store and engine counters.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	var accounts, dailyOpen, dailyTotal, auditRows int64
	h.db.Model(&model.Account{}).Count(&accounts)
	h.db.Model(&model.DailyQuestInstance{}).Where("claimed = ?", false).Count(&dailyOpen)
	h.db.Model(&model.DailyQuestInstance{}).Count(&dailyTotal)
	h.db.Model(&model.AuditLog{}).Count(&auditRows)

	c.JSON(http.StatusOK, gin.H{
		"accounts":          accounts,
		"daily_quests_open": dailyOpen,
		"daily_quests":      dailyTotal,
		"audit_rows":        auditRows,
		"scheduler_tasks":   h.sched.ListTickers(),
	})
}

// ListSchedulerTasks returns names of all registered ticker tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.ListTickers()})
}

// RecentAudits returns the newest audit rows for support follow-up.
// GET /api/admin/audits?limit=N
func (h *AdminHandler) RecentAudits(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	var logs []model.AuditLog
	if err := h.db.Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": logs})
}

// BanAccount bans or unbans a user account.
// POST /api/admin/accounts/:id/ban
func (h *AdminHandler) BanAccount(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Ban bool `json:"ban"`
	}
	_ = c.ShouldBindJSON(&req)

	status := 1
	if req.Ban {
		status = 0
	}
	result := h.db.Model(&model.Account{}).Where("id = ?", accountID).Update("status", status)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	h.logger.Info("account ban status changed",
		zap.Int64("account_id", accountID), zap.Int("status", status))
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

type announceRequest struct {
	Message string `json:"message" binding:"required,max=500"`
}

// Announce broadcasts a system message to all connected clients.
// POST /api/admin/announce
func (h *AdminHandler) Announce(c *gin.Context) {
	var req announceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.announcer.Announce(c.Request.Context(), req.Message); err != nil {
		h.logger.Error("announce publish failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "publish failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
