package rest

import (
	"net/http"
	"strconv"

	"github.com/cuonghoang741/vivivi-server/audit"
	"github.com/cuonghoang741/vivivi-server/game/daily"
	"github.com/cuonghoang741/vivivi-server/game/levelquest"
	"github.com/cuonghoang741/vivivi-server/game/progress"
	mw "github.com/cuonghoang741/vivivi-server/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// QuestHandler handles daily and level quest REST endpoints.
type QuestHandler struct {
	daily    *daily.Service
	level    *levelquest.Service
	progress *progress.Dispatcher
	audit    *audit.Service
	logger   *zap.Logger
}

// NewQuestHandler creates a QuestHandler.
func NewQuestHandler(d *daily.Service, l *levelquest.Service, p *progress.Dispatcher, a *audit.Service, logger *zap.Logger) *QuestHandler {
	return &QuestHandler{daily: d, level: l, progress: p, audit: a, logger: logger}
}

// ListDaily handles GET /api/quests/daily.
// Generates today's set on first access.
func (h *QuestHandler) ListDaily(c *gin.Context) {
	owner := mw.GetOwner(c)
	views, err := h.daily.LoadToday(c.Request.Context(), owner)
	if err != nil {
		writeRewardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": views})
}

// ClaimDaily handles POST /api/quests/daily/:id/claim.
func (h *QuestHandler) ClaimDaily(c *gin.Context) {
	owner := mw.GetOwner(c)
	questID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	res, err := h.daily.Claim(c.Request.Context(), owner, questID)
	h.audit.Log(audit.Entry{
		TraceID:  mw.GetTraceID(c),
		Owner:    owner,
		Action:   "daily_claim",
		Request:  gin.H{"quest_id": questID},
		Response: res,
		Error:    errString(err),
		IP:       c.ClientIP(),
	})
	if err != nil {
		writeRewardError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListLevel handles GET /api/quests/level.
// Syncs unlocks against the owner's current level before returning.
func (h *QuestHandler) ListLevel(c *gin.Context) {
	owner := mw.GetOwner(c)
	views, err := h.level.Load(c.Request.Context(), owner)
	if err != nil {
		writeRewardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": views})
}

// ClaimLevel handles POST /api/quests/level/:id/claim.
func (h *QuestHandler) ClaimLevel(c *gin.Context) {
	owner := mw.GetOwner(c)
	questID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	res, err := h.level.Claim(c.Request.Context(), owner, questID)
	h.audit.Log(audit.Entry{
		TraceID:  mw.GetTraceID(c),
		Owner:    owner,
		Action:   "level_claim",
		Request:  gin.H{"quest_id": questID},
		Response: res,
		Error:    errString(err),
		IP:       c.ClientIP(),
	})
	if err != nil {
		writeRewardError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type progressRequest struct {
	QuestType string `json:"quest_type" binding:"required,max=64"`
	Increment int    `json:"increment" binding:"required,min=1"`
}

// TrackProgress handles POST /api/quests/progress.
// One progress event fans out to every matching daily and level quest.
func (h *QuestHandler) TrackProgress(c *gin.Context) {
	owner := mw.GetOwner(c)
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.progress.Dispatch(c.Request.Context(), progress.Event{
		Owner:     owner,
		QuestType: req.QuestType,
		Increment: req.Increment,
	})
	if err != nil {
		writeRewardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
