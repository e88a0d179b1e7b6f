package rest

import (
	"net/http"
	"strconv"

	"github.com/cuonghoang741/vivivi-server/audit"
	"github.com/cuonghoang741/vivivi-server/game/milestone"
	mw "github.com/cuonghoang741/vivivi-server/middleware"
	"github.com/gin-gonic/gin"
)

// MilestoneHandler handles relationship milestone REST endpoints. The
// relationship level is supplied by the companion backend that owns it.
type MilestoneHandler struct {
	svc   *milestone.Service
	audit *audit.Service
}

// NewMilestoneHandler creates a MilestoneHandler.
func NewMilestoneHandler(svc *milestone.Service, a *audit.Service) *MilestoneHandler {
	return &MilestoneHandler{svc: svc, audit: a}
}

// Status handles GET /api/milestones/:character?level=N.
func (h *MilestoneHandler) Status(c *gin.Context) {
	owner := mw.GetOwner(c)
	character := c.Param("character")
	level, err := strconv.Atoi(c.DefaultQuery("level", "0"))
	if err != nil || level < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid level"})
		return
	}

	views, err := h.svc.Status(c.Request.Context(), owner, character, level)
	if err != nil {
		writeRewardError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestones": views})
}

type milestoneClaimRequest struct {
	RelationshipLevel int `json:"relationship_level" binding:"required,min=1"`
}

// Claim handles POST /api/milestones/:character/:milestone/claim.
func (h *MilestoneHandler) Claim(c *gin.Context) {
	owner := mw.GetOwner(c)
	character := c.Param("character")
	ms, err := strconv.Atoi(c.Param("milestone"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid milestone"})
		return
	}
	var req milestoneClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.Claim(c.Request.Context(), owner, character, ms, req.RelationshipLevel)
	h.audit.Log(audit.Entry{
		TraceID:  mw.GetTraceID(c),
		Owner:    owner,
		Action:   "milestone_claim",
		Request:  gin.H{"character": character, "milestone": ms, "relationship_level": req.RelationshipLevel},
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
