package rest

import (
	"net/http"

	"github.com/cuonghoang741/vivivi-server/audit"
	"github.com/cuonghoang741/vivivi-server/game/loginreward"
	mw "github.com/cuonghoang741/vivivi-server/middleware"
	"github.com/gin-gonic/gin"
)

// LoginRewardHandler handles the daily login reward REST endpoints.
type LoginRewardHandler struct {
	svc   *loginreward.Service
	audit *audit.Service
}

// NewLoginRewardHandler creates a LoginRewardHandler.
func NewLoginRewardHandler(svc *loginreward.Service, a *audit.Service) *LoginRewardHandler {
	return &LoginRewardHandler{svc: svc, audit: a}
}

// Status handles GET /api/login-reward.
func (h *LoginRewardHandler) Status(c *gin.Context) {
	owner := mw.GetOwner(c)
	status, err := h.svc.Hydrate(c.Request.Context(), owner)
	if err != nil {
		writeRewardError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Claim handles POST /api/login-reward/claim.
func (h *LoginRewardHandler) Claim(c *gin.Context) {
	owner := mw.GetOwner(c)
	res, err := h.svc.Claim(c.Request.Context(), owner)
	h.audit.Log(audit.Entry{
		TraceID:  mw.GetTraceID(c),
		Owner:    owner,
		Action:   "login_reward_claim",
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
