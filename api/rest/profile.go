package rest

import (
	"net/http"

	"github.com/cuonghoang741/vivivi-server/game/economy"
	"github.com/cuonghoang741/vivivi-server/game/stats"
	mw "github.com/cuonghoang741/vivivi-server/middleware"
	"github.com/gin-gonic/gin"
)

// ProfileHandler serves the owner's combined progression snapshot.
type ProfileHandler struct {
	economy *economy.Service
	stats   *stats.Service
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(eco *economy.Service, st *stats.Service) *ProfileHandler {
	return &ProfileHandler{economy: eco, stats: st}
}

// Get handles GET /api/profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	owner := mw.GetOwner(c)
	ctx := c.Request.Context()

	st, err := h.stats.GetOrCreate(ctx, owner)
	if err != nil {
		writeRewardError(c, err)
		return
	}
	bal, err := h.economy.Balance(ctx, owner)
	if err != nil {
		writeRewardError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":   st,
		"balance": bal,
		"guest":   owner.IsGuest(),
	})
}
