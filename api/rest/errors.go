package rest

import (
	"errors"
	"net/http"

	"github.com/cuonghoang741/vivivi-server/game/reward"
	"github.com/gin-gonic/gin"
)

// writeRewardError maps the claim failure taxonomy onto HTTP status codes.
// Anything outside the taxonomy is a store failure and reported as 502 so
// the client can tell "retry later" from "this claim is invalid".
func writeRewardError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reward.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, reward.ErrNotCompleted):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "quest not completed"})
	case errors.Is(err, reward.ErrAlreadyClaimed):
		c.JSON(http.StatusConflict, gin.H{"error": "already claimed"})
	case errors.Is(err, reward.ErrNotEligible):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not eligible"})
	case errors.Is(err, reward.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": "reward table not ready"})
	case errors.Is(err, reward.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "store failure"})
	}
}
