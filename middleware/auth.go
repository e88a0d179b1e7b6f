package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cuonghoang741/vivivi-server/cache"
	"github.com/cuonghoang741/vivivi-server/config"
	"github.com/cuonghoang741/vivivi-server/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const OwnerKey = "owner"

// ClientIDHeader carries the device-generated guest identity.
const ClientIDHeader = "X-Client-ID"

// Auth resolves the caller's owner identity. Authenticated users present a
// Bearer JWT (validated against the session cache); guests present a
// device-generated UUID in X-Client-ID. Requests with neither are rejected.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			tokenStr := strings.TrimPrefix(header, "Bearer ")

			claims, err := ParseToken(tokenStr, sec.JWTSecret)
			if err != nil {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}

			// Check session still valid in cache.
			sessionKey := "session:" + tokenStr
			cacheCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
			defer cancel()
			exists, err := c.Exists(cacheCtx, sessionKey)
			if err != nil || !exists {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
				return
			}

			ctx.Set(OwnerKey, model.UserOwner(claims.AccountID))
			ctx.Next()
			return
		}

		clientID := ctx.GetHeader(ClientIDHeader)
		if clientID != "" {
			if _, err := uuid.Parse(clientID); err != nil {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid client id"})
				return
			}
			ctx.Set(OwnerKey, model.GuestOwner(clientID))
			ctx.Next()
			return
		}

		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
	}
}

// GetOwner retrieves the resolved owner identity from the Gin context.
// The zero Owner (Valid() == false) means the request was not authenticated.
func GetOwner(c *gin.Context) model.Owner {
	if v, exists := c.Get(OwnerKey); exists {
		return v.(model.Owner)
	}
	return model.Owner{}
}
