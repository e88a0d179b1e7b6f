package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cuonghoang741/vivivi-server/cache"
	"github.com/cuonghoang741/vivivi-server/config"
	"github.com/cuonghoang741/vivivi-server/game/notify"
	mw "github.com/cuonghoang741/vivivi-server/middleware"
	"github.com/cuonghoang741/vivivi-server/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const announceChannel = "announce"

// Handler handles the SSE notification feed.
type Handler struct {
	pubsub cache.PubSub
	sec    config.SecurityConfig
	c      cache.Cache
	logger *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, c: c, sec: sec, logger: logger}
}

// resolveOwner authenticates the stream the same way the REST middleware
// does, but from query params: EventSource cannot set headers, so users
// pass ?token=<jwt> and guests pass ?client_id=<uuid>.
func (h *Handler) resolveOwner(c *gin.Context) (model.Owner, bool) {
	if tokenStr := c.Query("token"); tokenStr != "" {
		claims, err := mw.ParseToken(tokenStr, h.sec.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return model.Owner{}, false
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		exists, err := h.c.Exists(ctx, "session:"+tokenStr)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return model.Owner{}, false
		}
		return model.UserOwner(claims.AccountID), true
	}

	if clientID := c.Query("client_id"); clientID != "" {
		if _, err := uuid.Parse(clientID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client id"})
			return model.Owner{}, false
		}
		return model.GuestOwner(clientID), true
	}

	c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
	return model.Owner{}, false
}

// ServeSSE handles GET /sse?token=<jwt> or GET /sse?client_id=<uuid>.
// It streams the owner's notification feed plus system announcements.
func (h *Handler) ServeSSE(c *gin.Context) {
	owner, ok := h.resolveOwner(c)
	if !ok {
		return
	}

	// Set SSE headers.
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	ownerChannel := notify.Channel(owner)
	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, ownerChannel, announceChannel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	// Send initial connected event.
	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			event := "notification"
			if msg.Channel == announceChannel {
				event = "announce"
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}

// Announce publishes a system announcement to all SSE subscribers.
func (h *Handler) Announce(ctx context.Context, message string) error {
	return h.pubsub.Publish(ctx, announceChannel, message)
}
