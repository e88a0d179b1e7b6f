package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuonghoang741/vivivi-server/api/rest"
	"github.com/cuonghoang741/vivivi-server/api/sse"
	"github.com/cuonghoang741/vivivi-server/audit"
	"github.com/cuonghoang741/vivivi-server/config"
	"github.com/cuonghoang741/vivivi-server/game/catalog"
	"github.com/cuonghoang741/vivivi-server/game/daily"
	"github.com/cuonghoang741/vivivi-server/game/economy"
	"github.com/cuonghoang741/vivivi-server/game/levelquest"
	"github.com/cuonghoang741/vivivi-server/game/loginreward"
	"github.com/cuonghoang741/vivivi-server/game/milestone"
	"github.com/cuonghoang741/vivivi-server/game/notify"
	"github.com/cuonghoang741/vivivi-server/game/progress"
	"github.com/cuonghoang741/vivivi-server/game/stats"
	mw "github.com/cuonghoang741/vivivi-server/middleware"
	"github.com/cuonghoang741/vivivi-server/scheduler"
	"github.com/cuonghoang741/vivivi-server/testutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testClientID = "11111111-2222-3333-4444-555555555555"
const testAdminKey = "test-admin-key"

// newTestServer wires the full progression API the way main does, on an
// in-memory store.
func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)
	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(nil) })

	sec := config.SecurityConfig{
		JWTSecret: "test-secret",
		JWTTTLH:   72 * time.Hour,
	}

	notifyCenter := notify.NewCenter(sched, ps, notify.Config{}, logger)
	catalogSvc := catalog.NewService(db)
	economySvc := economy.NewService(db, logger)
	statsSvc := stats.NewService(db, logger)
	dailySvc := daily.NewService(db, catalogSvc, economySvc, statsSvc, notifyCenter, daily.Config{}, logger)
	levelSvc := levelquest.NewService(db, catalogSvc, economySvc, statsSvc, notifyCenter, logger)
	loginSvc := loginreward.NewService(db, catalogSvc, economySvc, statsSvc, notifyCenter, logger)
	milestoneSvc := milestone.NewService(db, economySvc, statsSvc, notifyCenter, logger)

	progressHub := progress.NewDispatcher(logger)
	progressHub.Register("daily_quests", 10, func(ctx context.Context, ev progress.Event) error {
		return dailySvc.TrackProgress(ctx, ev.Owner, ev.QuestType, ev.Increment)
	})
	progressHub.Register("level_quests", 20, func(ctx context.Context, ev progress.Event) error {
		return levelSvc.TrackProgress(ctx, ev.Owner, ev.QuestType, ev.Increment)
	})

	sseH := sse.NewHandler(ps, c, sec, logger)
	authH := rest.NewAuthHandler(db, c, sec)
	questH := rest.NewQuestHandler(dailySvc, levelSvc, progressHub, auditSvc, logger)
	loginH := rest.NewLoginRewardHandler(loginSvc, auditSvc)
	milestoneH := rest.NewMilestoneHandler(milestoneSvc, auditSvc)
	profileH := rest.NewProfileHandler(economySvc, statsSvc)
	adminH := rest.NewAdminHandler(db, sched, sseH, logger)

	r := gin.New()
	r.Use(mw.TraceID())
	api := r.Group("/api")

	authG := api.Group("/auth")
	authG.POST("/login", authH.Login)
	authG.POST("/logout", mw.Auth(sec, c), authH.Logout)
	authG.POST("/refresh", mw.Auth(sec, c), authH.Refresh)

	questsG := api.Group("/quests")
	questsG.Use(mw.Auth(sec, c))
	questsG.GET("/daily", questH.ListDaily)
	questsG.POST("/daily/:id/claim", questH.ClaimDaily)
	questsG.GET("/level", questH.ListLevel)
	questsG.POST("/level/:id/claim", questH.ClaimLevel)
	questsG.POST("/progress", questH.TrackProgress)

	loginG := api.Group("/login-reward")
	loginG.Use(mw.Auth(sec, c))
	loginG.GET("", loginH.Status)
	loginG.POST("/claim", loginH.Claim)

	milestonesG := api.Group("/milestones")
	milestonesG.Use(mw.Auth(sec, c))
	milestonesG.GET("/:character", milestoneH.Status)
	milestonesG.POST("/:character/:milestone/claim", milestoneH.Claim)

	profileG := api.Group("/profile")
	profileG.Use(mw.Auth(sec, c))
	profileG.GET("", profileH.Get)

	adminG := api.Group("/admin")
	adminG.Use(rest.AdminAuth(testAdminKey))
	adminG.GET("/metrics", adminH.Metrics)
	adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	adminG.GET("/audits", adminH.RecentAudits)
	adminG.POST("/accounts/:id/ban", adminH.BanAccount)
	adminG.POST("/announce", adminH.Announce)

	return r, db
}

func doJSON(r *gin.Engine, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodPost, path, body, headers...)
}

func getJSON(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodGet, path, nil, headers...)
}

// asGuest appends the guest identity header pair.
func asGuest(headers ...string) []string {
	return append([]string{mw.ClientIDHeader, testClientID}, headers...)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}
