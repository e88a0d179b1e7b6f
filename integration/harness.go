package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apirest "github.com/cuonghoang741/vivivi-server/api/rest"
	"github.com/cuonghoang741/vivivi-server/api/sse"
	"github.com/cuonghoang741/vivivi-server/audit"
	"github.com/cuonghoang741/vivivi-server/cache"
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
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const AdminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with the full progression stack wired
// together. It mirrors the dependency wiring in main.go.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	PubSub cache.PubSub
	Notify *notify.Center
	Sched  *scheduler.Scheduler
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
	Sec    config.SecurityConfig
}

// NewTestServer creates a fully wired progression server for integration
// testing.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret:      "integration-test-secret",
		JWTTTLH:        72 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}

	sched := scheduler.New(logger)
	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(nil) })

	// Short display windows so bursts drain within test timeouts.
	notifyCenter := notify.NewCenter(sched, pubsub, notify.Config{
		NominalDuration: 50 * time.Millisecond,
		MinDuration:     10 * time.Millisecond,
		BasePause:       5 * time.Millisecond,
	}, logger)

	// ---- Progression Engines ----
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

	// ---- Gin HTTP Server ----
	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, c, sec, logger)
	r.GET("/sse", sseH.ServeSSE)

	// ---- REST API routes (mirrors main.go) ----
	authH := apirest.NewAuthHandler(db, c, sec)
	questH := apirest.NewQuestHandler(dailySvc, levelSvc, progressHub, auditSvc, logger)
	loginH := apirest.NewLoginRewardHandler(loginSvc, auditSvc)
	milestoneH := apirest.NewMilestoneHandler(milestoneSvc, auditSvc)
	profileH := apirest.NewProfileHandler(economySvc, statsSvc)
	adminH := apirest.NewAdminHandler(db, sched, sseH, logger)

	api := r.Group("/api")
	{
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
		adminG.Use(apirest.AdminAuth(AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.GET("/audits", adminH.RecentAudits)
		adminG.POST("/accounts/:id/ban", adminH.BanAccount)
		adminG.POST("/announce", adminH.Announce)
	}

	// ---- Start server ----
	server := httptest.NewServer(r)

	ts := &TestServer{
		DB:     db,
		Cache:  c,
		PubSub: pubsub,
		Notify: notifyCenter,
		Sched:  sched,
		Server: server,
		URL:    server.URL,
		Sec:    sec,
	}
	t.Cleanup(ts.Close)
	return ts
}

// Close shuts down the test server and background tasks.
func (ts *TestServer) Close() {
	ts.Sched.Stop()
	ts.Server.Close()
}

// --- HTTP helpers ---

// identity is either a Bearer token (users) or a client id (guests).
type identity struct {
	Token    string
	ClientID string
}

// User returns an identity that authenticates with a Bearer token.
func User(token string) identity { return identity{Token: token} }

// Guest returns an identity that authenticates with the guest header.
func Guest(clientID string) identity { return identity{ClientID: clientID} }

func (id identity) apply(req *http.Request) {
	if id.Token != "" {
		req.Header.Set("Authorization", "Bearer "+id.Token)
	}
	if id.ClientID != "" {
		req.Header.Set(mw.ClientIDHeader, id.ClientID)
	}
}

// PostJSON sends a POST request with JSON body under the given identity.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, id identity) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest("POST", ts.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	id.apply(req)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Get sends a GET request under the given identity.
func (ts *TestServer) Get(t *testing.T, path string, id identity) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", ts.URL+path, nil)
	require.NoError(t, err)
	id.apply(req)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Auth helpers ---

// Login logs in (auto-registers on first call) and returns the token and
// account ID.
func (ts *TestServer) Login(t *testing.T, username, password string) (token string, accountID int64) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, identity{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result map[string]interface{}
	ReadJSON(t, resp, &result)
	token = result["token"].(string)
	accountID = int64(result["account_id"].(float64))
	return
}

// UniqueID returns a short unique string suitable for usernames.
var testCounter uint64

func UniqueID(prefix string) string {
	n := atomic.AddUint64(&testCounter, 1)
	return fmt.Sprintf("%s_%d_%d", prefix, time.Now().UnixNano()%100000, n)
}

// --- SSE client ---

// SSEEvent is one parsed server-sent event.
type SSEEvent struct {
	Event string
	Data  string
}

// SSEClient consumes the notification feed in a background goroutine.
type SSEClient struct {
	Events <-chan SSEEvent
	resp   *http.Response
}

// ConnectSSE opens the SSE stream for the given identity (token or
// client_id query param) and waits for the connected event.
func (ts *TestServer) ConnectSSE(t *testing.T, id identity) *SSEClient {
	t.Helper()
	url := ts.URL + "/sse"
	switch {
	case id.Token != "":
		url += "?token=" + id.Token
	case id.ClientID != "":
		url += "?client_id=" + id.ClientID
	}

	resp, err := http.Get(url)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := make(chan SSEEvent, 64)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		var event SSEEvent
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event.Event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				event.Data = strings.TrimPrefix(line, "data: ")
			case line == "" && event.Event != "":
				events <- event
				event = SSEEvent{}
			}
		}
	}()

	client := &SSEClient{Events: events, resp: resp}
	t.Cleanup(client.Close)

	first := client.WaitFor(t, "connected", 5*time.Second)
	require.NotNil(t, first)
	return client
}

// WaitFor reads events until one with the given name arrives.
func (sc *SSEClient) WaitFor(t *testing.T, name string, timeout time.Duration) *SSEEvent {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-sc.Events:
			if !ok {
				t.Fatalf("SSE stream closed while waiting for %q", name)
				return nil
			}
			if ev.Event == name {
				return &ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for SSE event %q", name)
			return nil
		}
	}
}

// Close terminates the SSE stream.
func (sc *SSEClient) Close() {
	_ = sc.resp.Body.Close()
}
