package main

import (
	"context"
	"fmt"
	"log"
	"os"

	apirest "github.com/cuonghoang741/vivivi-server/api/rest"
	"github.com/cuonghoang741/vivivi-server/api/sse"
	"github.com/cuonghoang741/vivivi-server/audit"
	"github.com/cuonghoang741/vivivi-server/cache"
	"github.com/cuonghoang741/vivivi-server/config"
	dbadapter "github.com/cuonghoang741/vivivi-server/db"
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
	"github.com/cuonghoang741/vivivi-server/model"
	"github.com/cuonghoang741/vivivi-server/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Progression Engines ----
	notifyCenter := notify.NewCenter(sched, pubsub, notify.Config{
		NominalDuration: cfg.Notify.NominalDuration,
		MinDuration:     cfg.Notify.MinDuration,
		BasePause:       cfg.Notify.BasePause,
	}, logger)

	catalogSvc := catalog.NewService(db)
	economySvc := economy.NewService(db, logger)
	statsSvc := stats.NewService(db, logger)
	dailySvc := daily.NewService(db, catalogSvc, economySvc, statsSvc, notifyCenter, daily.Config{
		EasyCount:   cfg.Progression.DailyEasyCount,
		MediumCount: cfg.Progression.DailyMediumCount,
		HardCount:   cfg.Progression.DailyHardCount,
	}, logger)
	levelSvc := levelquest.NewService(db, catalogSvc, economySvc, statsSvc, notifyCenter, logger)
	loginSvc := loginreward.NewService(db, catalogSvc, economySvc, statsSvc, notifyCenter, logger)
	milestoneSvc := milestone.NewService(db, economySvc, statsSvc, notifyCenter, logger)

	// One client progress event reaches every engine tracking that quest type.
	progressHub := progress.NewDispatcher(logger)
	progressHub.Register("daily_quests", 10, func(ctx context.Context, ev progress.Event) error {
		return dailySvc.TrackProgress(ctx, ev.Owner, ev.QuestType, ev.Increment)
	})
	progressHub.Register("level_quests", 20, func(ctx context.Context, ev progress.Event) error {
		return levelSvc.TrackProgress(ctx, ev.Owner, ev.QuestType, ev.Increment)
	})

	// ---- Periodic Scheduler Tasks ----
	sched.AddTicker("daily_archive", cfg.Progression.ArchiveInterval, func() {
		if err := dailySvc.ArchiveStale(context.Background()); err != nil {
			logger.Error("daily archive failed", zap.Error(err))
		}
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- SSE notification feed ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/sse", sseH.ServeSSE)

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	questH := apirest.NewQuestHandler(dailySvc, levelSvc, progressHub, auditSvc, logger)
	loginH := apirest.NewLoginRewardHandler(loginSvc, auditSvc)
	milestoneH := apirest.NewMilestoneHandler(milestoneSvc, auditSvc)
	profileH := apirest.NewProfileHandler(economySvc, statsSvc)
	adminH := apirest.NewAdminHandler(db, sched, sseH, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		questsG := api.Group("/quests")
		questsG.Use(mw.Auth(cfg.Security, c))
		questsG.GET("/daily", questH.ListDaily)
		questsG.POST("/daily/:id/claim", questH.ClaimDaily)
		questsG.GET("/level", questH.ListLevel)
		questsG.POST("/level/:id/claim", questH.ClaimLevel)
		questsG.POST("/progress", questH.TrackProgress)

		loginG := api.Group("/login-reward")
		loginG.Use(mw.Auth(cfg.Security, c))
		loginG.GET("", loginH.Status)
		loginG.POST("/claim", loginH.Claim)

		milestonesG := api.Group("/milestones")
		milestonesG.Use(mw.Auth(cfg.Security, c))
		milestonesG.GET("/:character", milestoneH.Status)
		milestonesG.POST("/:character/:milestone/claim", milestoneH.Claim)

		profileG := api.Group("/profile")
		profileG.Use(mw.Auth(cfg.Security, c))
		profileG.GET("", profileH.Get)

		adminG := api.Group("/admin")
		adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.GET("/audits", adminH.RecentAudits)
		adminG.POST("/accounts/:id/ban", adminH.BanAccount)
		adminG.POST("/announce", adminH.Announce)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
