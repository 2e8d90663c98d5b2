package router

import (
	"time"

	"convive/config"
	"convive/internal/changefeed"
	"convive/internal/domain"
	"convive/internal/handler"
	"convive/internal/middleware"
	"convive/internal/repository"
	"convive/internal/service"
	"convive/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	incidentRepo := repository.NewIncidentRepository(db)
	chatRepo := repository.NewChatRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)

	// Realtime infrastructure
	feed := changefeed.NewFeed(cfg.Realtime.FeedBuffer)
	hub := ws.NewHub()
	presenceHub := ws.NewPresenceHub(cfg.Realtime.PresenceTTL, cfg.Realtime.SweepInterval,
		func(change ws.PresenceChange) {
			hub.BroadcastToInstitution(change.InstitutionID, gin.H{
				"type":    "presence",
				"user_id": change.UserID,
				"online":  change.Online,
			})
		})

	// Services
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, feed)
	alertSvc := service.NewAlertService(alertRepo)
	incidentSvc := service.NewIncidentService(incidentRepo, feed)
	chatSvc := service.NewChatService(chatRepo, feed)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo, feed)

	// Handlers
	authHandler := handler.NewAuthHandler(cfg, userRepo)
	notificationHandler := handler.NewNotificationHandler(notifSvc)
	badgeHandler := handler.NewBadgeHandler(notifSvc, incidentSvc, chatSvc)
	chatHandler := handler.NewChatHandler(chatSvc)
	incidentHandler := handler.NewIncidentHandler(incidentSvc)
	presenceHandler := handler.NewPresenceHandler(availabilitySvc, presenceHub)
	triggerHandler := handler.NewTriggerHandler(notifSvc, alertSvc, incidentSvc, chatSvc, userRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "convive"})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", authHandler.Login)

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/read", notificationHandler.MarkRead)
			me.GET("/badges", badgeHandler.Get)
			me.GET("/conversations", chatHandler.ListConversations)
			me.GET("/conversations/:id/messages", chatHandler.GetMessages)
			me.POST("/conversations/:id/messages", chatHandler.SendMessage)
			me.PUT("/conversations/:id/read", chatHandler.MarkRead)
			me.GET("/cases", incidentHandler.ListMine)
			me.PUT("/cases/seen", incidentHandler.MarkSeen)
			me.PATCH("/availability", presenceHandler.SetAvailability)
			me.GET("/availability", presenceHandler.GetMyAvailability)
		}
		api.GET("/availability", authMw, presenceHandler.AvailabilityMap)
		api.GET("/presence/online", authMw, presenceHandler.Online)

		internal := api.Group("/internal")
		internal.Use(authMw, middleware.RequireRole(domain.RoleAdmin, domain.RoleServicio, domain.RoleDirectivo, domain.RoleDupla))
		{
			internal.POST("/notifications", triggerHandler.CreateNotifications)
			internal.POST("/alerts", triggerHandler.CreateAlert)
			internal.POST("/recipients/resolve", triggerHandler.ResolveRecipients)
			internal.POST("/incidents/:id/recipients", triggerHandler.AddIncidentRecipients)
			internal.POST("/messages/deliver", triggerHandler.DeliverMessage)
		}
	}

	r.GET("/ws/realtime", handler.UpgradeRealtimeWS(&cfg.JWT, handler.RealtimeDeps{
		Hub:           hub,
		Presence:      presenceHub,
		Feed:          feed,
		Notifications: notifSvc,
		Incidents:     incidentSvc,
		Chat:          chatSvc,
	}))

	return r
}
