package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"studio-messaging/internal/api"
	"studio-messaging/internal/autoreply"
	"studio-messaging/internal/cloudapi"
	"studio-messaging/internal/config"
	"studio-messaging/internal/database"
	"studio-messaging/internal/reminder"
	"studio-messaging/internal/store"
	"studio-messaging/internal/templates"
	"studio-messaging/internal/tracker"
	"studio-messaging/internal/wa"
	"studio-messaging/internal/webhook"
	"studio-messaging/internal/ws"
	"studio-messaging/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	if err := logger.Init(cfg.LogPath); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Open(cfg)
	if err != nil {
		logger.L().Fatal("failed to open database", zap.Error(err))
	}
	if err := database.SeedTemplates(db); err != nil {
		logger.L().Fatal("failed to seed templates", zap.Error(err))
	}

	messageStore := store.NewMessageStore(db)
	templateStore := store.NewTemplateStore(db)
	reminderStore := store.NewReminderStore(db)
	appointmentStore := store.NewAppointmentStore(db)

	rules := autoreply.DefaultRules()
	if cfg.AutoReplyRulesPath != "" {
		rules, err = autoreply.LoadRules(cfg.AutoReplyRulesPath)
		if err != nil {
			logger.L().Fatal("failed to load auto-reply rules", zap.Error(err))
		}
	}

	messageTracker := tracker.New(messageStore, logger.L())
	renderer := templates.NewRenderer(templateStore)
	processor := autoreply.NewProcessor(rules)
	waTransport := cloudapi.NewTransport(cfg, logger.L())

	gateway := wa.NewGateway(waTransport, messageTracker, renderer, processor, logger.L())

	hub := ws.NewHub(logger.L())
	go hub.Run()
	gateway.SetNotifier(hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := gateway.Start(ctx); err != nil {
		logger.L().Fatal("failed to start whatsapp gateway", zap.Error(err))
	}
	defer gateway.Stop()

	scheduler := reminder.NewScheduler(reminderStore, appointmentStore, gateway, logger.L(), reminder.Options{
		Interval:      cfg.SweepInterval,
		RetryLimit:    cfg.ReminderRetryLimit,
		CountryPrefix: cfg.CountryPrefix,
		StudioAddress: cfg.StudioAddress,
	})
	go scheduler.Run(ctx)

	webhookHandler := webhook.NewHandler(cfg, waTransport, logger.L())
	whatsappHandler := api.NewWhatsAppHandler(gateway, messageStore)
	messageHandler := api.NewMessageHandler(messageStore)
	templateHandler := api.NewTemplateHandler(templateStore, renderer)
	reminderHandler := api.NewReminderHandler(scheduler, reminderStore)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Webhook Routes
	r.GET("/webhook", webhookHandler.Verify)
	r.POST("/webhook", webhookHandler.Receive)

	// Dashboard live updates
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/whatsapp/status", whatsappHandler.GetStatus)
		apiGroup.POST("/whatsapp/send", whatsappHandler.SendMessage)
		apiGroup.POST("/whatsapp/send-template", whatsappHandler.SendTemplate)

		apiGroup.GET("/messages", messageHandler.ListMessages)

		apiGroup.GET("/templates", templateHandler.ListTemplates)
		apiGroup.POST("/templates", templateHandler.CreateTemplate)
		apiGroup.PUT("/templates/:name", templateHandler.UpdateTemplate)
		apiGroup.DELETE("/templates/:name", templateHandler.DeleteTemplate)
		apiGroup.POST("/templates/:name/preview", templateHandler.PreviewTemplate)

		apiGroup.GET("/appointments/:id/reminders", reminderHandler.ListReminders)
		apiGroup.POST("/appointments/:id/reminders", reminderHandler.CreateReminders)
		apiGroup.DELETE("/appointments/:id/reminders", reminderHandler.CancelReminders)
	}

	logger.L().Info("server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}
