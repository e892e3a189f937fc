package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/bridge"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/dispatcher"
	"messaging-service/internal/handlers"
	"messaging-service/internal/logging"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(cfg.ServiceName, cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		log.Warn().Err(err).Msg("connection event publishing disabled")
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer auditPublisher.Close()
	audit := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, log)

	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	registry := ws.NewRegistry(log)
	disp := dispatcher.New(roomRepo, messageRepo, registry, log)
	sessionBridge := bridge.New(roomRepo, bridge.NewSQLMappingStore(database), log)

	roomHandler := handlers.NewRoomHandler(roomRepo, disp, audit, log)
	messageHandler := handlers.NewMessageHandler(roomRepo, messageRepo, disp, audit, log)
	bridgeHandler := handlers.NewBridgeHandler(sessionBridge, audit, log)
	wsHandler := ws.NewHandler(registry, disp, cfg.WSWriteTimeout, log)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "active_connections": registry.ActiveConns()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	identity := middleware.Identity()

	router.POST("/rooms", identity, roomHandler.CreateRoom)
	router.GET("/rooms", identity, roomHandler.ListRooms)
	router.GET("/rooms/:room_id", identity, roomHandler.GetRoom)
	router.DELETE("/rooms/:room_id", identity, roomHandler.DeactivateRoom)
	router.POST("/rooms/:room_id/join", identity, roomHandler.JoinRoom)
	router.POST("/rooms/:room_id/leave", identity, roomHandler.LeaveRoom)

	router.POST("/rooms/:room_id/messages", identity, messageHandler.PostMessage)
	router.GET("/rooms/:room_id/messages", identity, messageHandler.ListMessages)
	router.POST("/rooms/:room_id/messages/:message_id/read", identity, messageHandler.MarkRead)
	router.PUT("/rooms/:room_id/messages/:message_id", identity, messageHandler.EditMessage)
	router.POST("/rooms/:room_id/messages/:message_id/reactions", identity, messageHandler.AddReaction)

	router.POST("/bridge/sessions/:session_id/room", identity, bridgeHandler.EnsureRoom)

	router.GET("/ws/:user_id", wsHandler.Handle)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("messaging service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	notice, _ := json.Marshal(models.Event{Type: models.EventSystem, Text: "server is shutting down"})
	registry.CloseAll(notice)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}
