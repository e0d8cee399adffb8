package main

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/SparklePenguin/podpod-chat-service/internal/cache"
	"github.com/SparklePenguin/podpod-chat-service/internal/config"
	"github.com/SparklePenguin/podpod-chat-service/internal/domain"
	"github.com/SparklePenguin/podpod-chat-service/internal/handler"
	"github.com/SparklePenguin/podpod-chat-service/internal/realtime"
	"github.com/SparklePenguin/podpod-chat-service/internal/repository"
	"github.com/SparklePenguin/podpod-chat-service/internal/service"
	"github.com/SparklePenguin/podpod-chat-service/pkg/database"
	"github.com/SparklePenguin/podpod-chat-service/pkg/jwt"
	pkglog "github.com/SparklePenguin/podpod-chat-service/pkg/log"
	"github.com/SparklePenguin/podpod-chat-service/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "chat-service",
	})
	logger := pkglog.L()

	// Connect to database using GORM
	dbConfig := &database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	db, err := database.New(dbConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Auto-migrate
	if err := database.AutoMigrate(db,
		&domain.ChatRoomModel{},
		&domain.ChatMemberModel{},
		&domain.ChatMessageModel{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	// Initialize repository
	chatRepo := repository.NewGormChatRepository(db)

	// Initialize Redis cache
	roomCache, err := cache.NewRedisRoomCache(cfg.Redis, cfg.Cache.Prefix)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer roomCache.Close()
	logger.Info().Msg("redis cache connected")

	// Initialize realtime channel registry
	registry, err := realtime.NewRedisChannelRegistry(cfg.Redis, cfg.Cache.Prefix)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect realtime registry")
	}
	defer registry.Close()

	// Initialize service
	chatService := service.NewChatRoomService(chatRepo, roomCache, registry, cfg.Cache.TTL)

	// Initialize auth middleware
	jwtManager := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.AccessDuration, cfg.Auth.Issuer)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(chatService, authMiddleware)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Register routes
	httpHandler.RegisterRoutes(r)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info().Str("addr", addr).Str("driver", cfg.Database.Driver).Dur("cache_ttl", cfg.Cache.TTL).Msg("chat-service starting")
	if err := r.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}
