// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	_ "homehive/docs" // swagger docs
	"homehive/internal/bootstrap"
	"homehive/internal/cache"
	"homehive/internal/config"
	"homehive/internal/middleware"
	"homehive/internal/models"
	"homehive/internal/notifications"
	"homehive/internal/repository"
	"homehive/internal/service"
	"homehive/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	runtime        *bootstrap.Runtime

	userRepo       repository.UserRepository
	listingRepo    repository.ListingRepository
	engagementRepo repository.EngagementRepository
	commentRepo    repository.CommentRepository
	messageRepo    repository.MessageRepository

	store             storage.Store
	mediaService      *service.MediaService
	engagementService *service.EngagementService
	catalogService    *service.CatalogService
	messagingService  *service.MessagingService
	userService       *service.UserService

	limiter  *middleware.RateLimiter
	notifier *notifications.Notifier
	hub      *notifications.Hub
}

// NewServer creates a new server instance with all dependencies. The runtime
// (database, Redis, tracing) is owned by the server and released by Shutdown.
func NewServer(cfg *config.Config, opts bootstrap.Options) (*Server, error) {
	store, err := storage.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("media storage: %w", err)
	}

	opts.ApplySchema = true
	rt, err := bootstrap.InitRuntime(cfg, opts)
	if err != nil {
		return nil, err
	}

	s, err := NewServerWithDeps(cfg, rt.DB, rt.Redis, store)
	if err != nil {
		_ = rt.Close(context.Background())
		return nil, err
	}
	s.runtime = rt
	return s, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.Store) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("config and database are required")
	}
	if store == nil {
		return nil, errors.New("media store is required")
	}
	s := newServer(cfg, db, redisClient, store)
	s.promMiddleware = middleware.InitMetrics("homehive-api")
	return s, nil
}

func newServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.Store) *Server {
	s := &Server{
		config: cfg,
		db:     db,
		redis:  redisClient,
		store:  store,
	}
	s.limiter = middleware.NewRateLimiter(redisClient, cfg.RateLimitsEnabled())

	s.userRepo = repository.NewUserRepository(db)
	s.listingRepo = repository.NewListingRepository(db, s.userRepo)
	s.engagementRepo = repository.NewEngagementRepository(db)
	s.commentRepo = repository.NewCommentRepository(db)
	s.messageRepo = repository.NewMessageRepository(db)

	s.mediaService = service.NewMediaService(store)
	s.engagementService = service.NewEngagementService(s.engagementRepo, s.listingRepo, s.commentRepo)
	s.catalogService = service.NewCatalogService(s.listingRepo, s.mediaService, cfg.PublicBaseURL)
	s.messagingService = service.NewMessagingService(s.messageRepo, s.userRepo, s.mediaService)
	s.userService = service.NewUserService(s.userRepo, s.mediaService)

	// Without Redis the hub still serves sockets connected to this instance.
	s.hub = notifications.NewHub(redisClient)
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
	}
	return s
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers. Media is embedded cross-origin by the web client.
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Objects written by the local store are served from disk.
	if s.config.StorageDriver == "" || s.config.StorageDriver == config.StorageLocal {
		if prefix := s.config.MediaBaseURL; strings.HasPrefix(prefix, "/") {
			app.Static(prefix, s.config.MediaDir, fiber.Static{
				MaxAge: 86400,
			})
		}
	}

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", s.limiter.Limit("signup", 3, 10*time.Minute), s.Signup)
	auth.Post("/login", s.limiter.Limit("login", 10, 5*time.Minute), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Post("/password/forgot", s.limiter.Limit("password_forgot", 3, 15*time.Minute), s.ForgotPassword)
	auth.Post("/password/reset", s.limiter.Limit("password_reset", 5, 15*time.Minute), s.ResetPassword)

	// Public listing routes; a bearer token only personalises liked/saved flags.
	listings := api.Group("/listings")
	listings.Get("/", s.OptionalAuth(), s.GetListings)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	listings.Get("/:id/likes", s.OptionalAuth(), s.GetLikeState)
	listings.Get("/:id/comments/count", s.GetCommentCount)
	listings.Get("/:id/comments", s.GetComments)
	listings.Get("/:id/share", s.GetShareLinks)
	listings.Get("/:id", s.OptionalAuth(), s.GetListing)

	listings.Post("/", s.AuthRequired(), s.limiter.Limit("create_listing", 5, 10*time.Minute), s.CreateListing)
	listings.Post("/:id/like", s.AuthRequired(), s.limiter.Limit("toggle_like", 60, time.Minute), s.ToggleLike)
	listings.Post("/:id/favorite", s.AuthRequired(), s.limiter.Limit("toggle_favorite", 60, time.Minute), s.ToggleFavorite)
	listings.Post("/:id/comments", s.AuthRequired(), s.limiter.Limit("create_comment", 10, time.Minute), s.CreateComment)

	api.Get("/favorites", s.AuthRequired(), s.GetFavorites)

	// User routes
	users := api.Group("/users")
	users.Get("/me", s.AuthRequired(), s.GetMyProfile)
	users.Put("/me", s.AuthRequired(), s.UpdateMyProfile)
	users.Post("/me/avatar", s.AuthRequired(), s.limiter.Limit("upload_avatar", 10, 10*time.Minute), s.UploadAvatar)
	users.Post("/me/cover", s.AuthRequired(), s.limiter.Limit("upload_cover", 10, 10*time.Minute), s.UploadCover)
	users.Get("/search", s.limiter.Limit("search_users", 30, time.Minute), s.SearchUsers)
	users.Get("/:id/listings", s.OptionalAuth(), s.GetUserListings)
	users.Get("/:id", s.GetUserProfile)

	// Direct messages
	messages := api.Group("/messages", s.AuthRequired())
	messages.Get("/", s.GetInbox)
	messages.Get("/:peerId", s.GetConversation)
	messages.Post("/:peerId", s.limiter.Limit("send_message", 30, time.Minute), s.SendMessage)

	// WebSocket ticket issuance
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)

	// Websocket endpoint - protected by AuthRequired
	api.Get("/ws", s.AuthRequired(), s.WebsocketHandler())

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis is considered required for full readiness in this app
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// authenticate resolves the caller from a single-use WebSocket ticket or a bearer
// token. It returns zero and an error describing why when neither is valid.
func (s *Server) authenticate(c *fiber.Ctx) (uint, error) {
	isWSPath := strings.HasPrefix(c.Path(), "/api/ws") && c.Path() != "/api/ws/ticket"

	// 1. Try WebSocket ticket first (short-lived, single-use)
	if ticket := c.Query("ticket"); ticket != "" && s.redis != nil {
		key := cache.WSTicketKey(ticket)
		userIDStr, err := s.redis.GetDel(c.Context(), key).Result()
		if err == nil {
			if userID, parseErr := strconv.ParseUint(userIDStr, 10, 32); parseErr == nil && userID > 0 {
				return uint(userID), nil
			}
		}
		// If ticket was provided but invalid/expired, we fail if it's a WS path
		if isWSPath {
			return 0, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
		}
	}

	// 2. Fall back to the bearer token
	tokenString, err := middleware.BearerToken(c)
	if err != nil {
		return 0, models.NewUnauthorizedError("Authorization required")
	}
	claims, err := middleware.ParseUserToken(s.config.JWTSecret, tokenString)
	if err != nil {
		return 0, models.NewUnauthorizedError("Invalid or expired token")
	}

	// Check JTI for revocation
	if claims.JTI != "" && s.redis != nil {
		revoked, err := s.redis.Exists(c.Context(), cache.TokenBlacklistKey(claims.JTI)).Result()
		if err == nil && revoked > 0 {
			return 0, models.NewUnauthorizedError("Token has been revoked")
		}
	}
	return claims.UserID, nil
}

func setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	// Sync to UserContext for logging and downstream services
	c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := s.authenticate(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}
		setUser(c, userID)
		return c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		if userID, err := s.authenticate(c); err == nil {
			setUser(c, userID)
		}
		return c.Next()
	}
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName:   "Home Hive API",
		BodyLimit: s.config.MaxUploadBytes(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return c.Status(fiberErr.Code).JSON(models.ErrorResponse{Error: fiberErr.Message})
			}
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Wire the hub to the Redis subscriber if available
	if s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
			}
		}()
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the wiring goroutine
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	// Close WebSocket connections gracefully
	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			log.Printf("error shutting down %s: %v", s.hub.Name(), err)
		}
	}

	if s.runtime != nil {
		if err := s.runtime.Close(ctx); err != nil {
			log.Printf("error closing runtime: %v", err)
		}
		log.Println("Server shutdown complete")
		return nil
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
