/**
 * @description
 * Main entry point for the Savings Circle API.
 * Initializes the Fiber web server, loads configuration, and sets up routes.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: Web framework
 * - github.com/savings-circle/backend/internal/config: Config loader
 * - github.com/savings-circle/backend/internal/db: Database connections
 * - github.com/savings-circle/backend/internal/api: Routes and service wiring
 *
 * @notes
 * - Connects to Postgres and Redis on startup. Neynar and the chain RPC are optional.
 * - Sets up basic middleware (CORS, Logger, Recover, Metrics).
 */

package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/savings-circle/backend/internal/api"
	"github.com/savings-circle/backend/internal/api/middleware"
	"github.com/savings-circle/backend/internal/chain"
	"github.com/savings-circle/backend/internal/config"
	"github.com/savings-circle/backend/internal/db"
	"github.com/savings-circle/backend/internal/integrations/neynar"
	"github.com/savings-circle/backend/internal/logger"
	"github.com/savings-circle/backend/internal/metrics"
	"github.com/savings-circle/backend/internal/services"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	logger.Setup(cfg.Server.Env)
	defer logger.Sync()

	// 2. Initialize Database Connections
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to Postgres: %v", err)
	}
	if cfg.DB.AutoMigrate {
		if err := db.RunMigrations(cfg.DB.URL); err != nil {
			logger.Fatal("Failed to run migrations: %v", err)
		}
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to Redis: %v", err)
	}

	// 3. External integrations
	var profiles services.ProfileProvider
	if cfg.Services.NeynarAPIKey != "" {
		profiles = neynar.NewClient(cfg)
	}

	var reader services.CircleChainReader
	if eth, err := chain.Dial(cfg.Chain.RPCURL); err != nil {
		logger.Warn("Chain RPC unavailable, circle views disabled: %v", err)
	} else if r, err := chain.NewCircleReader(eth, cfg.Chain.ReadTimeout); err != nil {
		logger.Warn("Circle reader init failed: %v", err)
	} else {
		reader = r
	}

	svc := api.NewServices(cfg, pgDB, redisClient, profiles, reader)
	defer svc.Close()

	// 4. Auth and rate limiting
	keyfunc, stopKeys, err := middleware.LoadQuickAuthKeys(cfg)
	if err != nil {
		// Cookie sessions still work without the JWKS
		logger.Error("%v", err)
	}
	defer stopKeys()

	auth := middleware.NewAuthenticator(svc.Sessions, svc.Users, middleware.AuthOptions{
		CookieName: cfg.Auth.SessionCookieName,
		Audience:   cfg.Auth.QuickAuthDomain,
		Keyfunc:    keyfunc,
	})

	var limiter *middleware.RateLimiter
	stopCleanup := make(chan struct{})
	if cfg.Server.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
		limiter.StartCleanup(5*time.Minute, stopCleanup)
	}

	// 5. Initialize Fiber App
	app := fiber.New(fiber.Config{
		AppName:       "Savings Circle API",
		StrictRouting: true,
		CaseSensitive: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
				return c.Status(code).JSON(fiber.Map{"error": fe.Message})
			}
			logger.Error("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
			return c.Status(code).JSON(fiber.Map{"error": "Internal server error"})
		},
	})

	// 6. Global Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PATCH, OPTIONS",
		AllowCredentials: cfg.Server.CORSOrigins != "*",
	}))
	app.Use(middleware.Metrics())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// 7. Routes
	api.SetupRoutes(app, svc, auth, limiter)

	// 8. Start Server
	go func() {
		logger.Info("Starting Savings Circle API on port %s", cfg.Server.Port)
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API...")
	close(stopCleanup)
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
	logger.Info("API exited.")
}
