// Package api serves the node dashboard HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/bridgeguard/nodeguard/internal/config"
	"github.com/bridgeguard/nodeguard/internal/store"
)

// NewServer wires routes and middleware. gatherer may be nil, in which case /metrics
// serves the default registry.
func NewServer(serverConfig *config.ServerEnvConfig, node NodeService, snapshots store.SnapshotStore, gatherer prometheus.Gatherer) *Server {
	if serverConfig == nil {
		serverConfig = &config.ServerEnvConfig{
			Address:       DefaultServerHost,
			Port:          DefaultServerPort,
			BodySizeLimit: DefaultBodyLimit,
			RateLimit:     DefaultRateLimit,
		}
	}
	if serverConfig.BodySizeLimit <= 0 {
		serverConfig.BodySizeLimit = DefaultBodyLimit
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	log.Info().
		Any("serverConfig", serverConfig).
		Msg("Server configuration loaded")

	app := fiber.New(fiber.Config{
		Prefork:               false,
		DisableStartupMessage: true,
		ErrorHandler:          fiberErrHandler,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		BodyLimit:             serverConfig.BodySizeLimit,
	})

	s := &Server{
		App:       app,
		config:    serverConfig,
		node:      node,
		snapshots: snapshots,
		gatherer:  gatherer,
	}

	whitelistedRoutes := []string{"/health", "/metrics"}

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	app.Use(RequestLogMiddleware())
	if serverConfig.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        serverConfig.RateLimit,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return isWhitelisted(c.Path(), whitelistedRoutes)
			},
			LimitReached: func(c *fiber.Ctx) error {
				return fail(c, fiber.StatusTooManyRequests, &APIError{Code: CodeRateLimited, Message: "too many requests"}, nil)
			},
		}))
	}
	app.Use(ZstdMiddleware(whitelistedRoutes))

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := app.Group("/api/v1")
	v1.Get("/node/status", s.handleNodeStatus)
	v1.Get("/node/sync", s.handleSyncState)
	v1.Get("/node/snapshot", s.handleSnapshot)
	v1.Get("/node/snapshots", s.handleSnapshotHistory)
	v1.Get("/node/block", s.handleLatestBlock)
	v1.Get("/validator/info", s.handleValidatorInfo)
	v1.Get("/account/:address", s.handleAccount)
	v1.Post("/transaction/broadcast", s.handleBroadcast)

	return s
}

func fiberErrHandler(ctx *fiber.Ctx, err error) error {
	// Status code defaults to 500
	code := fiber.StatusInternalServerError

	// Retrieve the custom status code if it's a *fiber.Error
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	log.Error().
		Err(err).
		Int("status_code", code).
		Str("path", ctx.Path()).
		Str("method", ctx.Method()).
		Msg("Fiber error handler triggered")

	apiCode := CodeInternal
	if code != fiber.StatusInternalServerError {
		apiCode = fmt.Sprintf("HTTP_%d", code)
	}
	return fail(ctx, code, &APIError{Code: apiCode, Message: err.Error()}, nil)
}

// Address returns host:port the server listens on.
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", s.Address()).Msg("API server listening")
		errCh <- s.App.Listen(s.Address())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("API server shutting down")
	return s.App.ShutdownWithContext(ctx)
}
