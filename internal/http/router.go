package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"jobsift/internal/config"
	"jobsift/internal/crawl"
	"jobsift/internal/metrics"
	"jobsift/internal/store"
)

// Server exposes the review API over the stored jobs plus health and
// metrics endpoints. It reads what the crawler writes; nothing here
// mutates crawl state beyond the review flags.
type Server struct {
	app      *fiber.App
	config   *config.Config
	store    *store.Store
	progress *crawl.Progress
	logger   *slog.Logger
}

// NewServer builds the fiber app. progress may be nil when the server
// runs without an in-process crawler.
func NewServer(cfg *config.Config, st *store.Store, progress *crawl.Progress, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("store", st)
		return c.Next()
	})

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		metrics.RecordRequest(c.Method(), c.Path(), status)

		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"latency_ms", time.Since(start).Milliseconds(),
			)
		}
		return err
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		// Shallow health: process is up
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := st.DB.PingContext(ctx); err != nil {
			dbStatus = "error"
		}

		status := "ok"
		if dbStatus != "ok" {
			status = "error"
		}
		return c.JSON(fiber.Map{"status": status, "db": dbStatus})
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	v1 := app.Group("/v1")
	v1.Get("/jobs", jobsListHandler)
	v1.Get("/jobs/detail", jobDetailHandler)
	v1.Post("/jobs/mark", markHandler)
	v1.Post("/jobs/applied", appliedHandler)
	v1.Get("/progress", progressHandler(progress))

	return &Server{
		app:      app,
		config:   cfg,
		store:    st,
		progress: progress,
		logger:   logger,
	}
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
