// Package httpapi exposes the audit-chain core over HTTP/JSON for the
// clinical web application and operator dashboards.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/clarimed/auditchain/internal/domain"
	apperrors "github.com/clarimed/auditchain/internal/errors"
	"github.com/clarimed/auditchain/internal/service"
)

// Pinger reports backing-store health for the /healthz endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the API server needs.
type Deps struct {
	Writer       *service.Writer
	Entries      domain.EntryRepository
	Verification *service.VerificationService
	Alerts       *service.AlertsService
	Reports      *service.ReportsService
	Store        Pinger
	Logger       *slog.Logger
}

type Server struct {
	app    *fiber.App
	port   int
	logger *slog.Logger
}

func New(port int, deps Deps) *Server {
	app := fiber.New(fiber.Config{
		AppName: "auditchain",
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())
	app.Use(PrincipalMiddleware())

	app.Get("/healthz", func(c fiber.Ctx) error {
		if deps.Store != nil {
			if err := deps.Store.Ping(c.Context()); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	classifier := apperrors.NewErrorClassifier(deps.Logger)

	v1 := app.Group("/v1")
	NewAuditHandler(deps.Writer, deps.Entries, classifier).Register(v1)
	NewVerificationHandler(deps.Verification, classifier).Register(v1)
	NewAlertsHandler(deps.Alerts, classifier).Register(v1)
	NewReportsHandler(deps.Reports, classifier).Register(v1)

	return &Server{app: app, port: port, logger: deps.Logger}
}

// Listen blocks serving HTTP until Shutdown is called.
func (s *Server) Listen() error {
	s.logger.Info("http server listening", "port", s.port)
	return s.app.Listen(fmt.Sprintf(":%d", s.port))
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
