package server

import (
	"fmt"
	"time"

	"github.com/NeuralTrust/callgate/pkg/config"
	"github.com/NeuralTrust/callgate/pkg/infra/prometheus"
	"github.com/NeuralTrust/callgate/pkg/server/router"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const HealthPath = "/health"

// Server interface defines the common behavior for all servers
type Server interface {
	Run() error
	Shutdown() error
}

type BaseServer struct {
	Config *config.Config
	Logger *logrus.Logger
	Router *fiber.App
}

func NewBaseServer(config *config.Config, logger *logrus.Logger) *BaseServer {
	r := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             4 * 1024 * 1024,
		ReadTimeout:           60 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})
	r.Use(recover.New())

	r.Server().NoDefaultServerHeader = true

	return &BaseServer{
		Config: config,
		Logger: logger,
		Router: r,
	}
}

func (s *BaseServer) setupHealthCheck() {
	s.Router.Get(HealthPath, func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
}

func (s *BaseServer) WithRouters(routers ...router.ServerRouter) *BaseServer {
	for _, r := range routers {
		err := r.BuildRoutes(s.Router)
		if err != nil {
			s.Logger.WithError(err).Error("failed to build routes")
		}
	}
	return s
}

// MetricsServer serves /metrics on its own port.
type MetricsServer struct {
	app    *fiber.App
	addr   string
	logger *logrus.Logger
}

func NewMetricsServer(cfg *config.Config, logger *logrus.Logger) *MetricsServer {
	prometheus.Initialize()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	handler := fasthttpadaptor.NewFastHTTPHandler(prometheus.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	})

	return &MetricsServer{
		app:    app,
		addr:   fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
		logger: logger,
	}
}

func (m *MetricsServer) Run() error {
	m.logger.WithField("addr", m.addr).Info("starting metrics server")
	return m.app.Listen(m.addr)
}

func (m *MetricsServer) Shutdown() error {
	return m.app.Shutdown()
}
