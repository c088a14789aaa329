package server

import (
	"ma-assistant/internal/bootstrap"
	"ma-assistant/internal/config"
	"ma-assistant/internal/controller"
	"ma-assistant/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

type Server struct {
	app *fiber.App
	cfg *config.Config
	log logger.ILogger
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // 1MB, queries are plain text
	})

	api := app.Group("/api")
	controller.NewChatController(container.Orchestrator).RegisterRoutes(api)

	return &Server{
		app: app,
		cfg: cfg,
		log: container.Logger,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.log.Info("server", "✅ Server is running", map[string]interface{}{
		"address": "http://localhost:" + s.cfg.App.Port,
	})
	return s.app.Listen(":" + s.cfg.App.Port)
}
