// Package main provides the Relay API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/relaycrm/relay/pkg/engine"
	"github.com/relaycrm/relay/pkg/messaging"
	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/services"
	"github.com/relaycrm/relay/pkg/steps"
	"github.com/relaycrm/relay/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	validate    *validator.Validate
}

func NewAPI(logger *slog.Logger, persistence persistence.Persistence) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	automationService := services.NewAutomation(a.persistence, a.validate)

	env := &steps.Env{
		Persistence: a.persistence,
		Email:       messaging.NewSimulatedEmailSender(a.logger),
		SMS:         messaging.NewSimulatedSMSSender(a.logger),
		Logger:      a.logger,
	}
	eng := engine.NewEngine(a.persistence, env, a.logger)

	handlers := web.NewAPIHandlers(automationService, eng, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Relay API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
