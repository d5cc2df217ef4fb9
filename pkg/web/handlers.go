package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/relaycrm/relay/pkg/engine"
	"github.com/relaycrm/relay/pkg/models"
	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/services"
)

type APIHandlers struct {
	automations *services.Automation
	engine      *engine.Engine
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	automations *services.Automation,
	eng *engine.Engine,
	store persistence.Persistence,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		automations: automations,
		engine:      eng,
		persistence: store,
		validator:   validate,
	}
}

// Register wires every route onto the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/healthz", h.HealthCheck)

	v1 := app.Group("/v1")
	v1.Post("/triggers/:type", h.HandleTrigger)
	v1.Post("/sweep", h.Sweep)
	v1.Get("/enrollments/:id", h.GetEnrollment)
	v1.Get("/enrollments/:id/logs", h.GetEnrollmentLogs)
	v1.Get("/organizations/:orgId/automations", h.ListAutomations)
	v1.Post("/organizations/:orgId/automations", h.CreateAutomation)
	v1.Get("/automations/:id", h.GetAutomation)
	v1.Put("/automations/:id", h.UpdateAutomation)
	v1.Post("/automations/:id/activate", h.ActivateAutomation)
	v1.Post("/automations/:id/deactivate", h.DeactivateAutomation)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.automations.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// HandleTrigger accepts a CRM event and runs trigger matching synchronously.
// The response is always 200 with the engine's result; a contract violation
// shows up in the result's error field, mirroring the engine's soft-failure
// contract.
func (h *APIHandlers) HandleTrigger(c fiber.Ctx) error {
	triggerType := models.TriggerType(c.Params("type"))

	var req TriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result := h.engine.HandleTrigger(c.Context(), triggerType, engine.TriggerData{
		ContactID:      req.ContactID,
		OrganizationID: req.OrganizationID,
		Payload:        req.Payload,
	})

	return c.JSON(result)
}

// Sweep advances every due enrollment. Exposed for external schedulers and
// operational use; the worker also sweeps on its own timer.
func (h *APIHandlers) Sweep(c fiber.Ctx) error {
	return c.JSON(h.engine.ProcessPending(c.Context()))
}

func (h *APIHandlers) GetEnrollment(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Enrollment ID is required")
	}

	enrollment, err := h.persistence.Enrollments().GetByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(enrollment)
}

func (h *APIHandlers) GetEnrollmentLogs(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Enrollment ID is required")
	}

	logs, err := h.persistence.StepLogs().ListByEnrollment(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"logs": logs})
}

func (h *APIHandlers) ListAutomations(c fiber.Ctx) error {
	automations, err := h.automations.List(c.Context(), c.Params("orgId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"automations": automations})
}

func (h *APIHandlers) GetAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	automation, err := h.automations.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(automation)
}

func (h *APIHandlers) CreateAutomation(c fiber.Ctx) error {
	organizationID := c.Params("orgId")
	if organizationID == "" {
		return badRequest(c, "Organization ID is required")
	}

	var req CreateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.automations.Create(c.Context(), req.toModel(organizationID))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateAutomation(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	var req UpdateAutomationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.automations.Update(c.Context(), id, req.toModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) ActivateAutomation(c fiber.Ctx) error {
	return h.setActive(c, true)
}

func (h *APIHandlers) DeactivateAutomation(c fiber.Ctx) error {
	return h.setActive(c, false)
}

func (h *APIHandlers) setActive(c fiber.Ctx, active bool) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Automation ID is required")
	}

	err := h.automations.SetActive(c.Context(), id, active)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
