package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/relaycrm/relay/pkg/persistence"
	"github.com/relaycrm/relay/pkg/services"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service and persistence errors onto problem
// responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case errors.Is(err, persistence.ErrAutomationNotFound):
		return notFound(c, "automation not found")

	case errors.Is(err, persistence.ErrEnrollmentNotFound):
		return notFound(c, "enrollment not found")

	case errors.Is(err, persistence.ErrContactNotFound):
		return notFound(c, "contact not found")

	default:
		return internalError(c, err)
	}
}
