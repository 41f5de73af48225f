package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/registry"
	"github.com/loomhq/loom/pkg/schema"
	"github.com/loomhq/loom/pkg/workflow"
	"github.com/moogar0880/problems"
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

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// storageError maps persistence and validation errors onto problem responses.
func storageError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsWorkflowNotFound(err):
		return notFound(c, err.Error())
	case isValidationError(err):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, workflow.ErrInvalidDocument) ||
		errors.Is(err, workflow.ErrInvalidEdge) ||
		errors.Is(err, schema.ErrSchemaViolation) ||
		errors.Is(err, registry.ErrUnknownNodeType)
}
