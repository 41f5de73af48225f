// Package web provides HTTP handlers and REST API endpoints for workflow and
// run management.
package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/loomhq/loom/pkg/dispatch"
	"github.com/loomhq/loom/pkg/engine"
	"github.com/loomhq/loom/pkg/registry"
	"github.com/loomhq/loom/pkg/schema"
	"github.com/loomhq/loom/pkg/workflow"
)

type APIHandlers struct {
	repository *workflow.Repository
	engine     *engine.Engine
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
}

// NewAPIHandlers wires the API surface. The dispatcher is optional; without
// one, the dispatch endpoint reports service unavailable.
func NewAPIHandlers(
	repository *workflow.Repository,
	eng *engine.Engine,
	reg *registry.Registry,
	dispatcher *dispatch.Dispatcher,
) *APIHandlers {
	return &APIHandlers{
		repository: repository,
		engine:     eng,
		registry:   reg,
		dispatcher: dispatcher,
	}
}

func (h *APIHandlers) GetHealth(c fiber.Ctx) error {
	message, healthy := h.repository.HealthCheck(c.Context())
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unhealthy",
			"message": message,
		})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.repository.FetchAll(c.Context())
	if err != nil {
		return storageError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	wf, err := h.repository.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return storageError(c, err)
	}

	return c.JSON(wf)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	wf, err := workflow.Parse(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := workflow.Validate(c.Context(), wf, h.registry); err != nil {
		return storageError(c, err)
	}

	created, err := h.repository.Create(c.Context(), wf)
	if err != nil {
		return storageError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	wf, err := workflow.Parse(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := workflow.Validate(c.Context(), wf, h.registry); err != nil {
		return storageError(c, err)
	}

	updated, err := h.repository.Update(c.Context(), c.Params("id"), wf)
	if err != nil {
		return storageError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.repository.Delete(c.Context(), c.Params("id")); err != nil {
		return storageError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// StartRun compiles the workflow and starts a local run with the request
// body as initial variables.
func (h *APIHandlers) StartRun(c fiber.Ctx) error {
	wf, err := h.repository.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return storageError(c, err)
	}

	var initialVariables map[string]any
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&initialVariables); err != nil {
			return badRequest(c, "request body must be a JSON object of initial variables")
		}
	}

	graph, err := workflow.Compile(c.Context(), wf, h.registry)
	if err != nil {
		return storageError(c, err)
	}

	handle, err := h.engine.Start(c.Context(), graph, initialVariables)
	if err != nil {
		return storageError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"run_id": handle.ID(),
		"status": handle.Status(),
	})
}

// DispatchRun hands the run to a registered robot instead of executing it
// locally.
func (h *APIHandlers) DispatchRun(c fiber.Ctx) error {
	if h.dispatcher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "dispatcher not configured",
		})
	}

	wf, err := h.repository.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return storageError(c, err)
	}

	var initialVariables map[string]any
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&initialVariables); err != nil {
			return badRequest(c, "request body must be a JSON object of initial variables")
		}
	}

	assignmentID, err := h.dispatcher.Dispatch(c.Context(), wf.ID, initialVariables)
	if err != nil {
		if errors.Is(err, dispatch.ErrNoRobotAvailable) {
			return conflict(c, err.Error())
		}

		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"assignment_id": assignmentID,
	})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	handle, ok := h.engine.Get(c.Params("id"))
	if !ok {
		return notFound(c, "run not found")
	}

	response := fiber.Map{
		"run_id": handle.ID(),
		"status": handle.Status(),
	}

	if result := handle.Result(); result != nil {
		response["result"] = result
	}

	return c.JSON(response)
}

func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	if err := h.engine.Cancel(c.Params("id")); err != nil {
		if errors.Is(err, engine.ErrRunNotFound) {
			return notFound(c, "run not found")
		}

		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"run_id": c.Params("id"),
		"status": "cancelling",
	})
}

// GetNodeTypes lists registered node types with their property schemas.
func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	factories := h.registry.NodeFactories()

	out := make([]fiber.Map, 0, len(factories))
	for _, f := range factories {
		out = append(out, fiber.Map{
			"id":          f.ID(),
			"name":        f.Name(),
			"description": f.Description(),
			"schema":      schema.JSONSchema(f.Properties()),
		})
	}

	return c.JSON(fiber.Map{"node_types": out})
}

// GetRobots lists the registered robot fleet.
func (h *APIHandlers) GetRobots(c fiber.Ctx) error {
	if h.dispatcher == nil {
		return c.JSON(fiber.Map{"robots": []any{}})
	}

	return c.JSON(fiber.Map{"robots": h.dispatcher.Robots()})
}
