package web

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/loomhq/loom/pkg/dispatch"
	"github.com/loomhq/loom/pkg/engine"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/registry"
	"github.com/loomhq/loom/pkg/workflow"
)

// API is the orchestrator's HTTP surface: workflow CRUD, run control and
// fleet inspection.
type API struct {
	logger     *slog.Logger
	repository *workflow.Repository
	engine     *engine.Engine
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	eng *engine.Engine,
	reg *registry.Registry,
	dispatcher *dispatch.Dispatcher,
) *API {
	return &API{
		logger:     logger,
		repository: workflow.NewRepository(p),
		engine:     eng,
		registry:   reg,
		dispatcher: dispatcher,
	}
}

func (a *API) App() *fiber.App {
	handlers := NewAPIHandlers(a.repository, a.engine, a.registry, a.dispatcher)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Loom API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/runs", handlers.StartRun)
	w.Post("/:id/dispatch", handlers.DispatchRun)

	r := app.Group("/runs")
	r.Get("/:id", handlers.GetRun)
	r.Delete("/:id", handlers.CancelRun)

	app.Get("/node-types", handlers.GetNodeTypes)
	app.Get("/robots", handlers.GetRobots)
	app.Get("/health", handlers.GetHealth)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
