// Package persistence defines the storage contract for workflow documents.
package persistence

import (
	"context"

	"github.com/loomhq/loom/pkg/models"
)

// Persistence is the storage interface for workflow documents. Implementations
// must preserve documents losslessly: a load immediately after a save returns
// a semantically identical workflow.
type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
