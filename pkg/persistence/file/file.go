// Package file provides file-based persistence for workflow documents. Each
// workflow is stored as one canonical JSON file named by its ID.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/workflow"
)

// Persistence implements persistence.Persistence on a directory of workflow
// documents.
type Persistence struct {
	root string
}

// NewPersistence creates a file persistence rooted at the given directory,
// accepting either a plain path or a file:// URL.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	if err := os.MkdirAll(cleanRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create persistence root %s: %w", cleanRoot, err)
	}

	return &Persistence{root: cleanRoot}, nil
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read persistence root: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")

		wf, err := p.WorkflowByID(ctx, id)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, wf)
	}

	return workflows, nil
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	data, err := os.ReadFile(p.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	wf, err := workflow.Parse(data)
	if err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, errors.Join(persistence.ErrInvalidDocument, err))
	}

	return wf, nil
}

// SaveWorkflow writes the canonical serialization atomically: a temp file in
// the same directory, then a rename.
func (p *Persistence) SaveWorkflow(_ context.Context, wf *models.Workflow) error {
	data, err := workflow.Marshal(wf)
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", wf.ID, err)
	}

	tmp, err := os.CreateTemp(p.root, wf.ID+".*.tmp")
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", wf.ID, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return persistence.NewWorkflowError("SaveWorkflow", wf.ID, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return persistence.NewWorkflowError("SaveWorkflow", wf.ID, err)
	}

	if err := os.Rename(tmp.Name(), p.path(wf.ID)); err != nil {
		os.Remove(tmp.Name())

		return persistence.NewWorkflowError("SaveWorkflow", wf.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	if err := os.Remove(p.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewWorkflowError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); err != nil {
		return fmt.Errorf("persistence root unavailable: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) path(id string) string {
	return filepath.Join(p.root, id+".json")
}
