package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryPersistence struct {
	workflows map[string]*models.Workflow
	unhealthy bool
}

func newMemoryPersistence() *memoryPersistence {
	return &memoryPersistence{workflows: make(map[string]*models.Workflow)}
}

func (m *memoryPersistence) Workflows(_ context.Context) ([]*models.Workflow, error) {
	out := make([]*models.Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		out = append(out, wf)
	}

	return out, nil
}

func (m *memoryPersistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	return m.workflows[id], nil
}

func (m *memoryPersistence) SaveWorkflow(_ context.Context, wf *models.Workflow) error {
	m.workflows[wf.ID] = wf

	return nil
}

func (m *memoryPersistence) DeleteWorkflow(_ context.Context, id string) error {
	delete(m.workflows, id)

	return nil
}

func (m *memoryPersistence) HealthCheck(_ context.Context) error {
	if m.unhealthy {
		return errors.New("backend down")
	}

	return nil
}

func (m *memoryPersistence) Close(_ context.Context) error { return nil }

func repositoryWorkflow(id string) *models.Workflow {
	return &models.Workflow{
		ID:       id,
		Metadata: models.Metadata{Name: "repo test"},
		Nodes: []*models.WorkflowNode{
			{ID: "greet", Type: "log", Enabled: true, Config: map[string]any{"message": "hi"}},
		},
		Settings: models.Settings{StartNode: "greet"},
	}
}

func TestRepository_CreateGeneratesIDAndVersion(t *testing.T) {
	repo := NewRepository(newMemoryPersistence())

	wf := repositoryWorkflow("")
	created, err := repo.Create(context.Background(), wf)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.Metadata.Version)
}

func TestRepository_CreateKeepsExplicitID(t *testing.T) {
	repo := NewRepository(newMemoryPersistence())

	created, err := repo.Create(context.Background(), repositoryWorkflow("wf-1"))
	require.NoError(t, err)
	assert.Equal(t, "wf-1", created.ID)
}

func TestRepository_FetchByID(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newMemoryPersistence())

	_, err := repo.Create(ctx, repositoryWorkflow("wf-1"))
	require.NoError(t, err)

	got, err := repo.FetchByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", got.ID)

	_, err = repo.FetchByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newMemoryPersistence())

	_, err := repo.Create(ctx, repositoryWorkflow("wf-1"))
	require.NoError(t, err)

	updated := repositoryWorkflow("ignored")
	updated.Metadata.Name = "renamed"

	got, err := repo.Update(ctx, "wf-1", updated)
	require.NoError(t, err)
	assert.Equal(t, "wf-1", got.ID, "the path ID wins over the document ID")
	assert.Equal(t, "renamed", got.Metadata.Name)

	_, err = repo.Update(ctx, "missing", repositoryWorkflow("missing"))
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newMemoryPersistence())

	_, err := repo.Create(ctx, repositoryWorkflow("wf-1"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "wf-1"))

	err = repo.Delete(ctx, "wf-1")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestRepository_FetchAll(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newMemoryPersistence())

	_, err := repo.Create(ctx, repositoryWorkflow("wf-a"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, repositoryWorkflow("wf-b"))
	require.NoError(t, err)

	all, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRepository_HealthCheck(t *testing.T) {
	mem := newMemoryPersistence()
	repo := NewRepository(mem)

	msg, healthy := repo.HealthCheck(context.Background())
	assert.True(t, healthy)
	assert.Contains(t, msg, "healthy")

	mem.unhealthy = true

	msg, healthy = repo.HealthCheck(context.Background())
	assert.False(t, healthy)
	assert.Contains(t, msg, "unhealthy")

	_, healthy = NewRepository(nil).HealthCheck(context.Background())
	assert.False(t, healthy)
}
