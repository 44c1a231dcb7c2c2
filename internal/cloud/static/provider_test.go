package static

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koptimizer/rigwatch/pkg/fleet"
)

func writeInventory(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestListInstances(t *testing.T) {
	path := writeInventory(t, `
balance: 12.5
instances:
  - id: "7"
    gpuName: RTX 4090
    numGPUs: 4
    hourlyCost: 1.6
    label: north
    status: running
    sshHost: 10.0.0.7
    sshPort: 2222
  - gpuName: RTX 3090
    status: stopped
`)
	p, err := NewProvider(path)
	require.NoError(t, err)

	instances, err := p.ListInstances(context.Background())
	require.NoError(t, err)
	require.Len(t, instances, 2)

	assert.Equal(t, "7", instances[0].ID)
	assert.Equal(t, 4, instances[0].GPUCount.OrElse(0))
	assert.Equal(t, 1.6, instances[0].HourlyCost.OrElse(0))
	assert.Equal(t, fleet.StatusRunning, instances[0].Status)
	assert.Equal(t, 2222, instances[0].SSHPort)

	assert.Equal(t, "#1", instances[1].ID)
	assert.Equal(t, []string{"id", "hourlyCost"}, instances[1].Missing)
	assert.Equal(t, fleet.StatusStopped, instances[1].Status)

	balance, err := p.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12.5, balance)
}

func TestMissingFile(t *testing.T) {
	p, err := NewProvider(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	_, err = p.ListInstances(context.Background())
	assert.True(t, errors.Is(err, fleet.ErrFetchFailure))
	assert.Error(t, p.TestConnection(context.Background()))
}

func TestGetBalance_Missing(t *testing.T) {
	p, err := NewProvider(writeInventory(t, "instances: []\n"))
	require.NoError(t, err)

	_, err = p.GetBalance(context.Background())
	assert.True(t, errors.Is(err, fleet.ErrMissingField))
}
