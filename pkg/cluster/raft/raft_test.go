package raft_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vexraft "github.com/vexfs/vexfs/pkg/cluster/raft"
)

func bootstrapSingleNode(t *testing.T) *vexraft.Coordinator {
	t.Helper()
	dir := t.TempDir()
	c, err := vexraft.Bootstrap(vexraft.Config{
		NodeID:    "node-1",
		BindAddr:  "127.0.0.1:0",
		DataDir:   filepath.Join(dir, "raft"),
		Bootstrap: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown() })
	return c
}

func TestBootstrapSingleNodeBecomesLeader(t *testing.T) {
	c := bootstrapSingleNode(t)

	require.Eventually(t, c.IsLeader, 5*time.Second, 20*time.Millisecond)

	id, addr, ok := c.LeaderHint()
	assert.True(t, ok)
	assert.Equal(t, "node-1", id)
	assert.NotEmpty(t, addr)
}

func TestApplyCommitsOnLeader(t *testing.T) {
	c := bootstrapSingleNode(t)
	require.Eventually(t, c.IsLeader, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, c.Apply(ctx, []byte(`{"type":"boundary-test"}`)))
}

func TestMembersReportsSingleNode(t *testing.T) {
	c := bootstrapSingleNode(t)
	require.Eventually(t, c.IsLeader, 5*time.Second, 20*time.Millisecond)

	members := c.Members()
	require.Len(t, members, 1)
	assert.Equal(t, "node-1", members[0].ID)
	assert.True(t, members[0].IsLeader)
}
