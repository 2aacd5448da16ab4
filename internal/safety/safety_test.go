package safety

import (
	"context"
	"testing"

	"archi/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T) (*Controller, string) {
	t.Helper()
	root := t.TempDir()
	ctl, err := New(config.DefaultSafetyConfig(), root)
	require.NoError(t, err)
	return ctl, root
}

func TestAuthorize_ReadOnlyIsAutonomous(t *testing.T) {
	ctl, _ := newTestController(t)
	action := Action{Type: "read_file", Parameters: map[string]any{"path": "anything.txt"}}

	decision := ctl.Authorize(context.Background(), &action)

	assert.True(t, decision.Allowed)
	assert.Equal(t, "autonomous", action.RiskLevel)
}

func TestAuthorize_WriteInsideWorkspaceWithSufficientConfidence(t *testing.T) {
	ctl, root := newTestController(t)
	action := Action{
		Type:       "create_file",
		Parameters: map[string]any{"path": root + "/notes.txt"},
		Confidence: 0.9,
	}

	decision := ctl.Authorize(context.Background(), &action)

	assert.True(t, decision.Allowed)
}

func TestAuthorize_WriteOutsideWorkspaceDenied(t *testing.T) {
	ctl, _ := newTestController(t)
	action := Action{
		Type:       "create_file",
		Parameters: map[string]any{"path": "/etc/passwd"},
		Confidence: 0.95,
	}

	decision := ctl.Authorize(context.Background(), &action)

	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "escapes the workspace")
}

func TestAuthorize_ProtectedPrefixDenied(t *testing.T) {
	ctl, root := newTestController(t)
	action := Action{
		Type:       "edit_file",
		Parameters: map[string]any{"path": root + "/archi.db"},
		Confidence: 0.95,
	}

	decision := ctl.Authorize(context.Background(), &action)

	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "protected")
}

func TestAuthorize_UnknownActionTypeDeniedByDefault(t *testing.T) {
	ctl, _ := newTestController(t)
	action := Action{Type: "launch_missiles", Confidence: 1.0}

	decision := ctl.Authorize(context.Background(), &action)

	assert.False(t, decision.Allowed)
	assert.Equal(t, "unknown action type", decision.Reason)
}

func TestAuthorize_LowConfidenceDenied(t *testing.T) {
	ctl, root := newTestController(t)
	action := Action{
		Type:       "create_file",
		Parameters: map[string]any{"path": root + "/notes.txt"},
		Confidence: 0.1,
	}

	decision := ctl.Authorize(context.Background(), &action)

	assert.False(t, decision.Allowed)
	assert.Equal(t, "confidence below risk threshold", decision.Reason)
}

func TestAuthorize_ManualOnlyQueuesAndDenies(t *testing.T) {
	ctl, _ := newTestController(t)
	action := Action{Type: "exec_cmd", Parameters: map[string]any{"cmd": "ls"}, Confidence: 1.0}

	decision := ctl.Authorize(context.Background(), &action)

	assert.False(t, decision.Allowed)
	queued := ctl.ManualQueue()
	require.Len(t, queued, 1)
	assert.Equal(t, "exec_cmd", queued[0].Type)
}

func TestAuthorize_HumanApprovalUsesRegisteredCallback(t *testing.T) {
	ctl, root := newTestController(t)
	ctl.SetApprovalFunc(func(ctx context.Context, a Action) bool { return true })
	action := Action{
		Type:       "delete_file",
		Parameters: map[string]any{"path": root + "/gone.txt"},
		Confidence: 0.9,
	}

	decision := ctl.Authorize(context.Background(), &action)

	assert.True(t, decision.Allowed)
}

func TestAuthorize_HumanApprovalDefaultsToDeny(t *testing.T) {
	ctl, root := newTestController(t)
	action := Action{
		Type:       "delete_file",
		Parameters: map[string]any{"path": root + "/gone.txt"},
		Confidence: 0.9,
	}

	decision := ctl.Authorize(context.Background(), &action)

	assert.False(t, decision.Allowed)
}
