package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"archi/internal/goals"
	"archi/internal/router"
	"archi/internal/tools"
	"archi/internal/tools/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlanner struct {
	responses []router.Result
	call      int
}

func (f *fakePlanner) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64, flags router.Flags) router.Result {
	if f.call >= len(f.responses) {
		return router.Result{Success: true, Text: `{"action_name": "done", "arguments": {"summary": "ran out of scripted responses"}}`}
	}
	r := f.responses[f.call]
	f.call++
	return r
}

func newTestExecutor(t *testing.T) (*Executor, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "workspace"), 0o755))

	registry := tools.NewRegistry()
	registry.MustRegister(core.ReadFileTool())
	registry.MustRegister(core.WriteFileTool())
	registry.MustRegister(core.ListFilesTool())

	cfg := DefaultConfig(root, filepath.Join(root, "data"))
	return New(cfg, registry), root
}

func TestExecutor_ResolveWorkspacePath(t *testing.T) {
	e, root := newTestExecutor(t)

	full, err := e.resolveWorkspacePath("report.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "workspace", "report.txt"), full)

	_, err = e.resolveWorkspacePath("../outside.txt")
	assert.Error(t, err, "path escaping the workspace root must be rejected")
}

func TestExecutor_ResolveProjectPath(t *testing.T) {
	e, root := newTestExecutor(t)

	full, err := e.resolveProjectPath("internal/goals/store.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "internal/goals/store.go"), full)

	_, err = e.resolveProjectPath("../../etc/passwd")
	assert.Error(t, err, "path escaping the project root must be rejected")
}

func TestCheckProtected(t *testing.T) {
	assert.Error(t, checkProtected("internal/executor/executor.go"))
	assert.Error(t, checkProtected("config/prime_directive.txt"))
	assert.NoError(t, checkProtected("internal/goals/store.go"))
}

func TestExecutor_Execute_DoneOnFirstStep(t *testing.T) {
	e, _ := newTestExecutor(t)
	task := &goals.Task{ID: "task_1", GoalID: "goal_1", Description: "say hello"}
	planner := &fakePlanner{responses: []router.Result{
		{Success: true, Text: `{"action_name": "done", "arguments": {"summary": "said hello"}}`},
	}}

	result, err := e.Execute(context.Background(), task, planner, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "said hello", result.Summary)
	assert.Equal(t, 1, result.StepsExecuted)

	_, statErr := os.Stat(e.statePath(task.ID))
	assert.True(t, os.IsNotExist(statErr), "plan state must be discarded after successful completion")
}

func TestExecutor_Execute_CreatesWorkspaceFileThenDone(t *testing.T) {
	e, root := newTestExecutor(t)
	task := &goals.Task{ID: "task_2", GoalID: "goal_1", Description: "write a note"}
	planner := &fakePlanner{responses: []router.Result{
		{Success: true, Text: `{"action_name": "create_file", "arguments": {"path": "note.txt", "content": "hello"}}`},
		{Success: true, Text: `{"action_name": "done", "arguments": {"summary": "wrote note.txt"}}`},
	}}

	result, err := e.Execute(context.Background(), task, planner, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.CreatedFiles, 1)
	assert.Equal(t, filepath.Join(root, "workspace", "note.txt"), result.CreatedFiles[0])

	content, err := os.ReadFile(result.CreatedFiles[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestExecutor_Execute_ResumesFromPriorState(t *testing.T) {
	e, _ := newTestExecutor(t)
	task := &goals.Task{ID: "task_3", GoalID: "goal_1", Description: "resume me"}

	prior := &planState{
		TaskID:   task.ID,
		NextStep: 1,
		Steps: []StepRecord{
			{Index: 0, ActionName: "think", Result: "already did step zero"},
		},
	}
	e.saveState(prior)

	planner := &fakePlanner{responses: []router.Result{
		{Success: true, Text: `{"action_name": "done", "arguments": {"summary": "finished after resume"}}`},
	}}

	result, err := e.Execute(context.Background(), task, planner, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.StepsExecuted, "resumed execution should continue numbering from the saved state")
	assert.Equal(t, "finished after resume", result.Summary)
}

func TestExecutor_Execute_StepLimitReachedWithoutDone(t *testing.T) {
	e, _ := newTestExecutor(t)
	task := &goals.Task{ID: "task_4", GoalID: "goal_1", Description: "never finishes"}

	responses := make([]router.Result, 0, defaultMaxSteps)
	for i := 0; i < defaultMaxSteps; i++ {
		responses = append(responses, router.Result{Success: true, Text: `{"action_name": "think", "arguments": {}, "reasoning": "still working"}`})
	}
	planner := &fakePlanner{responses: responses}

	result, err := e.Execute(context.Background(), task, planner, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, defaultMaxSteps, result.StepsExecuted)
	assert.Contains(t, result.Summary, "step limit reached")
}

func TestExtractAction(t *testing.T) {
	a, ok := extractAction(`{"action_name": "think", "arguments": {}, "reasoning": "ok"}`)
	require.True(t, ok)
	assert.Equal(t, "think", a.Name)

	wrapped := "<think>reasoning scratchpad</think>\n" + `{"action_name": "done", "arguments": {"summary": "x"}}`
	a, ok = extractAction(wrapped)
	require.True(t, ok)
	assert.Equal(t, "done", a.Name)

	fenced := "```json\n" + `{"action_name": "read_file", "arguments": {"path": "a.go"}}` + "\n```"
	a, ok = extractAction(fenced)
	require.True(t, ok)
	assert.Equal(t, "read_file", a.Name)

	_, ok = extractAction("I am not sure what to do next.")
	assert.False(t, ok)
}

func TestValidateSnippetImports(t *testing.T) {
	err := validateSnippetImports(`package main
import (
	"strings"
	"fmt"
)
func Run(input string) (string, error) { return strings.ToUpper(input), nil }`)
	assert.NoError(t, err)

	err = validateSnippetImports(`package main
import "os"
func Run(input string) (string, error) { return "", nil }`)
	assert.Error(t, err, "os access must be rejected by the stdlib-only whitelist")
}

func TestSyntaxCheck_RejectsMalformedGo(t *testing.T) {
	issue := syntaxCheck("bad.go", "package main\nfunc broken( {\n")
	assert.NotEmpty(t, issue)

	ok := syntaxCheck("good.go", "package main\n\nfunc main() {}\n")
	assert.Empty(t, ok)
}
