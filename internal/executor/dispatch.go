package executor

import (
	"context"
	"fmt"
	"time"

	"archi/internal/goals"
	"archi/internal/logging"
)

// dispatchResult is the internal shape a dispatched action produces,
// before being folded into a StepRecord.
type dispatchResult struct {
	output      string
	err         string
	fatal       bool
	createdFile string
}

// registryActionNames maps a Plan Executor action name onto the Tool
// Registry's name for it, where the two vocabularies differ.
var registryActionNames = map[string]string{
	"fetch_webpage": "web_fetch",
}

// dispatch applies the safety perimeter (workspace/project path
// resolution, protected-path check) uniformly to every file-touching
// action, then routes to the Tool Registry or a built-in control action.
func (e *Executor) dispatch(ctx context.Context, task *goals.Task, action stepAction) dispatchResult {
	switch action.Name {
	case "think":
		logging.ExecutorDebug("task %s think: %s", task.ID, action.Reasoning)
		return dispatchResult{output: action.Reasoning}

	case "done":
		return dispatchResult{output: stringArg(action.Arguments, "summary", "")}

	case "create_file", "append_file":
		return e.dispatchWorkspaceWrite(ctx, action)

	case "read_file":
		return e.dispatchProjectRead(ctx, action)

	case "list_files":
		return e.dispatchProjectRead(ctx, action)

	case "write_source":
		return e.dispatchWriteSource(ctx, action)

	case "run_python":
		return e.dispatchRunSnippet(ctx, action)

	default:
		return e.dispatchTool(ctx, action.Name, action.Arguments)
	}
}

func (e *Executor) dispatchWorkspaceWrite(ctx context.Context, action stepAction) dispatchResult {
	relPath := stringArg(action.Arguments, "path", "")
	full, err := e.resolveWorkspacePath(relPath)
	if err != nil {
		return dispatchResult{err: err.Error()}
	}
	args := cloneArgs(action.Arguments)
	args["path"] = full

	result := e.dispatchTool(ctx, action.Name, args)
	if result.err == "" {
		result.createdFile = full
	}
	return result
}

func (e *Executor) dispatchProjectRead(ctx context.Context, action stepAction) dispatchResult {
	relPath := stringArg(action.Arguments, "path", "")
	full, err := e.resolveProjectPath(relPath)
	if err != nil {
		return dispatchResult{err: err.Error()}
	}
	args := cloneArgs(action.Arguments)
	args["path"] = full
	return e.dispatchTool(ctx, action.Name, args)
}

func (e *Executor) dispatchTool(ctx context.Context, actionName string, args map[string]interface{}) dispatchResult {
	toolName := actionName
	if mapped, ok := registryActionNames[actionName]; ok {
		toolName = mapped
	}

	result, err := e.registry.Execute(ctx, toolName, args)
	if err != nil {
		return dispatchResult{err: err.Error()}
	}
	if !result.IsSuccess() {
		return dispatchResult{err: result.Error.Error()}
	}
	return dispatchResult{output: result.Result}
}

func cloneArgs(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

// dispatchWriteSource implements the self-modification action: backup,
// git checkpoint, write, syntax-check, and roll back on failure.
func (e *Executor) dispatchWriteSource(ctx context.Context, action stepAction) dispatchResult {
	relPath := stringArg(action.Arguments, "path", "")
	content := stringArg(action.Arguments, "content", "")
	if relPath == "" {
		return dispatchResult{err: "path is required"}
	}
	if err := checkProtected(relPath); err != nil {
		return dispatchResult{err: err.Error()}
	}
	full, err := e.resolveProjectPath(relPath)
	if err != nil {
		return dispatchResult{err: err.Error()}
	}

	backupPath, err := e.backupFile(full)
	if err != nil {
		logging.ExecutorWarn("backup failed for %s: %v", full, err)
	}

	tagResult, tagErr := e.registry.Execute(ctx, "git_operation", map[string]interface{}{
		"operation":   "tag",
		"branch":      checkpointTagName(relPath),
		"message":     "plan executor checkpoint before source write",
		"working_dir": e.cfg.ProjectRoot,
	})
	if tagErr != nil || !tagResult.IsSuccess() {
		logging.ExecutorWarn("git checkpoint tag failed for %s, continuing without one", relPath)
	}

	writeArgs := map[string]interface{}{"path": full, "content": content}
	writeResult := e.dispatchTool(ctx, "create_file", writeArgs)
	if writeResult.err != "" {
		return writeResult
	}

	if issue := syntaxCheck(full, content); issue != "" {
		logging.ExecutorWarn("syntax check failed for %s: %s, rolling back", full, issue)
		if backupPath != "" {
			if rbErr := restoreBackup(full, backupPath); rbErr != nil {
				return dispatchResult{err: fmt.Sprintf("syntax error: %s; rollback also failed: %v", issue, rbErr), fatal: true}
			}
		}
		return dispatchResult{err: fmt.Sprintf("syntax error, rolled back: %s", issue)}
	}

	return dispatchResult{output: fmt.Sprintf("wrote %s (%d bytes), syntax ok", full, len(content)), createdFile: full}
}

func checkpointTagName(relPath string) string {
	return fmt.Sprintf("archi-checkpoint-%s-%s", sanitizeTag(relPath), time.Now().Format("20060102-150405"))
}

func sanitizeTag(path string) string {
	out := make([]rune, 0, len(path))
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
