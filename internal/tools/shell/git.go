package shell

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"archi/internal/logging"
	"archi/internal/tools"
)

// GitDiffTool returns a tool for inspecting uncommitted changes, used
// by the Plan Executor to review what a source-write step changed.
func GitDiffTool() *tools.Tool {
	return &tools.Tool{
		Name:        "git_diff",
		Description: "Show the diff of uncommitted changes",
		Category:    tools.CategorySystem,
		Priority:    60,
		Execute:     executeGitDiff,
		Schema: tools.ToolSchema{
			Properties: map[string]tools.Property{
				"path":        {Type: "string", Description: "Limit the diff to this file or directory"},
				"staged":      {Type: "boolean", Description: "Show staged changes instead of the working tree", Default: false},
				"working_dir": {Type: "string", Description: "Repository directory (default: current directory)"},
			},
		},
	}
}

func executeGitDiff(ctx context.Context, args map[string]any) (string, error) {
	gitArgs := []string{"diff"}
	if staged, ok := args["staged"].(bool); ok && staged {
		gitArgs = append(gitArgs, "--staged")
	}
	if path, ok := args["path"].(string); ok && path != "" {
		gitArgs = append(gitArgs, "--", path)
	}
	return runGit(ctx, workingDirArg(args), gitArgs...)
}

// GitLogTool returns a tool for listing recent commits.
func GitLogTool() *tools.Tool {
	return &tools.Tool{
		Name:        "git_log",
		Description: "Show recent commit history",
		Category:    tools.CategorySystem,
		Priority:    55,
		Execute:     executeGitLog,
		Schema: tools.ToolSchema{
			Properties: map[string]tools.Property{
				"count":       {Type: "integer", Description: "Number of commits to show (default: 10)", Default: 10},
				"author":      {Type: "string", Description: "Filter commits by author"},
				"working_dir": {Type: "string", Description: "Repository directory (default: current directory)"},
			},
		},
	}
}

func executeGitLog(ctx context.Context, args map[string]any) (string, error) {
	count := 10
	if c, ok := args["count"].(int); ok && c > 0 {
		count = c
	}
	gitArgs := []string{"log", "--oneline", "-n", strconv.Itoa(count)}
	if author, ok := args["author"].(string); ok && author != "" {
		gitArgs = append(gitArgs, "--author="+author)
	}
	return runGit(ctx, workingDirArg(args), gitArgs...)
}

// GitOperationTool returns a tool for mutating git state: staging,
// committing, tagging, and the other listed operations. The Plan
// Executor uses its tag operation to checkpoint a source write; rollback
// after a failed syntax check restores a file backup, not a git state.
func GitOperationTool() *tools.Tool {
	return &tools.Tool{
		Name:        "git_operation",
		Description: "Run a git operation: add, commit, tag, push, pull, checkout, branch, fetch, stash, or reset",
		Category:    tools.CategorySystem,
		Priority:    65,
		Execute:     executeGitOperation,
		Schema: tools.ToolSchema{
			Required: []string{"operation"},
			Properties: map[string]tools.Property{
				"operation": {Type: "string", Description: "One of: add, commit, tag, push, pull, checkout, branch, fetch, stash, reset"},
				"files":     {Type: "string", Description: "Files for add/reset (default: .)"},
				"message":   {Type: "string", Description: "Commit or tag message"},
				"branch":      {Type: "string", Description: "Branch or tag name for checkout/branch/tag"},
				"args":        {Type: "string", Description: "Extra arguments appended verbatim (e.g. 'origin main')"},
				"working_dir": {Type: "string", Description: "Repository directory (default: current directory)"},
			},
		},
	}
}

func executeGitOperation(ctx context.Context, args map[string]any) (string, error) {
	op, _ := args["operation"].(string)
	if op == "" {
		return "", fmt.Errorf("operation is required")
	}

	var gitArgs []string
	switch op {
	case "add":
		files, _ := args["files"].(string)
		if files == "" {
			files = "."
		}
		gitArgs = []string{"add", files}
	case "commit":
		message, _ := args["message"].(string)
		if message == "" {
			return "", fmt.Errorf("message is required for commit")
		}
		gitArgs = []string{"commit", "-m", message}
	case "tag":
		name, _ := args["branch"].(string)
		if name == "" {
			return "", fmt.Errorf("branch (tag name) is required for tag")
		}
		gitArgs = []string{"tag", name}
		if message, ok := args["message"].(string); ok && message != "" {
			gitArgs = append(gitArgs, "-m", message)
		}
	case "push":
		gitArgs = []string{"push"}
	case "pull":
		gitArgs = []string{"pull"}
	case "checkout":
		branch, _ := args["branch"].(string)
		if branch == "" {
			return "", fmt.Errorf("branch is required for checkout")
		}
		gitArgs = []string{"checkout", branch}
	case "branch":
		gitArgs = []string{"branch"}
		if branch, ok := args["branch"].(string); ok && branch != "" {
			gitArgs = append(gitArgs, branch)
		}
	case "fetch":
		gitArgs = []string{"fetch"}
	case "stash":
		gitArgs = []string{"stash"}
	case "reset":
		gitArgs = []string{"reset"}
		if files, ok := args["files"].(string); ok && files != "" {
			gitArgs = append(gitArgs, "--", files)
		}
	default:
		return "", fmt.Errorf("unsupported git operation: %s", op)
	}

	if extra, ok := args["args"].(string); ok && extra != "" {
		gitArgs = append(gitArgs, strings.Fields(extra)...)
	}

	return runGit(ctx, workingDirArg(args), gitArgs...)
}

func workingDirArg(args map[string]any) string {
	dir, _ := args["working_dir"].(string)
	return dir
}

func runGit(ctx context.Context, workingDir string, gitArgs ...string) (string, error) {
	logging.ToolsDebug("git %s (dir=%s)", strings.Join(gitArgs, " "), workingDir)

	cmd := execCommandContext(ctx, "git", gitArgs...)
	if workingDir != "" {
		cmd.Dir = workingDir
	}

	output, err := cmd.CombinedOutput()
	result := strings.TrimRight(string(output), "\n")
	if err != nil {
		return result, fmt.Errorf("git %s failed: %w\n%s", gitArgs[0], err, result)
	}

	logging.Tools("git %s completed", gitArgs[0])
	return result, nil
}
