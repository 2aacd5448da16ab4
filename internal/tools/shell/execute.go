package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"archi/internal/logging"
	"archi/internal/tools"
)

// execCommandContext is swapped out in tests to mock process execution.
var execCommandContext = exec.CommandContext

// RunCommandTool returns a tool for executing a shell command, the
// general-purpose "domain-specific tool" spec.md leaves open for a
// concrete implementation to fill in beyond the named core actions.
func RunCommandTool() *tools.Tool {
	return &tools.Tool{
		Name:        "run_command",
		Description: "Execute a shell command and return its output",
		Category:    tools.CategorySystem,
		Priority:    70,
		Execute:     executeRunCommand,
		Schema: tools.ToolSchema{
			Required: []string{"command"},
			Properties: map[string]tools.Property{
				"command": {
					Type:        "string",
					Description: "The command to execute",
				},
				"working_dir": {
					Type:        "string",
					Description: "Working directory for the command",
				},
				"env": {
					Type:        "object",
					Description: "Additional environment variables for the command",
				},
				"timeout_seconds": {
					Type:        "integer",
					Description: "Timeout in seconds (default: 60)",
					Default:     60,
				},
			},
		},
	}
}

func executeRunCommand(ctx context.Context, args map[string]any) (string, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}

	workingDir, _ := args["working_dir"].(string)

	timeout := 60
	if t, ok := args["timeout_seconds"].(int); ok && t > 0 {
		timeout = t
	}

	logging.ToolsDebug("run_command: cmd=%s, dir=%s, timeout=%ds", command, workingDir, timeout)

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = execCommandContext(execCtx, "cmd", "/C", command)
	} else {
		cmd = execCommandContext(execCtx, "sh", "-c", command)
	}
	if workingDir != "" {
		cmd.Dir = workingDir
	}

	cmd.Env = os.Environ()
	if envArg, ok := args["env"].(map[string]any); ok {
		for k, v := range envArg {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%v", k, v))
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n--- stderr ---\n"
		}
		output += stderr.String()
	}
	if len(output) > 50000 {
		output = output[:50000] + "\n...[truncated]"
	}

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return output, fmt.Errorf("command timed out after %d seconds", timeout)
		}
		logging.Tools("run_command failed: %s (%v)", command, err)
		return output, fmt.Errorf("command failed: %w\nOutput:\n%s", err, output)
	}

	logging.Tools("run_command completed: %s (%d bytes output)", command, len(output))
	return output, nil
}
