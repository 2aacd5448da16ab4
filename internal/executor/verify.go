package executor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"archi/internal/goals"
	"archi/internal/router"
)

// verify re-reads every file the task created and asks the planner to
// judge their quality, recording the judgement in the task result. A
// read failure for any one file is noted inline rather than aborting
// the whole pass.
func (e *Executor) verify(ctx context.Context, task *goals.Task, state *planState, planner Planner) string {
	var sb strings.Builder
	for _, path := range state.CreatedFiles {
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(&sb, "%s: could not re-read (%v)\n", path, err)
			continue
		}
		fmt.Fprintf(&sb, "--- %s ---\n%s\n\n", path, truncate(string(content), 2000))
	}
	if sb.Len() == 0 {
		return ""
	}

	prompt := fmt.Sprintf(`Task: %s

The following files were created to accomplish this task:

%s

Judge whether this output satisfies the task. Reply with one short
paragraph: state whether it succeeds, and name any defect.`, task.Description, sb.String())

	resp := planner.Generate(ctx, prompt, 400, 0.2, router.Flags{PreferLocal: true})
	if !resp.Success {
		return "verification skipped: " + resp.Error
	}
	return strings.TrimSpace(resp.Text)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... (truncated)"
}
