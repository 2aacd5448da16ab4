// Package executor implements the Plan Executor: a bounded reasoning loop
// that turns a single Goal Store task into a sequence of Tool Registry
// calls, checkpointing its progress after every step so a crash can
// resume from the next unexecuted step rather than starting over.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"archi/internal/goals"
	"archi/internal/logging"
	"archi/internal/router"
	"archi/internal/tools"
)

// defaultMaxSteps bounds a general task's reasoning loop.
const defaultMaxSteps = 20

// sourceTaskMaxSteps bounds tasks whose description suggests source
// modification (see looksLikeSourceTask), which tend to need more
// back-and-forth (write, syntax-check, fix, re-check).
const sourceTaskMaxSteps = 40

// Planner is the narrow Completion Provider surface the executor needs:
// the Model Router's Generate call.
type Planner interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64, flags router.Flags) router.Result
}

// ProgressEvent reports one completed step to a caller-supplied channel.
type ProgressEvent struct {
	TaskID     string
	Step       int
	MaxSteps   int
	ActionName string
	Status     string
}

// Result is what Execute returns once a task terminates.
type Result struct {
	TaskID         string
	Success        bool
	StepsExecuted  int
	Summary        string
	CreatedFiles   []string
	Verification   string
	Error          string
}

// Config carries the Plan Executor's path and limit settings. Unlike the
// rest of Archi's configuration surface, workspace/project roots are
// resolved relative to the process working directory rather than loaded
// from the YAML config file, since they describe the filesystem the
// binary happens to run in rather than a tunable policy.
type Config struct {
	ProjectRoot   string
	WorkspaceDir  string // relative to ProjectRoot, default "workspace"
	DataDir       string // where plan_state/ and source_backups/ live
	MaxStateAge   time.Duration
}

// DefaultConfig returns sensible defaults rooted at projectRoot.
func DefaultConfig(projectRoot, dataDir string) Config {
	return Config{
		ProjectRoot:  projectRoot,
		WorkspaceDir: "workspace",
		DataDir:      dataDir,
		MaxStateAge:  24 * time.Hour,
	}
}

// Executor is the Plan Executor (E).
type Executor struct {
	cfg      Config
	registry *tools.Registry
}

// New creates a Plan Executor bound to registry for tool dispatch.
func New(cfg Config, registry *tools.Registry) *Executor {
	return &Executor{cfg: cfg, registry: registry}
}

// Execute runs task to completion or termination, resuming any prior
// Plan Execution State found on disk. progress may be nil.
func (e *Executor) Execute(ctx context.Context, task *goals.Task, planner Planner, progress chan<- ProgressEvent) (*Result, error) {
	state, err := e.loadOrCreateState(task.ID)
	if err != nil {
		return nil, fmt.Errorf("load plan state: %w", err)
	}

	maxSteps := defaultMaxSteps
	if looksLikeSourceTask(task.Description) {
		maxSteps = sourceTaskMaxSteps
	}

	logging.Executor("executing task %s (resuming at step %d/%d): %s", task.ID, state.NextStep, maxSteps, task.Description)

	for state.NextStep < maxSteps {
		select {
		case <-ctx.Done():
			e.saveState(state)
			return nil, ctx.Err()
		default:
		}

		prompt := buildStepPrompt(task, state)
		resp := planner.Generate(ctx, prompt, 1000, 0.4, router.Flags{PreferLocal: true})
		if !resp.Success {
			state.Done = true
			state.Summary = fmt.Sprintf("planner error: %s", resp.Error)
			e.saveState(state)
			return e.finish(task.ID, state, false), nil
		}

		action, ok := extractAction(resp.Text)
		if !ok {
			logging.ExecutorWarn("task %s step %d: could not parse an action from planner response, treating as done", task.ID, state.NextStep)
			action = stepAction{Name: "done", Arguments: map[string]interface{}{"summary": strings.TrimSpace(resp.Text)}}
		}

		result := e.dispatch(ctx, task, action)

		step := StepRecord{
			Index:      state.NextStep,
			ActionName: action.Name,
			Arguments:  action.Arguments,
			Reasoning:  action.Reasoning,
			Result:     result.output,
			Error:      result.err,
			At:         time.Now(),
		}
		state.Steps = append(state.Steps, step)
		state.NextStep++
		if result.createdFile != "" {
			state.CreatedFiles = appendUnique(state.CreatedFiles, result.createdFile)
		}

		e.saveState(state)
		emitProgress(progress, task.ID, state.NextStep, maxSteps, action.Name, statusOf(result))

		if action.Name == "done" {
			state.Done = true
			state.Summary = stringArg(action.Arguments, "summary", result.output)
			e.saveState(state)
			break
		}
		if result.fatal {
			state.Done = true
			state.Summary = fmt.Sprintf("fatal error: %s", result.err)
			e.saveState(state)
			return e.finish(task.ID, state, false), nil
		}
	}

	if !state.Done {
		state.Done = true
		state.Summary = "step limit reached without a done action"
	}

	res := e.finish(task.ID, state, true)

	if len(state.CreatedFiles) > 0 {
		res.Verification = e.verify(ctx, task, state, planner)
	}

	e.discardState(task.ID)
	return res, nil
}

func (e *Executor) finish(taskID string, state *planState, success bool) *Result {
	return &Result{
		TaskID:        taskID,
		Success:       success,
		StepsExecuted: state.NextStep,
		Summary:       state.Summary,
		CreatedFiles:  state.CreatedFiles,
		Error:         errorOf(state),
	}
}

func errorOf(state *planState) string {
	if len(state.Steps) == 0 {
		return ""
	}
	last := state.Steps[len(state.Steps)-1]
	return last.Error
}

func statusOf(r dispatchResult) string {
	if r.err != "" {
		return "error: " + r.err
	}
	return "ok"
}

func emitProgress(ch chan<- ProgressEvent, taskID string, step, maxSteps int, action, status string) {
	if ch == nil {
		return
	}
	select {
	case ch <- ProgressEvent{TaskID: taskID, Step: step, MaxSteps: maxSteps, ActionName: action, Status: status}:
	default:
	}
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

func looksLikeSourceTask(description string) bool {
	lower := strings.ToLower(description)
	for _, kw := range []string{"source", "refactor", "self-improve", "codebase", "write_source"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
