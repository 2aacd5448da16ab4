package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// snippetAllowedPackages whitelists stdlib-only imports for a run_python
// snippet, refusing filesystem, network, and process access. This is
// Archi's Go-native successor to the original CPython run_python tool:
// the action name is unchanged so the planner's vocabulary stays fixed,
// but the sandbox interprets a Go snippet via yaegi rather than spawning
// a Python subprocess.
var snippetAllowedPackages = map[string]bool{
	"strings":         true,
	"strconv":         true,
	"fmt":             true,
	"math":            true,
	"regexp":          true,
	"encoding/json":   true,
	"encoding/base64": true,
	"time":            true,
	"sort":            true,
	"bytes":           true,
	"errors":          true,
}

const snippetTimeout = 5 * time.Second

// dispatchRunSnippet interprets a Go snippet defining
// func Run(input string) (string, error) and calls it, bounded by
// snippetTimeout and a stdlib-only import whitelist.
func (e *Executor) dispatchRunSnippet(ctx context.Context, action stepAction) dispatchResult {
	code := stringArg(action.Arguments, "code", "")
	input := stringArg(action.Arguments, "input", "")
	if code == "" {
		return dispatchResult{err: "code is required"}
	}

	if err := validateSnippetImports(code); err != nil {
		return dispatchResult{err: err.Error()}
	}

	runCtx, cancel := context.WithTimeout(ctx, snippetTimeout)
	defer cancel()

	out, err := evalSnippet(runCtx, wrapSnippet(code), input)
	if err != nil {
		return dispatchResult{err: err.Error()}
	}
	return dispatchResult{output: out}
}

func validateSnippetImports(code string) error {
	var forbidden []string
	inBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			pkg := strings.Trim(trimmed, `"`)
			if pkg != "" && !snippetAllowedPackages[pkg] {
				forbidden = append(forbidden, pkg)
			}
		case strings.HasPrefix(trimmed, "import "):
			pkg := strings.Trim(strings.TrimPrefix(trimmed, "import "), `"`)
			if pkg != "" && !snippetAllowedPackages[pkg] {
				forbidden = append(forbidden, pkg)
			}
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v (stdlib-only whitelist)", forbidden)
	}
	return nil
}

func wrapSnippet(code string) string {
	if strings.Contains(code, "package main") {
		return code
	}
	return "package main\n\n" + code
}

func evalSnippet(ctx context.Context, code, input string) (string, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return "", fmt.Errorf("load stdlib symbols: %w", err)
	}

	if _, err := i.Eval(code); err != nil {
		return "", fmt.Errorf("snippet evaluation failed: %w", err)
	}

	runFn, err := i.Eval("main.Run")
	if err != nil {
		return "", fmt.Errorf("snippet must define func Run(input string) (string, error): %w", err)
	}
	run, ok := runFn.Interface().(func(string) (string, error))
	if !ok {
		return "", fmt.Errorf("Run has the wrong signature, expected func(string) (string, error)")
	}

	resultCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		out, err := run(input)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- out
	}()

	select {
	case out := <-resultCh:
		return out, nil
	case err := <-errCh:
		return "", err
	case <-ctx.Done():
		return "", fmt.Errorf("snippet timed out: %w", ctx.Err())
	}
}
