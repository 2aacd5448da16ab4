//go:build integration
package shell_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"archi/internal/tools/shell"
	"github.com/stretchr/testify/suite"
)

type ShellIntegrationSuite struct {
	suite.Suite
	tmpDir string
	ctx    context.Context
}

func (s *ShellIntegrationSuite) SetupTest() {
	s.tmpDir = s.T().TempDir()
	s.ctx = context.Background()
}

func (s *ShellIntegrationSuite) TestRunCommandTool_Integration() {
	tool := shell.RunCommandTool()

	// 1. Simple Echo
	result, err := tool.Execute(s.ctx, map[string]any{
		"command": "echo integration test",
	})
	s.Require().NoError(err)
	s.Contains(result, "integration test")

	// 2. Failing Command
	_, err = tool.Execute(s.ctx, map[string]any{
		"command": "exit 1",
	})
	s.Require().Error(err)
	s.Contains(err.Error(), "command failed")

	// 3. Environment Variables
	result, err = tool.Execute(s.ctx, map[string]any{
		"command": "echo $TEST_ENV_VAR",
		"env": map[string]any{
			"TEST_ENV_VAR": "secret_value",
		},
	})
	s.Require().NoError(err)
	s.Contains(result, "secret_value")

	// 4. Working Directory
	subdir := filepath.Join(s.tmpDir, "subdir")
	s.Require().NoError(os.Mkdir(subdir, 0755))
	result, err = tool.Execute(s.ctx, map[string]any{
		"command":     "pwd",
		"working_dir": subdir,
	})
	s.Require().NoError(err)
	realResult, _ := filepath.EvalSymlinks(strings.TrimSpace(result))
	s.True(strings.HasSuffix(realResult, filepath.Base(subdir)), "pwd result %q should end with %q", realResult, filepath.Base(subdir))
}

func (s *ShellIntegrationSuite) TestGitOperationTool_Integration() {
	tool := shell.GitOperationTool()
	repoDir := filepath.Join(s.tmpDir, "repo")
	s.Require().NoError(os.Mkdir(repoDir, 0755))

	runGit := func(op string, args map[string]any) string {
		if args == nil {
			args = make(map[string]any)
		}
		args["operation"] = op
		args["working_dir"] = repoDir
		res, err := tool.Execute(s.ctx, args)
		s.Require().NoError(err, "git %s failed", op)
		return res
	}

	runCmd := shell.RunCommandTool()
	_, err := runCmd.Execute(s.ctx, map[string]any{
		"command":     "git init",
		"working_dir": repoDir,
	})
	s.Require().NoError(err)

	_, err = runCmd.Execute(s.ctx, map[string]any{
		"command":     "git config user.email 'test@example.com' && git config user.name 'Test User'",
		"working_dir": repoDir,
	})
	s.Require().NoError(err)

	s.Require().NoError(os.WriteFile(filepath.Join(repoDir, "file.txt"), []byte("content"), 0644))
	runGit("add", map[string]any{"files": "."})

	runGit("commit", map[string]any{"message": "initial commit"})

	logTool := shell.GitLogTool()
	logResult, err := logTool.Execute(s.ctx, map[string]any{
		"working_dir": repoDir,
		"count":       1,
	})
	s.Require().NoError(err)
	s.Contains(logResult, "initial commit")

	runGit("tag", map[string]any{"branch": "checkpoint-1"})

	runGit("branch", map[string]any{"branch": "feature-branch"})
	runGit("checkout", map[string]any{"branch": "feature-branch"})

	status := runGit("branch", nil)
	s.Contains(status, "feature-branch")
}

func TestShellIntegrationSuite(t *testing.T) {
	suite.Run(t, new(ShellIntegrationSuite))
}
