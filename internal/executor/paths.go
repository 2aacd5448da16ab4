package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"archi/internal/logging"
)

// protectedPaths are never writable, regardless of other authorization:
// the execution engine itself, the safety policy, and the agent's prime
// directive.
var protectedPaths = []string{
	"internal/executor",
	"internal/safety",
	"config/prime_directive.txt",
}

// resolveWorkspacePath resolves a workspace-relative path to an absolute
// path, enforcing that it stays within the workspace root.
func (e *Executor) resolveWorkspacePath(relative string) (string, error) {
	rel := normalizeRelative(relative)
	if !strings.HasPrefix(rel, e.cfg.WorkspaceDir+"/") && rel != e.cfg.WorkspaceDir {
		rel = filepath.ToSlash(filepath.Join(e.cfg.WorkspaceDir, rel))
	}
	full := filepath.Clean(filepath.Join(e.cfg.ProjectRoot, filepath.FromSlash(rel)))
	workspaceRoot := filepath.Clean(filepath.Join(e.cfg.ProjectRoot, e.cfg.WorkspaceDir))
	if full != workspaceRoot && !strings.HasPrefix(full, workspaceRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", relative)
	}
	return full, nil
}

// resolveProjectPath resolves a project-relative path for reading or
// source modification, enforcing that it stays within the project root.
// Protected files must still be checked separately before a write.
func (e *Executor) resolveProjectPath(relative string) (string, error) {
	rel := normalizeRelative(relative)
	full := filepath.Clean(filepath.Join(e.cfg.ProjectRoot, filepath.FromSlash(rel)))
	projectRoot := filepath.Clean(e.cfg.ProjectRoot)
	if full != projectRoot && !strings.HasPrefix(full, projectRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes project root: %s", relative)
	}
	return full, nil
}

func normalizeRelative(relative string) string {
	rel := strings.TrimPrefix(relative, "/")
	return strings.ReplaceAll(rel, "\\", "/")
}

// checkProtected returns an error if relative names a protected file or
// directory.
func checkProtected(relative string) error {
	rel := normalizeRelative(relative)
	for _, protected := range protectedPaths {
		if rel == protected || strings.HasPrefix(rel, protected+"/") || strings.HasSuffix(rel, "/"+protected) {
			return fmt.Errorf("protected path cannot be modified: %s", protected)
		}
	}
	return nil
}

// backupFile creates a timestamped backup of filepath under
// DataDir/source_backups before a source write, using a flattened
// filename so backups are easy to locate and restore from. Returns the
// backup path, or "" if there was nothing to back up.
func (e *Executor) backupFile(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	backupDir := filepath.Join(e.cfg.DataDir, "source_backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	rel, err := filepath.Rel(e.cfg.ProjectRoot, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	safeName := strings.ReplaceAll(strings.ReplaceAll(rel, string(filepath.Separator), "__"), "/", "__")
	backupPath := filepath.Join(backupDir, fmt.Sprintf("%s.%s.bak", safeName, time.Now().Format("20060102_150405")))

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file for backup: %w", err)
	}
	if err := os.WriteFile(backupPath, content, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	logging.ExecutorDebug("backed up %s to %s", path, backupPath)
	return backupPath, nil
}

// restoreBackup overwrites path with the contents of backupPath.
func restoreBackup(path, backupPath string) error {
	content, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	return os.WriteFile(path, content, 0o644)
}
