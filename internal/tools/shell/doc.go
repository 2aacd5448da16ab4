// Package shell provides generic command execution and the git
// operations the Plan Executor uses to checkpoint source-code writes
// (rollback after a failed syntax check restores a file backup).
//
// Tools:
//   - run_command: execute a shell command
//   - git_diff, git_log: inspect repository state
//   - git_operation: add, commit, tag, push, pull, checkout, branch,
//     fetch, stash, reset
package shell
