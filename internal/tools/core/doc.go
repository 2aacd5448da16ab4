// Package core implements the filesystem tool actions named directly
// in the known action set: read_file, create_file, append_file,
// list_files, plus edit_file/delete_file/glob/grep as supporting
// file-editing actions a Plan Executor step needs in practice.
//
// Tools:
//   - read_file: read file contents
//   - create_file: write content to a file
//   - append_file: append content to a file
//   - edit_file: edit a file with search/replace
//   - delete_file: delete a file
//   - list_files: list directory contents
//   - glob: find files matching a pattern
//   - grep: search file contents with regex
package core
