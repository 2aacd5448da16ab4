package executor

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// syntaxCheck parses a written source file with the Go grammar and
// reports the first parse error found, or "" on success. Non-.go files
// are always accepted, matching the original's py_compile check being a
// no-op for non-Python files.
func syntaxCheck(path, content string) string {
	if !strings.HasSuffix(path, ".go") {
		return ""
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(content))
	if err != nil {
		return fmt.Sprintf("parse failed: %v", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if errNode := firstError(root); errNode != nil {
		return fmt.Sprintf("syntax error near byte %d: %s", errNode.StartByte(), errNode.Type())
	}
	return ""
}

// firstError walks the parse tree looking for the first ERROR or
// MISSING node tree-sitter inserts when it cannot match the grammar.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstError(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}
