package shell

import (
	"archi/internal/tools"
)

// RegisterAll registers all shell and git tools with the given registry.
func RegisterAll(registry *tools.Registry) error {
	allTools := []*tools.Tool{
		RunCommandTool(),
		GitDiffTool(),
		GitLogTool(),
		GitOperationTool(),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
