package research

import (
	"archi/internal/tools"
)

// RegisterAll registers all research tools with the given registry.
func RegisterAll(registry *tools.Registry) error {
	allTools := []*tools.Tool{
		WebSearchTool(),
		WebFetchTool(),

		BrowserNavigateTool(),
		BrowserExtractTool(),
		BrowserScreenshotTool(),
		BrowserClickTool(),
		BrowserTypeTool(),
		BrowserCloseTool(),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
