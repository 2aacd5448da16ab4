// Package provider implements the Completion Provider contract: the
// narrow interface the Model Router calls to actually generate text,
// satisfied here by a local stub (always available, zero cost) and a
// genai-backed remote provider.
package provider

import "context"

// Response is the shape every Completion Provider call returns,
// per spec.md §6's Completion Provider contract.
type Response struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
	DurationMs   int64
	CostUSD      float64
	Provider     string // e.g. "gemini", "local" — Budget Ledger's provider key
	Model        string // e.g. "gemini-2.0-flash", "stub" — Budget Ledger's model key
	Success      bool
	Error        string
}

// Provider is the Completion Provider contract consumed by the Model
// Router. Implementations must be safe for concurrent use; the local
// model is nonetheless exclusive in practice since only one completion
// request is in flight at a time per the router's single invocation path.
type Provider interface {
	// Generate produces a completion for prompt. stop is an optional
	// set of stop sequences; implementations may ignore it.
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64, stop []string) Response

	// ChatWithImage analyzes an image alongside a text prompt, returning
	// the same Response shape. Providers without vision support return
	// Success=false with a descriptive Error.
	ChatWithImage(ctx context.Context, textPrompt, imagePath string, maxTokens int, temperature float64) Response

	// Name identifies the provider for Budget Ledger pricing lookups
	// ("<provider>/<model>") and router logging.
	Name() string
}
