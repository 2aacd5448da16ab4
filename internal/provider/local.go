package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"archi/internal/logging"
)

// LocalStub is the reference local Completion Provider: always
// available, zero cost, no vision support. It stands in for the
// original's GGUF-backed local model, which is out of scope for this
// control plane (concrete LLM clients are a non-goal; only the
// Completion Provider abstraction is specified).
type LocalStub struct {
	model string
}

// NewLocalStub creates a local stub provider reporting model as its
// bare model name (the "local" provider prefix is added by Name and
// by Budget Ledger lookups).
func NewLocalStub(model string) *LocalStub {
	if model == "" {
		model = "stub"
	}
	return &LocalStub{model: model}
}

// Generate returns a short deterministic acknowledgement of prompt.
// It never fails and never costs anything, making it the Model
// Router's always-available fallback tier.
func (l *LocalStub) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64, stop []string) Response {
	start := time.Now()
	text := reflect(prompt)
	return Response{
		Text:         text,
		InputTokens:  int64(len(strings.Fields(prompt))),
		OutputTokens: int64(len(strings.Fields(text))),
		DurationMs:   time.Since(start).Milliseconds(),
		CostUSD:      0,
		Provider:     "local",
		Model:        l.model,
		Success:      true,
	}
}

// ChatWithImage always fails: the local stub has no vision backend.
func (l *LocalStub) ChatWithImage(ctx context.Context, textPrompt, imagePath string, maxTokens int, temperature float64) Response {
	logging.RouterDebug("local stub has no vision support, image analysis unavailable")
	return Response{
		Provider: "local",
		Model:    l.model,
		Success:  false,
		Error:    "local stub has no vision backend",
	}
}

// Name reports the provider's identity for logging: "local/<model>".
func (l *LocalStub) Name() string {
	return "local/" + l.model
}

// reflect produces a short, deterministic response so the router's
// confidence estimation and caching logic have something real to work
// with during tests and offline operation.
func reflect(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) == 0 {
		return "..."
	}
	last := words[len(words)-1]
	last = strings.Trim(last, ".,!?")
	return fmt.Sprintf("Noted: %s", last)
}
