package provider

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"archi/internal/logging"

	"google.golang.org/genai"
)

// Remote is a genai-backed Completion Provider, the reference remote
// implementation the Model Router escalates to when the local stub's
// confidence falls below threshold.
type Remote struct {
	client *genai.Client
	model  string
	kind   string
}

// NewRemote creates a genai-backed remote provider. apiKey and baseURL
// are normally supplied via config.RemoteProviderConfig (itself
// overridable by ARCHI_REMOTE_API_KEY / ARCHI_REMOTE_BASE_URL).
func NewRemote(ctx context.Context, kind, model, apiKey, baseURL string) (*Remote, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ARCHI_REMOTE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("remote provider requires an API key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	cfg := &genai.ClientConfig{APIKey: apiKey}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Remote{client: client, model: model, kind: kind}, nil
}

// Generate calls the remote model and reports token usage for Budget
// Ledger cost calculation.
func (r *Remote) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64, stop []string) Response {
	start := time.Now()

	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
	}
	if len(stop) > 0 {
		genConfig.StopSequences = stop
	}

	result, err := r.client.Models.GenerateContent(ctx, r.model,
		genai.Text(prompt), genConfig)
	duration := time.Since(start)

	if err != nil {
		logging.RouterWarn("remote generate failed: %v", err)
		return Response{
			Provider:   r.kind,
			Model:      r.model,
			Success:    false,
			Error:      err.Error(),
			DurationMs: duration.Milliseconds(),
		}
	}

	text := result.Text()
	var inputTokens, outputTokens int64
	if result.UsageMetadata != nil {
		inputTokens = int64(result.UsageMetadata.PromptTokenCount)
		outputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
	}

	return Response{
		Text:         text,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		DurationMs:   duration.Milliseconds(),
		Provider:     r.kind,
		Model:        r.model,
		Success:      strings.TrimSpace(text) != "",
	}
}

// ChatWithImage calls the remote model with an inline image and text
// prompt. image bytes are read from imagePath by the caller's Tool
// Registry before this call in practice; here imagePath is read directly
// for the reference implementation.
func (r *Remote) ChatWithImage(ctx context.Context, textPrompt, imagePath string, maxTokens int, temperature float64) Response {
	start := time.Now()

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return Response{Provider: r.kind, Model: r.model, Success: false, Error: fmt.Sprintf("read image: %v", err)}
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeTypeForPath(imagePath)),
		genai.NewPartFromText(textPrompt),
	}
	content := genai.NewContentFromParts(parts, genai.RoleUser)

	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
	}

	result, err := r.client.Models.GenerateContent(ctx, r.model, []*genai.Content{content}, genConfig)
	duration := time.Since(start)
	if err != nil {
		logging.RouterWarn("remote chat_with_image failed: %v", err)
		return Response{Provider: r.kind, Model: r.model, Success: false, Error: err.Error(), DurationMs: duration.Milliseconds()}
	}

	text := result.Text()
	var inputTokens, outputTokens int64
	if result.UsageMetadata != nil {
		inputTokens = int64(result.UsageMetadata.PromptTokenCount)
		outputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
	}

	return Response{
		Text:         text,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		DurationMs:   duration.Milliseconds(),
		Provider:     r.kind,
		Model:        r.model,
		Success:      strings.TrimSpace(text) != "",
	}
}

// Name reports the provider's identity for logging, e.g.
// "gemini/gemini-2.0-flash".
func (r *Remote) Name() string {
	return r.kind + "/" + r.model
}

func mimeTypeForPath(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
