package router

import (
	"context"
	"strings"
	"testing"
	"time"

	"archi/internal/budget"
	"archi/internal/cache"
	"archi/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name     string
	response provider.Response
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64, stop []string) provider.Response {
	return f.response
}

func (f *fakeProvider) ChatWithImage(ctx context.Context, textPrompt, imagePath string, maxTokens int, temperature float64) provider.Response {
	return f.response
}

func (f *fakeProvider) Name() string { return f.name }

func newTestRouter(local, remote provider.Provider) (*Router, *budget.Ledger) {
	c := cache.New(time.Hour, 100, nil)
	ledger := budget.New(10, 200, 0.8, nil)
	return New(local, remote, c, ledger), ledger
}

func TestRouter_SimpleQueryUsesLocalHighConfidence(t *testing.T) {
	local := &fakeProvider{name: "local/stub", response: provider.Response{
		Text: "Paris", Provider: "local", Model: "stub", Success: true,
	}}
	remote := &fakeProvider{name: "gemini/gemini-2.0-flash"}

	r, _ := newTestRouter(local, remote)
	result := r.Generate(context.Background(), "What is the capital of France?", 100, 0.7, Flags{})

	assert.True(t, result.Success)
	assert.Equal(t, "local", result.Provider)
	assert.Equal(t, "Paris", result.Text)
}

func TestRouter_LowConfidenceEscalatesToRemote(t *testing.T) {
	local := &fakeProvider{name: "local/stub", response: provider.Response{
		Text: "I'm not sure, maybe it's complicated, it's unclear to me honestly speaking at length here",
		Provider: "local", Model: "stub", Success: true,
	}}
	remote := &fakeProvider{name: "gemini/gemini-2.0-flash", response: provider.Response{
		Text: "A detailed analysis follows.", Provider: "gemini", Model: "gemini-2.0-flash",
		Success: true, InputTokens: 1_000_000, OutputTokens: 1_000_000,
	}}

	r, ledger := newTestRouter(local, remote)
	ledger.SetPricing("gemini", "gemini-2.0-flash", budget.ModelPricing{InputPerMillion: 0.1, OutputPerMillion: 0.4})

	result := r.Generate(context.Background(), "Please describe how the two caching approaches differ for a small web service that handles many requests.", 200, 0.7, Flags{})

	assert.True(t, result.Success)
	assert.Equal(t, "gemini", result.Provider)

	summary := ledger.Summary("all")
	assert.InDelta(t, 0.5, summary.TotalCost, 1e-9)
}

func TestRouter_ForceRemote(t *testing.T) {
	local := &fakeProvider{name: "local/stub", response: provider.Response{Text: "local answer", Success: true}}
	remote := &fakeProvider{name: "gemini/gemini-2.0-flash", response: provider.Response{
		Text: "remote answer", Provider: "gemini", Model: "gemini-2.0-flash", Success: true,
	}}

	r, _ := newTestRouter(local, remote)
	result := r.Generate(context.Background(), "hello", 100, 0.7, Flags{ForceRemote: true})

	assert.Equal(t, "remote answer", result.Text)
}

func TestRouter_CacheHitAvoidsProviderCall(t *testing.T) {
	local := &fakeProvider{name: "local/stub", response: provider.Response{
		Text: "cached answer", Provider: "local", Model: "stub", Success: true,
	}}
	r, _ := newTestRouter(local, nil)

	first := r.Generate(context.Background(), "hi there", 100, 0.7, Flags{})
	require.True(t, first.Success)

	second := r.Generate(context.Background(), "hi there", 100, 0.7, Flags{})
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text, second.Text)
}

func TestRouter_BudgetHardStopBlocksRemote(t *testing.T) {
	local := &fakeProvider{name: "local/stub", response: provider.Response{
		Text: "uncertain maybe possibly", Success: true,
	}}
	remote := &fakeProvider{name: "gemini/gemini-2.0-flash", response: provider.Response{
		Text: "should not be reached", Success: true,
	}}

	c := cache.New(time.Hour, 100, nil)
	ledger := budget.New(0.001, 10, 0.8, nil)
	r := New(local, remote, c, ledger)

	result := r.Generate(context.Background(), "Please give a comprehensive detailed analysis covering every nuance of this long complex topic at length please", 200, 0.7, Flags{})

	assert.False(t, result.Success)
	assert.True(t, strings.Contains(result.Error, "budget hard stop"))
}

func TestRouter_NoRemoteConfigured(t *testing.T) {
	local := &fakeProvider{name: "local/stub", response: provider.Response{
		Text: "uncertain maybe", Success: true,
	}}
	r, _ := newTestRouter(local, nil)

	result := r.Generate(context.Background(), "Please give a comprehensive detailed analysis covering every nuance of this long complex topic at length please", 200, 0.7, Flags{})
	assert.False(t, result.Success)
	assert.Equal(t, "no remote provider configured", result.Error)
}

func TestRouter_LocalAvailable(t *testing.T) {
	local := &fakeProvider{name: "local/stub"}
	r, _ := newTestRouter(local, nil)
	assert.True(t, r.LocalAvailable())

	r2, _ := newTestRouter(nil, nil)
	assert.False(t, r2.LocalAvailable())
}

func TestClassifyComplexity(t *testing.T) {
	assert.Equal(t, "simple", classifyComplexity("hello there"))
	assert.Equal(t, "complex", classifyComplexity(strings.Repeat("word ", 60)))
	assert.Equal(t, "complex", classifyComplexity("Please analyze and compare these options carefully for me today"))
	assert.Equal(t, "medium", classifyComplexity("Tell me something interesting about your day and what you have been working on recently"))
}

func TestNeedsWebSearch(t *testing.T) {
	assert.True(t, needsWebSearch("User: what's the current bitcoin price"))
	assert.False(t, needsWebSearch("User: what's your favorite color"))
}

func TestExtractUserQuery(t *testing.T) {
	prompt := "System: you are Archi\nUser: what time is it\nRespond briefly"
	assert.Equal(t, "what time is it", extractUserQuery(prompt))
}
