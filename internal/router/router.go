// Package router implements the Model Router: it classifies prompt
// complexity, decides between the local and remote Completion
// Providers, consults the Response Cache and Budget Ledger, and
// records the outcome of every remote call.
package router

import (
	"context"
	"errors"
	"strings"

	"archi/internal/budget"
	"archi/internal/cache"
	"archi/internal/logging"
	"archi/internal/provider"
)

const (
	confidenceThreshold               = 0.7
	confidenceThresholdConversational = 0.5
	conversationalWordLimit           = 15
)

var complexKeywords = []string{
	"analyze", "compare", "evaluate", "explain why",
	"in detail", "step by step", "comprehensive", "detailed analysis",
}

var simpleKeywords = []string{
	"what is", "what's", "who is", "who are", "when was", "where is",
	"how many", "calculate", "define", "hello", "hi ", "hey ",
	"your name", "who are you", "what can you do",
}

var searchKeywords = []string{
	"current", "today", "now", "latest", "recent", "weather", "news",
	"stock price", "spot price", "price of", "market price", "commodity",
	"score", "what happened", "what's happening", "headline",
	"bitcoin", "crypto", "forex", "exchange rate",
}

var uncertaintyPhrases = []string{
	"i'm not sure", "i don't know", "maybe", "possibly",
	"it's unclear", "uncertain", "perhaps",
}

// Flags toggle the router's decision tree for a single Generate call.
type Flags struct {
	PreferLocal   bool
	ForceRemote   bool
	SkipWebSearch bool
	UseReasoning  bool
}

// Result is the Model Router's answer to a Generate call.
type Result struct {
	Text         string
	Provider     string
	Model        string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	Confidence   float64
	Cached       bool
	Success      bool
	Error        string
}

// budgetLedger is the subset of *budget.Ledger the router consults.
type budgetLedger interface {
	Check(estimatedCost float64) budget.CheckResult
	WarningExceeded() bool
	Record(provider, model string, inputTokens, outputTokens int64, costOverride *float64)
}

// Router is the Model Router (C).
type Router struct {
	local  provider.Provider
	remote provider.Provider // may be nil if no remote credentials configured
	cache  *cache.Cache
	ledger budgetLedger

	localUsed  int64
	remoteUsed int64
}

// New creates a Model Router. remote may be nil when no remote
// provider is configured, in which case the router never escalates.
func New(local, remote provider.Provider, c *cache.Cache, ledger budgetLedger) *Router {
	return &Router{local: local, remote: remote, cache: c, ledger: ledger}
}

// LocalAvailable reports whether the local provider is configured at
// all, distinct from whether it was chosen for a particular prompt.
func (r *Router) LocalAvailable() bool {
	return r.local != nil
}

// Generate routes prompt to the local or remote provider following
// spec.md §4.3's decision tree: cache check, complexity
// classification, web-search-need detection, provider decision,
// confidence estimation, threshold check, budget-aware fallback,
// budget gate, cost recording, final caching. The cache check and the
// eventual fill both go through GetOrFill, so two concurrent callers
// with the same fingerprint share a single provider call rather than
// both paying for it.
func (r *Router) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64, flags Flags) Result {
	fingerprint := cache.Fingerprint(prompt)

	var filled Result
	wasFilled := false
	entry, _, _ := r.cache.GetOrFill(fingerprint, func() (cache.Entry, error) {
		wasFilled = true
		filled = r.decide(ctx, prompt, maxTokens, temperature, flags)
		if !filled.Success {
			// Don't let GetOrFill cache a failed provider call.
			return cache.Entry{}, errUncacheableResult
		}
		return cache.Entry{
			Response:     filled.Text,
			Provider:     filled.Provider,
			Model:        filled.Model,
			InputTokens:  filled.InputTokens,
			OutputTokens: filled.OutputTokens,
		}, nil
	})
	if wasFilled {
		return filled
	}

	logging.Router("cache hit for fingerprint %s", fingerprint[:12])
	return Result{
		Text:     entry.Response,
		Provider: entry.Provider,
		Model:    entry.Model,
		Cached:   true,
		Success:  true,
	}
}

// errUncacheableResult signals GetOrFill's fill closure produced a
// failed provider call that must not be written to the cache.
var errUncacheableResult = errors.New("router: uncacheable result")

// decide runs spec.md §4.3's provider decision tree, returning the
// Result GetOrFill's fill closure turns into the cached Entry.
func (r *Router) decide(ctx context.Context, prompt string, maxTokens int, temperature float64, flags Flags) Result {
	complexity := classifyComplexity(prompt)
	needsSearch := false
	if !flags.SkipWebSearch {
		needsSearch = needsWebSearch(prompt)
	}
	logging.RouterDebug("complexity=%s needs_search=%v prefer_local=%v force_remote=%v",
		complexity, needsSearch, flags.PreferLocal, flags.ForceRemote)

	if flags.ForceRemote {
		return r.generateRemote(ctx, prompt, maxTokens, temperature, needsSearch)
	}

	tryLocal := r.local != nil && (flags.PreferLocal || (complexity != "complex" && !needsSearch))
	if tryLocal {
		resp := r.local.Generate(ctx, prompt, maxTokens, temperature, nil)
		confidence := estimateConfidence(resp)

		if flags.PreferLocal && resp.Success && strings.TrimSpace(resp.Text) != "" {
			return r.useLocal(resp, confidence)
		}

		userQuery := extractUserQuery(prompt)
		threshold := confidenceThreshold
		if len(strings.Fields(userQuery)) <= conversationalWordLimit && !needsSearch {
			threshold = confidenceThresholdConversational
		}

		if confidence >= threshold {
			return r.useLocal(resp, confidence)
		}

		logging.Router("local confidence %.2f below threshold %.2f, escalating", confidence, threshold)

		if complexity == "simple" && !needsSearch && r.ledger != nil && r.ledger.WarningExceeded() {
			logging.Router("budget warning threshold exceeded, keeping local for simple query")
			return r.useLocal(resp, confidence)
		}
	}

	return r.generateRemote(ctx, prompt, maxTokens, temperature, needsSearch)
}

// useLocal builds the Result for a local-provider answer. Caching is
// the caller's (Generate's GetOrFill closure) responsibility now, not
// this function's.
func (r *Router) useLocal(resp provider.Response, confidence float64) Result {
	r.localUsed++
	return Result{
		Text:         resp.Text,
		Provider:     resp.Provider,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Confidence:   confidence,
		Success:      resp.Success,
		Error:        resp.Error,
	}
}

func (r *Router) generateRemote(ctx context.Context, prompt string, maxTokens int, temperature float64, needsSearch bool) Result {
	if r.remote == nil {
		return Result{Success: false, Error: "no remote provider configured"}
	}

	if r.ledger != nil {
		check := r.ledger.Check(0.01)
		if !check.Permitted {
			logging.RouterWarn("budget hard stop: $%.2f >= $%.2f (%s), remote call blocked",
				check.DailySpent, check.DailyLimit, check.Reason)
			return Result{
				Success: false,
				Error:   "budget hard stop: " + check.Reason,
				Model:   "blocked",
			}
		}
	}

	resp := r.remote.Generate(ctx, prompt, maxTokens, temperature, nil)
	r.remoteUsed++

	if resp.Success && r.ledger != nil {
		r.ledger.Record(resp.Provider, resp.Model, resp.InputTokens, resp.OutputTokens, nil)
	}

	return Result{
		Text:         resp.Text,
		Provider:     resp.Provider,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		CostUSD:      resp.CostUSD,
		Success:      resp.Success,
		Error:        resp.Error,
	}
}

// Stats is the router's cumulative routing and cache telemetry.
type Stats struct {
	LocalUsed       int64   `json:"local_used"`
	RemoteUsed      int64   `json:"remote_used"`
	TotalQueries    int64   `json:"total_queries"`
	LocalPercentage float64 `json:"local_percentage"`
	CacheHits       int64   `json:"cache_hits"`
	CacheMisses     int64   `json:"cache_misses"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
}

// Stats returns routing and cache statistics.
func (r *Router) Stats() Stats {
	total := r.localUsed + r.remoteUsed
	var localPct float64
	if total > 0 {
		localPct = float64(r.localUsed) / float64(total) * 100
	}
	cacheStats := r.cache.Stats()
	return Stats{
		LocalUsed:       r.localUsed,
		RemoteUsed:      r.remoteUsed,
		TotalQueries:    total,
		LocalPercentage: localPct,
		CacheHits:       cacheStats.Hits,
		CacheMisses:     cacheStats.Misses,
		CacheHitRate:    cacheStats.HitRate,
	}
}

func classifyComplexity(prompt string) string {
	words := strings.Fields(prompt)
	n := len(words)
	if n < 10 {
		return "simple"
	}
	if n > 50 {
		return "complex"
	}

	lower := strings.ToLower(prompt)
	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			return "complex"
		}
	}
	for _, kw := range simpleKeywords {
		if strings.Contains(lower, kw) {
			return "simple"
		}
	}
	return "medium"
}

func needsWebSearch(prompt string) bool {
	query := strings.ToLower(extractUserQuery(prompt))
	for _, kw := range searchKeywords {
		if strings.Contains(query, kw) {
			return true
		}
	}
	return false
}

// extractUserQuery pulls the user's actual message out of a composite
// prompt (system + history + user turn), so complexity and
// web-search classification see the real question rather than
// boilerplate scaffolding.
func extractUserQuery(prompt string) string {
	lines := strings.Split(prompt, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		stripped := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(stripped, "User:") {
			continue
		}
		userText := strings.TrimSpace(strings.TrimPrefix(stripped, "User:"))
		for j := i + 1; j < len(lines); j++ {
			line := strings.TrimSpace(lines[j])
			if line == "" || strings.HasPrefix(line, "Respond ") || strings.HasPrefix(line, "Archi:") || strings.HasPrefix(line, "CRITICAL") {
				break
			}
			userText += " " + line
		}
		return strings.TrimSpace(userText)
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return strings.TrimSpace(lines[i])
		}
	}
	if len(prompt) > 200 {
		return prompt[:200]
	}
	return prompt
}

func estimateConfidence(resp provider.Response) float64 {
	if !resp.Success {
		return 0.0
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return 0.3
	}
	words := strings.Fields(text)
	wordCount := len(words)

	lower := strings.ToLower(text)
	hasUncertainty := false
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			hasUncertainty = true
			break
		}
	}

	if len(text) < 20 && wordCount <= 3 && !hasUncertainty {
		return 0.85
	}

	confidence := 0.7
	if wordCount < 20 {
		confidence += 0.1
	} else if wordCount > 100 {
		confidence -= 0.1
	}
	if hasUncertainty {
		confidence -= 0.2
	}
	if resp.DurationMs > 10_000 {
		confidence -= 0.1
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}
