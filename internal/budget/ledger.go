// Package budget implements the Budget Ledger: a persistent record of
// per-provider token usage and spend that answers "am I allowed to
// spend X?" for the Model Router before every remote completion call.
package budget

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"archi/internal/logging"
	"archi/internal/store"
)

// Usage accumulates calls, tokens, and cost for one provider/model pair.
type Usage struct {
	Calls        int     `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// ModelPricing is the per-million-token price for one provider/model pair.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// defaultPricing seeds the table with the providers Archi ships with; a
// caller-supplied override cost, when given, takes precedence over this
// table, and a pair absent from it with no override is recorded at zero
// cost.
func defaultPricing() map[string]ModelPricing {
	return map[string]ModelPricing{
		"local/stub":              {InputPerMillion: 0, OutputPerMillion: 0},
		"gemini/gemini-2.0-flash": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
		"gemini/gemini-1.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 5.00},
	}
}

// CheckResult is the Budget Ledger's answer to "am I allowed to spend X?"
type CheckResult struct {
	Permitted    bool    `json:"permitted"`
	Reason       string  `json:"reason"`
	DailySpent   float64 `json:"daily_spent"`
	DailyLimit   float64 `json:"daily_limit"`
	MonthlySpent float64 `json:"monthly_spent"`
	MonthlyLimit float64 `json:"monthly_limit"`
}

// Summary is a derived-state view of accumulated usage for one period.
type Summary struct {
	Period     string           `json:"period"`
	TotalCost  float64          `json:"total_cost"`
	Calls      int              `json:"calls,omitempty"`
	ByProvider map[string]Usage `json:"by_provider,omitempty"`
	Limit      float64          `json:"limit,omitempty"`
	Percentage float64          `json:"percentage,omitempty"`
}

// persistedState is the JSON shape written to and read from the store's
// preferences table under key stateKey.
type persistedState struct {
	Usage        map[string]Usage   `json:"usage"`
	DailyUsage   map[string]float64 `json:"daily_usage"`
	MonthlyUsage map[string]float64 `json:"monthly_usage"`
}

// stateStore is the persistence contract the Ledger needs: a single
// string key/value slot, satisfied by *store.Store's preference methods.
type stateStore interface {
	GetPreference(key string) (string, error)
	SetPreference(key, value string) error
}

const stateKey = "budget_ledger_state"

// Ledger is the Budget Ledger. It is safe for concurrent use.
type Ledger struct {
	mu sync.Mutex

	dailyLimit   float64
	monthlyLimit float64
	warningPct   float64
	pricing      map[string]ModelPricing

	usage        map[string]Usage
	dailyUsage   map[string]float64
	monthlyUsage map[string]float64

	store       stateStore
	recordCount int

	warnedUnknown map[string]bool
}

// New creates a Budget Ledger with the given daily/monthly hard-stop
// limits and warning fraction (spec.md's monitoring.budget_warning_pct).
// store may be nil, in which case the ledger is in-memory only.
func New(dailyLimit, monthlyLimit, warningPct float64, store stateStore) *Ledger {
	l := &Ledger{
		dailyLimit:    dailyLimit,
		monthlyLimit:  monthlyLimit,
		warningPct:    warningPct,
		pricing:       defaultPricing(),
		usage:         make(map[string]Usage),
		dailyUsage:    make(map[string]float64),
		monthlyUsage:  make(map[string]float64),
		store:         store,
		warnedUnknown: make(map[string]bool),
	}
	l.load()
	return l
}

// SetPricing overrides or adds a provider/model pricing entry.
func (l *Ledger) SetPricing(provider, model string, pricing ModelPricing) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pricing[provider+"/"+model] = pricing
}

// Record atomically increments the relevant accumulators and
// periodically flushes to durable storage, per spec.md §4.1.
func (l *Ledger) Record(provider, model string, inputTokens, outputTokens int64, costOverride *float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := provider + "/" + model
	cost := 0.0
	if costOverride != nil {
		cost = *costOverride
	} else {
		cost = l.calculateCost(key, inputTokens, outputTokens)
	}

	u := l.usage[key]
	u.Calls++
	u.InputTokens += inputTokens
	u.OutputTokens += outputTokens
	u.CostUSD += cost
	l.usage[key] = u

	today := time.Now().Format("2006-01-02")
	month := time.Now().Format("2006-01")
	l.dailyUsage[today] += cost
	l.monthlyUsage[month] += cost

	logging.BudgetDebug("recorded: %s calls=%d cost=$%.6f", key, u.Calls, cost)

	l.recordCount++
	if l.recordCount%10 == 0 {
		l.flushLocked()
	}
}

func (l *Ledger) calculateCost(key string, inputTokens, outputTokens int64) float64 {
	pricing, ok := l.pricing[key]
	if !ok {
		if !l.warnedUnknown[key] {
			logging.BudgetWarn("no pricing entry for %s, treating as zero cost unless overridden", key)
			l.warnedUnknown[key] = true
		}
		return 0
	}
	return float64(inputTokens)/1_000_000*pricing.InputPerMillion + float64(outputTokens)/1_000_000*pricing.OutputPerMillion
}

// Check returns whether a request costing estimatedCost would keep
// daily and monthly spend within limits, per spec.md §4.1.
func (l *Ledger) Check(estimatedCost float64) CheckResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	month := time.Now().Format("2006-01")
	dailySpent := l.dailyUsage[today]
	monthlySpent := l.monthlyUsage[month]

	result := CheckResult{
		DailySpent:   dailySpent,
		DailyLimit:   l.dailyLimit,
		MonthlySpent: monthlySpent,
		MonthlyLimit: l.monthlyLimit,
	}

	if l.dailyLimit > 0 && dailySpent+estimatedCost > l.dailyLimit {
		result.Permitted = false
		result.Reason = "daily_budget_exceeded"
		return result
	}
	if l.monthlyLimit > 0 && monthlySpent+estimatedCost > l.monthlyLimit {
		result.Permitted = false
		result.Reason = "monthly_budget_exceeded"
		return result
	}

	result.Permitted = true
	result.Reason = "within_budget"
	return result
}

// WarningExceeded reports whether today's spend has crossed the
// budget-warning fraction of the daily limit, consulted by the Model
// Router's escalation-suppression step (spec.md §4.3 step 7).
func (l *Ledger) WarningExceeded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dailyLimit <= 0 {
		return false
	}
	today := time.Now().Format("2006-01-02")
	return l.dailyUsage[today]/l.dailyLimit >= l.warningPct
}

// Summary returns a derived-state view of accumulated usage for period,
// one of "today", "month", or "all".
func (l *Ledger) Summary(period string) Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	month := time.Now().Format("2006-01")

	switch period {
	case "today":
		total := l.dailyUsage[today]
		return Summary{Period: "today", TotalCost: total, Limit: l.dailyLimit, Percentage: pct(total, l.dailyLimit)}
	case "month":
		total := l.monthlyUsage[month]
		return Summary{Period: "month", TotalCost: total, Limit: l.monthlyLimit, Percentage: pct(total, l.monthlyLimit)}
	default:
		byProvider := make(map[string]Usage, len(l.usage))
		var total float64
		var calls int
		for k, v := range l.usage {
			byProvider[k] = v
			total += v.CostUSD
			calls += v.Calls
		}
		return Summary{Period: "all", TotalCost: total, Calls: calls, ByProvider: byProvider}
	}
}

func pct(total, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return total / limit * 100
}

// Recommendations returns human-readable spend advisories, grounded on
// the original cost tracker's get_recommendations().
func (l *Ledger) Recommendations() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total float64
	for _, u := range l.usage {
		total += u.CostUSD
	}
	if total == 0 {
		return []string{"No API usage yet, costs are zero"}
	}

	var recs []string

	type kv struct {
		key   string
		usage Usage
	}
	sorted := make([]kv, 0, len(l.usage))
	for k, v := range l.usage {
		sorted = append(sorted, kv{k, v})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].usage.CostUSD > sorted[j].usage.CostUSD })
	if len(sorted) > 0 {
		top := sorted[0]
		if p := top.usage.CostUSD / total * 100; p > 80 {
			recs = append(recs, fmt.Sprintf("%s accounts for %.0f%% of costs, consider caching more aggressively", top.key, p))
		}
	}

	today := time.Now().Format("2006-01-02")
	month := time.Now().Format("2006-01")
	warnAt := l.warningPct * 100
	if l.dailyLimit > 0 {
		if p := pct(l.dailyUsage[today], l.dailyLimit); p > warnAt {
			recs = append(recs, fmt.Sprintf("daily spend above %.0f%% of limit", p))
		}
	}
	if l.monthlyLimit > 0 {
		if p := pct(l.monthlyUsage[month], l.monthlyLimit); p > warnAt {
			recs = append(recs, fmt.Sprintf("monthly spend above %.0f%% of limit", p))
		}
	}

	if len(recs) == 0 {
		return []string{"No optimization needed, costs are low"}
	}
	return recs
}

// Flush persists the ledger's current state. Persistence failures are
// logged and do not block in-memory recording, per spec.md §4.1's
// failure semantics.
func (l *Ledger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushLocked()
}

func (l *Ledger) flushLocked() {
	if l.store == nil {
		return
	}
	state := persistedState{
		Usage:        l.usage,
		DailyUsage:   l.dailyUsage,
		MonthlyUsage: l.monthlyUsage,
	}
	data, err := json.Marshal(state)
	if err != nil {
		logging.BudgetWarn("failed to marshal ledger state: %v", err)
		return
	}
	if err := l.store.SetPreference(stateKey, string(data)); err != nil {
		logging.BudgetWarn("failed to persist ledger state: %v", err)
	}
}

func (l *Ledger) load() {
	if l.store == nil {
		return
	}
	raw, err := l.store.GetPreference(stateKey)
	if err != nil {
		if !errors.Is(err, store.ErrPreferenceNotFound) {
			logging.BudgetWarn("failed to load ledger state: %v", err)
		}
		return
	}
	var state persistedState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		logging.BudgetWarn("failed to parse ledger state: %v", err)
		return
	}
	if state.Usage != nil {
		l.usage = state.Usage
	}
	if state.DailyUsage != nil {
		l.dailyUsage = state.DailyUsage
	}
	if state.MonthlyUsage != nil {
		l.monthlyUsage = state.MonthlyUsage
	}
	logging.Budget("loaded ledger state: %d provider/model pairs", len(l.usage))
}
