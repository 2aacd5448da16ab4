package budget

import (
	"strings"
	"testing"

	"archi/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	values map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]string)}
}

func (f *fakeStore) GetPreference(key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", store.ErrPreferenceNotFound
	}
	return v, nil
}

func (f *fakeStore) SetPreference(key, value string) error {
	f.values[key] = value
	return nil
}

func TestLedger_RecordAndSummary(t *testing.T) {
	l := New(10, 200, 0.8, nil)

	l.Record("gemini", "gemini-2.0-flash", 1_000_000, 500_000, nil)

	summary := l.Summary("all")
	assert.Equal(t, 1, summary.Calls)
	assert.InDelta(t, 0.10+0.20, summary.TotalCost, 1e-9)
}

func TestLedger_RecordWithOverride(t *testing.T) {
	l := New(10, 200, 0.8, nil)
	cost := 0.005
	l.Record("local", "stub", 100, 100, &cost)

	summary := l.Summary("today")
	assert.InDelta(t, 0.005, summary.TotalCost, 1e-9)
}

func TestLedger_UnknownProviderZeroCost(t *testing.T) {
	l := New(10, 200, 0.8, nil)
	l.Record("mystery", "model-x", 1_000_000, 1_000_000, nil)

	summary := l.Summary("today")
	assert.Equal(t, 0.0, summary.TotalCost)
}

func TestLedger_Check(t *testing.T) {
	l := New(1.0, 10.0, 0.8, nil)

	result := l.Check(0.5)
	assert.True(t, result.Permitted)
	assert.Equal(t, "within_budget", result.Reason)

	cost := 0.9
	l.Record("gemini", "gemini-2.0-flash", 0, 0, &cost)

	result = l.Check(0.5)
	assert.False(t, result.Permitted)
	assert.Equal(t, "daily_budget_exceeded", result.Reason)
}

func TestLedger_CheckMonthlyExceeded(t *testing.T) {
	l := New(0, 1.0, 0.8, nil)
	cost := 0.9
	l.Record("gemini", "gemini-2.0-flash", 0, 0, &cost)

	result := l.Check(0.5)
	assert.False(t, result.Permitted)
	assert.Equal(t, "monthly_budget_exceeded", result.Reason)
}

func TestLedger_WarningExceeded(t *testing.T) {
	l := New(1.0, 10.0, 0.5, nil)
	assert.False(t, l.WarningExceeded())

	cost := 0.6
	l.Record("gemini", "gemini-2.0-flash", 0, 0, &cost)
	assert.True(t, l.WarningExceeded())
}

func TestLedger_Recommendations_NoUsage(t *testing.T) {
	l := New(10, 200, 0.8, nil)
	recs := l.Recommendations()
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "No API usage")
}

func TestLedger_Recommendations_DominantProvider(t *testing.T) {
	l := New(10, 200, 0.8, nil)
	cost := 1.0
	l.Record("gemini", "gemini-1.5-pro", 0, 0, &cost)
	smallCost := 0.01
	l.Record("local", "stub", 0, 0, &smallCost)

	recs := l.Recommendations()
	found := false
	for _, r := range recs {
		if strings.Contains(r, "gemini/gemini-1.5-pro") {
			found = true
		}
	}
	assert.True(t, found, "expected a recommendation calling out the dominant provider, got %v", recs)
}

func TestLedger_PersistsAcrossInstances(t *testing.T) {
	fs := newFakeStore()

	l1 := New(10, 200, 0.8, fs)
	l1.Record("gemini", "gemini-2.0-flash", 1_000_000, 0, nil)
	l1.Flush()

	l2 := New(10, 200, 0.8, fs)
	summary := l2.Summary("all")
	assert.Equal(t, 1, summary.Calls)
	assert.InDelta(t, 0.10, summary.TotalCost, 1e-9)
}

func TestLedger_SetPricing(t *testing.T) {
	l := New(10, 200, 0.8, nil)
	l.SetPricing("custom", "model-y", ModelPricing{InputPerMillion: 2.0, OutputPerMillion: 4.0})

	l.Record("custom", "model-y", 1_000_000, 1_000_000, nil)
	summary := l.Summary("all")
	assert.InDelta(t, 6.0, summary.TotalCost, 1e-9)
}
