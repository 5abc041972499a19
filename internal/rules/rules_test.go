package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/stmtimport/internal/model"
)

func rec(desc string, dir model.Direction) model.RawRecord {
	return model.RawRecord{
		Date:        model.Date(2024, 1, 5),
		Description: desc,
		Amount:      decimal.RequireFromString("10.00"),
		Direction:   dir,
	}
}

var testRules = []model.Rule{
	{Keyword: "payroll", Direction: model.Inflow, BankScope: model.GlobalScope, Category: "Salary"},
	{Keyword: "grocer", Direction: model.Outflow, BankScope: "acct-2", Category: "Groceries (card)"},
	{Keyword: "grocer", Direction: model.Outflow, BankScope: model.GlobalScope, Category: "Groceries"},
	{Keyword: "fresh", Direction: model.Outflow, BankScope: model.GlobalScope, Category: "Produce"},
	{Keyword: "refund", Direction: model.Inflow, BankScope: model.GlobalScope, Category: "Refunds"},
}

func TestCategorize_FirstMatchWins(t *testing.T) {
	c := Categorize(testRules, rec("GROCER #12 FRESH FOODS", model.Outflow), "acct-1")
	assert.Equal(t, "Groceries", c.Category)
	assert.True(t, c.AutoReconciled)
}

func TestCategorize_AccountScope(t *testing.T) {
	c := Categorize(testRules, rec("grocer", model.Outflow), "acct-2")
	assert.Equal(t, "Groceries (card)", c.Category)
}

func TestCategorize_DirectionMustMatch(t *testing.T) {
	c := Categorize(testRules, rec("ACME PAYROLL REVERSAL", model.Outflow), "acct-1")
	assert.Equal(t, model.Uncategorized, c.Category)
	assert.False(t, c.AutoReconciled)
}

func TestCategorize_CaseInsensitive(t *testing.T) {
	c := Categorize(testRules, rec("Acme PayRoll", model.Inflow), "acct-1")
	assert.Equal(t, "Salary", c.Category)
}

func TestCategorize_NoRules(t *testing.T) {
	c := Categorize(nil, rec("anything", model.Inflow), "acct-1")
	assert.Equal(t, model.Uncategorized, c.Category)
	assert.False(t, c.AutoReconciled)
	assert.Equal(t, "anything", c.Description)
}

func TestCategorize_EmptyKeywordNeverMatches(t *testing.T) {
	rules := []model.Rule{{Keyword: "", Direction: model.Inflow, Category: "All"}}
	c := Categorize(rules, rec("x", model.Inflow), "acct-1")
	assert.Equal(t, model.Uncategorized, c.Category)
}

func TestCategorize_Deterministic(t *testing.T) {
	r := rec("grocer fresh refund payroll", model.Outflow)
	first := Categorize(testRules, r, "acct-1")
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Categorize(testRules, r, "acct-1"))
	}
}

func TestApply_PreservesOrder(t *testing.T) {
	recs := []model.RawRecord{
		rec("payroll", model.Inflow),
		rec("unknown", model.Outflow),
		rec("fresh market", model.Outflow),
	}
	got := Apply(testRules, recs, "acct-1")
	require.Len(t, got, 3)
	assert.Equal(t, "Salary", got[0].Category)
	assert.Equal(t, model.Uncategorized, got[1].Category)
	assert.Equal(t, "Produce", got[2].Category)
	assert.Equal(t, "fresh market", got[2].Description)
}

func TestStatic_Rules(t *testing.T) {
	got, err := Static(testRules).Rules(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Len(t, got, len(testRules))
}

func TestFileSource_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, Save(path, testRules))

	got, err := FileSource{Path: path}.Rules(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, testRules, got)
}

func TestFileSource_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - keyword: payroll
    direction: inflow
    bank_scope: global
    category: Salary
  - keyword: rent
    direction: outflow
    bank_scope: acct-1
    category: Housing
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := FileSource{Path: path}.Rules(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Housing", got[1].Category)
	assert.Equal(t, model.Outflow, got[1].Direction)
	assert.Equal(t, "acct-1", got[1].BankScope)
}

func TestFileSource_Missing(t *testing.T) {
	got, err := FileSource{Path: filepath.Join(t.TempDir(), "none.yaml")}.Rules(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileSource_EmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o644))
	got, err := FileSource{Path: path}.Rules(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`rules:
  - keyword: ""
    direction: sideways
    category: ""
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule 0: keyword is empty")
	assert.Contains(t, err.Error(), `unknown direction "sideways"`)
	assert.Contains(t, err.Error(), "category is empty")
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("rules: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing rules")
}
