package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectionOf(t *testing.T) {
	tests := []struct {
		amount string
		want   Direction
	}{
		{"-0.01", Outflow},
		{"-120", Outflow},
		{"0", Inflow},
		{"0.00", Inflow},
		{"500", Inflow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DirectionOf(decimal.RequireFromString(tt.amount)), tt.amount)
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("outflow")
	require.NoError(t, err)
	assert.Equal(t, Outflow, d)

	_, err = ParseDirection("debit")
	assert.Error(t, err)
}

func TestDecision_ZeroValueIsKeep(t *testing.T) {
	var d Decision
	assert.Equal(t, KeepExisting, d)
	assert.False(t, d.Replaces())
	assert.True(t, ReplaceWithNew.Replaces())
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		in   string
		want Decision
	}{
		{"keep_existing", KeepExisting},
		{"keep", KeepExisting},
		{"replace_with_new", ReplaceWithNew},
		{"replace", ReplaceWithNew},
	}
	for _, tt := range tests {
		got, err := ParseDecision(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseDecision("merge")
	assert.Error(t, err)
}

func TestDecision_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]Decision{"a": ReplaceWithNew, "b": KeepExisting})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"replace_with_new","b":"keep_existing"}`, string(data))

	var got map[int]Decision
	require.NoError(t, json.Unmarshal([]byte(`{"0":"replace","1":"keep_existing"}`), &got))
	assert.Equal(t, ReplaceWithNew, got[0])
	assert.Equal(t, KeepExisting, got[1])

	assert.Error(t, json.Unmarshal([]byte(`{"0":"maybe"}`), &got))
}

func TestRule_AppliesTo(t *testing.T) {
	assert.True(t, Rule{BankScope: GlobalScope}.AppliesTo("a"))
	assert.True(t, Rule{}.AppliesTo("a"))
	assert.True(t, Rule{BankScope: "a"}.AppliesTo("a"))
	assert.False(t, Rule{BankScope: "b"}.AppliesTo("a"))
}

func TestRawRecord_Signed(t *testing.T) {
	r := RawRecord{Amount: decimal.RequireFromString("12.50"), Direction: Outflow}
	assert.Equal(t, "-12.5", r.Signed().String())
	r.Direction = Inflow
	assert.Equal(t, "12.5", r.Signed().String())
}

func TestEntryFromCandidate(t *testing.T) {
	c := Candidate{
		RawRecord: RawRecord{
			Date:        Date(2024, 1, 5),
			Description: "CITY POWER",
			Amount:      decimal.RequireFromString("120.00"),
			Direction:   Outflow,
			Reference:   "F1",
		},
		Category:       "Utilities",
		AutoReconciled: true,
	}
	e := EntryFromCandidate(c, "acct-1", "batch-1")
	assert.Zero(t, e.ID)
	assert.Equal(t, "acct-1", e.AccountID)
	assert.Equal(t, "batch-1", e.Provenance)
	assert.True(t, e.Imported())
	assert.Equal(t, "Utilities", e.Category)
	assert.True(t, e.AutoReconciled)
	assert.Equal(t, "F1", e.Reference)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, Date(2024, 1, 5), d)

	_, err = ParseDate("01/05/2024")
	assert.Error(t, err)
}
