package matcher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/stmtimport/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func cand(day int, amount string, dir model.Direction, desc string) model.Candidate {
	return model.Candidate{
		RawRecord: model.RawRecord{
			Date:        model.Date(2024, time.January, day),
			Description: desc,
			Amount:      dec(amount),
			Direction:   dir,
		},
		Category: model.Uncategorized,
	}
}

func entry(id int64, day int, amount string, dir model.Direction) model.LedgerEntry {
	return model.LedgerEntry{
		ID:        id,
		AccountID: "acct-1",
		Date:      model.Date(2024, time.January, day),
		Amount:    dec(amount),
		Direction: dir,
	}
}

func TestMatch_SplitsCleanAndConflicts(t *testing.T) {
	cands := []model.Candidate{
		cand(5, "120.00", model.Outflow, "CITY POWER"),
		cand(6, "500.00", model.Inflow, "PAYROLL"),
		cand(7, "45.50", model.Outflow, "GROCER"),
	}
	existing := []model.LedgerEntry{entry(10, 5, "120.00", model.Outflow)}

	res := Match(cands, existing)
	require.Len(t, res.Conflicts, 1)
	require.Len(t, res.Clean, 2)

	pair := res.Conflicts[0]
	assert.Equal(t, 0, pair.ID)
	assert.Equal(t, int64(10), pair.Existing.ID)
	assert.Equal(t, "CITY POWER", pair.Candidate.Description)
	assert.Equal(t, model.KeepExisting, pair.Decision)
	assert.Equal(t, "PAYROLL", res.Clean[0].Description)
	assert.Equal(t, "GROCER", res.Clean[1].Description)
}

func TestMatch_MultisetConsumption(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7} {
		var cands []model.Candidate
		var existing []model.LedgerEntry
		for i := 0; i < n; i++ {
			cands = append(cands, cand(9, "20.00", model.Outflow, "ATM"))
			existing = append(existing, entry(int64(100+i), 9, "20.00", model.Outflow))
		}

		res := Match(cands, existing)
		assert.Len(t, res.Conflicts, n, "n=%d", n)
		assert.Empty(t, res.Clean, "n=%d", n)

		seen := map[int64]bool{}
		for i, p := range res.Conflicts {
			assert.Equal(t, i, p.ID)
			assert.False(t, seen[p.Existing.ID], "entry %d paired twice", p.Existing.ID)
			seen[p.Existing.ID] = true
		}
	}
}

func TestMatch_MoreCandidatesThanEntries(t *testing.T) {
	cands := []model.Candidate{
		cand(9, "20.00", model.Outflow, "a"),
		cand(9, "20.00", model.Outflow, "b"),
		cand(9, "20.00", model.Outflow, "c"),
	}
	existing := []model.LedgerEntry{entry(1, 9, "20", model.Outflow)}

	res := Match(cands, existing)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "a", res.Conflicts[0].Candidate.Description)
	require.Len(t, res.Clean, 2)
	assert.Equal(t, "b", res.Clean[0].Description)
	assert.Equal(t, "c", res.Clean[1].Description)
}

func TestMatch_FirstEqualEntryIsUsed(t *testing.T) {
	existing := []model.LedgerEntry{
		entry(1, 9, "20.00", model.Inflow),
		entry(2, 9, "20.00", model.Outflow),
		entry(3, 9, "20.00", model.Outflow),
	}
	res := Match([]model.Candidate{cand(9, "20.00", model.Outflow, "x")}, existing)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, int64(2), res.Conflicts[0].Existing.ID)
}

func TestMatch_DescriptionIgnored(t *testing.T) {
	existing := []model.LedgerEntry{entry(1, 9, "20.00", model.Outflow)}
	existing[0].Description = "totally different"
	res := Match([]model.Candidate{cand(9, "20.00", model.Outflow, "ATM")}, existing)
	assert.Len(t, res.Conflicts, 1)
}

func TestEqual(t *testing.T) {
	base := cand(5, "120.00", model.Outflow, "x")
	tests := []struct {
		name  string
		entry model.LedgerEntry
		want  bool
	}{
		{"identical", entry(1, 5, "120.00", model.Outflow), true},
		{"scale differs", entry(1, 5, "120", model.Outflow), true},
		{"other day", entry(1, 6, "120.00", model.Outflow), false},
		{"other direction", entry(1, 5, "120.00", model.Inflow), false},
		{"other amount", entry(1, 5, "120.01", model.Outflow), false},
		{"sub-cent noise", entry(1, 5, "120.001", model.Outflow), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Equal(base, tt.entry), tt.name)
	}
}

func TestMatch_DoesNotMutateInputs(t *testing.T) {
	cands := []model.Candidate{cand(5, "1.00", model.Outflow, "a")}
	existing := []model.LedgerEntry{entry(1, 5, "1.00", model.Outflow), entry(2, 5, "1.00", model.Outflow)}

	Match(cands, existing)
	res := Match(cands, existing)
	assert.Len(t, existing, 2)
	assert.Equal(t, int64(1), res.Conflicts[0].Existing.ID)
}

func TestMatch_Empty(t *testing.T) {
	res := Match(nil, []model.LedgerEntry{entry(1, 5, "1.00", model.Outflow)})
	assert.Empty(t, res.Clean)
	assert.Empty(t, res.Conflicts)

	res = Match([]model.Candidate{cand(5, "1.00", model.Outflow, "a")}, nil)
	assert.Len(t, res.Clean, 1)
}
