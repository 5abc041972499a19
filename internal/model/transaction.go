package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the ISO calendar date layout used for records and entries.
const DateFormat = "2006-01-02"

// Direction is the polarity of a monetary amount.
type Direction string

const (
	Inflow  Direction = "inflow"
	Outflow Direction = "outflow"
)

// DirectionOf derives a direction from a signed amount: negative is an
// outflow, zero or positive is an inflow.
func DirectionOf(amount decimal.Decimal) Direction {
	if amount.IsNegative() {
		return Outflow
	}
	return Inflow
}

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == Inflow || d == Outflow
}

// ParseDirection parses "inflow" or "outflow".
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("invalid direction %q", s)
	}
	return d, nil
}

// Uncategorized is the category of a record no rule matched.
const Uncategorized = "uncategorized"

// RawRecord is a parsed, not yet persisted transaction candidate.
type RawRecord struct {
	Date        time.Time       // UTC midnight
	Description string
	Amount      decimal.Decimal // magnitude, never negative
	Direction   Direction
	Reference   string // bank-assigned id (FITID), optional
	Block       int    // 1-based position of the record block in the source
}

// Signed returns the amount with the direction applied.
func (r RawRecord) Signed() decimal.Decimal {
	if r.Direction == Outflow {
		return r.Amount.Neg()
	}
	return r.Amount
}

// Candidate is a RawRecord after categorization.
type Candidate struct {
	RawRecord
	Category       string
	AutoReconciled bool
}

// Date returns a UTC-midnight calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO calendar date ("2006-01-02").
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}
