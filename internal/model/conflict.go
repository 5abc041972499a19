package model

import "fmt"

// Decision resolves a conflict pair. The zero value is KeepExisting and
// ReplaceWithNew is the only other value.
type Decision struct {
	replace bool
}

var (
	KeepExisting   = Decision{}
	ReplaceWithNew = Decision{replace: true}
)

// Replaces reports whether the decision replaces the existing entry.
func (d Decision) Replaces() bool { return d.replace }

func (d Decision) String() string {
	if d.replace {
		return "replace_with_new"
	}
	return "keep_existing"
}

// ParseDecision parses "keep_existing" or "replace_with_new". The short forms
// "keep" and "replace" are accepted too.
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "keep_existing", "keep":
		return KeepExisting, nil
	case "replace_with_new", "replace":
		return ReplaceWithNew, nil
	}
	return Decision{}, fmt.Errorf("invalid decision %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(text []byte) error {
	parsed, err := ParseDecision(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ConflictPair is an existing ledger entry and a candidate the matcher judged
// to be the same transaction.
type ConflictPair struct {
	ID        int // position in the match pass that produced it
	Existing  LedgerEntry
	Candidate Candidate
	Decision  Decision
}
