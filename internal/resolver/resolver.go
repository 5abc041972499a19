// Package resolver holds keep/replace decisions for conflict pairs while a
// caller reviews them. It performs no I/O; discarding a Resolver discards the
// session.
package resolver

import (
	"errors"
	"fmt"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// ErrUnknownPair is returned when a decision targets a pair id that is not
// part of the session.
var ErrUnknownPair = errors.New("unknown conflict pair")

// Resolver stages decisions for one set of conflict pairs.
type Resolver struct {
	pairs     []model.ConflictPair
	decisions map[int]model.Decision
}

// Counts tallies the current decisions.
type Counts struct {
	Keep    int
	Replace int
}

// New starts a session. Every pair begins as KeepExisting regardless of the
// decision it carries.
func New(pairs []model.ConflictPair) *Resolver {
	r := &Resolver{
		pairs:     make([]model.ConflictPair, len(pairs)),
		decisions: make(map[int]model.Decision, len(pairs)),
	}
	copy(r.pairs, pairs)
	for _, p := range pairs {
		r.decisions[p.ID] = model.KeepExisting
	}
	return r
}

// Decision returns the current decision for a pair.
func (r *Resolver) Decision(id int) (model.Decision, bool) {
	d, ok := r.decisions[id]
	return d, ok
}

// Set records a decision for one pair.
func (r *Resolver) Set(id int, d model.Decision) error {
	if _, ok := r.decisions[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPair, id)
	}
	r.decisions[id] = d
	return nil
}

// SetAll applies d to every pair.
func (r *Resolver) SetAll(d model.Decision) {
	for id := range r.decisions {
		r.decisions[id] = d
	}
}

// Decisions returns a copy of the decision map, keyed by pair id.
func (r *Resolver) Decisions() map[int]model.Decision {
	out := make(map[int]model.Decision, len(r.decisions))
	for id, d := range r.decisions {
		out[id] = d
	}
	return out
}

// Pairs returns the pairs with their current decisions applied.
func (r *Resolver) Pairs() []model.ConflictPair {
	out := make([]model.ConflictPair, len(r.pairs))
	for i, p := range r.pairs {
		p.Decision = r.decisions[p.ID]
		out[i] = p
	}
	return out
}

// Counts reports how many pairs are kept and how many replaced.
func (r *Resolver) Counts() Counts {
	var c Counts
	for _, d := range r.decisions {
		if d.Replaces() {
			c.Replace++
		} else {
			c.Keep++
		}
	}
	return c
}

// Len returns the number of pairs in the session.
func (r *Resolver) Len() int {
	return len(r.pairs)
}
