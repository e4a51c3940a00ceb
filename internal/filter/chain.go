package filter

import "github.com/packetscope/packetscope/internal/core"

// Chain accumulates criteria and applies them as one conjunction.
// Chaining criteria and applying them one at a time are observably
// equivalent; the chain exists so callers can build filters incrementally
// and inspect what is active.
type Chain struct {
	criteria []Criteria
}

// NewChain builds a chain from the given criteria, skipping wildcards.
func NewChain(cs ...Criteria) *Chain {
	ch := &Chain{}
	for _, c := range cs {
		ch.Add(c)
	}
	return ch
}

// Add appends a criteria to the chain. All-wildcard criteria are dropped
// since they cannot affect the result.
func (ch *Chain) Add(c Criteria) *Chain {
	if !c.IsZero() {
		ch.criteria = append(ch.criteria, c)
	}
	return ch
}

// Len returns the number of active criteria.
func (ch *Chain) Len() int {
	return len(ch.criteria)
}

// Clear removes all criteria.
func (ch *Chain) Clear() {
	ch.criteria = nil
}

// Describe lists the active criteria for display, in evaluation order.
func (ch *Chain) Describe() []string {
	out := make([]string, len(ch.criteria))
	for i, c := range ch.criteria {
		out[i] = c.Describe()
	}
	return out
}

// Matches reports whether the record passes every criteria in the chain.
func (ch *Chain) Matches(rec core.PacketRecord) bool {
	for _, c := range ch.criteria {
		if !Matches(rec, c) {
			return false
		}
	}
	return true
}

// Apply filters records through the whole chain, preserving order.
func (ch *Chain) Apply(records []core.PacketRecord) []core.PacketRecord {
	out := make([]core.PacketRecord, 0, len(records))
	for _, rec := range records {
		if ch.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}
