package assessment

import (
	"slices"
	"strings"

	"assessd/internal/model"
)

// Ledger holds at most one response per (phase, item, block) key.
// Recording under an existing key replaces the previous response.
type Ledger struct {
	entries map[model.ResponseKey]model.Response
}

// NewLedger returns a ledger seeded with rs. Later entries for the same key win.
func NewLedger(rs ...model.Response) *Ledger {
	l := &Ledger{entries: make(map[model.ResponseKey]model.Response, len(rs))}
	for _, r := range rs {
		l.Record(r)
	}
	return l
}

// Record upserts r
func (l *Ledger) Record(r model.Response) {
	l.entries[r.Key()] = r
}

// Remove deletes the response under k and reports whether one existed
func (l *Ledger) Remove(k model.ResponseKey) bool {
	if _, ok := l.entries[k]; !ok {
		return false
	}
	delete(l.entries, k)
	return true
}

// Get returns the response under k
func (l *Ledger) Get(k model.ResponseKey) (model.Response, bool) {
	r, ok := l.entries[k]
	return r, ok
}

func (l *Ledger) Len() int { return len(l.entries) }

// Responses returns all responses ordered by phase, block and item id
func (l *Ledger) Responses() []model.Response {
	out := make([]model.Response, 0, len(l.entries))
	for _, r := range l.entries {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b model.Response) int {
		if c := strings.Compare(string(a.Phase), string(b.Phase)); c != 0 {
			return c
		}
		if c := strings.Compare(string(a.Block), string(b.Block)); c != 0 {
			return c
		}
		return strings.Compare(a.ItemID, b.ItemID)
	})
	return out
}

// Count returns the number of responses in phase and block
func (l *Ledger) Count(phase model.Phase, block model.Block) int {
	n := 0
	for k := range l.entries {
		if k.Phase == phase && k.Block == block {
			n++
		}
	}
	return n
}

// IsComplete reports whether every slot of seq in block has a response.
// An empty block argument checks every slot.
func (l *Ledger) IsComplete(seq model.Sequence, block model.Block) bool {
	for _, s := range seq.Slots {
		if block != "" && s.Block != block {
			continue
		}
		if _, ok := l.entries[s.Key()]; !ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{entries: make(map[model.ResponseKey]model.Response, len(l.entries))}
	for k, v := range l.entries {
		c.entries[k] = v
	}
	return c
}
