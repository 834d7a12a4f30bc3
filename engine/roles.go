package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"sort"
)

// RoleMultiset is the fixed role mix for one seat count. Counts are
// configuration data, not derived.
type RoleMultiset struct {
	Lord     int `json:"lord"`
	Loyalist int `json:"loyalist"`
	Rebel    int `json:"rebel"`
	Renegade int `json:"renegade"`
}

func (m RoleMultiset) Total() int {
	return m.Lord + m.Loyalist + m.Rebel + m.Renegade
}

// roles expands the multiset in fixed enum order; shuffling happens later.
func (m RoleMultiset) roles() []Role {
	out := make([]Role, 0, m.Total())
	for i := 0; i < m.Lord; i++ {
		out = append(out, RoleLord)
	}
	for i := 0; i < m.Loyalist; i++ {
		out = append(out, RoleLoyalist)
	}
	for i := 0; i < m.Rebel; i++ {
		out = append(out, RoleRebel)
	}
	for i := 0; i < m.Renegade; i++ {
		out = append(out, RoleRenegade)
	}
	return out
}

// DistributionTable maps seat count to role mix. Loaded once at process
// start and read-only afterwards.
type DistributionTable map[int]RoleMultiset

// Validate enforces the table invariants at load time: every entry sums to
// its seat count and carries exactly one lord. Assignment relies on this and
// never re-checks.
func (t DistributionTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("empty distribution table")
	}
	counts := make([]int, 0, len(t))
	for n := range t {
		counts = append(counts, n)
	}
	sort.Ints(counts)
	for _, n := range counts {
		m := t[n]
		if m.Lord != 1 {
			return fmt.Errorf("distribution for %d seats has %d lords, want exactly 1", n, m.Lord)
		}
		if m.Total() != n {
			return fmt.Errorf("distribution for %d seats sums to %d", n, m.Total())
		}
	}
	return nil
}

// LoadDistributionTable reads a JSON table keyed by seat count, e.g.
// {"5": {"lord":1,"loyalist":1,"rebel":2,"renegade":1}}.
func LoadDistributionTable(r io.Reader) (DistributionTable, error) {
	var raw map[string]RoleMultiset
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode distribution table: %w", err)
	}
	table := make(DistributionTable, len(raw))
	for key, m := range raw {
		var n int
		if _, err := fmt.Sscanf(key, "%d", &n); err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid seat count key %q", key)
		}
		table[n] = m
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// DefaultDistribution is the standard-mode table for 2-10 seats, following
// the classic lord/loyalist/rebel/renegade mixes.
func DefaultDistribution() DistributionTable {
	return DistributionTable{
		2:  {Lord: 1, Rebel: 1},
		3:  {Lord: 1, Rebel: 1, Renegade: 1},
		4:  {Lord: 1, Loyalist: 1, Rebel: 1, Renegade: 1},
		5:  {Lord: 1, Loyalist: 1, Rebel: 2, Renegade: 1},
		6:  {Lord: 1, Loyalist: 1, Rebel: 3, Renegade: 1},
		7:  {Lord: 1, Loyalist: 2, Rebel: 3, Renegade: 1},
		8:  {Lord: 1, Loyalist: 2, Rebel: 4, Renegade: 1},
		9:  {Lord: 1, Loyalist: 3, Rebel: 4, Renegade: 1},
		10: {Lord: 1, Loyalist: 3, Rebel: 5, Renegade: 1},
	}
}

// DoubleRenegadeDistribution covers the 6 and 8 player double-renegade
// variants.
func DoubleRenegadeDistribution() DistributionTable {
	return DistributionTable{
		6: {Lord: 1, Loyalist: 1, Rebel: 2, Renegade: 2},
		8: {Lord: 1, Loyalist: 2, Rebel: 3, Renegade: 2},
	}
}

// AssignRoles shuffles the multiset for seatCount and assigns roles in seat
// order. The rng must be session-scoped so the consumed seed reproduces the
// same assignment during replay.
func AssignRoles(seatCount int, table DistributionTable, rng *rand.Rand) ([]Role, error) {
	multiset, ok := table[seatCount]
	if !ok {
		return nil, &InvalidSeatCountError{Count: seatCount}
	}
	roles := multiset.roles()
	rng.Shuffle(len(roles), func(i, j int) { roles[i], roles[j] = roles[j], roles[i] })
	return roles, nil
}
