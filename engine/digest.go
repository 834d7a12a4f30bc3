package engine

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"

	"kingdoms-lite/card"
)

// digestSeat mirrors Seat with exported, stably ordered fields only.
type digestSeat struct {
	Index     int         `json:"index"`
	PlayerID  string      `json:"player_id"`
	Role      Role        `json:"role"`
	Revealed  bool        `json:"revealed"`
	HP        int         `json:"hp"`
	MaxHP     int         `json:"max_hp"`
	Hand      []card.Card `json:"hand"`
	Alive     bool        `json:"alive"`
	Connected bool        `json:"connected"`
}

type digestState struct {
	Status  Status       `json:"status"`
	Seats   []digestSeat `json:"seats"`
	Deck    []card.Card  `json:"deck"`
	Discard []card.Card  `json:"discard"`
	Turn    int          `json:"turn"`
	Phase   Phase        `json:"phase"`
	Seq     uint64       `json:"seq"`
	Winners []int        `json:"winners"`
	Reason  string       `json:"reason"`
}

// Digest returns a hex blake2b-256 hash of the canonical state encoding.
// A sealed replay tape records the live session's terminal digest; replay
// recomputes it and any mismatch is a desync, never silently accepted.
func (st *GameState) Digest() string {
	ds := digestState{
		Status:  st.Status,
		Seats:   make([]digestSeat, 0, len(st.Seats)),
		Deck:    st.Deck,
		Discard: st.Discard,
		Turn:    st.Turn,
		Phase:   st.Phase,
		Seq:     st.Seq,
		Winners: st.Winners,
		Reason:  st.AbortReason,
	}
	for _, s := range st.Seats {
		ds.Seats = append(ds.Seats, digestSeat{
			Index:     s.Index,
			PlayerID:  s.PlayerID,
			Role:      s.Role,
			Revealed:  s.RoleRevealed,
			HP:        s.HP,
			MaxHP:     s.MaxHP,
			Hand:      s.Hand,
			Alive:     s.Alive,
			Connected: s.Connected,
		})
	}
	raw, err := json.Marshal(ds)
	if err != nil {
		// Only reachable with corrupt in-memory state.
		panic(err)
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
