package engine

import "kingdoms-lite/card"

type SeatSnapshot struct {
	Index        int         `json:"index"`
	PlayerID     string      `json:"player_id"`
	Role         Role        `json:"role"`
	RoleRevealed bool        `json:"role_revealed"`
	HP           int         `json:"hp"`
	MaxHP        int         `json:"max_hp"`
	Hand         []card.Card `json:"hand,omitempty"`
	HandCount    int         `json:"hand_count"`
	Alive        bool        `json:"alive"`
	Connected    bool        `json:"connected"`
}

// Snapshot is a deep copy of the observable session state. Hand cards and
// hidden roles are present; per-viewer filtering is the codec's job.
type Snapshot struct {
	SessionID string         `json:"session_id"`
	Mode      string         `json:"mode"`
	Status    Status         `json:"status"`
	Turn      int            `json:"turn"`
	Phase     Phase          `json:"phase"`
	Seq       uint64         `json:"seq"`
	DeckCount int            `json:"deck_count"`
	Discard   []card.Card    `json:"discard,omitempty"`
	Seats     []SeatSnapshot `json:"seats"`
	Winners   []int          `json:"winners,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID: s.cfg.SessionID,
		Mode:      s.cfg.Mode,
		Status:    s.st.Status,
		Turn:      s.st.Turn,
		Phase:     s.st.Phase,
		Seq:       s.st.Seq,
		DeckCount: s.st.Deck.Len(),
		Discard:   append([]card.Card(nil), s.st.Discard...),
		Winners:   append([]int(nil), s.st.Winners...),
		Reason:    s.st.AbortReason,
	}
	for _, seat := range s.st.Seats {
		snap.Seats = append(snap.Seats, SeatSnapshot{
			Index:        seat.Index,
			PlayerID:     seat.PlayerID,
			Role:         seat.Role,
			RoleRevealed: seat.RoleRevealed,
			HP:           seat.HP,
			MaxHP:        seat.MaxHP,
			Hand:         append([]card.Card(nil), seat.Hand...),
			HandCount:    len(seat.Hand),
			Alive:        seat.Alive,
			Connected:    seat.Connected,
		})
	}
	return snap
}
