package card

// StandardPack returns a fresh 52-card pack in suit/rank order. Session
// engines shuffle it with their own seeded rng so the deal stays replayable.
func StandardPack() []Card {
	pack := make([]Card, 0, 52)
	for suit := Card(0); suit < 4; suit++ {
		for rank := Card(1); rank <= 13; rank++ {
			pack = append(pack, suit<<4|rank)
		}
	}
	return pack
}
