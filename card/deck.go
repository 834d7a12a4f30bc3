package card

// Deck is a draw pile. Cards are popped from the front.
type Deck []Card

func (d *Deck) Init(cards []Card) {
	*d = append((*d)[:0], cards...)
}

// Pop removes and returns n cards from the top of the deck. Returns false
// if fewer than n cards remain. A zero-count pop is an empty success.
func (d *Deck) Pop(n int) ([]Card, bool) {
	if n <= 0 {
		return nil, true
	}
	if len(*d) < n {
		return nil, false
	}
	out := make([]Card, n)
	copy(out, (*d)[:n])
	*d = (*d)[n:]
	return out, true
}

func (d Deck) Len() int { return len(d) }
