package card

import (
	"fmt"
	"strings"
)

// Card identifies one physical card in the pack.
//
// Encoding:
// - high 4 bits: suit (0:Spade, 1:Heart, 2:Club, 3:Diamond)
// - low 4 bits: rank (1:A, 2..9, 10:T, 11:J, 12:Q, 13:K)
type Card byte

const Invalid Card = 0xFF

func (c Card) String() string {
	if c == Invalid {
		return "Invalid"
	}
	suit := Suit(c >> 4)
	rank := c & 0x0F

	rankStr := ""
	switch rank {
	case 1:
		rankStr = "A"
	case 10:
		rankStr = "T"
	case 11:
		rankStr = "J"
	case 12:
		rankStr = "Q"
	case 13:
		rankStr = "K"
	default:
		rankStr = fmt.Sprintf("%d", rank)
	}
	return fmt.Sprintf("%s%s", suit, rankStr)
}

// Rank returns the face value 1-13 (A=1, K=13).
func (c Card) Rank() byte {
	if c == Invalid {
		return 0
	}
	return byte(c & 0x0F)
}

// Suit returns the suit (0:Spades, 1:Hearts, 2:Clubs, 3:Diamonds).
func (c Card) Suit() Suit {
	return Suit(c >> 4)
}

// Red reports whether the card is a heart or diamond. Rule sets key some
// card effects on color rather than exact suit.
func (c Card) Red() bool {
	s := c.Suit()
	return s == Heart || s == Diamond
}

// Parse converts a string such as "As", "Td" or "10h" to a Card.
func Parse(cardStr string) (Card, error) {
	if len(cardStr) < 2 {
		return 0, fmt.Errorf("invalid card string: %s", cardStr)
	}

	suitChar := cardStr[len(cardStr)-1]
	var suitBase Card
	switch suitChar {
	case 's', 'S':
		suitBase = 0x00
	case 'h', 'H':
		suitBase = 0x10
	case 'c', 'C':
		suitBase = 0x20
	case 'd', 'D':
		suitBase = 0x30
	default:
		return 0, fmt.Errorf("invalid suit: %c", suitChar)
	}

	rankStr := cardStr[:len(cardStr)-1]
	var rankVal Card
	switch strings.ToUpper(rankStr) {
	case "A":
		rankVal = 0x01
	case "2", "3", "4", "5", "6", "7", "8", "9":
		rankVal = Card(rankStr[0] - '0')
	case "T", "10":
		rankVal = 0x0A
	case "J":
		rankVal = 0x0B
	case "Q":
		rankVal = 0x0C
	case "K":
		rankVal = 0x0D
	default:
		return 0, fmt.Errorf("invalid rank: %s", rankStr)
	}

	return suitBase + rankVal, nil
}
