package card

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const cardNumberLength = 16

// Generator produces card numbers, CVVs and expiration dates. Numbers are
// plain random digit strings; a real issuer would derive them from a bank
// BIN with a Luhn check digit.
type Generator struct {
	rng *rand.Rand
}

func NewGenerator() *Generator {
	return &Generator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (g *Generator) CardNumber() string {
	var sb strings.Builder
	sb.Grow(cardNumberLength)
	for i := 0; i < cardNumberLength; i++ {
		sb.WriteByte(byte('0' + g.rng.Intn(10)))
	}
	return sb.String()
}

func (g *Generator) CVV() string {
	return fmt.Sprintf("%03d", g.rng.Intn(900)+100)
}

func (g *Generator) ExpirationDate() time.Time {
	return time.Now().UTC().AddDate(5, 0, 0)
}
