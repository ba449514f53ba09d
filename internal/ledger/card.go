package ledger

import (
	"math/rand/v2"
	"strings"
)

// generateCardNumber returns 16 random digits grouped with dashes, e.g.
// "1234-5678-9012-3456". Uniqueness is enforced by the store; callers
// resample on collision.
func generateCardNumber() string {
	var b strings.Builder
	b.Grow(19)
	for i := 0; i < 16; i++ {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteByte('0' + byte(rand.IntN(10)))
	}
	return b.String()
}
