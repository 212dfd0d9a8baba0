package token

import (
	"fmt"
	"math/bits"
)

// Value is a token value. Valid values are powers of two (1, 2, 4, ...).
type Value uint32

// IsValid reports whether v is a power of two.
func (v Value) IsValid() bool {
	return v != 0 && v&(v-1) == 0
}

// Double returns 2v, or false if the result would overflow.
func (v Value) Double() (Value, bool) {
	if bits.LeadingZeros32(uint32(v)) == 0 {
		return 0, false
	}
	return v << 1, true
}

func (v Value) String() string {
	return fmt.Sprintf("%d", uint32(v))
}

// BaseToken is the generated content of a cell before any player modification.
type BaseToken struct {
	Present bool
	Value   Value
}

// None is the absent token.
var None = BaseToken{}

// Of returns a present token holding v.
func Of(v Value) BaseToken {
	return BaseToken{Present: true, Value: v}
}
