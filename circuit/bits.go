package circuit

import "strings"

// MaxPorts is the maximum number of inputs or outputs a block can have.
const MaxPorts = 128

// Bits is a 128 bit bundle of logic levels. Bit 0 is the first port.
type Bits struct {
	Lo uint64 `json:"lo"`
	Hi uint64 `json:"hi"`
}

// Bit returns the level of bit i.
func (b Bits) Bit(i int) bool {
	switch {
	case i < 0 || i >= MaxPorts:
		return false
	case i < 64:
		return b.Lo&(1<<uint(i)) != 0
	default:
		return b.Hi&(1<<uint(i-64)) != 0
	}
}

// With returns a copy of b with bit i set to v.
func (b Bits) With(i int, v bool) Bits {
	if i < 0 || i >= MaxPorts {
		return b
	}
	if i < 64 {
		if v {
			b.Lo |= 1 << uint(i)
		} else {
			b.Lo &^= 1 << uint(i)
		}
		return b
	}
	if v {
		b.Hi |= 1 << uint(i-64)
	} else {
		b.Hi &^= 1 << uint(i-64)
	}
	return b
}

// Mask returns b with every bit at or above n cleared.
func (b Bits) Mask(n int) Bits {
	switch {
	case n <= 0:
		return Bits{}
	case n < 64:
		return Bits{Lo: b.Lo & (1<<uint(n) - 1)}
	case n == 64:
		return Bits{Lo: b.Lo}
	case n < MaxPorts:
		return Bits{Lo: b.Lo, Hi: b.Hi & (1<<uint(n-64) - 1)}
	}
	return b
}

func (b Bits) IsZero() bool { return b.Lo == 0 && b.Hi == 0 }

// BitsOf builds a bundle from individual levels, first argument is bit 0.
func BitsOf(levels ...bool) Bits {
	var b Bits
	for i, l := range levels {
		b = b.With(i, l)
	}
	return b
}

// Format renders the n low bits, most significant first.
func (b Bits) Format(n int) string {
	var sb strings.Builder
	for i := n - 1; i >= 0; i-- {
		if b.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
