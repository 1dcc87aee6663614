package rbac

import "math/bits"

// Mask is a growable permission bitmask. The zero value is an empty set.
type Mask []uint64

// Has reports whether bit is set.
func (m Mask) Has(bit int) bool {
	if bit < 0 {
		return false
	}
	idx := bit / 64
	if idx >= len(m) {
		return false
	}
	return m[idx]&(1<<(bit%64)) != 0
}

// Set sets bit, growing the mask when needed.
func (m *Mask) Set(bit int) {
	if bit < 0 {
		return
	}
	idx := bit / 64
	for len(*m) <= idx {
		*m = append(*m, 0)
	}
	(*m)[idx] |= 1 << (bit % 64)
}

// Clear clears bit.
func (m Mask) Clear(bit int) {
	if bit < 0 || bit/64 >= len(m) {
		return
	}
	m[bit/64] &^= 1 << (bit % 64)
}

// Union returns a new mask holding every bit of m and other.
func (m Mask) Union(other Mask) Mask {
	n := len(m)
	if len(other) > n {
		n = len(other)
	}
	out := make(Mask, n)
	copy(out, m)
	for i, w := range other {
		out[i] |= w
	}
	return out
}

// Clone returns an independent copy.
func (m Mask) Clone() Mask {
	if m == nil {
		return nil
	}
	out := make(Mask, len(m))
	copy(out, m)
	return out
}

// Count returns the number of set bits.
func (m Mask) Count() int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}
	return n
}

// Bits lists set bit positions in ascending order.
func (m Mask) Bits() []int {
	out := make([]int, 0, m.Count())
	for i, w := range m {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, i*64+b)
			w &^= 1 << b
		}
	}
	return out
}
