package arbiter

import "math/bits"

// MaxRequesters bounds the number of inputs an arbiter can serve.
const MaxRequesters = 64

// Mask is a set of pending requesters, bit i set when requester i is pending.
type Mask uint64

// MaskOf builds a mask with the given requesters set.
func MaskOf(idx ...int) Mask {
	var m Mask
	for _, i := range idx {
		m = m.With(i)
	}
	return m
}

// FullMask returns a mask with requesters 0..n-1 set.
func FullMask(n int) Mask {
	if n >= MaxRequesters {
		return ^Mask(0)
	}
	if n <= 0 {
		return 0
	}
	return Mask(1)<<uint(n) - 1
}

// With returns m with requester i set.
func (m Mask) With(i int) Mask {
	if i < 0 || i >= MaxRequesters {
		return m
	}
	return m | Mask(1)<<uint(i)
}

// Without returns m with requester i cleared.
func (m Mask) Without(i int) Mask {
	if i < 0 || i >= MaxRequesters {
		return m
	}
	return m &^ (Mask(1) << uint(i))
}

// Has reports whether requester i is pending.
func (m Mask) Has(i int) bool {
	if i < 0 || i >= MaxRequesters {
		return false
	}
	return m&(Mask(1)<<uint(i)) != 0
}

// Empty reports whether no requester is pending.
func (m Mask) Empty() bool { return m == 0 }

// Count returns the number of pending requesters.
func (m Mask) Count() int { return bits.OnesCount64(uint64(m)) }
