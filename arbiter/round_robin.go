package arbiter

// RoundRobin grants the lowest pending requester at or after a rotating
// pointer. The pointer moves past the winner only when the grant is accepted.
type RoundRobin struct {
	n   int
	ptr int
}

// NewRoundRobin creates a round-robin policy for n requesters.
func NewRoundRobin(n int) *RoundRobin {
	return &RoundRobin{n: n}
}

func (r *RoundRobin) Name() string { return PolicyRoundRobin }
func (r *RoundRobin) Size() int    { return r.n }

// Pointer returns the requester searched first on the next pick.
func (r *RoundRobin) Pointer() int { return r.ptr }

func (r *RoundRobin) Pick(mask Mask, _ int) (int, bool) {
	for i := 0; i < r.n; i++ {
		idx := (r.ptr + i) % r.n
		if mask.Has(idx) {
			return idx, true
		}
	}
	return -1, false
}

func (r *RoundRobin) Accept(idx int, _ int) {
	r.ptr = (idx + 1) % r.n
}

func (r *RoundRobin) Reset() { r.ptr = 0 }
