package arbiter

// Priority grants the pending requester with the highest fixed priority.
// Ties go to the lowest index. Low-priority requesters can starve.
type Priority struct {
	prios []int
}

// NewPriority creates a fixed-priority policy; len(prios) is the requester count.
func NewPriority(prios []int) *Priority {
	return &Priority{prios: append([]int(nil), prios...)}
}

func (p *Priority) Name() string { return PolicyPriority }
func (p *Priority) Size() int    { return len(p.prios) }

func (p *Priority) Pick(mask Mask, _ int) (int, bool) {
	best := -1
	for i, prio := range p.prios {
		if !mask.Has(i) {
			continue
		}
		if best < 0 || prio > p.prios[best] {
			best = i
		}
	}
	return best, best >= 0
}

func (p *Priority) Accept(int, int) {}

func (p *Priority) Reset() {}
