package arbiter

// FCFS grants requesters in the order they became pending. Requesters that
// become pending in the same cycle are queued by index. The head leaves the
// queue only when its grant is accepted; withdrawn requesters leave at once.
type FCFS struct {
	n      int
	order  []int
	queued Mask
}

// NewFCFS creates a first-come first-served policy for n requesters.
func NewFCFS(n int) *FCFS {
	return &FCFS{n: n, order: make([]int, 0, n)}
}

func (f *FCFS) Name() string { return PolicyFCFS }
func (f *FCFS) Size() int    { return f.n }

// Queue returns the current arrival order.
func (f *FCFS) Queue() []int {
	return append([]int(nil), f.order...)
}

func (f *FCFS) Pick(mask Mask, _ int) (int, bool) {
	f.sync(mask)
	if len(f.order) == 0 {
		return -1, false
	}
	return f.order[0], true
}

// Observe queues newly pending requesters while the resource is held.
func (f *FCFS) Observe(mask Mask, _ int) {
	f.sync(mask)
}

func (f *FCFS) Accept(idx int, _ int) {
	for i, v := range f.order {
		if v == idx {
			f.order = append(f.order[:i], f.order[i+1:]...)
			f.queued = f.queued.Without(idx)
			return
		}
	}
}

func (f *FCFS) Reset() {
	f.order = f.order[:0]
	f.queued = 0
}

func (f *FCFS) sync(mask Mask) {
	kept := f.order[:0]
	for _, v := range f.order {
		if mask.Has(v) {
			kept = append(kept, v)
			continue
		}
		f.queued = f.queued.Without(v)
	}
	f.order = kept
	for i := 0; i < f.n; i++ {
		if mask.Has(i) && !f.queued.Has(i) {
			f.order = append(f.order, i)
			f.queued = f.queued.With(i)
		}
	}
}
