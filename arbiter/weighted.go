package arbiter

// WeightedRoundRobin lets requester i take up to weights[i] consecutive grants
// before the pointer moves on to the next pending requester with credit left.
// Credits are refilled once no pending requester has any.
type WeightedRoundRobin struct {
	weights []int
	credits []int
	ptr     int
}

// NewWeightedRoundRobin creates the policy. Weights below one count as one.
func NewWeightedRoundRobin(weights []int) *WeightedRoundRobin {
	w := make([]int, len(weights))
	for i, v := range weights {
		if v < 1 {
			v = 1
		}
		w[i] = v
	}
	p := &WeightedRoundRobin{weights: w, credits: make([]int, len(w))}
	p.refill()
	return p
}

func (w *WeightedRoundRobin) Name() string { return PolicyWeightedRoundRobin }
func (w *WeightedRoundRobin) Size() int    { return len(w.weights) }

// Credits returns a copy of the remaining credit per requester.
func (w *WeightedRoundRobin) Credits() []int {
	return append([]int(nil), w.credits...)
}

func (w *WeightedRoundRobin) Pick(mask Mask, _ int) (int, bool) {
	credits := w.credits
	if w.exhausted(mask) {
		credits = w.weights
	}
	n := len(w.weights)
	for i := 0; i < n; i++ {
		idx := (w.ptr + i) % n
		if mask.Has(idx) && credits[idx] > 0 {
			return idx, true
		}
	}
	return -1, false
}

// Accept charges one credit to idx and moves the pointer past it once its
// credit is spent.
func (w *WeightedRoundRobin) Accept(idx int, _ int) {
	if idx < 0 || idx >= len(w.weights) {
		return
	}
	if w.credits[idx] == 0 {
		w.refill()
	}
	w.credits[idx]--
	if w.credits[idx] > 0 {
		w.ptr = idx
		return
	}
	w.ptr = (idx + 1) % len(w.weights)
	if w.allSpent() {
		w.refill()
	}
}

func (w *WeightedRoundRobin) Reset() {
	w.ptr = 0
	w.refill()
}

func (w *WeightedRoundRobin) exhausted(mask Mask) bool {
	for i, c := range w.credits {
		if mask.Has(i) && c > 0 {
			return false
		}
	}
	return true
}

func (w *WeightedRoundRobin) allSpent() bool {
	for _, c := range w.credits {
		if c > 0 {
			return false
		}
	}
	return true
}

func (w *WeightedRoundRobin) refill() {
	copy(w.credits, w.weights)
}
