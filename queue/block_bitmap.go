package queue

// blockSet holds the active block reasons of one entry, one bit per reason.
type blockSet uint64

func (b *blockSet) set(index BlockIndex) bool {
	mask := blockSet(1) << uint(index)
	old := *b
	*b |= mask
	return old&mask == 0
}

func (b *blockSet) clear(index BlockIndex) bool {
	mask := blockSet(1) << uint(index)
	old := *b
	*b &^= mask
	return old&mask != 0
}

func (b blockSet) has(index BlockIndex) bool {
	return b&(blockSet(1)<<uint(index)) != 0
}

func (b blockSet) isZero() bool { return b == 0 }
