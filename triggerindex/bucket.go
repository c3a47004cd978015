package triggerindex

import "github.com/ethereum/go-ethereum/common"

// bucket is the set of trigger ids scheduled for the same instant.
// Elements keep their insertion order until one is removed; removal moves
// the last element into the freed position so add, remove and contains are
// all O(1).
type bucket struct {
	ids   []common.Hash
	index map[common.Hash]int
}

func newBucket() *bucket {
	return &bucket{
		index: make(map[common.Hash]int),
	}
}

func (b *bucket) contains(id common.Hash) bool {
	_, ok := b.index[id]
	return ok
}

// add appends id, doing nothing when it is already present.
func (b *bucket) add(id common.Hash) {
	if b.contains(id) {
		return
	}
	b.index[id] = len(b.ids)
	b.ids = append(b.ids, id)
}

// remove drops id. It reports whether id was present.
func (b *bucket) remove(id common.Hash) bool {
	i, ok := b.index[id]
	if !ok {
		return false
	}

	last := len(b.ids) - 1
	if i != last {
		moved := b.ids[last]
		b.ids[i] = moved
		b.index[moved] = i
	}

	b.ids[last] = common.Hash{}
	b.ids = b.ids[:last]
	delete(b.index, id)

	return true
}

func (b *bucket) len() int {
	return len(b.ids)
}

func (b *bucket) empty() bool {
	return len(b.ids) == 0
}

// appendTo appends the bucket's ids to dst in bucket order.
func (b *bucket) appendTo(dst []common.Hash) []common.Hash {
	return append(dst, b.ids...)
}
