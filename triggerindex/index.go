// Package triggerindex keeps every pending trigger ordered by the time it
// becomes due, and answers "what is due in (from, to]" with fully built
// executable transactions.
//
// The index holds two maps that are always exact inverses of each other:
// forward (time -> bucket of ids) and reverse (id -> time). A watermark
// records the largest upper bound ever queried; triggers added or moved
// later are never scheduled below it, so a window that has been handed out
// is never changed after the fact.
//
// Lock order is forward, then reverse, then watermark. GetTill never holds
// the watermark lock while taking the forward lock, and no lock is held
// while transactions are materialized.
package triggerindex

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Arkiv-Network/autoexec/autotx"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/tidwall/btree"
)

var (
	pendingGauge      = metrics.NewRegisteredGauge("autoexec/triggerindex/pending", nil)
	materializedMeter = metrics.NewRegisteredCounter("autoexec/triggerindex/materialized", nil)
	skippedMeter      = metrics.NewRegisteredCounter("autoexec/triggerindex/skipped", nil)
	materializeTimer  = metrics.NewRegisteredTimer("autoexec/triggerindex/materialize", nil)
)

// Entry schedules trigger ID at Time (milliseconds).
type Entry struct {
	Time uint64      `json:"time"`
	ID   common.Hash `json:"id"`
}

// Materializer builds the executable transaction for a trigger id.
type Materializer interface {
	MaterializeID(id common.Hash, gasPrice uint64) (*autotx.AutoExecutableTransaction, error)
}

type Index struct {
	forwardMu sync.RWMutex
	forward   btree.Map[uint64, *bucket]

	reverseMu sync.Mutex
	reverse   map[common.Hash]uint64

	clockMu   sync.Mutex
	watermark uint64

	materializer Materializer
	logger       log.Logger
}

// New builds an index over initial. Each id may appear only once.
func New(initial []Entry, m Materializer) *Index {
	idx := &Index{
		reverse:      make(map[common.Hash]uint64, len(initial)),
		materializer: m,
		logger:       log.New("module", "triggerindex"),
	}

	for _, e := range initial {
		if _, found := idx.reverse[e.ID]; found {
			panic(fmt.Errorf("trigger %s listed twice in the initial set", e.ID.Hex()))
		}
		idx.insert(e.Time, e.ID)
	}

	pendingGauge.Update(int64(len(idx.reverse)))
	idx.logger.Info("trigger index built", "triggers", len(idx.reverse), "buckets", idx.forward.Len())

	return idx
}

// GetTill returns the transactions of every trigger due in (from, to],
// ordered by time and, within the same time, by bucket order. Triggers
// that cannot be materialized right now are left out and stay in the
// index. The watermark is raised to to even when the range is empty.
func (idx *Index) GetTill(from, to, gasPrice uint64) []*autotx.AutoExecutableTransaction {
	idx.clockMu.Lock()
	idx.watermark = max(idx.watermark, to)
	idx.clockMu.Unlock()

	if from >= to {
		return nil
	}

	ids := []common.Hash{}
	idx.forwardMu.RLock()
	idx.forward.Ascend(from+1, func(at uint64, b *bucket) bool {
		if at > to {
			return false
		}
		ids = b.appendTo(ids)
		return true
	})
	idx.forwardMu.RUnlock()

	txs := make([]*autotx.AutoExecutableTransaction, 0, len(ids))
	for _, id := range ids {
		start := time.Now()
		tx, err := idx.materializer.MaterializeID(id, gasPrice)
		materializeTimer.UpdateSince(start)
		if err != nil {
			skippedMeter.Inc(1)
			idx.logger.Warn("skipping trigger", "trigger", id.Hex(), "error", err)
			continue
		}
		txs = append(txs, tx)
	}

	materializedMeter.Inc(int64(len(txs)))
	idx.logger.Debug("triggers due", "from", from, "to", to, "candidates", len(ids), "materialized", len(txs))

	return txs
}

// Update applies one batch of changes atomically with respect to other
// callers. Entries in toUpdate and ids in toDelete are first removed from
// wherever they are scheduled; then toAdd and the surviving toUpdate
// entries are inserted at max(time, watermark). An id listed in both
// toUpdate and toDelete ends up deleted.
//
// Updating or deleting an id that is not indexed, adding one that is, and
// listing the same id twice in toAdd or toUpdate mean the caller's view of
// the index is out of sync; Update panics in that case before changing
// anything.
func (idx *Index) Update(toAdd, toUpdate []Entry, toDelete []common.Hash) {
	idx.forwardMu.Lock()
	defer idx.forwardMu.Unlock()
	idx.reverseMu.Lock()
	defer idx.reverseMu.Unlock()

	deleted := mapset.NewThreadUnsafeSet(toDelete...)

	// removal order decides the order left behind in shared buckets, so it
	// follows the argument order rather than set iteration order
	removals := make([]common.Hash, 0, len(toDelete)+len(toUpdate))
	seen := mapset.NewThreadUnsafeSetWithSize[common.Hash](cap(removals))
	for _, id := range toDelete {
		if seen.Add(id) {
			removals = append(removals, id)
		}
	}
	updated := mapset.NewThreadUnsafeSetWithSize[common.Hash](len(toUpdate))
	for _, e := range toUpdate {
		if !updated.Add(e.ID) {
			panic(fmt.Errorf("trigger %s is moved twice in one update", e.ID.Hex()))
		}
		if seen.Add(e.ID) {
			removals = append(removals, e.ID)
		}
	}

	for _, id := range removals {
		if _, found := idx.reverse[id]; !found {
			panic(fmt.Errorf("trigger %s is not indexed", id.Hex()))
		}
	}

	added := mapset.NewThreadUnsafeSetWithSize[common.Hash](len(toAdd))
	for _, e := range toAdd {
		if _, found := idx.reverse[e.ID]; found || !added.Add(e.ID) {
			panic(fmt.Errorf("trigger %s is already indexed", e.ID.Hex()))
		}
	}

	for _, id := range removals {
		idx.remove(id)
	}

	idx.clockMu.Lock()
	defer idx.clockMu.Unlock()

	for _, e := range toAdd {
		idx.insert(max(e.Time, idx.watermark), e.ID)
	}
	for _, e := range toUpdate {
		if deleted.Contains(e.ID) {
			continue
		}
		idx.insert(max(e.Time, idx.watermark), e.ID)
	}

	pendingGauge.Update(int64(len(idx.reverse)))
	idx.logger.Debug(
		"trigger index updated",
		"added", len(toAdd),
		"updated", len(toUpdate),
		"deleted", len(toDelete),
		"watermark", idx.watermark,
	)
}

// insert requires the forward and reverse locks.
func (idx *Index) insert(at uint64, id common.Hash) {
	b, ok := idx.forward.Get(at)
	if !ok {
		b = newBucket()
		idx.forward.Set(at, b)
	}
	b.add(id)
	idx.reverse[id] = at
}

// remove requires the forward and reverse locks.
func (idx *Index) remove(id common.Hash) {
	at := idx.reverse[id]
	delete(idx.reverse, id)

	b, ok := idx.forward.Get(at)
	if !ok || !b.remove(id) {
		panic(fmt.Errorf("trigger %s is missing from bucket %d", id.Hex(), at))
	}
	if b.empty() {
		idx.forward.Delete(at)
	}
}

// Watermark is the largest upper bound passed to GetTill so far.
func (idx *Index) Watermark() uint64 {
	idx.clockMu.Lock()
	defer idx.clockMu.Unlock()
	return idx.watermark
}

// Len is the number of indexed triggers.
func (idx *Index) Len() int {
	idx.reverseMu.Lock()
	defer idx.reverseMu.Unlock()
	return len(idx.reverse)
}

func (idx *Index) Contains(id common.Hash) bool {
	_, ok := idx.ScheduledAt(id)
	return ok
}

// ScheduledAt returns the time id is currently scheduled at.
func (idx *Index) ScheduledAt(id common.Hash) (uint64, bool) {
	idx.reverseMu.Lock()
	defer idx.reverseMu.Unlock()
	at, ok := idx.reverse[id]
	return at, ok
}

// Bucket is a read-only copy of the triggers scheduled at Time.
type Bucket struct {
	Time uint64        `json:"time"`
	IDs  []common.Hash `json:"ids"`
}

// Buckets returns a copy of the forward map in time order.
func (idx *Index) Buckets() []Bucket {
	return idx.BucketsTill(math.MaxUint64)
}

// BucketsTill returns a copy of every bucket at or before to.
func (idx *Index) BucketsTill(to uint64) []Bucket {
	idx.forwardMu.RLock()
	defer idx.forwardMu.RUnlock()

	buckets := make([]Bucket, 0, idx.forward.Len())
	idx.forward.Scan(func(at uint64, b *bucket) bool {
		if at > to {
			return false
		}
		buckets = append(buckets, Bucket{Time: at, IDs: b.appendTo(nil)})
		return true
	})
	return buckets
}
