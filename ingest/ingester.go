// Package ingest feeds per-checkpoint object changes into the object
// snapshot and the trigger index.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/Arkiv-Network/autoexec/objectstore"
	"github.com/Arkiv-Network/autoexec/triggerindex"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

var ErrCheckpointGap = errors.New("checkpoint sequence gap")

// Index is the part of the trigger index the ingester drives.
type Index interface {
	Contains(id common.Hash) bool
	Update(toAdd, toUpdate []triggerindex.Entry, toDelete []common.Hash)
}

// Persister stores object changes durably.
type Persister interface {
	ApplyChanges(ctx context.Context, checkpoint uint64, upserts []*autotx.Object, deleted []common.Hash) error
	LastCheckpoint(ctx context.Context) (checkpoint uint64, ok bool, err error)
}

// Changes is one batch of trigger index updates.
type Changes struct {
	ToAdd    []triggerindex.Entry
	ToUpdate []triggerindex.Entry
	ToDelete []common.Hash
}

func (c Changes) Empty() bool {
	return len(c.ToAdd) == 0 && len(c.ToUpdate) == 0 && len(c.ToDelete) == 0
}

// Summary describes what applying one checkpoint did.
type Summary struct {
	Checkpoint uint64 `json:"checkpoint"`
	Skipped    bool   `json:"skipped"`
	Objects    int    `json:"objects"`
	Added      int    `json:"added"`
	Updated    int    `json:"updated"`
	Deleted    int    `json:"deleted"`
}

// Classify turns effects into index changes.
//
// Tagged objects that are created, or mutated while not indexed, are
// added. Mutated tagged objects that are indexed are moved, unless the
// previous version in snapshot has the same trigger time. Deleted objects,
// and mutated objects that lost the tag, are removed when indexed. An
// object both written and deleted in the same checkpoint counts as deleted;
// one written twice counts with its last version.
// snapshot may be nil.
func Classify(idx Index, snapshot objectstore.Reader, effects *Effects) (Changes, error) {
	changes := Changes{}

	deleted := mapset.NewThreadUnsafeSet(effects.Deleted...)
	handled := mapset.NewThreadUnsafeSet[common.Hash]()

	written := make([]*autotx.Object, 0, len(effects.Created)+len(effects.Mutated))
	written = append(written, effects.Created...)
	written = append(written, effects.Mutated...)

	latest := make(map[common.Hash]int, len(written))
	for i, obj := range written {
		latest[obj.ID] = i
	}

	for i, obj := range written {
		if latest[obj.ID] != i || deleted.Contains(obj.ID) {
			continue
		}
		handled.Add(obj.ID)

		indexed := idx.Contains(obj.ID)

		tx, ok := autotx.DecodeAutoTx(obj)
		if !ok {
			if indexed {
				changes.ToDelete = append(changes.ToDelete, obj.ID)
			}
			continue
		}

		entry := triggerindex.Entry{Time: tx.TriggerTime, ID: tx.ID}
		if !indexed {
			changes.ToAdd = append(changes.ToAdd, entry)
			continue
		}

		unchanged, err := sameTriggerTime(snapshot, tx)
		if err != nil {
			return Changes{}, err
		}
		if !unchanged {
			changes.ToUpdate = append(changes.ToUpdate, entry)
		}
	}

	for _, id := range effects.Deleted {
		if !handled.Add(id) {
			continue
		}
		if idx.Contains(id) {
			changes.ToDelete = append(changes.ToDelete, id)
		}
	}

	return changes, nil
}

func sameTriggerTime(snapshot objectstore.Reader, tx *autotx.AutoTx) (bool, error) {
	if snapshot == nil {
		return false, nil
	}
	previous, err := snapshot.GetObject(tx.ID)
	if err != nil {
		return false, fmt.Errorf("failed to read previous version of %s: %w", tx.ID.Hex(), err)
	}
	if previous == nil {
		return false, nil
	}
	before, ok := autotx.DecodeAutoTx(previous)
	if !ok {
		return false, nil
	}
	return before.TriggerTime == tx.TriggerTime, nil
}

// Ingester applies checkpoints in order. Changes are persisted first, then
// applied to the in-memory snapshot the materializer reads from, and only
// then to the index.
type Ingester struct {
	index     Index
	snapshot  *objectstore.MemStore
	persister Persister

	lastCheckpoint uint64
	applied        bool
	logger         log.Logger
}

// NewIngester resumes after the last checkpoint recorded by persister.
// snapshot and persister may be nil.
func NewIngester(ctx context.Context, index Index, snapshot *objectstore.MemStore, persister Persister) (*Ingester, error) {
	in := &Ingester{
		index:     index,
		snapshot:  snapshot,
		persister: persister,
		logger:    log.New("module", "ingest"),
	}

	if persister != nil {
		last, ok, err := persister.LastCheckpoint(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read last checkpoint: %w", err)
		}
		in.lastCheckpoint = last
		in.applied = ok
	}

	return in, nil
}

func (in *Ingester) LastCheckpoint() uint64 {
	return in.lastCheckpoint
}

// Apply ingests the effects of one checkpoint. The first checkpoint ever
// applied may be any number. After that, checkpoints at or below the last
// applied one are skipped and a checkpoint that leaves a gap fails.
func (in *Ingester) Apply(ctx context.Context, effects *Effects) (Summary, error) {
	summary := Summary{
		Checkpoint: effects.Checkpoint,
		Objects:    len(effects.Created) + len(effects.Mutated) + len(effects.Deleted),
	}

	if in.applied && effects.Checkpoint <= in.lastCheckpoint {
		in.logger.Debug("skipping applied checkpoint", "checkpoint", effects.Checkpoint, "last", in.lastCheckpoint)
		summary.Skipped = true
		return summary, nil
	}
	if in.applied && effects.Checkpoint != in.lastCheckpoint+1 {
		return summary, fmt.Errorf("%w: expected %d, got %d", ErrCheckpointGap, in.lastCheckpoint+1, effects.Checkpoint)
	}

	var snapshot objectstore.Reader
	if in.snapshot != nil {
		snapshot = in.snapshot
	}

	changes, err := Classify(in.index, snapshot, effects)
	if err != nil {
		return summary, err
	}

	upserts := make([]*autotx.Object, 0, len(effects.Created)+len(effects.Mutated))
	upserts = append(upserts, effects.Created...)
	upserts = append(upserts, effects.Mutated...)

	if in.persister != nil {
		err = in.persister.ApplyChanges(ctx, effects.Checkpoint, upserts, effects.Deleted)
		if err != nil {
			return summary, fmt.Errorf("failed to persist checkpoint %d: %w", effects.Checkpoint, err)
		}
	}

	if in.snapshot != nil {
		in.snapshot.Put(upserts...)
		in.snapshot.Delete(effects.Deleted...)
	}

	if !changes.Empty() {
		in.index.Update(changes.ToAdd, changes.ToUpdate, changes.ToDelete)
	}

	in.lastCheckpoint = effects.Checkpoint
	in.applied = true

	summary.Added = len(changes.ToAdd)
	summary.Updated = len(changes.ToUpdate)
	summary.Deleted = len(changes.ToDelete)

	in.logger.Info(
		"processing checkpoint",
		"checkpoint", effects.Checkpoint,
		"objects", summary.Objects,
		"added", summary.Added,
		"updated", summary.Updated,
		"deleted", summary.Deleted,
	)

	return summary, nil
}
