package triggerindex

import (
	"context"
	"fmt"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/Arkiv-Network/autoexec/objectstore"
)

// Rebuild recovers an index from the object store. The durable log only
// holds what was already handed out, so the pending set always comes from
// the live trigger objects.
func Rebuild(ctx context.Context, src objectstore.Iterator, m Materializer) (*Index, error) {
	entries := []Entry{}

	err := src.ForEachObject(ctx, func(obj *autotx.Object) error {
		tx, ok := autotx.DecodeAutoTx(obj)
		if !ok {
			return nil
		}
		entries = append(entries, Entry{Time: tx.TriggerTime, ID: tx.ID})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan trigger objects: %w", err)
	}

	return New(entries, m), nil
}
