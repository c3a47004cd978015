// Package objectstore holds read access to on-chain object snapshots.
package objectstore

import (
	"context"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/ethereum/go-ethereum/common"
)

// Reader is a point lookup of objects by id.
// A nil object with a nil error means the object does not exist or was
// pruned. An error is a transient failure.
type Reader interface {
	GetObject(id common.Hash) (*autotx.Object, error)
}

// Iterator visits every object of a snapshot.
type Iterator interface {
	ForEachObject(ctx context.Context, fn func(*autotx.Object) error) error
}
