package autotx

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type MoveCallArgKind uint8

const (
	MoveCallArgPure MoveCallArgKind = iota
	MoveCallArgObject
)

// MoveCallArg is an argument as declared by a trigger. Object arguments are
// only references and get resolved against the object store at
// materialization time.
type MoveCallArg struct {
	Kind      MoveCallArgKind `json:"kind"`
	Pure      []byte          `json:"pure"`
	ID        common.Hash     `json:"id"`
	Mutable   bool            `json:"mutable"`
	Receiving bool            `json:"receiving"`
}

func PureMoveCallArg(value []byte) MoveCallArg {
	return MoveCallArg{Kind: MoveCallArgPure, Pure: value}
}

func ObjectMoveCallArg(id common.Hash, mutable, receiving bool) MoveCallArg {
	return MoveCallArg{
		Kind:      MoveCallArgObject,
		ID:        id,
		Mutable:   mutable,
		Receiving: receiving,
	}
}

func (a MoveCallArg) Validate() error {
	switch a.Kind {
	case MoveCallArgPure, MoveCallArgObject:
		return nil
	default:
		return fmt.Errorf("unknown move call argument kind %d", a.Kind)
	}
}
