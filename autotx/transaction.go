package autotx

import "github.com/ethereum/go-ethereum/common"

// ObjectRef pins an object at a specific version and content digest.
type ObjectRef struct {
	ID      common.Hash `json:"id"`
	Version uint64      `json:"version"`
	Digest  common.Hash `json:"digest"`
}

type ObjectArgKind uint8

const (
	ImmOrOwnedObject ObjectArgKind = iota
	SharedObject
	ReceivingObject
)

// ObjectArg is a resolved object argument. Ref is set for owned, immutable
// and receiving objects; shared objects only carry their id, initial
// shared version and the requested mutability.
type ObjectArg struct {
	Kind                 ObjectArgKind `json:"kind"`
	Ref                  ObjectRef     `json:"ref"`
	InitialSharedVersion uint64        `json:"initialSharedVersion"`
	Mutable              bool          `json:"mutable"`
}

type CallArgKind uint8

const (
	CallArgPure CallArgKind = iota
	CallArgObject
)

type CallArg struct {
	Kind   CallArgKind `json:"kind"`
	Pure   []byte      `json:"pure"`
	Object ObjectArg   `json:"object"`
}

func PureCallArg(value []byte) CallArg {
	return CallArg{Kind: CallArgPure, Pure: value}
}

func ImmOrOwnedCallArg(ref ObjectRef) CallArg {
	return CallArg{
		Kind:   CallArgObject,
		Object: ObjectArg{Kind: ImmOrOwnedObject, Ref: ref},
	}
}

func ReceivingCallArg(ref ObjectRef) CallArg {
	return CallArg{
		Kind:   CallArgObject,
		Object: ObjectArg{Kind: ReceivingObject, Ref: ref},
	}
}

func SharedCallArg(id common.Hash, initialSharedVersion uint64, mutable bool) CallArg {
	return CallArg{
		Kind: CallArgObject,
		Object: ObjectArg{
			Kind:                 SharedObject,
			Ref:                  ObjectRef{ID: id},
			InitialSharedVersion: initialSharedVersion,
			Mutable:              mutable,
		},
	}
}

// MoveCall is a single entry function invocation.
type MoveCall struct {
	Package       common.Hash `json:"package"`
	Module        string      `json:"module"`
	Function      string      `json:"function"`
	TypeArguments []TypeTag   `json:"typeArguments"`
	Arguments     []CallArg   `json:"arguments"`
}

type GasData struct {
	Payment []ObjectRef `json:"payment"`
	Owner   common.Hash `json:"owner"`
	Price   uint64      `json:"price"`
	Budget  uint64      `json:"budget"`
}

// TransactionData is a fully built, signable transaction.
type TransactionData struct {
	Sender common.Hash `json:"sender"`
	Call   MoveCall    `json:"call"`
	Gas    GasData     `json:"gas"`
}

func (t *TransactionData) Signers() []common.Hash {
	return []common.Hash{t.Sender}
}
