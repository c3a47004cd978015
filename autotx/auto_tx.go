package autotx

import (
	"errors"
	"fmt"

	"github.com/Arkiv-Network/autoexec/address"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// AutoTxType is the versioned struct tag every trigger object carries.
// The layout of AutoTx below is bound to this tag.
var AutoTxType = StructTag{
	Address: address.FrameworkAddress,
	Module:  "auto_tx",
	Name:    "AutoTx",
}

var autoTxTypeTag = AutoTxType.TypeTag()

var ErrNotAutoTx = errors.New("object is not an auto tx")

// AutoTx is the raw trigger as stored on chain.
//
// The field order is part of the wire contract with the chain's object
// format and must not change:
//
//	trigger_time, caller, callee, module_name, function_name,
//	type_inputs, gas_id, arguments
//
// TypeInputs and Arguments are themselves RLP encoded lists of TypeTag and
// MoveCallArg. ID is the id of the object holding the trigger and is not
// part of the encoding.
type AutoTx struct {
	ID           common.Hash `rlp:"-" json:"id"`
	TriggerTime  uint64      `json:"triggerTime"`
	Caller       common.Hash `json:"caller"`
	Callee       common.Hash `json:"callee"`
	ModuleName   []byte      `json:"moduleName"`
	FunctionName []byte      `json:"functionName"`
	TypeInputs   []byte      `json:"typeInputs"`
	GasID        common.Hash `json:"gasId"`
	Arguments    []byte      `json:"arguments"`
}

// IsAutoTx reports whether the object carries the trigger struct tag.
func IsAutoTx(obj *Object) bool {
	return obj.Type.TypeTag() == autoTxTypeTag
}

// DecodeAutoTx extracts the trigger from obj. It returns false when obj is
// not a trigger object. A trigger object that fails to decode means the
// object store is corrupted, so it panics.
func DecodeAutoTx(obj *Object) (*AutoTx, bool) {
	if !IsAutoTx(obj) {
		return nil, false
	}

	tx := &AutoTx{}
	err := rlp.DecodeBytes(obj.Contents, tx)
	if err != nil {
		panic(fmt.Errorf("corrupted auto tx object %s: %w", obj.ID.Hex(), err))
	}
	tx.ID = obj.ID

	return tx, true
}

// Object wraps the trigger into an object tagged with AutoTxType.
func (tx *AutoTx) Object(version uint64, owner Owner) (*Object, error) {
	contents, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to encode auto tx: %w", err)
	}
	return &Object{
		ID:       tx.ID,
		Version:  version,
		Owner:    owner,
		Type:     AutoTxType,
		Contents: contents,
	}, nil
}

func (tx *AutoTx) DecodeTypeInputs() ([]TypeTag, error) {
	inputs := []TypeTag{}
	err := rlp.DecodeBytes(tx.TypeInputs, &inputs)
	if err != nil {
		return nil, fmt.Errorf("failed to decode type inputs of %s: %w", tx.ID.Hex(), err)
	}
	return inputs, nil
}

func (tx *AutoTx) DecodeArguments() ([]MoveCallArg, error) {
	args := []MoveCallArg{}
	err := rlp.DecodeBytes(tx.Arguments, &args)
	if err != nil {
		return nil, fmt.Errorf("failed to decode arguments of %s: %w", tx.ID.Hex(), err)
	}
	for i, a := range args {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("argument %d of %s: %w", i, tx.ID.Hex(), err)
		}
	}
	return args, nil
}

// Signer is the single signer of the transaction materialized from tx.
func (tx *AutoTx) Signer(scheme SignerScheme) common.Hash {
	if scheme == SignerCaller {
		return tx.Caller
	}
	return tx.ID
}

func EncodeTypeInputs(inputs []TypeTag) ([]byte, error) {
	return rlp.EncodeToBytes(inputs)
}

func EncodeArguments(args []MoveCallArg) ([]byte, error) {
	return rlp.EncodeToBytes(args)
}
