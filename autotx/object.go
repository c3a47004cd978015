package autotx

import (
	"errors"
	"fmt"

	"github.com/Arkiv-Network/autoexec/address"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

type OwnerKind uint8

const (
	AddressOwner OwnerKind = iota
	ObjectOwner
	SharedOwner
	ImmutableOwner
)

func (k OwnerKind) String() string {
	switch k {
	case AddressOwner:
		return "address"
	case ObjectOwner:
		return "object"
	case SharedOwner:
		return "shared"
	case ImmutableOwner:
		return "immutable"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Owner describes who may use an object. InitialSharedVersion is only
// meaningful for shared objects.
type Owner struct {
	Kind                 OwnerKind   `json:"kind"`
	Address              common.Hash `json:"address"`
	InitialSharedVersion uint64      `json:"initialSharedVersion"`
}

func AddressOwned(owner common.Hash) Owner {
	return Owner{Kind: AddressOwner, Address: owner}
}

func ObjectOwned(parent common.Hash) Owner {
	return Owner{Kind: ObjectOwner, Address: parent}
}

func Shared(initialSharedVersion uint64) Owner {
	return Owner{Kind: SharedOwner, InitialSharedVersion: initialSharedVersion}
}

func (o Owner) IsShared() bool {
	return o.Kind == SharedOwner
}

// OwnerAddress returns the owning address for address- and object-owned objects.
func (o Owner) OwnerAddress() (common.Hash, bool) {
	switch o.Kind {
	case AddressOwner, ObjectOwner:
		return o.Address, true
	default:
		return common.Hash{}, false
	}
}

// Object is a point-in-time snapshot of an on-chain object.
type Object struct {
	ID       common.Hash `json:"id"`
	Version  uint64      `json:"version"`
	Owner    Owner       `json:"owner"`
	Type     StructTag   `json:"type"`
	Contents []byte      `json:"contents"`
}

// GasCoinType is the struct tag of coins that can pay for gas.
var GasCoinType = StructTag{
	Address:    address.FrameworkAddress,
	Module:     "coin",
	Name:       "Coin",
	TypeParams: []TypeTag{"0x2::sui::SUI"},
}

var ErrNoMoveType = errors.New("object has no move type")

// Coin is the content layout of a gas coin object.
type Coin struct {
	ID    common.Hash
	Value uint64
}

// Digest is the Keccak256 hash of the canonical encoding of the object.
func (o *Object) Digest() common.Hash {
	d, err := rlp.EncodeToBytes(o)
	if err != nil {
		panic(fmt.Errorf("failed to encode object %s: %w", o.ID.Hex(), err))
	}
	return crypto.Keccak256Hash(d)
}

func (o *Object) Reference() ObjectRef {
	return ObjectRef{
		ID:      o.ID,
		Version: o.Version,
		Digest:  o.Digest(),
	}
}

func (o *Object) IsGasCoin() bool {
	return o.Type.Equal(GasCoinType)
}

// CoinBalance decodes the coin value stored in the object.
func (o *Object) CoinBalance() (uint64, error) {
	if !o.IsGasCoin() {
		return 0, fmt.Errorf("object %s of type %s is not a gas coin", o.ID.Hex(), o.Type)
	}
	coin := Coin{}
	err := rlp.DecodeBytes(o.Contents, &coin)
	if err != nil {
		return 0, fmt.Errorf("failed to decode coin %s: %w", o.ID.Hex(), err)
	}
	return coin.Value, nil
}

// TemplateType is the concrete runtime type of the object, used to
// instantiate generic call targets.
func (o *Object) TemplateType() (TypeTag, error) {
	if o.Type.Module == "" || o.Type.Name == "" {
		return "", fmt.Errorf("%w: %s", ErrNoMoveType, o.ID.Hex())
	}
	return o.Type.TypeTag(), nil
}

// NewGasCoin builds a gas coin object holding balance.
func NewGasCoin(id common.Hash, version uint64, owner Owner, balance uint64) *Object {
	contents, err := rlp.EncodeToBytes(&Coin{ID: id, Value: balance})
	if err != nil {
		panic(fmt.Errorf("failed to encode coin: %w", err))
	}
	return &Object{
		ID:       id,
		Version:  version,
		Owner:    owner,
		Type:     GasCoinType,
		Contents: contents,
	}
}
