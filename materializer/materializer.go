// Package materializer turns raw on-chain triggers into executable
// transactions by resolving their gas coin and object arguments against an
// object snapshot.
package materializer

import (
	"errors"
	"fmt"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/Arkiv-Network/autoexec/objectstore"
	"github.com/ethereum/go-ethereum/common"
)

// Errors that make a single trigger unusable for now. None of them is
// fatal; the trigger is skipped and retried on the next query.
var (
	ErrTriggerNotFound  = errors.New("trigger object not found")
	ErrGasNotFound      = errors.New("gas object not found")
	ErrGasNotCoin       = errors.New("gas object is not a coin")
	ErrCorruptTrigger   = errors.New("trigger has undecodable type inputs or arguments")
	ErrArgumentNotFound = errors.New("argument object not found")
	ErrArgumentCount    = errors.New("resolved argument count does not match declared count")
	ErrGasOwnerMismatch = errors.New("gas object is not owned by the trigger signer")
)

type Materializer struct {
	reader objectstore.Reader
	scheme autotx.SignerScheme
}

func New(reader objectstore.Reader, scheme autotx.SignerScheme) *Materializer {
	return &Materializer{
		reader: reader,
		scheme: scheme,
	}
}

// MaterializeID loads the trigger object with the given id and materializes it.
func (m *Materializer) MaterializeID(id common.Hash, gasPrice uint64) (*autotx.AutoExecutableTransaction, error) {
	obj, err := m.reader.GetObject(id)
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger %s: %w", id.Hex(), err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: %s", ErrTriggerNotFound, id.Hex())
	}

	tx, ok := autotx.DecodeAutoTx(obj)
	if !ok {
		return nil, fmt.Errorf("%w: %s has type %s", autotx.ErrNotAutoTx, id.Hex(), obj.Type)
	}

	return m.Materialize(tx, gasPrice)
}

// Materialize builds the executable transaction for tx. For a fixed
// snapshot and gas price the result, and so its digest, is always the same.
func (m *Materializer) Materialize(tx *autotx.AutoTx, gasPrice uint64) (*autotx.AutoExecutableTransaction, error) {
	gas, err := m.reader.GetObject(tx.GasID)
	if err != nil {
		return nil, fmt.Errorf("failed to read gas object %s: %w", tx.GasID.Hex(), err)
	}
	if gas == nil {
		return nil, fmt.Errorf("%w: %s", ErrGasNotFound, tx.GasID.Hex())
	}
	if !gas.IsGasCoin() {
		return nil, fmt.Errorf("%w: %s has type %s", ErrGasNotCoin, tx.GasID.Hex(), gas.Type)
	}
	balance, err := gas.CoinBalance()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGasNotCoin, err)
	}

	typeInputs, err := tx.DecodeTypeInputs()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptTrigger, err)
	}
	args, err := tx.DecodeArguments()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptTrigger, err)
	}

	// arguments and type inputs are paired slot by slot; surplus arguments
	// stay unresolved and fail the count check below
	resolved := make([]autotx.CallArg, 0, len(args))
	for i, arg := range args {
		if i >= len(typeInputs) {
			break
		}

		switch arg.Kind {
		case autotx.MoveCallArgPure:
			resolved = append(resolved, autotx.PureCallArg(arg.Pure))
		case autotx.MoveCallArgObject:
			callArg, typeTag, err := m.resolveObject(arg)
			if err != nil {
				return nil, err
			}
			typeInputs[i] = typeTag
			resolved = append(resolved, callArg)
		}
	}

	if len(resolved) != len(args) {
		return nil, fmt.Errorf("%w: resolved %d of %d", ErrArgumentCount, len(resolved), len(args))
	}

	signer := tx.Signer(m.scheme)

	// a trigger may only spend gas it actually owns
	owner, ok := gas.Owner.OwnerAddress()
	if !ok || owner != signer {
		return nil, fmt.Errorf("%w: gas %s is owned by %s, signer is %s",
			ErrGasOwnerMismatch, tx.GasID.Hex(), gas.Owner.Address.Hex(), signer.Hex())
	}

	data := autotx.TransactionData{
		Sender: signer,
		Call: autotx.MoveCall{
			Package:       tx.Callee,
			Module:        string(tx.ModuleName),
			Function:      string(tx.FunctionName),
			TypeArguments: typeInputs,
			Arguments:     resolved,
		},
		Gas: autotx.GasData{
			Payment: []autotx.ObjectRef{gas.Reference()},
			Owner:   signer,
			Price:   gasPrice,
			Budget:  balance,
		},
	}

	return autotx.NewAutoExecutableTransaction(tx.ID, tx.TriggerTime, signer, data)
}

func (m *Materializer) resolveObject(arg autotx.MoveCallArg) (autotx.CallArg, autotx.TypeTag, error) {
	obj, err := m.reader.GetObject(arg.ID)
	if err != nil {
		return autotx.CallArg{}, "", fmt.Errorf("%w: %s: %w", ErrArgumentNotFound, arg.ID.Hex(), err)
	}
	if obj == nil {
		return autotx.CallArg{}, "", fmt.Errorf("%w: %s", ErrArgumentNotFound, arg.ID.Hex())
	}

	typeTag, err := obj.TemplateType()
	if err != nil {
		return autotx.CallArg{}, "", fmt.Errorf("%w: %w", ErrArgumentNotFound, err)
	}

	switch {
	case obj.Owner.IsShared():
		return autotx.SharedCallArg(obj.ID, obj.Owner.InitialSharedVersion, arg.Mutable), typeTag, nil
	case arg.Receiving:
		return autotx.ReceivingCallArg(obj.Reference()), typeTag, nil
	default:
		return autotx.ImmOrOwnedCallArg(obj.Reference()), typeTag, nil
	}
}

// IsSkippable reports whether err only disqualifies a single trigger.
func IsSkippable(err error) bool {
	for _, target := range []error{
		ErrTriggerNotFound,
		ErrGasNotFound,
		ErrGasNotCoin,
		ErrCorruptTrigger,
		ErrArgumentNotFound,
		ErrArgumentCount,
		ErrGasOwnerMismatch,
		autotx.ErrNotAutoTx,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
