package testutil

import (
	"fmt"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/Arkiv-Network/autoexec/materializer"
	"github.com/Arkiv-Network/autoexec/objectstore"
	"github.com/Arkiv-Network/autoexec/triggerindex"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DefaultBalance is the balance of gas coins created by ScheduleTrigger.
const DefaultBalance = uint64(5_000_000)

// World is the test world - it holds the object snapshot, the materializer
// and the index built on top of them.
type World struct {
	Store        *objectstore.MemStore
	Materializer *materializer.Materializer
	Index        *triggerindex.Index

	// Triggers holds the triggers created by scenarios, by name.
	Triggers   map[string]*autotx.AutoTx
	LastTx     *autotx.AutoExecutableTransaction
	LastResult []*autotx.AutoExecutableTransaction
	LastError  error

	nextID *uint256.Int
}

func NewWorld() *World {
	store := objectstore.NewMemStore()
	m := materializer.New(store, autotx.SignerTriggerID)
	return &World{
		Store:        store,
		Materializer: m,
		Index:        triggerindex.New(nil, m),
		Triggers:     map[string]*autotx.AutoTx{},
		nextID:       uint256.NewInt(0x1000),
	}
}

// NewID returns a fresh object id.
func (w *World) NewID() common.Hash {
	w.nextID.AddUint64(w.nextID, 1)
	return common.Hash(w.nextID.Bytes32())
}

func (w *World) AddGasCoin(owner common.Hash, balance uint64) *autotx.Object {
	coin := autotx.NewGasCoin(w.NewID(), 1, autotx.AddressOwned(owner), balance)
	w.Store.Put(coin)
	return coin
}

// AddTrigger stores a trigger object calling 0xc0de::counter::increment.
// Every argument gets a u64 type input slot.
func (w *World) AddTrigger(id common.Hash, at uint64, gasID common.Hash, args ...autotx.MoveCallArg) *autotx.AutoTx {
	inputs := make([]autotx.TypeTag, len(args))
	for i := range inputs {
		inputs[i] = "u64"
	}
	typeInputs, err := autotx.EncodeTypeInputs(inputs)
	if err != nil {
		panic(fmt.Errorf("failed to encode type inputs: %w", err))
	}
	encodedArgs, err := autotx.EncodeArguments(args)
	if err != nil {
		panic(fmt.Errorf("failed to encode arguments: %w", err))
	}

	tx := &autotx.AutoTx{
		ID:           id,
		TriggerTime:  at,
		Caller:       common.HexToHash("0xca11"),
		Callee:       common.HexToHash("0xc0de"),
		ModuleName:   []byte("counter"),
		FunctionName: []byte("increment"),
		TypeInputs:   typeInputs,
		GasID:        gasID,
		Arguments:    encodedArgs,
	}
	obj, err := tx.Object(1, autotx.Shared(1))
	if err != nil {
		panic(err)
	}
	w.Store.Put(obj)
	return tx
}

// ScheduleTrigger stores a trigger at the given time together with a gas
// coin it owns. The trigger is not added to the index.
func (w *World) ScheduleTrigger(at uint64) *autotx.AutoTx {
	return w.ScheduleTriggerWithBalance(at, DefaultBalance)
}

func (w *World) ScheduleTriggerWithBalance(at uint64, balance uint64) *autotx.AutoTx {
	id := w.NewID()
	gas := w.AddGasCoin(id, balance)
	return w.AddTrigger(id, at, gas.ID, autotx.PureMoveCallArg([]byte{1}))
}

// Trigger returns the trigger a scenario created under name.
func (w *World) Trigger(name string) (*autotx.AutoTx, error) {
	tx, ok := w.Triggers[name]
	if !ok {
		return nil, fmt.Errorf("trigger %q was not created", name)
	}
	return tx, nil
}
