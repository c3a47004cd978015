package autotx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var ErrInvalidSigner = errors.New("auto executable transaction must have exactly one signer")

// AutoExecutableTransaction is a materialized trigger, ready to be
// executed. It is immutable; its identity is Digest.
type AutoExecutableTransaction struct {
	triggerID   common.Hash
	triggerTime uint64
	signer      common.Hash
	transaction TransactionData
}

type autoExecutableTransactionRLP struct {
	TriggerID   common.Hash
	TriggerTime uint64
	Signer      common.Hash
	Transaction TransactionData
}

// NewAutoExecutableTransaction checks that tx is signed by signer alone.
func NewAutoExecutableTransaction(
	triggerID common.Hash,
	triggerTime uint64,
	signer common.Hash,
	tx TransactionData,
) (*AutoExecutableTransaction, error) {
	err := checkSigner(signer, &tx)
	if err != nil {
		return nil, err
	}
	return &AutoExecutableTransaction{
		triggerID:   triggerID,
		triggerTime: triggerTime,
		signer:      signer,
		transaction: tx,
	}, nil
}

func checkSigner(signer common.Hash, tx *TransactionData) error {
	signers := tx.Signers()
	if len(signers) != 1 || signers[0] != signer {
		return fmt.Errorf("%w: expected %s", ErrInvalidSigner, signer.Hex())
	}
	return nil
}

func (a *AutoExecutableTransaction) TriggerID() common.Hash {
	return a.triggerID
}

func (a *AutoExecutableTransaction) TriggerTime() uint64 {
	return a.triggerTime
}

func (a *AutoExecutableTransaction) Signer() common.Hash {
	return a.signer
}

// Transaction returns a copy of the transaction payload.
func (a *AutoExecutableTransaction) Transaction() TransactionData {
	return a.transaction
}

func (a *AutoExecutableTransaction) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &autoExecutableTransactionRLP{
		TriggerID:   a.triggerID,
		TriggerTime: a.triggerTime,
		Signer:      a.signer,
		Transaction: a.transaction,
	})
}

// DecodeRLP re-checks the single signer invariant, persisted data is not
// trusted blindly.
func (a *AutoExecutableTransaction) DecodeRLP(s *rlp.Stream) error {
	dec := autoExecutableTransactionRLP{}
	err := s.Decode(&dec)
	if err != nil {
		return err
	}
	err = checkSigner(dec.Signer, &dec.Transaction)
	if err != nil {
		return err
	}
	a.triggerID = dec.TriggerID
	a.triggerTime = dec.TriggerTime
	a.signer = dec.Signer
	a.transaction = dec.Transaction
	return nil
}

// Digest is the Keccak256 hash of the canonical encoding.
func (a *AutoExecutableTransaction) Digest() common.Hash {
	d, err := rlp.EncodeToBytes(a)
	if err != nil {
		panic(fmt.Errorf("failed to encode auto executable transaction: %w", err))
	}
	return crypto.Keccak256Hash(d)
}

// Key is the primary key of the transaction.
func (a *AutoExecutableTransaction) Key() common.Hash {
	return a.Digest()
}

func (a *AutoExecutableTransaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Digest      common.Hash     `json:"digest"`
		TriggerID   common.Hash     `json:"triggerId"`
		TriggerTime uint64          `json:"triggerTime"`
		Signer      common.Hash     `json:"signer"`
		Transaction TransactionData `json:"transaction"`
	}{
		Digest:      a.Digest(),
		TriggerID:   a.triggerID,
		TriggerTime: a.triggerTime,
		Signer:      a.signer,
		Transaction: a.transaction,
	})
}
