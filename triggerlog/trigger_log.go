// Package triggerlog is the durable record of materialized transactions,
// keyed by the millisecond timestamp of the window they were handed out in.
package triggerlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
)

const (
	keySize = 8

	// block cache size, most reads are single key lookups
	cacheSize = 64 << 20

	bloomBitsPerKey = 10
)

type Log struct {
	db *pebble.DB

	// serializes the read-modify-write in Insert
	writeMu sync.Mutex
}

func Open(path string) (*Log, error) {
	err := os.MkdirAll(path, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create trigger log directory: %w", err)
	}

	cache := pebble.NewCache(cacheSize)
	defer cache.Unref()

	opts := &pebble.Options{
		Cache:  cache,
		Levels: make([]pebble.LevelOptions, 7),
	}
	for i := range opts.Levels {
		opts.Levels[i].FilterPolicy = bloom.FilterPolicy(bloomBitsPerKey)
		opts.Levels[i].FilterType = pebble.TableFilter
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open trigger log: %w", err)
	}

	log.Info("autoexec: trigger log ready", "path", path)
	return &Log{db: db}, nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

func encodeKey(at uint64) []byte {
	k := make([]byte, keySize)
	binary.BigEndian.PutUint64(k, at)
	return k
}

func decodeKey(k []byte) (uint64, error) {
	if len(k) != keySize {
		return 0, fmt.Errorf("invalid trigger log key of %d bytes", len(k))
	}
	return binary.BigEndian.Uint64(k), nil
}

// bounds returns the iteration bounds for (t1, t2]. upper is nil when the
// range reaches the largest representable time.
func bounds(t1, t2 uint64) (lower, upper []byte) {
	lower = encodeKey(t1 + 1)
	if t2 < math.MaxUint64 {
		upper = encodeKey(t2 + 1)
	}
	return lower, upper
}

func decodeTransactions(at uint64, value []byte) ([]*autotx.AutoExecutableTransaction, error) {
	txs := []*autotx.AutoExecutableTransaction{}
	err := rlp.DecodeBytes(value, &txs)
	if err != nil {
		return nil, fmt.Errorf("corrupted trigger log entry at %d: %w", at, err)
	}
	return txs, nil
}

// Insert appends txs to the entry stored at at.
func (l *Log) Insert(at uint64, txs []*autotx.AutoExecutableTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	existing, err := l.Get(at)
	if err != nil {
		return err
	}

	merged := append(existing, txs...)
	value, err := rlp.EncodeToBytes(merged)
	if err != nil {
		return fmt.Errorf("failed to encode trigger log entry at %d: %w", at, err)
	}

	err = l.db.Set(encodeKey(at), value, pebble.Sync)
	if err != nil {
		return fmt.Errorf("failed to write trigger log entry at %d: %w", at, err)
	}

	return nil
}

// Get returns the transactions stored at exactly at.
func (l *Log) Get(at uint64) ([]*autotx.AutoExecutableTransaction, error) {
	value, closer, err := l.db.Get(encodeKey(at))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger log entry at %d: %w", at, err)
	}
	defer closer.Close()

	return decodeTransactions(at, value)
}

// Query returns every transaction stored in (t1, t2], in ascending key
// order.
func (l *Log) Query(t1, t2 uint64) ([]*autotx.AutoExecutableTransaction, error) {
	result := []*autotx.AutoExecutableTransaction{}
	err := l.ForEach(t1, t2, func(at uint64, txs []*autotx.AutoExecutableTransaction) error {
		result = append(result, txs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ForEach visits the entries in (t1, t2] in ascending key order.
func (l *Log) ForEach(t1, t2 uint64, fn func(at uint64, txs []*autotx.AutoExecutableTransaction) error) error {
	if t1 >= t2 {
		return nil
	}

	lower, upper := bounds(t1, t2)
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return fmt.Errorf("failed to create trigger log iterator: %w", err)
	}
	defer iter.Close()

	for ok := iter.First(); ok; ok = iter.Next() {
		at, err := decodeKey(iter.Key())
		if err != nil {
			return err
		}
		txs, err := decodeTransactions(at, iter.Value())
		if err != nil {
			return err
		}
		err = fn(at, txs)
		if err != nil {
			return err
		}
	}

	return iter.Error()
}

// Remove deletes every entry in (t1, t2].
func (l *Log) Remove(t1, t2 uint64) error {
	if t1 >= t2 {
		return nil
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	lower, upper := bounds(t1, t2)

	batch := l.db.NewBatch()
	defer batch.Close()

	if upper == nil {
		// DeleteRange is end exclusive, the last key needs its own delete
		upper = encodeKey(math.MaxUint64)
		err := batch.Delete(upper, nil)
		if err != nil {
			return fmt.Errorf("failed to delete trigger log entry: %w", err)
		}
	}

	err := batch.DeleteRange(lower, upper, nil)
	if err != nil {
		return fmt.Errorf("failed to delete trigger log range (%d, %d]: %w", t1, t2, err)
	}

	err = l.db.Apply(batch, pebble.Sync)
	if err != nil {
		return fmt.Errorf("failed to apply trigger log removal: %w", err)
	}

	return nil
}

// Last returns the largest time with a stored entry.
func (l *Log) Last() (uint64, bool, error) {
	iter, err := l.db.NewIter(nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to create trigger log iterator: %w", err)
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, false, iter.Error()
	}

	at, err := decodeKey(iter.Key())
	if err != nil {
		return 0, false, err
	}
	return at, true, nil
}
