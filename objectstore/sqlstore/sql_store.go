// Package sqlstore persists object snapshots in SQLite. Objects are stored
// as brotli compressed RLP and loaded into an objectstore.MemStore at
// startup, so lookups made by the scheduler never touch the disk.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/Arkiv-Network/autoexec/compression"
	"github.com/Arkiv-Network/autoexec/objectstore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	_ "github.com/mattn/go-sqlite3"
)

const objectsSchemaVersion = uint64(1)

//go:embed schema.sql
var schema string

// SQLStore is a durable object snapshot.
type SQLStore struct {
	db *sql.DB
}

// NewStore opens the database in dbFile, creating it when missing. A
// database written with a different schema version is dropped and
// recreated.
func NewStore(dbFile string) (*SQLStore, error) {
	err := os.MkdirAll(filepath.Dir(dbFile), 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", dbFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx := context.Background()

	err = migrate(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Info("autoexec: object store ready", "path", dbFile, "schemaVersion", objectsSchemaVersion)
	return &SQLStore{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	version := uint64(0)

	err := db.QueryRowContext(ctx, `SELECT objects FROM schema_versions WHERE id = 1;`).Scan(&version)
	switch {
	case err == nil:
		log.Info("autoexec: schema version read from database", "objects", version)
	case errors.Is(err, sql.ErrNoRows):
		log.Warn("autoexec: no schema version info found, table empty")
	default:
		// the table itself is missing on a fresh database
		log.Warn("autoexec: no schema version info found", "error", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	if version != 0 && version != objectsSchemaVersion {
		log.Warn(
			"autoexec: objects table has an outdated schema, dropping it",
			"existingVersion", version,
			"requiredVersion", objectsSchemaVersion,
		)
		for _, table := range []string{"objects", "processing_status"} {
			_, err = tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, table))
			if err != nil {
				return fmt.Errorf("failed to drop %s table: %w", table, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO schema_versions (id, objects) VALUES (1, ?);`,
		objectsSchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update schema versions: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// ApplyChanges upserts and deletes objects for one checkpoint atomically
// and records the checkpoint as processed.
func (s *SQLStore) ApplyChanges(
	ctx context.Context,
	checkpoint uint64,
	upserts []*autotx.Object,
	deleted []common.Hash,
) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, o := range upserts {
		data, err := encodeObject(o)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(
			ctx,
			`INSERT OR REPLACE INTO objects (id, version, type, data) VALUES (?, ?, ?, ?);`,
			o.ID.Hex(),
			int64(o.Version),
			o.Type.String(),
			data,
		)
		if err != nil {
			return fmt.Errorf("failed to store object %s: %w", o.ID.Hex(), err)
		}
	}

	for _, id := range deleted {
		_, err = tx.ExecContext(ctx, `DELETE FROM objects WHERE id = ?;`, id.Hex())
		if err != nil {
			return fmt.Errorf("failed to delete object %s: %w", id.Hex(), err)
		}
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO processing_status (id, last_checkpoint) VALUES (1, ?);`,
		int64(checkpoint),
	)
	if err != nil {
		return fmt.Errorf("failed to update processing status: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit checkpoint %d: %w", checkpoint, err)
	}
	return nil
}

// LastCheckpoint returns the last checkpoint applied. ok is false when no
// checkpoint was ever applied.
func (s *SQLStore) LastCheckpoint(ctx context.Context) (checkpoint uint64, ok bool, err error) {
	var last int64
	err = s.db.QueryRowContext(ctx, `SELECT last_checkpoint FROM processing_status WHERE id = 1;`).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read processing status: %w", err)
	}
	return uint64(last), true, nil
}

// GetObject reads a single object straight from disk.
func (s *SQLStore) GetObject(id common.Hash) (*autotx.Object, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM objects WHERE id = ?;`, id.Hex()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", id.Hex(), err)
	}
	return decodeObject(data)
}

func (s *SQLStore) ForEachObject(ctx context.Context, fn func(*autotx.Object) error) error {
	return s.forEach(ctx, `SELECT data FROM objects ORDER BY id;`, fn)
}

// ForEachTrigger visits only objects tagged as triggers.
func (s *SQLStore) ForEachTrigger(ctx context.Context, fn func(*autotx.Object) error) error {
	return s.forEach(ctx, `SELECT data FROM objects WHERE type = ? ORDER BY id;`, fn, autotx.AutoTxType.String())
}

func (s *SQLStore) forEach(ctx context.Context, query string, fn func(*autotx.Object) error, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query objects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		err = rows.Scan(&data)
		if err != nil {
			return fmt.Errorf("failed to scan object: %w", err)
		}
		o, err := decodeObject(data)
		if err != nil {
			return err
		}
		err = fn(o)
		if err != nil {
			return err
		}
	}

	return rows.Err()
}

// LoadSnapshot reads every object into memory.
func (s *SQLStore) LoadSnapshot(ctx context.Context) (*objectstore.MemStore, error) {
	snapshot := objectstore.NewMemStore()
	err := s.ForEachObject(ctx, func(o *autotx.Object) error {
		snapshot.Put(o)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	log.Info("autoexec: object snapshot loaded", "objects", snapshot.Len())
	return snapshot, nil
}

func encodeObject(o *autotx.Object) ([]byte, error) {
	d, err := rlp.EncodeToBytes(o)
	if err != nil {
		return nil, fmt.Errorf("failed to encode object %s: %w", o.ID.Hex(), err)
	}
	compressed, err := compression.Compress(d)
	if err != nil {
		return nil, fmt.Errorf("failed to compress object %s: %w", o.ID.Hex(), err)
	}
	return compressed, nil
}

func decodeObject(data []byte) (*autotx.Object, error) {
	d, err := compression.Decompress(data)
	if err != nil {
		return nil, err
	}
	o := &autotx.Object{}
	err = rlp.DecodeBytes(d, o)
	if err != nil {
		return nil, fmt.Errorf("failed to decode object: %w", err)
	}
	return o, nil
}
