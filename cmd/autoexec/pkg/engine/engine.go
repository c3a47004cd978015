// Package engine opens the stores of a data directory and rebuilds the
// trigger index on top of them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Arkiv-Network/autoexec/config"
	"github.com/Arkiv-Network/autoexec/ingest"
	"github.com/Arkiv-Network/autoexec/materializer"
	"github.com/Arkiv-Network/autoexec/objectstore"
	"github.com/Arkiv-Network/autoexec/objectstore/sqlstore"
	"github.com/Arkiv-Network/autoexec/triggerindex"
	"github.com/ethereum/go-ethereum/log"
)

type Engine struct {
	Store        *sqlstore.SQLStore
	Snapshot     *objectstore.MemStore
	Materializer *materializer.Materializer
	Index        *triggerindex.Index
	Ingester     *ingest.Ingester
}

func Open(ctx context.Context, cfg config.Config) (*Engine, error) {
	store, err := sqlstore.NewStore(cfg.ObjectsPath())
	if err != nil {
		return nil, err
	}

	snapshot, err := store.LoadSnapshot(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}

	m := materializer.New(snapshot, cfg.Scheme())

	index, err := triggerindex.Rebuild(ctx, snapshot, m)
	if err != nil {
		store.Close()
		return nil, err
	}

	ingester, err := ingest.NewIngester(ctx, index, snapshot, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	log.Info("trigger index rebuilt", "triggers", index.Len(), "checkpoint", ingester.LastCheckpoint())

	return &Engine{
		Store:        store,
		Snapshot:     snapshot,
		Materializer: m,
		Index:        index,
		Ingester:     ingester,
	}, nil
}

func (e *Engine) Close() error {
	err := e.Store.Close()
	if err != nil {
		return fmt.Errorf("failed to close object store: %w", err)
	}
	return nil
}

// IngestStream applies effects as they are decoded from the stream until it
// ends. fn is called with every summary.
func (e *Engine) IngestStream(ctx context.Context, r io.Reader, fn func(ingest.Summary) error) error {
	return ingest.DecodeEffects(r, func(effects *ingest.Effects) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		summary, err := e.Ingester.Apply(ctx, effects)
		if err != nil {
			return err
		}
		if fn == nil {
			return nil
		}
		return fn(summary)
	})
}

// IsStopped reports whether err only means the command was interrupted.
func IsStopped(err error) bool {
	return errors.Is(err, context.Canceled)
}
