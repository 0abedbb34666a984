// Package badger implements metadata.Store on top of BadgerDB, so object
// handles and PUIDs survive responder restarts.
package badger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/mtpd/internal/logger"
	"github.com/marmos91/mtpd/pkg/metadata"
	"github.com/marmos91/mtpd/pkg/metadata/errors"
)

// BadgerMetadataStoreConfig configures the BadgerDB backend.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory holding the database files.
	DBPath string `mapstructure:"db_path"`

	// InMemory keeps the database in RAM. DBPath is ignored.
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites fsyncs every commit.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// sequenceBandwidth is the number of handles leased from the sequence at a time.
const sequenceBandwidth = 128

// BadgerMetadataStore is a metadata.Store backed by BadgerDB.
//
// Thread Safety: BadgerDB transactions are safe for concurrent use. Handle
// allocation goes through a badger.Sequence guarded by seqMu.
type BadgerMetadataStore struct {
	db     *badgerdb.DB
	seq    *badgerdb.Sequence
	seqMu  sync.Mutex
	closed atomic.Bool
}

var _ metadata.Store = (*BadgerMetadataStore)(nil)

// NewBadgerMetadataStore opens (or creates) the database described by cfg.
func NewBadgerMetadataStore(ctx context.Context, cfg BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.DBPath == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger metadata store requires db_path")
	}

	opts := badgerdb.DefaultOptions(cfg.DBPath).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	seq, err := db.GetSequence([]byte(keyHandleSequence), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open handle sequence: %w", err)
	}

	logger.Debug("Badger metadata store opened", "path", cfg.DBPath, "in_memory", cfg.InMemory)
	return &BadgerMetadataStore{db: db, seq: seq}, nil
}

// NewBadgerMetadataStoreWithDefaults opens a database at dbPath with default settings.
func NewBadgerMetadataStoreWithDefaults(ctx context.Context, dbPath string) (*BadgerMetadataStore, error) {
	return NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dbPath})
}

// begin checks the preconditions shared by every operation.
func (s *BadgerMetadataStore) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return errors.NewStoreClosedError()
	}
	return nil
}

// nextHandle allocates a handle, skipping the reserved values.
func (s *BadgerMetadataStore) nextHandle() (uint32, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	for {
		n, err := s.seq.Next()
		if err != nil {
			return 0, errors.NewIOError("allocate handle", err)
		}
		if n > uint64(^uint32(0)) {
			return 0, errors.NewIOError("allocate handle", fmt.Errorf("handle space exhausted"))
		}
		if h := uint32(n); metadata.ValidHandle(h) {
			return h, nil
		}
	}
}

// Healthcheck verifies the database can serve a read transaction.
func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if err := s.begin(ctx); err != nil {
		return err
	}

	err := s.db.View(func(txn *badgerdb.Txn) error {
		return nil
	})
	if err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

// Close releases the handle sequence and closes the database.
func (s *BadgerMetadataStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.seqMu.Lock()
	if err := s.seq.Release(); err != nil {
		logger.Warn("Failed to release handle sequence", "error", err)
	}
	s.seqMu.Unlock()

	return s.db.Close()
}
