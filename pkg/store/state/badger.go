package state

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	storeerrors "github.com/pmpwsk/cocoding/pkg/store/errors"
)

// Key namespace:
//
//	Data Type       Prefix      Key Format        Value
//	File state      "state:"    state:<fileID>    framed update log
//	Version state   "version:"  version:<verID>   framed update log
const (
	prefixState   = "state:"
	prefixVersion = "version:"
)

func keyState(fileID int64) []byte {
	return []byte(prefixState + strconv.FormatInt(fileID, 10))
}

func keyVersion(versionID int64) []byte {
	return []byte(prefixVersion + strconv.FormatInt(versionID, 10))
}

// BadgerStore implements Store on top of BadgerDB.
//
// Each log is stored as one value; SetState overwrites it in a single
// transaction, so readers never observe a partially written log.
type BadgerStore struct {
	db *badger.DB
}

// Options configures the BadgerDB state store.
type Options struct {
	// Dir is the directory holding the BadgerDB files.
	Dir string

	// InMemory runs the store without touching disk. Used by tests.
	InMemory bool
}

// NewBadgerStore opens (creating if needed) the state database.
func NewBadgerStore(opts Options) (*BadgerStore, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir).
		WithInMemory(opts.InMemory).
		WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database at %q: %w", opts.Dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) GetState(ctx context.Context, fileID int64) ([][]byte, error) {
	return s.get(ctx, keyState(fileID), fmt.Sprintf("state of file %d", fileID))
}

func (s *BadgerStore) SetState(ctx context.Context, fileID int64, updates [][]byte) error {
	return s.set(ctx, keyState(fileID), updates)
}

func (s *BadgerStore) DeleteState(ctx context.Context, fileID int64) error {
	return s.delete(ctx, keyState(fileID))
}

func (s *BadgerStore) GetVersionState(ctx context.Context, versionID int64) ([][]byte, error) {
	return s.get(ctx, keyVersion(versionID), fmt.Sprintf("state of version %d", versionID))
}

func (s *BadgerStore) SetVersionState(ctx context.Context, versionID int64, updates [][]byte) error {
	return s.set(ctx, keyVersion(versionID), updates)
}

func (s *BadgerStore) DeleteVersionState(ctx context.Context, versionID int64) error {
	return s.delete(ctx, keyVersion(versionID))
}

func (s *BadgerStore) ListStateIDs(ctx context.Context) ([]int64, error) {
	return s.listIDs(ctx, prefixState)
}

func (s *BadgerStore) ListVersionStateIDs(ctx context.Context) ([]int64, error) {
	return s.listIDs(ctx, prefixVersion)
}

func (s *BadgerStore) get(ctx context.Context, key []byte, what string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updates [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return storeerrors.NewNotFound(what)
		}
		if err != nil {
			return storeerrors.NewIO("failed to read update log", err)
		}
		return item.Value(func(val []byte) error {
			updates, err = DecodeLog(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return updates, nil
}

func (s *BadgerStore) set(ctx context.Context, key []byte, updates [][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	blob := EncodeLog(updates)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, blob)
	})
	if err != nil {
		return storeerrors.NewIO("failed to write update log", err)
	}
	return nil
}

func (s *BadgerStore) delete(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return storeerrors.NewIO("failed to delete update log", err)
	}
	return nil
}

func (s *BadgerStore) listIDs(ctx context.Context, prefix string) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ids []int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			id, err := strconv.ParseInt(strings.TrimPrefix(key, prefix), 10, 64)
			if err != nil {
				// Foreign key in the namespace; skip rather than fail the sweep.
				continue
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, storeerrors.NewIO("failed to list update logs", err)
	}
	return ids, nil
}
