package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/goliatone/go-agent-studio/graph"
)

// Key prefixes for the different record families.
const (
	prefixGraph   = "g:"
	prefixVersion = "v:"
	prefixCache   = "c:"
)

// BadgerStore is a BadgerDB-backed Store. Snapshot keys embed a
// nanosecond timestamp so prefix iteration returns them in creation
// order, keeping the version list append-only by construction.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens or creates the database at path. An empty path opens
// an in-memory database, which tests use.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "open badger store").
			WithTextCode(ErrCodeStoreIO)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) ListGraphs(_ context.Context, filter Filter) ([]Summary, error) {
	var out []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixGraph)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec graph.GraphRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if !filter.Matches(&rec) {
				continue
			}
			out = append(out, Summary{
				ID:          rec.ActiveID(),
				DisplayName: rec.DisplayName,
				GraphType:   rec.GraphType,
				Channel:     rec.Channel,
				Version:     rec.Version,
				Status:      rec.Status,
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "list graphs").
			WithTextCode(ErrCodeStoreIO)
	}
	return out, nil
}

func (s *BadgerStore) GetGraph(_ context.Context, id string) (*graph.GraphRecord, error) {
	var rec graph.GraphRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixGraph + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrGraphNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "get graph").
			WithTextCode(ErrCodeStoreIO)
	}
	return &rec, nil
}

func (s *BadgerStore) SaveGraph(_ context.Context, rec *graph.GraphRecord) (SaveResult, error) {
	cp := *rec
	if cp.CanonicalID == "" {
		cp.CanonicalID = uuid.New().String()
		cp.Status = graph.StatusCanonical
	}

	serialized, err := json.Marshal(&cp)
	if err != nil {
		return SaveResult{}, errors.Wrap(err, errors.CategoryExternal, "serialize graph").
			WithTextCode(ErrCodeStoreIO)
	}
	now := time.Now().UTC()
	snapshot := graph.VersionSnapshot{
		VersionID:       uuid.New().String(),
		GraphRecordID:   cp.CanonicalID,
		VersionLabel:    cp.Version,
		CreatedAt:       now,
		SerializedGraph: serialized,
	}
	snapData, err := json.Marshal(&snapshot)
	if err != nil {
		return SaveResult{}, errors.Wrap(err, errors.CategoryExternal, "serialize snapshot").
			WithTextCode(ErrCodeStoreIO)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixGraph+cp.CanonicalID), serialized); err != nil {
			return err
		}
		key := fmt.Sprintf("%s%s:%020d:%s", prefixVersion, cp.CanonicalID, now.UnixNano(), snapshot.VersionID)
		return txn.Set([]byte(key), snapData)
	})
	if err != nil {
		return SaveResult{}, errors.Wrap(err, errors.CategoryExternal, "save graph").
			WithTextCode(ErrCodeStoreIO)
	}
	return SaveResult{ID: cp.CanonicalID, Version: cp.Version}, nil
}

func (s *BadgerStore) DeleteGraph(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(prefixGraph + id)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(prefixGraph + id)); err != nil {
			return err
		}
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()
		prefix := []byte(prefixVersion + id + ":")
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return ErrGraphNotFound
	}
	if err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "delete graph").
			WithTextCode(ErrCodeStoreIO)
	}
	return nil
}

func (s *BadgerStore) ListVersions(_ context.Context, id string) ([]graph.VersionSnapshot, error) {
	var out []graph.VersionSnapshot
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(prefixGraph + id)); err != nil {
			return err
		}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixVersion + id + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var snap graph.VersionSnapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				return err
			}
			out = append(out, snap)
		}
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrGraphNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "list versions").
			WithTextCode(ErrCodeStoreIO)
	}
	return out, nil
}

func (s *BadgerStore) GetVersion(ctx context.Context, id, versionID string) (*graph.VersionSnapshot, error) {
	snaps, err := s.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		if snap.VersionID == versionID {
			cp := snap
			return &cp, nil
		}
	}
	return nil, ErrVersionNotFound
}

func (s *BadgerStore) DeployVersion(ctx context.Context, id, versionID string) error {
	if _, err := s.GetVersion(ctx, id, versionID); err != nil {
		return err
	}
	rec, err := s.GetGraph(ctx, id)
	if err != nil {
		return err
	}
	rec.DeployedVersionID = versionID
	rec.Status = graph.StatusDeployed

	serialized, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "serialize graph").
			WithTextCode(ErrCodeStoreIO)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixGraph+id), serialized)
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryExternal, "deploy version").
			WithTextCode(ErrCodeStoreIO)
	}
	return nil
}

var _ Store = (*BadgerStore)(nil)

// CachedEdits is the locally mirrored editable content for one draft id.
type CachedEdits struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// BadgerCache is a Badger-backed local cache mirror keyed by draft id.
// It outlives the editing session and feeds the session's local-wins
// reconciliation on reopen.
type BadgerCache struct {
	db *badger.DB
}

// NewBadgerCache shares the store's database for cached edits.
func NewBadgerCache(s *BadgerStore) *BadgerCache {
	return &BadgerCache{db: s.db}
}

// Load returns the cached edits for id, or ok=false when none exist.
func (c *BadgerCache) Load(id string) (CachedEdits, bool) {
	var edits CachedEdits
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixCache + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &edits)
		})
	})
	if err != nil {
		return CachedEdits{}, false
	}
	return edits, true
}

// Store mirrors the latest local edits for id.
func (c *BadgerCache) Store(id string, edits CachedEdits) {
	data, err := json.Marshal(&edits)
	if err != nil {
		return
	}
	_ = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixCache+id), data)
	})
}

// Delete drops the mirror for id, typically after a clean save.
func (c *BadgerCache) Delete(id string) {
	_ = c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixCache + id))
	})
}
