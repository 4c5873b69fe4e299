package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
)

// BadgerJournal stores identifiers as keys of an embedded Badger database
// under a per-journal prefix. Writes are synchronous.
type BadgerJournal struct {
	db     *badger.DB
	prefix []byte
	count  atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// OpenBadger opens <dir>/journal.badger and counts the entries of name.
func OpenBadger(dir, name string) (*BadgerJournal, error) {
	path := filepath.Join(dir, "journal.badger")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("journal: ensure directory: %w", err)
	}
	opts := badger.DefaultOptions(path).WithLogger(nil).WithSyncWrites(true)
	return openBadger(opts, name)
}

// OpenBadgerInMemory opens a journal that lives only for the process.
func OpenBadgerInMemory(name string) (*BadgerJournal, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil), name)
}

func openBadger(opts badger.Options, name string) (*BadgerJournal, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("journal: open badger: %w", err)
	}
	j := &BadgerJournal{db: db, prefix: []byte(name + "/")}

	var n int64
	err = db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		iterOpts.Prefix = j.prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: count entries: %w", err)
	}
	j.count.Store(n)
	return j, nil
}

func (j *BadgerJournal) key(id string) []byte {
	return append(append([]byte(nil), j.prefix...), id...)
}

// Contains reports whether id is recorded.
func (j *BadgerJournal) Contains(id string) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return false
	}
	err := j.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(j.key(id))
		return err
	})
	return err == nil
}

// Append records id.
func (j *BadgerJournal) Append(id string) error {
	if id == "" {
		return errors.New("journal: empty id")
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}
	var added bool
	err := j.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(j.key(id))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		added = true
		return txn.Set(j.key(id), nil)
	})
	if err != nil {
		return fmt.Errorf("journal: append %s: %w", id, err)
	}
	if added {
		j.count.Add(1)
	}
	return nil
}

// Len returns the number of recorded ids.
func (j *BadgerJournal) Len() int {
	return int(j.count.Load())
}

// Close closes the database.
func (j *BadgerJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}

func (j *BadgerJournal) drop() error {
	if err := j.db.DropPrefix(j.prefix); err != nil {
		return fmt.Errorf("journal: drop %s: %w", j.prefix, err)
	}
	j.count.Store(0)
	return nil
}
