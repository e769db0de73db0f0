package identity

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

var (
	identityPrefix = []byte("ident/")
	lastIDKey      = []byte("meta/last")
)

// BadgerStore keeps the identity index on disk so a restarted writer still
// recognizes nodes it committed before.
type BadgerStore struct {
	db *badger.DB
}

func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open identity store at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Load(fn func(identity string, id int64) error) (int64, error) {
	var last int64
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(lastIDKey)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				last = decodeID(val)
				return nil
			}); err != nil {
				return err
			}
		}

		it := txn.NewIterator(badger.IteratorOptions{Prefix: identityPrefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			identity := string(item.Key()[len(identityPrefix):])
			var id int64
			if err := item.Value(func(val []byte) error {
				id = decodeID(val)
				return nil
			}); err != nil {
				return err
			}
			if err := fn(identity, id); err != nil {
				return err
			}
			if id > last {
				last = id
			}
		}
		return nil
	})
	return last, err
}

func (b *BadgerStore) Save(entries map[string]int64, last int64) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for identity, id := range entries {
		key := append(append([]byte{}, identityPrefix...), identity...)
		if err := wb.Set(key, encodeID(id)); err != nil {
			return err
		}
	}
	if err := wb.Set(lastIDKey, encodeID(last)); err != nil {
		return err
	}
	return wb.Flush()
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

func encodeID(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func decodeID(val []byte) int64 {
	if len(val) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(val))
}
