package storage

import (
	"encoding/json"
	"errors"
	"os"

	badger "github.com/dgraph-io/badger/v4"
)

var (
	// ErrKeyNotFound is returned when a key is not found in the key-value store.
	ErrKeyNotFound = errors.New("key not found")
)

// IsErrKeyNotFound returns true if the error is a key not found error.
func IsErrKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound) || errors.Is(err, badger.ErrKeyNotFound)
}

// KV is a flat key-value store on Badger. It holds the pre-relational
// legacy data and the byte image of the snapshot backend.
type KV struct {
	db *badger.DB
}

// KVOptions configures the key-value store.
type KVOptions struct {
	// Path is the directory path. Empty string uses in-memory mode.
	Path string
	// InMemory forces in-memory mode regardless of Path.
	InMemory bool
}

// OpenKV opens or creates a key-value store.
func OpenKV(opts KVOptions) (*KV, error) {
	var badgerOpts badger.Options

	if opts.InMemory || opts.Path == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, err
		}
		badgerOpts = badger.DefaultOptions(opts.Path)
	}

	// Reduce logging noise
	badgerOpts = badgerOpts.WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}
	return &KV{db: db}, nil
}

// Close closes the key-value store.
func (k *KV) Close() error {
	return k.db.Close()
}

// GetBytes retrieves raw bytes by key.
func (k *KV) GetBytes(key string) ([]byte, error) {
	var result []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	return result, err
}

// GetString retrieves a value as a string.
func (k *KV) GetString(key string) (string, error) {
	b, err := k.GetBytes(key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetJSON retrieves a value and unmarshals it into v.
func (k *KV) GetJSON(key string, v any) error {
	b, err := k.GetBytes(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// SetBytes stores raw bytes with the given key.
func (k *KV) SetBytes(key string, data []byte) error {
	return k.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// SetJSON marshals v and stores it with the given key.
func (k *KV) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return k.SetBytes(key, data)
}

// Delete removes a key.
func (k *KV) Delete(key string) error {
	return k.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Exists checks if a key exists.
func (k *KV) Exists(key string) (bool, error) {
	_, err := k.GetBytes(key)
	if err == nil {
		return true, nil
	}
	if IsErrKeyNotFound(err) {
		return false, nil
	}
	return false, err
}

// ListByPrefix retrieves all keys with the given prefix.
func (k *KV) ListByPrefix(prefix string) ([]string, error) {
	var keys []string
	err := k.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}
