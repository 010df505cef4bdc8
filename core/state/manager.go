// Package state persists the settlement records on a key-value database. All
// values are RLP encoded and keys are keccak-hashed before they reach the
// backend. Writes accumulate in an in-memory buffer until Commit flushes them;
// Reset discards the buffer. The node wraps every externally triggered
// operation in that buffer, so a failed operation leaves no partial writes
// behind.
package state

import (
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/BenjDW/maitre-slither/storage"
)

// Manager provides typed read/write access to the settlement state with
// buffered writes. It is not safe for concurrent use; the node serializes
// access.
type Manager struct {
	db    storage.Database
	dirty map[string][]byte
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string][]byte)}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the backend. The write
// stays in the buffer until Commit.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.dirty[string(kvKey(key))] = encoded
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. Buffered writes shadow the backend. The boolean
// return value indicates whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil {
		return false, fmt.Errorf("state: manager unavailable")
	}
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	hashed := string(kvKey(key))
	data, ok := m.dirty[hashed]
	if !ok {
		loaded, err := m.db.Get([]byte(hashed))
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		data = loaded
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// Pending reports the number of buffered writes awaiting Commit.
func (m *Manager) Pending() int {
	if m == nil {
		return 0
	}
	return len(m.dirty)
}

// Commit flushes the buffered writes to the backing database in deterministic
// key order and clears the buffer. A flush failure leaves the remaining
// entries buffered so the caller can retry or discard.
func (m *Manager) Commit() error {
	if m == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	keys := make([]string, 0, len(m.dirty))
	for key := range m.dirty {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := m.db.Put([]byte(key), m.dirty[key]); err != nil {
			return fmt.Errorf("state: flush write: %w", err)
		}
		delete(m.dirty, key)
	}
	return nil
}

// Reset discards all buffered writes.
func (m *Manager) Reset() {
	if m == nil {
		return
	}
	m.dirty = make(map[string][]byte)
}
