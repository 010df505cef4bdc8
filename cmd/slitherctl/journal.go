package main

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var journalBucket = []byte("room_nonces")

// ErrNonceReissued is returned when a requested nonce was already handed to a
// signature. Re-signing an issued nonce could produce two valid settlement
// tuples for the same room, so the journal refuses.
var ErrNonceReissued = errors.New("nonce already issued")

// Journal records every resolution nonce the operator has signed, keyed by
// room. It is the local source of truth for the next safe nonce even when the
// node is unreachable.
type Journal struct {
	db *bolt.DB
}

type issuedNonce struct {
	Nonce     uint64    `json:"nonce"`
	Winner    string    `json:"winner"`
	Digest    string    `json:"digest"`
	Signature string    `json:"signature"`
	IssuedAt  time.Time `json:"issuedAt"`
}

type roomNonceRecord struct {
	NextNonce uint64        `json:"nextNonce"`
	Issued    []issuedNonce `json:"issued"`
}

func OpenJournal(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open nonce journal: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(journalBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init nonce journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func roomKey(roomID uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, roomID)
	return key
}

// NextNonce reports the lowest nonce the journal has not yet issued for the
// room. A room with no history starts at zero.
func (j *Journal) NextNonce(roomID uint64) (uint64, error) {
	var next uint64
	err := j.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(journalBucket)
		if bucket == nil {
			return fmt.Errorf("nonce journal bucket missing")
		}
		raw := bucket.Get(roomKey(roomID))
		if raw == nil {
			return nil
		}
		var record roomNonceRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("decode nonce record for room %d: %w", roomID, err)
		}
		next = record.NextNonce
		return nil
	})
	return next, err
}

// History returns the issued entries for the room, oldest first.
func (j *Journal) History(roomID uint64) ([]issuedNonce, error) {
	var issued []issuedNonce
	err := j.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(journalBucket)
		if bucket == nil {
			return fmt.Errorf("nonce journal bucket missing")
		}
		raw := bucket.Get(roomKey(roomID))
		if raw == nil {
			return nil
		}
		var record roomNonceRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("decode nonce record for room %d: %w", roomID, err)
		}
		issued = record.Issued
		return nil
	})
	return issued, err
}

// Issue picks the nonce for a new signature and records the result in the
// same transaction that produced it. When explicit is nil the journal's next
// nonce is used. An explicit nonce below the journal cursor is rejected with
// ErrNonceReissued; an explicit nonce ahead of the cursor is allowed so a
// rebuilt journal can resynchronise with the node, and advances the cursor
// past it.
func (j *Journal) Issue(roomID uint64, explicit *uint64, sign func(nonce uint64) (issuedNonce, error)) (issuedNonce, error) {
	var entry issuedNonce
	err := j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(journalBucket)
		if bucket == nil {
			return fmt.Errorf("nonce journal bucket missing")
		}
		key := roomKey(roomID)
		var record roomNonceRecord
		if raw := bucket.Get(key); raw != nil {
			if err := json.Unmarshal(raw, &record); err != nil {
				return fmt.Errorf("decode nonce record for room %d: %w", roomID, err)
			}
		}
		nonce := record.NextNonce
		if explicit != nil {
			if *explicit < record.NextNonce {
				return fmt.Errorf("room %d nonce %d: %w", roomID, *explicit, ErrNonceReissued)
			}
			nonce = *explicit
		}
		signed, err := sign(nonce)
		if err != nil {
			return err
		}
		signed.Nonce = nonce
		if signed.IssuedAt.IsZero() {
			signed.IssuedAt = time.Now().UTC()
		}
		record.Issued = append(record.Issued, signed)
		record.NextNonce = nonce + 1
		raw, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode nonce record for room %d: %w", roomID, err)
		}
		if err := bucket.Put(key, raw); err != nil {
			return err
		}
		entry = signed
		return nil
	})
	if err != nil {
		return issuedNonce{}, err
	}
	return entry, nil
}
