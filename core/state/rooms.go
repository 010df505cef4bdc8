package state

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/BenjDW/maitre-slither/native/ledger"
	"github.com/BenjDW/maitre-slither/native/room"
)

type storedRoom struct {
	ID           uint64
	PlayerA      [20]byte
	PlayerB      [20]byte
	Stake        *big.Int
	JoinDeadline uint64
	FeeRateBps   uint32
	Status       uint8
	PaidMask     uint8
	RefundedMask uint8
	Winner       [20]byte
	CreatedAt    uint64
	StartedAt    uint64
	ResolvedAt   uint64
	Deposited    *big.Int
	ReservedFee  *big.Int
	PaidOut      *big.Int
}

func roomRecordKey(id uint64) []byte {
	seq := strconv.FormatUint(id, 10)
	buf := make([]byte, len(roomRecordPrefix)+len(seq))
	copy(buf, roomRecordPrefix)
	copy(buf[len(roomRecordPrefix):], seq)
	return buf
}

func roomNonceKey(roomID, nonce uint64) []byte {
	seq := strconv.FormatUint(roomID, 10)
	suffix := strconv.FormatUint(nonce, 10)
	buf := make([]byte, len(roomNoncePrefix)+len(seq)+1+len(suffix))
	copy(buf, roomNoncePrefix)
	offset := len(roomNoncePrefix)
	copy(buf[offset:], seq)
	offset += len(seq)
	buf[offset] = '/'
	offset++
	copy(buf[offset:], suffix)
	return buf
}

func newStoredRoom(r *room.Room) *storedRoom {
	return &storedRoom{
		ID:           r.ID,
		PlayerA:      r.Players[0],
		PlayerB:      r.Players[1],
		Stake:        ledger.CloneBig(r.Stake),
		JoinDeadline: uint64(r.JoinDeadline),
		FeeRateBps:   r.FeeRateBps,
		Status:       uint8(r.Status),
		PaidMask:     r.PaidMask,
		RefundedMask: r.RefundedMask,
		Winner:       r.Winner,
		CreatedAt:    uint64(r.CreatedAt),
		StartedAt:    uint64(r.StartedAt),
		ResolvedAt:   uint64(r.ResolvedAt),
		Deposited:    ledger.CloneBig(r.Funds.Deposited),
		ReservedFee:  ledger.CloneBig(r.Funds.ReservedFee),
		PaidOut:      ledger.CloneBig(r.Funds.PaidOut),
	}
}

func (stored *storedRoom) toRoom() *room.Room {
	record := &room.Room{
		ID:           stored.ID,
		Players:      [2][20]byte{stored.PlayerA, stored.PlayerB},
		Stake:        ledger.CloneBig(stored.Stake),
		JoinDeadline: int64(stored.JoinDeadline),
		FeeRateBps:   stored.FeeRateBps,
		Status:       room.Status(stored.Status),
		PaidMask:     stored.PaidMask,
		RefundedMask: stored.RefundedMask,
		Winner:       stored.Winner,
		CreatedAt:    int64(stored.CreatedAt),
		StartedAt:    int64(stored.StartedAt),
		ResolvedAt:   int64(stored.ResolvedAt),
		Funds: ledger.Funds{
			Deposited:   ledger.CloneBig(stored.Deposited),
			ReservedFee: ledger.CloneBig(stored.ReservedFee),
			PaidOut:     ledger.CloneBig(stored.PaidOut),
		},
	}
	record.Funds.Normalize()
	return record
}

// RoomNextID increments and returns the room sequence counter. The first room
// receives id 1.
func (m *Manager) RoomNextID() (uint64, error) {
	if m == nil {
		return 0, fmt.Errorf("rooms: state manager not initialised")
	}
	var seq uint64
	if _, err := m.KVGet(roomSeqKey, &seq); err != nil {
		return 0, fmt.Errorf("rooms: load sequence: %w", err)
	}
	seq++
	if err := m.KVPut(roomSeqKey, seq); err != nil {
		return 0, fmt.Errorf("rooms: persist sequence: %w", err)
	}
	return seq, nil
}

// RoomPut persists the room record under its id.
func (m *Manager) RoomPut(r *room.Room) error {
	if m == nil {
		return fmt.Errorf("rooms: state manager not initialised")
	}
	if r == nil {
		return fmt.Errorf("rooms: record required")
	}
	if err := m.KVPut(roomRecordKey(r.ID), newStoredRoom(r)); err != nil {
		return fmt.Errorf("rooms: persist record: %w", err)
	}
	return nil
}

// RoomGet loads the room record stored under the provided id.
func (m *Manager) RoomGet(id uint64) (*room.Room, bool, error) {
	if m == nil {
		return nil, false, fmt.Errorf("rooms: state manager not initialised")
	}
	var stored storedRoom
	ok, err := m.KVGet(roomRecordKey(id), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("rooms: load record: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return stored.toRoom(), true, nil
}

// RoomNonceConsumed reports whether the resolve nonce was already spent for
// the room.
func (m *Manager) RoomNonceConsumed(roomID, nonce uint64) (bool, error) {
	if m == nil {
		return false, fmt.Errorf("rooms: state manager not initialised")
	}
	ok, err := m.KVGet(roomNonceKey(roomID, nonce), nil)
	if err != nil {
		return false, fmt.Errorf("rooms: load nonce marker: %w", err)
	}
	return ok, nil
}

// RoomConsumeNonce marks the resolve nonce as spent for the room.
func (m *Manager) RoomConsumeNonce(roomID, nonce uint64) error {
	if m == nil {
		return fmt.Errorf("rooms: state manager not initialised")
	}
	if err := m.KVPut(roomNonceKey(roomID, nonce), true); err != nil {
		return fmt.Errorf("rooms: persist nonce marker: %w", err)
	}
	return nil
}
