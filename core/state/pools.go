package state

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"

	"github.com/BenjDW/maitre-slither/native/ledger"
	"github.com/BenjDW/maitre-slither/native/pool"
)

type storedPool struct {
	ID           uint64
	Stake        *big.Int
	TargetCount  uint32
	JoinDeadline uint64
	FeeRateBps   uint32
	Status       uint8
	ActiveCount  uint32
	CreatedAt    uint64
	StartedAt    uint64
	EndedAt      uint64
	Deposited    *big.Int
	ReservedFee  *big.Int
	PaidOut      *big.Int
}

type storedParticipant struct {
	Deposited  *big.Int
	EverJoined bool
	Active     bool
	Exited     bool
}

func poolRecordKey(id uint64) []byte {
	seq := strconv.FormatUint(id, 10)
	buf := make([]byte, len(poolRecordPrefix)+len(seq))
	copy(buf, poolRecordPrefix)
	copy(buf[len(poolRecordPrefix):], seq)
	return buf
}

func poolSeatKey(poolID uint64, addr [20]byte) []byte {
	seq := strconv.FormatUint(poolID, 10)
	hexAddr := hex.EncodeToString(addr[:])
	buf := make([]byte, len(poolSeatPrefix)+len(seq)+1+len(hexAddr))
	copy(buf, poolSeatPrefix)
	offset := len(poolSeatPrefix)
	copy(buf[offset:], seq)
	offset += len(seq)
	buf[offset] = '/'
	offset++
	copy(buf[offset:], hexAddr)
	return buf
}

func poolEventKey(poolID, eventID uint64) []byte {
	seq := strconv.FormatUint(poolID, 10)
	event := strconv.FormatUint(eventID, 10)
	buf := make([]byte, len(poolEventPrefix)+len(seq)+1+len(event))
	copy(buf, poolEventPrefix)
	offset := len(poolEventPrefix)
	copy(buf[offset:], seq)
	offset += len(seq)
	buf[offset] = '/'
	offset++
	copy(buf[offset:], event)
	return buf
}

func newStoredPool(p *pool.Pool) *storedPool {
	stored := &storedPool{
		ID:           p.ID,
		Stake:        ledger.CloneBig(p.Stake),
		TargetCount:  p.TargetCount,
		JoinDeadline: uint64(p.JoinDeadline),
		FeeRateBps:   p.FeeRateBps,
		Status:       uint8(p.Status),
		ActiveCount:  p.ActiveCount,
		CreatedAt:    uint64(p.CreatedAt),
		StartedAt:    uint64(p.StartedAt),
		EndedAt:      uint64(p.EndedAt),
		Deposited:    ledger.CloneBig(p.Funds.Deposited),
		ReservedFee:  ledger.CloneBig(p.Funds.ReservedFee),
		PaidOut:      ledger.CloneBig(p.Funds.PaidOut),
	}
	return stored
}

func (stored *storedPool) toPool() *pool.Pool {
	record := &pool.Pool{
		ID:           stored.ID,
		Stake:        ledger.CloneBig(stored.Stake),
		TargetCount:  stored.TargetCount,
		JoinDeadline: int64(stored.JoinDeadline),
		FeeRateBps:   stored.FeeRateBps,
		Status:       pool.Status(stored.Status),
		ActiveCount:  stored.ActiveCount,
		CreatedAt:    int64(stored.CreatedAt),
		StartedAt:    int64(stored.StartedAt),
		EndedAt:      int64(stored.EndedAt),
		Funds: ledger.Funds{
			Deposited:   ledger.CloneBig(stored.Deposited),
			ReservedFee: ledger.CloneBig(stored.ReservedFee),
			PaidOut:     ledger.CloneBig(stored.PaidOut),
		},
	}
	record.Funds.Normalize()
	return record
}

// PoolNextID increments and returns the pool sequence counter. The first pool
// receives id 1.
func (m *Manager) PoolNextID() (uint64, error) {
	if m == nil {
		return 0, fmt.Errorf("pools: state manager not initialised")
	}
	var seq uint64
	if _, err := m.KVGet(poolSeqKey, &seq); err != nil {
		return 0, fmt.Errorf("pools: load sequence: %w", err)
	}
	seq++
	if err := m.KVPut(poolSeqKey, seq); err != nil {
		return 0, fmt.Errorf("pools: persist sequence: %w", err)
	}
	return seq, nil
}

// PoolPut persists the pool record under its id.
func (m *Manager) PoolPut(p *pool.Pool) error {
	if m == nil {
		return fmt.Errorf("pools: state manager not initialised")
	}
	if p == nil {
		return fmt.Errorf("pools: record required")
	}
	if err := m.KVPut(poolRecordKey(p.ID), newStoredPool(p)); err != nil {
		return fmt.Errorf("pools: persist record: %w", err)
	}
	return nil
}

// PoolGet loads the pool record stored under the provided id.
func (m *Manager) PoolGet(id uint64) (*pool.Pool, bool, error) {
	if m == nil {
		return nil, false, fmt.Errorf("pools: state manager not initialised")
	}
	var stored storedPool
	ok, err := m.KVGet(poolRecordKey(id), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("pools: load record: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return stored.toPool(), true, nil
}

// PoolParticipantPut persists the per-pool seat record for an identity.
func (m *Manager) PoolParticipantPut(poolID uint64, addr [20]byte, record *pool.Participant) error {
	if m == nil {
		return fmt.Errorf("pools: state manager not initialised")
	}
	if record == nil {
		return fmt.Errorf("pools: participant record required")
	}
	stored := &storedParticipant{
		Deposited:  ledger.CloneBig(record.Deposited),
		EverJoined: record.EverJoined,
		Active:     record.Active,
		Exited:     record.Exited,
	}
	if err := m.KVPut(poolSeatKey(poolID, addr), stored); err != nil {
		return fmt.Errorf("pools: persist participant: %w", err)
	}
	return nil
}

// PoolParticipantGet loads the per-pool seat record for an identity.
func (m *Manager) PoolParticipantGet(poolID uint64, addr [20]byte) (*pool.Participant, bool, error) {
	if m == nil {
		return nil, false, fmt.Errorf("pools: state manager not initialised")
	}
	var stored storedParticipant
	ok, err := m.KVGet(poolSeatKey(poolID, addr), &stored)
	if err != nil {
		return nil, false, fmt.Errorf("pools: load participant: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	record := &pool.Participant{
		Deposited:  ledger.CloneBig(stored.Deposited),
		EverJoined: stored.EverJoined,
		Active:     stored.Active,
		Exited:     stored.Exited,
	}
	if record.Deposited == nil {
		record.Deposited = big.NewInt(0)
	}
	return record, true, nil
}

// PoolEventConsumed reports whether the settlement event id was already spent
// for the pool.
func (m *Manager) PoolEventConsumed(poolID, eventID uint64) (bool, error) {
	if m == nil {
		return false, fmt.Errorf("pools: state manager not initialised")
	}
	ok, err := m.KVGet(poolEventKey(poolID, eventID), nil)
	if err != nil {
		return false, fmt.Errorf("pools: load event marker: %w", err)
	}
	return ok, nil
}

// PoolConsumeEvent marks the settlement event id as spent for the pool.
func (m *Manager) PoolConsumeEvent(poolID, eventID uint64) error {
	if m == nil {
		return fmt.Errorf("pools: state manager not initialised")
	}
	if err := m.KVPut(poolEventKey(poolID, eventID), true); err != nil {
		return fmt.Errorf("pools: persist event marker: %w", err)
	}
	return nil
}
