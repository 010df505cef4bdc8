package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the usage counters for one source inside one epoch.
type QuotaNow struct {
	ReqCount uint32
	EpochID  uint64
}

// Quota bounds how many requests a source may issue per epoch. A zero
// MaxRequestsPerEpoch disables the check.
type Quota struct {
	MaxRequestsPerEpoch uint32
	EpochSeconds        uint32
}

// Epoch maps a unix timestamp onto the quota's epoch counter.
func (q Quota) Epoch(unix int64) uint64 {
	seconds := q.EpochSeconds
	if seconds == 0 {
		seconds = 60
	}
	if unix < 0 {
		unix = 0
	}
	return uint64(unix) / uint64(seconds)
}

// CheckQuota verifies whether addReq additional requests fit within the quota.
// The returned QuotaNow reflects the updated counters when the quota is not
// exceeded; on denial the previous counters are returned unchanged.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.ReqCount > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}

	return next, nil
}
