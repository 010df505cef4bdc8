package common

import (
	"errors"
	"testing"
)

func TestCheckQuotaRequestLimit(t *testing.T) {
	q := Quota{MaxRequestsPerEpoch: 10}
	prev := QuotaNow{EpochID: 1}

	next, err := CheckQuota(q, 1, prev, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ReqCount != 10 {
		t.Fatalf("unexpected request count: %d", next.ReqCount)
	}

	denied, err := CheckQuota(q, 1, next, 1)
	if !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected ErrQuotaRequestsExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 2, next, 1)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.EpochID != 2 || rollover.ReqCount != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaDisabledWhenZero(t *testing.T) {
	next, err := CheckQuota(Quota{}, 3, QuotaNow{EpochID: 3}, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ReqCount != 1000 {
		t.Fatalf("unexpected request count: %d", next.ReqCount)
	}
}

func TestQuotaEpochWindows(t *testing.T) {
	q := Quota{EpochSeconds: 60}
	if q.Epoch(0) != 0 {
		t.Fatalf("expected epoch 0")
	}
	if q.Epoch(59) != 0 {
		t.Fatalf("expected epoch 0 at 59s")
	}
	if q.Epoch(60) != 1 {
		t.Fatalf("expected epoch 1 at 60s")
	}
	if def := (Quota{}).Epoch(120); def != 2 {
		t.Fatalf("expected default minute epochs, got %d", def)
	}
}
