package common

import (
	"errors"
	"testing"
)

func TestGuardRejectsNestedEntry(t *testing.T) {
	var g Guard
	if err := g.Enter(); err != nil {
		t.Fatalf("first enter: %v", err)
	}
	if err := g.Enter(); !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("expected reentrant error, got %v", err)
	}
	g.Exit()
	if err := g.Enter(); err != nil {
		t.Fatalf("enter after exit: %v", err)
	}
	g.Exit()
}

func TestNilGuardIsPermissive(t *testing.T) {
	var g *Guard
	if err := g.Enter(); err != nil {
		t.Fatalf("nil guard enter: %v", err)
	}
	g.Exit()
}
