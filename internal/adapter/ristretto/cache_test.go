package ristretto_test

import (
	"testing"
	"time"

	"github.com/kestrel-run/orchestra/internal/adapter/ristretto"
)

func TestSetWithTTLThenGet(t *testing.T) {
	c, err := ristretto.New(1 << 20)
	if err != nil {
		t.Fatalf("unexpected error constructing cache: %v", err)
	}

	if ok := c.SetWithTTL("plan-key", "plan-value", time.Minute); !ok {
		t.Fatal("expected SetWithTTL to accept the entry")
	}

	v, ok := c.Get("plan-key")
	if !ok {
		t.Fatal("expected to find the entry after SetWithTTL")
	}
	if v != "plan-value" {
		t.Fatalf("value = %v, want plan-value", v)
	}
}

func TestGetMissingKey(t *testing.T) {
	c, err := ristretto.New(1 << 20)
	if err != nil {
		t.Fatalf("unexpected error constructing cache: %v", err)
	}

	if _, ok := c.Get("absent"); ok {
		t.Fatal("expected a miss for a key that was never set")
	}
}

func TestDelRemovesEntry(t *testing.T) {
	c, err := ristretto.New(1 << 20)
	if err != nil {
		t.Fatalf("unexpected error constructing cache: %v", err)
	}
	c.SetWithTTL("k", "v", time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected the entry to be present before deletion")
	}

	c.Del("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected the entry to be gone after Del")
	}
}
