package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/certward/certward/certrecord"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := New(0)
	conn, err := store.Connection(ctx)
	if err != nil {
		t.Fatalf("Connection failed: %v", err)
	}
	defer conn.Close()

	record := &certrecord.Record{
		Provider:      "providerA",
		InstanceID:    "instance1",
		Service:       "athenz.api",
		CurrentSerial: "12345",
		CurrentTime:   time.Now().UTC(),
		CurrentIP:     "10.0.0.5",
	}

	t.Run("InsertAndGet", func(t *testing.T) {
		if err := conn.Insert(ctx, record); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		got, err := conn.Get(ctx, "providerA", "instance1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.CurrentSerial != record.CurrentSerial || got.Service != record.Service {
			t.Errorf("Get returned wrong record: %+v", got)
		}

		// Test isolation (cloning)
		got.CurrentSerial = "mutated"
		got2, _ := conn.Get(ctx, "providerA", "instance1")
		if got2.CurrentSerial == "mutated" {
			t.Error("store should return clones of records")
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, err := conn.Get(ctx, "providerA", "nonexistent")
		if err != certrecord.ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		_, err = conn.Get(ctx, "nonexistent", "instance1")
		if err != certrecord.ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		updated := record.Clone()
		updated.PrevSerial = updated.CurrentSerial
		updated.CurrentSerial = "67890"
		if err := conn.Update(ctx, updated); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		got, err := conn.Get(ctx, "providerA", "instance1")
		if err != nil {
			t.Fatalf("Get after Update failed: %v", err)
		}
		if got.CurrentSerial != "67890" || got.PrevSerial != "12345" {
			t.Errorf("Update not reflected: %+v", got)
		}
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		missing := &certrecord.Record{Provider: "providerB", InstanceID: "ghost"}
		if err := conn.Update(ctx, missing); err != certrecord.ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := conn.Delete(ctx, "providerA", "instance1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := conn.Get(ctx, "providerA", "instance1"); err != certrecord.ErrNotFound {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := conn.Delete(ctx, "providerA", "instance1"); err != certrecord.ErrNotFound {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestRegistryOpen(t *testing.T) {
	store, err := certrecord.Open("memory", certrecord.Config{OperationTimeout: -1}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()
	if store.OperationTimeout() != certrecord.DefaultOperationTimeout {
		t.Errorf("negative timeout not coerced: %v", store.OperationTimeout())
	}
}
