package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"capsule-go/internal/model"
)

// Foreign key enforcement must hold on every pooled connection, not just
// the one that happened to run first. Holding the first connection open
// forces the delete onto a freshly opened second connection.
func TestDeleteCapsuleCascadesOnEveryPooledConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capsules.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	if err := store.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	ctx := context.Background()
	c := &model.Capsule{
		ID:        "cap-1",
		OwnerID:   "owner",
		Title:     "title",
		Message:   "message",
		UnlockAt:  time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		Privacy:   model.PrivacyPrivate,
		Status:    model.StatusScheduled,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.CreateCapsule(ctx, c); err != nil {
		t.Fatalf("CreateCapsule() error = %v", err)
	}
	a := &model.Attachment{
		ID:          "att-1",
		CapsuleID:   "cap-1",
		Filename:    "note.txt",
		ContentType: "text/plain",
		StoragePath: "cap-1/att-1",
	}
	if err := store.CreateAttachment(ctx, a); err != nil {
		t.Fatalf("CreateAttachment() error = %v", err)
	}

	// Pin the connection that ran the writes so the delete below cannot
	// reuse it.
	conn, err := store.db.DB.Conn(ctx)
	if err != nil {
		t.Fatalf("pinning connection: %v", err)
	}
	defer conn.Close()

	if err := store.DeleteCapsule(ctx, "cap-1"); err != nil {
		t.Fatalf("DeleteCapsule() error = %v", err)
	}

	got, err := store.GetAttachment(ctx, "att-1")
	if err != nil {
		t.Fatalf("GetAttachment() error = %v", err)
	}
	if got != nil {
		t.Errorf("attachment survived capsule deletion on a second connection: %+v", got)
	}
}

// An in-memory store must keep serving the same database across
// sequential operations even though the pool would normally rotate
// connections between them.
func TestInMemoryStoreIsSingleDatabase(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	if err := store.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	ctx := context.Background()
	for i, id := range []string{"cap-1", "cap-2", "cap-3"} {
		c := &model.Capsule{
			ID:        id,
			OwnerID:   "owner",
			Title:     "title",
			Message:   "message",
			UnlockAt:  time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
			Privacy:   model.PrivacyPrivate,
			Status:    model.StatusScheduled,
			CreatedAt: time.Date(2026, 3, 1, 12, i, 0, 0, time.UTC),
		}
		if err := store.CreateCapsule(ctx, c); err != nil {
			t.Fatalf("CreateCapsule(%s) error = %v", id, err)
		}
	}

	got, err := store.ListCapsulesByOwner(ctx, "owner")
	if err != nil {
		t.Fatalf("ListCapsulesByOwner() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d capsules, want 3; writes landed in separate databases", len(got))
	}
}
