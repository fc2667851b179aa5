package callrecord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eleven-am/voice-bridge/internal/shared"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) *Store {
	store := NewStore(setupTestDB(t))
	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return store
}

func TestStore_Migrate(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)

	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	var tables []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table'").Scan(&tables)
	found := false
	for _, table := range tables {
		if table == "call_records" {
			found = true
			break
		}
	}
	if !found {
		t.Error("call_records table should exist after migration")
	}
}

func TestStore_StartAndEnd(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := &Record{
		ConversationID: "abc-1",
		Caller:         "+15550100",
		MediaFormat:    "raw/lpcm16",
	}
	if err := store.Start(ctx, r); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if r.ID == "" {
		t.Error("expected generated ID")
	}
	if r.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}

	if err := store.End(ctx, "abc-1", "client-disconnected", "caller hung up"); err != nil {
		t.Fatalf("End error: %v", err)
	}

	records, err := store.GetByConversation(ctx, "abc-1")
	if err != nil {
		t.Fatalf("GetByConversation error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.Open() {
		t.Error("record should be closed")
	}
	if got.ReasonCode != "client-disconnected" {
		t.Errorf("expected reason code client-disconnected, got %s", got.ReasonCode)
	}
	if got.Duration() < 0 {
		t.Errorf("unexpected duration %v", got.Duration())
	}
}

func TestStore_EndClosesLatestOpenRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Minute)

	store.Start(ctx, &Record{ConversationID: "abc-1", StartedAt: base})
	store.End(ctx, "abc-1", "", "first leg")
	store.Start(ctx, &Record{ConversationID: "abc-1", StartedAt: base.Add(time.Second), Resumed: true})

	if err := store.End(ctx, "abc-1", "", "second leg"); err != nil {
		t.Fatalf("End error: %v", err)
	}

	records, _ := store.GetByConversation(ctx, "abc-1")
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Reason != "first leg" || records[1].Reason != "second leg" {
		t.Errorf("unexpected reasons %q, %q", records[0].Reason, records[1].Reason)
	}
	if !records[1].Resumed {
		t.Error("second record should be marked resumed")
	}
}

func TestStore_EndUnknownConversation(t *testing.T) {
	store := newTestStore(t)

	err := store.End(context.Background(), "missing", "", "")
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, id := range []string{"a", "b", "c"} {
		store.Start(ctx, &Record{ConversationID: id, StartedAt: base.Add(time.Duration(i) * time.Second)})
	}

	records, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent error: %v", err)
	}
	if len(records) != 2 || records[0].ConversationID != "c" {
		t.Errorf("unexpected records %+v", records)
	}
}

func TestStore_Disabled(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	if store.Enabled() {
		t.Error("store without database should be disabled")
	}
	if err := store.Migrate(); err != nil {
		t.Errorf("Migrate error: %v", err)
	}
	if err := store.Start(ctx, &Record{ConversationID: "abc-1"}); err != nil {
		t.Errorf("Start error: %v", err)
	}
	if err := store.End(ctx, "abc-1", "", ""); err != nil {
		t.Errorf("End error: %v", err)
	}
	if records, err := store.GetByConversation(ctx, "abc-1"); err != nil || records != nil {
		t.Errorf("expected nil records, got %v, %v", records, err)
	}
}
