package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/log"
	"fintrack/internal/store"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "fintrack.db"), log.Discard())
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustInsert(t *testing.T, repo *SQLiteRepository, table string, row store.Row) int64 {
	t.Helper()
	id, err := repo.Insert(context.Background(), table, row)
	if err != nil {
		t.Fatalf("insert %s: %v", table, err)
	}
	return id
}

func TestSelectEntriesInRange(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	if err := repo.AddIdentity(ctx, store.Identity{ID: "u1", Email: "a@x", Username: "alice"}, "tok"); err != nil {
		t.Fatal(err)
	}
	ledger := mustInsert(t, repo, "ledger", store.Row{"name": "Main", "created_by": "u1", "currency": int64(1)})
	mustInsert(t, repo, "entry", store.Row{"created_by": "u1", "ledger": ledger, "date": "2024-03-31", "amount": decimal.RequireFromString("40.25"), "is_positive": false, "category": "food"})
	mustInsert(t, repo, "entry", store.Row{"created_by": "u1", "ledger": ledger, "date": "2024-03-01", "amount": "100", "is_positive": true, "category": "salary"})
	mustInsert(t, repo, "entry", store.Row{"created_by": "u1", "ledger": ledger, "date": "2024-04-01", "amount": "1", "is_positive": false, "category": "bus"})

	rows, err := repo.Select(ctx, store.From("entry").
		Eq("created_by", "u1").Eq("ledger", ledger).
		Gte("date", "2024-03-01").Lte("date", "2024-03-31").
		Order("date"))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if d, _ := rows[0].String("date"); d != "2024-03-01" {
		t.Fatalf("expected ordering by date, first is %s", d)
	}
	if pos, err := rows[0].Bool("is_positive"); err != nil || !pos {
		t.Fatalf("is_positive = %v, %v", pos, err)
	}
	if amt, err := rows[1].Decimal("amount"); err != nil || !amt.Equal(decimal.RequireFromString("40.25")) {
		t.Fatalf("amount = %s, %v", amt, err)
	}
	if _, err := rows[1].String("note"); err == nil {
		t.Fatal("expected null note to be reported")
	}
}

func TestUserViewAndSingle(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	_ = repo.AddIdentity(ctx, store.Identity{ID: "u1", Email: "a@x"}, "")
	_ = repo.AddIdentity(ctx, store.Identity{ID: "u2", Email: "b@x"}, "")
	mustInsert(t, repo, "settings", store.Row{"user_id": "u1", "allow_report": true, "current_ledger": nil})
	mustInsert(t, repo, "settings", store.Row{"user_id": "u2", "allow_report": false})

	rows, err := repo.Select(ctx, store.From("user_view").Eq("allow_report", true))
	if err != nil || len(rows) != 1 || rows[0]["id"] != "u1" {
		t.Fatalf("unexpected view rows %v, %v", rows, err)
	}

	_, err = repo.Select(ctx, store.From("settings").Eq("user_id", "nobody").Single())
	if !errors.Is(err, store.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestSelectRejectsUnknownNames(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	if _, err := repo.Select(ctx, store.From("secrets")); !errors.Is(err, store.ErrUnknownTable) {
		t.Fatalf("expected ErrUnknownTable, got %v", err)
	}
	if _, err := repo.Select(ctx, store.From("entry").Eq("1=1; --", 1)); !errors.Is(err, store.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
}

func TestIdentityLookups(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	_ = repo.AddIdentity(ctx, store.Identity{ID: "u1", Email: "a@x", Username: "alice"}, "tok")

	id, err := repo.UserByToken(ctx, "tok")
	if err != nil || id.Username != "alice" {
		t.Fatalf("UserByToken = %+v, %v", id, err)
	}
	if _, err := repo.UserByToken(ctx, "other"); !errors.Is(err, store.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := repo.UserByID(ctx, "u9"); !errors.Is(err, store.ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestCurrencySeeded(t *testing.T) {
	repo := newRepo(t)
	rows, err := repo.Select(context.Background(), store.From("currency").Select("currency_name").Eq("id", 1).Single())
	if err != nil {
		t.Fatalf("Select currency: %v", err)
	}
	if name, _ := rows[0].String("currency_name"); name != "USD" {
		t.Fatalf("expected USD, got %s", name)
	}
}
