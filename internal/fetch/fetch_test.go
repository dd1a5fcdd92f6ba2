package fetch

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
	"fintrack/internal/store/memory"
)

func seeded() *memory.Store {
	s := memory.New()
	s.AddIdentity(store.Identity{ID: "A", Email: "a@example.com", Username: "alice"}, "")
	s.AddIdentity(store.Identity{ID: "B", Email: "b@example.com", Username: "bob"}, "")
	s.AddIdentity(store.Identity{ID: "C", Email: "c@example.com", Username: "carol"}, "")
	s.Insert("settings", store.Row{"user_id": "A", "allow_report": true, "current_ledger": int64(1)})
	s.Insert("settings", store.Row{"user_id": "B", "allow_report": false, "current_ledger": int64(7), "locale": "de-de"})
	s.Insert("currency", store.Row{"id": int64(1), "currency_name": "USD"})
	s.Insert("ledger", store.Row{"id": int64(1), "name": "Main", "created_by": "A", "currency": int64(1)})
	s.Insert("ledger", store.Row{"id": int64(7), "name": "Bob's", "created_by": "B", "currency": int64(1)})
	s.Insert("entry", store.Row{"id": int64(1), "created_by": "A", "ledger": int64(1), "date": "2024-03-05", "amount": "100", "is_positive": true, "category": "salary"})
	s.Insert("entry", store.Row{"id": int64(2), "created_by": "A", "ledger": int64(1), "date": "2024-03-10", "amount": "40", "is_positive": false, "category": "groceries", "note": "weekly"})
	s.Insert("entry", store.Row{"id": int64(3), "created_by": "A", "ledger": int64(1), "date": "2024-04-01", "amount": "5", "is_positive": false, "category": "bus"})
	s.Insert("entry", store.Row{"id": int64(4), "created_by": "B", "ledger": int64(7), "date": "2024-03-11", "amount": "9", "is_positive": false, "category": "food"})
	return s
}

func newFetcher(s *memory.Store) *Fetcher {
	return New(s, s, log.Discard())
}

func TestGetUser(t *testing.T) {
	f := newFetcher(seeded())
	u, err := f.GetUser(context.Background(), "B")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Email != "b@example.com" || u.AllowReport || u.CurrentLedger != 7 || u.Locale != "de-de" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestGetUserErrors(t *testing.T) {
	f := newFetcher(seeded())
	if _, err := f.GetUser(context.Background(), "Z"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	u, err := f.GetUser(context.Background(), "C")
	if !errors.Is(err, core.ErrIncompleteProfile) {
		t.Fatalf("expected ErrIncompleteProfile, got %v", err)
	}
	if u != (core.User{}) {
		t.Fatalf("expected zero user on failure, got %+v", u)
	}
}

func TestGetAllowReportUsersExcludesOptedOut(t *testing.T) {
	f := newFetcher(seeded())
	users, err := f.GetAllowReportUsers(context.Background())
	if err != nil {
		t.Fatalf("GetAllowReportUsers: %v", err)
	}
	if len(users) != 1 || users[0].ID != "A" {
		t.Fatalf("expected only A, got %+v", users)
	}
}

// stubTables returns fixed rows regardless of the query, standing in for a
// store that filters loosely.
type stubTables struct{ rows []store.Row }

func (s stubTables) Select(context.Context, store.Query) ([]store.Row, error) { return s.rows, nil }

func TestGetAllowReportUsersRequiresRealBoolean(t *testing.T) {
	tables := stubTables{rows: []store.Row{
		{"id": "1", "email": "one@x", "allow_report": true, "current_ledger": int64(1)},
		{"id": "2", "email": "two@x", "allow_report": int64(1), "current_ledger": int64(1)},
		{"id": "3", "email": "three@x", "allow_report": "true", "current_ledger": int64(1)},
	}}
	f := New(tables, memory.New(), log.Discard())
	users, err := f.GetAllowReportUsers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].ID != "1" {
		t.Fatalf("expected only the boolean row, got %+v", users)
	}
}

func TestGetLedgerOwnership(t *testing.T) {
	f := newFetcher(seeded())
	l, err := f.GetLedger(context.Background(), "A", 1)
	if err != nil {
		t.Fatalf("GetLedger: %v", err)
	}
	if l.Name != "Main" || l.Currency != "USD" {
		t.Fatalf("unexpected ledger %+v", l)
	}

	l, err = f.GetLedger(context.Background(), "A", 7)
	if !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if l.Name != "" {
		t.Fatalf("foreign ledger data leaked: %+v", l)
	}
	if _, err := f.GetLedger(context.Background(), "A", 99); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for missing ledger, got %v", err)
	}
}

func TestGetPeriodEntries(t *testing.T) {
	f := newFetcher(seeded())
	entries, err := f.GetPeriodEntries(context.Background(), "A", 1, core.Period{Month: 3, Year: 2024})
	if err != nil {
		t.Fatalf("GetPeriodEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Note != "weekly" || entries[1].IsPositive {
		t.Fatalf("unexpected entry %+v", entries[1])
	}

	entries, err = f.GetPeriodEntries(context.Background(), "A", 1, core.Period{Month: 5, Year: 2024})
	if err != nil {
		t.Fatalf("empty period should not fail: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty slice, got %#v", entries)
	}
}

type failingTables struct{}

func (failingTables) Select(context.Context, store.Query) ([]store.Row, error) {
	return nil, store.ErrUnavailable
}

func TestGetPeriodEntriesUnreachable(t *testing.T) {
	f := New(failingTables{}, memory.New(), log.Discard())
	if _, err := f.GetPeriodEntries(context.Background(), "A", 1, core.Period{Month: 3, Year: 2024}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
