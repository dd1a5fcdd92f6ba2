// Package memory is an in-process store backend for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"fintrack/internal/store"
)

// UserView is the denormalized table joining identities and settings.
const UserView = "user_view"

type Store struct {
	mu         sync.RWMutex
	identities map[string]store.Identity
	tokens     map[string]string
	order      []string
	tables     map[string][]store.Row
}

func New() *Store {
	return &Store{
		identities: map[string]store.Identity{},
		tokens:     map[string]string{},
		tables:     map[string][]store.Row{},
	}
}

// Seed is the JSON document accepted by NewFromFile.
type Seed struct {
	Users []struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Username string `json:"username"`
		Token    string `json:"token"`
	} `json:"users"`
	Tables map[string][]map[string]any `json:"tables"`
}

// NewFromFile loads identities and table rows from a JSON seed file.
func NewFromFile(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	s := New()
	for _, u := range seed.Users {
		s.AddIdentity(store.Identity{ID: u.ID, Email: u.Email, Username: u.Username}, u.Token)
	}
	names := make([]string, 0, len(seed.Tables))
	for name := range seed.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, r := range seed.Tables[name] {
			s.Insert(name, store.Row(r))
		}
	}
	return s, nil
}

// AddIdentity registers a user. A non-empty token makes it resolvable via
// UserByToken.
func (s *Store) AddIdentity(id store.Identity, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[id.ID]; !ok {
		s.order = append(s.order, id.ID)
	}
	s.identities[id.ID] = id
	if token != "" {
		s.tokens[token] = id.ID
	}
}

// Insert appends a copy of r to table.
func (s *Store) Insert(table string, r store.Row) {
	cp := make(store.Row, len(r))
	for k, v := range r {
		cp[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], cp)
}

func (s *Store) Select(ctx context.Context, q store.Query) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	source := s.tables[q.Table]
	if q.Table == UserView {
		source = s.userView()
	}
	var out []store.Row
	for _, r := range source {
		if !store.Match(r, q.Filters) {
			continue
		}
		out = append(out, project(r, q.Columns))
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			return fmt.Sprint(out[i][q.OrderBy]) < fmt.Sprint(out[j][q.OrderBy])
		})
	}
	if q.IsSingle() {
		if err := store.CheckSingle(out); err != nil {
			return nil, fmt.Errorf("%s: %w", q, err)
		}
	}
	return out, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (store.Identity, error) {
	if err := ctx.Err(); err != nil {
		return store.Identity{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.identities[id]
	if !ok {
		return store.Identity{}, fmt.Errorf("user %q: %w", id, store.ErrIdentityNotFound)
	}
	return u, nil
}

func (s *Store) UserByToken(ctx context.Context, token string) (store.Identity, error) {
	s.mu.RLock()
	id, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return store.Identity{}, store.ErrInvalidToken
	}
	return s.UserByID(ctx, id)
}

// userView joins identities with their settings row. Caller holds the lock.
func (s *Store) userView() []store.Row {
	settings := map[string]store.Row{}
	for _, r := range s.tables["settings"] {
		if uid, ok := r["user_id"].(string); ok {
			settings[uid] = r
		}
	}
	out := make([]store.Row, 0, len(s.order))
	for _, id := range s.order {
		u := s.identities[id]
		row := store.Row{"id": u.ID, "email": u.Email, "username": u.Username}
		if st, ok := settings[id]; ok {
			row["allow_report"] = st["allow_report"]
			row["current_ledger"] = st["current_ledger"]
			row["locale"] = st["locale"]
		}
		out = append(out, row)
	}
	return out
}

func project(r store.Row, cols []string) store.Row {
	out := make(store.Row, len(r))
	if len(cols) == 0 {
		for k, v := range r {
			out[k] = v
		}
		return out
	}
	for _, c := range cols {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}
