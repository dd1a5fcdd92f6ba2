package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fintrack/internal/log"
	"fintrack/internal/store"

	_ "modernc.org/sqlite"
)

type kind int

const (
	kindText kind = iota
	kindInt
	kindBool
)

// schema whitelists the tables and columns a query may name, with the
// type each column decodes to.
var schema = map[string]map[string]kind{
	"auth_users": {"id": kindText, "email": kindText, "username": kindText, "token": kindText},
	"currency":   {"id": kindInt, "currency_name": kindText},
	"ledger":     {"id": kindInt, "name": kindText, "created_by": kindText, "currency": kindInt},
	"settings":   {"user_id": kindText, "allow_report": kindBool, "current_ledger": kindInt, "locale": kindText},
	"entry": {
		"id": kindInt, "created_by": kindText, "ledger": kindInt, "date": kindText,
		"amount": kindText, "is_positive": kindBool, "category": kindText, "note": kindText,
	},
	"user_view": {
		"id": kindText, "email": kindText, "username": kindText,
		"allow_report": kindBool, "current_ledger": kindInt, "locale": kindText,
	},
}

// SQLiteRepository is a self-hosted stand-in for the hosted store. It
// serves both the table reader and the identity provider ports.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, logger: logger.WithComponent(log.ComponentStore)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Select implements store.TableReader.
func (r *SQLiteRepository) Select(ctx context.Context, q store.Query) ([]store.Row, error) {
	cols, ok := schema[q.Table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownTable, q.Table)
	}
	selected := q.Columns
	if len(selected) == 0 {
		selected = make([]string, 0, len(cols))
		for c := range cols {
			selected = append(selected, c)
		}
	}
	for _, c := range selected {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: %s.%s", store.ErrUnknownColumn, q.Table, c)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(selected, ", "), q.Table)
	args := make([]any, 0, len(q.Filters))
	for i, f := range q.Filters {
		k, ok := cols[f.Column]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", store.ErrUnknownColumn, q.Table, f.Column)
		}
		op, err := sqlOp(f.Op)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		fmt.Fprintf(&sb, "%s %s ?", f.Column, op)
		args = append(args, sqlArg(k, f.Value))
	}
	if q.OrderBy != "" {
		if _, ok := cols[q.OrderBy]; !ok {
			return nil, fmt.Errorf("%w: %s.%s", store.ErrUnknownColumn, q.Table, q.OrderBy)
		}
		fmt.Fprintf(&sb, " ORDER BY %s, rowid", q.OrderBy)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		vals := make([]any, len(selected))
		ptrs := make([]any, len(selected))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", q.Table, err)
		}
		row := make(store.Row, len(selected))
		for i, c := range selected {
			row[c] = decodeValue(cols[c], vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	r.logger.DebugContext(ctx, "SQLite query", "query", q.String(), "rows", len(out))
	if q.IsSingle() {
		if err := store.CheckSingle(out); err != nil {
			return nil, fmt.Errorf("%s: %w", q, err)
		}
	}
	return out, nil
}

// UserByID implements store.IdentityProvider.
func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (store.Identity, error) {
	return r.identity(ctx, "id", id)
}

// UserByToken implements store.IdentityProvider using the token column.
func (r *SQLiteRepository) UserByToken(ctx context.Context, token string) (store.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return store.Identity{}, store.ErrInvalidToken
	}
	id, err := r.identity(ctx, "token", token)
	if errors.Is(err, store.ErrIdentityNotFound) {
		return store.Identity{}, store.ErrInvalidToken
	}
	return id, err
}

func (r *SQLiteRepository) identity(ctx context.Context, col, value string) (store.Identity, error) {
	var id store.Identity
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, username FROM auth_users WHERE "+col+" = ?", value).
		Scan(&id.ID, &id.Email, &id.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Identity{}, fmt.Errorf("user %q: %w", value, store.ErrIdentityNotFound)
	}
	if err != nil {
		return store.Identity{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return id, nil
}

// AddIdentity inserts or replaces an auth user.
func (r *SQLiteRepository) AddIdentity(ctx context.Context, id store.Identity, token string) error {
	var tok any
	if token != "" {
		tok = token
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_users (id, email, username, token) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET email = excluded.email, username = excluded.username, token = excluded.token`,
		id.ID, id.Email, id.Username, tok)
	if err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// Insert writes one row into a whitelisted table and returns its rowid.
func (r *SQLiteRepository) Insert(ctx context.Context, table string, row store.Row) (int64, error) {
	cols, ok := schema[table]
	if !ok || table == "user_view" {
		return 0, fmt.Errorf("%w: %s", store.ErrUnknownTable, table)
	}
	names := make([]string, 0, len(row))
	args := make([]any, 0, len(row))
	for c, v := range row {
		k, ok := cols[c]
		if !ok {
			return 0, fmt.Errorf("%w: %s.%s", store.ErrUnknownColumn, table, c)
		}
		names = append(names, c)
		args = append(args, sqlArg(k, v))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), placeholders), args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return res.LastInsertId()
}

func sqlOp(op store.Op) (string, error) {
	switch op {
	case store.OpEq:
		return "=", nil
	case store.OpGte:
		return ">=", nil
	case store.OpLte:
		return "<=", nil
	}
	return "", fmt.Errorf("unsupported operator %q", op)
}

func sqlArg(k kind, v any) any {
	switch t := v.(type) {
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	case fmt.Stringer:
		return t.String()
	}
	if k == kindText {
		if _, isString := v.(string); !isString && v != nil {
			return fmt.Sprint(v)
		}
	}
	return v
}

func decodeValue(k kind, v any) any {
	if v == nil {
		return nil
	}
	switch k {
	case kindBool:
		switch t := v.(type) {
		case int64:
			return t != 0
		case bool:
			return t
		}
	case kindText:
		if b, ok := v.([]byte); ok {
			return string(b)
		}
	}
	return v
}
