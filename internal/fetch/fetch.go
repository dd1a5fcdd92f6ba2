// Package fetch maps rows of the hosted store into validated domain values.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

// Table names of the hosted schema.
const (
	TableSettings = "settings"
	TableUserView = "user_view"
	TableLedger   = "ledger"
	TableCurrency = "currency"
	TableEntry    = "entry"
)

// Fetcher resolves users, ledgers and entries. It holds no global state;
// both ports are injected.
type Fetcher struct {
	tables     store.TableReader
	identities store.IdentityProvider
	logger     *log.Logger
}

func New(tables store.TableReader, identities store.IdentityProvider, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Fetcher{tables: tables, identities: identities, logger: logger.WithComponent(log.ComponentFetch)}
}

// GetUser combines the identity record and the settings row. Either lookup
// failing yields an error and no user.
func (f *Fetcher) GetUser(ctx context.Context, id string) (core.User, error) {
	ident, err := f.identities.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrIdentityNotFound) {
			return core.User{}, fmt.Errorf("unable to find the user with the given user id: %w", core.ErrNotFound)
		}
		return core.User{}, fmt.Errorf("get user %s: %w: %v", id, core.ErrNotFound, err)
	}

	rows, err := f.tables.Select(ctx, store.From(TableSettings).
		Select("allow_report", "current_ledger", "locale").
		Eq("user_id", id).
		Single())
	if err != nil {
		if errors.Is(err, store.ErrNoRows) || errors.Is(err, store.ErrMultipleRows) {
			return core.User{}, fmt.Errorf("unable to retrieve the user's settings: %w", core.ErrIncompleteProfile)
		}
		return core.User{}, fmt.Errorf("get settings %s: %w: %v", id, core.ErrNotFound, err)
	}

	u := core.User{ID: ident.ID, Email: ident.Email, Username: ident.Username}
	if err := applySettings(&u, rows[0]); err != nil {
		return core.User{}, fmt.Errorf("settings for %s: %w: %v", id, core.ErrIncompleteProfile, err)
	}
	if err := u.Validate(); err != nil {
		return core.User{}, fmt.Errorf("user %s: %w: %v", id, core.ErrIncompleteProfile, err)
	}
	return u, nil
}

// GetAllowReportUsers lists the users who opted into automated reports.
// Rows whose flag is anything but the boolean true are dropped even if the
// store matched them.
func (f *Fetcher) GetAllowReportUsers(ctx context.Context) ([]core.User, error) {
	rows, err := f.tables.Select(ctx, store.From(TableUserView).Eq("allow_report", true))
	if err != nil {
		return nil, fmt.Errorf("list opted-in users: %w: %v", core.ErrNotFound, err)
	}
	users := make([]core.User, 0, len(rows))
	for _, r := range rows {
		allow, err := r.Bool("allow_report")
		if err != nil || !allow {
			continue
		}
		u, err := userFromView(r)
		if err != nil {
			f.logger.WarnContext(ctx, "Skipping malformed user row", log.FieldError, err)
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// GetLedger returns the ledger only when ownerID created it. A missing
// ledger and a foreign ledger are indistinguishable to the caller.
func (f *Fetcher) GetLedger(ctx context.Context, ownerID string, ledgerID int64) (core.Ledger, error) {
	rows, err := f.tables.Select(ctx, store.From(TableLedger).
		Eq("id", ledgerID).
		Eq("created_by", ownerID))
	if err != nil {
		return core.Ledger{}, fmt.Errorf("get ledger %d: %w: %v", ledgerID, core.ErrNotFound, err)
	}
	if len(rows) == 0 {
		return core.Ledger{}, fmt.Errorf("unable to retrieve ledger %d for this user: %w", ledgerID, core.ErrForbidden)
	}
	r := rows[0]

	l := core.Ledger{ID: ledgerID, OwnerID: ownerID}
	if l.Name, err = r.String("name"); err != nil {
		return core.Ledger{}, fmt.Errorf("ledger %d: %w", ledgerID, err)
	}
	if l.Currency, err = f.currencyName(ctx, r); err != nil {
		return core.Ledger{}, fmt.Errorf("ledger %d: %w", ledgerID, err)
	}
	if err := l.Validate(); err != nil {
		return core.Ledger{}, fmt.Errorf("ledger %d: %w", ledgerID, err)
	}
	return l, nil
}

// currencyName resolves the ledger's currency reference. A ledger row may
// already carry the code under currency_name.
func (f *Fetcher) currencyName(ctx context.Context, ledger store.Row) (string, error) {
	if ledger.Has("currency_name") {
		return ledger.String("currency_name")
	}
	ref, err := ledger.Int64("currency")
	if err != nil {
		return "", err
	}
	rows, err := f.tables.Select(ctx, store.From(TableCurrency).
		Select("currency_name").
		Eq("id", ref).
		Single())
	if err != nil {
		return "", fmt.Errorf("currency %d: %w", ref, err)
	}
	return rows[0].String("currency_name")
}

// GetPeriodEntries returns the owner's entries of one ledger within the
// period. No entries is an empty slice, not an error.
func (f *Fetcher) GetPeriodEntries(ctx context.Context, ownerID string, ledgerID int64, period core.Period) ([]core.Entry, error) {
	start, end, err := period.Range()
	if err != nil {
		return nil, err
	}
	rows, err := f.tables.Select(ctx, store.From(TableEntry).
		Eq("created_by", ownerID).
		Eq("ledger", ledgerID).
		Gte("date", start.String()).
		Lte("date", end.String()).
		Order("date"))
	if err != nil {
		return nil, fmt.Errorf("get entries: %w: %v", core.ErrNotFound, err)
	}

	entries := make([]core.Entry, 0, len(rows))
	for _, r := range rows {
		e, err := entryFromRow(r)
		if err != nil {
			return nil, fmt.Errorf("malformed entry row: %w", err)
		}
		entries = append(entries, e)
	}
	return core.FilterByRange(entries, start, end), nil
}

func applySettings(u *core.User, r store.Row) error {
	var err error
	if u.AllowReport, err = r.Bool("allow_report"); err != nil {
		return err
	}
	if u.CurrentLedger, err = r.Int64("current_ledger"); err != nil {
		return err
	}
	u.Locale, err = r.OptString("locale")
	return err
}

func userFromView(r store.Row) (core.User, error) {
	var u core.User
	var err error
	if u.ID, err = r.String("id"); err != nil {
		return u, err
	}
	if u.Email, err = r.String("email"); err != nil {
		return u, err
	}
	if u.Username, err = r.OptString("username"); err != nil {
		return u, err
	}
	if err = applySettings(&u, r); err != nil {
		return u, err
	}
	return u, u.Validate()
}

func entryFromRow(r store.Row) (core.Entry, error) {
	var e core.Entry
	var err error
	if e.ID, err = r.Int64("id"); err != nil {
		return e, err
	}
	if e.OwnerID, err = r.String("created_by"); err != nil {
		return e, err
	}
	if e.LedgerID, err = r.Int64("ledger"); err != nil {
		return e, err
	}
	if e.Date, err = r.Date("date"); err != nil {
		return e, err
	}
	if e.Amount, err = r.Decimal("amount"); err != nil {
		return e, err
	}
	if e.IsPositive, err = r.Bool("is_positive"); err != nil {
		return e, err
	}
	if e.Category, err = r.String("category"); err != nil {
		return e, err
	}
	if e.Note, err = r.OptString("note"); err != nil {
		return e, err
	}
	return e, e.Validate()
}
