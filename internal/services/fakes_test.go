package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/report"

	"github.com/shopspring/decimal"
)

type fakeSource struct {
	order      []string
	users      map[string]core.User
	ledgers    map[string]core.Ledger
	entries    map[string][]core.Entry
	listErr    error
	ledgerErrs map[string]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		users:      map[string]core.User{},
		ledgers:    map[string]core.Ledger{},
		entries:    map[string][]core.Entry{},
		ledgerErrs: map[string]error{},
	}
}

// addUser registers an opted-in user with one ledger and n entries.
func (f *fakeSource) addUser(id string, n int) {
	f.order = append(f.order, id)
	f.users[id] = core.User{
		ID: id, Email: id + "@example.com", Username: id,
		AllowReport: true, CurrentLedger: 1, Locale: "en-us",
	}
	f.ledgers[id] = core.Ledger{ID: 1, OwnerID: id, Name: "Main", Currency: "USD"}
	for i := 0; i < n; i++ {
		f.entries[id] = append(f.entries[id], core.Entry{
			ID: int64(i + 1), OwnerID: id, LedgerID: 1,
			Date:       core.NewDate(2024, 3, i%28+1),
			Amount:     decimal.NewFromInt(int64(10 * (i + 1))),
			IsPositive: i%2 == 0,
			Category:   "cat",
		})
	}
}

func (f *fakeSource) GetUser(_ context.Context, id string) (core.User, error) {
	u, ok := f.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (f *fakeSource) GetAllowReportUsers(context.Context) ([]core.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]core.User, 0, len(f.order))
	for _, id := range f.order {
		if u := f.users[id]; u.AllowReport {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeSource) GetLedger(_ context.Context, ownerID string, ledgerID int64) (core.Ledger, error) {
	if err := f.ledgerErrs[ownerID]; err != nil {
		return core.Ledger{}, err
	}
	l, ok := f.ledgers[ownerID]
	if !ok || l.ID != ledgerID {
		return core.Ledger{}, core.ErrForbidden
	}
	return l, nil
}

func (f *fakeSource) GetPeriodEntries(_ context.Context, ownerID string, _ int64, _ core.Period) ([]core.Entry, error) {
	return append([]core.Entry{}, f.entries[ownerID]...), nil
}

// fakeWriter writes a text rendering and fails for usernames in failFor.
type fakeWriter struct {
	failFor  string
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (w *fakeWriter) Format() report.Format {
	return report.Format{Name: "text", Extension: ".txt", ContentType: "text/plain"}
}

func (w *fakeWriter) Write(out io.Writer, doc report.Document) error {
	n := w.inFlight.Add(1)
	defer w.inFlight.Add(-1)
	for {
		m := w.maxSeen.Load()
		if n <= m || w.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(w.delay)
	for _, row := range doc.Info {
		if w.failFor != "" && row.Value == w.failFor {
			return errors.New("layout exploded")
		}
	}
	_, err := fmt.Fprintf(out, "%s\n%d rows\n", doc.Title, len(doc.Table.Rows))
	return err
}

type sentMail struct {
	Subject, To, Path, Name string
	// OnDisk reports whether the attachment existed at send time.
	OnDisk bool
}

type fakeMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	failFor string
}

func (m *fakeMailer) Send(_ context.Context, subject, _, to, path, name string) error {
	if m.failFor != "" && strings.HasPrefix(to, m.failFor+"@") {
		return fmt.Errorf("%w: mailbox unavailable", core.ErrDeliveryFailed)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := os.Stat(path)
	m.sent = append(m.sent, sentMail{subject, to, path, name, err == nil})
	return nil
}

func newRenderer(t *testing.T, w report.Writer) *report.Renderer {
	t.Helper()
	return newRendererIn(t, t.TempDir(), w)
}

func newRendererIn(t *testing.T, dir string, w report.Writer) *report.Renderer {
	t.Helper()
	storage := report.NewStorage(dir, report.DefaultRotationThreshold, report.WithStorageLogger(log.Discard()))
	return report.NewRenderer(storage, w,
		report.WithClock(func() time.Time { return time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC) }),
		report.WithLogger(log.Discard()))
}
