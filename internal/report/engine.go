package report

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"golang.org/x/text/language"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Archiver receives a copy of every written document.
type Archiver interface {
	Upload(ctx context.Context, path, objectName string) error
}

// Renderer holds the collaborators shared by every Engine: storage, the
// document writer and an optional archive.
type Renderer struct {
	storage  *Storage
	writer   Writer
	archiver Archiver
	now      func() time.Time
	logger   *log.Logger
}

type RendererOption func(*Renderer)

func WithArchiver(a Archiver) RendererOption {
	return func(r *Renderer) { r.archiver = a }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) RendererOption {
	return func(r *Renderer) { r.now = now }
}

func WithLogger(l *log.Logger) RendererOption {
	return func(r *Renderer) { r.logger = l }
}

func NewRenderer(storage *Storage, writer Writer, opts ...RendererOption) *Renderer {
	r := &Renderer{storage: storage, writer: writer, now: time.Now, logger: log.Default()}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.WithComponent(log.ComponentReport)
	return r
}

// Format returns the writer's encoding.
func (r *Renderer) Format() Format {
	return r.writer.Format()
}

// Storage returns the managed storage.
func (r *Renderer) Storage() *Storage {
	return r.storage
}

// ForRun returns a renderer that writes into the run directory name.
func (r *Renderer) ForRun(name string) *Renderer {
	c := *r
	c.storage = r.storage.Run(name)
	return &c
}

// Release unpins a generated document so rotation may remove it.
func (r *Renderer) Release(doc core.ReportDocument) {
	r.storage.Release(doc.Path)
}

// NewEngine returns an unconfigured engine.
func (r *Renderer) NewEngine() *Engine {
	return &Engine{renderer: r, locale: language.AmericanEnglish}
}

// Engine carries the per-run configuration. Configure it with the Set
// methods before calling Generate; once configured, Generate is safe for
// concurrent use.
type Engine struct {
	renderer *Renderer
	period   core.Period
	currency string
	locale   language.Tag
	rotate   bool
}

func (e *Engine) SetPeriod(p core.Period) *Engine {
	e.period = p
	return e
}

// SetCurrency overrides the ledger's currency.
func (e *Engine) SetCurrency(code string) *Engine {
	e.currency = code
	return e
}

func (e *Engine) SetLocale(tag language.Tag) *Engine {
	e.locale = tag
	return e
}

// SetRotation makes Generate rotate the storage before writing.
func (e *Engine) SetRotation(on bool) *Engine {
	e.rotate = on
	return e
}

// Generate renders the report and writes it to storage. The document stays
// pinned until the caller passes it to Renderer.Release.
func (e *Engine) Generate(ctx context.Context, user core.User, ledger core.Ledger, entries []core.Entry) (core.ReportDocument, error) {
	if e.period.IsZero() {
		return core.ReportDocument{}, core.ErrPeriodNotDefined
	}
	if err := e.period.Validate(); err != nil {
		return core.ReportDocument{}, fmt.Errorf("%w: %v", core.ErrPeriodNotDefined, err)
	}
	code := e.currency
	if code == "" {
		code = ledger.Currency
	}
	f, err := core.NewFormatter(e.locale, code)
	if err != nil {
		return core.ReportDocument{}, fmt.Errorf("%w: %v", core.ErrRenderFailed, err)
	}

	r := e.renderer
	at := r.now()
	doc, err := Build(Input{
		User:        user,
		Ledger:      ledger,
		Entries:     entries,
		Period:      e.period,
		Formatter:   f,
		GeneratedAt: at,
	})
	if err != nil {
		return core.ReportDocument{}, err
	}

	if e.rotate {
		if err := r.storage.Rotate(ctx); err != nil {
			return core.ReportDocument{}, err
		}
	}

	format := r.writer.Format()
	path, err := r.storage.Write(ctx, user.ID, at, format.Extension, func(w io.Writer) error {
		if err := r.writer.Write(w, doc); err != nil {
			return fmt.Errorf("%w: %v", core.ErrRenderFailed, err)
		}
		return nil
	})
	if err != nil {
		return core.ReportDocument{}, err
	}

	out := core.ReportDocument{
		Path:        path,
		Filename:    filepath.Base(path),
		ContentType: format.ContentType,
		GeneratedAt: at,
	}
	if r.archiver != nil {
		object := fmt.Sprintf("reports/%s/%s", user.ID, out.Filename)
		if err := r.archiver.Upload(ctx, path, object); err != nil {
			r.logger.WarnContext(ctx, "Archive upload failed",
				log.FieldOperation, log.OpUpload,
				log.FieldUserID, user.ID,
				log.FieldError, err)
		}
	}
	return out, nil
}
