// Package pdf renders report documents as A4 PDF files with gopdf.
package pdf

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"

	"fintrack/internal/report"
)

const (
	fontRegular = "GoRegular"
	fontBold    = "GoBold"

	pageWidth    = 595.0
	pageHeight   = 842.0
	marginX      = 40.0
	topMargin    = 40.0
	bottomMargin = 60.0
	rowHeight    = 18.0
	pieRadius    = 60.0
	legendStep   = rowHeight - 4
)

// Table column x offsets for No., Date, Category, Debit, Credit.
var columnX = []float64{marginX, 80, 170, 330, 445}

var palette = [][3]uint8{
	{108, 92, 231},
	{0, 184, 148},
	{253, 203, 110},
	{214, 48, 49},
	{116, 185, 255},
	{162, 155, 254},
	{250, 177, 160},
	{0, 206, 201},
}

// Writer implements report.Writer.
type Writer struct{}

func New() *Writer {
	return &Writer{}
}

func (*Writer) Format() report.Format {
	return report.Format{Name: "pdf", Extension: ".pdf", ContentType: "application/pdf"}
}

func (*Writer) Write(w io.Writer, doc report.Document) error {
	p, err := render(doc)
	if err != nil {
		return err
	}
	if err := p.pdf.Write(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func render(doc report.Document) (*page, error) {
	p := &page{pdf: &gopdf.GoPdf{}}
	p.pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	if err := p.pdf.AddTTFFontData(fontRegular, goregular.TTF); err != nil {
		return nil, fmt.Errorf("load regular font: %w", err)
	}
	if err := p.pdf.AddTTFFontData(fontBold, gobold.TTF); err != nil {
		return nil, fmt.Errorf("load bold font: %w", err)
	}
	p.newPage()

	steps := []func(report.Document){
		p.header,
		p.info,
		p.table,
		p.statistics,
	}
	for _, step := range steps {
		step(doc)
		if p.err != nil {
			return nil, p.err
		}
	}
	return p, nil
}

// page tracks the cursor and the first drawing error.
type page struct {
	pdf   *gopdf.GoPdf
	y     float64
	pages int
	err   error
}

func (p *page) newPage() {
	p.pdf.AddPage()
	p.pages++
	p.y = topMargin
}

func (p *page) font(family string, size float64) {
	if p.err != nil {
		return
	}
	if err := p.pdf.SetFont(family, "", size); err != nil {
		p.err = fmt.Errorf("set font: %w", err)
	}
}

func (p *page) text(x, y float64, s string) {
	if p.err != nil {
		return
	}
	p.pdf.SetX(x)
	p.pdf.SetY(y)
	if err := p.pdf.Cell(nil, printable(s)); err != nil {
		p.err = fmt.Errorf("draw text %q: %w", s, err)
	}
}

// ensure starts a new page when fewer than h points remain and reports
// whether it did.
func (p *page) ensure(h float64) bool {
	if p.y+h <= pageHeight-bottomMargin {
		return false
	}
	p.newPage()
	return true
}

func (p *page) header(doc report.Document) {
	p.pdf.SetFillColor(108, 92, 231)
	p.pdf.RectFromUpperLeftWithStyle(0, 0, pageWidth, 80, "F")
	p.pdf.SetTextColor(255, 255, 255)
	p.font(fontBold, 22)
	p.text(marginX, 30, doc.Title)
	p.pdf.SetTextColor(45, 52, 54)
	p.y = 100
}

func (p *page) info(doc report.Document) {
	p.font(fontRegular, 11)
	for _, row := range doc.Info {
		p.font(fontBold, 11)
		p.text(marginX, p.y, row.Label)
		p.font(fontRegular, 11)
		p.text(150, p.y, ": "+row.Value)
		p.y += rowHeight
	}
	p.y += 10
}

func (p *page) table(doc report.Document) {
	p.tableHeader(doc.Table.Header)
	p.font(fontRegular, 10)
	for i, row := range doc.Table.Rows {
		if p.ensure(rowHeight) {
			p.tableHeader(doc.Table.Header)
			p.font(fontRegular, 10)
		}
		if i%2 == 1 {
			p.pdf.SetFillColor(245, 247, 250)
			p.pdf.RectFromUpperLeftWithStyle(marginX-5, p.y-3, pageWidth-2*marginX+10, rowHeight, "F")
		}
		p.row(row)
	}
	p.ensure(rowHeight * 2)
	p.pdf.SetLineWidth(0.8)
	p.pdf.Line(marginX-5, p.y, pageWidth-marginX+5, p.y)
	p.y += 4
	p.font(fontBold, 10)
	p.row(doc.Table.Totals)
	p.y += 16
}

func (p *page) tableHeader(header []string) {
	p.pdf.SetFillColor(108, 92, 231)
	p.pdf.RectFromUpperLeftWithStyle(marginX-5, p.y-4, pageWidth-2*marginX+10, rowHeight+2, "F")
	p.pdf.SetTextColor(255, 255, 255)
	p.font(fontBold, 10)
	p.row(header)
	p.pdf.SetTextColor(45, 52, 54)
}

func (p *page) row(cells []string) {
	for i, c := range cells {
		if i >= len(columnX) {
			break
		}
		if c == "" {
			continue
		}
		p.text(columnX[i], p.y, c)
	}
	p.y += rowHeight
}

// statistics draws the blocks side by side: titles and pie charts first,
// then the breakdown rows in step, continuing on new pages like the table.
func (p *page) statistics(doc report.Document) {
	blocks := doc.Statistics
	chart := 20 + 2*pieRadius + 14
	p.ensure(26 + chart + legendStep + rowHeight)

	p.font(fontBold, 14)
	p.text(marginX, p.y, "Statistics")
	p.y += 26

	colWidth := (pageWidth - 2*marginX) / float64(max(len(blocks), 1))
	colX := func(i int) float64 { return marginX + float64(i)*colWidth }

	top := p.y
	tallest := 0
	for i, b := range blocks {
		p.chart(b, colX(i), top, colWidth)
		tallest = max(tallest, len(b.Rows))
	}
	p.y = top + chart

	for k := 0; k < tallest; k++ {
		if p.ensure(legendStep) {
			p.font(fontBold, 10)
			for i, b := range blocks {
				if k < len(b.Rows) {
					p.text(colX(i), p.y, b.Title+" (continued)")
				}
			}
			p.y += rowHeight
		}
		p.font(fontRegular, 9)
		for i, b := range blocks {
			if k < len(b.Rows) {
				p.legendRow(b.Rows[k], k, colX(i), colWidth)
			}
		}
		p.y += legendStep
	}

	p.ensure(rowHeight)
	p.font(fontBold, 9)
	for i, b := range blocks {
		if !b.Empty() {
			p.text(colX(i)+12, p.y+2, "Total")
			p.text(colX(i)+colWidth-90, p.y+2, b.Total)
		}
	}
	p.y += rowHeight + 4
}

// chart draws a block title and its pie, or the placeholder when the block
// has no data.
func (p *page) chart(b report.StatBlock, x, y, width float64) {
	p.font(fontBold, 12)
	p.text(x, y, b.Title)
	y += 20

	if b.Empty() {
		p.font(fontRegular, 10)
		p.text(x, y+pieRadius-6, report.NoDataPlaceholder)
		return
	}

	cx, cy := x+width/2-10, y+pieRadius
	start := -math.Pi / 2
	for i, s := range b.Slices {
		c := palette[i%len(palette)]
		p.pdf.SetFillColor(c[0], c[1], c[2])
		end := start + 2*math.Pi*s.Fraction
		if s.Fraction > 0 {
			p.pdf.Polygon(wedge(cx, cy, pieRadius, start, end), "F")
		}
		start = end
	}
}

func (p *page) legendRow(r report.StatRow, i int, x, width float64) {
	c := palette[i%len(palette)]
	p.pdf.SetFillColor(c[0], c[1], c[2])
	p.pdf.RectFromUpperLeftWithStyle(x, p.y+1, 8, 8, "F")
	p.text(x+12, p.y, r.Label)
	p.text(x+width-90, p.y, r.Amount)
}

// wedge approximates a pie slice between angles a0 and a1 with a polygon.
func wedge(cx, cy, r, a0, a1 float64) []gopdf.Point {
	const step = math.Pi / 90
	n := int(math.Ceil((a1-a0)/step)) + 1
	pts := make([]gopdf.Point, 0, n+2)
	full := a1-a0 >= 2*math.Pi-1e-9
	if !full {
		pts = append(pts, gopdf.Point{X: cx, Y: cy})
	}
	for i := 0; i < n; i++ {
		a := math.Min(a0+float64(i)*step, a1)
		pts = append(pts, gopdf.Point{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)})
	}
	return pts
}

var (
	glyphOnce sync.Once
	glyphFont *sfnt.Font
	glyphMu   sync.Mutex
	glyphBuf  sfnt.Buffer
)

// printable replaces runes the embedded Go fonts cannot draw.
func printable(s string) string {
	glyphOnce.Do(func() {
		glyphFont, _ = sfnt.Parse(goregular.TTF)
	})
	if glyphFont == nil {
		return s
	}
	glyphMu.Lock()
	defer glyphMu.Unlock()
	return strings.Map(func(r rune) rune {
		if r < 0x80 {
			return r
		}
		idx, err := glyphFont.GlyphIndex(&glyphBuf, r)
		if err != nil || idx == 0 {
			return '?'
		}
		return r
	}, s)
}
