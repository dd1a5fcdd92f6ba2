// Package xlsx renders report documents as Excel workbooks.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"fintrack/internal/report"
)

const (
	sheetReport     = "Report"
	sheetStatistics = "Statistics"
)

// Writer implements report.Writer.
type Writer struct{}

func New() *Writer {
	return &Writer{}
}

func (*Writer) Format() report.Format {
	return report.Format{
		Name:        "xlsx",
		Extension:   ".xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
}

func (*Writer) Write(w io.Writer, doc report.Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetReport); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetStatistics); err != nil {
		return fmt.Errorf("add statistics sheet: %w", err)
	}
	st, err := newStyles(f)
	if err != nil {
		return err
	}
	if err := writeReport(f, st, doc); err != nil {
		return err
	}
	if err := writeStatistics(f, st, doc); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type styles struct {
	title, header, bold int
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	st.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#6C5CE7"}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "center"},
	})
	if err != nil {
		return st, fmt.Errorf("title style: %w", err)
	}
	st.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#6C5CE7"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#2D3436", Style: 1},
		},
	})
	if err != nil {
		return st, fmt.Errorf("header style: %w", err)
	}
	st.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return st, fmt.Errorf("bold style: %w", err)
	}
	return st, nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	for i, v := range values {
		if err := f.SetCellValue(sheet, cell(i+1, row), v); err != nil {
			return err
		}
	}
	return nil
}

func writeReport(f *excelize.File, st styles, doc report.Document) error {
	s := sheetReport
	if err := f.MergeCell(s, "A1", "E1"); err != nil {
		return err
	}
	if err := f.SetCellValue(s, "A1", doc.Title); err != nil {
		return err
	}
	if err := f.SetCellStyle(s, "A1", "E1", st.title); err != nil {
		return err
	}
	_ = f.SetRowHeight(s, 1, 28)

	row := 3
	for _, info := range doc.Info {
		if err := setRow(f, s, row, []string{info.Label, info.Value}); err != nil {
			return err
		}
		_ = f.SetCellStyle(s, cell(1, row), cell(1, row), st.bold)
		row++
	}

	row++
	if err := setRow(f, s, row, doc.Table.Header); err != nil {
		return err
	}
	_ = f.SetCellStyle(s, cell(1, row), cell(len(doc.Table.Header), row), st.header)
	row++
	for _, r := range doc.Table.Rows {
		if err := setRow(f, s, row, r); err != nil {
			return err
		}
		row++
	}
	if err := setRow(f, s, row, doc.Table.Totals); err != nil {
		return err
	}
	_ = f.SetCellStyle(s, cell(1, row), cell(len(doc.Table.Totals), row), st.bold)

	_ = f.SetColWidth(s, "A", "A", 14)
	_ = f.SetColWidth(s, "B", "B", 36)
	_ = f.SetColWidth(s, "C", "C", 20)
	_ = f.SetColWidth(s, "D", "E", 16)
	return nil
}

// writeStatistics lays the blocks out side by side, three columns each
// (category, share, amount), with a pie chart under each non-empty block.
func writeStatistics(f *excelize.File, st styles, doc report.Document) error {
	s := sheetStatistics
	for i, b := range doc.Statistics {
		col := 1 + i*4
		if err := f.SetCellValue(s, cell(col, 1), b.Title); err != nil {
			return err
		}
		_ = f.SetCellStyle(s, cell(col, 1), cell(col+2, 1), st.header)

		if b.Empty() {
			if err := f.SetCellValue(s, cell(col, 2), report.NoDataPlaceholder); err != nil {
				return err
			}
			continue
		}
		for j, r := range b.Rows {
			row := 2 + j
			if err := f.SetCellValue(s, cell(col, row), b.Slices[j].Label); err != nil {
				return err
			}
			if err := f.SetCellValue(s, cell(col+1, row), b.Slices[j].Fraction); err != nil {
				return err
			}
			if err := f.SetCellValue(s, cell(col+2, row), r.Amount); err != nil {
				return err
			}
		}
		last := 1 + len(b.Rows)
		totalRow := last + 1
		_ = f.SetCellValue(s, cell(col, totalRow), "Total")
		_ = f.SetCellValue(s, cell(col+2, totalRow), b.Total)
		_ = f.SetCellStyle(s, cell(col, totalRow), cell(col+2, totalRow), st.bold)

		catCol, _ := excelize.ColumnNumberToName(col)
		valCol, _ := excelize.ColumnNumberToName(col + 1)
		err := f.AddChart(s, cell(col, totalRow+2), &excelize.Chart{
			Type: excelize.Pie,
			Series: []excelize.ChartSeries{{
				Name:       fmt.Sprintf("%s!$%s$1", s, catCol),
				Categories: fmt.Sprintf("%s!$%s$2:$%s$%d", s, catCol, catCol, last),
				Values:     fmt.Sprintf("%s!$%s$2:$%s$%d", s, valCol, valCol, last),
			}},
			Title: []excelize.RichTextRun{{Text: b.Title}},
		})
		if err != nil {
			return fmt.Errorf("add %s chart: %w", b.Title, err)
		}
	}
	return nil
}
