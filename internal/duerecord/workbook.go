package duerecord

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"stockflow-backend/internal/models"

	"github.com/xuri/excelize/v2"
)

// ReadWorkbook loads every sheet of an .xlsx/.xlsm stream as a grid. A stream
// excelize cannot open fails the whole read.
func ReadWorkbook(r io.Reader) ([]Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	use1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		use1904 = *props.Date1904
	}
	styles := &dateStyles{f: f, known: map[int]bool{}}

	sheets := make([]Sheet, 0, len(f.GetSheetList()))
	for _, name := range f.GetSheetList() {
		shown, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		isDate := func(row, col int) bool { return styles.isDate(name, row, col) }
		sheets = append(sheets, Sheet{Name: name, Rows: toGrid(shown, raw, use1904, isDate)})
	}
	return sheets, nil
}

// toGrid pairs the displayed text with the raw value. isDate takes 1-based
// row and column numbers.
func toGrid(shown, raw [][]string, use1904 bool, isDate func(row, col int) bool) [][]Cell {
	grid := make([][]Cell, len(shown))
	for i, row := range shown {
		cells := make([]Cell, len(row))
		for j, text := range row {
			cells[j] = Cell{Text: text}
			if strings.TrimSpace(text) == "" || i >= len(raw) || j >= len(raw[i]) {
				continue
			}
			if isDate(i+1, j+1) {
				cells[j].Time = nativeDate(raw[i][j], use1904)
			}
		}
		grid[i] = cells
	}
	return grid
}

// nativeDate converts the raw serial number of a date-formatted cell.
func nativeDate(raw string, use1904 bool) *time.Time {
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || serial <= 0 {
		return nil
	}
	t, err := excelize.ExcelDateToTime(serial, use1904)
	if err != nil {
		return nil
	}
	return &t
}

// dateStyles answers whether a cell's number format is a date format, cached
// per style id.
type dateStyles struct {
	f     *excelize.File
	known map[int]bool
}

func (d *dateStyles) isDate(sheet string, row, col int) bool {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	id, err := d.f.GetCellStyle(sheet, cell)
	if err != nil || id == 0 {
		return false
	}
	if v, ok := d.known[id]; ok {
		return v
	}
	v := false
	if st, err := d.f.GetStyle(id); err == nil {
		v = isDateStyle(st)
	}
	d.known[id] = v
	return v
}

func isDateStyle(st *excelize.Style) bool {
	if st.CustomNumFmt != nil {
		return isDateFormatCode(*st.CustomNumFmt)
	}
	switch n := st.NumFmt; {
	case n >= 14 && n <= 17, n == 22: // 18-21 and 45-47 are times of day
		return true
	case n >= 27 && n <= 36, n >= 50 && n <= 58: // East Asian date formats
		return true
	}
	return false
}

// isDateFormatCode looks for y, d or m tokens in the first section of a
// number format, ignoring quoted literals, [..] blocks and escaped characters.
// m alone counts only when no hour or second token is present, so mm:ss stays
// a duration.
func isDateFormatCode(code string) bool {
	if i := strings.IndexByte(code, ';'); i >= 0 {
		code = code[:i]
	}
	var y, m, d, h, s bool
	inQuote, inBracket, skip := false, false, false
	for _, c := range code {
		switch {
		case skip:
			skip = false
		case inQuote:
			inQuote = c != '"'
		case inBracket:
			inBracket = c != ']'
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\', c == '_', c == '*':
			skip = true
		default:
			switch unicode.ToLower(c) {
			case 'y':
				y = true
			case 'm':
				m = true
			case 'd':
				d = true
			case 'h':
				h = true
			case 's':
				s = true
			}
		}
	}
	return y || d || (m && !h && !s)
}

// workbookHeaders are written by the template and the export. The import
// recognizes every one of them.
var workbookHeaders = []string{
	"MYOB No", "Customer", "Model", "Part No", "Part Name", "Rev Level", "Rev No",
	"Event", "PO", "Qty", "Due Date", "Country of Origin", "Sample Request Sheet",
	"Delivered", "Delivered At",
}

var workbookSheets = []struct {
	name         string
	deliveryType models.DeliveryType
}{
	{"International", models.DeliveryInternational},
	{"Domestic", models.DeliveryDomestic},
}

// BuildTemplate renders an empty import workbook with one sheet per delivery
// type and the canonical headers.
func BuildTemplate() (*bytes.Buffer, error) {
	return ExportWorkbook(nil)
}

// ExportWorkbook writes records into the import layout, one sheet per delivery
// type, so an exported file can be edited and imported again.
func ExportWorkbook(records []models.DueRecord) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("workbook style: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return nil, fmt.Errorf("workbook style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", workbookSheets[0].name); err != nil {
		return nil, fmt.Errorf("workbook sheet: %w", err)
	}
	for _, ws := range workbookSheets[1:] {
		if _, err := f.NewSheet(ws.name); err != nil {
			return nil, fmt.Errorf("workbook sheet: %w", err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(workbookHeaders))
	for _, ws := range workbookSheets {
		if err := f.SetSheetRow(ws.name, "A1", &workbookHeaders); err != nil {
			return nil, fmt.Errorf("workbook header: %w", err)
		}
		if err := f.SetCellStyle(ws.name, "A1", lastCol+"1", style); err != nil {
			return nil, fmt.Errorf("workbook header style: %w", err)
		}
		_ = f.SetColWidth(ws.name, "A", lastCol, 16)

		row := 2
		for _, r := range records {
			if r.DeliveryType != string(ws.deliveryType) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(ws.name, cell, exportRow(r)); err != nil {
				return nil, fmt.Errorf("workbook row %d: %w", row, err)
			}
			if r.DeliveredAt != nil {
				at, _ := excelize.CoordinatesToCellName(len(workbookHeaders), row)
				_ = f.SetCellStyle(ws.name, at, at, dateStyle)
			}
			row++
		}
	}

	return f.WriteToBuffer()
}

func exportRow(r models.DueRecord) *[]any {
	delivered := ""
	if r.IsDelivered {
		delivered = "yes"
	}
	var deliveredAt any
	if r.DeliveredAt != nil {
		deliveredAt = *r.DeliveredAt
	}
	return &[]any{
		r.MyobNumber, r.Customer, r.Model, r.PartNumber, r.PartName, r.RevisionLevel, r.RevisionNumber,
		r.Event, r.CustomerPo, r.Quantity, r.DueDate, r.CountryOfOrigin, r.SampleRequestSheet,
		delivered, deliveredAt,
	}
}
