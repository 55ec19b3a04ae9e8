package duerecord

import (
	"strings"
	"time"

	"stockflow-backend/internal/models"

	"golang.org/x/text/unicode/norm"
)

// Cell is one spreadsheet cell: its displayed text and, when the workbook
// stored a real date, that date.
type Cell struct {
	Text string
	Time *time.Time
}

type Sheet struct {
	Name string
	Rows [][]Cell
}

// sheet name tokens, checked in this order
var sheetVocabulary = []struct {
	deliveryType models.DeliveryType
	tokens       []string
}{
	{models.DeliveryInternational, []string{"inter", "ต่างประเทศ"}},
	{models.DeliveryDomestic, []string{"domestic", "ในประเทศ"}},
}

// DeliveryTypeForSheet classifies a sheet by its name. ok is false for sheets
// that belong to neither vocabulary.
func DeliveryTypeForSheet(name string) (models.DeliveryType, bool) {
	n := normalizeLabel(name)
	for _, v := range sheetVocabulary {
		for _, tok := range v.tokens {
			if strings.Contains(n, tok) {
				return v.deliveryType, true
			}
		}
	}
	return "", false
}

var headerTokens = []string{"customer", "model", "part", "event", "qty", "due", "po"}

// field aliases, probed in order against the normalized header labels
var (
	aliasCustomer       = []string{"customer", "customer name", "cust", "ลูกค้า"}
	aliasModel          = []string{"model", "model name", "รุ่น"}
	aliasPartNumber     = []string{"part no", "part no.", "part number", "partnumber", "part#", "p/n", "รหัสชิ้นส่วน"}
	aliasPartName       = []string{"part name", "partname", "description", "ชื่อชิ้นส่วน"}
	aliasEvent          = []string{"event", "stage", "อีเวนต์"}
	aliasCustomerPo     = []string{"po", "po no", "po no.", "po number", "customer po", "customer po no", "เลขที่ po"}
	aliasDueDate        = []string{"due date", "due", "duedate", "delivery due", "วันครบกำหนด", "กำหนดส่ง"}
	aliasQuantity       = []string{"qty", "q'ty", "quantity", "order qty", "จำนวน"}
	aliasMyobNumber     = []string{"myob", "myob no", "myob no.", "myob number"}
	aliasCountry        = []string{"country of origin", "origin", "coo", "ประเทศต้นทาง"}
	aliasSampleRequest  = []string{"sample request sheet", "sample request", "srs"}
	aliasRevisionLevel  = []string{"rev level", "rev. level", "revision level"}
	aliasRevisionNumber = []string{"rev no", "rev. no", "rev no.", "revision no", "revision number", "rev"}
	aliasIsDelivered    = []string{"delivered", "is delivered", "delivery status", "status", "สถานะ"}
	aliasDeliveredAt    = []string{"delivered at", "delivered date", "actual delivery", "วันที่ส่ง"}
)

type ParserOptions struct {
	HeaderScanRows int
	HeaderMinScore int
}

type Parser struct {
	opts ParserOptions
}

func NewParser(opts ParserOptions) *Parser {
	if opts.HeaderScanRows <= 0 {
		opts.HeaderScanRows = 40
	}
	if opts.HeaderMinScore <= 0 {
		opts.HeaderMinScore = 4
	}
	return &Parser{opts: opts}
}

// Candidate is a record built from one data row. Row is 1-based, as shown in
// the spreadsheet application.
type Candidate struct {
	Row    int
	Record models.DueRecord
}

type SheetScan struct {
	Sheet        string
	DeliveryType models.DeliveryType
	HeaderRow    int // 1-based
	TotalRows    int // rows after the header, blank ones included
	Candidates   []Candidate
}

// Scan turns a sheet into candidate records. ok is false when the sheet is
// skipped: unknown name or no header row within the scan window.
func (p *Parser) Scan(sh Sheet) (SheetScan, bool) {
	dt, ok := DeliveryTypeForSheet(sh.Name)
	if !ok {
		return SheetScan{}, false
	}

	headerIdx := p.FindHeaderRow(sh.Rows)
	if headerIdx < 0 {
		return SheetScan{}, false
	}

	columns := headerColumns(sh.Rows[headerIdx])
	scan := SheetScan{
		Sheet:        sh.Name,
		DeliveryType: dt,
		HeaderRow:    headerIdx + 1,
	}

	for i := headerIdx + 1; i < len(sh.Rows); i++ {
		scan.TotalRows++
		row := sh.Rows[i]
		if isBlankRow(row) {
			continue
		}
		rec := buildRecord(rowFields(columns, row))
		rec.DeliveryType = string(dt)
		scan.Candidates = append(scan.Candidates, Candidate{Row: i + 1, Record: rec})
	}
	return scan, true
}

// FindHeaderRow returns the index of the first row, among the first
// HeaderScanRows, that contains at least HeaderMinScore header tokens. -1 when
// none does.
func (p *Parser) FindHeaderRow(rows [][]Cell) int {
	limit := min(len(rows), p.opts.HeaderScanRows)
	for i := 0; i < limit; i++ {
		if headerScore(rows[i]) >= p.opts.HeaderMinScore {
			return i
		}
	}
	return -1
}

func headerScore(row []Cell) int {
	labels := make([]string, 0, len(row))
	for _, c := range row {
		if l := normalizeLabel(c.Text); l != "" {
			labels = append(labels, l)
		}
	}

	score := 0
	for _, tok := range headerTokens {
		for _, l := range labels {
			if strings.Contains(l, tok) {
				score++
				break
			}
		}
	}
	return score
}

// normalizeLabel folds full-width forms, collapses whitespace and lower-cases.
func normalizeLabel(s string) string {
	s = norm.NFKC.String(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// headerColumns maps each normalized label to its first column.
func headerColumns(header []Cell) map[string]int {
	cols := make(map[string]int, len(header))
	for i, c := range header {
		l := normalizeLabel(c.Text)
		if l == "" {
			continue
		}
		if _, seen := cols[l]; !seen {
			cols[l] = i
		}
	}
	return cols
}

func rowFields(columns map[string]int, row []Cell) map[string]Cell {
	fields := make(map[string]Cell, len(columns))
	for label, idx := range columns {
		if idx < len(row) {
			fields[label] = row[idx]
		} else {
			fields[label] = Cell{}
		}
	}
	return fields
}

func isBlankRow(row []Cell) bool {
	for _, c := range row {
		if strings.TrimSpace(c.Text) != "" || c.Time != nil {
			return false
		}
	}
	return true
}

// pick returns the cell of the first alias present in the row.
func pick(fields map[string]Cell, aliases []string) (Cell, bool) {
	for _, a := range aliases {
		if c, ok := fields[normalizeLabel(a)]; ok {
			return c, true
		}
	}
	return Cell{}, false
}

func pickText(fields map[string]Cell, aliases []string) string {
	c, _ := pick(fields, aliases)
	return strings.TrimSpace(c.Text)
}

// pickDate formats native date cells as YYYY-MM-DD and passes anything else
// through as text.
func pickDate(fields map[string]Cell, aliases []string) string {
	c, ok := pick(fields, aliases)
	if !ok {
		return ""
	}
	if c.Time != nil {
		return c.Time.Format("2006-01-02")
	}
	return strings.TrimSpace(c.Text)
}

func buildRecord(fields map[string]Cell) models.DueRecord {
	r := models.DueRecord{
		Customer:           pickText(fields, aliasCustomer),
		Model:              pickText(fields, aliasModel),
		PartNumber:         pickText(fields, aliasPartNumber),
		PartName:           pickText(fields, aliasPartName),
		Event:              pickText(fields, aliasEvent),
		CustomerPo:         pickText(fields, aliasCustomerPo),
		DueDate:            pickDate(fields, aliasDueDate),
		Quantity:           ParseQuantityText(pickText(fields, aliasQuantity)),
		MyobNumber:         pickText(fields, aliasMyobNumber),
		CountryOfOrigin:    pickText(fields, aliasCountry),
		SampleRequestSheet: pickText(fields, aliasSampleRequest),
		RevisionLevel:      pickText(fields, aliasRevisionLevel),
		RevisionNumber:     pickText(fields, aliasRevisionNumber),
		IsDelivered:        IsTruthy(pickText(fields, aliasIsDelivered)),
	}

	if c, ok := pick(fields, aliasDeliveredAt); ok {
		if c.Time != nil {
			t := *c.Time
			r.DeliveredAt = &t
		} else if t, ok := ParseTimestamp(c.Text); ok {
			r.DeliveredAt = &t
		}
	}
	return r
}
