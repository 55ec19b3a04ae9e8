package duerecord

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"stockflow-backend/internal/models"
)

// Text accepts any JSON scalar and keeps its textual form, so numeric
// identifiers such as a MYOB number sent as 1042 still land as "1042".
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		return fmt.Errorf("expected a scalar, got %s", b)
	}
	*t = Text(b)
	return nil
}

// Quantity never fails to decode: numbers are truncated, numeric strings are
// parsed and everything else becomes 0.
type Quantity int

func (q *Quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		*q = 0
		return nil
	}
	switch x := v.(type) {
	case float64:
		*q = Quantity(toInt(x))
	case string:
		*q = Quantity(ParseNumber(x))
	case bool:
		if x {
			*q = 1
		} else {
			*q = 0
		}
	default:
		*q = 0
	}
	return nil
}

// Flag decodes booleans, numbers and the delivered tokens used in sheets.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(bytes.TrimSpace(b), &v); err != nil {
		*f = false
		return nil
	}
	switch x := v.(type) {
	case bool:
		*f = Flag(x)
	case float64:
		*f = x != 0
	case string:
		*f = Flag(IsTruthy(x))
	default:
		*f = false
	}
	return nil
}

// RecordInput is the JSON shape accepted by create, sync and bulk.
type RecordInput struct {
	DeliveryType   Text     `json:"deliveryType"`
	MyobNumber     Text     `json:"myobNumber"`
	Customer       Text     `json:"customer"`
	Model          Text     `json:"model"`
	PartNumber     Text     `json:"partNumber"`
	PartName       Text     `json:"partName"`
	RevisionLevel  Text     `json:"revisionLevel"`
	RevisionNumber Text     `json:"revisionNumber"`
	Event          Text     `json:"event"`
	CustomerPo     Text     `json:"customerPo"`
	DueDate        Text     `json:"dueDate"`
	Quantity       Quantity `json:"quantity"`

	IsDelivered Flag `json:"isDelivered"`
	DeliveredAt Text `json:"deliveredAt"`

	Supplier              Text `json:"supplier"`
	CountryOfOrigin       Text `json:"countryOfOrigin"`
	SampleRequestSheet    Text `json:"sampleRequestSheet"`
	InvoiceNumber         Text `json:"invoiceNumber"`
	SupplierInvoiceNumber Text `json:"supplierInvoiceNumber"`
	WithdrawalNumber      Text `json:"withdrawalNumber"`
	Remark                Text `json:"remark"`

	// honored only by the create route
	CreatedAt Text `json:"createdAt"`
}

// Record converts the input into a model. The result is not normalized yet.
func (in RecordInput) Record() models.DueRecord {
	r := models.DueRecord{
		DeliveryType:          string(in.DeliveryType),
		MyobNumber:            string(in.MyobNumber),
		Customer:              string(in.Customer),
		Model:                 string(in.Model),
		PartNumber:            string(in.PartNumber),
		PartName:              string(in.PartName),
		RevisionLevel:         string(in.RevisionLevel),
		RevisionNumber:        string(in.RevisionNumber),
		Event:                 string(in.Event),
		CustomerPo:            string(in.CustomerPo),
		DueDate:               string(in.DueDate),
		Quantity:              int(in.Quantity),
		IsDelivered:           bool(in.IsDelivered),
		Supplier:              string(in.Supplier),
		CountryOfOrigin:       string(in.CountryOfOrigin),
		SampleRequestSheet:    string(in.SampleRequestSheet),
		InvoiceNumber:         string(in.InvoiceNumber),
		SupplierInvoiceNumber: string(in.SupplierInvoiceNumber),
		WithdrawalNumber:      string(in.WithdrawalNumber),
		Remark:                string(in.Remark),
	}
	if t, ok := ParseTimestamp(string(in.DeliveredAt)); ok {
		r.DeliveredAt = &t
	}
	return r
}

// DecodeRecords accepts either a bare array or {"records": [...]}.
func DecodeRecords(body []byte) ([]RecordInput, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	switch body[0] {
	case '[':
		var list []RecordInput
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		return list, nil
	case '{':
		var wrapped struct {
			Records *[]RecordInput `json:"records"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		if wrapped.Records == nil {
			return nil, fmt.Errorf("'records' array is required")
		}
		return *wrapped.Records, nil
	default:
		return nil, fmt.Errorf("body must be a JSON array or object")
	}
}

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// ParseQuantityText strips everything but digits, dots and minus signs before
// parsing, so "1,250 pcs" reads as 1250. Failures give 0.
func ParseQuantityText(s string) int {
	return ParseNumber(nonNumeric.ReplaceAllString(s, ""))
}

// ParseNumber parses a plain decimal string and truncates it to an int.
func ParseNumber(s string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return toInt(f)
}

func toInt(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

var truthyTokens = map[string]bool{
	"true":    true,
	"yes":     true,
	"y":       true,
	"1":       true,
	"ส่งแล้ว": true,
}

func IsTruthy(s string) bool {
	return truthyTokens[strings.ToLower(strings.TrimSpace(s))]
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
}

// ParseTimestamp tries the layouts the UI and the sheets produce.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
