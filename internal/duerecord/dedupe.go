// Package duerecord holds the due-date tracking domain: the dedupe key that
// makes every write an idempotent upsert, the spreadsheet importer that feeds
// it, and the HTTP handlers in front of both.
package duerecord

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"stockflow-backend/internal/models"
)

// KeySeparator joins the key segments. Segment order and separator are stored in
// every existing row, changing either orphans them.
const KeySeparator = "|"

var ErrInvalidRecord = errors.New("invalid due record")

// MissingFieldsError lists the required fields that were empty after
// normalization.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Unwrap() error { return ErrInvalidRecord }

// DedupeKey derives the identity of a record. The ten text identifiers are
// trimmed and lower-cased, the due date is only trimmed and the quantity is
// rendered as a base-10 integer.
func DedupeKey(r *models.DueRecord) string {
	parts := []string{
		keyPart(r.DeliveryType),
		keyPart(r.MyobNumber),
		keyPart(r.Customer),
		keyPart(r.Model),
		keyPart(r.PartNumber),
		keyPart(r.PartName),
		keyPart(r.RevisionLevel),
		keyPart(r.RevisionNumber),
		keyPart(r.Event),
		keyPart(r.CustomerPo),
		strings.TrimSpace(r.DueDate),
		strconv.Itoa(r.Quantity),
	}
	return strings.Join(parts, KeySeparator)
}

func keyPart(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalize trims every text field in place and lower-cases the delivery type.
func Normalize(r *models.DueRecord) {
	r.DeliveryType = strings.ToLower(strings.TrimSpace(r.DeliveryType))
	for _, p := range []*string{
		&r.MyobNumber, &r.Customer, &r.Model, &r.PartNumber, &r.PartName,
		&r.RevisionLevel, &r.RevisionNumber, &r.Event, &r.CustomerPo, &r.DueDate,
		&r.Supplier, &r.CountryOfOrigin, &r.SampleRequestSheet, &r.InvoiceNumber,
		&r.SupplierInvoiceNumber, &r.WithdrawalNumber, &r.Remark,
	} {
		*p = strings.TrimSpace(*p)
	}
}

// Validate reports the required fields that are empty. Quantity and the
// descriptive fields may be zero.
func Validate(r *models.DueRecord) error {
	required := []struct {
		name  string
		value string
	}{
		{"deliveryType", r.DeliveryType},
		{"customer", r.Customer},
		{"model", r.Model},
		{"partNumber", r.PartNumber},
		{"partName", r.PartName},
		{"event", r.Event},
		{"customerPo", r.CustomerPo},
		{"dueDate", r.DueDate},
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

// Prepare runs Normalize and Validate and stamps the dedupe key.
func Prepare(r *models.DueRecord) error {
	Normalize(r)
	if err := Validate(r); err != nil {
		return err
	}
	r.DedupeKey = DedupeKey(r)
	return nil
}
