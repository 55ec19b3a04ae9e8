package models

import "time"

type DeliveryType string

const (
	DeliveryInternational DeliveryType = "international"
	DeliveryDomestic      DeliveryType = "domestic"
)

// DueRecord: a delivery obligation for a part. Rows are identified by DedupeKey,
// which is derived from the identity fields and never supplied by clients.
type DueRecord struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	DedupeKey string `gorm:"type:text;not null;uniqueIndex" json:"dedupeKey"`

	DeliveryType   string `gorm:"size:20;not null;index" json:"deliveryType"`
	MyobNumber     string `gorm:"size:100" json:"myobNumber"`
	Customer       string `gorm:"size:200;not null;index" json:"customer"`
	Model          string `gorm:"size:200;not null" json:"model"`
	PartNumber     string `gorm:"size:100;not null;index" json:"partNumber"`
	PartName       string `gorm:"size:255;not null" json:"partName"`
	RevisionLevel  string `gorm:"size:50" json:"revisionLevel"`
	RevisionNumber string `gorm:"size:50" json:"revisionNumber"`
	Event          string `gorm:"size:100;not null" json:"event"`
	CustomerPo     string `gorm:"size:100;not null;index" json:"customerPo"`
	DueDate        string `gorm:"size:32;not null;index" json:"dueDate"` // normalized text, usually YYYY-MM-DD
	Quantity       int    `gorm:"not null;default:0" json:"quantity"`

	IsDelivered bool       `gorm:"not null;default:false" json:"isDelivered"`
	DeliveredAt *time.Time `json:"deliveredAt"`

	// not part of the identity
	Supplier              string `gorm:"size:200" json:"supplier"`
	CountryOfOrigin       string `gorm:"size:100" json:"countryOfOrigin"`
	SampleRequestSheet    string `gorm:"size:100" json:"sampleRequestSheet"`
	InvoiceNumber         string `gorm:"size:100" json:"invoiceNumber"`
	SupplierInvoiceNumber string `gorm:"size:100" json:"supplierInvoiceNumber"`
	WithdrawalNumber      string `gorm:"size:100" json:"withdrawalNumber"`
	Remark                string `gorm:"size:500" json:"remark"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
