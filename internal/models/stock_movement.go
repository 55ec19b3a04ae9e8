package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type MovementType string

const (
	MovementReceive MovementType = "receive"
	MovementIssue   MovementType = "issue"
	MovementNG      MovementType = "ng" // rejected / no-good parts taken out of stock
)

// StockMovement: one receiving, issuing or NG entry. On-hand stock is the sum of
// receipts minus issues and NG.
type StockMovement struct {
	ID        uint `gorm:"primaryKey"`
	PartID    uint `gorm:"index;not null"`
	Part      Part
	Type      MovementType `gorm:"size:10;index;not null"`
	Date      time.Time    `gorm:"index;not null"`
	Quantity  float64      `gorm:"not null"`
	Reference string       `gorm:"size:100"` // PO, invoice or withdrawal number
	Note      string       `gorm:"size:500"`
	UserID    uint         `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SignedQuantitySQL is a movement's effect on stock as an SQL expression.
const SignedQuantitySQL = `CASE WHEN stock_movements.type = 'receive' THEN stock_movements.quantity
	WHEN stock_movements.type IN ('issue', 'ng') THEN -stock_movements.quantity ELSE 0 END`

// OnHand returns receipts minus issues and NG for one part.
func OnHand(db *gorm.DB, partID uint) (float64, error) {
	var total float64
	err := db.Model(&StockMovement{}).
		Select("COALESCE(SUM(" + SignedQuantitySQL + "), 0)").
		Where("part_id = ?", partID).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("on-hand for part %d: %w", partID, err)
	}
	return total, nil
}
