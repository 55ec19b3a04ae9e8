package models

import "time"

type Part struct {
	ID         uint   `gorm:"primaryKey"`
	PartNumber string `gorm:"size:100;not null;uniqueIndex"`
	Name       string `gorm:"size:255;not null"`
	Model      string `gorm:"size:200"`
	Unit       string `gorm:"size:20;not null"` // pcs, set, box
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
