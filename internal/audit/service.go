package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"stockflow-backend/internal/database"
	"stockflow-backend/internal/models"

	"gorm.io/gorm"
)

const (
	EntityDueRecord     = "due_record"
	EntityPart          = "part"
	EntityStockMovement = "stock_movement"
)

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func WriteLog(opts LogOptions) error {
	// jsonb rejects an empty string, "null" is the empty image
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	entry := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	if err := database.DB.Create(&entry).Error; err != nil {
		return fmt.Errorf("audit log could not be saved: %w", err)
	}
	return nil
}

// UserName resolves the display name stored with each entry.
func UserName(userID uint) string {
	var user models.User
	if err := database.DB.Select("name").First(&user, "id = ?", userID).Error; err != nil {
		return ""
	}
	return user.Name
}

// UndoLog reverses one entry: a create is deleted, an update gets its before
// image back and a delete is recreated from its before image.
func UndoLog(logID uint, userID uint, userName string) error {
	var entry models.AuditLog
	if err := database.DB.First(&entry, "id = ?", logID).Error; err != nil {
		return fmt.Errorf("log not found: %w", err)
	}

	if entry.IsUndone {
		return fmt.Errorf("this change was already undone")
	}

	return database.DB.Transaction(func(tx *gorm.DB) error {
		switch entry.Action {
		case models.AuditActionCreate:
			if err := deleteEntity(tx, entry.EntityType, entry.EntityID); err != nil {
				return fmt.Errorf("entity could not be deleted: %w", err)
			}
		case models.AuditActionUpdate, models.AuditActionDelete:
			if err := restoreEntity(tx, entry.EntityType, entry.BeforeData); err != nil {
				return fmt.Errorf("entity could not be restored: %w", err)
			}
		default:
			return fmt.Errorf("this kind of change cannot be undone")
		}

		now := time.Now()
		entry.IsUndone = true
		entry.UndoneBy = &userID
		entry.UndoneAt = &now
		if err := tx.Save(&entry).Error; err != nil {
			return fmt.Errorf("log could not be updated: %w", err)
		}

		undo := models.AuditLog{
			UserID:      userID,
			UserName:    userName,
			EntityType:  entry.EntityType,
			EntityID:    entry.EntityID,
			Action:      models.AuditActionUndo,
			Description: fmt.Sprintf("Undone: %s", entry.Description),
			BeforeData:  entry.AfterData,
			AfterData:   entry.BeforeData,
			Undone:      true,
		}
		if err := tx.Create(&undo).Error; err != nil {
			return fmt.Errorf("undo log could not be saved: %w", err)
		}
		return nil
	})
}

func deleteEntity(tx *gorm.DB, entityType string, entityID uint) error {
	switch entityType {
	case EntityDueRecord:
		return tx.Delete(&models.DueRecord{}, "id = ?", entityID).Error
	case EntityPart:
		return tx.Delete(&models.Part{}, "id = ?", entityID).Error
	case EntityStockMovement:
		var m models.StockMovement
		if err := tx.First(&m, "id = ?", entityID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&m).Error; err != nil {
			return err
		}
		return checkStock(tx, m.PartID)
	default:
		return fmt.Errorf("unknown entity type: %s", entityType)
	}
}

// restoreEntity writes the before image back under its original id, inserting
// the row again when it is gone.
func restoreEntity(tx *gorm.DB, entityType string, dataJSON string) error {
	switch entityType {
	case EntityDueRecord:
		var r models.DueRecord
		if err := json.Unmarshal([]byte(dataJSON), &r); err != nil {
			return err
		}
		return tx.Save(&r).Error
	case EntityPart:
		var p models.Part
		if err := json.Unmarshal([]byte(dataJSON), &p); err != nil {
			return err
		}
		return tx.Save(&p).Error
	case EntityStockMovement:
		var m models.StockMovement
		if err := json.Unmarshal([]byte(dataJSON), &m); err != nil {
			return err
		}
		m.Part = models.Part{}
		if err := tx.Omit("Part").Save(&m).Error; err != nil {
			return err
		}
		return checkStock(tx, m.PartID)
	default:
		return fmt.Errorf("unknown entity type: %s", entityType)
	}
}

// checkStock refuses an undo that leaves the part below zero.
func checkStock(tx *gorm.DB, partID uint) error {
	onHand, err := models.OnHand(tx, partID)
	if err != nil {
		return err
	}
	if onHand < 0 {
		return fmt.Errorf("stock would go negative (on hand: %.2f)", onHand)
	}
	return nil
}
