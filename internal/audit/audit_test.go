package audit

import (
	"testing"

	"stockflow-backend/internal/database"
	"stockflow-backend/internal/models"

	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) {
	t.Helper()
	db, err := database.OpenMemory("audit_" + t.Name())
	require.NoError(t, err)
	database.DB = db
}

func lastLog(t *testing.T) models.AuditLog {
	t.Helper()
	var l models.AuditLog
	require.NoError(t, database.DB.Order("id DESC").First(&l).Error)
	return l
}

func TestUndoCreate_DeletesEntity(t *testing.T) {
	setupDB(t)

	p := models.Part{PartNumber: "PN-1", Name: "Bracket", Unit: "pcs"}
	require.NoError(t, database.DB.Create(&p).Error)
	require.NoError(t, WriteLog(LogOptions{
		UserID: 1, UserName: "Tester", EntityType: EntityPart, EntityID: p.ID,
		Action: models.AuditActionCreate, Description: "Part created", After: p,
	}))
	entry := lastLog(t)
	require.Equal(t, "null", entry.BeforeData)

	require.NoError(t, UndoLog(entry.ID, 1, "Tester"))

	var count int64
	database.DB.Model(&models.Part{}).Count(&count)
	require.Zero(t, count)

	undo := lastLog(t)
	require.Equal(t, models.AuditActionUndo, undo.Action)
	require.True(t, undo.Undone)

	var original models.AuditLog
	require.NoError(t, database.DB.First(&original, entry.ID).Error)
	require.True(t, original.IsUndone)
	require.NotNil(t, original.UndoneAt)

	require.Error(t, UndoLog(entry.ID, 1, "Tester"))
}

func TestUndoUpdateAndDelete_RestoreBeforeImage(t *testing.T) {
	setupDB(t)

	r := models.DueRecord{
		DedupeKey: "k1", DeliveryType: "domestic", Customer: "Acme", Model: "X1",
		PartNumber: "PN-1", PartName: "Bracket", Event: "MP", CustomerPo: "PO-1",
		DueDate: "2024-03-15", Quantity: 5, Remark: "original",
	}
	require.NoError(t, database.DB.Create(&r).Error)
	before := r

	r.Remark = "edited"
	require.NoError(t, database.DB.Save(&r).Error)
	require.NoError(t, WriteLog(LogOptions{
		UserID: 1, EntityType: EntityDueRecord, EntityID: r.ID,
		Action: models.AuditActionUpdate, Before: before, After: r,
	}))
	require.NoError(t, UndoLog(lastLog(t).ID, 1, "Tester"))

	var got models.DueRecord
	require.NoError(t, database.DB.First(&got, r.ID).Error)
	require.Equal(t, "original", got.Remark)

	require.NoError(t, database.DB.Delete(&models.DueRecord{}, r.ID).Error)
	require.NoError(t, WriteLog(LogOptions{
		UserID: 1, EntityType: EntityDueRecord, EntityID: r.ID,
		Action: models.AuditActionDelete, Before: got,
	}))
	require.NoError(t, UndoLog(lastLog(t).ID, 1, "Tester"))

	var restored models.DueRecord
	require.NoError(t, database.DB.First(&restored, r.ID).Error)
	require.Equal(t, "k1", restored.DedupeKey)
	require.Equal(t, "original", restored.Remark)
}

func TestUndoDeletedMovement(t *testing.T) {
	setupDB(t)

	p := models.Part{PartNumber: "PN-1", Name: "Bracket", Unit: "pcs"}
	require.NoError(t, database.DB.Create(&p).Error)
	m := models.StockMovement{PartID: p.ID, Type: models.MovementReceive, Quantity: 4}
	require.NoError(t, database.DB.Omit("Part").Create(&m).Error)
	m.Part = p

	require.NoError(t, database.DB.Delete(&models.StockMovement{}, m.ID).Error)
	require.NoError(t, WriteLog(LogOptions{
		UserID: 1, EntityType: EntityStockMovement, EntityID: m.ID,
		Action: models.AuditActionDelete, Before: m,
	}))
	require.NoError(t, UndoLog(lastLog(t).ID, 1, "Tester"))

	var restored models.StockMovement
	require.NoError(t, database.DB.First(&restored, m.ID).Error)
	require.InDelta(t, 4.0, restored.Quantity, 0.0001)
}

func TestUndoCreatedReceipt_RefusesNegativeStock(t *testing.T) {
	setupDB(t)

	p := models.Part{PartNumber: "PN-1", Name: "Bracket", Unit: "pcs"}
	require.NoError(t, database.DB.Create(&p).Error)
	receipt := models.StockMovement{PartID: p.ID, Type: models.MovementReceive, Quantity: 10}
	require.NoError(t, database.DB.Omit("Part").Create(&receipt).Error)
	require.NoError(t, WriteLog(LogOptions{
		UserID: 1, EntityType: EntityStockMovement, EntityID: receipt.ID,
		Action: models.AuditActionCreate, After: receipt,
	}))
	created := lastLog(t)

	issue := models.StockMovement{PartID: p.ID, Type: models.MovementIssue, Quantity: 6}
	require.NoError(t, database.DB.Omit("Part").Create(&issue).Error)

	require.Error(t, UndoLog(created.ID, 1, "Tester"))

	var count int64
	database.DB.Model(&models.StockMovement{}).Where("id = ?", receipt.ID).Count(&count)
	require.Equal(t, int64(1), count)
	var entry models.AuditLog
	require.NoError(t, database.DB.First(&entry, created.ID).Error)
	require.False(t, entry.IsUndone)

	onHand, err := models.OnHand(database.DB, p.ID)
	require.NoError(t, err)
	require.InDelta(t, 4.0, onHand, 0.0001)

	require.NoError(t, database.DB.Delete(&models.StockMovement{}, issue.ID).Error)
	require.NoError(t, UndoLog(created.ID, 1, "Tester"))
	database.DB.Model(&models.StockMovement{}).Where("id = ?", receipt.ID).Count(&count)
	require.Zero(t, count)
}

func TestUndoDeletedIssue_RefusesNegativeStock(t *testing.T) {
	setupDB(t)

	p := models.Part{PartNumber: "PN-1", Name: "Bracket", Unit: "pcs"}
	require.NoError(t, database.DB.Create(&p).Error)
	issue := models.StockMovement{ID: 99, PartID: p.ID, Type: models.MovementIssue, Quantity: 3}
	require.NoError(t, WriteLog(LogOptions{
		UserID: 1, EntityType: EntityStockMovement, EntityID: issue.ID,
		Action: models.AuditActionDelete, Before: issue,
	}))

	require.Error(t, UndoLog(lastLog(t).ID, 1, "Tester"))

	var count int64
	database.DB.Model(&models.StockMovement{}).Count(&count)
	require.Zero(t, count)
}

func TestUserName(t *testing.T) {
	setupDB(t)
	u := models.User{Name: "Ayşe", Email: "a@example.com", PasswordHash: "x", Role: models.RoleStaff}
	require.NoError(t, database.DB.Create(&u).Error)

	require.Equal(t, "Ayşe", UserName(u.ID))
	require.Empty(t, UserName(9999))
}
