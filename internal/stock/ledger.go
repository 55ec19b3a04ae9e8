// Package stock keeps the parts master and the receive / issue / NG ledger
// that on-hand quantities are derived from.
package stock

import (
	"log"
	"time"

	"stockflow-backend/internal/audit"
	"stockflow-backend/internal/auth"
	"stockflow-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

func parseDay(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// logChange writes an audit entry for the current user. Failures are logged
// and never fail the request.
func logChange(c *fiber.Ctx, entityType string, entityID uint, action models.AuditAction, description string, before, after any) {
	userID := auth.CurrentUserID(c)
	if userID == 0 {
		return
	}
	if err := audit.WriteLog(audit.LogOptions{
		UserID:      userID,
		UserName:    audit.UserName(userID),
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		Description: description,
		Before:      before,
		After:       after,
	}); err != nil {
		log.Printf("audit: %v", err)
	}
}
