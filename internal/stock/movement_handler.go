package stock

import (
	"fmt"
	"log"
	"strings"
	"time"

	"stockflow-backend/internal/audit"
	"stockflow-backend/internal/auth"
	"stockflow-backend/internal/database"
	"stockflow-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateMovementRequest struct {
	PartID    uint    `json:"part_id"`
	Type      string  `json:"type"` // receive | issue | ng
	Date      string  `json:"date"` // "2024-03-15", defaults to today
	Quantity  float64 `json:"quantity"`
	Reference string  `json:"reference"`
	Note      string  `json:"note"`
}

type MovementResponse struct {
	ID         uint    `json:"id"`
	PartID     uint    `json:"part_id"`
	PartNumber string  `json:"part_number"`
	PartName   string  `json:"part_name"`
	Type       string  `json:"type"`
	Date       string  `json:"date"`
	Quantity   float64 `json:"quantity"`
	Reference  string  `json:"reference"`
	Note       string  `json:"note"`
	UserID     uint    `json:"user_id"`
	CreatedAt  string  `json:"created_at"`
}

func toMovementResponse(m models.StockMovement) MovementResponse {
	return MovementResponse{
		ID:         m.ID,
		PartID:     m.PartID,
		PartNumber: m.Part.PartNumber,
		PartName:   m.Part.Name,
		Type:       string(m.Type),
		Date:       m.Date.Format(dateLayout),
		Quantity:   m.Quantity,
		Reference:  m.Reference,
		Note:       m.Note,
		UserID:     m.UserID,
		CreatedAt:  m.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func parseMovementType(s string) (models.MovementType, bool) {
	switch models.MovementType(strings.ToLower(strings.TrimSpace(s))) {
	case models.MovementReceive:
		return models.MovementReceive, true
	case models.MovementIssue:
		return models.MovementIssue, true
	case models.MovementNG:
		return models.MovementNG, true
	}
	return "", false
}

// errInsufficient is returned from inside the create transaction.
type errInsufficient struct {
	onHand float64
	unit   string
}

func (e errInsufficient) Error() string {
	return fmt.Sprintf("Not enough stock, on hand: %.2f %s", e.onHand, e.unit)
}

type errNegativeStock struct {
	onHand float64
}

func (e errNegativeStock) Error() string {
	return fmt.Sprintf("Deleting this receipt would leave negative stock (on hand: %.2f)", e.onHand)
}

// POST /api/stock-movements
func CreateMovementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateMovementRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if body.PartID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "part_id is required")
		}
		mt, ok := parseMovementType(body.Type)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "type must be receive, issue or ng")
		}
		if body.Quantity <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity must be greater than 0")
		}

		d := time.Now().UTC().Truncate(24 * time.Hour)
		if body.Date != "" {
			parsed, err := parseDay(body.Date)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "date must be in 'YYYY-MM-DD' format")
			}
			d = parsed
		}

		var part models.Part
		if err := database.DB.First(&part, "id = ?", body.PartID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Part not found")
		}

		m := models.StockMovement{
			PartID:    part.ID,
			Type:      mt,
			Date:      d,
			Quantity:  body.Quantity,
			Reference: strings.TrimSpace(body.Reference),
			Note:      strings.TrimSpace(body.Note),
			UserID:    auth.CurrentUserID(c),
		}

		// the balance check and the insert share a transaction
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if mt != models.MovementReceive {
				onHand, err := models.OnHand(tx, part.ID)
				if err != nil {
					return err
				}
				if body.Quantity > onHand {
					return errInsufficient{onHand: onHand, unit: part.Unit}
				}
			}
			return tx.Omit("Part").Create(&m).Error
		})
		if err != nil {
			if e, ok := err.(errInsufficient); ok {
				return fiber.NewError(fiber.StatusBadRequest, e.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Stock movement could not be saved")
		}
		m.Part = part

		logChange(c, audit.EntityStockMovement, m.ID, models.AuditActionCreate,
			fmt.Sprintf("Stock %s: %s - %.2f %s", m.Type, part.PartNumber, m.Quantity, part.Unit), nil, m)

		return c.Status(fiber.StatusCreated).JSON(toMovementResponse(m))
	}
}

// GET /api/stock-movements?part_id=&type=&from=&to=
func ListMovementsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := database.DB.Preload("Part")

		if pid := c.QueryInt("part_id", 0); pid > 0 {
			query = query.Where("part_id = ?", pid)
		}
		if t := c.Query("type"); t != "" {
			mt, ok := parseMovementType(t)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "type must be receive, issue or ng")
			}
			query = query.Where("type = ?", mt)
		}
		if from := c.Query("from"); from != "" {
			d, err := parseDay(from)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from must be in 'YYYY-MM-DD' format")
			}
			query = query.Where("date >= ?", d)
		}
		if to := c.Query("to"); to != "" {
			d, err := parseDay(to)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to must be in 'YYYY-MM-DD' format")
			}
			query = query.Where("date < ?", d.AddDate(0, 0, 1))
		}

		var movements []models.StockMovement
		if err := query.Order("date DESC, id DESC").Find(&movements).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stock movements could not be listed")
		}

		resp := make([]MovementResponse, 0, len(movements))
		for _, m := range movements {
			resp = append(resp, toMovementResponse(m))
		}
		return c.JSON(resp)
	}
}

// DELETE /api/stock-movements/:id
// Removing a receipt that later issues depend on is refused.
func DeleteMovementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var m models.StockMovement
		if err := database.DB.Preload("Part").First(&m, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Stock movement not found")
		}

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if m.Type == models.MovementReceive {
				onHand, err := models.OnHand(tx, m.PartID)
				if err != nil {
					return err
				}
				if onHand-m.Quantity < 0 {
					return errNegativeStock{onHand: onHand}
				}
			}
			return tx.Delete(&models.StockMovement{}, "id = ?", m.ID).Error
		})
		if err != nil {
			if e, ok := err.(errNegativeStock); ok {
				return fiber.NewError(fiber.StatusBadRequest, e.Error())
			}
			log.Printf("stock movement %d delete failed: %v", m.ID, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Stock movement could not be deleted")
		}

		logChange(c, audit.EntityStockMovement, m.ID, models.AuditActionDelete,
			fmt.Sprintf("Stock %s deleted: %s - %.2f", m.Type, m.Part.PartNumber, m.Quantity), m, nil)

		return c.JSON(fiber.Map{"message": "Stock movement deleted"})
	}
}
