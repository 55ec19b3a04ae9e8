package stock

import (
	"errors"
	"fmt"
	"strings"

	"stockflow-backend/internal/audit"
	"stockflow-backend/internal/database"
	"stockflow-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type PartResponse struct {
	ID         uint   `json:"id"`
	PartNumber string `json:"part_number"`
	Name       string `json:"name"`
	Model      string `json:"model"`
	Unit       string `json:"unit"`
}

type CreatePartRequest struct {
	PartNumber string `json:"part_number"`
	Name       string `json:"name"`
	Model      string `json:"model"`
	Unit       string `json:"unit"`
}

type UpdatePartRequest struct {
	PartNumber *string `json:"part_number"`
	Name       *string `json:"name"`
	Model      *string `json:"model"`
	Unit       *string `json:"unit"`
}

func toPartResponse(p models.Part) PartResponse {
	return PartResponse{
		ID:         p.ID,
		PartNumber: p.PartNumber,
		Name:       p.Name,
		Model:      p.Model,
		Unit:       p.Unit,
	}
}

// GET /api/parts?q=
func ListPartsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Part{})
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			dbq = dbq.Where("LOWER(part_number) LIKE ? OR LOWER(name) LIKE ? OR LOWER(model) LIKE ?", like, like, like)
		}

		var parts []models.Part
		if err := dbq.Order("part_number asc").Find(&parts).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Parts could not be listed")
		}

		res := make([]PartResponse, 0, len(parts))
		for _, p := range parts {
			res = append(res, toPartResponse(p))
		}
		return c.JSON(res)
	}
}

// POST /api/parts
func CreatePartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreatePartRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.PartNumber = strings.TrimSpace(body.PartNumber)
		body.Name = strings.TrimSpace(body.Name)
		body.Model = strings.TrimSpace(body.Model)
		body.Unit = strings.TrimSpace(body.Unit)
		if body.Unit == "" {
			body.Unit = "pcs"
		}

		if body.PartNumber == "" || body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "part_number and name are required")
		}

		p := models.Part{
			PartNumber: body.PartNumber,
			Name:       body.Name,
			Model:      body.Model,
			Unit:       body.Unit,
		}
		if err := database.DB.Create(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusBadRequest, "This part number is already registered")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Part could not be created")
		}

		logChange(c, audit.EntityPart, p.ID, models.AuditActionCreate,
			fmt.Sprintf("Part created: %s %s", p.PartNumber, p.Name), nil, p)

		return c.Status(fiber.StatusCreated).JSON(toPartResponse(p))
	}
}

// PUT /api/admin/parts/:id
func UpdatePartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var p models.Part
		if err := database.DB.First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Part not found")
		}
		before := p

		var body UpdatePartRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if body.PartNumber != nil {
			pn := strings.TrimSpace(*body.PartNumber)
			if pn == "" {
				return fiber.NewError(fiber.StatusBadRequest, "part_number cannot be empty")
			}
			p.PartNumber = pn
		}
		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name cannot be empty")
			}
			p.Name = name
		}
		if body.Model != nil {
			p.Model = strings.TrimSpace(*body.Model)
		}
		if body.Unit != nil {
			unit := strings.TrimSpace(*body.Unit)
			if unit == "" {
				return fiber.NewError(fiber.StatusBadRequest, "unit cannot be empty")
			}
			p.Unit = unit
		}

		if err := database.DB.Save(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusBadRequest, "This part number is already registered")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Part could not be updated")
		}

		logChange(c, audit.EntityPart, p.ID, models.AuditActionUpdate,
			fmt.Sprintf("Part updated: %s %s", p.PartNumber, p.Name), before, p)

		return c.JSON(toPartResponse(p))
	}
}

// DELETE /api/admin/parts/:id
// A part with ledger entries cannot be deleted.
func DeletePartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var p models.Part
		if err := database.DB.First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Part not found")
		}

		var movements int64
		database.DB.Model(&models.StockMovement{}).Where("part_id = ?", p.ID).Count(&movements)
		if movements > 0 {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("Part has %d stock movements, delete them first", movements))
		}

		if err := database.DB.Delete(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Part could not be deleted")
		}

		logChange(c, audit.EntityPart, p.ID, models.AuditActionDelete,
			fmt.Sprintf("Part deleted: %s %s", p.PartNumber, p.Name), p, nil)

		return c.JSON(fiber.Map{"message": "Part deleted"})
	}
}
