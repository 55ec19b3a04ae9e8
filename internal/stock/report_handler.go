package stock

import (
	"stockflow-backend/internal/database"
	"stockflow-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CurrentStockRow struct {
	PartID     uint    `json:"part_id"`
	PartNumber string  `json:"part_number"`
	Name       string  `json:"name"`
	Unit       string  `json:"unit"`
	Received   float64 `json:"received"`
	Issued     float64 `json:"issued"`
	NG         float64 `json:"ng"`
	OnHand     float64 `json:"on_hand"`
}

type NGReportRow struct {
	PartID     uint    `json:"part_id"`
	PartNumber string  `json:"part_number"`
	Name       string  `json:"name"`
	Unit       string  `json:"unit"`
	Quantity   float64 `json:"quantity"`
	Entries    int64   `json:"entries"`
}

// GET /api/stock/current?only_in_stock=true
func CurrentStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var rows []CurrentStockRow
		err := database.DB.Model(&models.Part{}).
			Select(`parts.id AS part_id, parts.part_number, parts.name, parts.unit,
				COALESCE(SUM(CASE WHEN stock_movements.type = ? THEN stock_movements.quantity ELSE 0 END), 0) AS received,
				COALESCE(SUM(CASE WHEN stock_movements.type = ? THEN stock_movements.quantity ELSE 0 END), 0) AS issued,
				COALESCE(SUM(CASE WHEN stock_movements.type = ? THEN stock_movements.quantity ELSE 0 END), 0) AS ng,
				COALESCE(SUM(`+models.SignedQuantitySQL+`), 0) AS on_hand`,
				models.MovementReceive, models.MovementIssue, models.MovementNG).
			Joins("LEFT JOIN stock_movements ON stock_movements.part_id = parts.id").
			Group("parts.id, parts.part_number, parts.name, parts.unit").
			Order("parts.part_number asc").
			Scan(&rows).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Current stock could not be calculated")
		}

		if c.QueryBool("only_in_stock", false) {
			filtered := rows[:0]
			for _, r := range rows {
				if r.OnHand > 0 {
					filtered = append(filtered, r)
				}
			}
			rows = filtered
		}
		if rows == nil {
			rows = []CurrentStockRow{}
		}
		return c.JSON(rows)
	}
}

// GET /api/stock/ng?from=2024-03-01&to=2024-03-31
func NGReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := database.DB.Model(&models.StockMovement{}).
			Select(`parts.id AS part_id, parts.part_number, parts.name, parts.unit,
				SUM(stock_movements.quantity) AS quantity, COUNT(*) AS entries`).
			Joins("JOIN parts ON parts.id = stock_movements.part_id").
			Where("stock_movements.type = ?", models.MovementNG)

		if from := c.Query("from"); from != "" {
			d, err := parseDay(from)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from must be in 'YYYY-MM-DD' format")
			}
			query = query.Where("stock_movements.date >= ?", d)
		}
		if to := c.Query("to"); to != "" {
			d, err := parseDay(to)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to must be in 'YYYY-MM-DD' format")
			}
			query = query.Where("stock_movements.date < ?", d.AddDate(0, 0, 1))
		}

		var rows []NGReportRow
		err := query.
			Group("parts.id, parts.part_number, parts.name, parts.unit").
			Order("SUM(stock_movements.quantity) DESC, parts.part_number asc").
			Scan(&rows).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "NG report could not be calculated")
		}
		if rows == nil {
			rows = []NGReportRow{}
		}
		return c.JSON(rows)
	}
}
