package stock

import (
	"fmt"
	"log"
	"strings"

	"stockflow-backend/internal/database"
	"stockflow-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm/clause"
)

type PartImportResult struct {
	Success  bool     `json:"success"`
	Upserted int      `json:"upserted"`
	Skipped  []string `json:"skipped"` // "row 4: name is empty"
	Message  string   `json:"message"`
}

// partRow maps one spreadsheet row: part number, name, model, unit.
func partRow(row []string) (models.Part, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	p := models.Part{
		PartNumber: cell(0),
		Name:       cell(1),
		Model:      cell(2),
		Unit:       cell(3),
	}
	if p.PartNumber == "" {
		return p, fmt.Errorf("part number is empty")
	}
	if p.Name == "" {
		return p, fmt.Errorf("name is empty")
	}
	if p.Unit == "" {
		p.Unit = "pcs"
	}
	return p, nil
}

func isPartHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(row[0]))
	return strings.Contains(first, "part") || strings.Contains(first, "p/n") || strings.Contains(first, "รหัส")
}

// POST /api/admin/parts/import
// First sheet, columns: part number, name, model, unit. Existing part numbers
// are updated in place.
func ImportPartsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "File could not be uploaded: "+err.Error())
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return fiber.NewError(fiber.StatusBadRequest, "Only .xlsx files can be uploaded")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "File could not be opened: "+err.Error())
		}
		defer file.Close()

		excelFile, err := excelize.OpenReader(file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Excel file could not be read: "+err.Error())
		}
		defer excelFile.Close()

		sheetList := excelFile.GetSheetList()
		if len(sheetList) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Excel file has no sheets")
		}
		rows, err := excelFile.GetRows(sheetList[0])
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Sheet could not be read: "+err.Error())
		}
		if len(rows) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Excel file is empty")
		}

		start := 0
		if isPartHeader(rows[0]) {
			start = 1
		}

		res := PartImportResult{Success: true, Skipped: []string{}}
		for i := start; i < len(rows); i++ {
			if len(rows[i]) == 0 {
				continue
			}
			p, err := partRow(rows[i])
			if err != nil {
				res.Skipped = append(res.Skipped, fmt.Sprintf("row %d: %v", i+1, err))
				continue
			}

			err = database.DB.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "part_number"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "model", "unit", "updated_at"}),
			}).Create(&p).Error
			if err != nil {
				log.Printf("part import row %d (%s): %v", i+1, p.PartNumber, err)
				res.Skipped = append(res.Skipped, fmt.Sprintf("row %d: could not be saved", i+1))
				continue
			}
			res.Upserted++
		}

		res.Message = fmt.Sprintf("%d parts saved, %d rows skipped", res.Upserted, len(res.Skipped))
		return c.JSON(res)
	}
}
