package duerecord

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type SyncResponse struct {
	OK bool `json:"ok"`
	SyncResult
}

type ImportResponse struct {
	OK bool `json:"ok"`
	*ImportResult
}

type BulkResponse struct {
	OK bool `json:"ok"`
	BulkResult
}

// POST /api/due-records/sync
// POST /api/due-records/sync-secure (behind the import key)
// Body: [ {...}, ... ] or { "records": [ ... ] }
func SyncHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		inputs, err := DecodeRecords(c.Body())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		}

		res := svc.Sync(c.UserContext(), inputs)
		log.Printf("Sync finished: %d received, %d upserted, %d skipped, %d errors", len(inputs), res.Upserted, res.Skipped, res.ErrorsCount)

		return c.JSON(SyncResponse{OK: true, SyncResult: res})
	}
}

// POST /api/due-records/bulk
// Body: { "key": "...", "records": [ ... ] }
func BulkHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Records []RecordInput `json:"records"`
		}
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body, expected { key, records }")
		}
		if body.Records == nil {
			return fiber.NewError(fiber.StatusBadRequest, "'records' array is required")
		}

		res := svc.Bulk(c.UserContext(), body.Records)
		log.Printf("Bulk upsert finished: %d received, %d accepted, %d upserted, %d errors", res.Received, res.Accepted, res.Upserted, res.ErrorsCount)

		return c.JSON(BulkResponse{OK: true, BulkResult: res})
	}
}

// POST /api/due-records/import
// multipart/form-data: file=<workbook.xlsx>, key=<import key>
func ImportHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "File could not be uploaded: "+err.Error())
		}

		name := strings.ToLower(fileHeader.Filename)
		if !strings.HasSuffix(name, ".xlsx") && !strings.HasSuffix(name, ".xlsm") {
			return fiber.NewError(fiber.StatusBadRequest, "Only .xlsx or .xlsm files can be imported")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "File could not be opened: "+err.Error())
		}
		defer file.Close()

		log.Printf("Workbook import started: %s (%d bytes)", fileHeader.Filename, fileHeader.Size)
		res, err := svc.ImportWorkbook(c.UserContext(), file)
		if err != nil {
			log.Printf("Workbook import failed: %v", err)
			return fiber.NewError(fiber.StatusBadRequest, "Workbook could not be read: "+err.Error())
		}

		return c.JSON(ImportResponse{OK: true, ImportResult: res})
	}
}

// GET /api/due-records/template
func TemplateHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		buf, err := BuildTemplate()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Template could not be generated")
		}
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="due-records-template.xlsx"`)
		return c.Send(buf.Bytes())
	}
}
