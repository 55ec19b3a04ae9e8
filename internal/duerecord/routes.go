package duerecord

import (
	"stockflow-backend/internal/auth"
	"stockflow-backend/internal/config"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the due-record endpoints under api (normally /api).
// Machine routes are public or gated by the import key, the UI routes need a
// JWT.
func RegisterRoutes(api fiber.Router, cfg *config.Config, svc *Service) {
	importKey := auth.RequireImportKey(cfg)
	jwt := auth.JWTMiddleware(cfg)

	dr := api.Group("/due-records")

	dr.Post("/sync", SyncHandler(svc))
	dr.Post("/sync-secure", importKey, SyncHandler(svc))
	dr.Post("/import", importKey, ImportHandler(svc))
	dr.Post("/bulk", importKey, BulkHandler(svc))

	dr.Get("/summary", jwt, SummaryHandler(svc))
	dr.Get("/template", jwt, TemplateHandler())
	dr.Get("/export", jwt, ExportRecordsHandler(svc))
	dr.Get("/", jwt, ListRecordsHandler(svc))
	dr.Post("/", jwt, CreateRecordHandler(svc))
	dr.Get("/:id", jwt, GetRecordHandler(svc))
	dr.Put("/:id", jwt, UpdateRecordHandler(svc))
	dr.Delete("/:id", jwt, DeleteRecordHandler(svc))
	dr.Post("/:id/deliver", jwt, DeliverRecordHandler(svc))
	dr.Post("/:id/undeliver", jwt, UndeliverRecordHandler(svc))
}
