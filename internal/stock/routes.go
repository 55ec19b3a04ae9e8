package stock

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the parts and ledger endpoints. protected must already
// carry the JWT middleware, admin additionally the admin role check.
func RegisterRoutes(protected, admin fiber.Router) {
	protected.Get("/parts", ListPartsHandler())
	protected.Post("/parts", CreatePartHandler())
	admin.Post("/parts/import", ImportPartsHandler())
	admin.Put("/parts/:id", UpdatePartHandler())
	admin.Delete("/parts/:id", DeletePartHandler())

	protected.Post("/stock-movements", CreateMovementHandler())
	protected.Get("/stock-movements", ListMovementsHandler())
	protected.Delete("/stock-movements/:id", DeleteMovementHandler())

	protected.Get("/stock/current", CurrentStockHandler())
	protected.Get("/stock/ng", NGReportHandler())
}
