package duerecord

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"stockflow-backend/internal/audit"
	"stockflow-backend/internal/auth"
	"stockflow-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type UpdateRecordRequest struct {
	DeliveryType   *string `json:"deliveryType"`
	MyobNumber     *string `json:"myobNumber"`
	Customer       *string `json:"customer"`
	Model          *string `json:"model"`
	PartNumber     *string `json:"partNumber"`
	PartName       *string `json:"partName"`
	RevisionLevel  *string `json:"revisionLevel"`
	RevisionNumber *string `json:"revisionNumber"`
	Event          *string `json:"event"`
	CustomerPo     *string `json:"customerPo"`
	DueDate        *string `json:"dueDate"`
	Quantity       *int    `json:"quantity"`

	Supplier              *string `json:"supplier"`
	CountryOfOrigin       *string `json:"countryOfOrigin"`
	SampleRequestSheet    *string `json:"sampleRequestSheet"`
	InvoiceNumber         *string `json:"invoiceNumber"`
	SupplierInvoiceNumber *string `json:"supplierInvoiceNumber"`
	WithdrawalNumber      *string `json:"withdrawalNumber"`
	Remark                *string `json:"remark"`
}

func (req UpdateRecordRequest) apply(r *models.DueRecord) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&r.DeliveryType, req.DeliveryType)
	set(&r.MyobNumber, req.MyobNumber)
	set(&r.Customer, req.Customer)
	set(&r.Model, req.Model)
	set(&r.PartNumber, req.PartNumber)
	set(&r.PartName, req.PartName)
	set(&r.RevisionLevel, req.RevisionLevel)
	set(&r.RevisionNumber, req.RevisionNumber)
	set(&r.Event, req.Event)
	set(&r.CustomerPo, req.CustomerPo)
	set(&r.DueDate, req.DueDate)
	if req.Quantity != nil {
		r.Quantity = *req.Quantity
	}
	set(&r.Supplier, req.Supplier)
	set(&r.CountryOfOrigin, req.CountryOfOrigin)
	set(&r.SampleRequestSheet, req.SampleRequestSheet)
	set(&r.InvoiceNumber, req.InvoiceNumber)
	set(&r.SupplierInvoiceNumber, req.SupplierInvoiceNumber)
	set(&r.WithdrawalNumber, req.WithdrawalNumber)
	set(&r.Remark, req.Remark)
}

type DeliverRequest struct {
	DeliveredAt string `json:"deliveredAt"` // optional, defaults to now
}

func recordID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid record id")
	}
	return uint(id), nil
}

func storeError(err error, action string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Due record not found")
	case errors.Is(err, ErrDuplicateKey):
		return fiber.NewError(fiber.StatusConflict, "Another due record already has the same identity")
	case errors.Is(err, ErrInvalidRecord):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		log.Printf("due record %s failed: %v", action, err)
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("Due record could not be %s", action))
	}
}

func writeAudit(c *fiber.Ctx, action models.AuditAction, id uint, description string, before, after any) {
	userID := auth.CurrentUserID(c)
	if userID == 0 {
		return
	}
	if err := audit.WriteLog(audit.LogOptions{
		UserID:      userID,
		UserName:    audit.UserName(userID),
		EntityType:  audit.EntityDueRecord,
		EntityID:    id,
		Action:      action,
		Description: description,
		Before:      before,
		After:       after,
	}); err != nil {
		log.Printf("audit: %v", err)
	}
}

func describe(r *models.DueRecord) string {
	return fmt.Sprintf("%s / %s / PO %s / due %s / qty %d", r.Customer, r.PartNumber, r.CustomerPo, r.DueDate, r.Quantity)
}

// POST /api/due-records
func CreateRecordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in RecordInput
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		stored, previous, err := svc.Create(c.UserContext(), in)
		if err != nil {
			return storeError(err, "saved")
		}

		if previous != nil {
			writeAudit(c, models.AuditActionUpdate, stored.ID, "Due record updated: "+describe(stored), previous, stored)
		} else {
			writeAudit(c, models.AuditActionCreate, stored.ID, "Due record created: "+describe(stored), nil, stored)
		}

		return c.Status(fiber.StatusCreated).JSON(stored)
	}
}

func filterFromQuery(c *fiber.Ctx, defaultLimit int) (Filter, error) {
	f := Filter{
		DeliveryType: strings.ToLower(strings.TrimSpace(c.Query("delivery_type"))),
		Customer:     strings.TrimSpace(c.Query("customer")),
		DueFrom:      strings.TrimSpace(c.Query("due_from")),
		DueTo:        strings.TrimSpace(c.Query("due_to")),
		Search:       strings.TrimSpace(c.Query("q")),
		Limit:        c.QueryInt("limit", defaultLimit),
		Offset:       c.QueryInt("offset", 0),
	}
	if v := c.Query("delivered"); v != "" {
		delivered, err := strconv.ParseBool(v)
		if err != nil {
			return f, fiber.NewError(fiber.StatusBadRequest, "delivered must be true or false")
		}
		f.Delivered = &delivered
	}
	if f.Limit > 5000 {
		f.Limit = 5000
	}
	return f, nil
}

// GET /api/due-records?delivery_type=&customer=&delivered=&due_from=&due_to=&q=&limit=&offset=
func ListRecordsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := filterFromQuery(c, 500)
		if err != nil {
			return err
		}

		records, err := svc.Store().List(c.UserContext(), f)
		if err != nil {
			return storeError(err, "listed")
		}
		return c.JSON(records)
	}
}

// GET /api/due-records/export (same filters as the list)
func ExportRecordsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := filterFromQuery(c, 5000)
		if err != nil {
			return err
		}

		records, err := svc.Store().List(c.UserContext(), f)
		if err != nil {
			return storeError(err, "listed")
		}
		buf, err := ExportWorkbook(records)
		if err != nil {
			log.Printf("due record export failed: %v", err)
			return fiber.NewError(fiber.StatusInternalServerError, "Export could not be generated")
		}

		name := fmt.Sprintf("due-records-%s.xlsx", time.Now().Format("20060102"))
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
		return c.Send(buf.Bytes())
	}
}

// GET /api/due-records/:id
func GetRecordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := recordID(c)
		if err != nil {
			return err
		}
		r, err := svc.Store().Get(c.UserContext(), id)
		if err != nil {
			return storeError(err, "loaded")
		}
		return c.JSON(r)
	}
}

// PUT /api/due-records/:id
// Identity fields may change; the key is recomputed and a clash is a 409.
func UpdateRecordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := recordID(c)
		if err != nil {
			return err
		}

		r, err := svc.Store().Get(c.UserContext(), id)
		if err != nil {
			return storeError(err, "loaded")
		}
		before := *r

		var body UpdateRecordRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		body.apply(r)

		if err := Prepare(r); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := svc.Store().Save(c.UserContext(), r); err != nil {
			return storeError(err, "updated")
		}

		writeAudit(c, models.AuditActionUpdate, r.ID, "Due record updated: "+describe(r), before, r)
		return c.JSON(r)
	}
}

// POST /api/due-records/:id/deliver
func DeliverRecordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := recordID(c)
		if err != nil {
			return err
		}

		var body DeliverRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
			}
		}
		var at *time.Time
		if body.DeliveredAt != "" {
			t, ok := ParseTimestamp(body.DeliveredAt)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "deliveredAt could not be parsed")
			}
			at = &t
		}

		return setDelivered(c, svc, id, true, at)
	}
}

// POST /api/due-records/:id/undeliver
func UndeliverRecordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := recordID(c)
		if err != nil {
			return err
		}
		return setDelivered(c, svc, id, false, nil)
	}
}

func setDelivered(c *fiber.Ctx, svc *Service, id uint, delivered bool, at *time.Time) error {
	before, err := svc.Store().Get(c.UserContext(), id)
	if err != nil {
		return storeError(err, "loaded")
	}
	r, err := svc.Store().SetDelivered(c.UserContext(), id, delivered, at)
	if err != nil {
		return storeError(err, "updated")
	}

	desc := "Marked delivered: "
	if !delivered {
		desc = "Marked not delivered: "
	}
	writeAudit(c, models.AuditActionUpdate, r.ID, desc+describe(r), before, r)
	return c.JSON(r)
}

// DELETE /api/due-records/:id
func DeleteRecordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := recordID(c)
		if err != nil {
			return err
		}

		r, err := svc.Store().Get(c.UserContext(), id)
		if err != nil {
			return storeError(err, "loaded")
		}
		if err := svc.Store().Delete(c.UserContext(), id); err != nil {
			return storeError(err, "deleted")
		}

		writeAudit(c, models.AuditActionDelete, r.ID, "Due record deleted: "+describe(r), r, nil)
		return c.JSON(fiber.Map{"message": "Due record deleted"})
	}
}

// GET /api/due-records/summary
func SummaryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := svc.Store().Summary(c.UserContext())
		if err != nil {
			return storeError(err, "summarized")
		}
		if rows == nil {
			rows = []SummaryRow{}
		}
		return c.JSON(rows)
	}
}
