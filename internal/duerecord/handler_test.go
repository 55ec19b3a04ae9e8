package duerecord

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stockflow-backend/internal/auth"
	"stockflow-backend/internal/config"
	"stockflow-backend/internal/database"
	"stockflow-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

const testImportKey = "import-secret"

type testEnv struct {
	app   *fiber.App
	svc   *Service
	token string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenMemory("handler_" + t.Name())
	require.NoError(t, err)
	database.DB = db

	cfg := &config.Config{
		JWTSecret: strings.Repeat("k", 32),
		ImportKey: testImportKey,
		Import:    config.DefaultImportConfig(),
	}
	svc := NewService(NewStore(db), cfg.Import)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	RegisterRoutes(app.Group("/api"), cfg, svc)

	user := models.User{Name: "Tester", Email: "tester@example.com", PasswordHash: "x", Role: models.RoleStaff}
	require.NoError(t, db.Create(&user).Error)
	token, err := auth.GenerateToken(cfg.JWTSecret, &user)
	require.NoError(t, err)

	return &testEnv{app: app, svc: svc, token: token}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (e *testEnv) authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+e.token)
	return req
}

const recordJSON = `{"deliveryType":"international","customer":"Acme","model":"X1","partNumber":"PN-1",
	"partName":"Bracket","event":"MP","customerPo":"PO-1","dueDate":"2024-03-15","quantity":10}`

func TestSyncHandler_Public(t *testing.T) {
	env := newTestEnv(t)

	body := `[` + recordJSON + `, {"customer": "no identity"}]`
	code, out := env.do(t, jsonRequest(http.MethodPost, "/api/due-records/sync", body))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, out["ok"])
	require.EqualValues(t, 1, out["upserted"])
	require.EqualValues(t, 1, out["skipped"])

	code, out = env.do(t, jsonRequest(http.MethodPost, "/api/due-records/sync", `{"records": [`+recordJSON+`]}`))
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, out["upserted"])

	code, _ = env.do(t, jsonRequest(http.MethodPost, "/api/due-records/sync", `{}`))
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, jsonRequest(http.MethodPost, "/api/due-records/sync", `not json`))
	require.Equal(t, http.StatusBadRequest, code)
}

func TestSyncSecure_RequiresKey(t *testing.T) {
	env := newTestEnv(t)
	body := `{"records": [` + recordJSON + `]}`

	code, out := env.do(t, jsonRequest(http.MethodPost, "/api/due-records/sync-secure", body))
	require.Equal(t, http.StatusUnauthorized, code)
	require.Contains(t, out["error"], "import key")

	req := jsonRequest(http.MethodPost, "/api/due-records/sync-secure", body)
	req.Header.Set(auth.HeaderImportKey, "wrong")
	code, _ = env.do(t, req)
	require.Equal(t, http.StatusUnauthorized, code)

	req = jsonRequest(http.MethodPost, "/api/due-records/sync-secure", body)
	req.Header.Set(auth.HeaderImportKey, testImportKey)
	code, out = env.do(t, req)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, out["upserted"])

	withKey := `{"key": "` + testImportKey + `", "records": [` + recordJSON + `]}`
	code, _ = env.do(t, jsonRequest(http.MethodPost, "/api/due-records/sync-secure", withKey))
	require.Equal(t, http.StatusOK, code)
}

func TestBulkHandler(t *testing.T) {
	env := newTestEnv(t)

	body := fmt.Sprintf(`{"key": %q, "records": [%s, %s, {"customer": "x"}]}`, testImportKey, recordJSON, recordJSON)
	code, out := env.do(t, jsonRequest(http.MethodPost, "/api/due-records/bulk", body))
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 3, out["received"])
	require.EqualValues(t, 2, out["accepted"])
	require.EqualValues(t, 1, out["skipped"])
	require.EqualValues(t, 1, out["upserted"])
	require.EqualValues(t, 0, out["errorsCount"])

	code, _ = env.do(t, jsonRequest(http.MethodPost, "/api/due-records/bulk", fmt.Sprintf(`{"key": %q}`, testImportKey)))
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, jsonRequest(http.MethodPost, "/api/due-records/bulk", `{"key": "nope", "records": []}`))
	require.Equal(t, http.StatusUnauthorized, code)
}

func multipartUpload(t *testing.T, key, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if key != "" {
		require.NoError(t, w.WriteField("key", key))
	}
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/due-records/import", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestImportHandler(t *testing.T) {
	env := newTestEnv(t)
	workbook := workbookFixture(t).Bytes()

	code, _ := env.do(t, multipartUpload(t, "", "due.xlsx", workbook))
	require.Equal(t, http.StatusUnauthorized, code)

	code, out := env.do(t, multipartUpload(t, testImportKey, "due.xlsx", workbook))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, out["ok"])
	require.EqualValues(t, 2, out["totalRows"])
	require.EqualValues(t, 2, out["parsedRows"])
	require.EqualValues(t, 1, out["upserted"])
	require.EqualValues(t, 1, out["skipped"])
	require.EqualValues(t, 0, out["errorsCount"])

	code, _ = env.do(t, multipartUpload(t, testImportKey, "due.xlsx", []byte("garbage")))
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, multipartUpload(t, testImportKey, "due.csv", workbook))
	require.Equal(t, http.StatusBadRequest, code)
}

func TestCreateHandler_RequiresJWTAndWritesAudit(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, jsonRequest(http.MethodPost, "/api/due-records", recordJSON))
	require.Equal(t, http.StatusUnauthorized, code)

	code, out := env.do(t, env.authed(jsonRequest(http.MethodPost, "/api/due-records", recordJSON)))
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "Acme", out["customer"])
	require.NotEmpty(t, out["dedupeKey"])

	code, _ = env.do(t, env.authed(jsonRequest(http.MethodPost, "/api/due-records", `{"customer": "Acme"}`)))
	require.Equal(t, http.StatusBadRequest, code)

	var logs []models.AuditLog
	require.NoError(t, database.DB.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, models.AuditActionCreate, logs[0].Action)
	require.Equal(t, "Tester", logs[0].UserName)
}

func TestUpdateDeliverDelete(t *testing.T) {
	env := newTestEnv(t)

	code, out := env.do(t, env.authed(jsonRequest(http.MethodPost, "/api/due-records", recordJSON)))
	require.Equal(t, http.StatusCreated, code)
	id := int(out["id"].(float64))

	other := strings.Replace(recordJSON, "PO-1", "PO-2", 1)
	code, out = env.do(t, env.authed(jsonRequest(http.MethodPost, "/api/due-records", other)))
	require.Equal(t, http.StatusCreated, code)
	otherID := int(out["id"].(float64))

	path := fmt.Sprintf("/api/due-records/%d", id)

	code, out = env.do(t, env.authed(jsonRequest(http.MethodPut, path, `{"remark": "expedite", "quantity": 12}`)))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "expedite", out["remark"])
	require.EqualValues(t, 12, out["quantity"])

	// moving the other row onto this identity clashes
	clash := `{"customerPo": "PO-1", "quantity": 12}`
	code, _ = env.do(t, env.authed(jsonRequest(http.MethodPut, fmt.Sprintf("/api/due-records/%d", otherID), clash)))
	require.Equal(t, http.StatusConflict, code)

	code, _ = env.do(t, env.authed(jsonRequest(http.MethodPut, path, `{"event": "  "}`)))
	require.Equal(t, http.StatusBadRequest, code)

	code, out = env.do(t, env.authed(jsonRequest(http.MethodPost, path+"/deliver", `{"deliveredAt": "2024-03-14"}`)))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, out["isDelivered"])
	require.NotNil(t, out["deliveredAt"])

	code, out = env.do(t, env.authed(httptest.NewRequest(http.MethodPost, path+"/undeliver", nil)))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, out["isDelivered"])
	require.Nil(t, out["deliveredAt"])

	code, _ = env.do(t, env.authed(httptest.NewRequest(http.MethodDelete, path, nil)))
	require.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, env.authed(httptest.NewRequest(http.MethodGet, path, nil)))
	require.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, env.authed(httptest.NewRequest(http.MethodGet, "/api/due-records/abc", nil)))
	require.Equal(t, http.StatusBadRequest, code)
}

func TestListAndSummaryHandlers(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, jsonRequest(http.MethodPost, "/api/due-records/sync", `[`+recordJSON+`]`))
	require.Equal(t, http.StatusOK, code)

	resp, err := env.app.Test(env.authed(httptest.NewRequest(http.MethodGet, "/api/due-records?delivery_type=international&delivered=false", nil)), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []models.DueRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)

	code, _ = env.do(t, env.authed(httptest.NewRequest(http.MethodGet, "/api/due-records?delivered=maybe", nil)))
	require.Equal(t, http.StatusBadRequest, code)

	resp, err = env.app.Test(env.authed(httptest.NewRequest(http.MethodGet, "/api/due-records/summary", nil)), -1)
	require.NoError(t, err)
	var summary []SummaryRow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	require.Len(t, summary, 1)
	require.EqualValues(t, 1, summary[0].Total)

	resp, err = env.app.Test(env.authed(httptest.NewRequest(http.MethodGet, "/api/due-records/template", nil)), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Disposition"), "due-records-template.xlsx")
}

func TestExportHandler(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, jsonRequest(http.MethodPost, "/api/due-records/sync", `[`+recordJSON+`]`))
	require.Equal(t, http.StatusOK, code)

	resp, err := env.app.Test(env.authed(httptest.NewRequest(http.MethodGet, "/api/due-records/export", nil)), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sheets, err := ReadWorkbook(resp.Body)
	require.NoError(t, err)
	require.Len(t, sheets, 2)
	require.Len(t, sheets[0].Rows, 2)
	require.Equal(t, "Acme", sheets[0].Rows[1][1].Text)
}
