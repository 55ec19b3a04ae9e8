package auth

import (
	"crypto/subtle"
	"encoding/json"
	"strings"

	"stockflow-backend/internal/config"

	"github.com/gofiber/fiber/v2"
)

// HeaderImportKey carries the shared secret for machine-to-machine imports.
const HeaderImportKey = "X-Import-Key"

// RequireImportKey gates a route behind cfg.ImportKey. The key may come from the
// X-Import-Key header, a "key" form field (multipart or urlencoded) or a "key"
// property of a JSON object body. An unset server key rejects everything.
func RequireImportKey(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !KeyMatches(cfg.ImportKey, importKeyFromRequest(c)) {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or missing import key")
		}
		return c.Next()
	}
}

// KeyMatches compares in constant time. Empty values never match.
func KeyMatches(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func importKeyFromRequest(c *fiber.Ctx) string {
	if k := c.Get(HeaderImportKey); k != "" {
		return k
	}

	ct := strings.ToLower(c.Get(fiber.HeaderContentType))
	switch {
	case strings.HasPrefix(ct, fiber.MIMEMultipartForm), strings.HasPrefix(ct, fiber.MIMEApplicationForm):
		if form, err := c.MultipartForm(); err == nil {
			if v := form.Value["key"]; len(v) > 0 {
				return v[0]
			}
			return ""
		}
		return string(c.Request().PostArgs().Peek("key"))
	case strings.HasPrefix(ct, fiber.MIMEApplicationJSON):
		var body struct {
			Key string `json:"key"`
		}
		// arrays and malformed bodies simply carry no key
		_ = json.Unmarshal(c.Body(), &body)
		return body.Key
	}
	return ""
}
