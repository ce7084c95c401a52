package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"log"
	"os"
	"sort"

	"github.com/gofiber/fiber/v2"
)

// ValidateTwilioSignature rejects webhook requests that do not carry a
// valid X-Twilio-Signature for our auth token. Twilio signs the full
// request URL concatenated with the sorted form parameters using
// HMAC-SHA1.
func ValidateTwilioSignature() fiber.Handler {
	return func(c *fiber.Ctx) error {
		signature := c.Get("X-Twilio-Signature")
		if signature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Twilio signature",
			})
		}

		authToken := os.Getenv("TWILIO_AUTH_TOKEN")
		if authToken == "" {
			log.Println("ERROR: TWILIO_AUTH_TOKEN not set, cannot validate webhooks")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		expected := computeSignature(authToken, requestURL(c), formParams(c))
		if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}

func requestURL(c *fiber.Ctx) string {
	scheme := "https"
	// Behind Cloud Run / a proxy the original scheme arrives in a header.
	if forwarded := c.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	} else if c.Protocol() != "" {
		scheme = c.Protocol()
	}
	if override := os.Getenv("WEBHOOK_BASE_URL"); override != "" {
		return override + c.OriginalURL()
	}
	return scheme + "://" + c.Hostname() + c.OriginalURL()
}

func formParams(c *fiber.Ctx) map[string]string {
	params := make(map[string]string)
	c.Request().PostArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})
	return params
}

func computeSignature(authToken, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	payload := url
	for _, key := range keys {
		payload += key + params[key]
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
