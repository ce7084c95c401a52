package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/platefull/platefull-backend/internal/services"
)

// ReplyResolver maps a numeric text reply back to the payload of the
// option list last sent to an identity. TwilioService implements it.
type ReplyResolver interface {
	ResolveReply(identity, body string) (string, bool)
}

// WhatsAppHandler turns Twilio webhook requests into conversation
// events.
type WhatsAppHandler struct {
	engine    *services.ConversationEngine
	messenger services.Messenger
	resolver  ReplyResolver
}

// NewWhatsAppHandler creates a new WhatsApp handler. resolver may be
// nil when the messenger has no option memory (tests, log messenger).
func NewWhatsAppHandler(engine *services.ConversationEngine, messenger services.Messenger, resolver ReplyResolver) *WhatsAppHandler {
	return &WhatsAppHandler{
		engine:    engine,
		messenger: messenger,
		resolver:  resolver,
	}
}

// TwilioWebhookPayload represents an incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid    string `form:"MessageSid"`
	AccountSid    string `form:"AccountSid"`
	From          string `form:"From"` // whatsapp:+919876543210
	To            string `form:"To"`
	Body          string `form:"Body"`
	ProfileName   string `form:"ProfileName"`
	ButtonPayload string `form:"ButtonPayload"`
	ButtonText    string `form:"ButtonText"`
	NumMedia      string `form:"NumMedia"`
}

// HandleWebhook processes incoming WhatsApp messages
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	identity := strings.TrimPrefix(payload.From, "whatsapp:")
	if identity == "" {
		// Delivery/status callbacks carry no sender; nothing to do.
		return c.SendStatus(fiber.StatusOK)
	}

	log.Printf("📱 WhatsApp message from %s: body=%q button=%q", identity, payload.Body, payload.ButtonPayload)

	event := h.decodeEvent(identity, payload)
	if event == nil {
		return c.SendStatus(fiber.StatusOK)
	}

	if err := h.engine.HandleEvent(event); err != nil {
		log.Printf("Error processing event from %s: %v", identity, err)
		if sendErr := h.messenger.SendText(identity, "❌ Sorry, something went wrong. Please try again."); sendErr != nil {
			log.Printf("Failed to send failure notice to %s: %v", identity, sendErr)
		}
	}

	// Twilio only needs the receipt acknowledged.
	return c.SendStatus(fiber.StatusOK)
}

// decodeEvent maps the webhook payload onto the closed event
// vocabulary. String parsing of action codes happens here and nowhere
// else.
func (h *WhatsAppHandler) decodeEvent(identity string, payload TwilioWebhookPayload) services.Event {
	buttonPayload := payload.ButtonPayload
	if buttonPayload == "" && payload.Body != "" && h.resolver != nil {
		if resolved, ok := h.resolver.ResolveReply(identity, payload.Body); ok {
			buttonPayload = resolved
		}
	}

	if buttonPayload != "" {
		if buttonPayload == services.ContactSharePayload {
			return &services.ContactShared{Identity: identity, PhoneNumber: identity}
		}
		return &services.ButtonTapped{
			Identity:    identity,
			ProfileName: payload.ProfileName,
			Action:      services.ParseAction(buttonPayload),
		}
	}

	if payload.Body != "" {
		return &services.TextMessage{
			Identity:    identity,
			ProfileName: payload.ProfileName,
			Text:        payload.Body,
		}
	}

	return nil
}

// TestWebhookPayload drives the bot without Twilio, for development
type TestWebhookPayload struct {
	From          string `json:"from"`
	Message       string `json:"message"`
	ButtonPayload string `json:"button_payload"`
	ProfileName   string `json:"profile_name"`
}

// HandleTestWebhook processes test messages (for development)
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}

	log.Printf("🧪 Test webhook from %s: %q (button %q)", payload.From, payload.Message, payload.ButtonPayload)

	event := h.decodeEvent(payload.From, TwilioWebhookPayload{
		Body:          payload.Message,
		ButtonPayload: payload.ButtonPayload,
		ProfileName:   payload.ProfileName,
	})
	if event == nil {
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	if err := h.engine.HandleEvent(event); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "processed"})
}
