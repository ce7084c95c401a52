package services

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioService sends WhatsApp messages through the Twilio REST API
// and implements Messenger.
//
// WhatsApp quick-reply buttons require pre-registered content
// templates, which cannot carry the dynamic option sets this bot
// sends (subscription lists, the preference catalog). Options go out
// as a numbered list instead, and the service remembers the last list
// per identity so the webhook can resolve a numeric reply back to the
// option's payload.
type TwilioService struct {
	client       *twilio.RestClient
	whatsappFrom string

	mu          sync.Mutex
	lastOptions map[string][]ButtonOption
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService() (*TwilioService, error) {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	from := os.Getenv("TWILIO_WHATSAPP_FROM") // Format: "whatsapp:+14155238886"

	if accountSid == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials in environment variables")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	return &TwilioService{
		client:       client,
		whatsappFrom: from,
		lastOptions:  make(map[string][]ButtonOption),
	}, nil
}

// SendText sends a plain WhatsApp message.
func (t *TwilioService) SendText(identity, text string) error {
	// A plain question supersedes any option list still remembered for
	// this identity; without this a numeric answer (e.g. a person
	// count) would resolve against a stale list.
	t.forgetOptions(identity)
	return t.send(identity, text, "")
}

// SendButtons sends a message with tappable options rendered as a
// numbered list.
func (t *TwilioService) SendButtons(identity, text string, options []ButtonOption) error {
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n")
	for i, option := range options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, option.Label)
	}
	b.WriteString("\n\nReply with the option number.")

	t.rememberOptions(identity, options)
	return t.send(identity, b.String(), "")
}

// SendImage sends a media message.
func (t *TwilioService) SendImage(identity, imageURL string) error {
	return t.send(identity, "", imageURL)
}

// PromptContactShare asks for a phone number, offering the sender's
// own WhatsApp number as a one-tap option.
func (t *TwilioService) PromptContactShare(identity, text string) error {
	return t.SendButtons(identity, text, []ButtonOption{
		{Label: "Use this WhatsApp number", Payload: ContactSharePayload},
	})
}

// ResolveReply maps a numeric reply to the payload of the option list
// last sent to the identity. The list is consumed on a successful
// match.
func (t *TwilioService) ResolveReply(identity, body string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(body))
	if err != nil {
		return "", false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	options := t.lastOptions[identity]
	if n < 1 || n > len(options) {
		return "", false
	}
	delete(t.lastOptions, identity)
	return options[n-1].Payload, true
}

func (t *TwilioService) rememberOptions(identity string, options []ButtonOption) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastOptions[identity] = options
}

func (t *TwilioService) forgetOptions(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastOptions, identity)
}

func (t *TwilioService) send(identity, body, mediaURL string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.whatsappFrom)
	params.SetTo("whatsapp:" + strings.TrimPrefix(identity, "whatsapp:"))
	if body != "" {
		params.SetBody(body)
	}
	if mediaURL != "" {
		params.SetMediaUrl([]string{mediaURL})
	}

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		log.Printf("❌ Failed to send WhatsApp message to %s: %v", identity, err)
		return err
	}

	if resp.Sid != nil {
		log.Printf("✅ WhatsApp message sent to %s (SID %s)", identity, *resp.Sid)
	}
	return nil
}
