package services

import "log"

// ButtonOption is one tappable choice offered to the user.
type ButtonOption struct {
	Label   string
	Payload string
}

// Messenger delivers outbound messages to a chat identity. TwilioService
// is the production implementation; tests use a recording fake and
// development without Twilio credentials falls back to LogMessenger.
type Messenger interface {
	SendText(identity, text string) error
	SendButtons(identity, text string, options []ButtonOption) error
	SendImage(identity, imageURL string) error
	PromptContactShare(identity, text string) error
}

// LogMessenger logs outbound messages instead of sending them, for
// local development without Twilio credentials.
type LogMessenger struct{}

func (LogMessenger) SendText(identity, text string) error {
	log.Printf("📤 (not sent) text to %s: %s", identity, text)
	return nil
}

func (LogMessenger) SendButtons(identity, text string, options []ButtonOption) error {
	log.Printf("📤 (not sent) buttons to %s: %s", identity, text)
	for _, option := range options {
		log.Printf("    [%s] -> %s", option.Label, option.Payload)
	}
	return nil
}

func (LogMessenger) SendImage(identity, imageURL string) error {
	log.Printf("📤 (not sent) image to %s: %s", identity, imageURL)
	return nil
}

func (LogMessenger) PromptContactShare(identity, text string) error {
	log.Printf("📤 (not sent) contact prompt to %s: %s", identity, text)
	return nil
}
