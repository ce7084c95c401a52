package services

import (
	"strconv"
	"strings"
)

// Inbound conversation events, decoded from the transport before they
// reach the engine. The engine never parses webhook payloads itself.

// Event is an inbound conversation event.
type Event interface {
	// EventIdentity returns the chat identity the event came from.
	EventIdentity() string
}

// TextMessage is a free-text message from the user. ProfileName is the
// platform display name, present on every WhatsApp webhook; it seeds
// the name-confirmation prompt on first contact.
type TextMessage struct {
	Identity    string
	ProfileName string
	Text        string
}

// ContactShared means the user chose to register with a phone number
// shared through the platform rather than typed by hand.
type ContactShared struct {
	Identity    string
	PhoneNumber string
}

// ButtonTapped is a quick-reply tap, already decoded into an Action.
type ButtonTapped struct {
	Identity    string
	ProfileName string
	Action      Action
}

func (e *TextMessage) EventIdentity() string   { return e.Identity }
func (e *ContactShared) EventIdentity() string { return e.Identity }
func (e *ButtonTapped) EventIdentity() string  { return e.Identity }

// ActionKind enumerates every button action the bot understands.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionNameConfirmYes
	ActionNameConfirmNo
	ActionNewSubscription
	ActionListSubscriptions
	ActionSelectSubscription
	ActionSelectPeriod
	ActionSelectPreference
	ActionPayConfirm
	ActionPayCancel
)

// Action is a decoded button payload. The argument fields are only
// meaningful for the kind that carries them.
type Action struct {
	Kind           ActionKind
	SubscriptionID string // ActionSelectSubscription
	Period         int    // ActionSelectPeriod, in months
	PreferenceID   uint   // ActionSelectPreference
}

// Wire payload codes. These appear in button metadata sent out and
// come back verbatim when the button is tapped.
const (
	payloadNameConfirmYes     = "name_confirm_yes"
	payloadNameConfirmNo      = "name_confirm_no"
	payloadNewSubscription    = "menu_new_subscription"
	payloadListSubscriptions  = "menu_list_subscriptions"
	payloadSelectSubscription = "subscription_select"
	payloadSelectPeriod       = "period_select"
	payloadSelectPreference   = "preference_select"
	payloadPayConfirm         = "pay_confirm"
	payloadPayCancel          = "pay_cancel"

	// ContactSharePayload marks the "use this WhatsApp number" quick
	// reply; the transport turns it into a ContactShared event.
	ContactSharePayload = "contact_share_self"
)

// ParseAction decodes a button payload into an Action. Anything it
// does not recognize comes back as ActionUnknown; the engine ignores
// those without a reply.
func ParseAction(payload string) Action {
	switch payload {
	case payloadNameConfirmYes:
		return Action{Kind: ActionNameConfirmYes}
	case payloadNameConfirmNo:
		return Action{Kind: ActionNameConfirmNo}
	case payloadNewSubscription:
		return Action{Kind: ActionNewSubscription}
	case payloadListSubscriptions:
		return Action{Kind: ActionListSubscriptions}
	case payloadPayConfirm:
		return Action{Kind: ActionPayConfirm}
	case payloadPayCancel:
		return Action{Kind: ActionPayCancel}
	}

	code, arg, found := strings.Cut(payload, ":")
	if !found {
		return Action{Kind: ActionUnknown}
	}
	switch code {
	case payloadSelectSubscription:
		if arg == "" {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionSelectSubscription, SubscriptionID: arg}
	case payloadSelectPeriod:
		months, err := strconv.Atoi(arg)
		if err != nil || !validPeriod(months) {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionSelectPeriod, Period: months}
	case payloadSelectPreference:
		id, err := strconv.ParseUint(arg, 10, 32)
		if err != nil || id == 0 {
			return Action{Kind: ActionUnknown}
		}
		return Action{Kind: ActionSelectPreference, PreferenceID: uint(id)}
	}
	return Action{Kind: ActionUnknown}
}

func subscriptionPayload(subscriptionID string) string {
	return payloadSelectSubscription + ":" + subscriptionID
}

func periodPayload(months int) string {
	return payloadSelectPeriod + ":" + strconv.Itoa(months)
}

func preferencePayload(id uint) string {
	return payloadSelectPreference + ":" + strconv.FormatUint(uint64(id), 10)
}
