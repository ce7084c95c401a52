package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/platefull/platefull-backend/internal/models"
	"github.com/platefull/platefull-backend/internal/storage"
)

// ConversationEngine drives the per-user dialogue: registration
// (name -> phone) and subscription purchase (period -> preference ->
// persons -> pay). Each identity's events are processed strictly in
// order under the session lock; different identities run in parallel.
type ConversationEngine struct {
	store     storage.Store
	sessions  *SessionManager
	directory *UserDirectory
	ledger    *SubscriptionLedger
	recipes   *RecipeSelector
	messenger Messenger
	phones    PhoneValidator
	region    string
}

// NewConversationEngine wires the engine. Region is the hint handed to
// the phone validator for numbers typed in local form.
func NewConversationEngine(
	store storage.Store,
	sessions *SessionManager,
	directory *UserDirectory,
	ledger *SubscriptionLedger,
	recipes *RecipeSelector,
	messenger Messenger,
	phones PhoneValidator,
	region string,
) *ConversationEngine {
	return &ConversationEngine{
		store:     store,
		sessions:  sessions,
		directory: directory,
		ledger:    ledger,
		recipes:   recipes,
		messenger: messenger,
		phones:    phones,
		region:    region,
	}
}

// HandleEvent processes one inbound event. A returned error means a
// collaborator failed and the session state was left untouched so the
// user can retry; the transport replies with a generic failure text.
func (e *ConversationEngine) HandleEvent(event Event) error {
	identity := event.EventIdentity()
	session, created := e.sessions.GetOrCreate(identity)

	session.mu.Lock()
	defer session.mu.Unlock()

	if created {
		return e.handleFirstContact(session, event)
	}

	switch session.State {
	case StateAwaitingName:
		return e.handleAwaitingName(session, event)
	case StateAwaitingPhone:
		return e.handleAwaitingPhone(session, event)
	case StateAwaitingPersonCount:
		return e.handleAwaitingPersonCount(session, event)
	case StateSelectingAction:
		return e.handleSelectingAction(session, event)
	}

	log.Printf("session %s in unknown state %d, ignoring event", identity, session.State)
	return nil
}

// handleFirstContact greets a returning customer or starts
// registration for a new one. Runs on the first event of a fresh
// session regardless of the event's shape.
func (e *ConversationEngine) handleFirstContact(session *Session, event Event) error {
	customer, err := e.directory.Lookup(session.Identity)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		// Drop the session so the next message retries first contact.
		e.sessions.Reset(session.Identity)
		return err
	}

	if customer != nil {
		session.Customer = customer
		session.State = StateSelectingAction
		if err := e.messenger.SendText(session.Identity, fmt.Sprintf("Welcome back, %s!", customer.Name)); err != nil {
			return err
		}
		return e.sendMainMenu(session)
	}

	session.PendingName = displayName(event)
	session.State = StateSelectingAction
	return e.promptNameConfirmation(session)
}

func (e *ConversationEngine) handleAwaitingName(session *Session, event Event) error {
	text, ok := event.(*TextMessage)
	if !ok {
		log.Printf("ignoring %T from %s while awaiting a name", event, session.Identity)
		return nil
	}

	name := strings.TrimSpace(text.Text)
	if name == "" {
		return e.messenger.SendText(session.Identity, "What should we call you?")
	}

	session.PendingName = name
	session.State = StateSelectingAction
	return e.promptNameConfirmation(session)
}

func (e *ConversationEngine) handleAwaitingPhone(session *Session, event Event) error {
	switch ev := event.(type) {
	case *ContactShared:
		return e.finishRegistration(session, ev.PhoneNumber)
	case *TextMessage:
		if !e.phones.IsValid(ev.Text, e.region) {
			return e.promptPhone(session)
		}
		return e.finishRegistration(session, ev.Text)
	default:
		log.Printf("ignoring %T from %s while awaiting a phone number", event, session.Identity)
		return nil
	}
}

// finishRegistration persists the customer and lands the session in
// the hub state. The session is only mutated after the store write
// succeeds, so a storage failure leaves the user free to retry.
func (e *ConversationEngine) finishRegistration(session *Session, phone string) error {
	customer, err := e.directory.Register(session.Identity, session.PendingName, NormalizePhone(phone, e.region))
	if err != nil {
		return err
	}

	session.Customer = customer
	session.PendingName = ""
	session.State = StateSelectingAction

	if err := e.messenger.SendText(session.Identity, "Registration complete. Welcome to Platefull!"); err != nil {
		return err
	}
	return e.sendMainMenu(session)
}

func (e *ConversationEngine) handleAwaitingPersonCount(session *Session, event Event) error {
	text, ok := event.(*TextMessage)
	if !ok {
		log.Printf("ignoring %T from %s while awaiting a person count", event, session.Identity)
		return nil
	}

	persons, err := strconv.Atoi(strings.TrimSpace(text.Text))
	if err != nil || persons < 1 {
		return e.messenger.SendText(session.Identity, "How many persons should we cook for? Send a number, for example 2.")
	}

	session.Draft.Persons = persons
	session.State = StateSelectingAction
	return e.messenger.SendButtons(session.Identity,
		fmt.Sprintf("Almost done: %d month(s) of the menu for %d person(s).", session.Draft.Period, persons),
		[]ButtonOption{
			{Label: "Pay", Payload: payloadPayConfirm},
			{Label: "Cancel", Payload: payloadPayCancel},
		})
}

func (e *ConversationEngine) handleSelectingAction(session *Session, event Event) error {
	tapped, ok := event.(*ButtonTapped)
	if !ok {
		// No text is expected in the hub state; preserved behavior is
		// to drop it without a reply.
		log.Printf("ignoring %T from %s in the action hub", event, session.Identity)
		return nil
	}

	switch tapped.Action.Kind {
	case ActionNameConfirmNo:
		session.State = StateAwaitingName
		return e.messenger.SendText(session.Identity, "What should we call you?")

	case ActionNameConfirmYes:
		if session.Customer != nil {
			log.Printf("stale name confirmation from registered %s, ignoring", session.Identity)
			return nil
		}
		session.State = StateAwaitingPhone
		return e.promptPhone(session)

	case ActionNewSubscription:
		return e.promptPeriod(session)

	case ActionListSubscriptions:
		return e.listSubscriptions(session)

	case ActionSelectSubscription:
		return e.serveRecipe(session, tapped.Action.SubscriptionID)

	case ActionSelectPeriod:
		session.Draft.Period = tapped.Action.Period
		return e.promptPreference(session)

	case ActionSelectPreference:
		return e.choosePreference(session, tapped.Action.PreferenceID)

	case ActionPayConfirm:
		return e.completePurchase(session)

	case ActionPayCancel:
		session.ResetDraft()
		if err := e.messenger.SendText(session.Identity, "Subscription order cancelled."); err != nil {
			return err
		}
		return e.sendMainMenu(session)

	default:
		log.Printf("unknown action payload from %s, ignoring", session.Identity)
		return nil
	}
}

func (e *ConversationEngine) listSubscriptions(session *Session) error {
	if session.Customer == nil {
		log.Printf("subscription list requested by unregistered %s, ignoring", session.Identity)
		return nil
	}

	subscriptions, err := e.ledger.ListActive(session.Customer.ID)
	if err != nil {
		return err
	}

	if len(subscriptions) == 0 {
		if err := e.messenger.SendText(session.Identity, "You have no active subscriptions."); err != nil {
			return err
		}
		return e.sendMainMenu(session)
	}

	options := make([]ButtonOption, 0, len(subscriptions))
	for _, subscription := range subscriptions {
		preference, err := e.store.GetPreference(subscription.PreferenceID)
		if err != nil {
			return err
		}
		options = append(options, ButtonOption{
			Label:   fmt.Sprintf("%s until %s", preference.Name, subscription.PaidUntil.Format("2006-01-02")),
			Payload: subscriptionPayload(subscription.SubscriptionID),
		})
	}
	return e.messenger.SendButtons(session.Identity, "Your active subscriptions:", options)
}

// serveRecipe sends a random recipe from the subscription's
// preference with amounts scaled to its person count.
func (e *ConversationEngine) serveRecipe(session *Session, subscriptionID string) error {
	subscription, err := e.store.GetSubscription(subscriptionID)
	if errors.Is(err, storage.ErrNotFound) {
		if err := e.messenger.SendText(session.Identity, "That subscription is no longer available."); err != nil {
			return err
		}
		return e.sendMainMenu(session)
	}
	if err != nil {
		return err
	}
	if session.Customer == nil || subscription.OwnerID != session.Customer.ID {
		log.Printf("subscription %s tapped by non-owner %s, ignoring", subscriptionID, session.Identity)
		return nil
	}

	recipe, err := e.recipes.PickRandom(subscription.PreferenceID)
	if errors.Is(err, ErrNoRecipeAvailable) {
		if err := e.messenger.SendText(session.Identity, "Sorry, no recipes are available for this menu right now."); err != nil {
			return err
		}
		return e.sendMainMenu(session)
	}
	if err != nil {
		return err
	}

	if err := e.messenger.SendText(session.Identity, recipe.Name); err != nil {
		return err
	}
	if recipe.ImageURL != "" {
		if err := e.messenger.SendImage(session.Identity, recipe.ImageURL); err != nil {
			return err
		}
	}
	if list := formatIngredients(recipe, subscription.Persons); list != "" {
		if err := e.messenger.SendText(session.Identity, list); err != nil {
			return err
		}
	}
	if recipe.Description != "" {
		if err := e.messenger.SendText(session.Identity, recipe.Description); err != nil {
			return err
		}
	}
	return e.sendMainMenu(session)
}

func (e *ConversationEngine) choosePreference(session *Session, preferenceID uint) error {
	if session.Draft.Period == 0 {
		log.Printf("preference tapped by %s with no period chosen, ignoring", session.Identity)
		return nil
	}

	preference, err := e.store.GetPreference(preferenceID)
	if errors.Is(err, storage.ErrNotFound) {
		return e.promptPreference(session)
	}
	if err != nil {
		return err
	}

	session.Draft.PreferenceID = preference.ID
	session.State = StateAwaitingPersonCount
	if err := e.messenger.SendText(session.Identity, fmt.Sprintf("Menu chosen: %s.", preference.Name)); err != nil {
		return err
	}
	return e.messenger.SendText(session.Identity, "How many persons should we cook for?")
}

// completePurchase is the "pay" confirmation stub: it materializes the
// subscription record, no money moves.
func (e *ConversationEngine) completePurchase(session *Session) error {
	if session.Customer == nil || !session.Draft.Complete() {
		log.Printf("stale pay confirmation from %s, ignoring", session.Identity)
		return nil
	}

	subscription, err := e.ledger.Create(session.Customer, session.Draft.PreferenceID, session.Draft.Persons, session.Draft.Period)
	if err != nil {
		// Draft is kept: the same pay tap can be retried.
		return err
	}

	session.ResetDraft()
	confirmation := fmt.Sprintf("Your subscription is confirmed and paid until %s. Enjoy!",
		subscription.PaidUntil.Format("2006-01-02"))
	if err := e.messenger.SendText(session.Identity, confirmation); err != nil {
		return err
	}
	return e.sendMainMenu(session)
}

// Prompts

func (e *ConversationEngine) promptNameConfirmation(session *Session) error {
	return e.messenger.SendButtons(session.Identity,
		fmt.Sprintf("Hello %s! Should we use that name?", session.PendingName),
		[]ButtonOption{
			{Label: "Yes, that's my name", Payload: payloadNameConfirmYes},
			{Label: "No, another name", Payload: payloadNameConfirmNo},
		})
}

func (e *ConversationEngine) promptPhone(session *Session) error {
	return e.messenger.PromptContactShare(session.Identity,
		"Which phone number should we keep on file? Share your number or type it in.")
}

func (e *ConversationEngine) promptPeriod(session *Session) error {
	options := make([]ButtonOption, 0, len(models.SubscriptionPeriods))
	for _, months := range models.SubscriptionPeriods {
		options = append(options, ButtonOption{
			Label:   fmt.Sprintf("%d", months),
			Payload: periodPayload(months),
		})
	}
	return e.messenger.SendButtons(session.Identity, "For how many months would you like to subscribe?", options)
}

func (e *ConversationEngine) promptPreference(session *Session) error {
	preferences, err := e.store.ListPreferences()
	if err != nil {
		return err
	}
	options := make([]ButtonOption, 0, len(preferences))
	for _, preference := range preferences {
		options = append(options, ButtonOption{
			Label:   preference.Name,
			Payload: preferencePayload(preference.ID),
		})
	}
	return e.messenger.SendButtons(session.Identity, "Which menu would you like?", options)
}

func (e *ConversationEngine) sendMainMenu(session *Session) error {
	return e.messenger.SendButtons(session.Identity, "What would you like to do?", []ButtonOption{
		{Label: "New subscription", Payload: payloadNewSubscription},
		{Label: "My subscriptions", Payload: payloadListSubscriptions},
	})
}

func formatIngredients(recipe *models.Recipe, persons int) string {
	ingredients := ScaledIngredients(recipe, persons)
	if len(ingredients) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Ingredients:")
	for _, ingredient := range ingredients {
		fmt.Fprintf(&b, "\n%s - %g %s", ingredient.Name, ingredient.Amount, ingredient.Unit)
	}
	return b.String()
}

// displayName extracts the platform profile name carried on the first
// event, for the name-confirmation prompt.
func displayName(event Event) string {
	var name string
	switch ev := event.(type) {
	case *TextMessage:
		name = ev.ProfileName
	case *ButtonTapped:
		name = ev.ProfileName
	}
	if strings.TrimSpace(name) == "" {
		return "friend"
	}
	return strings.TrimSpace(name)
}
