package services

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/platefull/platefull-backend/internal/dates"
	"github.com/platefull/platefull-backend/internal/models"
	"github.com/platefull/platefull-backend/internal/storage"
)

// sentMessage records one outbound message for assertions.
type sentMessage struct {
	kind     string // "text", "buttons", "image", "contact"
	identity string
	text     string
	options  []ButtonOption
	imageURL string
}

// fakeMessenger records outbound traffic instead of sending it.
type fakeMessenger struct {
	sent []sentMessage
}

func (f *fakeMessenger) SendText(identity, text string) error {
	f.sent = append(f.sent, sentMessage{kind: "text", identity: identity, text: text})
	return nil
}

func (f *fakeMessenger) SendButtons(identity, text string, options []ButtonOption) error {
	f.sent = append(f.sent, sentMessage{kind: "buttons", identity: identity, text: text, options: options})
	return nil
}

func (f *fakeMessenger) SendImage(identity, imageURL string) error {
	f.sent = append(f.sent, sentMessage{kind: "image", identity: identity, imageURL: imageURL})
	return nil
}

func (f *fakeMessenger) PromptContactShare(identity, text string) error {
	f.sent = append(f.sent, sentMessage{kind: "contact", identity: identity, text: text})
	return nil
}

func (f *fakeMessenger) reset() { f.sent = nil }

func (f *fakeMessenger) last(t *testing.T) sentMessage {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return f.sent[len(f.sent)-1]
}

var testToday = time.Date(2022, time.March, 10, 0, 0, 0, 0, time.UTC)

type testBot struct {
	engine    *ConversationEngine
	store     *storage.MemoryStore
	sessions  *SessionManager
	messenger *fakeMessenger
	ledger    *SubscriptionLedger

	vegetarian *models.Preference
	keto       *models.Preference
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()

	store := storage.NewMemoryStore()
	vegetarian, err := store.CreatePreference(&models.Preference{Name: "vegetarian"})
	if err != nil {
		t.Fatalf("seed preference: %v", err)
	}
	// keto deliberately has no recipes.
	keto, err := store.CreatePreference(&models.Preference{Name: "keto"})
	if err != nil {
		t.Fatalf("seed preference: %v", err)
	}
	_, err = store.CreateRecipe(&models.Recipe{
		Name:         "Palak Paneer",
		Description:  "Paneer cubes in a spiced spinach puree.",
		ImageURL:     "https://cdn.example.com/palak.jpg",
		PreferenceID: vegetarian.ID,
		Ingredients: []models.RecipeIngredient{
			{Name: "paneer", AmountPerPerson: 150, Unit: "g"},
			{Name: "spinach", AmountPerPerson: 200, Unit: "g"},
		},
	})
	if err != nil {
		t.Fatalf("seed recipe: %v", err)
	}

	clock := func() time.Time { return testToday }
	messenger := &fakeMessenger{}
	sessions := NewSessionManager()
	ledger := NewSubscriptionLedger(store, clock)
	engine := NewConversationEngine(
		store,
		sessions,
		NewUserDirectory(store),
		ledger,
		NewRecipeSelector(store, rand.New(rand.NewSource(1))),
		messenger,
		NewE164Validator(),
		"IN",
	)

	return &testBot{
		engine:     engine,
		store:      store,
		sessions:   sessions,
		messenger:  messenger,
		ledger:     ledger,
		vegetarian: vegetarian,
		keto:       keto,
	}
}

func (b *testBot) handle(t *testing.T, event Event) {
	t.Helper()
	if err := b.engine.HandleEvent(event); err != nil {
		t.Fatalf("HandleEvent(%T): %v", event, err)
	}
}

func (b *testBot) tap(t *testing.T, identity, payload string) {
	t.Helper()
	b.handle(t, &ButtonTapped{Identity: identity, Action: ParseAction(payload)})
}

// register runs the happy-path registration flow for an identity.
func (b *testBot) register(t *testing.T, identity, name string) *models.Customer {
	t.Helper()
	b.handle(t, &TextMessage{Identity: identity, ProfileName: name, Text: "hi"})
	b.tap(t, identity, "name_confirm_yes")
	b.handle(t, &ContactShared{Identity: identity, PhoneNumber: identity})
	customer, err := b.store.GetCustomerByIdentity(identity)
	if err != nil {
		t.Fatalf("customer not registered: %v", err)
	}
	b.messenger.reset()
	return customer
}

func (b *testBot) state(t *testing.T, identity string) SessionState {
	t.Helper()
	session := b.sessions.Get(identity)
	if session == nil {
		t.Fatalf("no session for %s", identity)
	}
	return session.State
}

func TestRegistrationFlow(t *testing.T) {
	bot := newTestBot(t)
	identity := "+919800000001"

	// Any first message from an unknown identity prompts name confirmation.
	bot.handle(t, &TextMessage{Identity: identity, ProfileName: "Asha", Text: "hello"})
	prompt := bot.messenger.last(t)
	if prompt.kind != "buttons" || len(prompt.options) != 2 {
		t.Fatalf("want name confirmation buttons, got %+v", prompt)
	}
	if got := bot.state(t, identity); got != StateSelectingAction {
		t.Fatalf("state = %v, want selecting_action", got)
	}

	// Confirm the profile name, get the phone prompt.
	bot.tap(t, identity, "name_confirm_yes")
	if got := bot.messenger.last(t); got.kind != "contact" {
		t.Fatalf("want contact share prompt, got %+v", got)
	}
	if got := bot.state(t, identity); got != StateAwaitingPhone {
		t.Fatalf("state = %v, want awaiting_phone", got)
	}

	// Share a contact; registration completes and the main menu shows.
	bot.handle(t, &ContactShared{Identity: identity, PhoneNumber: "+15550001234"})
	menu := bot.messenger.last(t)
	if menu.kind != "buttons" || len(menu.options) != 2 {
		t.Fatalf("want main menu, got %+v", menu)
	}
	if got := bot.state(t, identity); got != StateSelectingAction {
		t.Fatalf("state = %v, want selecting_action", got)
	}

	customer, err := bot.store.GetCustomerByIdentity(identity)
	if err != nil {
		t.Fatalf("customer not created: %v", err)
	}
	if customer.Name != "Asha" {
		t.Errorf("name = %q, want Asha", customer.Name)
	}
	if customer.Phone != "+15550001234" {
		t.Errorf("phone = %q, want +15550001234", customer.Phone)
	}
}

func TestRegistrationWithNewName(t *testing.T) {
	bot := newTestBot(t)
	identity := "+919800000002"

	bot.handle(t, &TextMessage{Identity: identity, ProfileName: "wa-user-42", Text: "hi"})
	bot.tap(t, identity, "name_confirm_no")
	if got := bot.state(t, identity); got != StateAwaitingName {
		t.Fatalf("state = %v, want awaiting_name", got)
	}

	// Blank input re-prompts without leaving the state.
	bot.handle(t, &TextMessage{Identity: identity, Text: "   "})
	if got := bot.state(t, identity); got != StateAwaitingName {
		t.Fatalf("state after blank name = %v, want awaiting_name", got)
	}

	bot.handle(t, &TextMessage{Identity: identity, Text: "Bram"})
	confirm := bot.messenger.last(t)
	if confirm.kind != "buttons" {
		t.Fatalf("want name confirmation buttons, got %+v", confirm)
	}
	bot.tap(t, identity, "name_confirm_yes")
	bot.handle(t, &TextMessage{Identity: identity, Text: "98765 43210"})

	customer, err := bot.store.GetCustomerByIdentity(identity)
	if err != nil {
		t.Fatalf("customer not created: %v", err)
	}
	if customer.Name != "Bram" {
		t.Errorf("name = %q, want Bram", customer.Name)
	}
	if customer.Phone != "+919876543210" {
		t.Errorf("phone = %q, want normalized +919876543210", customer.Phone)
	}
}

func TestInvalidPhoneReprompts(t *testing.T) {
	bot := newTestBot(t)
	identity := "+919800000003"

	bot.handle(t, &TextMessage{Identity: identity, ProfileName: "Chitra", Text: "hi"})
	bot.tap(t, identity, "name_confirm_yes")

	bot.handle(t, &TextMessage{Identity: identity, Text: "call me maybe"})
	if got := bot.messenger.last(t); got.kind != "contact" {
		t.Fatalf("want phone re-prompt, got %+v", got)
	}
	if got := bot.state(t, identity); got != StateAwaitingPhone {
		t.Fatalf("state = %v, want awaiting_phone", got)
	}
	if _, err := bot.store.GetCustomerByIdentity(identity); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("customer must not exist yet, got err=%v", err)
	}

	bot.handle(t, &TextMessage{Identity: identity, Text: "+919876500001"})
	if _, err := bot.store.GetCustomerByIdentity(identity); err != nil {
		t.Fatalf("customer not created after valid phone: %v", err)
	}
}

func TestKnownIdentityGreeting(t *testing.T) {
	bot := newTestBot(t)
	identity := "+919800000004"
	bot.register(t, identity, "Asha")

	// Fresh session (e.g. after restart) greets and shows the menu.
	bot.sessions.Reset(identity)
	bot.handle(t, &TextMessage{Identity: identity, Text: "hello again"})

	if len(bot.messenger.sent) != 2 {
		t.Fatalf("want greeting + menu, got %d messages", len(bot.messenger.sent))
	}
	if bot.messenger.sent[0].kind != "text" {
		t.Errorf("first message should be the greeting text, got %+v", bot.messenger.sent[0])
	}
	if menu := bot.messenger.sent[1]; menu.kind != "buttons" || len(menu.options) != 2 {
		t.Errorf("second message should be the main menu, got %+v", menu)
	}
}

func TestPurchaseFlow(t *testing.T) {
	bot := newTestBot(t)
	identity := "+919800000005"
	customer := bot.register(t, identity, "Asha")

	bot.tap(t, identity, "menu_new_subscription")
	periods := bot.messenger.last(t)
	if periods.kind != "buttons" || len(periods.options) != 4 {
		t.Fatalf("want four period options, got %+v", periods)
	}

	bot.tap(t, identity, "period_select:3")
	menus := bot.messenger.last(t)
	if menus.kind != "buttons" || len(menus.options) != 2 {
		t.Fatalf("want preference options, got %+v", menus)
	}

	bot.tap(t, identity, fmt.Sprintf("preference_select:%d", bot.vegetarian.ID))
	if got := bot.state(t, identity); got != StateAwaitingPersonCount {
		t.Fatalf("state = %v, want awaiting_person_count", got)
	}

	bot.handle(t, &TextMessage{Identity: identity, Text: "4"})
	confirm := bot.messenger.last(t)
	if confirm.kind != "buttons" || len(confirm.options) != 2 {
		t.Fatalf("want pay/cancel buttons, got %+v", confirm)
	}

	bot.tap(t, identity, "pay_confirm")

	subscriptions, err := bot.store.SubscriptionsForOwner(customer.ID)
	if err != nil {
		t.Fatalf("list subscriptions: %v", err)
	}
	if len(subscriptions) != 1 {
		t.Fatalf("want 1 subscription, got %d", len(subscriptions))
	}
	subscription := subscriptions[0]
	if subscription.Persons != 4 {
		t.Errorf("persons = %d, want 4", subscription.Persons)
	}
	if subscription.PreferenceID != bot.vegetarian.ID {
		t.Errorf("preference = %d, want %d", subscription.PreferenceID, bot.vegetarian.ID)
	}
	if !subscription.RegisteredOn.Equal(testToday) {
		t.Errorf("registered on %v, want %v", subscription.RegisteredOn, testToday)
	}
	if want := dates.AddMonths(testToday, 3); !subscription.PaidUntil.Equal(want) {
		t.Errorf("paid until %v, want %v", subscription.PaidUntil, want)
	}

	// The draft is gone: another pay tap must not create a second record.
	bot.tap(t, identity, "pay_confirm")
	subscriptions, _ = bot.store.SubscriptionsForOwner(customer.ID)
	if len(subscriptions) != 1 {
		t.Fatalf("stale pay created a duplicate, got %d subscriptions", len(subscriptions))
	}
}

func TestPersonCountValidation(t *testing.T) {
	bot := newTestBot(t)
	identity := "+919800000006"
	bot.register(t, identity, "Asha")

	bot.tap(t, identity, "menu_new_subscription")
	bot.tap(t, identity, "period_select:1")
	bot.tap(t, identity, fmt.Sprintf("preference_select:%d", bot.vegetarian.ID))

	for _, bad := range []string{"abc", "0", "-2", "2.5", ""} {
		bot.handle(t, &TextMessage{Identity: identity, Text: bad})
		if got := bot.state(t, identity); got != StateAwaitingPersonCount {
			t.Fatalf("after %q state = %v, want awaiting_person_count", bad, got)
		}
	}

	bot.handle(t, &TextMessage{Identity: identity, Text: "2"})
	if got := bot.state(t, identity); got != StateSelectingAction {
		t.Fatalf("state = %v, want selecting_action", got)
	}
}

func TestCancelDiscardsDraft(t *testing.T) {
	bot := newTestBot(t)
	identity := "+919800000007"
	customer := bot.register(t, identity, "Asha")

	bot.tap(t, identity, "menu_new_subscription")
	bot.tap(t, identity, "period_select:6")
	bot.tap(t, identity, fmt.Sprintf("preference_select:%d", bot.vegetarian.ID))
	bot.handle(t, &TextMessage{Identity: identity, Text: "3"})
	bot.tap(t, identity, "pay_cancel")

	subscriptions, _ := bot.store.SubscriptionsForOwner(customer.ID)
	if len(subscriptions) != 0 {
		t.Fatalf("cancel still created %d subscriptions", len(subscriptions))
	}

	// A pay tap after cancelling is stale and must do nothing.
	bot.messenger.reset()
	bot.tap(t, identity, "pay_confirm")
	if len(bot.messenger.sent) != 0 {
		t.Fatalf("stale pay produced %d messages", len(bot.messenger.sent))
	}
	subscriptions, _ = bot.store.SubscriptionsForOwner(customer.ID)
	if len(subscriptions) != 0 {
		t.Fatalf("stale pay created %d subscriptions", len(subscriptions))
	}
}

func TestUnknownActionIgnored(t *testing.T) {
	bot := newTestBot(t)
	identity := "+919800000008"
	bot.register(t, identity, "Asha")

	bot.tap(t, identity, "made_up_payload")
	if len(bot.messenger.sent) != 0 {
		t.Fatalf("unknown action produced %d messages", len(bot.messenger.sent))
	}
	if got := bot.state(t, identity); got != StateSelectingAction {
		t.Fatalf("state = %v, want selecting_action", got)
	}

	// Stray text in the hub state is dropped the same way.
	bot.handle(t, &TextMessage{Identity: identity, Text: "anyone there?"})
	if len(bot.messenger.sent) != 0 {
		t.Fatalf("stray text produced %d messages", len(bot.messenger.sent))
	}
}

func TestListSubscriptionsEmpty(t *testing.T) {
	bot := newTestBot(t)
	identity := "+919800000009"
	bot.register(t, identity, "Asha")

	bot.tap(t, identity, "menu_list_subscriptions")
	if len(bot.messenger.sent) != 2 {
		t.Fatalf("want notice + menu, got %d messages", len(bot.messenger.sent))
	}
	if bot.messenger.sent[0].kind != "text" {
		t.Errorf("first message should say there are no subscriptions, got %+v", bot.messenger.sent[0])
	}
}

func TestServeRecipe(t *testing.T) {
	bot := newTestBot(t)
	identity := "+919800000010"
	customer := bot.register(t, identity, "Asha")

	subscription, err := bot.ledger.Create(customer, bot.vegetarian.ID, 3, 6)
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	bot.tap(t, identity, "menu_list_subscriptions")
	listing := bot.messenger.last(t)
	if listing.kind != "buttons" || len(listing.options) != 1 {
		t.Fatalf("want one subscription option, got %+v", listing)
	}
	wantPayload := "subscription_select:" + subscription.SubscriptionID
	if listing.options[0].Payload != wantPayload {
		t.Fatalf("option payload = %q, want %q", listing.options[0].Payload, wantPayload)
	}

	bot.messenger.reset()
	bot.tap(t, identity, wantPayload)

	// Name, image, ingredients, description, then the main menu.
	if len(bot.messenger.sent) != 5 {
		t.Fatalf("want 5 messages, got %d: %+v", len(bot.messenger.sent), bot.messenger.sent)
	}
	if bot.messenger.sent[0].text != "Palak Paneer" {
		t.Errorf("first message = %q, want recipe name", bot.messenger.sent[0].text)
	}
	if bot.messenger.sent[1].kind != "image" {
		t.Errorf("second message should be the image, got %+v", bot.messenger.sent[1])
	}
	ingredients := bot.messenger.sent[2].text
	// 3 persons: 150g paneer -> 450, 200g spinach -> 600.
	for _, want := range []string{"paneer - 450 g", "spinach - 600 g"} {
		if !strings.Contains(ingredients, want) {
			t.Errorf("ingredient list %q missing %q", ingredients, want)
		}
	}
	if bot.messenger.sent[3].text != "Paneer cubes in a spiced spinach puree." {
		t.Errorf("fourth message = %q, want description", bot.messenger.sent[3].text)
	}
	if menu := bot.messenger.sent[4]; menu.kind != "buttons" {
		t.Errorf("final message should be the main menu, got %+v", menu)
	}
}

func TestStaleSubscriptionButton(t *testing.T) {
	bot := newTestBot(t)
	identity := "+919800000011"
	bot.register(t, identity, "Asha")

	bot.tap(t, identity, "subscription_select:no-such-id")
	if len(bot.messenger.sent) != 2 {
		t.Fatalf("want notice + menu, got %d messages", len(bot.messenger.sent))
	}
	if got := bot.state(t, identity); got != StateSelectingAction {
		t.Fatalf("state = %v, want selecting_action", got)
	}
}

func TestNoRecipeAvailable(t *testing.T) {
	bot := newTestBot(t)
	identity := "+919800000012"
	customer := bot.register(t, identity, "Asha")

	subscription, err := bot.ledger.Create(customer, bot.keto.ID, 2, 1)
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	bot.tap(t, identity, "subscription_select:"+subscription.SubscriptionID)
	if len(bot.messenger.sent) != 2 {
		t.Fatalf("want apology + menu, got %d messages", len(bot.messenger.sent))
	}
	if bot.messenger.sent[0].kind != "text" {
		t.Errorf("first message should be the apology, got %+v", bot.messenger.sent[0])
	}
}

// failingStore wraps a Store and fails subscription creation, to model
// a storage outage.
type failingStore struct {
	storage.Store
}

func (f *failingStore) CreateSubscription(s *models.Subscription) (*models.Subscription, error) {
	return nil, errors.New("connection refused")
}

func TestStorageFailureKeepsDraft(t *testing.T) {
	bot := newTestBot(t)
	identity := "+919800000013"
	customer := bot.register(t, identity, "Asha")

	broken := &failingStore{Store: bot.store}
	bot.engine.ledger = NewSubscriptionLedger(broken, func() time.Time { return testToday })

	bot.tap(t, identity, "menu_new_subscription")
	bot.tap(t, identity, "period_select:3")
	bot.tap(t, identity, fmt.Sprintf("preference_select:%d", bot.vegetarian.ID))
	bot.handle(t, &TextMessage{Identity: identity, Text: "2"})

	err := bot.engine.HandleEvent(&ButtonTapped{Identity: identity, Action: ParseAction("pay_confirm")})
	if err == nil {
		t.Fatal("want error from failing store")
	}
	if got := bot.state(t, identity); got != StateSelectingAction {
		t.Fatalf("state = %v, want selecting_action", got)
	}

	// Storage recovers; the same pay tap succeeds with the kept draft.
	bot.engine.ledger = NewSubscriptionLedger(bot.store, func() time.Time { return testToday })
	bot.tap(t, identity, "pay_confirm")

	subscriptions, _ := bot.store.SubscriptionsForOwner(customer.ID)
	if len(subscriptions) != 1 {
		t.Fatalf("want 1 subscription after retry, got %d", len(subscriptions))
	}
	if subscriptions[0].Persons != 2 {
		t.Errorf("persons = %d, want 2 from the kept draft", subscriptions[0].Persons)
	}
}

func TestReregistrationLoadsExistingCustomer(t *testing.T) {
	bot := newTestBot(t)
	identity := "+919800000014"
	first := bot.register(t, identity, "Asha")

	// Force the registration flow again for the same identity.
	bot.sessions.Reset(identity)
	session, _ := bot.sessions.GetOrCreate(identity)
	session.State = StateAwaitingPhone
	session.PendingName = "Asha Again"

	bot.handle(t, &ContactShared{Identity: identity, PhoneNumber: identity})

	customers, _ := bot.store.GetAllCustomers()
	if len(customers) != 1 {
		t.Fatalf("re-registration created a duplicate row: %d customers", len(customers))
	}
	if customers[0].ID != first.ID {
		t.Errorf("existing customer should be reused")
	}
}
