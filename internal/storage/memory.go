package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platefull/platefull-backend/internal/models"
)

// MemoryStore holds all data in memory for development and tests
type MemoryStore struct {
	customers   map[uint]*models.Customer
	byIdentity  map[string]uint
	preferences map[uint]*models.Preference
	recipes     map[uint]*models.Recipe

	// Subscriptions keep a slice so listings come back in insertion order.
	subscriptions []*models.Subscription
	byReference   map[string]*models.Subscription

	// Mutexes for thread safety
	customerMu     sync.RWMutex
	catalogMu      sync.RWMutex
	subscriptionMu sync.RWMutex

	// Counters for ID generation
	customerCounter     uint
	preferenceCounter   uint
	recipeCounter       uint
	ingredientCounter   uint
	subscriptionCounter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers:   make(map[uint]*models.Customer),
		byIdentity:  make(map[string]uint),
		preferences: make(map[uint]*models.Preference),
		recipes:     make(map[uint]*models.Recipe),
		byReference: make(map[string]*models.Subscription),
	}
}

// Customer operations

func (m *MemoryStore) CreateCustomer(customer *models.Customer) (*models.Customer, error) {
	m.customerMu.Lock()
	defer m.customerMu.Unlock()

	identity := strings.TrimPrefix(strings.TrimSpace(customer.Identity), "whatsapp:")
	if _, exists := m.byIdentity[identity]; exists {
		return nil, fmt.Errorf("customer %q: %w", identity, ErrDuplicateIdentity)
	}

	m.customerCounter++
	stored := &models.Customer{
		CustomerID: fmt.Sprintf("CU%05d", m.customerCounter),
		Identity:   identity,
		Name:       customer.Name,
		Phone:      customer.Phone,
	}
	stored.ID = m.customerCounter
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt

	m.customers[stored.ID] = stored
	m.byIdentity[identity] = stored.ID
	return stored, nil
}

func (m *MemoryStore) GetCustomerByIdentity(identity string) (*models.Customer, error) {
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	id, exists := m.byIdentity[strings.TrimPrefix(identity, "whatsapp:")]
	if !exists {
		return nil, fmt.Errorf("customer %q: %w", identity, ErrNotFound)
	}
	return m.customers[id], nil
}

func (m *MemoryStore) GetCustomerByID(id uint) (*models.Customer, error) {
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	customer, exists := m.customers[id]
	if !exists {
		return nil, fmt.Errorf("customer #%d: %w", id, ErrNotFound)
	}
	return customer, nil
}

func (m *MemoryStore) GetAllCustomers() ([]*models.Customer, error) {
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	customers := make([]*models.Customer, 0, len(m.customers))
	for id := uint(1); id <= m.customerCounter; id++ {
		if customer, exists := m.customers[id]; exists {
			customers = append(customers, customer)
		}
	}
	return customers, nil
}

// Preference operations

func (m *MemoryStore) CreatePreference(preference *models.Preference) (*models.Preference, error) {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	m.preferenceCounter++
	stored := &models.Preference{Name: preference.Name}
	stored.ID = m.preferenceCounter
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt

	m.preferences[stored.ID] = stored
	return stored, nil
}

func (m *MemoryStore) GetPreference(id uint) (*models.Preference, error) {
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()

	preference, exists := m.preferences[id]
	if !exists {
		return nil, fmt.Errorf("preference #%d: %w", id, ErrNotFound)
	}
	return preference, nil
}

func (m *MemoryStore) ListPreferences() ([]*models.Preference, error) {
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()

	preferences := make([]*models.Preference, 0, len(m.preferences))
	for id := uint(1); id <= m.preferenceCounter; id++ {
		if preference, exists := m.preferences[id]; exists {
			preferences = append(preferences, preference)
		}
	}
	return preferences, nil
}

// Recipe operations

func (m *MemoryStore) CreateRecipe(recipe *models.Recipe) (*models.Recipe, error) {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	if _, exists := m.preferences[recipe.PreferenceID]; !exists {
		return nil, fmt.Errorf("preference #%d: %w", recipe.PreferenceID, ErrNotFound)
	}

	m.recipeCounter++
	stored := &models.Recipe{
		Name:         recipe.Name,
		Description:  recipe.Description,
		ImageURL:     recipe.ImageURL,
		PreferenceID: recipe.PreferenceID,
	}
	stored.ID = m.recipeCounter
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt

	for i, ingredient := range recipe.Ingredients {
		m.ingredientCounter++
		line := models.RecipeIngredient{
			RecipeID:        stored.ID,
			Position:        i + 1,
			Name:            ingredient.Name,
			AmountPerPerson: ingredient.AmountPerPerson,
			Unit:            ingredient.Unit,
		}
		line.ID = m.ingredientCounter
		stored.Ingredients = append(stored.Ingredients, line)
	}

	m.recipes[stored.ID] = stored
	return stored, nil
}

func (m *MemoryStore) RecipesByPreference(preferenceID uint) ([]*models.Recipe, error) {
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()

	var recipes []*models.Recipe
	for id := uint(1); id <= m.recipeCounter; id++ {
		if recipe, exists := m.recipes[id]; exists && recipe.PreferenceID == preferenceID {
			recipes = append(recipes, recipe)
		}
	}
	return recipes, nil
}

// Subscription operations

func (m *MemoryStore) CreateSubscription(subscription *models.Subscription) (*models.Subscription, error) {
	m.subscriptionMu.Lock()
	defer m.subscriptionMu.Unlock()

	m.subscriptionCounter++
	stored := &models.Subscription{
		SubscriptionID: subscription.SubscriptionID,
		OwnerID:        subscription.OwnerID,
		PreferenceID:   subscription.PreferenceID,
		Persons:        subscription.Persons,
		RegisteredOn:   subscription.RegisteredOn,
		PaidUntil:      subscription.PaidUntil,
	}
	if stored.SubscriptionID == "" {
		stored.SubscriptionID = uuid.NewString()
	}
	stored.ID = m.subscriptionCounter
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt

	m.subscriptions = append(m.subscriptions, stored)
	m.byReference[stored.SubscriptionID] = stored
	return stored, nil
}

func (m *MemoryStore) GetSubscription(subscriptionID string) (*models.Subscription, error) {
	m.subscriptionMu.RLock()
	defer m.subscriptionMu.RUnlock()

	subscription, exists := m.byReference[subscriptionID]
	if !exists {
		return nil, fmt.Errorf("subscription %q: %w", subscriptionID, ErrNotFound)
	}
	return subscription, nil
}

func (m *MemoryStore) SubscriptionsForOwner(ownerID uint) ([]*models.Subscription, error) {
	m.subscriptionMu.RLock()
	defer m.subscriptionMu.RUnlock()

	var subscriptions []*models.Subscription
	for _, subscription := range m.subscriptions {
		if subscription.OwnerID == ownerID {
			subscriptions = append(subscriptions, subscription)
		}
	}
	return subscriptions, nil
}

func (m *MemoryStore) ActiveSubscriptionsForOwner(ownerID uint, asOf time.Time) ([]*models.Subscription, error) {
	m.subscriptionMu.RLock()
	defer m.subscriptionMu.RUnlock()

	var subscriptions []*models.Subscription
	for _, subscription := range m.subscriptions {
		if subscription.OwnerID == ownerID && subscription.ActiveAt(asOf) {
			subscriptions = append(subscriptions, subscription)
		}
	}
	return subscriptions, nil
}

func (m *MemoryStore) SubscriptionsExpiringBetween(from, to time.Time) ([]*models.Subscription, error) {
	m.subscriptionMu.RLock()
	defer m.subscriptionMu.RUnlock()

	var subscriptions []*models.Subscription
	for _, subscription := range m.subscriptions {
		if subscription.PaidUntil.After(from) && !subscription.PaidUntil.After(to) {
			subscriptions = append(subscriptions, subscription)
		}
	}
	return subscriptions, nil
}
