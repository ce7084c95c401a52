package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/platefull/platefull-backend/internal/models"
)

// DatabaseStore implements Store on top of GORM/PostgreSQL
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a database-backed store
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Customer operations

func (s *DatabaseStore) CreateCustomer(customer *models.Customer) (*models.Customer, error) {
	identity := strings.TrimPrefix(strings.TrimSpace(customer.Identity), "whatsapp:")

	var count int64
	if err := s.db.Model(&models.Customer{}).Where("identity = ?", identity).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check identity: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("customer %q: %w", identity, ErrDuplicateIdentity)
	}

	customer.Identity = identity
	if err := s.db.Create(customer).Error; err != nil {
		// The unique index catches the race the count check can miss.
		if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
			return nil, fmt.Errorf("customer %q: %w", identity, ErrDuplicateIdentity)
		}
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return customer, nil
}

func (s *DatabaseStore) GetCustomerByIdentity(identity string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.Where("identity = ?", strings.TrimPrefix(identity, "whatsapp:")).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("customer %q: %w", identity, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &customer, nil
}

func (s *DatabaseStore) GetCustomerByID(id uint) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.First(&customer, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("customer #%d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &customer, nil
}

func (s *DatabaseStore) GetAllCustomers() ([]*models.Customer, error) {
	var customers []*models.Customer
	if err := s.db.Order("id").Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}

// Preference operations

func (s *DatabaseStore) CreatePreference(preference *models.Preference) (*models.Preference, error) {
	if err := s.db.Create(preference).Error; err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}
	return preference, nil
}

func (s *DatabaseStore) GetPreference(id uint) (*models.Preference, error) {
	var preference models.Preference
	err := s.db.First(&preference, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("preference #%d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return &preference, nil
}

func (s *DatabaseStore) ListPreferences() ([]*models.Preference, error) {
	var preferences []*models.Preference
	if err := s.db.Order("id").Find(&preferences).Error; err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return preferences, nil
}

// Recipe operations

func (s *DatabaseStore) CreateRecipe(recipe *models.Recipe) (*models.Recipe, error) {
	if _, err := s.GetPreference(recipe.PreferenceID); err != nil {
		return nil, err
	}
	for i := range recipe.Ingredients {
		recipe.Ingredients[i].Position = i + 1
	}
	if err := s.db.Create(recipe).Error; err != nil {
		return nil, fmt.Errorf("create recipe: %w", err)
	}
	return recipe, nil
}

func (s *DatabaseStore) RecipesByPreference(preferenceID uint) ([]*models.Recipe, error) {
	var recipes []*models.Recipe
	err := s.db.
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("preference_id = ?", preferenceID).
		Order("id").
		Find(&recipes).Error
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return recipes, nil
}

// Subscription operations

func (s *DatabaseStore) CreateSubscription(subscription *models.Subscription) (*models.Subscription, error) {
	if err := s.db.Create(subscription).Error; err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return subscription, nil
}

func (s *DatabaseStore) GetSubscription(subscriptionID string) (*models.Subscription, error) {
	var subscription models.Subscription
	err := s.db.Where("subscription_id = ?", subscriptionID).First(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("subscription %q: %w", subscriptionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &subscription, nil
}

func (s *DatabaseStore) SubscriptionsForOwner(ownerID uint) ([]*models.Subscription, error) {
	var subscriptions []*models.Subscription
	err := s.db.Where("owner_id = ?", ownerID).Order("id").Find(&subscriptions).Error
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subscriptions, nil
}

func (s *DatabaseStore) ActiveSubscriptionsForOwner(ownerID uint, asOf time.Time) ([]*models.Subscription, error) {
	var subscriptions []*models.Subscription
	err := s.db.
		Where("owner_id = ? AND paid_until > ?", ownerID, asOf).
		Order("id").
		Find(&subscriptions).Error
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}
	return subscriptions, nil
}

func (s *DatabaseStore) SubscriptionsExpiringBetween(from, to time.Time) ([]*models.Subscription, error) {
	var subscriptions []*models.Subscription
	err := s.db.
		Where("paid_until > ? AND paid_until <= ?", from, to).
		Order("id").
		Find(&subscriptions).Error
	if err != nil {
		return nil, fmt.Errorf("list expiring subscriptions: %w", err)
	}
	return subscriptions, nil
}
