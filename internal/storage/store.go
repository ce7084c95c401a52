package storage

import (
	"errors"
	"time"

	"github.com/platefull/platefull-backend/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateIdentity is returned when a customer is created for
	// an identity that already has one.
	ErrDuplicateIdentity = errors.New("identity already registered")
)

// Store defines the interface for storage operations
type Store interface {
	// Customer operations
	CreateCustomer(customer *models.Customer) (*models.Customer, error)
	GetCustomerByIdentity(identity string) (*models.Customer, error)
	GetCustomerByID(id uint) (*models.Customer, error)
	GetAllCustomers() ([]*models.Customer, error)

	// Preference operations
	CreatePreference(preference *models.Preference) (*models.Preference, error)
	GetPreference(id uint) (*models.Preference, error)
	ListPreferences() ([]*models.Preference, error)

	// Recipe operations
	CreateRecipe(recipe *models.Recipe) (*models.Recipe, error)
	RecipesByPreference(preferenceID uint) ([]*models.Recipe, error)

	// Subscription operations
	CreateSubscription(subscription *models.Subscription) (*models.Subscription, error)
	GetSubscription(subscriptionID string) (*models.Subscription, error)
	SubscriptionsForOwner(ownerID uint) ([]*models.Subscription, error)
	ActiveSubscriptionsForOwner(ownerID uint, asOf time.Time) ([]*models.Subscription, error)
	SubscriptionsExpiringBetween(from, to time.Time) ([]*models.Subscription, error)
}
