package services

import (
	"errors"
	"log"

	"github.com/platefull/platefull-backend/internal/models"
	"github.com/platefull/platefull-backend/internal/storage"
)

// UserDirectory maps chat identities to registered customers.
type UserDirectory struct {
	store storage.Store
}

// NewUserDirectory creates a new user directory
func NewUserDirectory(store storage.Store) *UserDirectory {
	return &UserDirectory{store: store}
}

// Lookup returns the customer registered for an identity, or
// storage.ErrNotFound.
func (d *UserDirectory) Lookup(identity string) (*models.Customer, error) {
	return d.store.GetCustomerByIdentity(identity)
}

// Register creates a customer for an identity. Registration is
// idempotent: if the identity already has a customer the existing
// record is returned, never an error. Re-running the registration
// flow must not produce duplicate rows.
func (d *UserDirectory) Register(identity, name, phone string) (*models.Customer, error) {
	customer, err := d.store.CreateCustomer(&models.Customer{
		Identity: identity,
		Name:     name,
		Phone:    phone,
	})
	if errors.Is(err, storage.ErrDuplicateIdentity) {
		log.Printf("identity %s re-registered, loading existing customer", identity)
		return d.store.GetCustomerByIdentity(identity)
	}
	return customer, err
}
