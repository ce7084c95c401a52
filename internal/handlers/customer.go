package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/platefull/platefull-backend/internal/storage"
)

// CustomerHandler exposes customer records and their subscriptions.
type CustomerHandler struct {
	store storage.Store
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(store storage.Store) *CustomerHandler {
	return &CustomerHandler{store: store}
}

// ListCustomers returns every registered customer
func (h *CustomerHandler) ListCustomers(c *fiber.Ctx) error {
	customers, err := h.store.GetAllCustomers()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list customers",
		})
	}
	return c.JSON(fiber.Map{"customers": customers})
}

// GetCustomer returns one customer by chat identity
func (h *CustomerHandler) GetCustomer(c *fiber.Ctx) error {
	customer, err := h.store.GetCustomerByIdentity(c.Params("identity"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Customer not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get customer",
		})
	}
	return c.JSON(customer)
}

// ListSubscriptions returns a customer's subscriptions, each flagged
// with whether it is still active today
func (h *CustomerHandler) ListSubscriptions(c *fiber.Ctx) error {
	customer, err := h.store.GetCustomerByIdentity(c.Params("identity"))
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Customer not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get customer",
		})
	}

	subscriptions, err := h.store.SubscriptionsForOwner(customer.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list subscriptions",
		})
	}

	now := time.Now()
	type subscriptionView struct {
		SubscriptionID string    `json:"subscription_id"`
		PreferenceID   uint      `json:"preference_id"`
		Persons        int       `json:"persons"`
		RegisteredOn   time.Time `json:"registered_on"`
		PaidUntil      time.Time `json:"paid_until"`
		Active         bool      `json:"active"`
	}
	views := make([]subscriptionView, 0, len(subscriptions))
	for _, subscription := range subscriptions {
		views = append(views, subscriptionView{
			SubscriptionID: subscription.SubscriptionID,
			PreferenceID:   subscription.PreferenceID,
			Persons:        subscription.Persons,
			RegisteredOn:   subscription.RegisteredOn,
			PaidUntil:      subscription.PaidUntil,
			Active:         subscription.ActiveAt(now),
		})
	}
	return c.JSON(fiber.Map{"subscriptions": views})
}
