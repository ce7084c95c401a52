package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/platefull/platefull-backend/internal/handlers"
	"github.com/platefull/platefull-backend/internal/middleware"
	"github.com/platefull/platefull-backend/internal/services"
	"github.com/platefull/platefull-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, whatsapp *handlers.WhatsAppHandler, sessions *services.SessionManager) {
	catalog := handlers.NewCatalogHandler(store)
	customers := handlers.NewCustomerHandler(store)

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to the Platefull Backend!",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":        "/health",
				"api":           "/api",
				"webhook":       "/webhook/whatsapp",
				"test_whatsapp": "/test/whatsapp",
				"admin":         "/admin",
			},
		})
	})

	app.Get("/health", handlers.HealthCheck)

	// API routes
	api := app.Group("/api")

	preferences := api.Group("/preferences")
	preferences.Get("/", catalog.ListPreferences)
	preferences.Post("/", catalog.CreatePreference)
	preferences.Get("/:id/recipes", catalog.ListRecipes)

	api.Post("/recipes", catalog.CreateRecipe)

	customerRoutes := api.Group("/customers")
	customerRoutes.Get("/", customers.ListCustomers)
	customerRoutes.Get("/:identity", customers.GetCustomer)
	customerRoutes.Get("/:identity/subscriptions", customers.ListSubscriptions)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// WhatsApp webhook - signature validation is skipped only in development
	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		webhooks.Post("/whatsapp", whatsapp.HandleWebhook)
		log.Println("⚠️  WhatsApp webhook validation DISABLED")
	} else {
		webhooks.Post("/whatsapp", middleware.ValidateTwilioSignature(), whatsapp.HandleWebhook)
	}

	// Test WhatsApp endpoint (for development)
	app.Post("/test/whatsapp", whatsapp.HandleTestWebhook)

	// ========== ADMIN ROUTES ==========
	admin := app.Group("/admin")
	admin.Get("/overview", func(c *fiber.Ctx) error {
		allCustomers, err := store.GetAllCustomers()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to load overview",
			})
		}
		allPreferences, err := store.ListPreferences()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to load overview",
			})
		}
		return c.JSON(fiber.Map{
			"customers":       len(allCustomers),
			"preferences":     len(allPreferences),
			"active_sessions": sessions.Count(),
		})
	})
}
