package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/platefull/platefull-backend/database"
	"github.com/platefull/platefull-backend/internal/handlers"
	"github.com/platefull/platefull-backend/internal/jobs"
	"github.com/platefull/platefull-backend/internal/models"
	"github.com/platefull/platefull-backend/internal/routes"
	"github.com/platefull/platefull-backend/internal/services"
	"github.com/platefull/platefull-backend/internal/storage"
)

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		err := godotenv.Load(".env")
		if err != nil {
			err = godotenv.Load("environments/.env.development")
			if err != nil {
				log.Println("⚠️  No .env file found - checking environment variables")
			}
		}
	}

	// Initialize storage
	var store storage.Store

	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.Customer{},
			&models.Preference{},
			&models.Recipe{},
			&models.RecipeIngredient{},
			&models.Subscription{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
	}

	if err := seedCatalog(store); err != nil {
		log.Fatal("Failed to seed catalog:", err)
	}

	// Initialize messaging. Without Twilio credentials outbound
	// messages are logged instead of sent, so the test webhook still
	// works locally.
	var messenger services.Messenger
	var resolver handlers.ReplyResolver

	twilioService, err := services.NewTwilioService()
	if err != nil {
		log.Printf("⚠️  Twilio not configured (%v) - outbound messages will be logged only", err)
		messenger = services.LogMessenger{}
	} else {
		log.Println("✅ Twilio service initialized")
		messenger = twilioService
		resolver = twilioService
	}

	// Wire the conversation engine
	region := os.Getenv("PHONE_REGION")
	if region == "" {
		region = "IN"
	}

	sessions := services.NewSessionManager()
	engine := services.NewConversationEngine(
		store,
		sessions,
		services.NewUserDirectory(store),
		services.NewSubscriptionLedger(store, nil),
		services.NewRecipeSelector(store, nil),
		messenger,
		services.NewE164Validator(),
		region,
	)
	whatsappHandler := handlers.NewWhatsAppHandler(engine, messenger, resolver)

	// Start the expiry reminder job
	reminderJob := jobs.NewReminderJob(store, messenger, 3)
	reminderJob.Start()

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "Platefull Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, store, whatsappHandler, sessions)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("🛑 Gracefully shutting down...")
		reminderJob.Stop()
		_ = app.Shutdown()
	}()

	log.Println("========================================")
	log.Printf("🚀 Platefull Backend starting on port %s", port)
	log.Printf("📊 Storage: %s", getStorageType())
	log.Printf("🌍 Environment: %s", getEnvironment())
	log.Printf("📱 WhatsApp: %s", getWhatsAppStatus(resolver != nil))
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}

// seedCatalog loads a starter menu so a fresh install can serve
// recipes immediately. No-op once any preference exists.
func seedCatalog(store storage.Store) error {
	preferences, err := store.ListPreferences()
	if err != nil {
		return err
	}
	if len(preferences) > 0 {
		return nil
	}

	log.Println("🌱 Seeding default menu catalog...")

	type seedRecipe struct {
		name        string
		description string
		ingredients []models.RecipeIngredient
	}
	catalog := map[string][]seedRecipe{
		"classic": {
			{
				name:        "Butter Chicken",
				description: "Slow-simmered chicken in a tomato and butter gravy.",
				ingredients: []models.RecipeIngredient{
					{Name: "chicken", AmountPerPerson: 250, Unit: "g"},
					{Name: "butter", AmountPerPerson: 25, Unit: "g"},
					{Name: "tomato", AmountPerPerson: 2, Unit: "pcs"},
				},
			},
		},
		"vegetarian": {
			{
				name:        "Palak Paneer",
				description: "Paneer cubes in a spiced spinach puree.",
				ingredients: []models.RecipeIngredient{
					{Name: "paneer", AmountPerPerson: 150, Unit: "g"},
					{Name: "spinach", AmountPerPerson: 200, Unit: "g"},
					{Name: "cream", AmountPerPerson: 30, Unit: "ml"},
				},
			},
		},
		"vegan": {
			{
				name:        "Chana Masala",
				description: "Chickpeas stewed with onion, tomato and garam masala.",
				ingredients: []models.RecipeIngredient{
					{Name: "chickpeas", AmountPerPerson: 120, Unit: "g"},
					{Name: "onion", AmountPerPerson: 1, Unit: "pcs"},
					{Name: "tomato", AmountPerPerson: 1, Unit: "pcs"},
				},
			},
		},
	}

	for name, seedRecipes := range catalog {
		preference, err := store.CreatePreference(&models.Preference{Name: name})
		if err != nil {
			return err
		}
		for _, recipe := range seedRecipes {
			_, err := store.CreateRecipe(&models.Recipe{
				Name:         recipe.name,
				Description:  recipe.description,
				PreferenceID: preference.ID,
				Ingredients:  recipe.ingredients,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func getEnvironment() string {
	if os.Getenv("INSTANCE_CONNECTION_NAME") != "" {
		return "Production (Cloud Run)"
	}
	return "Development (Local)"
}

func getStorageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func getWhatsAppStatus(configured bool) string {
	if configured {
		return "Configured"
	}
	return "Not configured"
}
