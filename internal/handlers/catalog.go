package handlers

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/platefull/platefull-backend/internal/models"
	"github.com/platefull/platefull-backend/internal/storage"
)

// CatalogHandler manages preferences and recipes over the admin API.
type CatalogHandler struct {
	store    storage.Store
	validate *validator.Validate
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(store storage.Store) *CatalogHandler {
	return &CatalogHandler{
		store:    store,
		validate: validator.New(),
	}
}

// PreferenceRequest is the payload for creating a menu preference
type PreferenceRequest struct {
	Name string `json:"name" validate:"required,min=2,max=50"`
}

// IngredientRequest is one ingredient line of a recipe payload
type IngredientRequest struct {
	Name            string  `json:"name" validate:"required"`
	AmountPerPerson float64 `json:"amount_per_person" validate:"required,gt=0"`
	Unit            string  `json:"unit" validate:"required"`
}

// RecipeRequest is the payload for creating a recipe
type RecipeRequest struct {
	Name         string              `json:"name" validate:"required,min=2,max=100"`
	Description  string              `json:"description"`
	ImageURL     string              `json:"image_url" validate:"omitempty,url"`
	PreferenceID uint                `json:"preference_id" validate:"required"`
	Ingredients  []IngredientRequest `json:"ingredients" validate:"required,min=1,dive"`
}

// ListPreferences returns the menu catalog
func (h *CatalogHandler) ListPreferences(c *fiber.Ctx) error {
	preferences, err := h.store.ListPreferences()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list preferences",
		})
	}
	return c.JSON(fiber.Map{"preferences": preferences})
}

// CreatePreference adds a menu preference
func (h *CatalogHandler) CreatePreference(c *fiber.Ctx) error {
	var req PreferenceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	preference, err := h.store.CreatePreference(&models.Preference{Name: req.Name})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create preference",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(preference)
}

// CreateRecipe adds a recipe with its ordered ingredient list
func (h *CatalogHandler) CreateRecipe(c *fiber.Ctx) error {
	var req RecipeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	recipe := &models.Recipe{
		Name:         req.Name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		PreferenceID: req.PreferenceID,
	}
	for i, ingredient := range req.Ingredients {
		recipe.Ingredients = append(recipe.Ingredients, models.RecipeIngredient{
			Position:        i + 1,
			Name:            ingredient.Name,
			AmountPerPerson: ingredient.AmountPerPerson,
			Unit:            ingredient.Unit,
		})
	}

	created, err := h.store.CreateRecipe(recipe)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown preference",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create recipe",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// ListRecipes returns the recipes of one preference
func (h *CatalogHandler) ListRecipes(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid preference id",
		})
	}

	recipes, err := h.store.RecipesByPreference(uint(id))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list recipes",
		})
	}
	return c.JSON(fiber.Map{"recipes": recipes})
}
