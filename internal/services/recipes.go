package services

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/platefull/platefull-backend/internal/models"
	"github.com/platefull/platefull-backend/internal/storage"
)

// ErrNoRecipeAvailable is returned when a preference has no recipes to
// serve. The engine turns it into a user-visible apology rather than a
// failure.
var ErrNoRecipeAvailable = errors.New("no recipes available for preference")

// ScaledIngredient is one ingredient line with the amount already
// multiplied by the subscription's person count.
type ScaledIngredient struct {
	Name   string
	Amount float64
	Unit   string
}

// RecipeSelector picks recipes uniformly at random within a
// preference.
type RecipeSelector struct {
	store storage.Store

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRecipeSelector creates a recipe selector. Pass a seeded rng in
// tests; nil uses a time-seeded source.
func NewRecipeSelector(store storage.Store, rng *rand.Rand) *RecipeSelector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RecipeSelector{store: store, rng: rng}
}

// PickRandom returns one recipe of the preference, chosen uniformly.
func (r *RecipeSelector) PickRandom(preferenceID uint) (*models.Recipe, error) {
	recipes, err := r.store.RecipesByPreference(preferenceID)
	if err != nil {
		return nil, err
	}
	if len(recipes) == 0 {
		return nil, ErrNoRecipeAvailable
	}

	r.mu.Lock()
	i := r.rng.Intn(len(recipes))
	r.mu.Unlock()

	return recipes[i], nil
}

// ScaledIngredients returns the recipe's ingredient list in declared
// order with amounts multiplied by persons. Computed at display time;
// nothing scaled is ever stored.
func ScaledIngredients(recipe *models.Recipe, persons int) []ScaledIngredient {
	scaled := make([]ScaledIngredient, 0, len(recipe.Ingredients))
	for _, ingredient := range recipe.Ingredients {
		scaled = append(scaled, ScaledIngredient{
			Name:   ingredient.Name,
			Amount: ingredient.AmountPerPerson * float64(persons),
			Unit:   ingredient.Unit,
		})
	}
	return scaled
}
