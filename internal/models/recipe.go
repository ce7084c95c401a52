package models

import "gorm.io/gorm"

// Recipe belongs to exactly one Preference and carries an ordered
// ingredient list. Amounts are stored per person and scaled at display
// time by the subscription's person count.
type Recipe struct {
	gorm.Model

	Name         string `json:"name"`
	Description  string `json:"description"`
	ImageURL     string `json:"image_url"`
	PreferenceID uint   `json:"preference_id" gorm:"index"`

	Ingredients []RecipeIngredient `json:"ingredients" gorm:"foreignKey:RecipeID"`
}

// RecipeIngredient is one line of a recipe's ingredient list.
// Position preserves the declared order.
type RecipeIngredient struct {
	gorm.Model

	RecipeID        uint    `json:"recipe_id" gorm:"index"`
	Position        int     `json:"position"`
	Name            string  `json:"name"`
	AmountPerPerson float64 `json:"amount_per_person"`
	Unit            string  `json:"unit"`
}
