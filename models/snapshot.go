package models

import "time"

// Snapshot ist der vollständige Stand des Rezeptbuchs, wie ihn das Backup exportiert.
type Snapshot struct {
	TakenAt     time.Time               `json:"taken_at"`
	Ingredients []Ingredient            `json:"ingredients"`
	Recipes     []RecipeWithIngredients `json:"recipes"`
}
