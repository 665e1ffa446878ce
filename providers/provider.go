package providers

import (
	"context"

	"cooking-assistant/models"
)

// IngredientSource ist das Interface für entfernte Zutatenlisten (z.B. die Community-Liste).
type IngredientSource interface {
	// FetchIngredients holt die Liste einmalig. Fehler führen zu einer leeren Liste, nie zu einem Fehlerwert.
	FetchIngredients(ctx context.Context) []models.Ingredient

	// Name gibt den eindeutigen Namen der Quelle zurück (z.B. "community").
	Name() string
}
