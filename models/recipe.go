package models

// Recipe ist eine benannte Sammlung von Zutaten.
type Recipe struct {
	ID   int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Name string `json:"name" gorm:"not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (Recipe) TableName() string {
	return "recipes"
}

// RecipeIngredient modelliert die Kante "Rezept enthält Zutat" (n:m).
type RecipeIngredient struct {
	RecipeID     int64 `json:"recipe_id" gorm:"primaryKey;autoIncrement:false"`
	IngredientID int64 `json:"ingredient_id" gorm:"primaryKey;autoIncrement:false;index"`
}

// TableName gibt explizit den Tabellennamen an.
func (RecipeIngredient) TableName() string {
	return "recipe_ingredients"
}

// RecipeWithIngredients ist die abgeleitete Sicht: ein Rezept samt seiner Zutaten.
// Wird nie direkt gespeichert.
type RecipeWithIngredients struct {
	Recipe      Recipe       `json:"recipe"`
	Ingredients []Ingredient `json:"ingredients"`
}

// IngredientIDs gibt die IDs der enthaltenen Zutaten zurück.
func (r RecipeWithIngredients) IngredientIDs() []int64 {
	ids := make([]int64, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		ids = append(ids, ing.ID)
	}
	return ids
}

// ContainsAll meldet, ob das Rezept jede der angegebenen Zutaten enthält.
// Eine leere Anforderung ist immer erfüllt.
func (r RecipeWithIngredients) ContainsAll(ids []int64) bool {
	have := make(map[int64]struct{}, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		have[ing.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}
