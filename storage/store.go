package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cooking-assistant/models"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CookingStore kapselt Zutaten, Rezepte und ihre Zuordnung.
// Lesezugriffe sind Streams, die nach jedem Schreibzugriff neu berechnet werden.
type CookingStore struct {
	DB     *gorm.DB
	Logger *zap.Logger

	// serialisiert Neuberechnungen, damit der zuletzt veröffentlichte Wert
	// den zuletzt bestätigten Schreibzugriff enthält
	refreshMu   sync.Mutex
	ingredients *Stream[[]models.Ingredient]
	recipes     *Stream[[]models.RecipeWithIngredients]
}

// recipeIngredientRow ist eine Zeile des Joins Zuordnung -> Zutat.
type recipeIngredientRow struct {
	RecipeID int64
	ID       int64
	Name     string
	Type     models.FoodType
}

// NewCookingStore erstellt den Store und lädt den aktuellen Stand in die Streams.
func NewCookingStore(db *gorm.DB, logger *zap.Logger) (*CookingStore, error) {
	s := &CookingStore{
		DB:          db,
		Logger:      logger.With(zap.String("component", "CookingStore")),
		ingredients: NewStream([]models.Ingredient{}),
		recipes:     NewStream([]models.RecipeWithIngredients{}),
	}

	ctx := context.Background()
	ings, err := s.loadIngredients(ctx)
	if err != nil {
		return nil, fmt.Errorf("zutaten laden: %w", err)
	}
	recs, err := s.loadRecipes(ctx)
	if err != nil {
		return nil, fmt.Errorf("rezepte laden: %w", err)
	}
	s.ingredients.Publish(ings)
	s.recipes.Publish(recs)
	return s, nil
}

// Ingredients liefert den Stream aller Zutaten, sortiert nach ID.
func (s *CookingStore) Ingredients() *Stream[[]models.Ingredient] {
	return s.ingredients
}

// RecipesWithIngredients liefert den Stream aller Rezepte samt Zutaten.
func (s *CookingStore) RecipesWithIngredients() *Stream[[]models.RecipeWithIngredients] {
	return s.recipes
}

// SearchRecipesByName liefert alle Rezepte, deren Name query enthält
// (Groß-/Kleinschreibung egal). Ein leerer query passt auf alle.
// Der Stream folgt jeder Änderung, bis ctx endet.
func (s *CookingStore) SearchRecipesByName(ctx context.Context, query string) *Stream[[]models.RecipeWithIngredients] {
	return Derive(ctx, s.recipes, func(all []models.RecipeWithIngredients) []models.RecipeWithIngredients {
		return FilterByName(all, query)
	})
}

// FilterByName filtert per Teilstring-Vergleich auf den Rezeptnamen, ohne
// Beachtung der Groß-/Kleinschreibung.
func FilterByName(all []models.RecipeWithIngredients, query string) []models.RecipeWithIngredients {
	// Caser ist nicht nebenläufig nutzbar
	fold := cases.Fold()
	q := fold.String(query)
	out := make([]models.RecipeWithIngredients, 0, len(all))
	for _, r := range all {
		if strings.Contains(fold.String(r.Recipe.Name), q) {
			out = append(out, r)
		}
	}
	return out
}

// AddIngredient legt eine neue Zutat mit frischer ID an.
func (s *CookingStore) AddIngredient(ctx context.Context, name string, foodType models.FoodType) error {
	return s.UpsertIngredient(ctx, &models.Ingredient{Name: name, Type: foodType})
}

// UpsertIngredient speichert ing. Existiert bereits eine Zutat mit derselben ID,
// wird sie vollständig ersetzt. Bei ID 0 wird eine neue ID vergeben und in ing gesetzt.
func (s *CookingStore) UpsertIngredient(ctx context.Context, ing *models.Ingredient) error {
	explicitID := ing.ID != 0
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "type"}),
	}).Create(ing).Error
	if err != nil {
		return fmt.Errorf("zutat speichern: %w", err)
	}

	// Postgres zählt die Sequenz bei expliziten IDs nicht mit.
	if explicitID && s.DB.Dialector.Name() == "postgres" {
		err := s.DB.WithContext(ctx).Exec(
			"SELECT setval(pg_get_serial_sequence('ingredients', 'id'), (SELECT MAX(id) FROM ingredients))",
		).Error
		if err != nil {
			s.Logger.Warn("Sequenz für ingredients konnte nicht nachgezogen werden", zap.Error(err))
		}
	}

	s.Logger.Debug("Zutat gespeichert", zap.Int64("id", ing.ID), zap.String("type", ing.Type.String()))
	// Zutaten erscheinen auch in der Rezeptsicht.
	s.refresh(ctx, true, true)
	return nil
}

// AddRecipe legt ein Rezept an und gibt die neue ID zurück.
func (s *CookingStore) AddRecipe(ctx context.Context, name string) (int64, error) {
	recipe := models.Recipe{Name: name}
	if err := s.DB.WithContext(ctx).Create(&recipe).Error; err != nil {
		return 0, fmt.Errorf("rezept speichern: %w", err)
	}
	s.refresh(ctx, false, true)
	return recipe.ID, nil
}

// AddAssociation verknüpft ein Rezept mit einer Zutat. Ein bereits vorhandenes
// Paar schlägt mit dem Constraint-Fehler der Datenbank fehl.
func (s *CookingStore) AddAssociation(ctx context.Context, recipeID, ingredientID int64) error {
	link := models.RecipeIngredient{RecipeID: recipeID, IngredientID: ingredientID}
	if err := s.DB.WithContext(ctx).Create(&link).Error; err != nil {
		return fmt.Errorf("zuordnung %d/%d speichern: %w", recipeID, ingredientID, err)
	}
	s.refresh(ctx, false, true)
	return nil
}

// Snapshot liest den vollständigen Stand einmalig aus der Datenbank.
func (s *CookingStore) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	ings, err := s.loadIngredients(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.loadRecipes(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Snapshot{
		TakenAt:     time.Now().UTC(),
		Ingredients: ings,
		Recipes:     recs,
	}, nil
}

// refresh berechnet die betroffenen Streams neu. Fehler werden geloggt,
// der alte Wert bleibt dann stehen.
func (s *CookingStore) refresh(ctx context.Context, ingredients, recipes bool) {
	// Der Schreibzugriff ist bereits bestätigt; ein abgebrochener Aufrufer
	// soll die Neuberechnung nicht verhindern.
	ctx = context.WithoutCancel(ctx)

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if ingredients {
		ings, err := s.loadIngredients(ctx)
		if err != nil {
			s.Logger.Error("Neuberechnung der Zutatenliste fehlgeschlagen", zap.Error(err))
		} else {
			s.ingredients.Publish(ings)
		}
	}
	if recipes {
		recs, err := s.loadRecipes(ctx)
		if err != nil {
			s.Logger.Error("Neuberechnung der Rezeptliste fehlgeschlagen", zap.Error(err))
		} else {
			s.recipes.Publish(recs)
		}
	}
}

func (s *CookingStore) loadIngredients(ctx context.Context) ([]models.Ingredient, error) {
	ings := []models.Ingredient{}
	if err := s.DB.WithContext(ctx).Order("id").Find(&ings).Error; err != nil {
		return nil, err
	}
	return ings, nil
}

// loadRecipes baut die Rezeptsicht über einen Join durch recipe_ingredients auf.
// Die Zutaten eines Rezepts sind nach ID sortiert.
func (s *CookingStore) loadRecipes(ctx context.Context) ([]models.RecipeWithIngredients, error) {
	var recipes []models.Recipe
	var rows []recipeIngredientRow

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("id").Find(&recipes).Error; err != nil {
			return err
		}
		return tx.Table("recipe_ingredients").
			Select("recipe_ingredients.recipe_id, ingredients.id, ingredients.name, ingredients.type").
			Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
			Order("recipe_ingredients.recipe_id, ingredients.id").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	byRecipe := make(map[int64][]models.Ingredient, len(recipes))
	for _, row := range rows {
		byRecipe[row.RecipeID] = append(byRecipe[row.RecipeID], models.Ingredient{
			ID:   row.ID,
			Name: row.Name,
			Type: row.Type,
		})
	}

	out := make([]models.RecipeWithIngredients, 0, len(recipes))
	for _, r := range recipes {
		ings := byRecipe[r.ID]
		if ings == nil {
			ings = []models.Ingredient{}
		}
		out = append(out, models.RecipeWithIngredients{Recipe: r, Ingredients: ings})
	}
	return out, nil
}
