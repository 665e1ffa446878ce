package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"cooking-assistant/models"
	"cooking-assistant/providers"
	"cooking-assistant/storage"
)

// RecipeStore ist der Teil des lokalen Stores, den der Coordinator nutzt.
type RecipeStore interface {
	Ingredients() *storage.Stream[[]models.Ingredient]
	RecipesWithIngredients() *storage.Stream[[]models.RecipeWithIngredients]
	SearchRecipesByName(ctx context.Context, query string) *storage.Stream[[]models.RecipeWithIngredients]
	AddIngredient(ctx context.Context, name string, foodType models.FoodType) error
	AddRecipe(ctx context.Context, name string) (int64, error)
	AddAssociation(ctx context.Context, recipeID, ingredientID int64) error
}

// Coordinator vermittelt zwischen Store, Community-Quelle und Oberfläche.
// Alle Operationen laufen asynchron; Fehler werden nur geloggt.
type Coordinator struct {
	Store  RecipeStore
	Source providers.IngredientSource
	Logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool

	ingredients       *storage.Stream[[]models.Ingredient]
	recipes           *storage.Stream[[]models.RecipeWithIngredients]
	searchResults     *storage.Stream[[]models.RecipeWithIngredients]
	onlineIngredients *storage.Stream[[]models.Ingredient]

	// nur die Ausgabe der jüngsten Suche wird veröffentlicht
	searchMu     sync.Mutex
	searchGen    uint64
	searchCancel context.CancelFunc
}

// NewCoordinator erstellt den Coordinator und spiegelt ab sofort die Store-Streams.
func NewCoordinator(store RecipeStore, source providers.IngredientSource, logger *zap.Logger) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		Store:             store,
		Source:            source,
		Logger:            logger.With(zap.String("component", "Coordinator")),
		ctx:               ctx,
		cancel:            cancel,
		ingredients:       storage.NewStream([]models.Ingredient{}),
		recipes:           storage.NewStream([]models.RecipeWithIngredients{}),
		searchResults:     storage.NewStream([]models.RecipeWithIngredients{}),
		onlineIngredients: storage.NewStream([]models.Ingredient{}),
	}

	mirror(c, store.Ingredients(), c.ingredients)
	mirror(c, store.RecipesWithIngredients(), c.recipes)
	return c
}

// Ingredients spiegelt die Zutatenliste des Stores.
func (c *Coordinator) Ingredients() *storage.Stream[[]models.Ingredient] { return c.ingredients }

// Recipes spiegelt die Rezeptliste des Stores.
func (c *Coordinator) Recipes() *storage.Stream[[]models.RecipeWithIngredients] { return c.recipes }

// SearchResults enthält das Ergebnis der zuletzt gestarteten Suche.
func (c *Coordinator) SearchResults() *storage.Stream[[]models.RecipeWithIngredients] {
	return c.searchResults
}

// OnlineIngredients enthält die zuletzt abgerufene Community-Liste.
func (c *Coordinator) OnlineIngredients() *storage.Stream[[]models.Ingredient] {
	return c.onlineIngredients
}

// AddIngredient speichert eine Zutat. Keine Validierung: leere Namen lehnt nur die Oberfläche ab.
func (c *Coordinator) AddIngredient(name string, foodType models.FoodType) {
	c.launch(func(ctx context.Context) {
		ctx = context.WithoutCancel(ctx)
		if err := c.Store.AddIngredient(ctx, name, foodType); err != nil {
			writeFailuresCounter.WithLabelValues("add_ingredient").Inc()
			c.Logger.Error("Zutat konnte nicht gespeichert werden", zap.String("name", name), zap.Error(err))
			return
		}
		ingredientsAddedCounter.Inc()
	})
}

// AddRecipe legt das Rezept an und danach nacheinander je eine Zuordnung pro Zutat.
// Nicht atomar: bricht ein Schritt ab, bleibt das Rezept mit weniger Zuordnungen stehen.
func (c *Coordinator) AddRecipe(name string, ingredients []models.Ingredient) {
	selected := append([]models.Ingredient(nil), ingredients...)
	c.launch(func(ctx context.Context) {
		ctx = context.WithoutCancel(ctx)
		log := c.Logger.With(zap.String("recipe", name))

		recipeID, err := c.Store.AddRecipe(ctx, name)
		if err != nil {
			writeFailuresCounter.WithLabelValues("add_recipe").Inc()
			log.Error("Rezept konnte nicht gespeichert werden", zap.Error(err))
			return
		}
		recipesAddedCounter.Inc()

		for _, ing := range selected {
			if err := c.Store.AddAssociation(ctx, recipeID, ing.ID); err != nil {
				writeFailuresCounter.WithLabelValues("add_association").Inc()
				log.Error("Zuordnung fehlgeschlagen, Rezept bleibt unvollständig",
					zap.Int64("recipe_id", recipeID), zap.Int64("ingredient_id", ing.ID), zap.Error(err))
				return
			}
		}
		log.Debug("Rezept gespeichert", zap.Int64("recipe_id", recipeID), zap.Int("ingredients", len(selected)))
	})
}

// SearchByName bindet die Suchergebnisse an die Namenssuche des Stores.
// Eine vorherige Suche wird aufgegeben.
func (c *Coordinator) SearchByName(query string) {
	c.bindSearch(func(ctx context.Context) *storage.Stream[[]models.RecipeWithIngredients] {
		return c.Store.SearchRecipesByName(ctx, query)
	})
}

// SearchByIngredients bindet die Suchergebnisse an alle Rezepte, die jede der
// geforderten Zutaten enthalten. Wird bei jeder Änderung neu ausgewertet.
func (c *Coordinator) SearchByIngredients(required []models.Ingredient) {
	ids := make([]int64, 0, len(required))
	for _, ing := range required {
		ids = append(ids, ing.ID)
	}
	c.bindSearch(func(ctx context.Context) *storage.Stream[[]models.RecipeWithIngredients] {
		return storage.Derive(ctx, c.Store.RecipesWithIngredients(), func(all []models.RecipeWithIngredients) []models.RecipeWithIngredients {
			return FilterByIngredients(all, ids)
		})
	})
}

// FilterByIngredients behält die Rezepte, deren Zutaten eine Obermenge von ids sind.
func FilterByIngredients(all []models.RecipeWithIngredients, ids []int64) []models.RecipeWithIngredients {
	out := make([]models.RecipeWithIngredients, 0, len(all))
	for _, r := range all {
		if r.ContainsAll(ids) {
			out = append(out, r)
		}
	}
	return out
}

// FetchOnline ruft die Community-Liste einmal ab und veröffentlicht das Ergebnis (ggf. leer).
func (c *Coordinator) FetchOnline() {
	c.launch(func(ctx context.Context) {
		result := c.Source.FetchIngredients(ctx)
		if ctx.Err() != nil {
			// abgebrochen durch Close: letzte Liste bleibt stehen
			c.Logger.Debug("Community-Abruf abgebrochen, Ergebnis verworfen")
			return
		}
		if len(result) == 0 {
			communityFetchCounter.WithLabelValues("empty").Inc()
		} else {
			communityFetchCounter.WithLabelValues("ok").Inc()
		}
		c.onlineIngredients.Publish(result)
	})
}

// Close beendet Spiegelung und Suche und wartet auf laufende Schreibzugriffe.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// launch startet fn in einer eigenen Goroutine, solange der Coordinator offen ist.
func (c *Coordinator) launch(fn func(ctx context.Context)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.Logger.Debug("Coordinator geschlossen, Aktion wird verworfen")
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
	return true
}

func (c *Coordinator) bindSearch(open func(ctx context.Context) *storage.Stream[[]models.RecipeWithIngredients]) {
	c.searchMu.Lock()
	if c.searchCancel != nil {
		c.searchCancel()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.searchCancel = cancel
	c.searchGen++
	gen := c.searchGen
	c.searchMu.Unlock()

	c.launch(func(context.Context) {
		sub := open(ctx).Subscribe()
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-sub.C():
				if !ok {
					return
				}
				c.publishSearch(gen, v)
			}
		}
	})
}

func (c *Coordinator) publishSearch(gen uint64, v []models.RecipeWithIngredients) {
	c.searchMu.Lock()
	defer c.searchMu.Unlock()
	if gen != c.searchGen {
		return
	}
	c.searchResults.Publish(v)
}

// mirror überträgt jeden Wert von src nach dst, bis der Coordinator schließt.
func mirror[T any](c *Coordinator, src, dst *storage.Stream[T]) {
	c.launch(func(ctx context.Context) {
		sub := src.Subscribe()
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-sub.C():
				if !ok {
					return
				}
				dst.Publish(v)
			}
		}
	})
}
