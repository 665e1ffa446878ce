package api

import (
	"net/http"
	"strings"
	"time"

	"cooking-assistant/config"
	"cooking-assistant/models"
	"cooking-assistant/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// apiKeyAuthMiddleware schützt alle Routen mit X-API-KEY, sofern ein Schlüssel konfiguriert ist.
func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// NewRouter baut den Router. Alle schreibenden Routen antworten mit 202,
// die Arbeit läuft asynchron im Coordinator.
func NewRouter(cfg *config.Config, coord *services.Coordinator, hub *Hub, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if len(cfg.CORSAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSAllowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "X-API-KEY"},
			MaxAge:       12 * time.Hour,
		}))
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	secured := router.Group("/")
	secured.Use(apiKeyAuthMiddleware(cfg))
	secured.GET("/metrics", gin.WrapH(promhttp.Handler()))
	secured.GET("/ws", hub.Serve)

	setupIngredientRoutes(secured, coord, log)
	setupRecipeRoutes(secured, coord, log)
	setupSearchRoutes(secured, coord)
	setupCommunityRoutes(secured, coord)
	return router
}

func setupIngredientRoutes(router *gin.RouterGroup, coord *services.Coordinator, log *zap.Logger) {
	rg := router.Group("/ingredients")
	rg.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, coord.Ingredients().Latest())
	})
	rg.POST("", func(c *gin.Context) {
		var req struct {
			Name string          `json:"name"`
			Type models.FoodType `json:"type" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		// leere Namen lehnt nur die Oberfläche ab, der Store nimmt sie an
		if strings.TrimSpace(req.Name) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be blank"})
			return
		}
		log.Debug("Zutat angefordert", zap.String("name", req.Name), zap.String("type", req.Type.String()))
		coord.AddIngredient(req.Name, req.Type)
		c.JSON(http.StatusAccepted, gin.H{"message": "ingredient queued"})
	})
}

func setupRecipeRoutes(router *gin.RouterGroup, coord *services.Coordinator, log *zap.Logger) {
	rg := router.Group("/recipes")
	rg.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, coord.Recipes().Latest())
	})
	rg.POST("", func(c *gin.Context) {
		var req struct {
			Name          string  `json:"name"`
			IngredientIDs []int64 `json:"ingredient_ids"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be blank"})
			return
		}
		selected, missing := resolveIngredients(coord.Ingredients().Latest(), req.IngredientIDs)
		if len(missing) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown ingredients", "ids": missing})
			return
		}
		log.Debug("Rezept angefordert", zap.String("name", req.Name), zap.Int("ingredients", len(selected)))
		coord.AddRecipe(req.Name, selected)
		c.JSON(http.StatusAccepted, gin.H{"message": "recipe queued"})
	})
}

func setupSearchRoutes(router *gin.RouterGroup, coord *services.Coordinator) {
	rg := router.Group("/search")
	rg.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, coord.SearchResults().Latest())
	})
	rg.POST("/name", func(c *gin.Context) {
		var req struct {
			Query string `json:"query"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		coord.SearchByName(req.Query)
		c.JSON(http.StatusAccepted, gin.H{"message": "search started"})
	})
	rg.POST("/ingredients", func(c *gin.Context) {
		var req struct {
			IngredientIDs []int64 `json:"ingredient_ids"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		required := make([]models.Ingredient, 0, len(req.IngredientIDs))
		for _, id := range req.IngredientIDs {
			required = append(required, models.Ingredient{ID: id})
		}
		coord.SearchByIngredients(required)
		c.JSON(http.StatusAccepted, gin.H{"message": "search started"})
	})
}

func setupCommunityRoutes(router *gin.RouterGroup, coord *services.Coordinator) {
	rg := router.Group("/community")
	rg.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, coord.OnlineIngredients().Latest())
	})
	rg.POST("/fetch", func(c *gin.Context) {
		coord.FetchOnline()
		c.JSON(http.StatusAccepted, gin.H{"message": "community fetch triggered"})
	})
}

// resolveIngredients sucht die IDs in der aktuellen Zutatenliste. Doppelte IDs zählen einmal.
func resolveIngredients(all []models.Ingredient, ids []int64) ([]models.Ingredient, []int64) {
	byID := make(map[int64]models.Ingredient, len(all))
	for _, ing := range all {
		byID[ing.ID] = ing
	}
	seen := make(map[int64]bool, len(ids))
	var selected []models.Ingredient
	var missing []int64
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		ing, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		selected = append(selected, ing)
	}
	return selected, missing
}
