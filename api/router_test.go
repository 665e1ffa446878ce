package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cooking-assistant/config"
	"cooking-assistant/models"
	"cooking-assistant/services"
	"cooking-assistant/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticSource struct{ list []models.Ingredient }

func (s staticSource) Name() string { return "static" }

func (s staticSource) FetchIngredients(context.Context) []models.Ingredient { return s.list }

type testEnv struct {
	store  *storage.CookingStore
	coord  *services.Coordinator
	hub    *Hub
	router *gin.Engine
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := storage.Open(&config.Config{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "cooking.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	require.NoError(t, storage.Migrate(db, zap.NewNop()))
	store, err := storage.NewCookingStore(db, zap.NewNop())
	require.NoError(t, err)

	source := staticSource{list: []models.Ingredient{{Name: "quince", Type: models.FoodTypeFruit}}}
	coord := services.NewCoordinator(store, source, zap.NewNop())
	hub := NewHub(coord, zap.NewNop())
	t.Cleanup(func() {
		hub.Close()
		coord.Close()
	})

	if cfg == nil {
		cfg = &config.Config{}
	}
	return &testEnv{store: store, coord: coord, hub: hub, router: NewRouter(cfg, coord, hub, zap.NewNop())}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestIngredientRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/ingredients", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/ingredients", `{"name": "fennel", "type": "vegetable"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	require.Eventually(t, func() bool {
		return len(decode[[]models.Ingredient](t, env.do(t, http.MethodGet, "/ingredients", ""))) == 1
	}, 2*time.Second, 5*time.Millisecond)
	got := decode[[]models.Ingredient](t, env.do(t, http.MethodGet, "/ingredients", ""))
	assert.Equal(t, "fennel", got[0].Name)
	assert.Equal(t, models.FoodTypeVegetable, got[0].Type)
}

func TestIngredientRoutes_Rejects(t *testing.T) {
	env := newTestEnv(t, nil)

	for name, body := range map[string]string{
		"blank name":   `{"name": "  ", "type": "fruit"}`,
		"unknown type": `{"name": "milk", "type": "dairy"}`,
		"missing type": `{"name": "milk"}`,
		"broken json":  `{"name":`,
	} {
		t.Run(name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/ingredients", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestRecipeRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := &models.Ingredient{Name: "carrot", Type: models.FoodTypeVegetable}
	b := &models.Ingredient{Name: "potato", Type: models.FoodTypeStarchy}
	require.NoError(t, env.store.UpsertIngredient(ctx, a))
	require.NoError(t, env.store.UpsertIngredient(ctx, b))
	require.Eventually(t, func() bool { return len(env.coord.Ingredients().Latest()) == 2 }, 2*time.Second, 5*time.Millisecond)

	body, _ := json.Marshal(map[string]any{"name": "Soup", "ingredient_ids": []int64{a.ID, b.ID}})
	rr := env.do(t, http.MethodPost, "/recipes", string(body))
	require.Equal(t, http.StatusAccepted, rr.Code)

	require.Eventually(t, func() bool {
		recipes := decode[[]models.RecipeWithIngredients](t, env.do(t, http.MethodGet, "/recipes", ""))
		return len(recipes) == 1 && len(recipes[0].Ingredients) == 2
	}, 2*time.Second, 5*time.Millisecond)

	rr = env.do(t, http.MethodPost, "/recipes", `{"name": "Ghost", "ingredient_ids": [999]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/recipes", `{"name": "", "ingredient_ids": []}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSearchRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	egg := &models.Ingredient{Name: "egg", Type: models.FoodTypeOther}
	require.NoError(t, env.store.UpsertIngredient(ctx, egg))
	id, err := env.store.AddRecipe(ctx, "Omelette")
	require.NoError(t, err)
	require.NoError(t, env.store.AddAssociation(ctx, id, egg.ID))
	_, err = env.store.AddRecipe(ctx, "Salad")
	require.NoError(t, err)

	rr := env.do(t, http.MethodPost, "/search/name", `{"query": "Ome"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Eventually(t, func() bool {
		res := decode[[]models.RecipeWithIngredients](t, env.do(t, http.MethodGet, "/search", ""))
		return len(res) == 1 && res[0].Recipe.Name == "Omelette"
	}, 2*time.Second, 5*time.Millisecond)

	rr = env.do(t, http.MethodPost, "/search/name", `{"query": ""}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Eventually(t, func() bool {
		return len(decode[[]models.RecipeWithIngredients](t, env.do(t, http.MethodGet, "/search", ""))) == 2
	}, 2*time.Second, 5*time.Millisecond)

	rr = env.do(t, http.MethodPost, "/search/ingredients", `{"ingredient_ids": [`+jsonInt(egg.ID)+`]}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Eventually(t, func() bool {
		res := decode[[]models.RecipeWithIngredients](t, env.do(t, http.MethodGet, "/search", ""))
		return len(res) == 1 && res[0].Recipe.Name == "Omelette"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCommunityRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/community", "")
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/community/fetch", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Eventually(t, func() bool {
		return len(decode[[]models.Ingredient](t, env.do(t, http.MethodGet, "/community", ""))) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestAPIKeyMiddleware(t *testing.T) {
	env := newTestEnv(t, &config.Config{APISecretKey: "s3cret"})

	rr := env.do(t, http.MethodGet, "/ingredients", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/ingredients", nil)
	req.Header.Set("X-API-KEY", "s3cret")
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Health bleibt offen
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", "").Code)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, &config.Config{CORSAllowedOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/ingredients", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ingredients", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestWebSocketPushesState(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// zuerst der aktuelle Stand aller vier Streams
	kinds := map[string]bool{}
	for len(kinds) < 4 {
		frame := readFrame(t, conn)
		kinds[frame.Kind] = true
	}
	assert.Equal(t, map[string]bool{
		"ingredients": true, "recipes": true, "search_results": true, "online_ingredients": true,
	}, kinds)
	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	env.coord.AddIngredient("basil", models.FoodTypeVegetable)

	for {
		frame := readFrame(t, conn)
		if frame.Kind != "ingredients" {
			continue
		}
		var ings []models.Ingredient
		require.NoError(t, json.Unmarshal(frame.Data, &ings))
		if len(ings) == 1 {
			assert.Equal(t, "basil", ings[0].Name)
			break
		}
	}
}

type rawFrame struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) rawFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame rawFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestResolveIngredients(t *testing.T) {
	all := []models.Ingredient{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}

	selected, missing := resolveIngredients(all, []int64{2, 1, 2, 5})
	assert.Equal(t, []models.Ingredient{{ID: 2, Name: "b"}, {ID: 1, Name: "a"}}, selected)
	assert.Equal(t, []int64{5}, missing)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
