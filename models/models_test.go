package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoodType_ClosedSet(t *testing.T) {
	for _, ft := range FoodTypes {
		assert.True(t, ft.Valid(), ft)
		parsed, err := ParseFoodType(string(ft))
		require.NoError(t, err)
		assert.Equal(t, ft, parsed)
	}

	for _, bad := range []string{"", "Fruit", "dairy", "vegetables"} {
		_, err := ParseFoodType(bad)
		assert.Error(t, err, bad)
	}
}

func TestFoodType_JSON(t *testing.T) {
	var ing Ingredient
	err := json.Unmarshal([]byte(`{"name":"apple","type":"fruit","color":"red"}`), &ing)
	require.NoError(t, err)
	assert.Equal(t, Ingredient{Name: "apple", Type: FoodTypeFruit}, ing)

	err = json.Unmarshal([]byte(`{"name":"milk","type":"dairy"}`), &ing)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"name":"milk","type":3}`), &ing)
	assert.Error(t, err)

	_, err = json.Marshal(Ingredient{Name: "x", Type: FoodType("nope")})
	assert.Error(t, err)
}

func TestFoodType_Scan(t *testing.T) {
	var ft FoodType
	require.NoError(t, ft.Scan([]byte("meat")))
	assert.Equal(t, FoodTypeMeat, ft)

	require.NoError(t, ft.Scan("starchy"))
	assert.Equal(t, FoodTypeStarchy, ft)

	assert.Error(t, ft.Scan("pasta"))
	assert.Error(t, ft.Scan(42))

	v, err := FoodTypeOther.Value()
	require.NoError(t, err)
	assert.Equal(t, "other", v)

	_, err = FoodType("").Value()
	assert.Error(t, err)
}

func TestRecipeWithIngredients_ContainsAll(t *testing.T) {
	r := RecipeWithIngredients{
		Recipe: Recipe{ID: 1, Name: "Soup"},
		Ingredients: []Ingredient{
			{ID: 10, Name: "carrot", Type: FoodTypeVegetable},
			{ID: 11, Name: "potato", Type: FoodTypeStarchy},
		},
	}

	assert.Equal(t, []int64{10, 11}, r.IngredientIDs())
	assert.True(t, r.ContainsAll(nil))
	assert.True(t, r.ContainsAll([]int64{10}))
	assert.True(t, r.ContainsAll([]int64{11, 10}))
	assert.False(t, r.ContainsAll([]int64{10, 12}))
	assert.False(t, RecipeWithIngredients{}.ContainsAll([]int64{1}))
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"banana":            "banana",
		"  sweet   potato ": "sweet potato",
		"cre\u0300me":       "cr\u00e8me",
		"\ufb01g":           "fig",
		"cafe\u0301\tnoir":  "caf\u00e9 noir",
		"":                  "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeName(in), "input %q", in)
	}
}
