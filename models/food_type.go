package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FoodType ist die geschlossene Menge der Zutaten-Kategorien.
type FoodType string

const (
	FoodTypeFruit     FoodType = "fruit"
	FoodTypeVegetable FoodType = "vegetable"
	FoodTypeMeat      FoodType = "meat"
	FoodTypeStarchy   FoodType = "starchy"
	FoodTypeOther     FoodType = "other"
)

// FoodTypes listet alle gültigen Kategorien in fester Reihenfolge.
var FoodTypes = []FoodType{FoodTypeFruit, FoodTypeVegetable, FoodTypeMeat, FoodTypeStarchy, FoodTypeOther}

// Valid meldet, ob t einer der fünf bekannten Werte ist.
func (t FoodType) Valid() bool {
	switch t {
	case FoodTypeFruit, FoodTypeVegetable, FoodTypeMeat, FoodTypeStarchy, FoodTypeOther:
		return true
	}
	return false
}

func (t FoodType) String() string { return string(t) }

// ParseFoodType wandelt einen String in einen FoodType um.
func ParseFoodType(s string) (FoodType, error) {
	t := FoodType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown food type %q", s)
	}
	return t, nil
}

func (t FoodType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown food type %q", string(t))
	}
	return json.Marshal(string(t))
}

func (t *FoodType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("food type must be a string: %w", err)
	}
	parsed, err := ParseFoodType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implementiert driver.Valuer, damit nur gültige Werte in die Spalte gelangen.
func (t FoodType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown food type %q", string(t))
	}
	return string(t), nil
}

// Scan implementiert sql.Scanner.
func (t *FoodType) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into FoodType", src)
	}
	parsed, err := ParseFoodType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
