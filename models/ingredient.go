package models

// Ingredient repräsentiert eine Zutat mit ihrer Kategorie.
type Ingredient struct {
	ID   int64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name string   `json:"name" gorm:"not null"` // leere Namen verhindert nur die Oberfläche
	Type FoodType `json:"type" gorm:"type:varchar(16);not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (Ingredient) TableName() string {
	return "ingredients"
}
