package storage

import (
	"errors"
	"fmt"

	"cooking-assistant/config"
	"cooking-assistant/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SchemaVersion wird bei jeder inkompatiblen Schemaänderung erhöht.
const SchemaVersion = 1

// schemaMeta hält die Version des gespeicherten Schemas (genau eine Zeile).
type schemaMeta struct {
	ID      int `gorm:"primaryKey;autoIncrement:false"`
	Version int `gorm:"not null"`
}

func (schemaMeta) TableName() string { return "schema_meta" }

// Open öffnet die Datenbank je nach DB_DRIVER (sqlite oder postgres).
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch cfg.DBDriver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	case "sqlite", "":
		db, err := gorm.Open(sqlite.Open(cfg.DBPath), gormCfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite erlaubt nur einen Schreiber; eine Verbindung vermeidet "database is locked".
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, fmt.Errorf("unbekannter DB-Treiber %q", cfg.DBDriver)
	}
}

// entityTables sind alle Tabellen, die bei einem Versionswechsel verworfen werden.
func entityTables() []any {
	return []any{&models.Ingredient{}, &models.Recipe{}, &models.RecipeIngredient{}}
}

// Migrate bringt das Schema auf SchemaVersion. Passt die gespeicherte Version
// nicht, werden alle Tabellen verworfen und neu angelegt; es gibt keine
// schrittweise Migration.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	m := db.Migrator()

	stored := -1
	if m.HasTable(&schemaMeta{}) {
		var meta schemaMeta
		err := db.First(&meta, 1).Error
		switch {
		case err == nil:
			stored = meta.Version
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("schema-version lesen: %w", err)
		}
	}

	if stored != SchemaVersion {
		existing := false
		for _, t := range entityTables() {
			if m.HasTable(t) {
				existing = true
				break
			}
		}
		if existing {
			log.Warn("Schema-Version passt nicht, Tabellen werden neu angelegt.",
				zap.Int("stored_version", stored), zap.Int("current_version", SchemaVersion))
			if err := m.DropTable(append(entityTables(), &schemaMeta{})...); err != nil {
				return fmt.Errorf("tabellen verwerfen: %w", err)
			}
		}
	}

	log.Info("Running database auto-migration...")
	if err := db.AutoMigrate(append(entityTables(), &schemaMeta{})...); err != nil {
		return fmt.Errorf("auto-migration: %w", err)
	}
	if stored != SchemaVersion {
		if err := db.Save(&schemaMeta{ID: 1, Version: SchemaVersion}).Error; err != nil {
			return fmt.Errorf("schema-version speichern: %w", err)
		}
	}
	return nil
}
