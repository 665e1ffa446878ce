package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	// sqlite (lokale Datei) oder postgres
	DBDriver   string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBPath     string `envconfig:"DB_PATH" default:"cooking.db"`
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"cooking"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`
	// Komma-getrennt; leer = kein CORS
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`

	// Community-Zutatenliste
	CommunityURL     string        `envconfig:"COMMUNITY_URL" default:"https://dev-montpellier.fr/aliments.json"`
	CommunityTimeout time.Duration `envconfig:"COMMUNITY_TIMEOUT" default:"30s"`
	// Leer = kein periodischer Abruf
	CommunityRefreshSchedule string `envconfig:"COMMUNITY_REFRESH_SCHEDULE"`

	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"eu-central-1"`
	S3Bucket string `envconfig:"S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// S3Enabled meldet, ob alle Angaben für den Snapshot-Upload vorhanden sind.
func (c *Config) S3Enabled() bool {
	return c.S3Key != "" && c.S3Secret != "" && c.S3URL != "" && c.S3Bucket != ""
}

// Validate prüft Kombinationen, die envconfig allein nicht abdecken kann.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH darf bei DB_DRIVER=sqlite nicht leer sein")
		}
	case "postgres":
		if c.DBUser == "" {
			return fmt.Errorf("DB_USER ist bei DB_DRIVER=postgres erforderlich")
		}
	default:
		return fmt.Errorf("unbekannter DB_DRIVER %q", c.DBDriver)
	}
	if c.CommunityTimeout <= 0 {
		return fmt.Errorf("COMMUNITY_TIMEOUT muss positiv sein")
	}
	return nil
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
