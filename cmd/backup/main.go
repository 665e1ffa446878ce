package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"cooking-assistant/config"
	"cooking-assistant/storage"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const snapshotPrefix = "snapshot-"

type BackupConfig struct {
	KeepBackups int           `envconfig:"KEEP_BACKUPS" default:"4"`
	Timeout     time.Duration `envconfig:"BACKUP_TIMEOUT" default:"5m"`
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()
	logging.Info("Starte Backup-Prozess...")

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Fehler beim Laden der Konfiguration", zap.Error(err))
	}
	var bcfg BackupConfig
	if err := envconfig.Process("", &bcfg); err != nil {
		logging.Fatal("Fehler beim Laden der Backup-Konfiguration", zap.Error(err))
	}
	if bcfg.KeepBackups < 0 {
		logging.Fatal("KEEP_BACKUPS darf nicht negativ sein", zap.Int("keep_backups", bcfg.KeepBackups))
	}
	if !cfg.S3Enabled() {
		logging.Fatal("S3 ist nicht konfiguriert (S3_KEY, S3_SECRET, S3_URL, S3_BUCKET)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), bcfg.Timeout)
	defer cancel()

	// 1. Snapshot aus der Datenbank lesen
	db, err := storage.Open(cfg)
	if err != nil {
		logging.Fatal("Fehler beim Öffnen der Datenbank", zap.Error(err))
	}
	if err := storage.Migrate(db, logging); err != nil {
		logging.Fatal("Fehler bei der Migration", zap.Error(err))
	}
	store, err := storage.NewCookingStore(db, logging)
	if err != nil {
		logging.Fatal("Fehler beim Laden der Daten", zap.Error(err))
	}
	snap, err := store.Snapshot(ctx)
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des Snapshots", zap.Error(err))
	}

	// 2. S3-Client erstellen
	s3Client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		logging.Fatal("Fehler beim Erstellen des S3-Clients", zap.Error(err))
	}

	// 3. Snapshot nach S3 hochladen
	key := fmt.Sprintf("%s%s.json.gz", snapshotPrefix, snap.TakenAt.UTC().Format("2006-01-02T15-04-05Z"))
	link, err := storage.UploadSnapshot(ctx, s3Client, cfg, key, snap)
	if err != nil {
		logging.Fatal("Fehler beim Hochladen nach S3", zap.Error(err))
	}
	logging.Info("Backup erfolgreich hochgeladen",
		zap.String("link", link),
		zap.Int("ingredients", len(snap.Ingredients)),
		zap.Int("recipes", len(snap.Recipes)))

	// 4. Alte Backups rotieren
	deleted, err := storage.RotateSnapshots(ctx, s3Client, cfg.S3Bucket, snapshotPrefix, bcfg.KeepBackups)
	for _, k := range deleted {
		logging.Info("Altes Backup gelöscht", zap.String("key", k))
	}
	if err != nil {
		logging.Fatal("Fehler bei der Rotation alter Backups", zap.Error(err))
	}

	logging.Info("Backup-Prozess erfolgreich abgeschlossen.")
}
