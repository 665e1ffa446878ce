package community

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"cooking-assistant/config"
	"cooking-assistant/models"

	"go.uber.org/zap"
)

const userAgent = "cooking-assistant/1.0"

// userAgentTransport fügt jeder Anfrage einen User-Agent-Header hinzu.
type userAgentTransport struct {
	Transport http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", userAgent)
	return t.Transport.RoundTrip(req)
}

// Fetcher holt die gemeinsame Zutatenliste von einem festen Endpunkt.
type Fetcher struct {
	Config     *config.Config
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// NewFetcher erstellt einen neuen Community-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config:     cfg,
		Logger:     logger,
		HTTPClient: &http.Client{
			Timeout:   cfg.CommunityTimeout,
			Transport: &userAgentTransport{Transport: http.DefaultTransport},
		},
	}
}

// Name gibt den Namen der Quelle zurück.
func (f *Fetcher) Name() string {
	return "community"
}

// FetchIngredients ruft die Liste genau einmal ab. Jeder Fehler (Netzwerk,
// Status, Dekodierung, unbekannter Typ, Timeout) ergibt eine leere Liste.
// Es gibt keinen Retry.
func (f *Fetcher) FetchIngredients(ctx context.Context) []models.Ingredient {
	log := f.Logger.With(zap.String("url", f.Config.CommunityURL))
	log.Debug("Rufe Community-Zutatenliste ab.")

	ingredients, err := f.fetch(ctx)
	if err != nil {
		log.Warn("Community-Zutatenliste nicht verfügbar, liefere leere Liste", zap.Error(err))
		return []models.Ingredient{}
	}

	log.Info("Community-Zutatenliste geladen", zap.Int("count", len(ingredients)))
	return ingredients
}

func (f *Fetcher) fetch(ctx context.Context) ([]models.Ingredient, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Config.CommunityURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("community request failed with status: %d", resp.StatusCode)
	}

	var records []communityIngredient
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("community-antwort dekodieren: %w", err)
	}

	ingredients := make([]models.Ingredient, 0, len(records))
	for i, rec := range records {
		ing, err := rec.toModel()
		if err != nil {
			return nil, fmt.Errorf("eintrag %d: %w", i, err)
		}
		ingredients = append(ingredients, ing)
	}
	return ingredients, nil
}

// communityIngredient ist ein Eintrag der Community-Liste. name und type sind Pflicht.
type communityIngredient struct {
	ID   int64            `json:"id"`
	Name *string          `json:"name"`
	Type *models.FoodType `json:"type"`
}

func (r communityIngredient) toModel() (models.Ingredient, error) {
	if r.Name == nil {
		return models.Ingredient{}, errors.New("feld name fehlt")
	}
	if r.Type == nil {
		return models.Ingredient{}, errors.New("feld type fehlt")
	}
	return models.Ingredient{ID: r.ID, Name: models.NormalizeName(*r.Name), Type: *r.Type}, nil
}
