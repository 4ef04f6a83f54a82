package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"hiddystays/internal/domain/properties"
	"hiddystays/internal/domain/shared/money"
)

type propertyFixture struct {
	ID               string `json:"id"`
	Host             string `json:"host"`
	Title            string `json:"title"`
	City             string `json:"city"`
	Country          string `json:"country"`
	NightlyRateCents int64  `json:"nightly_rate_cents"`
	Currency         string `json:"currency"`
	MinNights        int    `json:"min_nights"`
	MaxNights        int    `json:"max_nights"`
	GuestsLimit      int    `json:"guests_limit"`
	Inactive         bool   `json:"inactive"`
}

func (a *application) loadPropertyFixtures(ctx context.Context, path, currency string, logger *slog.Logger) error {
	if strings.TrimSpace(path) == "" || a.putProperty == nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("property fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("property fixtures file empty", "path", path)
		return nil
	}

	var fixtures []propertyFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	now := time.Now()
	for _, fx := range fixtures {
		cur := fx.Currency
		if cur == "" {
			cur = currency
		}
		rate, err := money.New(fx.NightlyRateCents, cur)
		if err != nil {
			logger.Error("fixture invalid", "property_id", fx.ID, "error", err)
			continue
		}
		property, err := properties.New(properties.CreateParams{
			ID:          properties.PropertyID(fx.ID),
			Host:        properties.HostID(fx.Host),
			Title:       fx.Title,
			City:        fx.City,
			Country:     fx.Country,
			NightlyRate: rate,
			MinNights:   fx.MinNights,
			MaxNights:   fx.MaxNights,
			GuestsLimit: fx.GuestsLimit,
			Active:      !fx.Inactive,
			Now:         now,
		})
		if err != nil {
			logger.Error("fixture invalid", "property_id", fx.ID, "error", err)
			continue
		}
		if err := a.putProperty(ctx, property); err != nil {
			logger.Error("cannot store fixture property", "property_id", fx.ID, "error", err)
			continue
		}
		logger.Info("property fixture imported", "property_id", property.ID)
	}
	return nil
}
