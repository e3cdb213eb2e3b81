// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package edition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/mediaserver"
	"github.com/tomtom215/cartographus/internal/models"
)

const defaultSeparator = " . "

// BackupStore is the persistence the engine needs for backup-before-apply.
// internal/database implements it.
type BackupStore interface {
	GetEditionBackup(ctx context.Context, itemKey string) (models.EditionBackup, bool, error)
	CreateEditionBackup(ctx context.Context, backup models.EditionBackup) error
}

// registry returns every known module keyed by its configuration name.
func registry() map[string]Module {
	return map[string]Module{
		"resolution":      Resolution,
		"dynamic_range":   DynamicRange,
		"video_codec":     VideoCodec,
		"audio_codec":     AudioCodec,
		"audio_channels":  AudioChannels,
		"bitrate":         Bitrate,
		"frame_rate":      FrameRate,
		"cut":             Cut,
		"release":         Release,
		"source":          Source,
		"short_film":      ShortFilm,
		"duration":        Duration,
		"rating":          Rating,
		"director":        Director,
		"writer":          Writer,
		"genre":           Genre,
		"country":         Country,
		"studio":          Studio,
		"language":        Language,
		"size":            Size,
		"content_rating":  ContentRating,
		"flags":           Flags,
	}
}

// Engine generates and applies edition strings from a configured module
// order, backing up each item's prior edition title on first write.
type Engine struct {
	modules map[string]Module
	client  *mediaserver.Client
	backups BackupStore
}

// NewEngine constructs an Engine over the full module registry.
func NewEngine(client *mediaserver.Client, backups BackupStore) *Engine {
	return &Engine{modules: registry(), client: client, backups: backups}
}

// Generate runs each enabled module, in module_order, skipping unknown
// names and empty fragments, and joins the survivors with the configured
// separator (default " . "). Generation itself never mutates anything: it
// is purely a function of the item and config.
func (e *Engine) Generate(item mediaserver.Item, cfg models.EditionConfig, settings Settings) string {
	enabled := make(map[string]bool, len(cfg.EnabledModules))
	for _, name := range cfg.EnabledModules {
		enabled[name] = true
	}

	separator := cfg.Settings["separator"]
	if separator == "" {
		separator = defaultSeparator
	}

	var fragments []string
	for _, name := range cfg.ModuleOrder {
		if !enabled[name] {
			continue
		}
		fn, ok := e.modules[name]
		if !ok {
			logging.Warn().Str("module", name).Msg("edition: unknown module in configured order, skipping")
			continue
		}
		fragment := fn(item, settings)
		if fragment == "" {
			continue
		}
		fragments = append(fragments, fragment)
	}

	return strings.Join(fragments, separator)
}

// Apply backs up item's current edition title (a no-op if a backup already
// exists for this item_key), then writes the new edition string.
func (e *Engine) Apply(ctx context.Context, item mediaserver.Item, edition string) error {
	_, exists, err := e.backups.GetEditionBackup(ctx, item.RatingKey)
	if err != nil {
		return fmt.Errorf("edition: check existing backup: %w", err)
	}
	if !exists {
		backup := models.EditionBackup{
			ID:              uuid.NewString(),
			ItemKey:         item.RatingKey,
			Title:           item.Title,
			OriginalEdition: item.EditionTitle,
			NewEdition:      edition,
			BackedUpAt:      time.Now(),
		}
		if err := e.backups.CreateEditionBackup(ctx, backup); err != nil {
			return fmt.Errorf("edition: create backup: %w", err)
		}
	}

	if err := e.client.SetEdition(ctx, item.RatingKey, edition); err != nil {
		return fmt.Errorf("edition: apply to media server: %w", err)
	}
	return nil
}
