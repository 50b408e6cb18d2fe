package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"classroom-rollcall-go/models"
)

// Gateway loads and saves the whole AppState as one JSON document.
// Persistence is best effort: Load never fails and Save only logs.
type Gateway struct {
	kv  KV
	key string
	log zerolog.Logger
}

// NewGateway creates a gateway over kv. An empty key selects DefaultStateKey.
func NewGateway(kv KV, key string, log zerolog.Logger) *Gateway {
	if key == "" {
		key = DefaultStateKey
	}
	return &Gateway{
		kv:  kv,
		key: key,
		log: log.With().Str("component", "gateway").Str("key", key).Logger(),
	}
}

// Load returns the stored state, or the default empty state when nothing
// usable is stored.
func (g *Gateway) Load(ctx context.Context) models.AppState {
	data, err := g.kv.Get(ctx, g.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			g.log.Info().Msg("no stored state, starting empty")
		} else {
			g.log.Error().Err(err).Msg("failed to load state, starting empty")
		}
		return models.NewState()
	}

	var state models.AppState
	if err := json.Unmarshal(data, &state); err != nil {
		g.log.Error().Err(err).Int("bytes", len(data)).Msg("stored state is not valid JSON, starting empty")
		return models.NewState()
	}
	return state.Normalize()
}

// Save replaces the stored snapshot with state.
func (g *Gateway) Save(ctx context.Context, state models.AppState) {
	if err := g.write(ctx, state); err != nil {
		g.log.Error().Err(err).Msg("failed to save state")
	}
}

func (g *Gateway) write(ctx context.Context, state models.AppState) error {
	data, err := json.Marshal(state.Normalize())
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return g.kv.Set(ctx, g.key, data)
}

// ExportFilename is the suggested file name for an export made at now.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("classroom_data_%s.json", now.UTC().Format("2006-01-02"))
}

// Export renders state as indented JSON for a manual backup.
func Export(state models.AppState, now time.Time) ([]byte, string, error) {
	data, err := json.MarshalIndent(state.Normalize(), "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("marshal export: %w", err)
	}
	return data, ExportFilename(now), nil
}
