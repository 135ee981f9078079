package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pinksync/internal/models"
)

// RequesterPreferencesRepository stores per-requester request defaults.
type RequesterPreferencesRepository interface {
	// Get returns models.ErrNotFound when the requester has none.
	Get(ctx context.Context, requesterID string) (*models.RequesterPreferences, error)
	// Upsert replaces the requester's preferences and returns the stored row.
	Upsert(ctx context.Context, prefs models.RequesterPreferences) (*models.RequesterPreferences, error)
}

const (
	getPreferencesQuery = `
		SELECT requester_id, target_variant, render_style, quality_tier, updated_at
		FROM requester_preferences
		WHERE requester_id = $1
	`
	upsertPreferencesQuery = `
		INSERT INTO requester_preferences (requester_id, target_variant, render_style, quality_tier, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (requester_id) DO UPDATE
		SET target_variant = EXCLUDED.target_variant,
		    render_style = EXCLUDED.render_style,
		    quality_tier = EXCLUDED.quality_tier,
		    updated_at = EXCLUDED.updated_at
		RETURNING requester_id, target_variant, render_style, quality_tier, updated_at
	`
)

var _ RequesterPreferencesRepository = (*PgRequesterPreferencesRepository)(nil)

type PgRequesterPreferencesRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPgRequesterPreferencesRepository(pool *pgxpool.Pool, logger *zap.Logger) *PgRequesterPreferencesRepository {
	return &PgRequesterPreferencesRepository{
		pool:   pool,
		logger: logger.Named("PgPreferencesRepo"),
	}
}

func (r *PgRequesterPreferencesRepository) Get(ctx context.Context, requesterID string) (*models.RequesterPreferences, error) {
	var prefs models.RequesterPreferences
	if err := pgxscan.Get(ctx, r.pool, &prefs, getPreferencesQuery, requesterID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get preferences", zap.String("requester_id", requesterID), zap.Error(err))
		return nil, fmt.Errorf("error getting preferences for %s: %w", requesterID, err)
	}
	return &prefs, nil
}

func (r *PgRequesterPreferencesRepository) Upsert(ctx context.Context, prefs models.RequesterPreferences) (*models.RequesterPreferences, error) {
	var stored models.RequesterPreferences
	err := pgxscan.Get(ctx, r.pool, &stored, upsertPreferencesQuery,
		prefs.RequesterID,
		prefs.TargetVariant,
		string(prefs.RenderStyle),
		string(prefs.QualityTier),
	)
	if err != nil {
		r.logger.Error("Failed to save preferences", zap.String("requester_id", prefs.RequesterID), zap.Error(err))
		return nil, fmt.Errorf("error saving preferences for %s: %w", prefs.RequesterID, err)
	}
	return &stored, nil
}

var _ RequesterPreferencesRepository = (*MemoryRequesterPreferencesRepository)(nil)

type MemoryRequesterPreferencesRepository struct {
	mu    sync.RWMutex
	prefs map[string]models.RequesterPreferences
	now   func() time.Time
}

func NewMemoryRequesterPreferencesRepository() *MemoryRequesterPreferencesRepository {
	return &MemoryRequesterPreferencesRepository{
		prefs: make(map[string]models.RequesterPreferences),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRequesterPreferencesRepository) Get(_ context.Context, requesterID string) (*models.RequesterPreferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prefs[requesterID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (r *MemoryRequesterPreferencesRepository) Upsert(_ context.Context, prefs models.RequesterPreferences) (*models.RequesterPreferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefs.UpdatedAt = r.now()
	r.prefs[prefs.RequesterID] = prefs
	return &prefs, nil
}
